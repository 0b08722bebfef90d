// Package knowledge retrieves short technical-manual excerpts that support the
// advisory narrative. Stores are searched by free text with an optional exact
// topic filter; the topic identifiers come from the crop catalog.
package knowledge

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one retrievable chunk of a technical manual.
type Document struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// Retriever searches the knowledge base. An empty topic searches every
// document. Results are ordered best first and hold at most k texts.
type Retriever interface {
	Search(ctx context.Context, query, topic string, k int) ([]string, error)
}

// ChampionQuery is the query issued for the top-ranked crop.
func ChampionQuery(crop string) string {
	return "Manejo tecnico plantio " + crop
}

// Nop is a Retriever with no documents.
type Nop struct{}

// Search implements Retriever.
func (Nop) Search(context.Context, string, string, int) ([]string, error) {
	return nil, nil
}

// WithTimeout bounds every Search of r by d. A non-positive d returns r.
func WithTimeout(r Retriever, d time.Duration) Retriever {
	if d <= 0 {
		return r
	}
	return timeoutRetriever{next: r, timeout: d}
}

type timeoutRetriever struct {
	next    Retriever
	timeout time.Duration
}

func (t timeoutRetriever) Search(ctx context.Context, query, topic string, k int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Search(ctx, query, topic, k)
}

const minTokenRunes = 3

// Tokenize lowercases, strips diacritics and splits on anything that is not a
// letter or digit. Tokens shorter than three runes are dropped.
func Tokenize(s string) []string {
	folded := fold(s)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenRunes {
			out = append(out, f)
		}
	}
	return out
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
