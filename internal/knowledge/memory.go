package knowledge

import (
	"context"
	"sort"
)

type indexedDocument struct {
	Document
	tokens map[string]struct{}
}

// MemoryStore is an in-process keyword index. Documents score by the number of
// distinct query tokens they contain; like a nearest-neighbour search it
// returns the best k even when nothing matches.
type MemoryStore struct {
	docs []indexedDocument
}

var _ Retriever = (*MemoryStore)(nil)

// NewMemoryStore indexes docs. The slice order breaks score ties.
func NewMemoryStore(docs []Document) *MemoryStore {
	s := &MemoryStore{docs: make([]indexedDocument, 0, len(docs))}
	for _, d := range docs {
		set := make(map[string]struct{})
		for _, tok := range Tokenize(d.Text) {
			set[tok] = struct{}{}
		}
		s.docs = append(s.docs, indexedDocument{Document: d, tokens: set})
	}
	return s
}

// Len returns the number of indexed documents.
func (s *MemoryStore) Len() int {
	return len(s.docs)
}

// Topics returns the distinct document topics, sorted.
func (s *MemoryStore) Topics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range s.docs {
		if _, ok := seen[d.Topic]; !ok {
			seen[d.Topic] = struct{}{}
			out = append(out, d.Topic)
		}
	}
	sort.Strings(out)
	return out
}

// Search implements Retriever.
func (s *MemoryStore) Search(ctx context.Context, query, topic string, k int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 1
	}

	queryTokens := make(map[string]struct{})
	for _, tok := range Tokenize(query) {
		queryTokens[tok] = struct{}{}
	}

	type hit struct {
		idx   int
		score int
	}
	var hits []hit
	for i, d := range s.docs {
		if topic != "" && d.Topic != topic {
			continue
		}
		score := 0
		for tok := range queryTokens {
			if _, ok := d.tokens[tok]; ok {
				score++
			}
		}
		hits = append(hits, hit{idx: i, score: score})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = s.docs[h.idx].Text
	}
	return out, nil
}
