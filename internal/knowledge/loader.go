package knowledge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxChunkRunes bounds a document chunk. Paragraphs are merged up to this size.
const MaxChunkRunes = 1200

// LoadDir reads every .txt, .md, .html and .htm file in dir (not recursive).
// The file name without extension is the topic, so "soja_manual_tecnico.html"
// yields documents of topic "soja_manual_tecnico".
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []Document
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		var text string
		switch ext {
		case ".txt", ".md":
			raw, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			text = string(raw)
		case ".html", ".htm":
			f, err := os.Open(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			text, err = htmlText(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
		default:
			continue
		}

		topic := strings.TrimSuffix(name, filepath.Ext(name))
		for i, chunk := range Chunk(text, MaxChunkRunes) {
			docs = append(docs, Document{
				ID:    fmt.Sprintf("%s#%d", topic, i),
				Topic: topic,
				Text:  chunk,
			})
		}
	}
	return docs, nil
}

func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, p, li, td").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.Join(strings.Fields(sel.Text()), " "); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// Chunk splits text on blank lines and greedily merges paragraphs into chunks
// of at most maxRunes. A single paragraph longer than maxRunes is cut.
func Chunk(text string, maxRunes int) []string {
	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	for _, para := range strings.Split(normalized, "\n\n") {
		p := []rune(strings.Join(strings.Fields(para), " "))
		if len(p) == 0 {
			continue
		}
		for len(p) > maxRunes {
			flush()
			chunks = append(chunks, string(p[:maxRunes]))
			p = p[maxRunes:]
		}
		if len(current) > 0 && len(current)+1+len(p) > maxRunes {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, p...)
	}
	flush()
	return chunks
}
