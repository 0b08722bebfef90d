// Package narrative turns the champion recommendation and a manual excerpt
// into a short advisory paragraph. Generation failures never propagate: the
// caller always receives a Narrative, possibly the fixed unavailable message.
package narrative

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"

	"agroia/internal/types"
)

// UnavailableMessage replaces the narrative when generation fails.
const UnavailableMessage = "IA Indisponível."

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Narrative is the advisory text of a run.
type Narrative struct {
	Text string `json:"text"`
	// HTML is Text rendered from markdown; raw HTML in the model output is
	// not passed through.
	HTML      string `json:"html"`
	Available bool   `json:"available"`
}

// Unavailable is the degraded narrative.
func Unavailable() Narrative {
	return Narrative{Text: UnavailableMessage, HTML: "<p>" + UnavailableMessage + "</p>\n"}
}

// Narrator wraps a Generator with prompt building and degradation.
type Narrator struct {
	gen      Generator
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// New creates a Narrator. A nil generator makes every narrative unavailable.
func New(gen Generator, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{gen: gen, markdown: goldmark.New(), logger: logger}
}

// Narrate builds the prompt and asks the generator for text.
func (n *Narrator) Narrate(ctx context.Context, c Context) Narrative {
	if n.gen == nil {
		return Unavailable()
	}
	logger := types.LoggerFromContext(ctx, n.logger)

	text, err := n.gen.Generate(ctx, BuildPrompt(c))
	if err != nil {
		logger.WarnContext(ctx, "narrative generation failed",
			"crop", c.Crop,
			"run_id", types.GetRunID(ctx),
			"error", err,
		)
		return Unavailable()
	}
	text = stripCodeFence(text)
	if text == "" {
		return Unavailable()
	}

	var buf bytes.Buffer
	if err := n.markdown.Convert([]byte(text), &buf); err != nil {
		logger.WarnContext(ctx, "narrative markdown render failed", "error", err)
		buf.Reset()
	}
	return Narrative{Text: text, HTML: buf.String(), Available: true}
}

// stripCodeFence removes an outer ``` block some models wrap answers in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
