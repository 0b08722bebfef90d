// Package advisor runs a full recommendation: it evaluates and ranks every
// crop of the municipality, enriches the champion with a manual excerpt and
// an advisory narrative, and reports the run.
package advisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agroia/internal/decile"
	"agroia/internal/engine"
	"agroia/internal/knowledge"
	"agroia/internal/narrative"
	"agroia/internal/telemetry"
	"agroia/internal/types"
)

const (
	// DefaultEnrichTimeout bounds retrieval plus narrative generation.
	DefaultEnrichTimeout = 25 * time.Second
	// DefaultFixedAreaHa is the area used when not maximizing and none is given.
	DefaultFixedAreaHa = 1.0

	championSnippets = 1
)

// EventPublisher delivers run events.
type EventPublisher interface {
	Publish(ctx context.Context, ev types.RunCompleted) error
}

// Request is a recommendation request as received from a caller.
type Request struct {
	Municipality string
	PlantingDate time.Time
	BudgetTier   BudgetTier
	// Budget is read only for the custom tier.
	Budget       float64
	MaximizeArea bool
	AreaHa       float64
	Exclude      []string
}

// Report is the outcome of a run.
type Report struct {
	RunID          string              `json:"run_id"`
	Municipality   string              `json:"municipality"`
	PlantingDate   string              `json:"planting_date"`
	Budget         float64             `json:"budget"`
	MaximizeArea   bool                `json:"maximize_area"`
	Decile         int                 `json:"decile"`
	DecileLabel    string              `json:"decile_label"`
	Champion       *engine.Result      `json:"champion"`
	Viable         []engine.Result     `json:"viable"`
	Discarded      []engine.Result     `json:"discarded"`
	Reference      string              `json:"reference,omitempty"`
	Narrative      narrative.Narrative `json:"narrative"`
	AvailableCrops []string            `json:"available_crops"`
}

// Advisor orchestrates a recommendation run.
type Advisor struct {
	engine        *engine.Engine
	retriever     knowledge.Retriever
	narrator      *narrative.Narrator
	publisher     EventPublisher
	metrics       telemetry.Recorder
	enrichTimeout time.Duration
	newID         func() string
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithRetriever sets the knowledge store.
func WithRetriever(r knowledge.Retriever) Option {
	return func(a *Advisor) {
		if r != nil {
			a.retriever = r
		}
	}
}

// WithNarrator sets the narrative generator.
func WithNarrator(n *narrative.Narrator) Option {
	return func(a *Advisor) {
		if n != nil {
			a.narrator = n
		}
	}
}

// WithPublisher sets the run event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(a *Advisor) {
		if p != nil {
			a.publisher = p
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Recorder) Option {
	return func(a *Advisor) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithEnrichTimeout bounds retrieval and narrative generation.
func WithEnrichTimeout(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.enrichTimeout = d
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(a *Advisor) { a.newID = fn }
}

// WithClock overrides the clock.
func WithClock(fn func() time.Time) Option {
	return func(a *Advisor) { a.now = fn }
}

// WithLogger sets the fallback logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Advisor) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Advisor around an engine.
func New(e *engine.Engine, opts ...Option) *Advisor {
	a := &Advisor{
		engine:        e,
		retriever:     knowledge.Nop{},
		publisher:     nopPublisher{},
		metrics:       telemetry.Nop{},
		enrichTimeout: DefaultEnrichTimeout,
		newID:         func() string { return uuid.New().String() },
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.narrator == nil {
		a.narrator = narrative.New(nil, a.logger)
	}
	return a
}

// Engine returns the underlying engine.
func (a *Advisor) Engine() *engine.Engine {
	return a.engine
}

// Advise runs the recommendation. It fails only on invalid input, an unknown
// municipality or cancellation; retrieval, narrative, event and metric
// failures degrade silently.
func (a *Advisor) Advise(ctx context.Context, req Request) (*Report, error) {
	start := a.now()

	budget, err := ResolveBudget(req.BudgetTier, req.Budget)
	if err != nil {
		return nil, err
	}
	area := req.AreaHa
	if !req.MaximizeArea && area == 0 {
		area = DefaultFixedAreaHa
	}

	runID := a.newID()
	ctx = types.WithRunID(ctx, runID)
	logger := types.LoggerFromContext(ctx, a.logger).With("run_id", runID)
	ctx = types.WithLogger(ctx, logger)

	out, err := a.engine.Recommend(ctx, engine.Request{
		Municipality: req.Municipality,
		PlantingDate: req.PlantingDate,
		Budget:       budget,
		AreaHa:       area,
		MaximizeArea: req.MaximizeArea,
		Exclude:      req.Exclude,
	})
	if err != nil {
		return nil, err
	}
	if len(out.AvailableCrops) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundMunicipality,
			"no historical crop data for municipality", nil,
			map[string]any{"municipality": req.Municipality})
	}

	viable, discarded := engine.Rank(out.Results)
	report := &Report{
		RunID:          runID,
		Municipality:   req.Municipality,
		PlantingDate:   req.PlantingDate.Format(time.DateOnly),
		Budget:         budget,
		MaximizeArea:   req.MaximizeArea,
		Decile:         out.Decile,
		DecileLabel:    decile.Label(out.Decile),
		Viable:         viable,
		Discarded:      discarded,
		AvailableCrops: out.AvailableCrops,
	}

	if champ, ok := engine.Champion(viable); ok {
		report.Champion = &champ
		report.Reference, report.Narrative = a.enrich(ctx, req.Municipality, champ)
	}

	logger.InfoContext(ctx, "recommendation run complete",
		"municipality", req.Municipality,
		"decile", out.Decile,
		"evaluated", len(out.Results),
		"viable", len(viable),
		"champion", championName(report.Champion),
		"narrative_available", report.Narrative.Available,
	)

	a.report(ctx, report, len(out.Results), start)
	return report, nil
}

// enrich fetches the manual excerpt and the narrative for the champion under
// a single deadline.
func (a *Advisor) enrich(ctx context.Context, municipality string, champ engine.Result) (string, narrative.Narrative) {
	ctx, cancel := context.WithTimeout(ctx, a.enrichTimeout)
	defer cancel()
	logger := types.LoggerFromContext(ctx, a.logger)

	topic := a.engine.Catalog().Topic(champ.Crop)
	var reference string
	snippets, err := a.retriever.Search(ctx, knowledge.ChampionQuery(champ.Crop), topic, championSnippets)
	if err != nil {
		logger.WarnContext(ctx, "knowledge retrieval failed", "crop", champ.Crop, "topic", topic, "error", err)
	} else if len(snippets) > 0 {
		reference = snippets[0]
	}

	n := a.narrator.Narrate(ctx, narrative.Context{
		Municipality: municipality,
		Crop:         champ.Crop,
		CycleLabel:   champ.CycleLabel,
		AreaHa:       champ.AreaHa,
		ClimateLabel: champ.ClimateLabel,
		NetProfit:    champ.NetProfit,
		Reference:    reference,
	})
	return reference, n
}

func (a *Advisor) report(ctx context.Context, r *Report, evaluated int, start time.Time) {
	ev := types.RunCompleted{
		EventType:    types.EventRecommendationCompleted,
		RunID:        r.RunID,
		RequestID:    types.GetRequestID(ctx),
		Municipality: r.Municipality,
		Decile:       r.Decile,
		Budget:       r.Budget,
		MaximizeArea: r.MaximizeArea,
		Evaluated:    evaluated,
		Viable:       len(r.Viable),
		Narrative:    r.Narrative.Available,
		CompletedAt:  a.now().UTC(),
	}
	ev.Duration = ev.CompletedAt.Sub(start.UTC()).Milliseconds()
	if r.Champion != nil {
		ev.Champion = r.Champion.Crop
		ev.ChampionROI = r.Champion.ROIPercent
	}

	// Run reporting is not tied to the caller's cancellation.
	rctx := context.WithoutCancel(ctx)
	a.metrics.RecordRun(rctx, ev)
	if err := a.publisher.Publish(rctx, ev); err != nil {
		types.LoggerFromContext(ctx, a.logger).WarnContext(ctx, "run event publish failed", "error", err)
	}
}

func championName(r *engine.Result) string {
	if r == nil {
		return ""
	}
	return r.Crop
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, types.RunCompleted) error { return nil }
