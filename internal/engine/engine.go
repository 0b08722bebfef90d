// Package engine implements the crop recommendation and economics pipeline.
//
// For every crop grown historically in a municipality the engine resolves the
// planting decile, looks up the climate/risk record, applies the ordered
// policy rules, queries the yield predictor and derives cost, revenue, profit,
// ROI, a risk-adjusted score and a viability status. The dataset, catalog and
// predictor are injected; the engine holds no global state and is safe for
// concurrent use.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"agroia/internal/climate"
	"agroia/internal/crops"
	"agroia/internal/decile"
	"agroia/internal/predictor"
	"agroia/internal/types"
)

// Status is the viability outcome of one crop.
type Status string

const (
	StatusViable             Status = "Viável"
	StatusLoss               Status = "Prejuízo"
	StatusInsufficientBudget Status = "Orçamento Insuficiente"
)

const (
	// MinAreaHa is the smallest area assigned when maximizing the budget.
	MinAreaHa = 0.1

	harvestLabelLayout = "02/01/2006"
)

// Request holds the inputs of one recommendation run.
type Request struct {
	Municipality string
	PlantingDate time.Time
	Budget       float64
	// AreaHa is used only when MaximizeArea is false.
	AreaHa       float64
	MaximizeArea bool
	Exclude      []string
}

// Validate checks the request shape. The engine itself never fails on data
// gaps; only malformed requests are rejected.
func (r Request) Validate() error {
	if r.Municipality == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "municipality is required", nil)
	}
	if r.PlantingDate.IsZero() {
		return types.NewAppError(types.ErrCodeValidationInvalidDate, "planting date is required", nil)
	}
	if math.IsNaN(r.Budget) || math.IsInf(r.Budget, 0) || r.Budget <= 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidBudget, "budget must be a positive number", nil)
	}
	if !r.MaximizeArea && (math.IsNaN(r.AreaHa) || math.IsInf(r.AreaHa, 0) || r.AreaHa <= 0) {
		return types.NewAppError(types.ErrCodeValidationInvalidArea, "area must be positive when not maximizing the budget", nil)
	}
	return nil
}

// Result is the evaluation of one crop.
type Result struct {
	Crop              string    `json:"crop"`
	Decile            int       `json:"decile"`
	DecileLabel       string    `json:"decile_label"`
	InWindow          bool      `json:"in_window"`
	RiskScore         float64   `json:"risk_score"`
	Observation       string    `json:"observation"`
	ClimateLabel      string    `json:"climate_label"`
	RainfallMm        float64   `json:"rainfall_mm"`
	TemperatureC      float64   `json:"temperature_c"`
	YieldScore        float64   `json:"yield_score"`
	CostPerHa         float64   `json:"cost_per_ha"`
	AreaHa            float64   `json:"area_ha"`
	TotalCost         float64   `json:"total_cost"`
	LossFraction      float64   `json:"loss_fraction"`
	Revenue           float64   `json:"revenue"`
	NetProfit         float64   `json:"net_profit"`
	ROIPercent        float64   `json:"roi_percent"`
	RiskAdjustedScore float64   `json:"risk_adjusted_score"`
	Status            Status    `json:"status"`
	CycleLabel        string    `json:"cycle_label"`
	HarvestDate       time.Time `json:"harvest_date"`
	HarvestLabel      string    `json:"harvest_label"`
}

// Output is the full result of a run.
type Output struct {
	Decile int
	// Results holds one entry per evaluated crop, in the municipality's crop
	// enumeration order.
	Results []Result
	// AvailableCrops lists every crop of the municipality, exclusions included.
	AvailableCrops []string
}

// Engine evaluates recommendation requests.
type Engine struct {
	dataset     *climate.Dataset
	catalog     *crops.Catalog
	predictor   predictor.YieldPredictor
	rules       []PolicyRule
	parallelism int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPredictor sets the yield model. A nil predictor means no model: every
// in-window crop gets the neutral score.
func WithPredictor(p predictor.YieldPredictor) Option {
	return func(e *Engine) { e.predictor = p }
}

// WithParallelism bounds the number of crops evaluated concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithRules replaces the policy rule chain.
func WithRules(rules []PolicyRule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over an immutable dataset and catalog.
func New(ds *climate.Dataset, catalog *crops.Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = crops.Default()
	}
	e := &Engine{
		dataset:     ds,
		catalog:     catalog,
		rules:       DefaultRules(),
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dataset returns the table the engine reads from.
func (e *Engine) Dataset() *climate.Dataset {
	return e.dataset
}

// Catalog returns the crop coefficient catalog.
func (e *Engine) Catalog() *crops.Catalog {
	return e.catalog
}

// Recommend evaluates every non-excluded crop of the municipality. An unknown
// municipality yields an empty Results slice, not an error.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Output, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d := decile.FromDate(req.PlantingDate)
	available := e.dataset.Crops(req.Municipality)

	excluded := make(map[string]struct{}, len(req.Exclude))
	for _, c := range req.Exclude {
		excluded[c] = struct{}{}
	}
	candidates := make([]string, 0, len(available))
	for _, c := range available {
		if _, skip := excluded[c]; !skip {
			candidates = append(candidates, c)
		}
	}

	results := make([]Result, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, crop := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.evaluate(gctx, req, d, crop)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recommendation run cancelled: %w", err)
	}

	return &Output{
		Decile:         d,
		Results:        results,
		AvailableCrops: available,
	}, nil
}

// Evaluate scores a single crop. It is exported for callers that need one
// crop's economics without a full run.
func (e *Engine) Evaluate(ctx context.Context, req Request, crop string) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	return e.evaluate(ctx, req, decile.FromDate(req.PlantingDate), crop), nil
}

func (e *Engine) evaluate(ctx context.Context, req Request, d int, crop string) Result {
	rec := e.dataset.Lookup(req.Municipality, crop, d)

	a := Assessment{
		Crop:          crop,
		RiskScore:     rec.RiskScore,
		RainfallMm:    rec.RainfallMm,
		RainSensitive: e.catalog.IsRainSensitive(crop),
		Observation:   ObservationOutOfWindow,
	}

	var yieldScore float64
	if rec.InWindow {
		ApplyRules(e.rules, &a)
		yieldScore = e.predictYield(ctx, predictor.Features{
			Risk:         a.RiskScore,
			RainfallMm:   rec.RainfallMm,
			TemperatureC: rec.TemperatureC,
			CostPerHa:    rec.CostPerHa,
			SoilCode:     predictor.SoilPlaceholder,
		}, crop)
	}

	costPerHa := rec.CostPerHa * e.catalog.CostMultiplier(crop)
	area := req.AreaHa
	if req.MaximizeArea {
		area = MaxArea(req.Budget, costPerHa)
	}

	econ := computeEconomics(economicsInput{
		risk:            a.RiskScore,
		yieldScore:      yieldScore,
		yieldMultiplier: e.catalog.YieldMultiplier(crop),
		defaultLoss:     e.catalog.LossFraction(crop),
		salePrice:       e.catalog.SalePrice(crop),
		costPerHa:       costPerHa,
		area:            area,
	})

	status := StatusViable
	switch {
	case econ.profit < 0:
		status = StatusLoss
	case !req.MaximizeArea && econ.totalCost > req.Budget:
		status = StatusInsufficientBudget
	}

	harvest := req.PlantingDate.AddDate(0, 0, e.catalog.CycleDays(crop))

	return Result{
		Crop:              crop,
		Decile:            d,
		DecileLabel:       decile.Label(d),
		InWindow:          rec.InWindow,
		RiskScore:         a.RiskScore,
		Observation:       a.Observation,
		ClimateLabel:      rec.ClimateLabel,
		RainfallMm:        rec.RainfallMm,
		TemperatureC:      rec.TemperatureC,
		YieldScore:        yieldScore,
		CostPerHa:         costPerHa,
		AreaHa:            area,
		TotalCost:         econ.totalCost,
		LossFraction:      econ.lossFraction,
		Revenue:           econ.revenue,
		NetProfit:         econ.profit,
		ROIPercent:        econ.roi,
		RiskAdjustedScore: econ.profit * SafetyFactor(a.RiskScore),
		Status:            status,
		CycleLabel:        e.catalog.CycleLabel(crop),
		HarvestDate:       harvest,
		HarvestLabel:      harvest.Format(harvestLabelLayout),
	}
}

// predictYield never fails: model errors and non-finite outputs degrade to the
// neutral score.
func (e *Engine) predictYield(ctx context.Context, f predictor.Features, crop string) float64 {
	if e.predictor == nil {
		return predictor.NeutralScore
	}
	score, err := e.predictor.Predict(ctx, f)
	if err == nil && !math.IsNaN(score) && !math.IsInf(score, 0) {
		return score
	}
	logger := types.LoggerFromContext(ctx, e.logger)
	if err != nil {
		logger.WarnContext(ctx, "yield predictor failed, using neutral score",
			"crop", crop,
			"run_id", types.GetRunID(ctx),
			"error", err,
		)
	} else {
		logger.WarnContext(ctx, "yield predictor returned non-finite score, using neutral score",
			"crop", crop,
			"run_id", types.GetRunID(ctx),
		)
	}
	return predictor.NeutralScore
}

// MaxArea returns the area the budget buys at costPerHa, never below
// MinAreaHa. A non-positive cost also yields MinAreaHa.
func MaxArea(budget, costPerHa float64) float64 {
	if costPerHa <= 0 {
		return MinAreaHa
	}
	area := budget / costPerHa
	if area < MinAreaHa {
		return MinAreaHa
	}
	return area
}
