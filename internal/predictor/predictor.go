// Package predictor defines the yield-score model consumed by the
// recommendation engine and its in-process implementations.
//
// The remote inference client lives in internal/external and satisfies the
// same interface.
package predictor

import (
	"context"
)

const (
	// NeutralScore is the yield score used when no model is configured.
	NeutralScore = 50.0

	// SoilPlaceholder is the soil code sent for every in-window record.
	SoilPlaceholder = 2.0
)

// Features is the ordered model input.
type Features struct {
	Risk         float64
	RainfallMm   float64
	TemperatureC float64
	CostPerHa    float64
	SoilCode     float64
}

// Vector returns the features as [risk, rainfall, temperature, costPerHa, soilCode].
func (f Features) Vector() []float64 {
	return []float64{f.Risk, f.RainfallMm, f.TemperatureC, f.CostPerHa, f.SoilCode}
}

// YieldPredictor maps a feature vector to a yield score. Implementations must
// be safe for concurrent use and deterministic for identical inputs.
type YieldPredictor interface {
	Predict(ctx context.Context, f Features) (float64, error)
}

// Func adapts a plain function to YieldPredictor.
type Func func(ctx context.Context, f Features) (float64, error)

// Predict implements YieldPredictor.
func (fn Func) Predict(ctx context.Context, f Features) (float64, error) {
	return fn(ctx, f)
}

// Neutral always returns NeutralScore.
type Neutral struct{}

// Predict implements YieldPredictor.
func (Neutral) Predict(context.Context, Features) (float64, error) {
	return NeutralScore, nil
}

// Formula reproduces the target the productivity model was trained on:
// 100 - 0.8*risk + 5*soil. Rainfall, temperature and cost do not contribute.
type Formula struct{}

// Predict implements YieldPredictor.
func (Formula) Predict(_ context.Context, f Features) (float64, error) {
	return 100 - f.Risk*0.8 + f.SoilCode*5, nil
}
