package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroia/internal/climate"
	"agroia/internal/crops"
	"agroia/internal/predictor"
	"agroia/internal/types"
)

// plantingDate falls in decile 30 (October 21-31).
var plantingDate = time.Date(2025, time.October, 25, 0, 0, 0, 0, time.UTC)

func rioVerde(records ...climate.Record) *climate.Dataset {
	return climate.NewDataset(records)
}

func rec(crop string, risk, cost, rain float64) climate.Record {
	return climate.Record{
		Municipality: "Rio Verde",
		Crop:         crop,
		Decile:       30,
		RiskScore:    risk,
		CostPerHa:    cost,
		RainfallMm:   rain,
		TemperatureC: 24,
	}
}

func maximize(budget float64) Request {
	return Request{
		Municipality: "Rio Verde",
		PlantingDate: plantingDate,
		Budget:       budget,
		MaximizeArea: true,
	}
}

func only(t *testing.T, out *Output) Result {
	t.Helper()
	require.Len(t, out.Results, 1)
	return out.Results[0]
}

func TestRecommend_SojaLowRisk(t *testing.T) {
	e := New(rioVerde(rec("Soja", 20, 4500, 50)), crops.Default())

	out, err := e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	r := only(t, out)

	assert.Equal(t, 30, out.Decile)
	assert.InDelta(t, 20000.0/4500.0, r.AreaHa, 1e-9)
	assert.Equal(t, "Ideal (50mm)", r.ClimateLabel)
	assert.Equal(t, ObservationMediumRisk, r.Observation, "risk 20 sits on the medium tier boundary")
	assert.Equal(t, predictor.NeutralScore, r.YieldScore)
	assert.Equal(t, 0.05, r.LossFraction)
	assert.InDelta(t, 20000.0, r.TotalCost, 1e-6)

	grossYield := 50 * 1.0 * r.AreaHa
	wantRevenue := grossYield * 0.95 * 130
	assert.InDelta(t, wantRevenue, r.Revenue, 1e-6)
	assert.InDelta(t, wantRevenue-20000, r.NetProfit, 1e-6)
	assert.InDelta(t, r.NetProfit, r.RiskAdjustedScore, 1e-9, "safety factor is 1.0 at risk 20")
	assert.InDelta(t, r.NetProfit/r.TotalCost*100, r.ROIPercent, 1e-9)
	assert.Equal(t, StatusViable, r.Status)
	assert.Equal(t, "22/02/2026", r.HarvestLabel)
	assert.Equal(t, "Out/Fim", r.DecileLabel)
	assert.True(t, r.InWindow)
}

func TestRecommend_SojaHighRisk(t *testing.T) {
	e := New(rioVerde(rec("Soja", 45, 4500, 50)), crops.Default())

	out, err := e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	r := only(t, out)

	assert.Equal(t, 0.50, r.LossFraction)
	assert.Equal(t, ObservationHighRisk, r.Observation)
	assert.InDelta(t, r.NetProfit*0.1, r.RiskAdjustedScore, 1e-9)
}

func TestRecommend_SensitiveCropExcessRain(t *testing.T) {
	var got predictor.Features
	p := predictor.Func(func(_ context.Context, f predictor.Features) (float64, error) {
		got = f
		return 70, nil
	})
	e := New(rioVerde(rec("Tomate Mesa", 10, 3000, 90)), crops.Default(), WithPredictor(p))

	out, err := e.Recommend(context.Background(), maximize(50000))
	require.NoError(t, err)
	r := only(t, out)

	assert.Equal(t, 50.0, r.RiskScore)
	assert.Equal(t, ObservationExcessRain, r.Observation)
	assert.Equal(t, 0.95, r.LossFraction)
	assert.Equal(t, "Chuva Intensa (90mm)", r.ClimateLabel)
	assert.Equal(t, 70.0, r.YieldScore)
	assert.Equal(t, []float64{50, 90, 24, 3000, 2}, got.Vector(), "predictor sees the raised risk and the base cost")
	assert.InDelta(t, 3000*2.0, r.CostPerHa, 1e-9)
}

func TestRecommend_InsensitiveCropHeavyRainUsesTiers(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 4500, 95)), crops.Default())

	out, err := e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	r := only(t, out)

	assert.Equal(t, 10.0, r.RiskScore)
	assert.Equal(t, ObservationFavorable, r.Observation)
}

func TestRecommend_OutOfWindowFallback(t *testing.T) {
	called := false
	p := predictor.Func(func(context.Context, predictor.Features) (float64, error) {
		called = true
		return 99, nil
	})
	ds := climate.NewDataset([]climate.Record{{Municipality: "Rio Verde", Crop: "Milho", Decile: 1, RiskScore: 5, CostPerHa: 100}})
	e := New(ds, crops.Default(), WithPredictor(p))

	out, err := e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	r := only(t, out)

	assert.False(t, called, "no prediction outside the planting window")
	assert.False(t, r.InWindow)
	assert.Equal(t, 100.0, r.RiskScore)
	assert.Equal(t, ObservationOutOfWindow, r.Observation)
	assert.Equal(t, "Desconhecido", r.ClimateLabel)
	assert.Zero(t, r.YieldScore)
	assert.InDelta(t, 2000.0, r.CostPerHa, 1e-9)
	assert.Equal(t, 0.95, r.LossFraction)
	assert.Equal(t, StatusLoss, r.Status)
	assert.InDelta(t, -20000.0, r.NetProfit, 1e-6)
	assert.InDelta(t, -2000.0, r.RiskAdjustedScore, 1e-6)
}

func TestRecommend_InsufficientBudget(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default())

	out, err := e.Recommend(context.Background(), Request{
		Municipality: "Rio Verde",
		PlantingDate: plantingDate,
		Budget:       20000,
		AreaHa:       10,
	})
	require.NoError(t, err)
	r := only(t, out)

	assert.Equal(t, 10.0, r.AreaHa)
	assert.InDelta(t, 45000.0, r.TotalCost, 1e-6)
	require.GreaterOrEqual(t, r.NetProfit, 0.0)
	assert.Equal(t, StatusInsufficientBudget, r.Status)
}

func TestRecommend_ZeroCost(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 0, 50)), crops.Default())

	out, err := e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	r := only(t, out)

	assert.Equal(t, MinAreaHa, r.AreaHa)
	assert.Zero(t, r.TotalCost)
	assert.Equal(t, 0.0, r.ROIPercent)
	assert.False(t, math.IsInf(r.ROIPercent, 0))
}

func TestRecommend_AreaFloor(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default())

	out, err := e.Recommend(context.Background(), maximize(100))
	require.NoError(t, err)
	assert.Equal(t, MinAreaHa, only(t, out).AreaHa)
}

func TestRecommend_ExclusionsAndAvailable(t *testing.T) {
	e := New(rioVerde(
		rec("Soja", 10, 4500, 50),
		rec("Milho", 10, 3800, 50),
		rec("Banana", 10, 9000, 50),
	), crops.Default())

	req := maximize(20000)
	req.Exclude = []string{"Milho"}
	out, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"Soja", "Milho", "Banana"}, out.AvailableCrops)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "Soja", out.Results[0].Crop)
	assert.Equal(t, "Banana", out.Results[1].Crop)
}

func TestRecommend_UnknownMunicipality(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default())

	req := maximize(20000)
	req.Municipality = "Goiânia"
	out, err := e.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.AvailableCrops)
}

func TestRecommend_UnknownCropDefaults(t *testing.T) {
	e := New(rioVerde(rec("Sorgo", 10, 1000, 50)), crops.Default())

	out, err := e.Recommend(context.Background(), maximize(10000))
	require.NoError(t, err)
	r := only(t, out)

	assert.Zero(t, r.Revenue, "unknown crops have no sale price")
	assert.Equal(t, 0.10, r.LossFraction)
	assert.Equal(t, crops.DefaultCycleLabel, r.CycleLabel)
	assert.Equal(t, StatusLoss, r.Status)
}

func TestRecommend_PredictorErrorDegrades(t *testing.T) {
	p := predictor.Func(func(context.Context, predictor.Features) (float64, error) {
		return 0, errors.New("model offline")
	})
	e := New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default(), WithPredictor(p))

	out, err := e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	assert.Equal(t, predictor.NeutralScore, only(t, out).YieldScore)

	nan := predictor.Func(func(context.Context, predictor.Features) (float64, error) {
		return math.NaN(), nil
	})
	e = New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default(), WithPredictor(nan))
	out, err = e.Recommend(context.Background(), maximize(20000))
	require.NoError(t, err)
	assert.Equal(t, predictor.NeutralScore, only(t, out).YieldScore)
}

func TestRecommend_Deterministic(t *testing.T) {
	ds := rioVerde(
		rec("Soja", 10, 4500, 50),
		rec("Milho", 35, 3800, 50),
		rec("Banana", 55, 9000, 50),
		rec("Tomate Mesa", 10, 3000, 90),
		rec("Alface", 25, 2000, 40),
		rec("Maracujá", 15, 2500, 20),
	)
	var mu sync.Mutex
	calls := 0
	p := predictor.Func(func(_ context.Context, f predictor.Features) (float64, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return predictor.Formula{}.Predict(context.Background(), f)
	})

	seq := New(ds, crops.Default(), WithPredictor(p))
	par := New(ds, crops.Default(), WithPredictor(p), WithParallelism(4))

	first, err := seq.Recommend(context.Background(), maximize(50000))
	require.NoError(t, err)
	second, err := par.Recommend(context.Background(), maximize(50000))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 12, calls)
}

func TestRecommend_Cancelled(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recommend(ctx, maximize(20000))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_Validate(t *testing.T) {
	base := maximize(20000)
	tests := []struct {
		name   string
		mutate func(r *Request)
		code   types.ErrorCode
	}{
		{"missing municipality", func(r *Request) { r.Municipality = "" }, types.ErrCodeValidationMissingField},
		{"missing date", func(r *Request) { r.PlantingDate = time.Time{} }, types.ErrCodeValidationInvalidDate},
		{"zero budget", func(r *Request) { r.Budget = 0 }, types.ErrCodeValidationInvalidBudget},
		{"nan budget", func(r *Request) { r.Budget = math.NaN() }, types.ErrCodeValidationInvalidBudget},
		{"fixed area zero", func(r *Request) { r.MaximizeArea = false; r.AreaHa = 0 }, types.ErrCodeValidationInvalidArea},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
	assert.NoError(t, base.Validate())
}

func TestEvaluate(t *testing.T) {
	e := New(rioVerde(rec("Soja", 10, 4500, 50)), crops.Default())
	r, err := e.Evaluate(context.Background(), maximize(9000), "Soja")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, r.AreaHa, 1e-9)

	_, err = e.Evaluate(context.Background(), Request{}, "Soja")
	assert.Error(t, err)
}
