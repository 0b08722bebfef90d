package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroia/internal/advisor"
	"agroia/internal/climate"
	"agroia/internal/core"
	"agroia/internal/crops"
	"agroia/internal/engine"
	"agroia/internal/predictor"
	"agroia/internal/types"
)

// =============================================================================
// Fixtures
// =============================================================================

type mockAdvisor struct {
	adviseFn func(ctx context.Context, req advisor.Request) (*advisor.Report, error)
	last     *advisor.Request
}

func (m *mockAdvisor) Advise(ctx context.Context, req advisor.Request) (*advisor.Report, error) {
	m.last = &req
	if m.adviseFn != nil {
		return m.adviseFn(ctx, req)
	}
	return &advisor.Report{RunID: "run-1", Municipality: req.Municipality}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDataset() *climate.Dataset {
	return climate.NewDataset([]climate.Record{
		{Municipality: "Rio Verde", Crop: "Soja", Decile: 28, RiskScore: 10, CostPerHa: 3500, RainfallMm: 50, TemperatureC: 27},
		{Municipality: "Rio Verde", Crop: "Soja", Decile: 30, RiskScore: 35, CostPerHa: 3500, RainfallMm: 70, TemperatureC: 28},
		{Municipality: "Rio Verde", Crop: "Tomate Mesa", Decile: 28, RiskScore: 20, CostPerHa: 3000, RainfallMm: 90, TemperatureC: 26},
		{Municipality: "Sorriso", Crop: "Milho", Decile: 5, RiskScore: 20, CostPerHa: 4000, RainfallMm: 60, TemperatureC: 29},
	})
}

func newRouter(register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", register)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

// =============================================================================
// RecommendationHandler
// =============================================================================

func recommendationRouter(a Advisor) http.Handler {
	h := NewRecommendationHandler(a, core.NewValidator(testLogger()), nil, testLogger())
	return newRouter(h.RegisterRoutes)
}

func TestHandleCreate_MapsRequest(t *testing.T) {
	adv := &mockAdvisor{}
	rec := doRequest(t, recommendationRouter(adv), http.MethodPost, "/v1/recommendations", map[string]any{
		"municipality":  "  Rio Verde ",
		"planting_date": "2025-10-15",
		"budget_tier":   "custom",
		"budget":        50000,
		"maximize_area": false,
		"area_ha":       2.5,
		"exclude":       []string{"Alface"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, adv.last)
	assert.Equal(t, "Rio Verde", adv.last.Municipality)
	assert.Equal(t, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC), adv.last.PlantingDate)
	assert.Equal(t, advisor.TierCustom, adv.last.BudgetTier)
	assert.Equal(t, 50000.0, adv.last.Budget)
	assert.False(t, adv.last.MaximizeArea)
	assert.Equal(t, 2.5, adv.last.AreaHa)
	assert.Equal(t, []string{"Alface"}, adv.last.Exclude)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
}

func TestHandleCreate_MaximizeDefaultsTrue(t *testing.T) {
	adv := &mockAdvisor{}
	rec := doRequest(t, recommendationRouter(adv), http.MethodPost, "/v1/recommendations",
		`{"municipality":"Rio Verde","planting_date":"2025-10-15","budget_tier":"small"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, adv.last.MaximizeArea)
}

func TestHandleCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{"malformed", `{"municipality":`, types.ErrCodeValidationInvalidJSON},
		{"unknown field", `{"municipio":"Rio Verde"}`, types.ErrCodeValidationInvalidJSON},
		{"missing municipality", `{"planting_date":"2025-10-15"}`, types.ErrCodeValidationMissingField},
		{"bad date", `{"municipality":"Rio Verde","planting_date":"15/10/2025"}`, types.ErrCodeValidationInvalidDate},
		{"bad tier", `{"municipality":"Rio Verde","planting_date":"2025-10-15","budget_tier":"mega"}`, types.ErrCodeValidationInvalidTier},
		{"negative budget", `{"municipality":"Rio Verde","planting_date":"2025-10-15","budget":-5}`, types.ErrCodeValidationInvalidBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &mockAdvisor{}
			rec := doRequest(t, recommendationRouter(adv), http.MethodPost, "/v1/recommendations", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
			assert.Nil(t, adv.last, "advisor must not run on invalid input")
		})
	}
}

func TestHandleCreate_AdvisorErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown municipality", types.NewAppError(types.ErrCodeNotFoundMunicipality, "no data", nil), http.StatusNotFound, string(types.ErrCodeNotFoundMunicipality)},
		{"generic", errors.New("boom"), http.StatusInternalServerError, string(types.ErrCodeInternalUnexpected)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &mockAdvisor{adviseFn: func(context.Context, advisor.Request) (*advisor.Report, error) { return nil, tt.err }}
			rec := doRequest(t, recommendationRouter(adv), http.MethodPost, "/v1/recommendations",
				`{"municipality":"Atlantis","planting_date":"2025-10-15"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestHandleCreate_WithRealAdvisor(t *testing.T) {
	eng := engine.New(testDataset(), crops.Default(), engine.WithPredictor(predictor.Neutral{}))
	adv := advisor.New(eng, advisor.WithLogger(testLogger()), advisor.WithIDGenerator(func() string { return "run-42" }))

	rec := doRequest(t, recommendationRouter(adv), http.MethodPost, "/v1/recommendations",
		`{"municipality":"Rio Verde","planting_date":"2025-10-01","budget_tier":"custom","budget":100000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data advisor.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-42", resp.Data.RunID)
	assert.Equal(t, 28, resp.Data.Decile)
	require.NotNil(t, resp.Data.Champion)
	assert.Equal(t, "Soja", resp.Data.Champion.Crop)
	assert.Equal(t, []string{"Soja", "Tomate Mesa"}, resp.Data.AvailableCrops)
	assert.False(t, resp.Data.Narrative.Available)
}

// =============================================================================
// MunicipalityHandler
// =============================================================================

func municipalityRouter() http.Handler {
	h := NewMunicipalityHandler(testDataset(), crops.Default(), testLogger())
	return newRouter(h.RegisterRoutes)
}

func TestHandleList(t *testing.T) {
	rec := doRequest(t, municipalityRouter(), http.MethodGet, "/v1/municipalities/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["Rio Verde","Sorriso"]}`, rec.Body.String())
}

func TestHandleList_EmptyDataset(t *testing.T) {
	h := NewMunicipalityHandler(climate.NewDataset(nil), nil, nil)
	rec := doRequest(t, newRouter(h.RegisterRoutes), http.MethodGet, "/v1/municipalities/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestHandleListCrops(t *testing.T) {
	rec := doRequest(t, municipalityRouter(), http.MethodGet, "/v1/municipalities/Rio%20Verde/crops", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data []CropWindow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	assert.Equal(t, "Soja", resp.Data[0].Crop)
	assert.Equal(t, 28, resp.Data[0].BestDecile)
	assert.Equal(t, 10.0, resp.Data[0].RiskScore)
	assert.Equal(t, 130.0, resp.Data[0].SalePrice)
	assert.False(t, resp.Data[0].RainSensitive)

	assert.Equal(t, "Tomate Mesa", resp.Data[1].Crop)
	assert.True(t, resp.Data[1].RainSensitive)
}

func TestHandleListCrops_UnknownMunicipality(t *testing.T) {
	rec := doRequest(t, municipalityRouter(), http.MethodGet, "/v1/municipalities/Atlantis/crops", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundMunicipality), errorCode(t, rec))
}

func TestHandleListCrops_EscapedNames(t *testing.T) {
	ds := climate.NewDataset([]climate.Record{
		{Municipality: "Vila 50%", Crop: "Soja", Decile: 28, RiskScore: 10, CostPerHa: 3500, RainfallMm: 50, TemperatureC: 27},
		{Municipality: "Ouro/Prata", Crop: "Milho", Decile: 5, RiskScore: 20, CostPerHa: 4000, RainfallMm: 60, TemperatureC: 29},
		{Municipality: "São Gabriel", Crop: "Soja", Decile: 30, RiskScore: 15, CostPerHa: 3600, RainfallMm: 55, TemperatureC: 26},
	})
	router := newRouter(NewMunicipalityHandler(ds, crops.Default(), testLogger()).RegisterRoutes)

	tests := []struct {
		name string
		path string
		crop string
	}{
		{"percent sign", "/v1/municipalities/Vila%2050%25/crops", "Soja"},
		{"escaped slash", "/v1/municipalities/Ouro%2FPrata/crops", "Milho"},
		{"accented", "/v1/municipalities/S%C3%A3o%20Gabriel/crops", "Soja"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp struct {
				Data []CropWindow `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, resp.Data, 1)
			assert.Equal(t, tt.crop, resp.Data[0].Crop)
		})
	}
}
