// Package handlers contains the HTTP handlers of the AgroIA advisor API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"agroia/internal/advisor"
	"agroia/internal/core"
	"agroia/internal/types"
)

// Advisor is the recommendation service contract. Defined locally so tests
// can inject a fake.
type Advisor interface {
	Advise(ctx context.Context, req advisor.Request) (*advisor.Report, error)
}

// RecommendationRequest is the POST /v1/recommendations body.
type RecommendationRequest struct {
	Municipality string   `json:"municipality" validate:"required"`
	PlantingDate string   `json:"planting_date" validate:"required,date"`
	BudgetTier   string   `json:"budget_tier" validate:"budget_tier"`
	Budget       float64  `json:"budget" validate:"gte=0"`
	MaximizeArea *bool    `json:"maximize_area"`
	AreaHa       float64  `json:"area_ha" validate:"gte=0"`
	Exclude      []string `json:"exclude" validate:"max=20,dive,required"`
}

// RecommendationHandler serves recommendation runs.
type RecommendationHandler struct {
	advisor   Advisor
	validator *core.Validator
	location  *time.Location
	logger    *slog.Logger
}

// NewRecommendationHandler creates a RecommendationHandler. Planting dates
// are interpreted in loc (UTC when nil).
func NewRecommendationHandler(a Advisor, val *core.Validator, loc *time.Location, logger *slog.Logger) *RecommendationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RecommendationHandler{advisor: a, validator: val, location: loc, logger: logger}
}

// RegisterRoutes mounts the recommendation endpoints.
func (h *RecommendationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/recommendations", h.HandleCreate)
}

// HandleCreate handles POST /v1/recommendations. maximize_area defaults to
// true when omitted.
func (h *RecommendationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.Municipality = strings.TrimSpace(req.Municipality)
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	date, err := time.ParseInLocation(core.DateLayout, req.PlantingDate, h.location)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidDate, "planting_date must be YYYY-MM-DD", err))
		return
	}

	maximize := true
	if req.MaximizeArea != nil {
		maximize = *req.MaximizeArea
	}

	report, err := h.advisor.Advise(r.Context(), advisor.Request{
		Municipality: req.Municipality,
		PlantingDate: date,
		BudgetTier:   advisor.BudgetTier(req.BudgetTier),
		Budget:       req.Budget,
		MaximizeArea: maximize,
		AreaHa:       req.AreaHa,
		Exclude:      req.Exclude,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, report)
}
