package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"agroia/internal/climate"
	"agroia/internal/core"
	"agroia/internal/crops"
	"agroia/internal/decile"
	"agroia/internal/types"
)

// DatasetReader is the read side of the climate table used by the catalog
// endpoints.
type DatasetReader interface {
	Municipalities() []string
	Crops(municipality string) []string
	BestWindow(municipality, crop string) (climate.Record, bool)
}

// CropWindow describes a crop grown in a municipality and its lowest-risk
// planting decile.
type CropWindow struct {
	Crop            string  `json:"crop"`
	BestDecile      int     `json:"best_decile"`
	BestDecileLabel string  `json:"best_decile_label"`
	RiskScore       float64 `json:"risk_score"`
	CostPerHa       float64 `json:"estimated_cost_per_ha"`
	RainfallMm      float64 `json:"rainfall_mm"`
	CycleLabel      string  `json:"cycle_label"`
	RainSensitive   bool    `json:"rain_sensitive"`
	SalePrice       float64 `json:"sale_price"`
}

// MunicipalityHandler serves the dataset catalog.
type MunicipalityHandler struct {
	dataset DatasetReader
	catalog *crops.Catalog
	logger  *slog.Logger
}

// NewMunicipalityHandler creates a MunicipalityHandler.
func NewMunicipalityHandler(ds DatasetReader, catalog *crops.Catalog, logger *slog.Logger) *MunicipalityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = crops.Default()
	}
	return &MunicipalityHandler{dataset: ds, catalog: catalog, logger: logger}
}

// RegisterRoutes mounts the catalog endpoints.
func (h *MunicipalityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/municipalities", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{municipality}/crops", h.HandleListCrops)
	})
}

// HandleList handles GET /v1/municipalities.
func (h *MunicipalityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names := h.dataset.Municipalities()
	if names == nil {
		names = []string{}
	}
	core.Data(w, r, http.StatusOK, names)
}

// HandleListCrops handles GET /v1/municipalities/{municipality}/crops.
func (h *MunicipalityHandler) HandleListCrops(w http.ResponseWriter, r *http.Request) {
	municipality, err := pathParam(r, "municipality")
	if err != nil || strings.TrimSpace(municipality) == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidRequest, "invalid municipality in path", err))
		return
	}

	names := h.dataset.Crops(municipality)
	if len(names) == 0 {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundMunicipality,
			"no historical crop data for municipality", nil,
			map[string]any{"municipality": municipality}))
		return
	}

	windows := make([]CropWindow, 0, len(names))
	for _, name := range names {
		rec, ok := h.dataset.BestWindow(municipality, name)
		if !ok {
			continue
		}
		windows = append(windows, CropWindow{
			Crop:            name,
			BestDecile:      rec.Decile,
			BestDecileLabel: decile.Label(rec.Decile),
			RiskScore:       rec.RiskScore,
			CostPerHa:       rec.CostPerHa,
			RainfallMm:      rec.RainfallMm,
			CycleLabel:      h.catalog.CycleLabel(name),
			RainSensitive:   h.catalog.IsRainSensitive(name),
			SalePrice:       h.catalog.SalePrice(name),
		})
	}
	core.Data(w, r, http.StatusOK, windows)
}

// pathParam returns a decoded URL parameter. chi matches against RawPath when
// the request carries one (e.g. an escaped slash), and the parameter is then
// still percent-encoded; otherwise it is already decoded.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}
