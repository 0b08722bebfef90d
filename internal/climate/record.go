// Package climate holds the precomputed ZARC-style climate/risk table: one
// record per (municipality, crop, decile) with the agronomic risk score, the
// estimated cost per hectare and the decile's rainfall and temperature.
//
// A Dataset is built once and is read-only afterwards; concurrent lookups need
// no locking.
package climate

import (
	"fmt"
)

// Out-of-window fallback values, used when the table has no record for the
// requested planting window.
const (
	FallbackRiskScore        = 100.0
	FallbackCostPerHa        = 2000.0
	FallbackRainfallMm       = 0.0
	FallbackTemperatureC     = 30.0
	FallbackObservation      = "Fora da Janela"
	FallbackClimateLabel     = "Desconhecido"
	defaultTemperatureC      = 25.0
	defaultRainfallMm        = 0.0
	inaptoRiskScore          = 100.0
	minRiskScore             = 0.0
	maxRiskScore             = 100.0
	dryRainfallThresholdMm   = 15.0
	heavyRainfallThresholdMm = 80.0
)

// Record is a single row of the climate/risk table.
type Record struct {
	Municipality string  `json:"municipality"`
	Crop         string  `json:"crop"`
	Decile       int     `json:"decile"`
	RiskScore    float64 `json:"risk_score"`
	CostPerHa    float64 `json:"estimated_cost_per_ha"`
	RainfallMm   float64 `json:"rainfall_mm"`
	TemperatureC float64 `json:"temperature_c"`
	// SoilCode is the ZARC soil class (AD1, AD2, AD3); empty when unknown.
	SoilCode string `json:"soil_code,omitempty"`
}

// Lookup is the result of resolving a planting window against the table.
type Lookup struct {
	Record
	// InWindow is false when the fallback record was substituted.
	InWindow bool `json:"in_window"`
	// ClimateLabel summarises the decile's rainfall, e.g. "Ideal (50mm)".
	ClimateLabel string `json:"climate_label"`
}

// Fallback returns the penalised record used when no row matches.
func Fallback(municipality, crop string, decile int) Lookup {
	return Lookup{
		Record: Record{
			Municipality: municipality,
			Crop:         crop,
			Decile:       decile,
			RiskScore:    FallbackRiskScore,
			CostPerHa:    FallbackCostPerHa,
			RainfallMm:   FallbackRainfallMm,
			TemperatureC: FallbackTemperatureC,
		},
		InWindow:     false,
		ClimateLabel: FallbackClimateLabel,
	}
}

// RainBand classifies a decile's rainfall.
type RainBand string

const (
	RainDry   RainBand = "dry"
	RainIdeal RainBand = "ideal"
	RainHeavy RainBand = "heavy"
)

// ClassifyRain returns the rainfall band: below 15 mm is dry, above 80 mm is
// heavy rain, anything in between is ideal.
func ClassifyRain(mm float64) RainBand {
	switch {
	case mm < dryRainfallThresholdMm:
		return RainDry
	case mm > heavyRainfallThresholdMm:
		return RainHeavy
	default:
		return RainIdeal
	}
}

// IsHeavyRain reports whether rainfall exceeds the heavy-rain threshold.
func IsHeavyRain(mm float64) bool {
	return ClassifyRain(mm) == RainHeavy
}

// ClimateLabel renders the rainfall band with its value rounded to whole
// millimetres, for example "Seco (9mm)", "Ideal (50mm)" or
// "Chuva Intensa (95mm)".
func ClimateLabel(mm float64) string {
	switch ClassifyRain(mm) {
	case RainDry:
		return fmt.Sprintf("Seco (%.0fmm)", mm)
	case RainHeavy:
		return fmt.Sprintf("Chuva Intensa (%.0fmm)", mm)
	default:
		return fmt.Sprintf("Ideal (%.0fmm)", mm)
	}
}
