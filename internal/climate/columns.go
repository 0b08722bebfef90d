package climate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"agroia/internal/decile"
)

// Canonical column names of the climate/risk table.
const (
	ColMunicipality = "municipio"
	ColCrop         = "cultura"
	ColDecile       = "periodo"
	ColRisk         = "risco_numerico"
	ColCostPerHa    = "custo_ha_est"
	ColRainfall     = "chuva_media_mm"
	ColTemperature  = "temp_media_c"
	ColSoil         = "solo"
)

// columnAliases maps names produced by the enrichment pipelines to the
// canonical names.
var columnAliases = map[string]string{
	"chuva_acumulada_decendio": ColRainfall,
	"chuva":                    ColRainfall,
	"temp":                     ColTemperature,
	"temperature_2m_mean":      ColTemperature,
	"decendio":                 ColDecile,
}

// NormalizeColumn returns the canonical name for a column header.
func NormalizeColumn(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := columnAliases[n]; ok {
		return canonical
	}
	return n
}

// NormalizeHeader normalises every column of a header row.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = NormalizeColumn(h)
	}
	return out
}

// RecordFromRow builds a Record from canonical column -> raw value pairs.
// Missing periodo defaults to decile 1, missing rainfall to 0 mm and missing
// temperature to 25 °C. A risk value of "INAPTO" maps to 100.
func RecordFromRow(row map[string]string) (Record, error) {
	r := Record{
		Municipality: strings.TrimSpace(row[ColMunicipality]),
		Crop:         strings.TrimSpace(row[ColCrop]),
		Decile:       decile.Min,
		RainfallMm:   defaultRainfallMm,
		TemperatureC: defaultTemperatureC,
		SoilCode:     strings.TrimSpace(row[ColSoil]),
	}
	if r.Municipality == "" {
		return Record{}, fmt.Errorf("missing %s", ColMunicipality)
	}
	if r.Crop == "" {
		return Record{}, fmt.Errorf("missing %s", ColCrop)
	}

	if raw := strings.TrimSpace(row[ColDecile]); raw != "" {
		d, err := parseNumber(raw)
		if err != nil {
			return Record{}, fmt.Errorf("%s: %w", ColDecile, err)
		}
		if d != math.Trunc(d) {
			return Record{}, fmt.Errorf("%s: %q is not a whole decile", ColDecile, raw)
		}
		if d < decile.Min || d > decile.Max {
			return Record{}, fmt.Errorf("%s: %q outside [1,36]", ColDecile, raw)
		}
		r.Decile = int(d)
	}

	risk, err := parseRisk(row[ColRisk])
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColRisk, err)
	}
	r.RiskScore = risk

	if r.CostPerHa, err = parseOptional(row[ColCostPerHa], 0); err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColCostPerHa, err)
	}
	if r.RainfallMm, err = parseOptional(row[ColRainfall], defaultRainfallMm); err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColRainfall, err)
	}
	if r.TemperatureC, err = parseOptional(row[ColTemperature], defaultTemperatureC); err != nil {
		return Record{}, fmt.Errorf("%s: %w", ColTemperature, err)
	}
	return r, nil
}

func parseRisk(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing value")
	}
	if strings.EqualFold(raw, "INAPTO") {
		return inaptoRiskScore, nil
	}
	v, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < minRiskScore || v > maxRiskScore {
		return 0, fmt.Errorf("risk %q outside [0,100]", raw)
	}
	return v, nil
}

func parseOptional(raw string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return def, nil
	}
	return parseNumber(raw)
}

// parseNumber accepts both "12.5" and the pt-BR decimal comma "12,5".
func parseNumber(raw string) (float64, error) {
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}
