package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"agroia/internal/climate"
	"agroia/internal/decile"
	"agroia/internal/types"
)

const (
	defaultTemperatureC = 25.0
	defaultRainfallMm   = 0.0
)

var climateColumns = []string{
	"municipio", "cultura", "periodo", "risco_numerico",
	"custo_ha_est", "chuva_media_mm", "temp_media_c", "solo",
}

// ClimateRepository reads and writes the climate_risk table. It satisfies
// climate.Source.
type ClimateRepository struct {
	db DBTX
}

// NewClimateRepository creates a new ClimateRepository backed by the given
// database connection.
func NewClimateRepository(db DBTX) *ClimateRepository {
	return &ClimateRepository{db: db}
}

// LoadRecords returns every row in insertion order. Rows with an invalid
// decile are rejected so the caller never builds a dataset with a key that
// cannot be looked up.
func (r *ClimateRepository) LoadRecords(ctx context.Context) ([]climate.Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT municipio, cultura, periodo, risco_numerico, custo_ha_est,
		        chuva_media_mm, temp_media_c, solo
		 FROM climate_risk
		 ORDER BY id`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query climate table", err)
	}
	defer rows.Close()

	var records []climate.Record
	for rows.Next() {
		var (
			rec  climate.Record
			dec  int
			rain *float64
			temp *float64
			soil *string
		)
		if err := rows.Scan(&rec.Municipality, &rec.Crop, &dec, &rec.RiskScore, &rec.CostPerHa, &rain, &temp, &soil); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan climate row", err)
		}
		if !decile.Valid(dec) {
			return nil, types.NewAppError(types.ErrCodeInternalDataset,
				fmt.Sprintf("climate row %s/%s has invalid decile %d", rec.Municipality, rec.Crop, dec), nil)
		}
		rec.Decile = dec
		rec.RainfallMm = defaultRainfallMm
		if rain != nil {
			rec.RainfallMm = *rain
		}
		rec.TemperatureC = defaultTemperatureC
		if temp != nil {
			rec.TemperatureC = *temp
		}
		if soil != nil {
			rec.SoilCode = *soil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating climate rows", err)
	}
	return records, nil
}

// Import bulk-loads records with COPY. The table is not truncated first.
func (r *ClimateRepository) Import(ctx context.Context, cp Copier, records []climate.Record) (int64, error) {
	n, err := cp.CopyFrom(ctx, pgx.Identifier{"climate_risk"}, climateColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			var soil any
			if rec.SoilCode != "" {
				soil = rec.SoilCode
			}
			return []any{
				rec.Municipality, rec.Crop, int16(rec.Decile), rec.RiskScore,
				rec.CostPerHa, rec.RainfallMm, rec.TemperatureC, soil,
			}, nil
		}))
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to import climate records", err)
	}
	return n, nil
}
