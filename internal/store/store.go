// Package store persists vehicle records, the provider cost ledger and
// monthly provider budgets.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/db"
	"github.com/sells-group/vehicle-data/internal/model"
)

// VehicleFilter pages through stored vehicles, most recently updated first.
type VehicleFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for vehicle data.
type Store interface {
	// Vehicles
	GetVehicle(ctx context.Context, registration string) (*model.VehicleRecord, error)
	UpsertVehicle(ctx context.Context, rec *model.VehicleRecord) error
	ListVehicles(ctx context.Context, filter VehicleFilter) ([]model.VehicleRecord, error)

	// Cost ledger
	RecordCost(ctx context.Context, entry model.CostLedgerEntry) error
	UsageSummary(ctx context.Context, since time.Time) ([]model.UsageSummary, error)

	// Budgets
	GetBudget(ctx context.Context, provider string, month time.Time) (*model.Budget, error)
	SetBudget(ctx context.Context, provider string, month time.Time, limit float64) (*model.Budget, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// vehicleColumns is the column order used for every vehicles read and write.
var vehicleColumns = []string{
	"registration",
	"make", "model", "year", "colour", "fuel_type", "engine_capacity",
	"euro_status", "engine_code", "tyre_size_front", "tyre_size_rear",
	"tyre_pressure_front", "tyre_pressure_rear", "timing_belt_interval",
	"image_url", "image_expiry_date",
	"service_data", "mot_history", "mot_checked_at",
	"data_completeness_score", "data_sources", "last_data_update",
	"created_at", "updated_at",
	"basic_fetched_at", "technical_fetched_at", "service_fetched_at",
}

// vehicleUpsert keeps created_at from the first insert.
var vehicleUpsert = db.UpsertConfig{
	Table:        "vehicles",
	Columns:      vehicleColumns,
	ConflictKeys: []string{"registration"},
	UpdateCols:   vehicleUpdateCols(),
}

func vehicleUpdateCols() []string {
	cols := make([]string, 0, len(vehicleColumns))
	for _, c := range vehicleColumns {
		if c != "registration" && c != "created_at" {
			cols = append(cols, c)
		}
	}
	return cols
}

var selectVehicle = "SELECT " + strings.Join(vehicleColumns, ", ") + " FROM vehicles"

// vehicleArgs returns rec's values in vehicleColumns order. JSON columns are
// passed as text, which Postgres casts to JSONB and SQLite stores as TEXT.
func vehicleArgs(rec *model.VehicleRecord) ([]any, error) {
	var service any
	if len(rec.ServiceData) > 0 {
		b, err := json.Marshal(rec.ServiceData)
		if err != nil {
			return nil, eris.Wrap(err, "marshal service data")
		}
		service = string(b)
	}

	var mot any
	if rec.MOTHistory != nil {
		b, err := json.Marshal(rec.MOTHistory)
		if err != nil {
			return nil, eris.Wrap(err, "marshal mot history")
		}
		mot = string(b)
	}

	sources := rec.DataSources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "marshal data sources")
	}

	return []any{
		rec.Registration,
		rec.Make, rec.Model, rec.Year, rec.Colour, rec.FuelType, rec.EngineCapacity,
		rec.EuroStatus, rec.EngineCode, rec.TyreSizeFront, rec.TyreSizeRear,
		rec.TyrePressureFront, rec.TyrePressureRear, rec.TimingBeltInterval,
		rec.ImageURL, rec.ImageExpiryDate,
		service, mot, rec.MOTCheckedAt,
		rec.DataCompletenessScore, string(sourcesJSON), rec.LastDataUpdate,
		rec.CreatedAt, rec.UpdatedAt,
		rec.BasicFetchedAt, rec.TechnicalFetchedAt, rec.ServiceFetchedAt,
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVehicle(row scannable) (*model.VehicleRecord, error) {
	var rec model.VehicleRecord
	var service, mot, sources []byte

	err := row.Scan(
		&rec.Registration,
		&rec.Make, &rec.Model, &rec.Year, &rec.Colour, &rec.FuelType, &rec.EngineCapacity,
		&rec.EuroStatus, &rec.EngineCode, &rec.TyreSizeFront, &rec.TyreSizeRear,
		&rec.TyrePressureFront, &rec.TyrePressureRear, &rec.TimingBeltInterval,
		&rec.ImageURL, &rec.ImageExpiryDate,
		&service, &mot, &rec.MOTCheckedAt,
		&rec.DataCompletenessScore, &sources, &rec.LastDataUpdate,
		&rec.CreatedAt, &rec.UpdatedAt,
		&rec.BasicFetchedAt, &rec.TechnicalFetchedAt, &rec.ServiceFetchedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(service) > 0 {
		if err := json.Unmarshal(service, &rec.ServiceData); err != nil {
			return nil, eris.Wrap(err, "unmarshal service data")
		}
	}
	if len(mot) > 0 {
		if err := json.Unmarshal(mot, &rec.MOTHistory); err != nil {
			return nil, eris.Wrap(err, "unmarshal mot history")
		}
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &rec.DataSources); err != nil {
			return nil, eris.Wrap(err, "unmarshal data sources")
		}
	}
	return &rec, nil
}

func listLimit(f VehicleFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
