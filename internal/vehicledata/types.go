package vehicledata

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/model"
)

var (
	// ErrInvalidRequest is returned for a missing or malformed registration,
	// an unknown data type or a negative cost ceiling.
	ErrInvalidRequest = eris.New("vehicledata: invalid request")

	// ErrNotFound is returned by Summary when nothing is stored for a registration.
	ErrNotFound = eris.New("vehicledata: vehicle not found")
)

// Repository is the persistence the manager needs.
type Repository interface {
	// GetVehicle returns (nil, nil) when the registration is unknown.
	GetVehicle(ctx context.Context, registration string) (*model.VehicleRecord, error)
	UpsertVehicle(ctx context.Context, rec *model.VehicleRecord) error
	RecordCost(ctx context.Context, entry model.CostLedgerEntry) error
}

// BudgetChecker reads monthly provider budgets. A nil budget means no limit.
type BudgetChecker interface {
	GetBudget(ctx context.Context, provider string, month time.Time) (*model.Budget, error)
}

// BulkRequest is a batch of lookups sharing one set of options.
type BulkRequest struct {
	Registrations     []string         `json:"registrations"`
	DataTypes         []model.DataType `json:"data_types"`
	ForceRefresh      bool             `json:"force_refresh"`
	MaxCostPerVehicle float64          `json:"max_cost_per_vehicle"`
	MaxTotalCost      float64          `json:"max_total_cost"` // 0 = no batch ceiling
}

// BulkItem is the outcome for one registration in a batch.
type BulkItem struct {
	Registration string              `json:"registration"`
	Result       *model.LookupResult `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// BulkResult aggregates a batch.
type BulkResult struct {
	Items     []BulkItem `json:"items"`
	TotalCost float64    `json:"total_cost"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

// Summary is the stored view of one vehicle with per-category freshness.
type Summary struct {
	Record            *model.VehicleRecord    `json:"record"`
	CompletenessScore int                     `json:"completeness_score"`
	Freshness         map[model.DataType]bool `json:"freshness"`
	MissingCategories []model.DataType        `json:"missing_categories"`
}
