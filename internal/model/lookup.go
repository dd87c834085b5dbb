package model

import (
	"maps"
	"slices"
	"time"
)

// LookupRequest asks for a set of categories for one registration.
type LookupRequest struct {
	Registration string     `json:"registration"`
	DataTypes    []DataType `json:"data_types"`
	ForceRefresh bool       `json:"force_refresh"`
	MaxCost      float64    `json:"max_cost"` // GBP ceiling for this call
}

// Resolution describes how a category was satisfied in one call.
type Resolution string

const (
	ResolutionCache      Resolution = "cache"
	ResolutionFetched    Resolution = "fetched"
	ResolutionUnresolved Resolution = "unresolved"
)

// LookupResult is returned to callers of a single lookup.
type LookupResult struct {
	Registration      string                  `json:"registration"`
	Data              VehicleData             `json:"data"`
	TotalCost         float64                 `json:"total_cost"`
	CacheHits         int                     `json:"cache_hits"`
	APICalls          int                     `json:"api_calls"`
	Categories        map[DataType]Resolution `json:"categories"`
	Sources           []string                `json:"sources"`
	CompletenessScore int                     `json:"completeness_score"`
	Persisted         bool                    `json:"persisted"`
}

// Clone returns a copy that shares no maps, slices or pointers with r.
func (r *LookupResult) Clone() *LookupResult {
	cp := *r
	cp.Data = r.Data.Clone()
	cp.Categories = maps.Clone(r.Categories)
	cp.Sources = slices.Clone(r.Sources)
	return &cp
}

// CostLedgerEntry is one row of the append-only provider usage ledger.
type CostLedgerEntry struct {
	ID               string    `json:"id"`
	Registration     string    `json:"registration"`
	Provider         string    `json:"provider"`
	DataType         DataType  `json:"data_type"`
	CostAmount       float64   `json:"cost_amount"`
	CachedHit        bool      `json:"cached_hit"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	RequestTimestamp time.Time `json:"request_timestamp"`
}

// Budget is a monthly spend ceiling for one provider. A zero MonthlyLimit
// means unlimited.
type Budget struct {
	Provider     string    `json:"provider"`
	Month        time.Time `json:"month"`
	MonthlyLimit float64   `json:"monthly_limit"`
	CurrentSpend float64   `json:"current_spend"`
}

// Remaining returns the unspent amount, or -1 when the budget is unlimited.
func (b Budget) Remaining() float64 {
	if b.MonthlyLimit <= 0 {
		return -1
	}
	r := b.MonthlyLimit - b.CurrentSpend
	if r < 0 {
		return 0
	}
	return r
}

// Allows reports whether charging cost keeps spend within the limit.
func (b Budget) Allows(cost float64) bool {
	if b.MonthlyLimit <= 0 {
		return true
	}
	return b.CurrentSpend+cost <= b.MonthlyLimit
}

// MonthStart truncates t to the first instant of its UTC month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// UsageSummary aggregates ledger rows for one provider.
type UsageSummary struct {
	Provider  string  `json:"provider"`
	Calls     int     `json:"calls"`
	Failures  int     `json:"failures"`
	TotalCost float64 `json:"total_cost"`
}
