// Package vehicledata decides, per data category, whether to serve a vehicle
// from the stored record or pay a provider, then merges, scores, ledgers and
// persists the result.
package vehicledata

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/vehicledata/provider"
)

// costEpsilon absorbs float rounding when comparing GBP sums against a ceiling.
const costEpsilon = 1e-9

// Manager resolves vehicle data lookups.
type Manager struct {
	repo     Repository
	registry *provider.Registry
	cfg      *Config
	budgets  BudgetChecker
	now      func() time.Time
	tracer   trace.Tracer
	group    singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow sets the clock, for testing.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBudgets enables monthly per-provider spend limits.
func WithBudgets(b BudgetChecker) Option {
	return func(m *Manager) { m.budgets = b }
}

// NewManager creates a Manager. A nil cfg uses DefaultConfig.
func NewManager(repo Repository, registry *provider.Registry, cfg *Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		registry = provider.NewRegistry()
	}
	m := &Manager{
		repo:     repo,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
		tracer:   otel.Tracer("vehicledata"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the routing config in use.
func (m *Manager) Config() *Config {
	return m.cfg
}

// GetVehicleData resolves the requested categories for one registration.
// Provider failures, budget skips and persistence failures are reported in
// the result, never as an error; only ErrInvalidRequest is returned.
//
// Provider calls and the final write are detached from ctx cancellation so
// an abandoned request still completes and caches what it paid for.
// Identical concurrent requests in this process share one resolution.
func (m *Manager) GetVehicleData(ctx context.Context, req model.LookupRequest) (*model.LookupResult, error) {
	reg, err := NormalizeRegistration(req.Registration)
	if err != nil {
		return nil, err
	}
	types, err := m.requestTypes(req.DataTypes)
	if err != nil {
		return nil, err
	}
	if req.MaxCost < 0 {
		return nil, eris.Wrapf(ErrInvalidRequest, "max cost %.2f is negative", req.MaxCost)
	}

	key := fmt.Sprintf("%s|%v|%t|%.4f", reg, types, req.ForceRefresh, req.MaxCost)
	v, _, _ := m.group.Do(key, func() (any, error) {
		return m.resolve(context.WithoutCancel(ctx), reg, types, req.ForceRefresh, req.MaxCost), nil
	})

	return v.(*model.LookupResult).Clone(), nil
}

// requestTypes validates and orders the requested categories.
func (m *Manager) requestTypes(types []model.DataType) ([]model.DataType, error) {
	if len(types) == 0 {
		types = m.cfg.DefaultDataTypes
	}
	if len(types) == 0 {
		types = []model.DataType{model.DataTypeBasic}
	}
	set := make(map[model.DataType]bool, len(types))
	for _, dt := range types {
		if !dt.Valid() {
			return nil, eris.Wrapf(ErrInvalidRequest, "unknown data type %q", dt)
		}
		set[dt] = true
	}
	return model.OrderDataTypes(set), nil
}

func (m *Manager) resolve(ctx context.Context, reg string, types []model.DataType, force bool, maxCost float64) *model.LookupResult {
	ctx, span := m.tracer.Start(ctx, "vehicledata.GetVehicleData", trace.WithAttributes(
		attribute.String("registration", reg),
		attribute.Bool("force_refresh", force),
		attribute.Float64("max_cost", maxCost),
	))
	defer span.End()

	log := zap.L().With(zap.String("registration", reg))
	now := m.now().UTC()

	// A record that could not be read must not be overwritten: the upsert
	// replaces every column, so writing a partial record would erase it.
	rec, readErr := m.repo.GetVehicle(ctx, reg)
	if readErr != nil {
		log.Warn("vehicledata: read stored record failed, treating as miss", zap.Error(readErr))
		rec = nil
	}
	if rec == nil {
		rec = &model.VehicleRecord{Registration: reg}
	}

	result := &model.LookupResult{
		Registration: reg,
		Categories:   make(map[model.DataType]model.Resolution, len(types)),
	}

	fetched := false
	for _, dt := range types {
		if !force && m.cfg.Fresh(rec, dt, now) {
			result.Categories[dt] = model.ResolutionCache
			result.CacheHits++
			continue
		}

		r := m.fetch(ctx, log, rec, dt, maxCost, result)
		result.Categories[dt] = r
		if r == model.ResolutionFetched {
			fetched = true
		}
	}

	rec.DataCompletenessScore = rec.CompletenessScore()

	if fetched {
		rec.LastDataUpdate = &now
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if readErr != nil {
			log.Error("vehicledata: stored record unreadable, not persisting fetched data", zap.Error(readErr))
			span.RecordError(readErr)
		} else if err := m.repo.UpsertVehicle(ctx, rec); err != nil {
			log.Error("vehicledata: persist record failed", zap.Error(err))
			span.RecordError(err)
		} else {
			result.Persisted = true
		}
	}

	result.Data = project(rec, result.Categories)
	result.Sources = slices.Clone(rec.DataSources)
	result.CompletenessScore = rec.DataCompletenessScore

	span.SetAttributes(
		attribute.Float64("total_cost", result.TotalCost),
		attribute.Int("cache_hits", result.CacheHits),
		attribute.Int("api_calls", result.APICalls),
	)
	log.Debug("vehicledata: lookup complete",
		zap.Float64("total_cost", result.TotalCost),
		zap.Int("cache_hits", result.CacheHits),
		zap.Int("api_calls", result.APICalls),
		zap.Int("completeness", result.CompletenessScore),
	)
	return result
}

// fetch resolves one stale or missing category through its provider,
// updating rec and result in place.
func (m *Manager) fetch(ctx context.Context, log *zap.Logger, rec *model.VehicleRecord, dt model.DataType, maxCost float64, result *model.LookupResult) model.Resolution {
	name := m.cfg.ProviderFor(dt)
	ctx, span := m.tracer.Start(ctx, "vehicledata.fetch", trace.WithAttributes(
		attribute.String("data_type", string(dt)),
		attribute.String("provider", name),
	))
	defer span.End()

	log = log.With(zap.String("data_type", string(dt)), zap.String("provider", name))

	p := m.registry.Get(name)
	if p == nil || !provider.Supports(p, dt) {
		log.Warn("vehicledata: no provider registered for category")
		return model.ResolutionUnresolved
	}

	estimate := p.EstimateCost(dt)
	if result.TotalCost+estimate > maxCost+costEpsilon {
		log.Info("vehicledata: budget exceeded, skipping category",
			zap.Float64("estimate", estimate),
			zap.Float64("spent", result.TotalCost),
			zap.Float64("max_cost", maxCost),
		)
		span.SetAttributes(attribute.Bool("budget_skipped", true))
		return model.ResolutionUnresolved
	}
	if !m.withinMonthlyBudget(ctx, log, name, estimate) {
		span.SetAttributes(attribute.Bool("budget_skipped", true))
		return model.ResolutionUnresolved
	}

	res, err := p.Lookup(ctx, rec.Registration, dt)
	if err == nil && res == nil {
		err = provider.ErrNoData
	}
	result.APICalls++

	entry := model.CostLedgerEntry{
		ID:               uuid.NewString(),
		Registration:     rec.Registration,
		Provider:         name,
		DataType:         dt,
		RequestTimestamp: m.now().UTC(),
	}

	if err != nil {
		entry.Error = err.Error()
		m.recordCost(ctx, log, entry)
		log.Warn("vehicledata: provider lookup failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider lookup failed")
		return model.ResolutionUnresolved
	}

	// The ceiling was checked against the estimate; never charge beyond it.
	charged := res.CostGBP
	if charged > estimate+costEpsilon {
		log.Warn("vehicledata: provider charge exceeds estimate, clamping",
			zap.Float64("estimate", estimate),
			zap.Float64("reported", charged),
		)
		span.SetAttributes(attribute.Float64("reported_cost", charged))
		charged = estimate
	}

	merge(rec, res, m.now().UTC())
	entry.CostAmount = charged
	entry.Success = true
	m.recordCost(ctx, log, entry)
	result.TotalCost += charged
	return model.ResolutionFetched
}

// withinMonthlyBudget checks the provider's monthly limit. Free calls are
// always allowed; an unreadable budget blocks paid calls.
func (m *Manager) withinMonthlyBudget(ctx context.Context, log *zap.Logger, name string, estimate float64) bool {
	if m.budgets == nil || estimate <= 0 {
		return true
	}
	b, err := m.budgets.GetBudget(ctx, name, model.MonthStart(m.now()))
	if err != nil {
		log.Warn("vehicledata: read monthly budget failed, skipping paid call", zap.Error(err))
		return false
	}
	if b != nil && !b.Allows(estimate) {
		log.Info("vehicledata: monthly budget exhausted, skipping category",
			zap.Float64("estimate", estimate),
			zap.Float64("current_spend", b.CurrentSpend),
			zap.Float64("monthly_limit", b.MonthlyLimit),
		)
		return false
	}
	return true
}

func (m *Manager) recordCost(ctx context.Context, log *zap.Logger, entry model.CostLedgerEntry) {
	if err := m.repo.RecordCost(ctx, entry); err != nil {
		log.Error("vehicledata: record cost failed",
			zap.String("ledger_id", entry.ID),
			zap.Float64("cost", entry.CostAmount),
			zap.Error(err),
		)
	}
}
