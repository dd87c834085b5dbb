package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/db"
	"github.com/sells-group/vehicle-data/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vehicles (
	registration            TEXT PRIMARY KEY,
	make                    TEXT,
	model                   TEXT,
	year                    INTEGER,
	colour                  TEXT,
	fuel_type               TEXT,
	engine_capacity         INTEGER,
	euro_status             TEXT,
	engine_code             TEXT,
	tyre_size_front         TEXT,
	tyre_size_rear          TEXT,
	tyre_pressure_front     DOUBLE PRECISION,
	tyre_pressure_rear      DOUBLE PRECISION,
	timing_belt_interval    INTEGER,
	image_url               TEXT,
	image_expiry_date       TIMESTAMPTZ,
	service_data            JSONB,
	mot_history             JSONB,
	mot_checked_at          TIMESTAMPTZ,
	data_completeness_score INTEGER NOT NULL DEFAULT 0,
	data_sources            JSONB NOT NULL DEFAULT '[]'::jsonb,
	last_data_update        TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	basic_fetched_at        TIMESTAMPTZ,
	technical_fetched_at    TIMESTAMPTZ,
	service_fetched_at      TIMESTAMPTZ
);

ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS basic_fetched_at TIMESTAMPTZ;
ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS technical_fetched_at TIMESTAMPTZ;
ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS service_fetched_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_vehicles_updated_at ON vehicles(updated_at DESC);

CREATE TABLE IF NOT EXISTS api_usage_log (
	id                TEXT PRIMARY KEY,
	registration      TEXT NOT NULL,
	provider          TEXT NOT NULL,
	data_type         TEXT NOT NULL,
	cost_amount       DOUBLE PRECISION NOT NULL DEFAULT 0,
	cached_hit        BOOLEAN NOT NULL DEFAULT false,
	success           BOOLEAN NOT NULL,
	error             TEXT NOT NULL DEFAULT '',
	request_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_api_usage_log_registration ON api_usage_log(registration);
CREATE INDEX IF NOT EXISTS idx_api_usage_log_provider_ts ON api_usage_log(provider, request_timestamp);

CREATE TABLE IF NOT EXISTS api_budgets (
	provider      TEXT NOT NULL,
	month         DATE NOT NULL,
	monthly_limit DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_spend DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, month)
);
`

const (
	pgInsertUsage = `INSERT INTO api_usage_log (id, registration, provider, data_type, cost_amount, cached_hit, success, error, request_timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	// pgAddSpend carries the provider's most recent limit into a new month.
	pgAddSpend = `INSERT INTO api_budgets (provider, month, monthly_limit, current_spend, updated_at)
VALUES ($1, $2, COALESCE((SELECT b.monthly_limit FROM api_budgets b WHERE b.provider = $1 ORDER BY b.month DESC LIMIT 1), 0), $3, $4)
ON CONFLICT (provider, month) DO UPDATE SET current_spend = api_budgets.current_spend + EXCLUDED.current_spend, updated_at = EXCLUDED.updated_at`

	pgGetBudget = `SELECT provider, month, monthly_limit, current_spend FROM api_budgets
WHERE provider = $1 AND month <= $2 ORDER BY month DESC LIMIT 1`

	pgUsageSummary = `SELECT provider, COUNT(*), SUM(CASE WHEN success THEN 0 ELSE 1 END), COALESCE(SUM(cost_amount), 0)
FROM api_usage_log WHERE request_timestamp >= $1 GROUP BY provider ORDER BY provider`
)

var budgetUpsert = db.UpsertConfig{
	Table:        "api_budgets",
	Columns:      []string{"provider", "month", "monthly_limit", "current_spend", "updated_at"},
	ConflictKeys: []string{"provider", "month"},
	UpdateCols:   []string{"monthly_limit", "updated_at"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, registration string) (*model.VehicleRecord, error) {
	row := s.pool.QueryRow(ctx, selectVehicle+` WHERE registration = $1`, registration)
	rec, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vehicle %s", registration)
	}
	return rec, nil
}

func (s *PostgresStore) UpsertVehicle(ctx context.Context, rec *model.VehicleRecord) error {
	args, err := vehicleArgs(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert vehicle")
	}
	if _, err := db.Upsert(ctx, s.pool, vehicleUpsert, args); err != nil {
		return eris.Wrapf(err, "postgres: upsert vehicle %s", rec.Registration)
	}
	return nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context, filter VehicleFilter) ([]model.VehicleRecord, error) {
	rows, err := s.pool.Query(ctx,
		selectVehicle+` ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		listLimit(filter), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vehicles")
	}
	defer rows.Close()

	var out []model.VehicleRecord
	for rows.Next() {
		rec, err := scanVehicle(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list vehicles")
}

// RecordCost appends a ledger row and, for a paid call, adds the charge to
// the provider's spend for the month, in one transaction.
func (s *PostgresStore) RecordCost(ctx context.Context, entry model.CostLedgerEntry) error {
	ts := entry.RequestTimestamp.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: record cost: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, pgInsertUsage,
		entry.ID, entry.Registration, entry.Provider, string(entry.DataType),
		entry.CostAmount, entry.CachedHit, entry.Success, entry.Error, ts,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert usage %s", entry.ID)
	}

	if entry.CostAmount > 0 {
		if _, err := tx.Exec(ctx, pgAddSpend, entry.Provider, model.MonthStart(ts), entry.CostAmount, time.Now().UTC()); err != nil {
			return eris.Wrapf(err, "postgres: add spend for %s", entry.Provider)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: record cost: commit tx")
}

func (s *PostgresStore) UsageSummary(ctx context.Context, since time.Time) ([]model.UsageSummary, error) {
	rows, err := s.pool.Query(ctx, pgUsageSummary, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: usage summary")
	}
	defer rows.Close()

	var out []model.UsageSummary
	for rows.Next() {
		var u model.UsageSummary
		if err := rows.Scan(&u.Provider, &u.Calls, &u.Failures, &u.TotalCost); err != nil {
			return nil, eris.Wrap(err, "postgres: scan usage summary")
		}
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "postgres: usage summary")
}

// GetBudget returns the provider's budget for month. A month with no spend
// yet inherits the most recent earlier limit. Returns nil when the provider
// has never had a budget row.
func (s *PostgresStore) GetBudget(ctx context.Context, provider string, month time.Time) (*model.Budget, error) {
	month = model.MonthStart(month)

	var b model.Budget
	err := s.pool.QueryRow(ctx, pgGetBudget, provider, month).
		Scan(&b.Provider, &b.Month, &b.MonthlyLimit, &b.CurrentSpend)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get budget %s", provider)
	}
	return carryBudget(b, month), nil
}

func (s *PostgresStore) SetBudget(ctx context.Context, provider string, month time.Time, limit float64) (*model.Budget, error) {
	if limit < 0 {
		return nil, eris.Errorf("postgres: budget limit %.2f is negative", limit)
	}
	month = model.MonthStart(month)
	if _, err := db.Upsert(ctx, s.pool, budgetUpsert,
		[]any{provider, month, limit, 0.0, time.Now().UTC()},
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: set budget %s", provider)
	}
	return s.GetBudget(ctx, provider, month)
}

// carryBudget moves a budget row read for an earlier month onto month with
// no spend.
func carryBudget(b model.Budget, month time.Time) *model.Budget {
	if !model.MonthStart(b.Month).Equal(month) {
		b.CurrentSpend = 0
	}
	b.Month = month
	return &b
}
