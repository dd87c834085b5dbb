package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/vehicle-data/internal/db"
	"github.com/sells-group/vehicle-data/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

// Ledger timestamps are unix milliseconds so range filters compare numerically.
// Budget months are 'YYYY-MM-DD' text.
const sqliteMigration = `
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
	tyre_pressure_front     REAL,
	tyre_pressure_rear      REAL,
	timing_belt_interval    INTEGER,
	image_url               TEXT,
	image_expiry_date       DATETIME,
	service_data            TEXT,
	mot_history             TEXT,
	mot_checked_at          DATETIME,
	data_completeness_score INTEGER NOT NULL DEFAULT 0,
	data_sources            TEXT NOT NULL DEFAULT '[]',
	last_data_update        DATETIME,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	basic_fetched_at        DATETIME,
	technical_fetched_at    DATETIME,
	service_fetched_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_vehicles_updated_at ON vehicles(updated_at);

CREATE TABLE IF NOT EXISTS api_usage_log (
	id                TEXT PRIMARY KEY,
	registration      TEXT NOT NULL,
	provider          TEXT NOT NULL,
	data_type         TEXT NOT NULL,
	cost_amount       REAL NOT NULL DEFAULT 0,
	cached_hit        INTEGER NOT NULL DEFAULT 0,
	success           INTEGER NOT NULL,
	error             TEXT NOT NULL DEFAULT '',
	request_timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_api_usage_log_registration ON api_usage_log(registration);
CREATE INDEX IF NOT EXISTS idx_api_usage_log_provider_ts ON api_usage_log(provider, request_timestamp);

CREATE TABLE IF NOT EXISTS api_budgets (
	provider      TEXT NOT NULL,
	month         TEXT NOT NULL,
	monthly_limit REAL NOT NULL DEFAULT 0,
	current_spend REAL NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (provider, month)
);
`

const (
	sqliteInsertUsage = `INSERT INTO api_usage_log (id, registration, provider, data_type, cost_amount, cached_hit, success, error, request_timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteAddSpend = `INSERT INTO api_budgets (provider, month, monthly_limit, current_spend, updated_at)
VALUES (?1, ?2, COALESCE((SELECT b.monthly_limit FROM api_budgets b WHERE b.provider = ?1 ORDER BY b.month DESC LIMIT 1), 0), ?3, ?4)
ON CONFLICT (provider, month) DO UPDATE SET current_spend = api_budgets.current_spend + excluded.current_spend, updated_at = excluded.updated_at`

	sqliteGetBudget = `SELECT provider, month, monthly_limit, current_spend FROM api_budgets
WHERE provider = ? AND month <= ? ORDER BY month DESC LIMIT 1`

	sqliteUsageSummary = `SELECT provider, COUNT(*), SUM(CASE WHEN success THEN 0 ELSE 1 END), COALESCE(SUM(cost_amount), 0)
FROM api_usage_log WHERE request_timestamp >= ? GROUP BY provider ORDER BY provider`
)

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return s.addVehicleColumns(ctx)
}

// sqliteAddedColumns were introduced after the vehicles table first shipped.
var sqliteAddedColumns = []string{"basic_fetched_at", "technical_fetched_at", "service_fetched_at"}

// addVehicleColumns brings older databases up to date. SQLite has no
// ADD COLUMN IF NOT EXISTS, so existing columns are read first.
func (s *SQLiteStore) addVehicleColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('vehicles')`)
	if err != nil {
		return eris.Wrap(err, "sqlite: read vehicles columns")
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close() //nolint:errcheck
			return eris.Wrap(err, "sqlite: scan vehicles column")
		}
		have[name] = true
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: read vehicles columns iterate")
	}

	for _, col := range sqliteAddedColumns {
		if have[col] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE vehicles ADD COLUMN `+col+` DATETIME`); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s", col)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetVehicle(ctx context.Context, registration string) (*model.VehicleRecord, error) {
	row := s.db.QueryRowContext(ctx, selectVehicle+` WHERE registration = ?`, registration)
	rec, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vehicle %s", registration)
	}
	return rec, nil
}

func (s *SQLiteStore) UpsertVehicle(ctx context.Context, rec *model.VehicleRecord) error {
	args, err := vehicleArgs(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert vehicle")
	}
	query, err := db.UpsertSQL(vehicleUpsert, db.Question)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert vehicle")
	}
	for i, a := range args {
		args[i] = sqliteValue(a)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "sqlite: upsert vehicle %s", rec.Registration)
	}
	return nil
}

func (s *SQLiteStore) ListVehicles(ctx context.Context, filter VehicleFilter) ([]model.VehicleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectVehicle+` ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		listLimit(filter), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vehicles")
	}
	defer rows.Close()

	var out []model.VehicleRecord
	for rows.Next() {
		rec, err := scanVehicle(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list vehicles iterate")
}

func (s *SQLiteStore) RecordCost(ctx context.Context, entry model.CostLedgerEntry) error {
	ts := entry.RequestTimestamp.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: record cost: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, sqliteInsertUsage,
		entry.ID, entry.Registration, entry.Provider, string(entry.DataType),
		entry.CostAmount, entry.CachedHit, entry.Success, entry.Error, ts.UnixMilli(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert usage %s", entry.ID)
	}

	if entry.CostAmount > 0 {
		if _, err := tx.ExecContext(ctx, sqliteAddSpend,
			entry.Provider, monthKey(ts), entry.CostAmount, time.Now().UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: add spend for %s", entry.Provider)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: record cost: commit tx")
}

func (s *SQLiteStore) UsageSummary(ctx context.Context, since time.Time) ([]model.UsageSummary, error) {
	rows, err := s.db.QueryContext(ctx, sqliteUsageSummary, since.UTC().UnixMilli())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: usage summary")
	}
	defer rows.Close()

	var out []model.UsageSummary
	for rows.Next() {
		var u model.UsageSummary
		if err := rows.Scan(&u.Provider, &u.Calls, &u.Failures, &u.TotalCost); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan usage summary")
		}
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: usage summary iterate")
}

func (s *SQLiteStore) GetBudget(ctx context.Context, provider string, month time.Time) (*model.Budget, error) {
	month = model.MonthStart(month)

	var b model.Budget
	var key string
	err := s.db.QueryRowContext(ctx, sqliteGetBudget, provider, monthKey(month)).
		Scan(&b.Provider, &key, &b.MonthlyLimit, &b.CurrentSpend)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get budget %s", provider)
	}
	if b.Month, err = time.Parse(time.DateOnly, key); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse budget month %q", key)
	}
	return carryBudget(b, month), nil
}

func (s *SQLiteStore) SetBudget(ctx context.Context, provider string, month time.Time, limit float64) (*model.Budget, error) {
	if limit < 0 {
		return nil, eris.Errorf("sqlite: budget limit %.2f is negative", limit)
	}
	month = model.MonthStart(month)
	query, err := db.UpsertSQL(budgetUpsert, db.Question)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: set budget")
	}
	if _, err := s.db.ExecContext(ctx, query, provider, monthKey(month), limit, 0.0, time.Now().UTC()); err != nil {
		return nil, eris.Wrapf(err, "sqlite: set budget %s", provider)
	}
	return s.GetBudget(ctx, provider, month)
}

func monthKey(t time.Time) string {
	return model.MonthStart(t).Format(time.DateOnly)
}

// sqliteValue unwraps the optional pointer fields of a vehicle row into
// plain driver values or nil.
func sqliteValue(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return p.UTC()
	case time.Time:
		return p.UTC()
	default:
		return v
	}
}
