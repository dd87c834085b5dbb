package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL_Postgres(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "vehicles",
		Columns:      []string{"registration", "make", "updated_at"},
		ConflictKeys: []string{"registration"},
	}, Dollar)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "vehicles" ("registration", "make", "updated_at") VALUES ($1, $2, $3) `+
			`ON CONFLICT ("registration") DO UPDATE SET "make" = EXCLUDED."make", "updated_at" = EXCLUDED."updated_at"`,
		got)
}

func TestUpsertSQL_SQLiteExplicitUpdateCols(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "vehicles",
		Columns:      []string{"registration", "make", "created_at"},
		ConflictKeys: []string{"registration"},
		UpdateCols:   []string{"make"},
	}, Question)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "vehicles" ("registration", "make", "created_at") VALUES (?, ?, ?) `+
			`ON CONFLICT ("registration") DO UPDATE SET "make" = EXCLUDED."make"`,
		got)
}

func TestUpsertSQL_OnlyKeys(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "seen",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, Dollar)
	require.NoError(t, err)
	assert.Contains(t, got, "DO NOTHING")
}

func TestUpsertSQL_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{name: "no table", cfg: UpsertConfig{Columns: []string{"id"}, ConflictKeys: []string{"id"}}, want: "no table specified"},
		{name: "no columns", cfg: UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, want: "no columns specified"},
		{name: "no keys", cfg: UpsertConfig{Table: "t", Columns: []string{"id"}}, want: "no conflict keys specified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UpsertSQL(tt.cfg, Dollar)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "vehicles"`).
		WithArgs("AB12CDE", "FORD").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := Upsert(context.Background(), mock, UpsertConfig{
		Table:        "vehicles",
		Columns:      []string{"registration", "make"},
		ConflictKeys: []string{"registration"},
	}, []any{"AB12CDE", "FORD"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "vehicles"`).
		WillReturnError(fmt.Errorf("connection lost"))

	_, err = Upsert(context.Background(), mock, UpsertConfig{
		Table:        "vehicles",
		Columns:      []string{"registration"},
		ConflictKeys: []string{"registration"},
	}, []any{"AB12CDE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert into vehicles")
}

func TestUpsert_ArityMismatch(t *testing.T) {
	_, err := Upsert(context.Background(), nil, UpsertConfig{
		Table:        "vehicles",
		Columns:      []string{"registration", "make"},
		ConflictKeys: []string{"registration"},
	}, []any{"AB12CDE"})
	require.Error(t, err)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.vehicles", `"public"."vehicles"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
