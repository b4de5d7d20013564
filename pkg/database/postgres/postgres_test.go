package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Standalone.Host = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Standalone.Host = ""
	cfg.DSN = "postgres://u:p@db:5432/x"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.ConnString())

	cfg = DefaultConfig()
	cfg.Pool.MinConns = 100
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestMergeConfigKeepsDefaults(t *testing.T) {
	merged, err := MergeConfig(DefaultConfig(), &Config{Standalone: DBConfig{Host: "db"}})
	require.NoError(t, err)
	assert.Equal(t, "db", merged.Standalone.Host)
	assert.Equal(t, 5432, merged.Standalone.Port)
	assert.Contains(t, merged.ConnString(), "host=db port=5432")
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(assert.AnError))

	uv := &pgconn.PgError{Code: "23505", ConstraintName: "local_sales_one_active"}
	assert.True(t, IsUniqueViolation(uv, ""))
	assert.True(t, IsUniqueViolation(uv, "local_sales_one_active"))
	assert.False(t, IsUniqueViolation(uv, "other"))

	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(ErrNoRows))
}

func TestQueryBuilderUsesDollarPlaceholders(t *testing.T) {
	query, args, err := QueryBuilder.Select("id").From("listings").Where("seller_id = ?", "p1").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM listings WHERE seller_id = $1", query)
	assert.Equal(t, []any{"p1"}, args)
}
