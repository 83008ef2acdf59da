package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, 8, cfg.BatchWorkers)
	require.Equal(t, 30*time.Second, cfg.BatchTimeout)
	require.Equal(t, 500, cfg.HistoryBatchThreshold)
	require.False(t, cfg.AllowNegativeReversal)
	require.Contains(t, cfg.DSN(), "dbname=stock_ledger")
	require.NotEmpty(t, cfg.Secret())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/ledger")
	t.Setenv("LEDGER_BATCH_WORKERS", "3")
	t.Setenv("LEDGER_BATCH_TIMEOUT", "2s")
	t.Setenv("LEDGER_ALLOW_NEGATIVE_REVERSAL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@db:5432/ledger", cfg.DSN())
	require.Equal(t, 3, cfg.BatchWorkers)
	require.Equal(t, 2*time.Second, cfg.BatchTimeout)
	require.True(t, cfg.AllowNegativeReversal)

	lc := cfg.LedgerConfig()
	require.Equal(t, 3, lc.BatchWorkers)
	require.Equal(t, 2*time.Second, lc.BatchTimeout)
	require.Equal(t, 200, lc.BatchFailureLimit)
	require.True(t, lc.AllowNegativeReversal)
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestRejectsZeroWorkers(t *testing.T) {
	t.Setenv("LEDGER_BATCH_WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
}
