package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/adapter/postgres"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a Postgres testcontainer and returns a pool connected to it.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, connStr, postgres.PoolSettings{
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newStore(t *testing.T) *postgres.RunStore {
	t.Helper()
	pool := setupTestDB(t)
	store := postgres.NewRunStore(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := postgres.NewPool(context.Background(), "://not-a-url", postgres.PoolSettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing database URL")
}

func TestRunStore_EnsureSchemaIdempotent(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestRunStore_RecordAndRecent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cost := &domain.OperatorCost{
		Name: "filter_sharded", OutputDocs: 1, OutputSizeBytes: 112,
		ScannedBytes: 152, ShardsTouched: 1, TimeS: 0.005, CarbonKg: 4e-11, PriceUSD: 1e-9,
	}
	store.Record(ctx, port.RunEntry{
		RunID: "run-1", Tool: "run_workload", Layout: "DB1", QueryID: "Q1",
		SQL:     "SELECT quantity, location FROM Stock WHERE IDP = 42 AND IDW = 7",
		Posture: domain.Posture{Sharded: true, ShardAware: true, Indexed: true},
		Cost:    cost,
	})
	store.Record(ctx, port.RunEntry{
		RunID: "run-1", Tool: "run_workload", Layout: "DB2", QueryID: "Q1",
		SQL:           "SELECT quantity, location FROM Stock WHERE IDP = 42 AND IDW = 7",
		NotApplicable: "N/A (Stock not in layout)",
	})
	store.Record(ctx, port.RunEntry{
		RunID: "run-2", Layout: "DB3", QueryID: "adhoc", SQL: "SELECT 1",
		Err: errors.New("boom"),
	})

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Most recent first.
	assert.Equal(t, "run-2", records[0].RunID)
	assert.Equal(t, "boom", records[0].Error)
	assert.Empty(t, records[0].Operator)

	na := records[1]
	assert.Equal(t, "DB2", na.Layout)
	assert.Equal(t, "N/A (Stock not in layout)", na.NotApplicable)
	assert.Zero(t, na.ScannedBytes)

	costed := records[2]
	assert.Equal(t, "run_workload", costed.Tool)
	assert.Equal(t, "Q1", costed.QueryID)
	assert.True(t, costed.Sharded)
	assert.Equal(t, "filter_sharded", costed.Operator)
	assert.InDelta(t, 152, costed.ScannedBytes, 1e-9)
	assert.InDelta(t, 0.005, costed.TimeS, 1e-12)
	assert.False(t, costed.RecordedAt.IsZero())
}

func TestRunStore_RecentLimit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, layout := range []string{"DB1", "DB2", "DB3", "DB4", "DB5"} {
		store.Record(ctx, port.RunEntry{RunID: "run", Layout: layout, QueryID: "Q7", SQL: "SELECT 1"})
	}

	records, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DB5", records[0].Layout)
	assert.Equal(t, "DB4", records[1].Layout)

	_, err = store.Recent(ctx, 0)
	assert.Error(t, err)
}
