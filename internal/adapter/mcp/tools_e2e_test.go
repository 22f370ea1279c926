package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/adapter/postgres"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/runlog"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupE2E starts a Postgres testcontainer and returns a fully wired MCP
// server whose estimates are recorded to both a run store and an NDJSON log.
func setupE2E(t *testing.T) (*server.MCPServer, *postgres.RunStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
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

	pool, err := postgres.NewPool(ctx, connStr, postgres.PoolSettings{MaxConns: 8, MinConns: 1})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := postgres.NewRunStore(pool, logger)
	require.NoError(t, store.EnsureSchema(ctx))

	fileRec, err := runlog.NewFileRecorder(t.TempDir() + "/runs.ndjson")
	require.NoError(t, err)

	recorder := runlog.Combine(fileRec, store)
	t.Cleanup(func() { _ = recorder.Close() })

	svc, err := service.NewEstimatorService(domain.DefaultModel(), domain.DemoQueries(), recorder, logger, nil, nil)
	require.NoError(t, err)

	s := NewServer("0.0.1", svc, logger, nil, nil)
	return s, store
}

func TestE2E_MCPTools(t *testing.T) {
	s, store := setupE2E(t)
	ctx := context.Background()

	t.Run("run_workload is persisted", func(t *testing.T) {
		result := callTool(t, s, "run_workload", nil)
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var report service.WorkloadReport
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &report))
		require.Len(t, report.Results, 70)

		records, err := store.Recent(ctx, 100)
		require.NoError(t, err)
		require.Len(t, records, 70)

		var na int
		for _, r := range records {
			assert.Equal(t, report.RunID, r.RunID)
			assert.Equal(t, "run_workload", r.Tool)
			if r.NotApplicable != "" {
				na++
				assert.Empty(t, r.Operator)
			} else {
				assert.NotEmpty(t, r.Operator)
			}
		}
		assert.Equal(t, 24, na)
	})

	t.Run("estimate_query is persisted", func(t *testing.T) {
		result := callTool(t, s, "estimate_query", map[string]any{
			"layout": "DB5",
			"sql":    "SELECT IDP, SUM(quantity) FROM OrderLine GROUP BY IDP",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var res service.QueryResult
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
		assert.Equal(t, "N/A (OrderLine not in layout)", res.NotApplicable)

		records, err := store.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "estimate_query", records[0].Tool)
		assert.Equal(t, service.AdHocQueryID, records[0].QueryID)
		assert.Equal(t, "DB5", records[0].Layout)
		assert.Equal(t, "N/A (OrderLine not in layout)", records[0].NotApplicable)
	})

	t.Run("rejected SQL is not persisted", func(t *testing.T) {
		before, err := store.Recent(ctx, 1000)
		require.NoError(t, err)

		result := callTool(t, s, "estimate_query", map[string]any{
			"layout": "DB1",
			"sql":    "DELETE FROM Stock",
		})
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "only SELECT")

		after, err := store.Recent(ctx, 1000)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})
}
