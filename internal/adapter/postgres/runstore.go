package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createRunsTable = `
	CREATE TABLE IF NOT EXISTS estimate_runs (
		id             BIGSERIAL PRIMARY KEY,
		run_id         TEXT NOT NULL,
		recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		tool           TEXT NOT NULL DEFAULT '',
		layout         TEXT NOT NULL,
		query_id       TEXT NOT NULL,
		sql_text       TEXT NOT NULL,
		sharded        BOOLEAN NOT NULL,
		shard_aware    BOOLEAN NOT NULL,
		indexed        BOOLEAN NOT NULL,
		operator       TEXT,
		output_docs    DOUBLE PRECISION,
		scanned_bytes  DOUBLE PRECISION,
		shards_touched BIGINT,
		time_s         DOUBLE PRECISION,
		carbon_kg      DOUBLE PRECISION,
		price_usd      DOUBLE PRECISION,
		not_applicable TEXT NOT NULL DEFAULT '',
		duration_ms    BIGINT NOT NULL DEFAULT 0,
		error          TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS estimate_runs_recorded_at_idx ON estimate_runs (recorded_at DESC, id DESC);
`

const insertRun = `
	INSERT INTO estimate_runs (
		run_id, tool, layout, query_id, sql_text, sharded, shard_aware, indexed,
		operator, output_docs, scanned_bytes, shards_touched, time_s, carbon_kg, price_usd,
		not_applicable, duration_ms, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

// NULL cost columns (not-applicable or failed rows) read back as zero.
const selectRecentRuns = `
	SELECT
		run_id, recorded_at, tool, layout, query_id, sharded,
		COALESCE(operator, '')        AS operator,
		COALESCE(scanned_bytes, 0)    AS scanned_bytes,
		COALESCE(time_s, 0)           AS time_s,
		COALESCE(carbon_kg, 0)        AS carbon_kg,
		COALESCE(price_usd, 0)        AS price_usd,
		not_applicable, error
	FROM estimate_runs
	ORDER BY recorded_at DESC, id DESC
	LIMIT $1
`

type historyRow struct {
	RunID         string    `db:"run_id"`
	RecordedAt    time.Time `db:"recorded_at"`
	Tool          string    `db:"tool"`
	Layout        string    `db:"layout"`
	QueryID       string    `db:"query_id"`
	Sharded       bool      `db:"sharded"`
	Operator      string    `db:"operator"`
	ScannedBytes  float64   `db:"scanned_bytes"`
	TimeS         float64   `db:"time_s"`
	CarbonKg      float64   `db:"carbon_kg"`
	PriceUSD      float64   `db:"price_usd"`
	NotApplicable string    `db:"not_applicable"`
	Error         string    `db:"error"`
}

// RunStore persists estimate runs in PostgreSQL and reads them back as history.
// It implements port.RunRecorder and port.RunHistory.
type RunStore struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	writeTimeout time.Duration
	queryTimeout time.Duration
}

func NewRunStore(pool *pgxpool.Pool, logger *slog.Logger) *RunStore {
	return &RunStore{
		pool:         pool,
		logger:       logger,
		writeTimeout: 5 * time.Second,
		queryTimeout: 10 * time.Second,
	}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("creating estimate_runs table: %w", err)
	}
	return nil
}

// Record inserts one entry. Failures are logged and dropped.
func (s *RunStore) Record(ctx context.Context, entry port.RunEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	var (
		operator                                 *string
		outputDocs, scanned, timeS, carbon, cost *float64
		shards                                   *int64
	)
	if c := entry.Cost; c != nil {
		operator = &c.Name
		outputDocs = &c.OutputDocs
		scanned = &c.ScannedBytes
		shards = &c.ShardsTouched
		timeS = &c.TimeS
		carbon = &c.CarbonKg
		cost = &c.PriceUSD
	}
	errText := ""
	if entry.Err != nil {
		errText = entry.Err.Error()
	}

	_, err := s.pool.Exec(ctx, insertRun,
		entry.RunID, entry.Tool, entry.Layout, entry.QueryID, entry.SQL,
		entry.Posture.Sharded, entry.Posture.ShardAware, entry.Posture.Indexed,
		operator, outputDocs, scanned, shards, timeS, carbon, cost,
		entry.NotApplicable, entry.DurationMS, errText,
	)
	if err != nil {
		s.logger.WarnContext(ctx, "recording run failed",
			slog.String("run.id", entry.RunID),
			slog.String("estimate.layout", entry.Layout),
			slog.String("estimate.query", entry.QueryID),
			slog.String("error", err.Error()),
		)
	}
}

// Recent returns up to limit entries, most recent first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]port.HistoryRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid history limit %d: must be positive", limit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET LOCAL scopes the timeout to this transaction.
	timeoutMS := s.queryTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, fmt.Errorf("setting statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, selectRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[historyRow])
	if err != nil {
		return nil, fmt.Errorf("reading run history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	out := make([]port.HistoryRecord, len(records))
	for i, r := range records {
		out[i] = port.HistoryRecord(r)
	}
	return out, nil
}

// Close releases the pool.
func (s *RunStore) Close() error {
	s.pool.Close()
	return nil
}
