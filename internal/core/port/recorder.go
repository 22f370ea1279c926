package port

import (
	"context"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
)

// RunEntry represents a single estimated query, one per (query, layout, posture).
type RunEntry struct {
	RunID         string
	Tool          string
	Layout        string
	QueryID       string
	SQL           string
	Posture       domain.Posture
	Cost          *domain.OperatorCost
	NotApplicable string
	DurationMS    int64
	Err           error
}

// RunRecorder persists estimate runs. Implementations are best-effort: a
// failed write is logged, never returned to the caller.
type RunRecorder interface {
	Record(ctx context.Context, entry RunEntry)
	Close() error
}

// NoopRecorder discards all entries.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, RunEntry) {}
func (NoopRecorder) Close() error                     { return nil }

// HistoryRecord is a persisted RunEntry as read back from a run store.
type HistoryRecord struct {
	RunID         string    `json:"run_id"`
	RecordedAt    time.Time `json:"recorded_at"`
	Tool          string    `json:"tool,omitempty"`
	Layout        string    `json:"layout"`
	QueryID       string    `json:"query_id"`
	Sharded       bool      `json:"sharded"`
	Operator      string    `json:"operator,omitempty"`
	ScannedBytes  float64   `json:"scanned_bytes"`
	TimeS         float64   `json:"time_s"`
	CarbonKg      float64   `json:"carbon_kg"`
	PriceUSD      float64   `json:"price_usd"`
	NotApplicable string    `json:"not_applicable,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// RunHistory lists recorded runs, most recent first.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]HistoryRecord, error)
}
