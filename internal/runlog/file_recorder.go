package runlog

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
)

// fileEntry is the NDJSON form of a run entry.
type fileEntry struct {
	Timestamp     string  `json:"ts"`
	RunID         string  `json:"run_id"`
	Tool          string  `json:"tool,omitempty"`
	Layout        string  `json:"layout"`
	QueryID       string  `json:"query_id"`
	SQL           string  `json:"sql"`
	Sharded       bool    `json:"sharded"`
	ShardAware    bool    `json:"shard_aware"`
	Indexed       bool    `json:"indexed"`
	Operator      string  `json:"operator,omitempty"`
	OutputDocs    float64 `json:"output_docs,omitempty"`
	ScannedBytes  float64 `json:"scanned_bytes,omitempty"`
	ShardsTouched int64   `json:"shards_touched,omitempty"`
	TimeS         float64 `json:"time_s,omitempty"`
	CarbonKg      float64 `json:"carbon_kg,omitempty"`
	PriceUSD      float64 `json:"price_usd,omitempty"`
	NotApplicable string  `json:"not_applicable,omitempty"`
	DurationMS    int64   `json:"duration_ms"`
	Error         *string `json:"error"`
}

func newFileEntry(entry port.RunEntry, now time.Time) fileEntry {
	fe := fileEntry{
		Timestamp:     now.UTC().Format(time.RFC3339),
		RunID:         entry.RunID,
		Tool:          entry.Tool,
		Layout:        entry.Layout,
		QueryID:       entry.QueryID,
		SQL:           entry.SQL,
		Sharded:       entry.Posture.Sharded,
		ShardAware:    entry.Posture.ShardAware,
		Indexed:       entry.Posture.Indexed,
		NotApplicable: entry.NotApplicable,
		DurationMS:    entry.DurationMS,
	}
	if c := entry.Cost; c != nil {
		fe.Operator = c.Name
		fe.OutputDocs = c.OutputDocs
		fe.ScannedBytes = c.ScannedBytes
		fe.ShardsTouched = c.ShardsTouched
		fe.TimeS = c.TimeS
		fe.CarbonKg = c.CarbonKg
		fe.PriceUSD = c.PriceUSD
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}
	return fe
}

// FileRecorder appends run entries as NDJSON (one JSON object per line).
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileRecorder opens (or creates) the file at path for append-only writing.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (r *FileRecorder) Record(_ context.Context, entry port.RunEntry) {
	fe := newFileEntry(entry, time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(fe) // best-effort
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
