package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock RunRecorder ---

type mockRecorder struct {
	mu      sync.Mutex
	entries []port.RunEntry
}

func (m *mockRecorder) Record(_ context.Context, e port.RunEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *mockRecorder) Close() error { return nil }

func (m *mockRecorder) snapshot() []port.RunEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]port.RunEntry(nil), m.entries...)
}

// --- mock Instrumentation ---

type mockInstrumentation struct {
	mu        sync.Mutex
	estimates int
	errs      int
	notAppl   int
}

func (m *mockInstrumentation) RecordEstimateDuration(context.Context, float64) {}
func (m *mockInstrumentation) RecordToolDuration(context.Context, float64)     {}

func (m *mockInstrumentation) IncrementEstimateCount(context.Context) {
	m.mu.Lock()
	m.estimates++
	m.mu.Unlock()
}

func (m *mockInstrumentation) IncrementEstimateErrors(context.Context) {
	m.mu.Lock()
	m.errs++
	m.mu.Unlock()
}

func (m *mockInstrumentation) IncrementNotApplicable(context.Context) {
	m.mu.Lock()
	m.notAppl++
	m.mu.Unlock()
}

func newTestService(t *testing.T, rec port.RunRecorder, inst port.Instrumentation) *EstimatorService {
	t.Helper()
	svc, err := NewEstimatorService(domain.DefaultModel(), domain.DemoQueries(), rec, testLogger(), nil, inst)
	require.NoError(t, err)
	return svc
}

// --- tests ---

func TestNewEstimatorService_Rejects(t *testing.T) {
	bad := domain.DefaultModel()
	bad.Infra.Servers = 0
	_, err := NewEstimatorService(bad, nil, nil, testLogger(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating model")

	dup := []domain.QuerySpec{
		{ID: "A", SQL: "SELECT IDP FROM Stock"},
		{ID: "A", SQL: "SELECT IDW FROM Stock"},
	}
	_, err = NewEstimatorService(domain.DefaultModel(), dup, nil, testLogger(), nil, nil)
	assert.ErrorContains(t, err, "duplicate query id")

	invalid := []domain.QuerySpec{{ID: "B", SQL: "UPDATE Stock SET quantity = 0"}}
	_, err = NewEstimatorService(domain.DefaultModel(), invalid, nil, testLogger(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
}

func TestEstimatorService_Sizes(t *testing.T) {
	svc := newTestService(t, nil, nil)

	sizes, err := svc.Sizes()
	require.NoError(t, err)
	require.Len(t, sizes, 5)
	assert.Equal(t, "DB1", sizes[0].Layout)
	assert.Equal(t, int64(952_275_226_400), sizes[0].TotalBytes)
	assert.Equal(t, "DB5", sizes[4].Layout)
}

func TestEstimatorService_Sharding(t *testing.T) {
	svc := newTestService(t, nil, nil)
	reports := svc.Sharding()
	require.Len(t, reports, 6)
	assert.Equal(t, "St - #IDP", reports[0].Strategy)
}

func TestEstimatorService_RunWorkload(t *testing.T) {
	rec := &mockRecorder{}
	inst := &mockInstrumentation{}
	svc := newTestService(t, rec, inst)

	report, err := svc.RunWorkload(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 7*5*2)

	// Ordered by query, then layout, then posture.
	first := report.Results[0]
	assert.Equal(t, "Q1", first.QueryID)
	assert.Equal(t, "DB1", first.Layout)
	assert.False(t, first.Posture.Sharded)
	second := report.Results[1]
	assert.Equal(t, "DB1", second.Layout)
	assert.True(t, second.Posture.Sharded)
	assert.Equal(t, "DB2", report.Results[2].Layout)
	last := report.Results[len(report.Results)-1]
	assert.Equal(t, "Q7", last.QueryID)
	assert.Equal(t, "DB5", last.Layout)

	var na, costed int
	for _, r := range report.Results {
		if r.NotApplicable != "" {
			na++
			assert.Nil(t, r.Cost)
		} else {
			costed++
			require.NotNil(t, r.Cost, "%s %s", r.QueryID, r.Layout)
		}
	}
	assert.Equal(t, 24, na)
	assert.Equal(t, 46, costed)

	entries := rec.snapshot()
	assert.Len(t, entries, 70)
	for _, e := range entries {
		assert.Equal(t, report.RunID, e.RunID)
	}
	assert.Equal(t, 46, inst.estimates)
	assert.Equal(t, 24, inst.notAppl)
	assert.Zero(t, inst.errs)
}

func TestEstimatorService_RunWorkload_Cancelled(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunWorkload(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimatorService_Estimate(t *testing.T) {
	rec := &mockRecorder{}
	svc := newTestService(t, rec, nil)
	ctx := WithToolName(context.Background(), "estimate_query")

	res, err := svc.Estimate(ctx, "db1", "SELECT name, price FROM Product WHERE brand = 'Apple'",
		domain.Posture{Indexed: true})
	require.NoError(t, err)
	assert.Equal(t, AdHocQueryID, res.QueryID)
	assert.Equal(t, "DB1", res.Layout)
	assert.Equal(t, domain.PlanFilter, res.Kind)
	require.NotNil(t, res.Cost)
	assert.InDelta(t, 50, res.Cost.OutputDocs, 1e-9)
	assert.InDelta(t, 57600, res.Cost.ScannedBytes, 1e-6)

	entries := rec.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "estimate_query", entries[0].Tool)
	assert.Equal(t, "DB1", entries[0].Layout)
	assert.NotNil(t, entries[0].Cost)
}

func TestEstimatorService_Estimate_NotApplicable(t *testing.T) {
	inst := &mockInstrumentation{}
	svc := newTestService(t, nil, inst)

	res, err := svc.Estimate(context.Background(), "DB2", "SELECT quantity FROM Stock WHERE IDP = 1", domain.Posture{})
	require.NoError(t, err)
	assert.Nil(t, res.Cost)
	assert.Equal(t, "N/A (Stock not in layout)", res.NotApplicable)
	assert.Equal(t, 1, inst.notAppl)
}

func TestEstimatorService_Estimate_Errors(t *testing.T) {
	inst := &mockInstrumentation{}
	rec := &mockRecorder{}
	svc := newTestService(t, rec, inst)

	_, err := svc.Estimate(context.Background(), "DB9", "SELECT IDP FROM Stock", domain.Posture{})
	assert.ErrorIs(t, err, domain.ErrUnknownLayout)

	_, err = svc.Estimate(context.Background(), "DB1", "DROP TABLE Stock", domain.Posture{})
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	_, err = svc.Estimate(context.Background(), "DB1", "SELECT * FROM Stock WHERE quantity > 3", domain.Posture{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedQuery)

	assert.Equal(t, 2, inst.errs)
	assert.Empty(t, rec.snapshot(), "rejected queries are not recorded")
}

func TestEstimatorService_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	svc, err := NewEstimatorService(domain.DefaultModel(), nil, nil, testLogger(), tp.Tracer("test"), nil)
	require.NoError(t, err)

	_, err = svc.Estimate(context.Background(), "DB1", "SELECT IDP, SUM(quantity) FROM OrderLine GROUP BY IDP",
		domain.Posture{Sharded: true})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "EstimatorService.Estimate", spans[0].Name)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "DB1", attrs["estimate.layout"].AsString())
	assert.Equal(t, AdHocQueryID, attrs["estimate.query"].AsString())
	assert.True(t, attrs["estimate.sharded"].AsBool())
	assert.Equal(t, "aggregate_sharded", attrs["estimate.operator"].AsString())
	assert.Equal(t, int64(1000), attrs["estimate.shards_touched"].AsInt64())
}

func TestEstimatorService_Assumptions(t *testing.T) {
	svc := newTestService(t, nil, nil)
	a := svc.Assumptions()

	assert.Equal(t, domain.DefaultStatistics(), a.Statistics)
	assert.Equal(t, domain.DefaultSelectivity, a.DefaultSelectivity)
	assert.Equal(t, int64(domain.DefaultMultiplicity), a.DefaultMultiplicity)

	require.Len(t, a.Selectivities, 5)
	keys := make([]string, len(a.Selectivities))
	for i, s := range a.Selectivities {
		keys[i] = s.Key
	}
	assert.Equal(t, []string{"IDC", "IDP", "IDW", "brand", "date"}, keys)

	require.Len(t, a.Multiplicities, 4)
	assert.Equal(t, domain.CollOrderLine, a.Multiplicities[0].Outer)
	for _, m := range a.Multiplicities {
		if m.Outer == domain.CollProduct && m.Inner == domain.CollStock {
			assert.Equal(t, int64(200), m.Matches)
		}
	}

	require.Len(t, a.Groups, 3)
	assert.Equal(t, GroupAssumption{
		Collection: domain.CollOrderLine, GroupKeys: "IDC", FilterKey: domain.AnyFilter,
		Description: "every client", Groups: 10_000_000,
	}, a.Groups[0])
	assert.Equal(t, "IDP", a.Groups[2].GroupKeys)
	assert.Equal(t, "IDC", a.Groups[2].FilterKey)
	assert.Equal(t, 100.0, a.Groups[2].Groups)
}

func TestEstimatorService_Queries(t *testing.T) {
	svc := newTestService(t, nil, nil)
	qs := svc.Queries()
	require.Len(t, qs, 7)
	assert.Equal(t, "Q1", qs[0].ID)
	assert.Len(t, svc.Layouts(), 5)
	assert.Equal(t, domain.DefaultModel(), svc.Model())
}
