package mcp

import (
	"context"
	"sync"
	"testing"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type toolDurations struct {
	mu    sync.Mutex
	calls int
}

func (d *toolDurations) RecordEstimateDuration(context.Context, float64) {}
func (d *toolDurations) IncrementEstimateCount(context.Context)          {}
func (d *toolDurations) IncrementEstimateErrors(context.Context)         {}
func (d *toolDurations) IncrementNotApplicable(context.Context)          {}

func (d *toolDurations) RecordToolDuration(context.Context, float64) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
}

func TestToolCallHooks_SpansAndDurations(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	logger := testLogger()
	svc, err := service.NewEstimatorService(domain.DefaultModel(), domain.DemoQueries(), nil, logger, nil, nil)
	require.NoError(t, err)

	inst := &toolDurations{}
	s := NewServer("test", svc, logger, tp.Tracer("test"), inst)

	ok := callTool(t, s, "list_layouts", nil)
	require.False(t, ok.IsError)

	failed := callTool(t, s, "estimate_query", map[string]any{"layout": "DB1"})
	require.True(t, failed.IsError)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "mcp.tool.call", span.Name)
	}
	assert.Equal(t, "list_layouts", spans[0].Attributes[0].Value.AsString())
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "estimate_query", spans[1].Attributes[0].Value.AsString())
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	assert.Equal(t, 2, inst.calls)
}

func TestToolCallHooks_NoTracer(t *testing.T) {
	logger := testLogger()
	svc, err := service.NewEstimatorService(domain.DefaultModel(), nil, nil, logger, nil, nil)
	require.NoError(t, err)

	s := NewServer("test", svc, logger, nil, nil)
	result := callTool(t, s, "describe_assumptions", nil)
	assert.False(t, result.IsError)
}
