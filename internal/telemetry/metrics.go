package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/Hu9o73/ESILV-Big-Data-Structure"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	EstimateCount         metric.Int64Counter
	EstimateDuration      metric.Float64Histogram
	EstimateErrors        metric.Int64Counter
	EstimateNotApplicable metric.Int64Counter
	ToolDuration          metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	estimateCount, _ := meter.Int64Counter("docdbcost.estimate.count",
		metric.WithDescription("Number of operator estimates produced"),
	)
	estimateDuration, _ := meter.Float64Histogram("docdbcost.estimate.duration",
		metric.WithDescription("Operator estimate duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	estimateErrors, _ := meter.Int64Counter("docdbcost.estimate.errors",
		metric.WithDescription("Number of rejected or failed estimates"),
	)
	notApplicable, _ := meter.Int64Counter("docdbcost.estimate.not_applicable",
		metric.WithDescription("Number of estimates on layouts lacking a referenced collection"),
	)
	toolDuration, _ := meter.Float64Histogram("docdbcost.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		EstimateCount:         estimateCount,
		EstimateDuration:      estimateDuration,
		EstimateErrors:        estimateErrors,
		EstimateNotApplicable: notApplicable,
		ToolDuration:          toolDuration,
	}
}

func (i *Instruments) RecordEstimateDuration(ctx context.Context, ms float64) {
	i.EstimateDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementEstimateCount(ctx context.Context) {
	i.EstimateCount.Add(ctx, 1)
}

func (i *Instruments) IncrementEstimateErrors(ctx context.Context) {
	i.EstimateErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementNotApplicable(ctx context.Context) {
	i.EstimateNotApplicable.Add(ctx, 1)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
