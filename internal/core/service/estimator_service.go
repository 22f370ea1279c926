package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// AdHocQueryID identifies estimates of SQL text outside the workload.
const AdHocQueryID = "adhoc"

// QueryResult is one query evaluated on one layout under one posture. Exactly
// one of Cost and NotApplicable is set.
type QueryResult struct {
	QueryID       string               `json:"query_id"`
	Title         string               `json:"title,omitempty"`
	Layout        string               `json:"layout"`
	Posture       domain.Posture       `json:"posture"`
	Kind          domain.PlanKind      `json:"kind"`
	Cost          *domain.OperatorCost `json:"cost,omitempty"`
	NotApplicable string               `json:"not_applicable,omitempty"`
}

// WorkloadReport holds every query of the workload on every layout.
type WorkloadReport struct {
	RunID   string        `json:"run_id"`
	Results []QueryResult `json:"results"`
}

type compiledQuery struct {
	spec  domain.QuerySpec
	shape *domain.QueryShape
}

// EstimatorService orchestrates the cost model (domain) over every layout and
// records each estimate (infrastructure).
type EstimatorService struct {
	model    domain.Model
	layouts  []*domain.Layout
	queries  []compiledQuery
	recorder port.RunRecorder
	logger   *slog.Logger
	tracer   trace.Tracer
	inst     port.Instrumentation
}

// NewEstimatorService validates the model, builds the five layouts from its
// statistics and compiles the workload queries up front.
func NewEstimatorService(model domain.Model, queries []domain.QuerySpec, recorder port.RunRecorder, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) (*EstimatorService, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("validating model: %w", err)
	}
	layouts, err := domain.AllLayouts(domain.AveragesFor(model.Stats))
	if err != nil {
		return nil, fmt.Errorf("building layouts: %w", err)
	}

	compiled := make([]compiledQuery, 0, len(queries))
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		seen[q.ID] = true
		shape, err := q.Compile()
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledQuery{spec: q, shape: shape})
	}

	if recorder == nil {
		recorder = port.NoopRecorder{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &EstimatorService{
		model:    model,
		layouts:  layouts,
		queries:  compiled,
		recorder: recorder,
		logger:   logger,
		tracer:   tracer,
		inst:     inst,
	}, nil
}

// Model returns the statistics, cluster and rates in use.
func (s *EstimatorService) Model() domain.Model {
	return s.model
}

// Layouts returns DB1..DB5.
func (s *EstimatorService) Layouts() []*domain.Layout {
	return s.layouts
}

// Queries returns the workload queries in evaluation order.
func (s *EstimatorService) Queries() []domain.QuerySpec {
	out := make([]domain.QuerySpec, len(s.queries))
	for i, q := range s.queries {
		out[i] = q.spec
	}
	return out
}

// Sizes computes the database size report of every layout.
func (s *EstimatorService) Sizes() ([]domain.LayoutSize, error) {
	out := make([]domain.LayoutSize, 0, len(s.layouts))
	for _, l := range s.layouts {
		size, err := domain.SizeLayout(l, s.model.Stats)
		if err != nil {
			return nil, err
		}
		out = append(out, size)
	}
	return out, nil
}

// Sharding computes the per-server averages of every sharding strategy.
func (s *EstimatorService) Sharding() []domain.ShardReport {
	return domain.ShardingReports(s.model.Stats, s.model.Infra)
}

// RunWorkload evaluates every query on every layout under both postures.
// Layouts are evaluated concurrently; results come back ordered by query,
// then layout, then posture.
func (s *EstimatorService) RunWorkload(ctx context.Context) (*WorkloadReport, error) {
	runID := uuid.NewString()
	const postures = 2
	nl := len(s.layouts)
	results := make([]QueryResult, len(s.queries)*nl*postures)

	s.logger.InfoContext(ctx, "running workload",
		slog.String("run.id", runID),
		slog.Int("workload.queries", len(s.queries)),
		slog.Int("workload.layouts", nl),
	)

	g, gctx := errgroup.WithContext(ctx)
	for li, layout := range s.layouts {
		g.Go(func() error {
			for qi, q := range s.queries {
				if err := gctx.Err(); err != nil {
					return err
				}
				for pi, posture := range q.spec.Postures() {
					res, err := s.evaluate(gctx, runID, layout, q.spec, q.shape, posture)
					if err != nil {
						return err
					}
					results[(qi*nl+li)*postures+pi] = res
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("running workload %s: %w", runID, err)
	}
	return &WorkloadReport{RunID: runID, Results: results}, nil
}

// Estimate compiles ad-hoc SQL and evaluates it on one layout. A layout that
// lacks a referenced collection yields a NotApplicable result, not an error.
func (s *EstimatorService) Estimate(ctx context.Context, layoutName, sql string, posture domain.Posture) (*QueryResult, error) {
	layout, err := domain.FindLayout(s.layouts, layoutName)
	if err != nil {
		return nil, err
	}
	shape, err := domain.CompileQuery(sql)
	if err != nil {
		s.logger.WarnContext(ctx, "query rejected",
			slog.String("estimate.layout", layout.Name),
			slog.String("db.statement", sql),
			slog.String("error.type", "compile_error"),
		)
		s.inst.IncrementEstimateErrors(ctx)
		return nil, fmt.Errorf("compiling: %w", err)
	}
	spec := domain.QuerySpec{ID: AdHocQueryID, SQL: sql}
	res, err := s.evaluate(ctx, uuid.NewString(), layout, spec, shape, posture)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *EstimatorService) evaluate(ctx context.Context, runID string, layout *domain.Layout, spec domain.QuerySpec, shape *domain.QueryShape, posture domain.Posture) (QueryResult, error) {
	ctx, span := s.tracer.Start(ctx, "EstimatorService.Estimate",
		trace.WithAttributes(
			attribute.String("estimate.layout", layout.Name),
			attribute.String("estimate.query", spec.ID),
			attribute.Bool("estimate.sharded", posture.Sharded),
			attribute.String("db.statement", spec.SQL),
		),
	)
	defer span.End()

	plan := shape.Bind(posture, s.model.Stats)
	res := QueryResult{
		QueryID: spec.ID,
		Title:   spec.Title,
		Layout:  layout.Name,
		Posture: posture,
		Kind:    plan.Kind,
	}

	start := time.Now()
	cost, err := s.model.Evaluate(layout, plan)
	durationMS := time.Since(start).Milliseconds()
	s.inst.RecordEstimateDuration(ctx, float64(durationMS))

	entry := port.RunEntry{
		RunID:      runID,
		Tool:       toolNameFromCtx(ctx),
		Layout:     layout.Name,
		QueryID:    spec.ID,
		SQL:        spec.SQL,
		Posture:    posture,
		DurationMS: durationMS,
	}

	if msg, ok := domain.NotApplicable(err); ok {
		res.NotApplicable = msg
		entry.NotApplicable = msg
		s.recorder.Record(ctx, entry)
		s.inst.IncrementNotApplicable(ctx)
		span.SetAttributes(attribute.String("estimate.not_applicable", msg))
		s.logger.DebugContext(ctx, "estimate not applicable",
			slog.String("estimate.layout", layout.Name),
			slog.String("estimate.query", spec.ID),
		)
		return res, nil
	}
	if err != nil {
		entry.Err = err
		s.recorder.Record(ctx, entry)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementEstimateErrors(ctx)
		return res, fmt.Errorf("estimating %s on %s: %w", spec.ID, layout.Name, err)
	}

	res.Cost = &cost
	entry.Cost = &cost
	s.recorder.Record(ctx, entry)
	s.inst.IncrementEstimateCount(ctx)
	span.SetAttributes(
		attribute.String("estimate.operator", cost.Name),
		attribute.Float64("estimate.scanned_bytes", cost.ScannedBytes),
		attribute.Int64("estimate.shards_touched", cost.ShardsTouched),
	)
	return res, nil
}
