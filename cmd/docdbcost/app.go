package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/adapter/postgres"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/adapter/workload"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/config"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/runlog"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// app is everything a command needs, built from the resolved config.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *service.EstimatorService
	history port.RunHistory // nil without DATABASE_URL
	tracer  trace.Tracer
	inst    *telemetry.Instruments

	recorder  port.RunRecorder
	telemetry *telemetry.Provider
	closeLog  func() error
}

func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg}
	a.logger, a.closeLog = newLogger(cfg, stderr)
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.logger.Info("starting docdbcost",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	a.telemetry, a.tracer, a.inst, err = telemetry.Setup(ctx, cfg.OTelEnabled, "docdbcost", version)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	model, queries, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.WorkloadFile != "" {
		a.logger.Info("workload loaded",
			slog.String("file", cfg.WorkloadFile),
			slog.Int("workload.queries", len(queries)),
		)
	}

	var recorders []port.RunRecorder
	if cfg.RunLog != "" {
		fileRec, err := runlog.NewFileRecorder(cfg.RunLog)
		if err != nil {
			return nil, fmt.Errorf("opening run log: %w", err)
		}
		recorders = append(recorders, fileRec)
		a.logger.Info("run log enabled", slog.String("file", cfg.RunLog))
	}
	if cfg.DatabaseURL != "" {
		store, err := openRunStore(ctx, cfg, a.logger)
		if err != nil {
			_ = runlog.Combine(recorders...).Close()
			return nil, err
		}
		recorders = append(recorders, store)
		a.history = store
	}
	a.recorder = runlog.Combine(recorders...)

	a.svc, err = service.NewEstimatorService(model, queries, a.recorder, a.logger, a.tracer, a.inst)
	if err != nil {
		return nil, fmt.Errorf("building estimator: %w", err)
	}
	return a, nil
}

// buildModel starts from the reference statistics and workload, then applies
// the workload file and the cluster size override.
func buildModel(cfg *config.Config) (domain.Model, []domain.QuerySpec, error) {
	model := domain.DefaultModel()
	queries := domain.DemoQueries()

	if cfg.WorkloadFile != "" {
		w, err := workload.LoadFromFile(cfg.WorkloadFile)
		if err != nil {
			return domain.Model{}, nil, fmt.Errorf("loading workload: %w", err)
		}
		model = w.Apply(model)
		queries = w.QueriesFor(queries)
	}
	if cfg.ClusterServers > 0 {
		model.Infra.Servers = cfg.ClusterServers
	}
	return model, queries, nil
}

func openRunStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*postgres.RunStore, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolSettings{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to run store: %w", err)
	}
	store := postgres.NewRunStore(pool, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("run store connected",
		slog.String("db.system", "postgresql"),
		slog.String("db.url", redactDSN(cfg.DatabaseURL)),
	)
	return store, nil
}

// Close flushes recorders and telemetry, then the log file.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	errs = append(errs, a.telemetry.Shutdown(ctx))
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
	}
	return errors.Join(errs...)
}

// newLogger writes to stderr (stdout carries reports and the MCP stdio
// transport) or to a rotating file when LOG_FILE is set.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func() error) {
	w := stderr
	closeLog := func() error { return nil }
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w, closeLog = rotating, rotating.Close
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), closeLog
	}
	return slog.New(slog.NewJSONHandler(w, opts)), closeLog
}

// redactDSN masks the password of a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
