package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/adapter/report"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/config"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 50

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docdbcost",
		Short: "Estimate storage, sharding and query costs of five document-database layouts",
		Long: `docdbcost sizes five candidate document-database layouts (DB1..DB5) of a
product / stock / warehouse / order-line / client dataset, assesses sharding keys,
and estimates what filter, join and aggregate queries cost on each layout, unsharded
and sharded: documents, bytes scanned, shards touched, time, carbon and price.

Without a subcommand it prints the full report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withApp(runReport),
	}
	registerFlags(root.PersistentFlags())
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		&cobra.Command{
			Use:   "report",
			Short: "Sizes, sharding strategies and the workload on every layout",
			Args:  cobra.NoArgs,
			RunE:  withApp(runReport),
		},
		&cobra.Command{
			Use:   "sizes",
			Short: "Document, collection and database sizes per layout",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app) error {
				sizes, err := a.svc.Sizes()
				if err != nil {
					return err
				}
				return writeReport(cmd, a, report.Report{Sizes: sizes}, true)
			}),
		},
		&cobra.Command{
			Use:   "sharding",
			Short: "Documents and shard-key values per server for each sharding strategy",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app) error {
				return writeReport(cmd, a, report.Report{Sharding: a.svc.Sharding()}, true)
			}),
		},
		&cobra.Command{
			Use:   "queries",
			Short: "List the workload queries",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app) error {
				return writeReport(cmd, a, report.Report{Queries: a.svc.Queries()}, false)
			}),
		},
		&cobra.Command{
			Use:   "assumptions",
			Short: "Statistics, cost rates, selectivity, join fan-out and group counts behind every estimate",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app) error {
				assumptions := a.svc.Assumptions()
				return writeReport(cmd, a, report.Report{Assumptions: &assumptions}, true)
			}),
		},
		newEstimateCmd(),
		newHistoryCmd(),
		newServeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "docdbcost %s\n", version)
			},
		},
	)
	return root
}

func newEstimateCmd() *cobra.Command {
	var (
		layout, sql                  string
		sharded, shardAware, indexed bool
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate one SELECT on one layout",
		Example: `  docdbcost estimate --layout DB1 --sql "SELECT name, price FROM Product WHERE brand = 'Apple'" --indexed
  docdbcost estimate --layout DB4 --sql "SELECT IDP, SUM(quantity) FROM OrderLine GROUP BY IDP" --sharded`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			posture := domain.Posture{Sharded: sharded, ShardAware: shardAware, Indexed: indexed}
			res, err := a.svc.Estimate(cmd.Context(), layout, sql, posture)
			if err != nil {
				return err
			}
			return writeReport(cmd, a, report.Report{Estimate: res}, false)
		}),
	}
	cmd.Flags().StringVar(&layout, "layout", "", "layout name, e.g. DB1")
	cmd.Flags().StringVar(&sql, "sql", "", "SELECT statement to estimate")
	cmd.Flags().BoolVar(&sharded, "sharded", false, "estimate on the sharded cluster")
	cmd.Flags().BoolVar(&shardAware, "shard-aware", false, "the filter, join or group key is the shard key")
	cmd.Flags().BoolVar(&indexed, "indexed", false, "an index exists on the filter key")
	_ = cmd.MarkFlagRequired("layout")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded estimates from the PostgreSQL run store, most recent first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			if a.history == nil {
				return errors.New("history requires DATABASE_URL (set via env var or --database-url flag)")
			}
			records, err := a.history.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			return writeReport(cmd, a, report.Report{History: records}, false)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "maximum number of entries")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the estimator as MCP tools over stdio or streamable HTTP",
		Args:  cobra.NoArgs,
		RunE:  withApp(runServe),
	}
}

func runReport(cmd *cobra.Command, a *app) error {
	sizes, err := a.svc.Sizes()
	if err != nil {
		return err
	}
	workload, err := a.svc.RunWorkload(cmd.Context())
	if err != nil {
		return err
	}
	r := report.Report{
		Sizes:    sizes,
		Sharding: a.svc.Sharding(),
		Workload: workload,
	}
	if a.cfg.XLSXPath != "" {
		assumptions := a.svc.Assumptions()
		r.Assumptions = &assumptions
	}
	return writeReport(cmd, a, r, true)
}

// withApp resolves the config from env and flags, builds the app for the
// duration of one command and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		cfg, err := config.Load(overridesFromFlags(cmd.Flags()))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.Close(context.WithoutCancel(cmd.Context())))
		}()
		return fn(cmd, a)
	}
}

// writeReport prints r in the configured format and, when tabular is set and
// an XLSX path is configured, exports it to a workbook too.
func writeReport(cmd *cobra.Command, a *app, r report.Report, tabular bool) error {
	format, err := report.ParseFormat(a.cfg.Output)
	if err != nil {
		return err
	}
	if err := report.Write(cmd.OutOrStdout(), format, r); err != nil {
		return err
	}
	if tabular && a.cfg.XLSXPath != "" {
		if err := report.WriteXLSX(a.cfg.XLSXPath, r); err != nil {
			return err
		}
		a.logger.Info("workbook written", slog.String("file", a.cfg.XLSXPath))
	}
	return nil
}
