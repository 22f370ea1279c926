package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "docdbcost"

// Tool descriptions
const (
	descListLayouts = "List the five candidate document-database layouts (DB1..DB5): which collections each keeps " +
		"at top level, what is embedded where, and the denormalization trade-off of each design. " +
		"Call this first to learn the layout names accepted by the other tools."

	descLayoutSizes = "Compute the average document size of every collection, the collection sizes and the total " +
		"database size of each layout, from the dataset statistics. Sizes are in bytes with a GiB figure alongside."

	descShardingReport = "Assess sharding strategies (Stock by IDP or IDW, OrderLine by IDC or IDP, Product by IDP or brand): " +
		"average documents and distinct shard-key values per server, and whether the key spreads finely, " +
		"coarsely or insufficiently over the cluster."

	descEstimateQuery = "Estimate the cost of one SELECT on one layout: output documents and bytes, bytes scanned, " +
		"shards touched, time, carbon and price. Supported: single-collection equality filters, an equi-join " +
		"of two collections with filters on the first, or GROUP BY with aggregates. " +
		"A layout lacking a referenced collection returns a not-applicable diagnostic instead of a cost."

	descEstimateLayout = "Layout name, e.g. DB1"
	descEstimateSQL    = "SELECT statement over Product, Stock, Warehouse, OrderLine or Client"

	descRunWorkload = "Evaluate every workload query on every layout, unsharded and sharded. " +
		"Returns one row per (query, layout, posture) with either a cost or a not-applicable diagnostic."

	descAssumptions = "Show the assumptions behind every estimate: dataset statistics, cluster size, cost rates, " +
		"selectivity rules per filter key, join fan-out per collection pair and distinct-group counts."
)

// RegisterTools adds the estimator tools to the MCP server.
func RegisterTools(s *server.MCPServer, estimator *service.EstimatorService, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("list_layouts",
			mcp.WithDescription(descListLayouts),
		),
		listLayoutsHandler(estimator),
	)

	s.AddTool(
		mcp.NewTool("layout_sizes",
			mcp.WithDescription(descLayoutSizes),
		),
		layoutSizesHandler(estimator, logger),
	)

	s.AddTool(
		mcp.NewTool("sharding_report",
			mcp.WithDescription(descShardingReport),
		),
		shardingReportHandler(estimator),
	)

	s.AddTool(
		mcp.NewTool("estimate_query",
			mcp.WithDescription(descEstimateQuery),
			mcp.WithString("layout",
				mcp.Required(),
				mcp.Description(descEstimateLayout),
			),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descEstimateSQL),
			),
			mcp.WithBoolean("sharded",
				mcp.Description("Estimate on the sharded cluster instead of a single server. Defaults to false."),
			),
			mcp.WithBoolean("shard_aware",
				mcp.Description("The filter, join or group key is the shard key. Defaults to false."),
			),
			mcp.WithBoolean("indexed",
				mcp.Description("An index exists on the filter key. Defaults to false."),
			),
		),
		estimateQueryHandler(estimator, logger),
	)

	s.AddTool(
		mcp.NewTool("run_workload",
			mcp.WithDescription(descRunWorkload),
		),
		runWorkloadHandler(estimator, logger),
	)

	s.AddTool(
		mcp.NewTool("describe_assumptions",
			mcp.WithDescription(descAssumptions),
		),
		assumptionsHandler(estimator),
	)
}

// layoutInfo is the list_layouts row.
type layoutInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	Collections []string `json:"collections"`
}

func listLayoutsHandler(estimator *service.EstimatorService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var out []layoutInfo
		for _, l := range estimator.Layouts() {
			out = append(out, layoutInfo{
				Name:        l.Name,
				Description: l.Description,
				Notes:       l.Notes,
				Collections: l.CollectionNames(),
			})
		}
		return jsonResult(out)
	}
}

func layoutSizesHandler(estimator *service.EstimatorService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sizes, err := estimator.Sizes()
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "size layouts")), nil
		}
		return jsonResult(sizes)
	}
}

func shardingReportHandler(estimator *service.EstimatorService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(estimator.Sharding())
	}
}

func estimateQueryHandler(estimator *service.EstimatorService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		layout, ok := args["layout"].(string)
		if !ok || layout == "" {
			return mcp.NewToolResultError("layout is required"), nil
		}
		sql, ok := args["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}
		posture := domain.Posture{}
		posture.Sharded, _ = args["sharded"].(bool)
		posture.ShardAware, _ = args["shard_aware"].(bool)
		posture.Indexed, _ = args["indexed"].(bool)

		ctx = service.WithToolName(ctx, "estimate_query")
		res, err := estimator.Estimate(ctx, layout, sql, posture)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "estimate query")), nil
		}
		return jsonResult(res)
	}
}

func runWorkloadHandler(estimator *service.EstimatorService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = service.WithToolName(ctx, "run_workload")
		report, err := estimator.RunWorkload(ctx)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "run workload")), nil
		}
		return jsonResult(report)
	}
}

func assumptionsHandler(estimator *service.EstimatorService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(estimator.Assumptions())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// userErrors are safe to return verbatim: they describe the caller's input.
var userErrors = []error{
	domain.ErrEmptyQuery,
	domain.ErrNotAllowed,
	domain.ErrMultiStatement,
	domain.ErrParseFailed,
	domain.ErrUnsupportedQuery,
	domain.ErrUnknownCollection,
	domain.ErrUnknownLayout,
}

// sanitizeError maps an error to a message fit for the MCP client; anything
// that is not an input error is logged and replaced by a generic message.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s cancelled: %v", op, err)
	}
	logger.Error("tool failed", slog.String("op", op), slog.String("error", err.Error()))
	return fmt.Sprintf("internal error during %s; check server logs", op)
}
