package mcp

import (
	"log/slog"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer exposing the estimator, with logging and
// telemetry hooks around every tool call.
func NewServer(version string, estimator *service.EstimatorService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, estimator, logger)

	return s
}
