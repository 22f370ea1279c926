package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// callState holds per-request timing and span data.
type callState struct {
	start time.Time
	span  trace.Span
}

// toolCalls tracks in-flight tool calls by JSON-RPC id.
type toolCalls struct {
	calls  sync.Map // id -> *callState
	logger *slog.Logger
	inst   port.Instrumentation
}

// finish logs the call, records its duration and closes its span. A nil err
// with failed=true means the tool returned an error result.
func (c *toolCalls) finish(ctx context.Context, id any, tool string, failed bool, err error) {
	var duration time.Duration
	var span trace.Span
	if v, ok := c.calls.LoadAndDelete(id); ok {
		state := v.(*callState)
		duration = time.Since(state.start)
		span = state.span
	}

	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("rpc.method", "tools/call"),
		slog.String("mcp.tool", tool),
		slog.Duration("duration", duration),
		slog.Bool("error", failed),
	}
	if failed {
		level = slog.LevelError
	}
	if err != nil {
		attrs = append(attrs, slog.String("error.message", err.Error()))
	}
	c.logger.LogAttrs(ctx, level, "tool call", attrs...)

	if c.inst != nil {
		c.inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
	}

	if span == nil {
		return
	}
	if failed {
		if err == nil {
			err = errors.New("tool " + tool + " returned error")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ToolCallHooks creates MCP hooks that log tool calls and, when tracer or inst
// are set, record spans and durations.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	tc := &toolCalls{logger: logger, inst: inst}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		state := &callState{start: time.Now()}
		if tracer != nil {
			_, state.span = tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(attribute.String("mcp.tool", req.Params.Name)),
			)
		}
		tc.calls.Store(id, state)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		r, ok := result.(*mcp.CallToolResult)
		tc.finish(ctx, id, req.Params.Name, ok && r.IsError, nil)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		req, ok := message.(*mcp.CallToolRequest)
		if !ok {
			return
		}
		tc.finish(ctx, id, req.Params.Name, true, err)
	})

	return hooks
}
