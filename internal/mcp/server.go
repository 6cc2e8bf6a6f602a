// Package mcp exposes the recommendation pipeline and its stores as MCP
// tools over stdio.
package mcp

import (
	"context"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/reel/internal/app"
	"github.com/hpungsan/reel/internal/logging"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"get_recommendation": {
		def:     getRecommendationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetRecommendation },
	},
	"refine_search": {
		def:     refineSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRefineSearch },
	},
	"record_feedback": {
		def:     recordFeedbackToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecordFeedback },
	},
	"get_trending": {
		def:     getTrendingToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetTrending },
	},
	"trajectory_list": {
		def:     trajectoryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrajectoryList },
	},
	"trajectory_fetch": {
		def:     trajectoryFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrajectoryFetch },
	},
	"trajectory_export": {
		def:     trajectoryExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrajectoryExport },
	},
	"trajectory_purge": {
		def:     trajectoryPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrajectoryPurge },
	},
	"catalog_import": {
		def:     catalogImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCatalogImport },
	},
	"catalog_export": {
		def:     catalogExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCatalogExport },
	},
	"catalog_stats": {
		def:     catalogStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCatalogStats },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the reel tools registered, except
// those listed in cfg.DisabledTools.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"reel",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(a)

	disabled := make(map[string]bool, len(a.Config.DisabledTools))
	for _, name := range a.Config.DisabledTools {
		disabled[name] = true
	}
	if unknown := ValidateDisabledTools(a.Config.DisabledTools); len(unknown) > 0 {
		logging.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, withLogging(name, entry.handler(h)))
	}

	return s
}

// withLogging logs each call's outcome at debug level.
func withLogging(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		logging.Debug().
			Str("tool", name).
			Dur("duration", time.Since(start)).
			Bool("is_error", res != nil && res.IsError).
			Msg("tool call")
		return res, err
	}
}

// Run starts the MCP server using stdio transport.
func Run(a *app.App, version string) error {
	return server.ServeStdio(NewServer(a, version))
}
