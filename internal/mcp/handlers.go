package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/reel/internal/app"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/ops"
	"github.com/hpungsan/reel/internal/pipeline"
	"github.com/hpungsan/reel/internal/trend"
	"github.com/hpungsan/reel/internal/validation"
)

// DefaultTrendingLimit is the get_trending page size when none is given.
const DefaultTrendingLimit = 10

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// TrendingRequest represents the arguments for get_trending.
type TrendingRequest struct {
	Region string `json:"region,omitempty" validate:"omitempty,len=2,alpha"`
	Limit  int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// TrendingResponse is the get_trending result.
type TrendingResponse struct {
	Region    string         `json:"region"`
	Items     []trend.Ranked `json:"items"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// RequestIDRequest addresses one stored session.
type RequestIDRequest struct {
	RequestID string `json:"request_id" validate:"required"`
}

// TrajectoryExportRequest represents the arguments for trajectory_export.
type TrajectoryExportRequest struct {
	Path      string `json:"path,omitempty"`
	SinceDays *int   `json:"since_days,omitempty"`
}

// TrajectoryPurgeRequest represents the arguments for trajectory_purge.
type TrajectoryPurgeRequest struct {
	OlderThanDays *int `json:"older_than_days" validate:"required"`
}

// CatalogImportRequest represents the arguments for catalog_import.
type CatalogImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// CatalogExportRequest represents the arguments for catalog_export.
type CatalogExportRequest struct {
	Path string `json:"path,omitempty"`
}

// HandleGetRecommendation handles the get_recommendation tool call.
func (h *Handlers) HandleGetRecommendation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[pipeline.Request](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.app.Orchestrator.Recommend(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRefineSearch handles the refine_search tool call.
func (h *Handlers) HandleRefineSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[pipeline.RefineRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.app.Orchestrator.Refine(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRecordFeedback handles the record_feedback tool call.
func (h *Handlers) HandleRecordFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[pipeline.FeedbackRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.app.Orchestrator.RecordFeedback(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGetTrending handles the get_trending tool call.
func (h *Handlers) HandleGetTrending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrendingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := validation.Struct(&input); err != nil {
		return errorResult(err), nil
	}

	region := strings.ToUpper(input.Region)
	if region == "" {
		region = h.app.Config.TrendRegion
	}
	limit := input.Limit
	if limit == 0 {
		limit = DefaultTrendingLimit
	}

	items, err := h.app.Booster.Trending(ctx, region, limit)
	if err != nil {
		return errorResult(err), nil
	}

	out := TrendingResponse{Region: region, Items: items}
	if exp := h.app.Booster.ExpiresAt(); !exp.IsZero() {
		out.ExpiresAt = &exp
	}
	return successResult(out)
}

// HandleTrajectoryList handles the trajectory_list tool call.
func (h *Handlers) HandleTrajectoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ListTrajectoriesInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListTrajectories(ctx, h.app.DB, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTrajectoryFetch handles the trajectory_fetch tool call.
func (h *Handlers) HandleTrajectoryFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequestIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := validation.Struct(&input); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.FetchTrajectory(ctx, h.app.DB, input.RequestID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTrajectoryExport handles the trajectory_export tool call.
func (h *Handlers) HandleTrajectoryExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrajectoryExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportTrajectories(ctx, h.app.DB, h.app.Config, ops.ExportTrajectoriesInput{
		Path:      input.Path,
		SinceDays: input.SinceDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTrajectoryPurge handles the trajectory_purge tool call.
func (h *Handlers) HandleTrajectoryPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrajectoryPurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := validation.Struct(&input); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.PurgeTrajectories(ctx, h.app.DB, ops.PurgeTrajectoriesInput{
		OlderThanDays: *input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCatalogImport handles the catalog_import tool call. The search index
// is reloaded when anything was written.
func (h *Handlers) HandleCatalogImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CatalogImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportCatalog(ctx, h.app.DB, h.app.Config, ops.ImportCatalogInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	if result.Imported > 0 {
		if err := h.app.Index.Reload(ctx); err != nil {
			return errorResult(err), nil
		}
	}

	return successResult(result)
}

// HandleCatalogExport handles the catalog_export tool call.
func (h *Handlers) HandleCatalogExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CatalogExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportCatalog(ctx, h.app.DB, h.app.Config, ops.ExportCatalogInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCatalogStats handles the catalog_stats tool call.
func (h *Handlers) HandleCatalogStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.CatalogStats(ctx, h.app.DB)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// INTERNAL errors are logged and reported without message or details,
// which can carry paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if rErr, ok := errors.As(err); ok {
		message := rErr.Message
		// Keep context added by fmt.Errorf("...: %w") wrappers.
		if outer := err.Error(); outer != rErr.Error() {
			message = strings.TrimSuffix(outer, rErr.Error()) + rErr.Message
		}
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": message,
			"status":  rErr.Status,
		}
		if rErr.Code != errors.ErrInternal && rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		if rErr.Code == errors.ErrInternal {
			logging.Error().Err(err).Msg("tool call failed")
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		logging.Error().Err(err).Msg("tool call failed")
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
