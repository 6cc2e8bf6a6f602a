package mcp

import "github.com/mark3labs/mcp-go/mcp"

func stringList(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

var constraintProps = map[string]any{
	"max_runtime":       map[string]any{"type": "integer", "minimum": 1, "maximum": 600, "description": "Maximum runtime in minutes"},
	"min_year":          map[string]any{"type": "integer", "minimum": 1900, "maximum": 2100},
	"max_year":          map[string]any{"type": "integer", "minimum": 1900, "maximum": 2100},
	"languages":         stringList("Keep titles in one of these languages"),
	"exclude_languages": stringList("Drop titles in these languages"),
	"genres":            stringList("Keep titles with at least one of these genres"),
	"exclude_genres":    stringList("Drop titles with any of these genres"),
	"exclude_ids":       stringList("Content ids never to return"),
}

var optionProps = map[string]any{
	"include_alternatives": map[string]any{"type": "boolean"},
	"alternative_count":    map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
	"include_provenance":   map[string]any{"type": "boolean"},
	"include_trending":     map[string]any{"type": "boolean"},
	"explain_reasoning":    map[string]any{"type": "boolean"},
}

var contextProps = map[string]any{
	"time_of_day": map[string]any{"type": "string", "enum": []string{"morning", "afternoon", "evening", "night"}},
	"device":      map[string]any{"type": "string", "enum": []string{"mobile", "tablet", "desktop", "tv"}},
	"social":      map[string]any{"type": "string", "enum": []string{"alone", "partner", "family", "friends"}},
}

var getRecommendationToolDef = mcp.NewTool("get_recommendation",
	mcp.WithDescription("Recommend one title plus diverse alternatives for a mood and a goal. Every call is recorded as a trajectory under metadata.request_id."),
	mcp.WithString("mood", mcp.Required(), mcp.Enum("unwind", "engage"), mcp.Description("How the viewer wants to feel")),
	mcp.WithString("goal", mcp.Required(), mcp.Enum("laugh", "feel", "thrill", "think"), mcp.Description("What the viewer wants from the title")),
	mcp.WithString("user_id", mcp.Description("Optional user identifier")),
	mcp.WithString("session_id", mcp.Description("Optional session identifier; generated when omitted")),
	mcp.WithObject("constraints", mcp.Description("Hard filters applied to candidates"), mcp.Properties(constraintProps)),
	mcp.WithObject("context", mcp.Description("Viewing context; time of day defaults to the server clock"), mcp.Properties(contextProps)),
	mcp.WithObject("options", mcp.Description("Response shaping"), mcp.Properties(optionProps)),
	mcp.WithReadOnlyHintAnnotation(false),
	mcp.WithOpenWorldHintAnnotation(true),
)

var refineSearchToolDef = mcp.NewTool("refine_search",
	mcp.WithDescription("Re-run a previous recommendation after the viewer rejected its top pick. The rejection is recorded as feedback."),
	mcp.WithString("previous_request_id", mcp.Required()),
	mcp.WithString("reason", mcp.Required(), mcp.Enum("too_long", "wrong_mood", "seen_it", "not_interested", "prefer_different")),
	mcp.WithString("detail", mcp.Description("Free-text note, stored with the feedback")),
	mcp.WithObject("additional_constraints", mcp.Properties(constraintProps)),
	mcp.WithObject("options", mcp.Properties(optionProps)),
	mcp.WithReadOnlyHintAnnotation(false),
)

var recordFeedbackToolDef = mcp.NewTool("record_feedback",
	mcp.WithDescription("Record what the viewer did with a recommendation. Returns the inferred satisfaction and a success verdict."),
	mcp.WithString("request_id", mcp.Required()),
	mcp.WithString("interaction", mcp.Required(), mcp.Enum("view", "complete", "abandon", "skip", "refine")),
	mcp.WithNumber("completion_rate", mcp.Min(0), mcp.Max(1)),
	mcp.WithNumber("watch_duration_sec", mcp.Min(0)),
	mcp.WithNumber("explicit_rating", mcp.Min(1), mcp.Max(5)),
	mcp.WithString("detail"),
	mcp.WithReadOnlyHintAnnotation(false),
	mcp.WithIdempotentHintAnnotation(false),
)

var getTrendingToolDef = mcp.NewTool("get_trending",
	mcp.WithDescription("List trending titles with the boost each one receives during scoring."),
	mcp.WithString("region", mcp.Description("Region code, e.g. FR; defaults to the configured trend region")),
	mcp.WithNumber("limit", mcp.Min(1), mcp.Max(100), mcp.Description("Default 10")),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)

var trajectoryListToolDef = mcp.NewTool("trajectory_list",
	mcp.WithDescription("List recorded recommendation sessions, newest first."),
	mcp.WithString("session_id"),
	mcp.WithString("user_id"),
	mcp.WithString("status", mcp.Enum("running", "completed", "failed")),
	mcp.WithNumber("limit", mcp.Min(1), mcp.Max(100)),
	mcp.WithNumber("offset", mcp.Min(0)),
	mcp.WithReadOnlyHintAnnotation(true),
)

var trajectoryFetchToolDef = mcp.NewTool("trajectory_fetch",
	mcp.WithDescription("Fetch one recorded session with its steps, feedback and verdict."),
	mcp.WithString("request_id", mcp.Required()),
	mcp.WithReadOnlyHintAnnotation(true),
)

var trajectoryExportToolDef = mcp.NewTool("trajectory_export",
	mcp.WithDescription("Export recorded sessions with feedback to a JSONL file."),
	mcp.WithString("path", mcp.Description("Defaults to ~/.reel/exports/trajectories-<timestamp>.jsonl")),
	mcp.WithNumber("since_days", mcp.Min(0)),
	mcp.WithReadOnlyHintAnnotation(false),
)

var trajectoryPurgeToolDef = mcp.NewTool("trajectory_purge",
	mcp.WithDescription("Permanently delete sessions older than a number of days, with their feedback."),
	mcp.WithNumber("older_than_days", mcp.Required(), mcp.Min(0)),
	mcp.WithDestructiveHintAnnotation(true),
)

var catalogImportToolDef = mcp.NewTool("catalog_import",
	mcp.WithDescription("Import catalog items from a JSONL file."),
	mcp.WithString("path", mcp.Required()),
	mcp.WithString("mode", mcp.Enum("error", "replace", "skip"), mcp.Description("Collision handling; default error (atomic)")),
	mcp.WithDestructiveHintAnnotation(false),
)

var catalogExportToolDef = mcp.NewTool("catalog_export",
	mcp.WithDescription("Export the catalog to a JSONL file."),
	mcp.WithString("path", mcp.Description("Defaults to ~/.reel/exports/catalog-<timestamp>.jsonl")),
	mcp.WithReadOnlyHintAnnotation(false),
)

var catalogStatsToolDef = mcp.NewTool("catalog_stats",
	mcp.WithDescription("Count catalog titles by language, kind and genre."),
	mcp.WithReadOnlyHintAnnotation(true),
)
