// Package ops implements the catalog and trajectory management operations
// shared by the MCP tools and the CLI.
package ops

import (
	"time"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Export kinds, recorded in the header line of every export file.
const (
	ExportKindCatalog      = "catalog"
	ExportKindTrajectories = "trajectories"
)

// ExportSchemaVersion is written to export headers.
const ExportSchemaVersion = "1.0"

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	ReelExport    bool   `json:"_reel_export"`
	Kind          string `json:"kind"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

func daysAgo(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
