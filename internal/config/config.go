package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// MaxProcessingTimeMS is the soft time budget for one recommendation.
	// Exceeding it flags the response as over budget; nothing is cancelled.
	MaxProcessingTimeMS int `json:"max_processing_time_ms"`

	// MinCandidates is the fewest candidates the catalog search may return
	// before a request fails with INSUFFICIENT_CANDIDATES.
	MinCandidates int `json:"min_candidates"`

	// MaxAlternatives bounds the diversified alternative set.
	MaxAlternatives int `json:"max_alternatives"`

	// RetryAttempts and RetryDelayMS define the per-stage retry policy.
	// The wait before attempt n+1 is RetryDelayMS * 2^(n-1).
	RetryAttempts int `json:"retry_attempts"`
	RetryDelayMS  int `json:"retry_delay_ms"`

	// DisableTrajectoryStorage skips handing trajectories to the store.
	DisableTrajectoryStorage bool `json:"disable_trajectory_storage,omitempty"`

	// CatalogLimit and MinSimilarity bound the candidate search.
	CatalogLimit  int     `json:"catalog_limit"`
	MinSimilarity float64 `json:"min_similarity"`

	// TrendTTLMinutes is how long a fetched trending map is reused.
	TrendTTLMinutes int `json:"trend_ttl_minutes"`

	// TrendRegion is the region used for trend fetches and get_trending defaults.
	TrendRegion string `json:"trend_region"`

	// TMDBAPIKey enables the TMDB trending source when set.
	TMDBAPIKey            string  `json:"tmdb_api_key,omitempty"`
	TMDBBaseURL           string  `json:"tmdb_base_url"`
	TMDBRequestsPerSecond float64 `json:"tmdb_requests_per_second"`

	// DefaultRegions is the availability list for titles without their own.
	DefaultRegions []string `json:"default_regions,omitempty"`

	// LogLevel and LogFormat configure the global logger (json or console).
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// MetricsAddr serves Prometheus metrics when non-empty (e.g. "127.0.0.1:9464").
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.reel/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxProcessingTimeMS:   3000,
		MinCandidates:         10,
		MaxAlternatives:       3,
		RetryAttempts:         3,
		RetryDelayMS:          1000,
		CatalogLimit:          50,
		MinSimilarity:         0.3,
		TrendTTLMinutes:       15,
		TrendRegion:           "FR",
		TMDBBaseURL:           "https://api.themoviedb.org/3",
		TMDBRequestsPerSecond: 4,
		DefaultRegions:        []string{"FR"},
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// MaxProcessingTime returns the soft budget as a duration.
func (c *Config) MaxProcessingTime() time.Duration {
	return time.Duration(c.MaxProcessingTimeMS) * time.Millisecond
}

// RetryDelay returns the base retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// TrendTTL returns the trend cache lifetime as a duration.
func (c *Config) TrendTTL() time.Duration {
	return time.Duration(c.TrendTTLMinutes) * time.Minute
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MinCandidates < 0:
		return fmt.Errorf("min_candidates must be >= 0, got %d", c.MinCandidates)
	case c.MaxAlternatives < 0:
		return fmt.Errorf("max_alternatives must be >= 0, got %d", c.MaxAlternatives)
	case c.RetryAttempts < 1:
		return fmt.Errorf("retry_attempts must be >= 1, got %d", c.RetryAttempts)
	case c.RetryDelayMS < 0:
		return fmt.Errorf("retry_delay_ms must be >= 0, got %d", c.RetryDelayMS)
	case c.CatalogLimit < 1:
		return fmt.Errorf("catalog_limit must be >= 1, got %d", c.CatalogLimit)
	case c.MinSimilarity < 0 || c.MinSimilarity > 1:
		return fmt.Errorf("min_similarity must be within [0,1], got %g", c.MinSimilarity)
	case c.TrendTTLMinutes < 0:
		return fmt.Errorf("trend_ttl_minutes must be >= 0, got %d", c.TrendTTLMinutes)
	case c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "console":
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.reel.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.reel) and repo (.reel) directories.
// Repo config is found by walking upward from startDir to find the nearest .reel/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .reel/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".reel", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MaxProcessingTimeMS = pickInt(overlay.MaxProcessingTimeMS, base.MaxProcessingTimeMS)
	result.MinCandidates = pickInt(overlay.MinCandidates, base.MinCandidates)
	result.MaxAlternatives = pickInt(overlay.MaxAlternatives, base.MaxAlternatives)
	result.RetryAttempts = pickInt(overlay.RetryAttempts, base.RetryAttempts)
	result.RetryDelayMS = pickInt(overlay.RetryDelayMS, base.RetryDelayMS)
	result.CatalogLimit = pickInt(overlay.CatalogLimit, base.CatalogLimit)
	result.TrendTTLMinutes = pickInt(overlay.TrendTTLMinutes, base.TrendTTLMinutes)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.MinSimilarity = overlay.MinSimilarity
	if result.MinSimilarity == 0 {
		result.MinSimilarity = base.MinSimilarity
	}
	result.TMDBRequestsPerSecond = overlay.TMDBRequestsPerSecond
	if result.TMDBRequestsPerSecond == 0 {
		result.TMDBRequestsPerSecond = base.TMDBRequestsPerSecond
	}

	result.TrendRegion = pickString(overlay.TrendRegion, base.TrendRegion)
	result.TMDBAPIKey = pickString(overlay.TMDBAPIKey, base.TMDBAPIKey)
	result.TMDBBaseURL = pickString(overlay.TMDBBaseURL, base.TMDBBaseURL)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)
	result.MetricsAddr = pickString(overlay.MetricsAddr, base.MetricsAddr)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.DisableTrajectoryStorage = base.DisableTrajectoryStorage || overlay.DisableTrajectoryStorage

	// Arrays: merge and deduplicate, except regions where the overlay replaces
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DefaultRegions = mergeStringSlice(nil, overlay.DefaultRegions)
	if result.DefaultRegions == nil {
		result.DefaultRegions = mergeStringSlice(nil, base.DefaultRegions)
	}

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
