// Package app assembles the recommendation pipeline from configuration and
// an open database. The CLI and the MCP server share one App per process.
package app

import (
	"database/sql"
	"time"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/config"
	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/pipeline"
	"github.com/hpungsan/reel/internal/present"
	"github.com/hpungsan/reel/internal/scoring"
	"github.com/hpungsan/reel/internal/trend"
)

// App holds the long-lived collaborators.
type App struct {
	DB           *sql.DB
	Config       *config.Config
	Index        *db.ContentIndex
	Booster      *trend.Booster
	Orchestrator *pipeline.Orchestrator
}

// New wires an App. The content index loads lazily on the first search.
func New(database *sql.DB, cfg *config.Config) *App {
	index := db.NewContentIndex(database)
	booster := trend.NewBooster(TrendSource(cfg), cfg.TrendTTL())

	orch := pipeline.New(pipeline.Deps{
		Mapper:    emotion.NewMapper(),
		Source:    catalog.NewSource(index, cfg.CatalogLimit, cfg.MinSimilarity),
		Booster:   booster,
		Scorer:    scoring.New(),
		Presenter: present.NewPresenter(db.NewEvidenceProvider(database), cfg.DefaultRegions),
		Store:     db.NewTrajectoryStore(database),
	}, pipeline.SettingsFromConfig(cfg))

	return &App{
		DB:           database,
		Config:       cfg,
		Index:        index,
		Booster:      booster,
		Orchestrator: orch,
	}
}

// TrendSource returns the built-in ranking, merged with TMDB when an API
// key is configured.
func TrendSource(cfg *config.Config) trend.Source {
	static := trend.NewStaticSource("seed", cfg.TrendRegion, catalog.SeedTrending)
	if cfg.TMDBAPIKey == "" {
		return static
	}

	logger := logging.Component("app")
	logger.Info().Str("region", cfg.TrendRegion).Msg("tmdb trending enabled")
	tmdb := trend.NewTMDBSource(trend.TMDBConfig{
		BaseURL:           cfg.TMDBBaseURL,
		APIKey:            cfg.TMDBAPIKey,
		Region:            cfg.TrendRegion,
		RequestsPerSecond: cfg.TMDBRequestsPerSecond,
		Timeout:           5 * time.Second,
	})
	return trend.NewMultiSource(static, tmdb)
}
