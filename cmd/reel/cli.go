package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/reel/internal/app"
	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/mcp"
	"github.com/hpungsan/reel/internal/ops"
	"github.com/hpungsan/reel/internal/pipeline"
	"github.com/hpungsan/reel/internal/trajectory"
)

// maxStdinBytes bounds a JSON request read from stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands. a may be nil
// when only help or version output is needed.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "reel",
		Usage:   "Mood-based film and series recommendations",
		Version: Version,
		Commands: []*cli.Command{
			recommendCmd(a),
			feedbackCmd(a),
			refineCmd(a),
			trendingCmd(a),
			trajectoriesCmd(a),
			catalogCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

func constraintFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "max-runtime", Usage: "Maximum runtime in minutes"},
		&cli.IntFlag{Name: "min-year", Usage: "Earliest release year"},
		&cli.IntFlag{Name: "max-year", Usage: "Latest release year"},
		&cli.StringSliceFlag{Name: "language", Aliases: []string{"l"}, Usage: "Keep only these languages (repeatable)"},
		&cli.StringSliceFlag{Name: "genre", Usage: "Keep titles with one of these genres (repeatable)"},
		&cli.StringSliceFlag{Name: "exclude-genre", Usage: "Drop titles with these genres (repeatable)"},
		&cli.StringSliceFlag{Name: "exclude", Usage: "Content ids to exclude (repeatable)"},
	}
}

// constraintsFromFlags returns nil when no constraint flag is set.
func constraintsFromFlags(c *cli.Context) *catalog.Constraints {
	cons := &catalog.Constraints{
		MaxRuntime:    c.Int("max-runtime"),
		MinYear:       c.Int("min-year"),
		MaxYear:       c.Int("max-year"),
		Languages:     c.StringSlice("language"),
		Genres:        c.StringSlice("genre"),
		ExcludeGenres: c.StringSlice("exclude-genre"),
		ExcludeIDs:    c.StringSlice("exclude"),
	}
	if cons.IsZero() {
		return nil
	}
	return cons
}

// recommendCmd creates the recommend command.
func recommendCmd(a *app.App) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "mood", Aliases: []string{"m"}, Usage: "unwind|engage"},
		&cli.StringFlag{Name: "goal", Aliases: []string{"g"}, Usage: "laugh|feel|thrill|think"},
		&cli.StringFlag{Name: "user", Usage: "User id"},
		&cli.StringFlag{Name: "session", Usage: "Session id (generated when omitted)"},
		&cli.StringFlag{Name: "time-of-day", Usage: "morning|afternoon|evening|night (default: now)"},
		&cli.StringFlag{Name: "device", Usage: "mobile|tablet|desktop|tv"},
		&cli.StringFlag{Name: "social", Usage: "alone|partner|family|friends"},
		&cli.IntFlag{Name: "alternatives", Aliases: []string{"n"}, Usage: "Number of alternatives (1-10)"},
		&cli.BoolFlag{Name: "no-trending", Usage: "Skip trend boosts"},
		&cli.BoolFlag{Name: "no-reasoning", Usage: "Omit the reasoning block"},
		&cli.BoolFlag{Name: "stdin", Usage: "Read the full JSON request from stdin; other flags are ignored"},
	}
	return &cli.Command{
		Name:  "recommend",
		Usage: "Recommend a title for a mood and a goal",
		Flags: append(flags, constraintFlags()...),
		Action: func(c *cli.Context) error {
			var req pipeline.Request
			if c.Bool("stdin") {
				data, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				if err := json.Unmarshal([]byte(data), &req); err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid request JSON: %v", err)))
				}
			} else {
				req = recommendRequestFromFlags(c)
			}

			output, err := a.Orchestrator.Recommend(c.Context, req)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

func recommendRequestFromFlags(c *cli.Context) pipeline.Request {
	req := pipeline.Request{
		Mood:        emotion.Mood(c.String("mood")),
		Goal:        emotion.Goal(c.String("goal")),
		UserID:      c.String("user"),
		SessionID:   c.String("session"),
		Constraints: constraintsFromFlags(c),
	}

	if c.IsSet("time-of-day") || c.IsSet("device") || c.IsSet("social") {
		req.Context = &emotion.RequestContext{
			TimeOfDay: emotion.TimeOfDay(c.String("time-of-day")),
			Device:    emotion.Device(c.String("device")),
			Social:    emotion.Social(c.String("social")),
		}
	}

	opts := &pipeline.Options{AlternativeCount: c.Int("alternatives")}
	if c.Bool("no-trending") {
		opts.IncludeTrending = boolPtr(false)
	}
	if c.Bool("no-reasoning") {
		opts.ExplainReasoning = boolPtr(false)
	}
	req.Options = opts
	return req
}

// feedbackCmd creates the feedback command.
func feedbackCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "feedback",
		Usage:     "Record what happened with a recommendation",
		ArgsUsage: "<request-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "interaction", Aliases: []string{"i"}, Usage: "view|complete|abandon|skip|refine"},
			&cli.Float64Flag{Name: "completion-rate", Usage: "Fraction watched, 0-1"},
			&cli.Float64Flag{Name: "watched", Usage: "Seconds watched"},
			&cli.IntFlag{Name: "rating", Usage: "Explicit rating, 1-5"},
			&cli.StringFlag{Name: "detail", Usage: "Free-text note"},
		},
		Action: func(c *cli.Context) error {
			req := pipeline.FeedbackRequest{
				RequestID:   c.Args().First(),
				Interaction: trajectory.Interaction(c.String("interaction")),
				Detail:      c.String("detail"),
			}
			if c.IsSet("completion-rate") {
				v := c.Float64("completion-rate")
				req.CompletionRate = &v
			}
			if c.IsSet("watched") {
				v := c.Float64("watched")
				req.WatchDurationSec = &v
			}
			if c.IsSet("rating") {
				v := c.Int("rating")
				req.ExplicitRating = &v
			}

			output, err := a.Orchestrator.RecordFeedback(c.Context, req)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// refineCmd creates the refine command.
func refineCmd(a *app.App) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Usage: "too_long|wrong_mood|seen_it|not_interested|prefer_different"},
		&cli.StringFlag{Name: "detail", Usage: "Free-text note"},
	}
	return &cli.Command{
		Name:      "refine",
		Usage:     "Re-run a recommendation after rejecting its top pick",
		ArgsUsage: "<request-id>",
		Flags:     append(flags, constraintFlags()...),
		Action: func(c *cli.Context) error {
			output, err := a.Orchestrator.Refine(c.Context, pipeline.RefineRequest{
				PreviousRequestID:     c.Args().First(),
				Reason:                pipeline.RefineReason(c.String("reason")),
				Detail:                c.String("detail"),
				AdditionalConstraints: constraintsFromFlags(c),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// trendingCmd creates the trending command.
func trendingCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "trending",
		Usage: "List trending titles and their boosts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "region", Usage: "Region code (default: trend_region)"},
			&cli.IntFlag{Name: "limit", Value: mcp.DefaultTrendingLimit, Usage: "Maximum items"},
		},
		Action: func(c *cli.Context) error {
			region := strings.ToUpper(c.String("region"))
			if region == "" {
				region = a.Config.TrendRegion
			}
			if c.Int("limit") < 0 {
				return outputError(errors.NewInvalidRequest("limit must be >= 0"))
			}

			items, err := a.Booster.Trending(c.Context, region, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"region": region, "items": items})
		},
	}
}

// trajectoriesCmd groups the session history commands.
func trajectoriesCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:    "trajectories",
		Aliases: []string{"traj"},
		Usage:   "Inspect recorded recommendation sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sessions, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "Filter by session id"},
					&cli.StringFlag{Name: "user", Usage: "Filter by user id"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status: running|completed|failed"},
					&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Maximum items"},
					&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListTrajectories(c.Context, a.DB, ops.ListTrajectoriesInput{
						SessionID: c.String("session"),
						UserID:    c.String("user"),
						Status:    c.String("status"),
						Limit:     c.Int("limit"),
						Offset:    c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one session with its feedback",
				ArgsUsage: "<request-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("request id is required"))
					}
					output, err := ops.FetchTrajectory(c.Context, a.DB, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "purge",
				Usage: "Permanently delete old sessions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Required: true, Usage: "Age in days, e.g. 30d"},
				},
				Action: func(c *cli.Context) error {
					days, err := parseDuration(c.String("older-than"))
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					output, err := ops.PurgeTrajectories(c.Context, a.DB, ops.PurgeTrajectoriesInput{OlderThanDays: days})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "export",
				Usage: "Export sessions with feedback to JSONL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.reel/exports/trajectories-<timestamp>.jsonl)"},
					&cli.StringFlag{Name: "since", Usage: "Only sessions from the last N days, e.g. 7d"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ExportTrajectoriesInput{Path: c.String("path")}
					if since := c.String("since"); since != "" {
						days, err := parseDuration(since)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.SinceDays = &days
					}
					output, err := ops.ExportTrajectories(c.Context, a.DB, a.Config, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// catalogCmd groups the catalog management commands.
func catalogCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage the content catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "seed",
				Usage: "Load the built-in catalog",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "replace", Usage: "Overwrite stored items with the built-in versions"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.SeedCatalog(c.Context, a.DB, ops.SeedCatalogInput{Replace: c.Bool("replace")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "import",
				Usage: "Import catalog items from a JSONL file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ImportCatalog(c.Context, a.DB, a.Config, ops.ImportCatalogInput{
						Path: c.String("path"),
						Mode: ops.ImportMode(c.String("mode")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "export",
				Usage: "Export the catalog to JSONL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.reel/exports/catalog-<timestamp>.jsonl)"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ExportCatalog(c.Context, a.DB, a.Config, ops.ExportCatalogInput{Path: c.String("path")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "stats",
				Usage: "Count titles by language, kind and genre",
				Action: func(c *cli.Context) error {
					output, err := ops.CatalogStats(c.Context, a.DB)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address (overrides metrics_addr)"},
		},
		Action: func(c *cli.Context) error {
			addr := a.Config.MetricsAddr
			if c.IsSet("metrics-addr") {
				addr = c.String("metrics-addr")
			}
			if err := runServer(c.Context, a, addr); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI as "[CODE] message".
func outputError(err error) error {
	if rErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}

func boolPtr(b bool) *bool { return &b }
