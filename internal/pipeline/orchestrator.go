// Package pipeline drives one recommendation request through the mapper,
// the parallel catalog and trend lookups, scoring, diversity selection and
// presentation, and records every step in a trajectory.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/config"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/metrics"
	"github.com/hpungsan/reel/internal/present"
	"github.com/hpungsan/reel/internal/trajectory"
	"github.com/hpungsan/reel/internal/validation"
)

// Stage names, as recorded in trajectories and metrics.
const (
	StageIntent  = "intent"
	StageCatalog = "catalog"
	StageTrend   = "trend"
	StageMatch   = "match"
	StagePresent = "present"
	StageStore   = "store"
)

// State is a position in the request state machine.
type State int

const (
	StateInit State = iota
	StateIntentExtracted
	StateParallelSearchDone
	StateScored
	StateAlternativesSelected
	StatePresented
	StateTrajectoryStored
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"init", "intent_extracted", "parallel_search_done", "scored",
	"alternatives_selected", "presented", "trajectory_stored", "done", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Collaborators.
type (
	StateMapper interface {
		Map(ctx context.Context, mood emotion.Mood, goal emotion.Goal, rc *emotion.RequestContext) (emotion.State, error)
	}
	CandidateSource interface {
		Search(ctx context.Context, state emotion.State, c *catalog.Constraints) ([]catalog.Candidate, error)
	}
	TrendBooster interface {
		Boosts(ctx context.Context) (map[string]float64, error)
	}
	Scorer interface {
		Score(ctx context.Context, cands []catalog.Candidate, state emotion.State, boosts map[string]float64) ([]catalog.Candidate, error)
	}
	Presenter interface {
		Present(ctx context.Context, top catalog.Candidate, alts []catalog.Candidate, state emotion.State) (*present.Presentation, error)
	}
	// TrajectoryStore persists trajectories and their feedback. Get returns
	// a NOT_FOUND error for unknown request ids.
	TrajectoryStore interface {
		Store(ctx context.Context, t *trajectory.Trajectory) error
		Get(ctx context.Context, requestID string) (*trajectory.Trajectory, error)
		AddFeedback(ctx context.Context, f *trajectory.Feedback) error
	}
)

// Deps are the orchestrator's collaborators. Store may be nil.
type Deps struct {
	Mapper    StateMapper
	Source    CandidateSource
	Booster   TrendBooster
	Scorer    Scorer
	Presenter Presenter
	Store     TrajectoryStore
}

// Settings are the orchestrator's tunables.
type Settings struct {
	MinCandidates     int
	MaxAlternatives   int
	Retry             RetryPolicy
	MaxProcessingTime time.Duration
	StoreTrajectories bool
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MinCandidates:     10,
		MaxAlternatives:   3,
		Retry:             DefaultRetryPolicy,
		MaxProcessingTime: 3 * time.Second,
		StoreTrajectories: true,
	}
}

// SettingsFromConfig builds Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MinCandidates:     cfg.MinCandidates,
		MaxAlternatives:   cfg.MaxAlternatives,
		Retry:             RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryDelay()},
		MaxProcessingTime: cfg.MaxProcessingTime(),
		StoreTrajectories: !cfg.DisableTrajectoryStorage,
	}
}

// Orchestrator runs the recommendation workflow. It is safe for concurrent
// use; each request gets its own trajectory.
type Orchestrator struct {
	deps     Deps
	settings Settings
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, settings Settings) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		settings: settings,
		now:      time.Now,
		logger:   logging.Component("pipeline"),
	}
}

// WithClock replaces the clock used for latency and the time budget.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	c := *o
	c.now = now
	return &c
}

// run is the per-request state.
type run struct {
	o       *Orchestrator
	req     Request
	opts    resolved
	traj    *trajectory.Trajectory
	state   State
	invoked []string
	start   time.Time
	log     *zerolog.Logger
}

func (r *run) transition(to State) {
	r.log.Debug().Str("from", r.state.String()).Str("to", to.String()).Msg("pipeline transition")
	r.state = to
}

func (r *run) invoke(stage string) {
	r.invoked = append(r.invoked, stage)
}

// Recommend runs the full workflow for req.
func (o *Orchestrator) Recommend(ctx context.Context, req Request) (*Response, error) {
	if err := validation.Struct(&req); err != nil {
		metrics.Recommendations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := o.now()
	requestID := logging.GenerateRequestID()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = logging.GenerateRequestID()
	}

	traj := trajectory.New(requestID, sessionID, req.UserID, req.Mood, req.Goal, start)
	traj.Context = req.Context
	if req.Constraints != nil {
		traj.Constraints = *req.Constraints
	}
	traj.ParentRequestID = req.parentRequestID
	traj.RefinementCount = req.refinementCount

	r := &run{
		o:     o,
		req:   req,
		opts:  req.Options.resolve(o.settings.MaxAlternatives),
		traj:  traj,
		start: start,
		log:   logging.Ctx(ctx),
	}

	resp, err := r.execute(ctx)
	latency := o.now().Sub(start)
	traj.LatencyMS = latency.Milliseconds()
	metrics.RecommendationLatency.Observe(latency.Seconds())

	if err != nil {
		r.transition(StateFailed)
		code := string(errors.ErrInternal)
		if rErr, ok := errors.As(err); ok {
			code = string(rErr.Code)
			if rErr.Details == nil {
				rErr.Details = map[string]any{}
			}
			rErr.Details["request_id"] = requestID
		}
		traj.Fail(code, err)
		r.store(ctx)
		metrics.Recommendations.WithLabelValues(outcomeFor(err)).Inc()
		r.log.Error().Err(err).Str("stage", errors.Stage(err)).Msg("recommendation failed")
		return nil, err
	}

	r.store(ctx)
	r.transition(StateDone)
	resp.Metadata.StagesInvoked = r.invoked
	metrics.Recommendations.WithLabelValues("success").Inc()
	r.log.Info().
		Str("content_id", resp.TopPick.ID).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Bool("over_budget", resp.Metadata.OverBudget).
		Msg("recommendation complete")
	return resp, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, errors.ErrInsufficientCandidates):
		return "insufficient"
	case errors.Is(err, errors.ErrInvalidRequest):
		return "invalid"
	default:
		return "failed"
	}
}

func (r *run) execute(ctx context.Context) (*Response, error) {
	o := r.o
	policy := o.settings.Retry

	// Init -> IntentExtracted
	t0 := o.now()
	r.invoke(StageIntent)
	state, err := Retry(ctx, StageIntent, policy, func(ctx context.Context) (emotion.State, error) {
		return o.deps.Mapper.Map(ctx, r.req.Mood, r.req.Goal, r.req.Context)
	})
	r.step(StageIntent, "map_emotional_state", t0,
		map[string]any{"mood": r.req.Mood, "goal": r.req.Goal},
		map[string]any{"energy": state.Energy, "valence": state.Valence, "dominant_need": state.Needs.Dominant().String()},
		err)
	if err != nil {
		return nil, err
	}
	r.traj.State = state
	r.transition(StateIntentExtracted)

	// IntentExtracted -> ParallelSearchDone
	cands, boosts, err := r.parallelSearch(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(cands) < o.settings.MinCandidates {
		return nil, errors.NewInsufficientCandidates(len(cands), o.settings.MinCandidates)
	}
	r.transition(StateParallelSearchDone)

	// ParallelSearchDone -> Scored
	t0 = o.now()
	r.invoke(StageMatch)
	ranked, err := Retry(ctx, StageMatch, policy, func(ctx context.Context) ([]catalog.Candidate, error) {
		return o.deps.Scorer.Score(ctx, cands, state, boosts)
	})
	out := map[string]any{}
	if len(ranked) > 0 {
		out["top_id"] = ranked[0].Metadata.ID
		out["top_score"] = ranked[0].MatchScore
	}
	r.step(StageMatch, "score_candidates", t0, map[string]any{"candidates": len(cands)}, out, err)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, errors.NewInsufficientCandidates(0, o.settings.MinCandidates)
	}
	r.transition(StateScored)
	metrics.CandidatesEvaluated.Observe(float64(len(ranked)))

	// Scored -> AlternativesSelected
	top := ranked[0]
	alts := SelectAlternatives(ranked[1:], r.opts.alternatives)
	r.transition(StateAlternativesSelected)

	// AlternativesSelected -> Presented
	t0 = o.now()
	r.invoke(StagePresent)
	pres, err := Retry(ctx, StagePresent, policy, func(ctx context.Context) (*present.Presentation, error) {
		return o.deps.Presenter.Present(ctx, top, alts, state)
	})
	r.step(StagePresent, "format_recommendation", t0,
		map[string]any{"top_id": top.Metadata.ID, "alternatives": len(alts)},
		map[string]any{"ok": err == nil},
		err)
	if err != nil {
		return nil, err
	}
	r.transition(StatePresented)

	// Soft budget: measured after the fact, nothing is cancelled.
	elapsed := o.now().Sub(r.start)
	overBudget := o.settings.MaxProcessingTime > 0 && elapsed > o.settings.MaxProcessingTime
	if overBudget {
		metrics.OverBudget.Inc()
		r.log.Warn().
			Dur("elapsed", elapsed).
			Dur("budget", o.settings.MaxProcessingTime).
			Msg("recommendation exceeded processing budget")
	}
	r.traj.OverBudget = overBudget
	r.traj.Complete(summarize(top, alts))

	return r.response(pres, len(ranked), elapsed, overBudget), nil
}

// parallelSearch runs the catalog search and the trend lookup concurrently
// and waits for both. Only the catalog can fail the request.
func (r *run) parallelSearch(ctx context.Context, state emotion.State) ([]catalog.Candidate, map[string]float64, error) {
	o := r.o
	policy := o.settings.Retry
	t0 := o.now()

	var (
		cands         []catalog.Candidate
		boosts        = map[string]float64{}
		trendDegraded bool
		g             errgroup.Group
	)

	r.invoke(StageCatalog)
	g.Go(func() error {
		start := o.now()
		defer func() { metrics.ObserveStage(StageCatalog, o.now().Sub(start)) }()
		var err error
		cands, err = Retry(ctx, StageCatalog, policy, func(ctx context.Context) ([]catalog.Candidate, error) {
			return o.deps.Source.Search(ctx, state, r.req.Constraints)
		})
		return err
	})

	if r.opts.trending && o.deps.Booster != nil {
		r.invoke(StageTrend)
		g.Go(func() error {
			start := o.now()
			defer func() { metrics.ObserveStage(StageTrend, o.now().Sub(start)) }()
			b, err := Retry(ctx, StageTrend, policy, o.deps.Booster.Boosts)
			if err != nil {
				trendDegraded = true
				r.log.Warn().Err(err).Msg("trend boosts unavailable, continuing without them")
				return nil
			}
			if b != nil {
				boosts = b
			}
			return nil
		})
	}

	err := g.Wait()
	r.step(StageCatalog, "parallel_search", t0,
		map[string]any{"constraints": !constraintsEmpty(r.req.Constraints), "trending": r.opts.trending},
		map[string]any{"candidates": len(cands), "trend_boosts": len(boosts), "trend_degraded": trendDegraded},
		err)
	return cands, boosts, err
}

func constraintsEmpty(c *catalog.Constraints) bool {
	return c == nil || c.IsZero()
}

// step records a trajectory step and the stage metric. Parallel stages
// observe their own durations.
func (r *run) step(stage, action string, t0 time.Time, in, out map[string]any, err error) {
	now := r.o.now()
	if err != nil {
		if out == nil {
			out = map[string]any{}
		}
		out["error"] = err.Error()
	}
	if stage != StageCatalog {
		metrics.ObserveStage(stage, now.Sub(t0))
	}
	r.traj.AddStep(stage, action, in, out, now.Sub(t0), now)
}

// store hands the trajectory to the store. Errors are logged, never returned.
func (r *run) store(ctx context.Context) {
	o := r.o
	if !o.settings.StoreTrajectories || o.deps.Store == nil {
		return
	}
	r.invoke(StageStore)
	t0 := o.now()
	err := o.deps.Store.Store(ctx, r.traj)
	metrics.ObserveStage(StageStore, o.now().Sub(t0))
	if err != nil {
		metrics.TrajectoryStoreErrors.Inc()
		r.log.Warn().Err(err).Str("trajectory_id", r.traj.ID).Msg("trajectory store failed")
		return
	}
	if r.state != StateFailed {
		r.transition(StateTrajectoryStored)
	}
}

func summarize(top catalog.Candidate, alts []catalog.Candidate) trajectory.Recommendation {
	return trajectory.Recommendation{
		ContentID:        top.Metadata.ID,
		Title:            top.Metadata.Title,
		Genres:           append([]string(nil), top.Metadata.Genres...),
		Runtime:          top.Metadata.Runtime,
		MatchScore:       top.MatchScore,
		UtilityScore:     top.UtilityScore,
		VectorSimilarity: top.VectorSimilarity,
		Alternatives:     catalog.IDs(alts),
	}
}

func (r *run) response(p *present.Presentation, evaluated int, elapsed time.Duration, overBudget bool) *Response {
	resp := &Response{
		TopPick: p.TopPick,
		Metadata: Metadata{
			RequestID:           r.traj.RequestID,
			SessionID:           r.traj.SessionID,
			Timestamp:           r.start.UTC(),
			LatencyMS:           elapsed.Milliseconds(),
			CandidatesEvaluated: evaluated,
			OverBudget:          overBudget,
			ParentRequestID:     r.traj.ParentRequestID,
			RefinementCount:     r.traj.RefinementCount,
		},
	}
	if r.opts.alternatives > 0 {
		resp.Alternatives = p.Alternatives
	}
	if r.opts.reasoning {
		reasoning := p.Reasoning
		resp.Reasoning = &reasoning
	}
	if !r.opts.provenance {
		resp.TopPick.Provenance = nil
		for i := range resp.Alternatives {
			resp.Alternatives[i].Provenance = nil
		}
	}
	return resp
}
