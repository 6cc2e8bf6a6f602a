package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/present"
	"github.com/hpungsan/reel/internal/scoring"
	"github.com/hpungsan/reel/internal/trajectory"
	"github.com/hpungsan/reel/internal/trend"
)

// =============================================================================
// Test doubles
// =============================================================================

type stubSource struct {
	cands    []catalog.Candidate
	failures int32 // fail this many calls before succeeding
	calls    atomic.Int32
	last     atomic.Pointer[catalog.Constraints]
}

func (s *stubSource) Search(_ context.Context, _ emotion.State, c *catalog.Constraints) ([]catalog.Candidate, error) {
	n := s.calls.Add(1)
	if n <= s.failures {
		return nil, fmt.Errorf("index unavailable (call %d)", n)
	}
	var filters catalog.Constraints
	if c != nil {
		filters = *c
		s.last.Store(c)
	}
	return filters.Apply(s.cands, 0, 0), nil
}

type failingTrendSource struct{ calls atomic.Int32 }

func (f *failingTrendSource) Name() string { return "failing" }
func (f *failingTrendSource) Fetch(context.Context) ([]trend.Item, error) {
	f.calls.Add(1)
	return nil, fmt.Errorf("trend provider down")
}

// meeting blocks each of its two parties until both have arrived. Run one
// after the other, the first party never returns.
type meeting struct{ wg sync.WaitGroup }

func newMeeting() *meeting {
	m := &meeting{}
	m.wg.Add(2)
	return m
}

func (m *meeting) arrive() {
	m.wg.Done()
	m.wg.Wait()
}

type meetingSource struct {
	cands []catalog.Candidate
	m     *meeting
	once  sync.Once
}

func (s *meetingSource) Search(context.Context, emotion.State, *catalog.Constraints) ([]catalog.Candidate, error) {
	s.once.Do(s.m.arrive)
	return s.cands, nil
}

type meetingTrendSource struct {
	m    *meeting
	once sync.Once
}

func (s *meetingTrendSource) Name() string { return "meeting" }
func (s *meetingTrendSource) Fetch(context.Context) ([]trend.Item, error) {
	s.once.Do(s.m.arrive)
	return []trend.Item{{ContentID: "comedy-3", Rank: 1, Source: "meeting"}}, nil
}

type failingStore struct{}

func (failingStore) Store(context.Context, *trajectory.Trajectory) error {
	return fmt.Errorf("disk full")
}
func (failingStore) Get(_ context.Context, id string) (*trajectory.Trajectory, error) {
	return nil, errors.NewNotFound("request", id)
}
func (failingStore) AddFeedback(context.Context, *trajectory.Feedback) error { return nil }

func candidate(id string, runtime int, genres ...string) catalog.Candidate {
	return catalog.Candidate{
		Metadata: catalog.Metadata{
			ID: id, Title: id, Runtime: runtime, Language: "fr", Genres: genres,
		},
		VectorSimilarity: 0.8,
	}
}

// comedyDramaCatalog holds five comedies and five dramas. The dramas come
// first and match the query vector slightly better.
func comedyDramaCatalog() []catalog.Candidate {
	var cands []catalog.Candidate
	for i := 1; i <= 5; i++ {
		c := candidate(fmt.Sprintf("drama-%d", i), 100, "Drama")
		c.VectorSimilarity = 0.9
		cands = append(cands, c)
	}
	for i := 1; i <= 5; i++ {
		cands = append(cands, candidate(fmt.Sprintf("comedy-%d", i), 95, "Comedy"))
	}
	return cands
}

func wednesdayAfternoon() time.Time {
	return time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Retry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}
	return s
}

func newTestOrchestrator(src CandidateSource, trendSrc trend.Source, store TrajectoryStore) *Orchestrator {
	if trendSrc == nil {
		trendSrc = trend.NewStaticSource("static", "FR", nil)
	}
	return New(Deps{
		Mapper:    emotion.NewMapper().WithClock(wednesdayAfternoon),
		Source:    src,
		Booster:   trend.NewBooster(trendSrc, time.Minute),
		Scorer:    scoring.New(),
		Presenter: present.NewPresenter(nil, nil),
		Store:     store,
	}, testSettings())
}

// =============================================================================
// Retry
// =============================================================================

func TestRetry_AlwaysFailing(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), "catalog", RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("boom %d", calls)
		})

	require.Equal(t, 3, calls)
	require.True(t, errors.Is(err, errors.ErrStageRetryExhausted))
	require.Equal(t, "catalog", errors.Stage(err))
	require.Contains(t, err.Error(), "boom 3")
}

func TestRetry_SucceedsOnKthAttempt(t *testing.T) {
	for k := 1; k <= 3; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			var calls int
			v, err := Retry(context.Background(), "match", RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
				func(context.Context) (string, error) {
					calls++
					if calls < k {
						return "", fmt.Errorf("not yet")
					}
					return "ok", nil
				})
			require.NoError(t, err)
			require.Equal(t, "ok", v)
			require.Equal(t, k, calls)
		})
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Attempts: 4, BaseDelay: time.Second}
	require.Equal(t, time.Second, p.Delay(1))
	require.Equal(t, 2*time.Second, p.Delay(2))
	require.Equal(t, 4*time.Second, p.Delay(3))
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Retry(ctx, "present", RetryPolicy{Attempts: 5, BaseDelay: time.Hour},
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, fmt.Errorf("fail")
		})
	require.Equal(t, 1, calls)
	require.True(t, errors.Is(err, errors.ErrStageRetryExhausted))
}

// =============================================================================
// Diversity selection
// =============================================================================

func TestSelectAlternatives(t *testing.T) {
	ranked := []catalog.Candidate{
		candidate("a", 90, "Comedy"),
		candidate("b", 90, "Comedy"),
		candidate("c", 90, "Drama"),
		candidate("d", 90, "Comedy", "Drama"),
		candidate("e", 90, "Thriller"),
	}

	got := SelectAlternatives(ranked, 3)
	require.Equal(t, []string{"a", "c", "e"}, catalog.IDs(got))

	// Not enough genre variety: fill from the top in score order.
	got = SelectAlternatives(ranked[:4], 3)
	require.Equal(t, []string{"a", "c", "b"}, catalog.IDs(got))

	require.Empty(t, SelectAlternatives(ranked, 0))
	require.Len(t, SelectAlternatives(ranked[:2], 5), 2)
}

func TestSelectAlternatives_NoDuplicatesWithinQuota(t *testing.T) {
	ranked := []catalog.Candidate{
		candidate("a", 90, "Comedy"),
		candidate("a", 90, "Drama"),
		candidate("b", 90),
		candidate("c", 90, "Drama"),
		candidate("b", 90, "Horror"),
	}
	for quota := 0; quota <= 6; quota++ {
		got := SelectAlternatives(ranked, quota)
		require.LessOrEqual(t, len(got), quota)
		seen := map[string]bool{}
		for _, c := range got {
			require.False(t, seen[c.Metadata.ID], "duplicate %s at quota %d", c.Metadata.ID, quota)
			seen[c.Metadata.ID] = true
		}
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestRecommend_UnwindLaughFavoursComedy(t *testing.T) {
	store := trajectory.NewMemoryStore()
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, store)

	resp, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh})
	require.NoError(t, err)

	top3 := append([]present.Item{resp.TopPick}, resp.Alternatives...)
	if len(top3) > 3 {
		top3 = top3[:3]
	}
	var comedy bool
	for _, it := range top3 {
		for _, g := range it.Genres {
			if g == "Comedy" {
				comedy = true
			}
		}
	}
	require.True(t, comedy, "expected a comedy in the top 3")

	md := resp.Metadata
	require.NotEmpty(t, md.RequestID)
	require.Equal(t, 10, md.CandidatesEvaluated)
	require.Equal(t, []string{StageIntent, StageCatalog, StageTrend, StageMatch, StagePresent, StageStore}, md.StagesInvoked)
	require.False(t, md.OverBudget)
	require.NotNil(t, resp.Reasoning)
	require.Len(t, resp.Alternatives, 3)

	traj, err := store.Get(context.Background(), md.RequestID)
	require.NoError(t, err)
	require.Equal(t, trajectory.StatusCompleted, traj.Status)
	require.Equal(t, []string{StageIntent, StageCatalog, StageMatch, StagePresent}, traj.Stages())
	require.Equal(t, resp.TopPick.ID, traj.Recommendation.ContentID)
}

func TestRecommend_InsufficientCandidates(t *testing.T) {
	store := trajectory.NewMemoryStore()
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()[:5]}, nil, store)

	_, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodEngage, Goal: emotion.GoalThrill})
	require.True(t, errors.Is(err, errors.ErrInsufficientCandidates))
	require.Equal(t, "catalog", errors.Stage(err))

	rErr, _ := errors.As(err)
	requestID, _ := rErr.Details["request_id"].(string)
	require.NotEmpty(t, requestID)

	traj, err := store.Get(context.Background(), requestID)
	require.NoError(t, err)
	require.Equal(t, trajectory.StatusFailed, traj.Status)
	require.Equal(t, string(errors.ErrInsufficientCandidates), traj.ErrorCode)
	require.False(t, traj.HasStage(StageMatch), "scorer must not run")
	require.False(t, traj.HasStage(StagePresent), "presenter must not run")
	require.Nil(t, traj.Recommendation)
}

func TestRecommend_TrendFailureIsNotFatal(t *testing.T) {
	src := &failingTrendSource{}
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, src, trajectory.NewMemoryStore())

	resp, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalFeel})
	require.NoError(t, err)
	require.Zero(t, resp.TopPick.ScoreBreakdown.TrendingBoost)
	for _, alt := range resp.Alternatives {
		require.Zero(t, alt.ScoreBreakdown.TrendingBoost)
	}
	require.GreaterOrEqual(t, src.calls.Load(), int32(1))
}

func TestRecommend_CatalogAndTrendRunConcurrently(t *testing.T) {
	m := newMeeting()
	o := newTestOrchestrator(&meetingSource{cands: comedyDramaCatalog(), m: m}, &meetingTrendSource{m: m}, nil)

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh})
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Contains(t, r.resp.Metadata.StagesInvoked, StageCatalog)
		require.Contains(t, r.resp.Metadata.StagesInvoked, StageTrend)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog search and trend fetch never overlapped")
	}
}

func TestRecommend_CatalogRetriedThenExhausted(t *testing.T) {
	src := &stubSource{cands: comedyDramaCatalog(), failures: 100}
	o := newTestOrchestrator(src, nil, nil)

	_, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalThink})
	require.True(t, errors.Is(err, errors.ErrStageRetryExhausted))
	require.Equal(t, StageCatalog, errors.Stage(err))
	require.EqualValues(t, 3, src.calls.Load())
}

func TestRecommend_CatalogRecoversWithinRetries(t *testing.T) {
	src := &stubSource{cands: comedyDramaCatalog(), failures: 2}
	o := newTestOrchestrator(src, nil, nil)

	_, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalThink})
	require.NoError(t, err)
	require.EqualValues(t, 3, src.calls.Load())
}

func TestRecommend_ValidationRunsFirst(t *testing.T) {
	src := &stubSource{cands: comedyDramaCatalog()}
	o := newTestOrchestrator(src, nil, nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing mood", Request{Goal: emotion.GoalLaugh}},
		{"bad goal", Request{Mood: emotion.MoodUnwind, Goal: "cry"}},
		{"bad device", Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh, Context: &emotion.RequestContext{Device: "fridge"}}},
		{"alternative count", Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh, Options: &Options{AlternativeCount: 11}}},
		{"year range", Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh, Constraints: &catalog.Constraints{MinYear: 1800}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Recommend(context.Background(), tt.req)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
	require.Zero(t, src.calls.Load())
}

func TestRecommend_Options(t *testing.T) {
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, nil)
	off := false

	resp, err := o.Recommend(context.Background(), Request{
		Mood: emotion.MoodEngage,
		Goal: emotion.GoalLaugh,
		Options: &Options{
			IncludeAlternatives: &off,
			IncludeProvenance:   &off,
			IncludeTrending:     &off,
			ExplainReasoning:    &off,
		},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Alternatives)
	require.Nil(t, resp.Reasoning)
	require.Nil(t, resp.TopPick.Provenance)
	require.NotContains(t, resp.Metadata.StagesInvoked, StageTrend)

	resp, err = o.Recommend(context.Background(), Request{
		Mood:    emotion.MoodEngage,
		Goal:    emotion.GoalLaugh,
		Options: &Options{AlternativeCount: 5},
	})
	require.NoError(t, err)
	require.Len(t, resp.Alternatives, 5)
}

func TestRecommend_OverBudgetStillSucceeds(t *testing.T) {
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, nil)

	// Each clock read advances one second.
	var tick atomic.Int64
	base := wednesdayAfternoon()
	o = o.WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	})

	resp, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh})
	require.NoError(t, err)
	require.True(t, resp.Metadata.OverBudget)
}

func TestRecommend_StoreFailureIsSwallowed(t *testing.T) {
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, failingStore{})

	resp, err := o.Recommend(context.Background(), Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh})
	require.NoError(t, err)
	require.NotEmpty(t, resp.TopPick.ID)
}

// =============================================================================
// Feedback and refinement
// =============================================================================

func TestRecordFeedback(t *testing.T) {
	store := trajectory.NewMemoryStore()
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, store)
	ctx := context.Background()

	resp, err := o.Recommend(ctx, Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh})
	require.NoError(t, err)

	res, err := o.RecordFeedback(ctx, FeedbackRequest{RequestID: resp.Metadata.RequestID, Interaction: trajectory.InteractionComplete})
	require.NoError(t, err)
	require.InDelta(t, 0.9, res.Satisfaction, 1e-9)
	require.True(t, res.Verdict.Success)

	// Watch duration is measured against the recommended runtime.
	watched := float64(resp.TopPick.Runtime * 60 / 2)
	res, err = o.RecordFeedback(ctx, FeedbackRequest{RequestID: resp.Metadata.RequestID, Interaction: trajectory.InteractionView, WatchDurationSec: &watched})
	require.NoError(t, err)
	require.InDelta(t, 0.4, res.Satisfaction, 1e-9)

	fb, err := store.Feedback(ctx, resp.Metadata.RequestID)
	require.NoError(t, err)
	require.Len(t, fb, 2)
	require.Equal(t, resp.TopPick.ID, fb[0].ContentID)

	_, err = o.RecordFeedback(ctx, FeedbackRequest{RequestID: "unknown", Interaction: trajectory.InteractionSkip})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	rate := 1.5
	_, err = o.RecordFeedback(ctx, FeedbackRequest{RequestID: resp.Metadata.RequestID, Interaction: trajectory.InteractionView, CompletionRate: &rate})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRecordFeedback_RatingIsStoredNotScored(t *testing.T) {
	store := trajectory.NewMemoryStore()
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, store)
	ctx := context.Background()

	resp, err := o.Recommend(ctx, Request{Mood: emotion.MoodEngage, Goal: emotion.GoalLaugh})
	require.NoError(t, err)

	low, high := 1, 5
	for _, rating := range []*int{&low, &high} {
		res, err := o.RecordFeedback(ctx, FeedbackRequest{
			RequestID:      resp.Metadata.RequestID,
			Interaction:    trajectory.InteractionComplete,
			ExplicitRating: rating,
		})
		require.NoError(t, err)
		require.InDelta(t, 0.9, res.Satisfaction, 1e-9, "rating %d", *rating)
	}

	fb, err := store.Feedback(ctx, resp.Metadata.RequestID)
	require.NoError(t, err)
	require.Len(t, fb, 2)
	require.Equal(t, 1, *fb[0].ExplicitRating)
	require.Equal(t, 5, *fb[1].ExplicitRating)

	bad := 6
	_, err = o.RecordFeedback(ctx, FeedbackRequest{RequestID: resp.Metadata.RequestID, Interaction: trajectory.InteractionComplete, ExplicitRating: &bad})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRefine_SeenItExcludesTopPick(t *testing.T) {
	store := trajectory.NewMemoryStore()
	cands := comedyDramaCatalog()
	cands = append(cands, candidate("comedy-6", 95, "Comedy"), candidate("comedy-7", 95, "Comedy"))
	o := newTestOrchestrator(&stubSource{cands: cands}, nil, store)
	ctx := context.Background()

	first, err := o.Recommend(ctx, Request{Mood: emotion.MoodUnwind, Goal: emotion.GoalLaugh})
	require.NoError(t, err)

	second, err := o.Refine(ctx, RefineRequest{PreviousRequestID: first.Metadata.RequestID, Reason: ReasonSeenIt})
	require.NoError(t, err)
	require.NotEqual(t, first.TopPick.ID, second.TopPick.ID)
	for _, alt := range second.Alternatives {
		require.NotEqual(t, first.TopPick.ID, alt.ID)
	}
	require.Equal(t, 1, second.Metadata.RefinementCount)
	require.Equal(t, first.Metadata.RequestID, second.Metadata.ParentRequestID)
	require.Contains(t, second.Metadata.LearnedFrom, "seen_it")

	fb, err := store.Feedback(ctx, first.Metadata.RequestID)
	require.NoError(t, err)
	require.Len(t, fb, 1)
	require.Equal(t, trajectory.InteractionRefine, fb[0].Interaction)

	third, err := o.Refine(ctx, RefineRequest{PreviousRequestID: second.Metadata.RequestID, Reason: ReasonNotInterested})
	require.NoError(t, err)
	require.Equal(t, 2, third.Metadata.RefinementCount)
}

func TestRefine_UnknownRequest(t *testing.T) {
	o := newTestOrchestrator(&stubSource{cands: comedyDramaCatalog()}, nil, trajectory.NewMemoryStore())
	_, err := o.Refine(context.Background(), RefineRequest{PreviousRequestID: "nope", Reason: ReasonTooLong})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRefineRules(t *testing.T) {
	prev := &trajectory.Trajectory{
		Mood: emotion.MoodUnwind,
		Recommendation: &trajectory.Recommendation{
			ContentID: "fr-1", Title: "Un Film", Runtime: 75, Genres: []string{"Drama", "Romance"},
		},
	}

	next, learned := RefineRules(prev, ReasonTooLong)
	require.Equal(t, 60, next.Constraints.MaxRuntime)
	require.Contains(t, learned, "60 minutes")

	prev.Recommendation.Runtime = 140
	next, _ = RefineRules(prev, ReasonTooLong)
	require.Equal(t, 120, next.Constraints.MaxRuntime)

	next, _ = RefineRules(prev, ReasonPreferDifferent)
	require.Equal(t, []string{"fr-1"}, next.Constraints.ExcludeIDs)
	require.Equal(t, []string{"drama"}, next.Constraints.ExcludeGenres)

	next, _ = RefineRules(prev, ReasonWrongMood)
	require.Equal(t, emotion.MoodEngage, next.Mood)

	next, _ = RefineRules(prev, ReasonSeenIt)
	require.Equal(t, emotion.MoodUnwind, next.Mood)
	require.Equal(t, []string{"fr-1"}, next.Constraints.ExcludeIDs)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "parallel_search_done", StateParallelSearchDone.String())
	require.Equal(t, "failed", StateFailed.String())
}
