package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/metrics"
	"github.com/hpungsan/reel/internal/trajectory"
	"github.com/hpungsan/reel/internal/validation"
)

// RecordFeedback stores an outcome signal for a past request. It never
// changes the response already returned for that request.
func (o *Orchestrator) RecordFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if o.deps.Store == nil {
		return nil, errors.NewNotFound("request", req.RequestID)
	}

	traj, err := o.deps.Store.Get(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	var expected *float64
	var contentID string
	if rec := traj.Recommendation; rec != nil {
		contentID = rec.ContentID
		if rec.Runtime > 0 {
			secs := float64(rec.Runtime * 60)
			expected = &secs
		}
	}

	fb := &trajectory.Feedback{
		ID:                  trajectory.NewID(),
		RequestID:           req.RequestID,
		ContentID:           contentID,
		Interaction:         req.Interaction,
		CompletionRate:      req.CompletionRate,
		WatchDurationSec:    req.WatchDurationSec,
		ExpectedDurationSec: expected,
		ExplicitRating:      req.ExplicitRating,
		Detail:              req.Detail,
		CreatedAt:           o.now().UTC(),
	}
	fb.Satisfaction = trajectory.Satisfaction(fb.Interaction, fb.CompletionRate, fb.WatchDurationSec, fb.ExpectedDurationSec)

	if err := o.deps.Store.AddFeedback(ctx, fb); err != nil {
		return nil, err
	}
	metrics.Feedback.WithLabelValues(string(fb.Interaction)).Inc()

	verdict := trajectory.Judge(*fb)
	logging.Ctx(ctx).Info().
		Str("request_id", req.RequestID).
		Str("interaction", string(fb.Interaction)).
		Float64("satisfaction", fb.Satisfaction).
		Bool("success", verdict.Success).
		Msg("feedback recorded")

	return &FeedbackResult{
		FeedbackID:   fb.ID,
		RequestID:    req.RequestID,
		Satisfaction: fb.Satisfaction,
		Verdict:      verdict,
	}, nil
}

// Refine re-runs a previous request with constraints derived from why the
// user rejected its top pick. The rejection is recorded as refine feedback.
func (o *Orchestrator) Refine(ctx context.Context, req RefineRequest) (*Response, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if o.deps.Store == nil {
		return nil, errors.NewNotFound("request", req.PreviousRequestID)
	}

	prev, err := o.deps.Store.Get(ctx, req.PreviousRequestID)
	if err != nil {
		return nil, err
	}
	if prev.Recommendation == nil {
		return nil, errors.NewConflict(fmt.Sprintf("request %s has no recommendation to refine", req.PreviousRequestID))
	}

	next, learned := RefineRules(prev, req.Reason)
	if req.AdditionalConstraints != nil {
		next.Constraints = next.Constraints.Merge(*req.AdditionalConstraints)
	}

	if _, err := o.RecordFeedback(ctx, FeedbackRequest{
		RequestID:   req.PreviousRequestID,
		Interaction: trajectory.InteractionRefine,
		Detail:      strings.TrimSpace(string(req.Reason) + " " + req.Detail),
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("request_id", req.PreviousRequestID).Msg("refine feedback not recorded")
	}

	constraints := next.Constraints
	resp, err := o.Recommend(ctx, Request{
		Mood:            next.Mood,
		Goal:            prev.Goal,
		UserID:          prev.UserID,
		SessionID:       prev.SessionID,
		Constraints:     &constraints,
		Context:         prev.Context,
		Options:         req.Options,
		parentRequestID: prev.RequestID,
		refinementCount: prev.RefinementCount + 1,
	})
	if err != nil {
		return nil, err
	}
	resp.Metadata.LearnedFrom = learned
	return resp, nil
}

// Refinement is the request shape derived from a rejection.
type Refinement struct {
	Mood        emotion.Mood
	Constraints catalog.Constraints
}

// RefineRules applies the per-reason adjustment to prev:
//
//	too_long          max runtime = max(60, top runtime - 20)
//	seen_it           exclude the top pick
//	not_interested    exclude the top pick
//	prefer_different  exclude the top pick and its first genre
//	wrong_mood        flip unwind/engage
//
// It returns the new request shape and a sentence describing it.
func RefineRules(prev *trajectory.Trajectory, reason RefineReason) (Refinement, string) {
	next := Refinement{Mood: prev.Mood, Constraints: prev.Constraints}
	top := prev.Recommendation

	var what string
	switch reason {
	case ReasonTooLong:
		runtime := top.Runtime
		if runtime == 0 {
			runtime = 120
		}
		limit := runtime - 20
		if limit < 60 {
			limit = 60
		}
		if next.Constraints.MaxRuntime == 0 || limit < next.Constraints.MaxRuntime {
			next.Constraints.MaxRuntime = limit
		}
		what = fmt.Sprintf("limited runtime to %d minutes", next.Constraints.MaxRuntime)
	case ReasonSeenIt, ReasonNotInterested:
		next.Constraints = next.Constraints.Merge(catalog.Constraints{ExcludeIDs: []string{top.ContentID}})
		what = fmt.Sprintf("excluded %q", top.Title)
	case ReasonPreferDifferent:
		add := catalog.Constraints{ExcludeIDs: []string{top.ContentID}}
		if len(top.Genres) > 0 {
			add.ExcludeGenres = []string{catalog.NormalizeGenre(top.Genres[0])}
		}
		next.Constraints = next.Constraints.Merge(add)
		if len(add.ExcludeGenres) > 0 {
			what = fmt.Sprintf("excluded %q and the %s genre", top.Title, add.ExcludeGenres[0])
		} else {
			what = fmt.Sprintf("excluded %q", top.Title)
		}
	case ReasonWrongMood:
		if prev.Mood == emotion.MoodEngage {
			next.Mood = emotion.MoodUnwind
		} else {
			next.Mood = emotion.MoodEngage
		}
		what = fmt.Sprintf("switched mood to %s", next.Mood)
	default:
		what = "kept previous constraints"
	}
	return next, fmt.Sprintf("User indicated: %s. We %s.", reason, what)
}
