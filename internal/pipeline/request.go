package pipeline

import (
	"time"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/present"
	"github.com/hpungsan/reel/internal/trajectory"
)

// Request is a get_recommendation call.
type Request struct {
	Mood        emotion.Mood            `json:"mood" validate:"required,oneof=unwind engage"`
	Goal        emotion.Goal            `json:"goal" validate:"required,oneof=laugh feel thrill think"`
	UserID      string                  `json:"user_id,omitempty" validate:"omitempty,max=128"`
	SessionID   string                  `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Constraints *catalog.Constraints    `json:"constraints,omitempty"`
	Context     *emotion.RequestContext `json:"context,omitempty"`
	Options     *Options                `json:"options,omitempty"`

	// Set by Refine.
	parentRequestID string
	refinementCount int
}

// Options tune the response shape. Nil booleans default to true.
type Options struct {
	IncludeAlternatives *bool `json:"include_alternatives,omitempty"`
	AlternativeCount    int   `json:"alternative_count,omitempty" validate:"omitempty,gte=1,lte=10"`
	IncludeProvenance   *bool `json:"include_provenance,omitempty"`
	IncludeTrending     *bool `json:"include_trending,omitempty"`
	ExplainReasoning    *bool `json:"explain_reasoning,omitempty"`
}

// resolved is Options with defaults applied.
type resolved struct {
	alternatives int
	provenance   bool
	trending     bool
	reasoning    bool
}

func (o *Options) resolve(defaultAlternatives int) resolved {
	r := resolved{alternatives: defaultAlternatives, provenance: true, trending: true, reasoning: true}
	if o == nil {
		return r
	}
	if o.AlternativeCount > 0 {
		r.alternatives = o.AlternativeCount
	}
	if o.IncludeAlternatives != nil && !*o.IncludeAlternatives {
		r.alternatives = 0
	}
	if o.IncludeProvenance != nil {
		r.provenance = *o.IncludeProvenance
	}
	if o.IncludeTrending != nil {
		r.trending = *o.IncludeTrending
	}
	if o.ExplainReasoning != nil {
		r.reasoning = *o.ExplainReasoning
	}
	return r
}

// Response is a successful recommendation.
type Response struct {
	TopPick      present.Item       `json:"top_pick"`
	Alternatives []present.Item     `json:"alternatives,omitempty"`
	Reasoning    *present.Reasoning `json:"reasoning,omitempty"`
	Metadata     Metadata           `json:"metadata"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	RequestID           string    `json:"request_id"`
	SessionID           string    `json:"session_id"`
	Timestamp           time.Time `json:"timestamp"`
	LatencyMS           int64     `json:"latency_ms"`
	StagesInvoked       []string  `json:"stages_invoked"`
	CandidatesEvaluated int       `json:"candidates_evaluated"`
	OverBudget          bool      `json:"over_budget"`
	ParentRequestID     string    `json:"parent_request_id,omitempty"`
	RefinementCount     int       `json:"refinement_count,omitempty"`
	LearnedFrom         string    `json:"learned_from,omitempty"`
}

// FeedbackRequest is a record_feedback call.
type FeedbackRequest struct {
	RequestID        string                 `json:"request_id" validate:"required"`
	Interaction      trajectory.Interaction `json:"interaction" validate:"required,oneof=view complete abandon skip refine"`
	CompletionRate   *float64               `json:"completion_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	WatchDurationSec *float64               `json:"watch_duration_sec,omitempty" validate:"omitempty,gte=0"`
	ExplicitRating   *int                   `json:"explicit_rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Detail           string                 `json:"detail,omitempty" validate:"omitempty,max=1000"`
}

// FeedbackResult reports the recorded feedback and its verdict.
type FeedbackResult struct {
	FeedbackID   string             `json:"feedback_id"`
	RequestID    string             `json:"request_id"`
	Satisfaction float64            `json:"satisfaction"`
	Verdict      trajectory.Verdict `json:"verdict"`
}

// RefineReason says what was wrong with the previous pick.
type RefineReason string

const (
	ReasonTooLong         RefineReason = "too_long"
	ReasonWrongMood       RefineReason = "wrong_mood"
	ReasonSeenIt          RefineReason = "seen_it"
	ReasonNotInterested   RefineReason = "not_interested"
	ReasonPreferDifferent RefineReason = "prefer_different"
)

// RefineRequest is a refine_search call.
type RefineRequest struct {
	PreviousRequestID     string               `json:"previous_request_id" validate:"required"`
	Reason                RefineReason         `json:"reason" validate:"required,oneof=too_long wrong_mood seen_it not_interested prefer_different"`
	Detail                string               `json:"detail,omitempty" validate:"omitempty,max=1000"`
	AdditionalConstraints *catalog.Constraints `json:"additional_constraints,omitempty"`
	Options               *Options             `json:"options,omitempty"`
}
