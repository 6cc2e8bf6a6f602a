package trajectory

import (
	"math"
	"time"
)

// Interaction is what the user did with a recommendation.
type Interaction string

const (
	InteractionView     Interaction = "view"
	InteractionComplete Interaction = "complete"
	InteractionAbandon  Interaction = "abandon"
	InteractionSkip     Interaction = "skip"
	InteractionRefine   Interaction = "refine"
)

// SuccessThreshold is the satisfaction at or above which a session counts
// as a success.
const SuccessThreshold = 0.7

// Feedback is one post-hoc outcome signal for a request.
type Feedback struct {
	ID                  string      `json:"id"`
	RequestID           string      `json:"request_id"`
	ContentID           string      `json:"content_id,omitempty"`
	Interaction         Interaction `json:"interaction"`
	CompletionRate      *float64    `json:"completion_rate,omitempty"`
	WatchDurationSec    *float64    `json:"watch_duration_sec,omitempty"`
	ExpectedDurationSec *float64    `json:"expected_duration_sec,omitempty"`
	ExplicitRating      *int        `json:"explicit_rating,omitempty"`
	Detail              string      `json:"detail,omitempty"`
	Satisfaction        float64     `json:"satisfaction"`
	CreatedAt           time.Time   `json:"created_at"`
}

// Satisfaction infers a [0,1] satisfaction score from an interaction.
//
//	complete  0.9
//	view      completion×0.8, else min(watched/expected×0.8, 1), else 0.5
//	abandon   0.2
//	skip      0.1
//	refine    0.4
func Satisfaction(interaction Interaction, completionRate, watched, expected *float64) float64 {
	switch interaction {
	case InteractionComplete:
		return 0.9
	case InteractionView:
		if completionRate != nil {
			return *completionRate * 0.8
		}
		if watched != nil && expected != nil && *expected > 0 {
			return math.Min(*watched / *expected * 0.8, 1)
		}
		return 0.5
	case InteractionAbandon:
		return 0.2
	case InteractionSkip:
		return 0.1
	case InteractionRefine:
		return 0.4
	default:
		return 0.5
	}
}

// Verdict is the judgement derived from a satisfaction score.
type Verdict struct {
	Success    bool     `json:"success"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Judge turns a feedback event into a verdict. Confidence grows with the
// distance from a neutral 0.5.
func Judge(f Feedback) Verdict {
	v := Verdict{
		Success:    f.Satisfaction >= SuccessThreshold,
		Confidence: math.Min(1, math.Abs(f.Satisfaction-0.5)*2),
		Strengths:  []string{},
		Weaknesses: []string{},
	}
	if v.Success {
		v.Reasoning = "Recommendation was well-received by user"
		v.Strengths = append(v.Strengths, "High user satisfaction")
		if f.CompletionRate != nil && *f.CompletionRate > 0.8 {
			v.Strengths = append(v.Strengths, "High completion rate")
		}
		return v
	}

	v.Reasoning = "Recommendation did not meet user expectations"
	v.Weaknesses = append(v.Weaknesses, "Low user satisfaction")
	switch f.Interaction {
	case InteractionAbandon:
		v.Weaknesses = append(v.Weaknesses, "User abandoned content")
	case InteractionSkip:
		v.Weaknesses = append(v.Weaknesses, "User skipped recommendation")
	case InteractionRefine:
		v.Weaknesses = append(v.Weaknesses, "User asked for a different pick")
	}
	return v
}
