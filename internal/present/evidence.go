package present

import (
	"context"
	"fmt"
	"math"
)

// Evidence is what past sessions say about a title.
type Evidence struct {
	Count       int     `json:"count"`
	SuccessRate float64 `json:"success_rate"`
	// Placeholder marks numbers that were not measured.
	Placeholder bool `json:"placeholder,omitempty"`
}

// EvidenceProvider looks up evidence for a content id.
type EvidenceProvider interface {
	Evidence(ctx context.Context, contentID string) (Evidence, error)
}

// NoEvidence is the provider used when no feedback store is configured. It
// reports zero sessions at an even success rate and flags the result as a
// placeholder.
type NoEvidence struct{}

// Evidence implements EvidenceProvider.
func (NoEvidence) Evidence(context.Context, string) (Evidence, error) {
	return Evidence{Count: 0, SuccessRate: 0.5, Placeholder: true}, nil
}

// Provenance explains where a recommendation's confidence comes from.
type Provenance struct {
	EvidenceTrajectories  int        `json:"evidence_trajectories"`
	ConfidenceInterval    [2]float64 `json:"confidence_interval"`
	SimilarUsersCompleted string     `json:"similar_users_completed"`
	Reasoning             string     `json:"reasoning"`
	Placeholder           bool       `json:"placeholder,omitempty"`
}

// ConfidenceInterval is the 95% normal approximation of a binomial rate,
// clamped to [0,1]. With no observations the interval is [0,1].
func ConfidenceInterval(rate float64, n int) [2]float64 {
	if n <= 0 {
		return [2]float64{0, 1}
	}
	margin := 1.96 * math.Sqrt(rate*(1-rate)/float64(n))
	return [2]float64{math.Max(0, rate-margin), math.Min(1, rate+margin)}
}

func newProvenance(ev Evidence, reasoning string) *Provenance {
	return &Provenance{
		EvidenceTrajectories:  ev.Count,
		ConfidenceInterval:    ConfidenceInterval(ev.SuccessRate, ev.Count),
		SimilarUsersCompleted: fmt.Sprintf("%d%% of similar users completed", int(math.Round(ev.SuccessRate*100))),
		Reasoning:             reasoning,
		Placeholder:           ev.Placeholder,
	}
}
