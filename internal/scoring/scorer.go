// Package scoring ranks catalog candidates against an emotional state.
//
// Each candidate gets five component scores in [0,1]:
//
//	style    vector similarity from the catalog search
//	mood     per-genre fit to energy, valence and cognitive capacity
//	intent   needs-weighted genre satisfaction
//	context  runtime, social and time-of-day rules
//	trend    boost from the trend cache
//
// The match score is their weighted sum, clamped to [0,1].
package scoring

import (
	"context"
	"math"
	"sort"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
)

// Component weights. They sum to 1.
const (
	WeightStyle   = 0.25
	WeightMood    = 0.30
	WeightIntent  = 0.20
	WeightContext = 0.15
	WeightTrend   = 0.10
)

// neutral is used when no genre of a candidate appears in a table.
const neutral = 0.5

// moodFit maps a genre to its fit for a state.
var moodFit = map[string]func(s emotion.State) float64{
	"action":      func(s emotion.State) float64 { return s.Energy * 0.9 },
	"thriller":    func(s emotion.State) float64 { return s.Energy*0.8 + s.Arousal*0.2 },
	"adventure":   func(s emotion.State) float64 { return s.Energy * 0.7 },
	"drama":       func(s emotion.State) float64 { return (1 - s.Energy) * 0.7 },
	"documentary": func(s emotion.State) float64 { return (1 - s.Energy) * 0.6 },
	"comedy":      func(s emotion.State) float64 { return s.NormalizedValence() * 0.9 },
	"romance":     func(s emotion.State) float64 { return s.NormalizedValence() * 0.8 },
	"family":      func(s emotion.State) float64 { return s.NormalizedValence() * 0.7 },
	"animation":   func(s emotion.State) float64 { return s.NormalizedValence() * 0.6 },
	"horror":      func(s emotion.State) float64 { return (1 - s.NormalizedValence()) * 0.8 },
	"crime":       func(s emotion.State) float64 { return (1 - s.NormalizedValence()) * 0.6 },
	"mystery":     func(s emotion.State) float64 { return s.CognitiveCapacity * 0.8 },
	"scifi":       func(s emotion.State) float64 { return s.CognitiveCapacity * 0.7 },
	"biography":   func(emotion.State) float64 { return 0.5 },
	"music":       func(emotion.State) float64 { return 0.5 },
}

// Scorer computes match scores. It holds no state.
type Scorer struct{}

// New returns a Scorer.
func New() *Scorer { return &Scorer{} }

// Score returns scored copies of cands ordered by match score, best first.
// Ties keep catalog order. The input slice is not modified.
func (s *Scorer) Score(ctx context.Context, cands []catalog.Candidate, state emotion.State, boosts map[string]float64) ([]catalog.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]catalog.Candidate, len(cands))
	for i, c := range cands {
		b := Breakdown(c, state, boosts)
		c.Breakdown = b
		c.MatchScore = Combine(b)
		c.UtilityScore = c.MatchScore
		out[i] = c
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	return out, nil
}

// Breakdown computes the five component scores of c.
func Breakdown(c catalog.Candidate, state emotion.State, boosts map[string]float64) catalog.Breakdown {
	return catalog.Breakdown{
		StyleMatch:    clamp01(c.VectorSimilarity),
		MoodMatch:     MoodMatch(c.Metadata, state),
		IntentMatch:   IntentMatch(c.Metadata, state),
		ContextMatch:  ContextMatch(c.Metadata, state),
		TrendingBoost: TrendBoost(c.Metadata, boosts),
	}
}

// Combine weights and clamps a breakdown into a match score.
func Combine(b catalog.Breakdown) float64 {
	return clamp01(WeightStyle*b.StyleMatch +
		WeightMood*b.MoodMatch +
		WeightIntent*b.IntentMatch +
		WeightContext*b.ContextMatch +
		WeightTrend*b.TrendingBoost)
}

// MoodMatch averages the mood fit over the genres of m that have one.
func MoodMatch(m catalog.Metadata, state emotion.State) float64 {
	var sum float64
	var n int
	for _, g := range m.Genres {
		if fit, ok := moodFit[catalog.NormalizeGenre(g)]; ok {
			sum += fit(state)
			n++
		}
	}
	if n == 0 {
		return neutral
	}
	return clamp01(sum / float64(n))
}

// IntentMatch is sum(need strength × satisfaction) / sum(need strength) over
// every need satisfied by a genre of m.
func IntentMatch(m catalog.Metadata, state emotion.State) float64 {
	var weighted, total float64
	var matched bool
	for _, g := range m.Genres {
		sat, ok := catalog.NeedSatisfaction[catalog.NormalizeGenre(g)]
		if !ok {
			continue
		}
		matched = true
		for need, v := range sat {
			strength := state.Needs[need]
			weighted += strength * v
			total += strength
		}
	}
	if !matched || total == 0 {
		return neutral
	}
	return clamp01(weighted / total)
}

// ContextMatch starts at 1 and applies the runtime, social and time rules.
// An unknown runtime is treated as a two-hour feature.
func ContextMatch(m catalog.Metadata, state emotion.State) float64 {
	score := 1.0

	runtime := m.Runtime
	if runtime == 0 {
		runtime = 120
	}
	if runtime > 120 && state.CognitiveCapacity < 0.5 {
		score *= 0.5
	}
	if runtime < 80 && state.CognitiveCapacity > 0.7 {
		score *= 0.9
	}

	if state.Context.Social == emotion.Family {
		if m.HasGenre("family") || m.HasGenre("animation") {
			score *= 1.2
		}
		if m.HasGenre("horror") || m.HasGenre("crime") {
			score *= 0.6
		}
	}

	if state.Context.TimeOfDay == emotion.Night {
		if m.HasGenre("comedy") || m.HasGenre("romance") {
			score *= 1.1
		}
		if m.HasGenre("horror") || m.HasGenre("thriller") {
			score *= 0.8
		}
	}

	return clamp01(score)
}

// TrendBoost returns the largest boost recorded under any of m's trend keys.
func TrendBoost(m catalog.Metadata, boosts map[string]float64) float64 {
	var best float64
	for _, key := range m.TrendKeys() {
		if v := boosts[key]; v > best {
			best = v
		}
	}
	return clamp01(best)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
