// Package present turns scored candidates into the user-facing
// recommendation: deep links, availability, provenance and template-built
// explanations.
package present

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/logging"
)

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Availability lists where a title can be watched.
type Availability struct {
	Regions []string `json:"regions"`
}

// Item is one presented title.
type Item struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Year             int               `json:"year,omitempty"`
	Runtime          int               `json:"runtime,omitempty"`
	Language         string            `json:"language"`
	Genres           []string          `json:"genres"`
	Overview         string            `json:"overview,omitempty"`
	PosterURL        string            `json:"poster_url,omitempty"`
	MatchScore       float64           `json:"match_score"`
	UtilityScore     float64           `json:"utility_score"`
	VectorSimilarity float64           `json:"vector_similarity"`
	ScoreBreakdown   catalog.Breakdown `json:"score_breakdown"`
	Provenance       *Provenance       `json:"provenance,omitempty"`
	Deeplink         string            `json:"deeplink"`
	Availability     Availability      `json:"availability"`
}

// Reasoning is the explanation attached to the top pick.
type Reasoning struct {
	Summary         string `json:"summary"`
	Why             string `json:"why"`
	ConfidenceLevel string `json:"confidence_level"`
}

// Presentation is the presenter output.
type Presentation struct {
	TopPick      Item      `json:"top_pick"`
	Alternatives []Item    `json:"alternatives"`
	Reasoning    Reasoning `json:"reasoning"`
}

// Presenter formats recommendations.
type Presenter struct {
	evidence       EvidenceProvider
	defaultRegions []string
	logger         zerolog.Logger
}

// NewPresenter creates a Presenter. A nil provider means NoEvidence; empty
// defaultRegions means ["FR"].
func NewPresenter(evidence EvidenceProvider, defaultRegions []string) *Presenter {
	if evidence == nil {
		evidence = NoEvidence{}
	}
	if len(defaultRegions) == 0 {
		defaultRegions = []string{"FR"}
	}
	return &Presenter{
		evidence:       evidence,
		defaultRegions: append([]string(nil), defaultRegions...),
		logger:         logging.Component("present"),
	}
}

// Present formats top and alts for state.
func (p *Presenter) Present(ctx context.Context, top catalog.Candidate, alts []catalog.Candidate, state emotion.State) (*Presentation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topItem, topEvidence := p.item(ctx, top, state)
	out := &Presentation{
		TopPick:      topItem,
		Alternatives: make([]Item, 0, len(alts)),
		Reasoning: Reasoning{
			Summary:         Summary(state, top.Metadata),
			Why:             Why(state, top.Breakdown),
			ConfidenceLevel: Confidence(top.MatchScore, topEvidence.Count),
		},
	}
	for _, alt := range alts {
		item, _ := p.item(ctx, alt, state)
		out.Alternatives = append(out.Alternatives, item)
	}
	return out, nil
}

func (p *Presenter) item(ctx context.Context, c catalog.Candidate, state emotion.State) (Item, Evidence) {
	m := c.Metadata
	ev, err := p.evidence.Evidence(ctx, m.ID)
	if err != nil {
		p.logger.Warn().Err(err).Str("content_id", m.ID).Msg("evidence lookup failed, using placeholder")
		ev, _ = NoEvidence{}.Evidence(ctx, m.ID)
	}

	regions := m.Regions
	if len(regions) == 0 {
		regions = p.defaultRegions
	}

	return Item{
		ID:               m.ID,
		Title:            m.Title,
		Year:             m.Year,
		Runtime:          m.Runtime,
		Language:         m.Language,
		Genres:           append([]string(nil), m.Genres...),
		Overview:         m.Overview,
		PosterURL:        m.PosterURL,
		MatchScore:       c.MatchScore,
		UtilityScore:     c.UtilityScore,
		VectorSimilarity: c.VectorSimilarity,
		ScoreBreakdown:   c.Breakdown,
		Provenance:       newProvenance(ev, ProvenanceReasoning(state, m)),
		Deeplink:         Deeplink(m),
		Availability:     Availability{Regions: append([]string(nil), regions...)},
	}, ev
}

// Deeplink prefers the streaming URL and falls back to the TMDB page.
func Deeplink(m catalog.Metadata) string {
	if m.StreamingURL != "" {
		return m.StreamingURL
	}
	id := m.TMDBID
	if id == "" {
		id = m.ID
	}
	return "https://www.themoviedb.org/movie/" + id
}

// Confidence bands a match score by how much evidence backs it.
func Confidence(matchScore float64, evidenceCount int) string {
	switch {
	case matchScore >= 0.8 && evidenceCount >= 10:
		return ConfidenceHigh
	case matchScore >= 0.6 && evidenceCount >= 5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Summary is the one-line pitch keyed by mood, dominant need and top genre.
func Summary(state emotion.State, m catalog.Metadata) string {
	genre := m.TopGenre()
	need := state.Needs.Dominant()

	if state.MoodFromEnergy() == emotion.MoodUnwind {
		switch need {
		case emotion.Joy, emotion.Relaxation:
			return "Perfect for unwinding with some lighthearted " + genre
		case emotion.Catharsis:
			return "A great choice to relax and feel deeply"
		default:
			return "A great choice to relax and unwind"
		}
	}

	switch need {
	case emotion.Stimulation:
		return "An engaging " + genre + " that will keep you on the edge of your seat"
	case emotion.Growth:
		return "A thought-provoking " + genre + " that will make you think"
	default:
		return "An engaging " + genre + " that matches your current mood"
	}
}

// Why joins the reason fragments that apply into "Based on a, b.".
func Why(state emotion.State, b catalog.Breakdown) string {
	var reasons []string
	ctx := state.Context

	switch {
	case ctx.TimeOfDay == emotion.Evening && ctx.DayOfWeek == time.Friday:
		reasons = append(reasons, "perfect for Friday evening")
	case ctx.TimeOfDay == emotion.Night:
		reasons = append(reasons, "ideal for late-night viewing")
	case ctx.IsWeekend:
		reasons = append(reasons, "great for weekend relaxation")
	}

	switch ctx.Social {
	case emotion.Family:
		reasons = append(reasons, "suitable for family viewing")
	case emotion.Partner, emotion.Friends:
		reasons = append(reasons, "great for watching together")
	case emotion.Alone:
		reasons = append(reasons, "perfect for solo viewing")
	}

	if b.MoodMatch > 0.8 {
		reasons = append(reasons, "strong mood match")
	}
	if b.TrendingBoost > 0.5 {
		reasons = append(reasons, "currently trending")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "matches your preferences")
	}
	return "Based on " + strings.Join(reasons, ", ") + "."
}

// ProvenanceReasoning explains the pick in terms of the dominant need and
// the viewing situation.
func ProvenanceReasoning(state emotion.State, m catalog.Metadata) string {
	var sb strings.Builder
	sb.WriteString("This ")
	sb.WriteString(m.TopGenre())
	sb.WriteString(" matches your need for ")
	sb.WriteString(state.Needs.Dominant().String())

	switch state.Context.TimeOfDay {
	case emotion.Evening, emotion.Night:
		sb.WriteString(" and is perfect for ")
		sb.WriteString(string(state.Context.TimeOfDay))
		sb.WriteString(" viewing")
	}
	if s := state.Context.Social; s != "" && s != emotion.Alone {
		sb.WriteString(" with ")
		sb.WriteString(string(s))
	}
	sb.WriteString(".")
	return sb.String()
}
