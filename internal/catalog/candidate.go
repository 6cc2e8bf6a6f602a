// Package catalog holds the content model and the candidate search: it
// encodes an emotional state into a query vector, delegates the nearest
// neighbour lookup to a Searcher and re-applies constraint filters in a fixed
// order.
package catalog

import "strings"

// Metadata is the immutable description of a title.
type Metadata struct {
	ID           string   `json:"id" validate:"required,max=128"`
	Title        string   `json:"title" validate:"required"`
	Year         int      `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Runtime      int      `json:"runtime,omitempty" validate:"gte=0,lte=1000"` // minutes, 0 when unknown
	Language     string   `json:"language" validate:"required"`
	Genres       []string `json:"genres" validate:"min=1"`
	Overview     string   `json:"overview,omitempty"`
	Director     string   `json:"director,omitempty"`
	Kind         string   `json:"kind,omitempty" validate:"omitempty,oneof=movie series"`
	PosterURL    string   `json:"poster_url,omitempty"`
	StreamingURL string   `json:"streaming_url,omitempty"`
	TMDBID       string   `json:"tmdb_id,omitempty"`
	Regions      []string `json:"regions,omitempty"`
}

// HasGenre reports whether m carries genre, case-insensitively.
func (m Metadata) HasGenre(genre string) bool {
	g := NormalizeGenre(genre)
	for _, mg := range m.Genres {
		if NormalizeGenre(mg) == g {
			return true
		}
	}
	return false
}

// TopGenre returns the first listed genre, lowercased, or "content".
func (m Metadata) TopGenre() string {
	if len(m.Genres) == 0 {
		return "content"
	}
	return NormalizeGenre(m.Genres[0])
}

// TrendKeys returns the ids a trend source may use for this title.
func (m Metadata) TrendKeys() []string {
	keys := []string{m.ID}
	if m.TMDBID != "" {
		keys = append(keys, "tmdb:"+m.TMDBID)
	}
	return keys
}

// Profile is the affective fingerprint used to place a title in vector space.
type Profile struct {
	Energy        float64 `json:"energy" validate:"gte=0,lte=1"`
	Valence       float64 `json:"valence" validate:"gte=-1,lte=1"`
	Arousal       float64 `json:"arousal" validate:"gte=0,lte=1"`
	CognitiveLoad float64 `json:"cognitive_load,omitempty" validate:"gte=0,lte=1"`
}

// Item is one catalog entry.
type Item struct {
	Metadata
	Profile Profile `json:"profile"`
}

// Breakdown holds the five weighted components of a match score.
type Breakdown struct {
	StyleMatch    float64 `json:"style_match"`
	MoodMatch     float64 `json:"mood_match"`
	IntentMatch   float64 `json:"intent_match"`
	ContextMatch  float64 `json:"context_match"`
	TrendingBoost float64 `json:"trending_boost"`
}

// Candidate is a catalog item with scoring state. VectorSimilarity is set by
// the search; the score fields stay zero until scoring.
type Candidate struct {
	Metadata         Metadata  `json:"metadata"`
	VectorSimilarity float64   `json:"vector_similarity"`
	MatchScore       float64   `json:"match_score"`
	UtilityScore     float64   `json:"utility_score"`
	Breakdown        Breakdown `json:"score_breakdown"`
}

// IDs returns the content ids of cands in order.
func IDs(cands []Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.Metadata.ID
	}
	return ids
}

// NormalizeGenre lowercases and trims a genre name and folds common
// spellings ("Sci-Fi", "Science Fiction") onto one key.
func NormalizeGenre(g string) string {
	g = strings.ToLower(strings.TrimSpace(g))
	switch g {
	case "sci-fi", "science fiction", "science-fiction":
		return "scifi"
	}
	return g
}
