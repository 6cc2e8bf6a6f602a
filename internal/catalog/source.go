package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/logging"
)

// Searcher is the similarity-search collaborator. Implementations must be
// deterministic for identical inputs.
type Searcher interface {
	Search(ctx context.Context, query []float32, filters Constraints, limit int, minSimilarity float64) ([]Candidate, error)
}

// Default search bounds.
const (
	DefaultLimit         = 50
	DefaultMinSimilarity = 0.3
)

// Source is the candidate source of the recommendation pipeline.
type Source struct {
	searcher      Searcher
	limit         int
	minSimilarity float64
	logger        zerolog.Logger
}

// NewSource wraps searcher. Non-positive limit and negative minSimilarity
// fall back to the defaults.
func NewSource(searcher Searcher, limit int, minSimilarity float64) *Source {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if minSimilarity < 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Source{
		searcher:      searcher,
		limit:         limit,
		minSimilarity: minSimilarity,
		logger:        logging.Component("catalog"),
	}
}

// Search encodes state, queries the searcher and re-applies the constraint
// filters, the similarity threshold and the limit, in that order. Searcher
// errors are returned as-is for the caller's retry policy.
func (s *Source) Search(ctx context.Context, state emotion.State, c *Constraints) ([]Candidate, error) {
	var filters Constraints
	if c != nil {
		filters = *c
	}

	query := Encode(state)
	raw, err := s.searcher.Search(ctx, query, filters, s.limit, s.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	cands := filters.Apply(raw, s.minSimilarity, s.limit)
	s.logger.Debug().
		Int("raw", len(raw)).
		Int("kept", len(cands)).
		Float64("min_similarity", s.minSimilarity).
		Msg("catalog search complete")
	return cands, nil
}
