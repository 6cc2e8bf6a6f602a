package db

import (
	"context"
	"database/sql"
	"sync"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/present"
	"github.com/hpungsan/reel/internal/trajectory"
)

// TrajectoryStore persists trajectories and feedback in SQLite.
type TrajectoryStore struct {
	db *sql.DB
}

// NewTrajectoryStore wraps db.
func NewTrajectoryStore(db *sql.DB) *TrajectoryStore {
	return &TrajectoryStore{db: db}
}

func (s *TrajectoryStore) Store(ctx context.Context, t *trajectory.Trajectory) error {
	return InsertTrajectory(ctx, s.db, t)
}

func (s *TrajectoryStore) Get(ctx context.Context, requestID string) (*trajectory.Trajectory, error) {
	return GetTrajectory(ctx, s.db, requestID)
}

func (s *TrajectoryStore) AddFeedback(ctx context.Context, f *trajectory.Feedback) error {
	return InsertFeedback(ctx, s.db, f)
}

func (s *TrajectoryStore) Feedback(ctx context.Context, requestID string) ([]trajectory.Feedback, error) {
	return ListFeedback(ctx, s.db, requestID)
}

// EvidenceProvider answers evidence lookups from recorded feedback.
type EvidenceProvider struct {
	db *sql.DB
}

// NewEvidenceProvider wraps db.
func NewEvidenceProvider(db *sql.DB) *EvidenceProvider {
	return &EvidenceProvider{db: db}
}

// Evidence implements present.EvidenceProvider. Titles nobody has reported
// on yet get the placeholder evidence.
func (p *EvidenceProvider) Evidence(ctx context.Context, contentID string) (present.Evidence, error) {
	count, successes, err := ContentEvidence(ctx, p.db, contentID, trajectory.SuccessThreshold)
	if err != nil {
		return present.Evidence{}, err
	}
	if count == 0 {
		return present.NoEvidence{}.Evidence(ctx, contentID)
	}
	return present.Evidence{
		Count:       count,
		SuccessRate: float64(successes) / float64(count),
	}, nil
}

// ContentIndex serves similarity search over the content table. Rows are
// loaded into a catalog.MemoryIndex on first use and again after Reload.
type ContentIndex struct {
	db *sql.DB

	mu     sync.Mutex
	loaded bool
	index  *catalog.MemoryIndex
}

// NewContentIndex wraps db.
func NewContentIndex(db *sql.DB) *ContentIndex {
	return &ContentIndex{db: db, index: catalog.NewMemoryIndex(nil)}
}

// Reload re-reads the content table.
func (c *ContentIndex) Reload(ctx context.Context) error {
	items, err := ListContent(ctx, c.db)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Replace(items)
	c.loaded = true
	return nil
}

// Len returns the number of loaded items.
func (c *ContentIndex) Len() int {
	return c.index.Len()
}

// Search implements catalog.Searcher.
func (c *ContentIndex) Search(ctx context.Context, query []float32, filters catalog.Constraints, limit int, minSimilarity float64) ([]catalog.Candidate, error) {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if !loaded {
		if err := c.Reload(ctx); err != nil {
			return nil, err
		}
	}
	return c.index.Search(ctx, query, filters, limit, minSimilarity)
}
