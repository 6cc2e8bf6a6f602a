package trajectory

import (
	"context"
	"sort"
	"sync"

	"github.com/hpungsan/reel/internal/errors"
)

// MemoryStore keeps trajectories and feedback in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	byReq    map[string]*Trajectory
	order    []string
	feedback map[string][]Feedback
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byReq:    make(map[string]*Trajectory),
		feedback: make(map[string][]Feedback),
	}
}

// Store saves a copy of t. Storing the same request id twice conflicts.
func (s *MemoryStore) Store(ctx context.Context, t *Trajectory) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("store trajectory")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byReq[t.RequestID]; ok {
		return errors.NewConflict("trajectory already stored for request " + t.RequestID)
	}
	s.byReq[t.RequestID] = t.Clone()
	s.order = append(s.order, t.RequestID)
	return nil
}

// Get returns a copy of the trajectory for requestID.
func (s *MemoryStore) Get(_ context.Context, requestID string) (*Trajectory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byReq[requestID]
	if !ok {
		return nil, errors.NewNotFound("request", requestID)
	}
	return t.Clone(), nil
}

// AddFeedback attaches f to its request.
func (s *MemoryStore) AddFeedback(_ context.Context, f *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byReq[f.RequestID]; !ok {
		return errors.NewNotFound("request", f.RequestID)
	}
	s.feedback[f.RequestID] = append(s.feedback[f.RequestID], *f)
	return nil
}

// Feedback returns the feedback recorded for requestID, oldest first.
func (s *MemoryStore) Feedback(_ context.Context, requestID string) ([]Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Feedback(nil), s.feedback[requestID]...), nil
}

// Recent returns up to limit trajectories, newest first.
func (s *MemoryStore) Recent(limit int) []*Trajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Trajectory, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.byReq[s.order[i]].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of stored trajectories.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byReq)
}
