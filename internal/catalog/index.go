package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine Searcher over an in-memory item set.
// Results for identical inputs are identical: ties keep insertion order.
type MemoryIndex struct {
	mu      sync.RWMutex
	items   []Item
	vectors [][]float32
	byID    map[string]int
}

// NewMemoryIndex builds an index over items.
func NewMemoryIndex(items []Item) *MemoryIndex {
	idx := &MemoryIndex{}
	idx.Replace(items)
	return idx
}

// Replace swaps the whole item set.
func (idx *MemoryIndex) Replace(items []Item) {
	vectors := make([][]float32, len(items))
	byID := make(map[string]int, len(items))
	for i, it := range items {
		vectors[i] = ItemVector(it)
		byID[it.ID] = i
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.items = append([]Item(nil), items...)
	idx.vectors = vectors
	idx.byID = byID
}

// Upsert adds or replaces one item.
func (idx *MemoryIndex) Upsert(it Item) {
	vec := ItemVector(it)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if i, ok := idx.byID[it.ID]; ok {
		idx.items[i] = it
		idx.vectors[i] = vec
		return
	}
	idx.byID[it.ID] = len(idx.items)
	idx.items = append(idx.items, it)
	idx.vectors = append(idx.vectors, vec)
}

// Len returns the number of indexed items.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.items)
}

// Get returns the item with id.
func (idx *MemoryIndex) Get(id string) (Item, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i, ok := idx.byID[id]
	if !ok {
		return Item{}, false
	}
	return idx.items[i], true
}

// Search implements Searcher.
func (idx *MemoryIndex) Search(ctx context.Context, query []float32, filters Constraints, limit int, minSimilarity float64) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	cands := make([]Candidate, 0, len(idx.items))
	for i, it := range idx.items {
		if !filters.Allows(it.Metadata) {
			continue
		}
		sim := Cosine(query, idx.vectors[i])
		if sim < minSimilarity {
			continue
		}
		cands = append(cands, Candidate{Metadata: it.Metadata, VectorSimilarity: sim})
	}
	idx.mu.RUnlock()

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].VectorSimilarity > cands[j].VectorSimilarity
	})
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}
