package trend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/metrics"
)

// DefaultTTL is how long a fetched boost map is served before refetching.
const DefaultTTL = 15 * time.Minute

const snapshotKey = "boosts"

// Boost converts a rank to a boost: 1 at rank 1, about 0.5 at rank 10 and
// 0 from rank 100 on. Ranks below 1 get 0.
func Boost(rank int) float64 {
	if rank < 1 {
		return 0
	}
	return math.Max(0, 1-math.Log10(float64(rank))/2)
}

// Ranked is a trending item together with its boost.
type Ranked struct {
	Item
	Boost float64 `json:"boost"`
}

// snapshot is built completely before it is stored, so readers never see a
// partial map.
type snapshot struct {
	boosts    map[string]float64
	items     []Ranked
	fetchedAt time.Time
	expiresAt time.Time
}

// Booster caches trend boosts behind a single go-cache entry. Reads are
// concurrent; a miss is refreshed by one goroutine at a time.
type Booster struct {
	source  Source
	ttl     time.Duration
	entries *cache.Cache
	refresh sync.Mutex
	logger  zerolog.Logger
}

// NewBooster caches source results for ttl (DefaultTTL when <= 0).
func NewBooster(source Source, ttl time.Duration) *Booster {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Booster{
		source:  source,
		ttl:     ttl,
		entries: cache.New(ttl, 2*ttl),
		logger:  logging.Component("trend"),
	}
}

// Boosts returns content id to boost. The error is always nil: on failure
// the map is empty and nothing is cached, so the next call retries.
func (b *Booster) Boosts(ctx context.Context) (map[string]float64, error) {
	snap := b.load(ctx)
	out := make(map[string]float64, len(snap.boosts))
	for id, v := range snap.boosts {
		out[id] = v
	}
	return out, nil
}

// Trending returns the cached trending list for region (all regions when
// empty), best first, capped at limit when limit > 0.
func (b *Booster) Trending(ctx context.Context, region string, limit int) ([]Ranked, error) {
	snap := b.load(ctx)
	out := make([]Ranked, 0, len(snap.items))
	for _, r := range snap.items {
		if region != "" && r.Region != "" && !strings.EqualFold(r.Region, region) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ExpiresAt returns when the cached entry expires, zero if nothing is cached.
func (b *Booster) ExpiresAt() time.Time {
	if v, ok := b.entries.Get(snapshotKey); ok {
		return v.(*snapshot).expiresAt
	}
	return time.Time{}
}

// Clear drops the cached entry.
func (b *Booster) Clear() {
	b.entries.Delete(snapshotKey)
}

func (b *Booster) load(ctx context.Context) *snapshot {
	if v, ok := b.entries.Get(snapshotKey); ok {
		metrics.TrendCache.WithLabelValues("hit").Inc()
		return v.(*snapshot)
	}

	b.refresh.Lock()
	defer b.refresh.Unlock()

	// Another goroutine may have refreshed while we waited.
	if v, ok := b.entries.Get(snapshotKey); ok {
		metrics.TrendCache.WithLabelValues("hit").Inc()
		return v.(*snapshot)
	}
	metrics.TrendCache.WithLabelValues("miss").Inc()

	items, err := b.fetch(ctx)
	if err != nil {
		metrics.TrendFetchErrors.WithLabelValues(b.source.Name()).Inc()
		b.logger.Warn().Err(err).Str("source", b.source.Name()).Msg("trend fetch failed, continuing without boosts")
		return &snapshot{boosts: map[string]float64{}}
	}

	snap := build(items, time.Now(), b.ttl)
	b.entries.Set(snapshotKey, snap, b.ttl)
	b.logger.Debug().Int("items", len(items)).Int("boosted", len(snap.boosts)).Msg("trend boosts refreshed")
	return snap
}

// fetch calls the source and turns a panic into an error.
func (b *Booster) fetch(ctx context.Context) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trend source panicked: %v", r)
		}
	}()
	return b.source.Fetch(ctx)
}

func build(items []Item, now time.Time, ttl time.Duration) *snapshot {
	snap := &snapshot{
		boosts:    make(map[string]float64, len(items)),
		items:     make([]Ranked, 0, len(items)),
		fetchedAt: now,
		expiresAt: now.Add(ttl),
	}
	for _, it := range items {
		if it.ContentID == "" {
			continue
		}
		boost := Boost(it.Rank)
		if boost > snap.boosts[it.ContentID] {
			snap.boosts[it.ContentID] = boost
		}
		snap.items = append(snap.items, Ranked{Item: it, Boost: boost})
	}
	sort.SliceStable(snap.items, func(i, j int) bool {
		return snap.items[i].Rank < snap.items[j].Rank
	})
	return snap
}
