// Package trend turns ranked trending lists into per-title score boosts and
// caches them for a fixed interval. Failures never reach the caller.
package trend

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/metrics"
)

// Item is one entry of a trending list. Rank starts at 1.
type Item struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title,omitempty"`
	Rank      int    `json:"rank"`
	Source    string `json:"source"`
	Region    string `json:"region,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// Source is the trend data collaborator.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
}

// StaticSource serves a fixed ranked list.
type StaticSource struct {
	name  string
	items []Item
}

// NewStaticSource ranks ids in order (first is rank 1) for region.
func NewStaticSource(name, region string, ids []string) *StaticSource {
	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = Item{ContentID: id, Rank: i + 1, Source: name, Region: region}
	}
	return &StaticSource{name: name, items: items}
}

// Name implements Source.
func (s *StaticSource) Name() string { return s.name }

// Fetch implements Source.
func (s *StaticSource) Fetch(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Item(nil), s.items...), nil
}

// MultiSource merges several sources. A failing member is logged and
// skipped; Fetch fails only when every member fails.
type MultiSource struct {
	sources []Source
	logger  zerolog.Logger
}

// NewMultiSource combines sources, in priority order.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources, logger: logging.Component("trend")}
}

// Name implements Source.
func (m *MultiSource) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Fetch implements Source.
func (m *MultiSource) Fetch(ctx context.Context) ([]Item, error) {
	if len(m.sources) == 0 {
		return nil, nil
	}

	var all []Item
	var errs []error
	for _, s := range m.sources {
		items, err := s.Fetch(ctx)
		if err != nil {
			metrics.TrendFetchErrors.WithLabelValues(s.Name()).Inc()
			m.logger.Warn().Err(err).Str("source", s.Name()).Msg("trend source failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		all = append(all, items...)
	}
	if len(errs) == len(m.sources) {
		return nil, stderrors.Join(errs...)
	}
	return all, nil
}
