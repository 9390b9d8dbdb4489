package recommend

import (
	"context"
	"math"
	"time"

	"github.com/collatz-app/collatz/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultScore = 0.8
	DefaultLimit = 5
)

// Options tunes an Aggregator. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration // per source; 0 disables
	DefaultScore float64
	Limit        int
}

// Aggregator runs every source concurrently on each call. It keeps no
// cache and never retries.
type Aggregator struct {
	sources []Source
	opts    Options
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewAggregator(sources []Source, opts Options, m *metrics.Collector, logger *zap.Logger) *Aggregator {
	if opts.DefaultScore <= 0 {
		opts.DefaultScore = DefaultScore
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Aggregator{sources: sources, opts: opts, metrics: m, logger: logger.Named("recommend")}
}

// Aggregate returns all three lists. A failing or slow source yields an
// empty list for its category; Aggregate itself never fails.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, f Filters) Recommendations {
	out := Recommendations{Jobs: []Item{}, Hackathons: []Item{}, Projects: []Item{}}
	results := make([][]Item, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.fetch(ctx, src, userID, f)
			return nil
		})
	}
	_ = g.Wait()

	for i, src := range a.sources {
		out.set(src.Category(), results[i])
	}
	return out
}

func (a *Aggregator) fetch(ctx context.Context, src Source, userID string, f Filters) []Item {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	raw, err := src.Fetch(ctx, userID, f)
	name := string(src.Category())
	if err != nil {
		a.metrics.ObserveSource(name, "error", time.Since(start))
		a.logger.Warn("recommendation source failed", zap.String("source", name), zap.Error(err))
		return []Item{}
	}
	a.metrics.ObserveSource(name, "ok", time.Since(start))
	return a.normalize(src.Category(), raw)
}

// normalize maps rows to items in source order, then caps the list.
func (a *Aggregator) normalize(c Category, raw []Raw) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		score := a.opts.DefaultScore
		if r.Similarity != nil {
			score = clamp(*r.Similarity)
		}
		items = append(items, Item{ID: r.ID, Title: r.Title, Category: c, Score: score})
	}
	if len(items) > a.opts.Limit {
		items = items[:a.opts.Limit]
	}
	return items
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
