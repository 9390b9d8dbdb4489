package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Rows reads and writes embedding columns on the remote tables.
type Rows interface {
	RowsMissingEmbedding(ctx context.Context, table, columns string, limit int) ([]map[string]any, error)
	UpdateEmbedding(ctx context.Context, table, id string, vec []float32) error
}

// Progress is published on the bus after every batch and returned by Run.
type Progress struct {
	Kind      Kind
	Scanned   int
	Embedded  int
	ZeroFill  int
	Failed    int
	Done      bool
	StartedAt time.Time
}

// IndexerOptions tunes an Indexer.
type IndexerOptions struct {
	BatchSize  int
	RatePerSec float64
}

// Indexer fills missing embeddings.
type Indexer struct {
	rows    Rows
	engine  Engine
	bus     *bus.Bus
	metrics *metrics.Collector
	logger  *zap.Logger
	limiter *rate.Limiter
	batch   int
}

// NewIndexer creates an indexer. A non-positive rate disables pacing.
func NewIndexer(rows Rows, engine Engine, b *bus.Bus, m *metrics.Collector, logger *zap.Logger, opts IndexerOptions) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Indexer{
		rows:    rows,
		engine:  engine,
		bus:     b,
		metrics: m,
		logger:  logger.With(zap.String("component", "indexer"), zap.String("engine", engine.Name())),
		limiter: rate.NewLimiter(limit, 1),
		batch:   opts.BatchSize,
	}
}

// Run embeds every row of kind that has no embedding yet. Rows whose text
// is blank or whose embedding fails get a zero vector so the column is never
// left null. It stops when a batch comes back short or writes nothing.
func (ix *Indexer) Run(ctx context.Context, kind Kind) (Progress, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return Progress{}, fmt.Errorf("unknown embedding kind %q", kind)
	}
	p := Progress{Kind: kind, StartedAt: time.Now()}
	log := ix.logger.With(zap.String("kind", string(kind)))

	for {
		rows, err := ix.rows.RowsMissingEmbedding(ctx, string(kind), spec.columns, ix.batch)
		if err != nil {
			return p, fmt.Errorf("list %s: %w", kind, err)
		}
		written := 0
		for _, row := range rows {
			if err := ix.limiter.Wait(ctx); err != nil {
				return p, err
			}
			if ix.indexRow(ctx, kind, row, &p, log) {
				written++
			}
		}
		p.Scanned += len(rows)
		p.Done = len(rows) < ix.batch || written == 0
		ix.publish(p)
		if p.Done {
			break
		}
	}

	log.Info("embedding run finished",
		zap.Int("scanned", p.Scanned),
		zap.Int("embedded", p.Embedded),
		zap.Int("zero_fill", p.ZeroFill),
		zap.Int("failed", p.Failed))
	return p, nil
}

func (ix *Indexer) indexRow(ctx context.Context, kind Kind, row map[string]any, p *Progress, log *zap.Logger) bool {
	id := rowID(row)
	if id == "" {
		p.Failed++
		ix.metrics.Embedded(string(kind), "failed")
		return false
	}

	text := BuildText(kind, row)
	vec, embedErr := EmbedOrZero(ctx, ix.engine, text)
	outcome := "ok"
	if embedErr != nil || isBlank(text) {
		outcome = "zero"
	}
	if embedErr != nil {
		log.Warn("embedding failed, writing zero vector", zap.String("id", id), zap.Error(embedErr))
	}

	if err := ix.rows.UpdateEmbedding(ctx, string(kind), id, vec); err != nil {
		log.Error("failed to store embedding", zap.String("id", id), zap.Error(err))
		p.Failed++
		ix.metrics.Embedded(string(kind), "failed")
		return false
	}
	if outcome == "zero" {
		p.ZeroFill++
	} else {
		p.Embedded++
	}
	ix.metrics.Embedded(string(kind), outcome)
	return true
}

func (ix *Indexer) publish(p Progress) {
	if ix.bus != nil {
		ix.bus.Emit(bus.KindIndexProgress, p)
	}
}

// RunAll indexes kinds concurrently. A failing kind does not stop the
// others; the first error is returned alongside every kind's progress.
func (ix *Indexer) RunAll(ctx context.Context, kinds ...Kind) ([]Progress, error) {
	if len(kinds) == 0 {
		kinds = Kinds
	}
	out := make([]Progress, len(kinds))
	errs := make([]error, len(kinds))
	var g errgroup.Group
	for i, k := range kinds {
		g.Go(func() error {
			out[i], errs[i] = ix.Run(ctx, k)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
