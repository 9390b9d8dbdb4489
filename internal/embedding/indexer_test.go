package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRows struct {
	mu        sync.Mutex
	tables    map[string][]map[string]any
	vectors   map[string][]float32
	failWrite map[string]bool
	listErr   error
	lists     int
}

func newFakeRows() *fakeRows {
	return &fakeRows{
		tables:    map[string][]map[string]any{},
		vectors:   map[string][]float32{},
		failWrite: map[string]bool{},
	}
}

func (f *fakeRows) RowsMissingEmbedding(_ context.Context, table, _ string, limit int) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []map[string]any
	for _, row := range f.tables[table] {
		if _, done := f.vectors[table+"/"+rowID(row)]; done {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRows) UpdateEmbedding(_ context.Context, table, id string, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite[id] {
		return errors.New("write failed")
	}
	f.vectors[table+"/"+id] = vec
	return nil
}

func TestIndexerFillsEveryRow(t *testing.T) {
	rows := newFakeRows()
	for i := 0; i < 5; i++ {
		rows.tables["projects"] = append(rows.tables["projects"], map[string]any{
			"id":    fmt.Sprintf("p%d", i),
			"title": fmt.Sprintf("Project %d", i),
		})
	}
	rows.tables["projects"] = append(rows.tables["projects"], map[string]any{"id": "blank"})

	b := bus.New()
	events, unsub := b.Subscribe("index.", 16)
	defer unsub()

	engine := &fakeEngine{dims: DefaultDimensions}
	ix := NewIndexer(rows, engine, b, metrics.New(), zap.NewNop(), IndexerOptions{BatchSize: 4})

	p, err := ix.Run(context.Background(), KindProjects)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Scanned)
	assert.Equal(t, 5, p.Embedded)
	assert.Equal(t, 1, p.ZeroFill)
	assert.True(t, p.Done)
	assert.Len(t, engine.calls, 5)

	require.Len(t, rows.vectors, 6)
	assert.Equal(t, ZeroVector(DefaultDimensions), rows.vectors["projects/blank"])
	for _, v := range rows.vectors {
		assert.Len(t, v, DefaultDimensions)
	}

	select {
	case evt := <-events:
		assert.Equal(t, bus.KindIndexProgress, evt.Kind)
		assert.Equal(t, KindProjects, evt.Payload.(Progress).Kind)
	case <-time.After(time.Second):
		t.Fatal("no progress event")
	}
}

func TestIndexerZeroFillsOnEngineFailure(t *testing.T) {
	rows := newFakeRows()
	rows.tables["hackathons"] = []map[string]any{{"id": "h1", "title": "HackNight"}}

	ix := NewIndexer(rows, &fakeEngine{dims: DefaultDimensions, err: errors.New("quota exceeded")}, nil, nil, zap.NewNop(), IndexerOptions{})

	p, err := ix.Run(context.Background(), KindHackathons)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ZeroFill)
	assert.Equal(t, ZeroVector(DefaultDimensions), rows.vectors["hackathons/h1"])
}

func TestIndexerStopsWhenNothingIsWritten(t *testing.T) {
	rows := newFakeRows()
	rows.tables["profiles"] = []map[string]any{
		{"id": "u1", "full_name": "A"},
		{"id": "u2", "full_name": "B"},
	}
	rows.failWrite["u1"] = true
	rows.failWrite["u2"] = true

	ix := NewIndexer(rows, &fakeEngine{dims: 4}, nil, nil, zap.NewNop(), IndexerOptions{BatchSize: 2})

	p, err := ix.Run(context.Background(), KindProfiles)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Failed)
	assert.Equal(t, 1, rows.lists)
}

func TestIndexerListError(t *testing.T) {
	rows := newFakeRows()
	rows.listErr = errors.New("jwt expired")
	ix := NewIndexer(rows, &fakeEngine{dims: 4}, nil, nil, zap.NewNop(), IndexerOptions{})

	_, err := ix.Run(context.Background(), KindJobs)
	assert.ErrorContains(t, err, "jwt expired")
}

func TestIndexerUnknownKind(t *testing.T) {
	ix := NewIndexer(newFakeRows(), &fakeEngine{dims: 4}, nil, nil, zap.NewNop(), IndexerOptions{})
	_, err := ix.Run(context.Background(), Kind("teams"))
	assert.Error(t, err)
}

func TestIndexerHonoursCancellation(t *testing.T) {
	rows := newFakeRows()
	rows.tables["projects"] = []map[string]any{{"id": "p1", "title": "x"}, {"id": "p2", "title": "y"}}
	ix := NewIndexer(rows, &fakeEngine{dims: 4}, nil, nil, zap.NewNop(), IndexerOptions{RatePerSec: 0.001})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ix.Run(ctx, KindProjects)
	assert.Error(t, err)
}

func TestIndexerRunAll(t *testing.T) {
	rows := newFakeRows()
	rows.tables["profiles"] = []map[string]any{{"id": "u1", "skills": []any{"Go"}}}
	rows.tables["external_jobs"] = []map[string]any{{"id": 7.0, "title": "Dev"}}

	ix := NewIndexer(rows, &fakeEngine{dims: 4}, nil, nil, zap.NewNop(), IndexerOptions{})
	out, err := ix.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, out, len(Kinds))
	assert.Equal(t, 1, out[0].Embedded)
	assert.Equal(t, 1, out[1].Embedded)
	assert.Contains(t, rows.vectors, "external_jobs/7")
}
