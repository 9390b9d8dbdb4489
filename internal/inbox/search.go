package inbox

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is how long a query must stay unchanged before it runs.
const DefaultDebounce = 300 * time.Millisecond

const contactSearchLimit = 5

// Searcher runs one directory search.
type Searcher interface {
	SearchContacts(ctx context.Context, q string, limit int) ([]Contact, error)
}

// SearchResult is delivered for the latest query only.
type SearchResult struct {
	Query    string
	Contacts []Contact
	Err      error
}

// ContactSearch debounces keystroke-driven directory lookups. Each instance
// owns its timer; a newer query cancels the pending and in-flight ones.
type ContactSearch struct {
	searcher Searcher
	delay    time.Duration
	results  chan SearchResult

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	closed   bool
	inflight sync.WaitGroup
}

// NewContactSearch creates a debouncer. delay <= 0 uses DefaultDebounce.
func NewContactSearch(searcher Searcher, delay time.Duration) *ContactSearch {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &ContactSearch{
		searcher: searcher,
		delay:    delay,
		results:  make(chan SearchResult, 1),
	}
}

// Results delivers the outcome of the latest settled query.
func (c *ContactSearch) Results() <-chan SearchResult { return c.results }

// Query schedules a search for q. An empty query clears results at once.
func (c *ContactSearch) Query(q string) {
	q = strings.TrimSpace(q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.seq++
	seq := c.seq
	c.stopLocked()

	if q == "" {
		c.deliverLocked(SearchResult{Query: q})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.inflight.Add(1)
	c.timer = time.AfterFunc(c.delay, func() {
		defer c.inflight.Done()
		if ctx.Err() != nil {
			return
		}
		contacts, err := c.searcher.SearchContacts(ctx, q, contactSearchLimit)
		if ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || seq != c.seq {
			return
		}
		c.deliverLocked(SearchResult{Query: q, Contacts: contacts, Err: err})
	})
}

// stopLocked cancels the pending timer and any in-flight search.
func (c *ContactSearch) stopLocked() {
	if c.timer != nil && c.timer.Stop() {
		// The callback will never run.
		c.inflight.Done()
	}
	c.timer = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// deliverLocked replaces any undelivered result with r.
func (c *ContactSearch) deliverLocked(r SearchResult) {
	select {
	case <-c.results:
	default:
	}
	c.results <- r
}

// Close cancels outstanding work and waits for it to finish.
func (c *ContactSearch) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()
	c.inflight.Wait()
}
