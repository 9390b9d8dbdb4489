package realtime

import (
	"context"
	"sync"
	"sync/atomic"
)

// Channel is a joined topic. Changes are delivered on Changes() until Done()
// is closed; the changes channel itself is never closed.
type Channel struct {
	client  *Client
	topic   string
	filters []ChangeFilter

	changes chan Change
	done    chan struct{}
	once    sync.Once
	joined  atomic.Bool
}

func newChannel(c *Client, topic string, filters []ChangeFilter) *Channel {
	return &Channel{
		client:  c,
		topic:   topic,
		filters: filters,
		changes: make(chan Change, 64),
		done:    make(chan struct{}),
	}
}

// Topic returns the full channel topic.
func (ch *Channel) Topic() string { return ch.topic }

// Changes delivers row changes in server order.
func (ch *Channel) Changes() <-chan Change { return ch.changes }

// Done is closed when the channel is unsubscribed or the client closes.
func (ch *Channel) Done() <-chan struct{} { return ch.done }

// Joined reports whether the server acknowledged the latest join.
func (ch *Channel) Joined() bool { return ch.joined.Load() }

// Unsubscribe leaves the topic and closes Done. Safe to call more than once.
func (ch *Channel) Unsubscribe(ctx context.Context) error {
	return ch.client.unsubscribe(ctx, ch)
}

func (ch *Channel) deliver(c Change) {
	select {
	case ch.changes <- c:
	case <-ch.done:
	}
}

func (ch *Channel) close() {
	ch.once.Do(func() {
		ch.joined.Store(false)
		close(ch.done)
	})
}
