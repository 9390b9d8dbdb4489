package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = supabase.User{ID: "u-alice", Username: "alice"}
	bob   = supabase.User{ID: "u-bob", Username: "bob"}
	carol = supabase.User{ID: "u-carol", Username: "carol"}
)

type harness struct {
	s       *Synchronizer
	backend *fakeBackend
	feed    *fakeFeed
	queue   *fakeQueue
	bus     *bus.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(alice.ID, alice, bob, carol),
		feed:    &fakeFeed{},
		queue:   &fakeQueue{},
		bus:     bus.New(),
	}
	fixed := time.UnixMilli(1_700_000_000_000)
	h.s = New(h.backend, h.feed, h.queue, h.bus, zap.NewNop(), Options{
		HistoryLimit: 50,
		Clock:        func() time.Time { return fixed },
	})
	t.Cleanup(func() { h.s.Close(context.Background()) })
	return h
}

func (h *harness) openWithBob(t *testing.T) Conversation {
	t.Helper()
	conv, err := h.s.StartChatWith(context.Background(), "bob")
	require.NoError(t, err)
	return conv
}

func row(id, conv, sender, content, ref string) supabase.Message {
	m := supabase.Message{ID: id, ConversationID: conv, SenderID: sender, Content: content}
	if ref != "" {
		m.ClientRef = &ref
	}
	return m
}

func TestSendAppendsPendingAndClearsDraft(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)
	h.s.SetDraft("hello")

	e, err := h.s.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, EntryPending, e.State)
	assert.Empty(t, e.ID)
	assert.Empty(t, h.s.Draft())
	assert.Equal(t, 1, h.s.PendingCount())

	q := h.queue.last()
	assert.Equal(t, e.ClientRef, q.ClientRef)
	assert.Equal(t, conv.ID, q.ConversationID)
	assert.Equal(t, alice.ID, q.SenderID)
}

func TestSendRequiresActiveConversation(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoActiveConversation)
}

func TestSendRejectsBlankContent(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := h.s.Send(context.Background(), content)
		assert.ErrorIs(t, err, ErrEmptyMessage, "content %q", content)
	}
	assert.Empty(t, h.s.Timeline())
	assert.Zero(t, h.s.PendingCount())
	assert.Empty(t, h.queue.enqueued)
}

func TestTempIDsStrictlyIncreaseWithinOneMillisecond(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)

	var prev int64
	for i := 0; i < 5; i++ {
		e, err := h.s.Send(context.Background(), "x")
		require.NoError(t, err)
		assert.Greater(t, e.TempID, prev)
		prev = e.TempID
	}
}

// Every order of ack and feed delivery leaves exactly one sent entry.
func TestExactlyOnceAcrossInterleavings(t *testing.T) {
	tests := []struct {
		name  string
		apply func(h *harness, e Entry, conv string)
	}{
		{"ack then feed", func(h *harness, e Entry, conv string) {
			m := row("m1", conv, alice.ID, "hi", e.ClientRef)
			h.s.Delivered(e.ClientRef, &m)
			h.s.HandleFeedRow(m)
		}},
		{"feed then ack", func(h *harness, e Entry, conv string) {
			m := row("m1", conv, alice.ID, "hi", e.ClientRef)
			h.s.HandleFeedRow(m)
			h.s.Delivered(e.ClientRef, &m)
		}},
		{"feed without ref then ack", func(h *harness, e Entry, conv string) {
			h.s.HandleFeedRow(row("m1", conv, alice.ID, "hi", ""))
			m := row("m1", conv, alice.ID, "hi", e.ClientRef)
			h.s.Delivered(e.ClientRef, &m)
		}},
		{"ack then feed without ref", func(h *harness, e Entry, conv string) {
			m := row("m1", conv, alice.ID, "hi", e.ClientRef)
			h.s.Delivered(e.ClientRef, &m)
			h.s.HandleFeedRow(row("m1", conv, alice.ID, "hi", ""))
		}},
		{"feed twice then ack", func(h *harness, e Entry, conv string) {
			m := row("m1", conv, alice.ID, "hi", e.ClientRef)
			h.s.HandleFeedRow(m)
			h.s.HandleFeedRow(m)
			h.s.Delivered(e.ClientRef, &m)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			conv := h.openWithBob(t)
			e, err := h.s.Send(context.Background(), "hi")
			require.NoError(t, err)

			tt.apply(h, e, conv.ID)

			tl := h.s.Timeline()
			require.Len(t, tl, 1)
			assert.Equal(t, "m1", tl[0].ID)
			assert.Equal(t, EntrySent, tl[0].State)
			assert.Zero(t, h.s.PendingCount())
		})
	}
}

func TestDelayedWriteShowsPendingThenOneEntry(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)

	e, err := h.s.Send(context.Background(), "slow")
	require.NoError(t, err)

	tl := h.s.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, EntryPending, tl[0].State)

	// The write resolves long after the feed already delivered other rows.
	h.s.HandleFeedRow(row("m0", conv.ID, bob.ID, "meanwhile", ""))
	m := row("m1", conv.ID, alice.ID, "slow", e.ClientRef)
	h.s.Delivered(e.ClientRef, &m)
	h.s.HandleFeedRow(m)

	tl = h.s.Timeline()
	require.Len(t, tl, 2)
	var sent int
	for _, x := range tl {
		if x.Content == "slow" {
			sent++
			assert.Equal(t, EntrySent, x.State)
		}
	}
	assert.Equal(t, 1, sent)
}

func TestFeedRowsForOtherConversationsIgnored(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)

	changed := h.s.HandleFeedRow(row("x1", "some-other", bob.ID, "hey", ""))
	assert.False(t, changed)
	assert.Empty(t, h.s.Timeline())
}

func TestFeedPumpDeliversRows(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)
	events, unsub := h.bus.Subscribe("feed.", 4)
	defer unsub()

	h.feed.last().rows <- row("m9", conv.ID, bob.ID, "from bob", "")

	select {
	case evt := <-events:
		assert.Equal(t, bus.KindFeedMessage, evt.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for feed event")
	}
	tl := h.s.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, "from bob", tl[0].Content)
	assert.Equal(t, SubscribedToFeed, h.s.State())
}

func TestEnqueueFailureMarksFailedAndRetry(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)
	h.queue.err = errors.New("disk full")

	e, err := h.s.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, EntryFailed, e.State)
	assert.Zero(t, h.s.PendingCount())

	tl := h.s.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, EntryFailed, tl[0].State)
	assert.Equal(t, "disk full", tl[0].Error)

	h.queue.err = nil
	require.NoError(t, h.s.Retry(context.Background(), e.TempID))
	assert.Equal(t, EntryPending, h.s.Timeline()[0].State)
	assert.Equal(t, 1, h.s.PendingCount())
	require.Len(t, h.queue.requeued, 1)
	assert.Equal(t, e.ClientRef, h.queue.requeued[0].ClientRef)
}

func TestFailedThenDiscard(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)

	e, err := h.s.Send(context.Background(), "hi")
	require.NoError(t, err)
	h.s.Failed(e.ClientRef, errors.New("rls denied"))

	assert.Equal(t, EntryFailed, h.s.Timeline()[0].State)
	assert.Zero(t, h.s.PendingCount())

	require.NoError(t, h.s.Discard(context.Background(), e.TempID))
	assert.Empty(t, h.s.Timeline())
	assert.Equal(t, []string{e.ClientRef}, h.queue.discarded)

	assert.ErrorIs(t, h.s.Discard(context.Background(), e.TempID), ErrEntryNotFound)
}

func TestFailedRowLaterSeenOnFeedReconciles(t *testing.T) {
	h := newHarness(t)
	conv := h.openWithBob(t)

	e, err := h.s.Send(context.Background(), "hi")
	require.NoError(t, err)
	// The insert timed out locally but committed remotely.
	h.s.Failed(e.ClientRef, context.DeadlineExceeded)
	h.s.HandleFeedRow(row("m1", conv.ID, alice.ID, "hi", e.ClientRef))

	tl := h.s.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, EntrySent, tl[0].State)
}

func TestRetryRejectsPendingEntry(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)
	e, err := h.s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Error(t, h.s.Retry(context.Background(), e.TempID))
}

func TestOpenLoadsHistoryAndUndelivered(t *testing.T) {
	h := newHarness(t)
	key := supabase.PairKey(alice.ID, bob.ID)
	c, err := h.backend.CreateConversation(context.Background(), "Direct Chat", key)
	require.NoError(t, err)
	require.NoError(t, h.backend.AddParticipants(context.Background(), c.ID, alice.ID, bob.ID))
	h.backend.messages[c.ID] = []supabase.Message{
		row("m1", c.ID, bob.ID, "hi", ""),
		row("m2", c.ID, alice.ID, "sent earlier", "ref-sent"),
		row("m1", c.ID, bob.ID, "hi", ""),
	}
	h.queue.undelivered = []store.OutboxEntry{
		{ClientRef: "ref-sent", TempID: 5, ConversationID: c.ID, Content: "sent earlier", Status: store.OutboxSending},
		{ClientRef: "ref-queued", TempID: 6, ConversationID: c.ID, SenderID: alice.ID, Content: "queued", Status: store.OutboxQueued},
		{ClientRef: "ref-failed", TempID: 7, ConversationID: c.ID, SenderID: alice.ID, Content: "broken", Status: store.OutboxFailed, ErrorMessage: "boom"},
	}

	require.NoError(t, h.s.Open(context.Background(), c.ID))

	tl := h.s.Timeline()
	require.Len(t, tl, 4)
	assert.Equal(t, "m1", tl[0].ID)
	assert.Equal(t, "m2", tl[1].ID)
	assert.Equal(t, EntryPending, tl[2].State)
	assert.Equal(t, EntryFailed, tl[3].State)
	assert.Equal(t, "boom", tl[3].Error)
	assert.Equal(t, 1, h.s.PendingCount())

	m := row("m3", c.ID, alice.ID, "queued", "ref-queued")
	h.s.Delivered("ref-queued", &m)
	assert.Zero(t, h.s.PendingCount())
	assert.Len(t, h.s.Timeline(), 4)
}

func TestOpenSwitchClosesPreviousFeed(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)
	first := h.feed.last()

	_, err := h.s.StartChatWith(context.Background(), "carol")
	require.NoError(t, err)

	select {
	case <-first.closed:
	default:
		t.Fatal("previous subscription still open")
	}
	assert.NotSame(t, first, h.feed.last())
	assert.Equal(t, h.feed.last().conv, h.s.Active())
}

func TestCloseTearsDownFeed(t *testing.T) {
	h := newHarness(t)
	h.openWithBob(t)
	sub := h.feed.last()

	h.s.Close(context.Background())

	assert.Equal(t, Closed, h.s.State())
	select {
	case <-sub.closed:
	default:
		t.Fatal("subscription not closed")
	}
	_, err := h.s.Send(context.Background(), "late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.s.Open(context.Background(), "x"), ErrClosed)
}

// A sent row the feed delivers while history loads is not duplicated by
// its not yet acknowledged outbox row.
func TestOpenFeedRowDuringHistorySuppressesOutboxCopy(t *testing.T) {
	h := newHarness(t)
	key := supabase.PairKey(alice.ID, bob.ID)
	c, err := h.backend.CreateConversation(context.Background(), "Direct Chat", key)
	require.NoError(t, err)
	require.NoError(t, h.backend.AddParticipants(context.Background(), c.ID, alice.ID, bob.ID))

	h.backend.beforeList = func() {
		h.backend.beforeList = nil
		require.True(t, h.s.HandleFeedRow(row("m9", c.ID, alice.ID, "in flight", "ref-flight")))
	}
	h.queue.undelivered = []store.OutboxEntry{
		{ClientRef: "ref-flight", TempID: 3, ConversationID: c.ID, SenderID: alice.ID, Content: "in flight", Status: store.OutboxSending},
	}

	require.NoError(t, h.s.Open(context.Background(), c.ID))

	tl := h.s.Timeline()
	require.Len(t, tl, 1)
	assert.Equal(t, "m9", tl[0].ID)
	assert.Equal(t, EntrySent, tl[0].State)
	assert.Zero(t, h.s.PendingCount())
}
