package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

// mockWriter records calls and returns configurable results.
type mockWriter struct {
	mu    sync.Mutex
	calls []supabase.NewMessage
	err   error
	delay time.Duration
}

func (m *mockWriter) InsertMessage(_ context.Context, msg supabase.NewMessage) (*supabase.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msg)
	err, delay := m.err, m.delay
	n := len(m.calls)
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	ref := msg.ClientRef
	return &supabase.Message{
		ID:             fmt.Sprintf("srv-%d", n),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		ClientRef:      &ref,
	}, nil
}

func (m *mockWriter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recordingObserver struct {
	mu        sync.Mutex
	delivered map[string]string
	failed    map[string]error
}

func newObserver() *recordingObserver {
	return &recordingObserver{delivered: map[string]string{}, failed: map[string]error{}}
}

func (o *recordingObserver) Delivered(ref string, m *supabase.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered[ref] = m.ID
}

func (o *recordingObserver) Failed(ref string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[ref] = err
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func entry(ref string) store.OutboxEntry {
	return store.OutboxEntry{ClientRef: ref, TempID: 1, ConversationID: "conv-1", SenderID: "u-1", Content: "hello"}
}

func TestSenderDeliversQueuedMessages(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockWriter{}
	obs := newObserver()
	s := NewSender(db, mock, b, metrics.New(), zap.NewNop())
	s.SetObserver(obs)

	ch, unsub := b.Subscribe(bus.KindMessageAck, 10)
	defer unsub()

	s.Start(context.Background())
	defer s.Stop()

	if err := s.Enqueue(context.Background(), entry("c1")); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		ack := evt.Payload.(Ack)
		if ack.ClientRef != "c1" || ack.Message.ID != "srv-1" {
			t.Errorf("ack = %+v", ack)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send_ack event")
	}

	if mock.callCount() != 1 {
		t.Fatalf("got %d writes, want 1", mock.callCount())
	}
	if got := mock.calls[0]; got.ClientRef != "c1" || got.ConversationID != "conv-1" || got.Content != "hello" {
		t.Errorf("write = %+v", got)
	}

	e, err := db.GetOutbox("c1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != store.OutboxSent || e.ServerID != "srv-1" {
		t.Errorf("outbox row = %+v, want sent srv-1", e)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.delivered["c1"] != "srv-1" {
		t.Errorf("observer delivered = %v", obs.delivered)
	}
}

func TestSenderHandlesFailure(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockWriter{err: fmt.Errorf("network error")}
	obs := newObserver()
	s := NewSender(db, mock, b, nil, zap.NewNop())
	s.SetObserver(obs)

	ch, unsub := b.Subscribe(bus.KindMessageFailed, 10)
	defer unsub()

	if err := s.Enqueue(context.Background(), entry("c1")); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop()

	select {
	case evt := <-ch:
		f := evt.Payload.(Failure)
		if f.ClientRef != "c1" || f.Error != "network error" {
			t.Errorf("failure = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send_failed event")
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 (should be marked failed)", len(pending))
	}
	undelivered, err := s.Undelivered("conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(undelivered) != 1 || undelivered[0].Status != store.OutboxFailed {
		t.Errorf("undelivered = %+v, want one failed entry", undelivered)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.failed["c1"] == nil {
		t.Error("observer was not told about the failure")
	}
}

func TestSenderRequeueRetriesFailedEntry(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockWriter{err: fmt.Errorf("timeout")}
	s := NewSender(db, mock, b, nil, zap.NewNop())

	failed, unsubFailed := b.Subscribe(bus.KindMessageFailed, 10)
	defer unsubFailed()
	acks, unsubAck := b.Subscribe(bus.KindMessageAck, 10)
	defer unsubAck()

	s.Start(context.Background())
	defer s.Stop()

	if err := s.Enqueue(context.Background(), entry("c1")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first failure")
	}

	mock.mu.Lock()
	mock.err = nil
	mock.mu.Unlock()
	if err := s.Requeue(context.Background(), entry("c1")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-acks:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ack after retry")
	}
	e, _ := db.GetOutbox("c1")
	if e.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", e.Attempts)
	}
}

func TestSenderRequeueRestoresDiscardedEntry(t *testing.T) {
	db := testDB(t)
	s := NewSender(db, &mockWriter{}, bus.New(), nil, zap.NewNop())

	if err := s.Requeue(context.Background(), entry("gone")); err != nil {
		t.Fatal(err)
	}
	e, err := db.GetOutbox("gone")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Status != store.OutboxQueued {
		t.Fatalf("entry = %+v, want queued", e)
	}

	if err := s.Discard(context.Background(), "gone"); err != nil {
		t.Fatal(err)
	}
	if e, _ := db.GetOutbox("gone"); e != nil {
		t.Errorf("entry still present after discard: %+v", e)
	}
}

// TestSenderResumesInterruptedSend verifies that a row left in 'sending'
// by a crashed run is written on the next start.
func TestSenderResumesInterruptedSend(t *testing.T) {
	db := testDB(t)
	if err := db.QueueOutbox(&store.OutboxEntry{ClientRef: "c1", ConversationID: "conv-1", SenderID: "u-1", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ClaimOutbox(10); err != nil {
		t.Fatal(err)
	}

	mock := &mockWriter{}
	s := NewSender(db, mock, bus.New(), nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interrupted send was never retried")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSenderStopWaitsForInflightWrite(t *testing.T) {
	db := testDB(t)
	mock := &mockWriter{delay: 200 * time.Millisecond}
	s := NewSender(db, mock, bus.New(), nil, zap.NewNop())
	s.Start(context.Background())

	if err := s.Enqueue(context.Background(), entry("c1")); err != nil {
		t.Fatal(err)
	}
	for mock.callCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	e, _ := db.GetOutbox("c1")
	if e.Status != store.OutboxSent {
		t.Errorf("status = %q after stop, want sent", e.Status)
	}
}
