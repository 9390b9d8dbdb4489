// Package outbox performs the authoritative write of locally composed
// messages. Rows survive restarts in the local store until the backend
// confirms them.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

// MessageWriter inserts a message row on the backend.
type MessageWriter interface {
	InsertMessage(ctx context.Context, m supabase.NewMessage) (*supabase.Message, error)
}

// Observer is told the outcome of every write.
type Observer interface {
	Delivered(clientRef string, m *supabase.Message)
	Failed(clientRef string, err error)
}

// Ack is the payload of bus.KindMessageAck.
type Ack struct {
	ClientRef      string
	ConversationID string
	Message        *supabase.Message
}

// Failure is the payload of bus.KindMessageFailed.
type Failure struct {
	ClientRef      string
	ConversationID string
	Error          string
}

const (
	pollInterval = 500 * time.Millisecond
	claimBatch   = 20
)

// Sender drains the outbox and writes messages to the backend.
type Sender struct {
	db      *store.DB
	writer  MessageWriter
	bus     *bus.Bus
	metrics *metrics.Collector
	logger  *zap.Logger

	mu       sync.Mutex
	observer Observer

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, writer MessageWriter, b *bus.Bus, m *metrics.Collector, logger *zap.Logger) *Sender {
	return &Sender{
		db:      db,
		writer:  writer,
		bus:     b,
		metrics: m,
		logger:  logger.Named("outbox"),
		wake:    make(chan struct{}, 1),
	}
}

// SetObserver registers the component notified of write outcomes.
func (s *Sender) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

func (s *Sender) currentObserver() Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observer
}

// Start re-queues writes interrupted by a previous run and begins
// draining the outbox.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.ResetSendingOutbox(); err != nil {
		s.logger.Error("failed to reset interrupted sends", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("re-queued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for the in-flight batch.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Enqueue stores e as queued and wakes the loop.
func (s *Sender) Enqueue(_ context.Context, e store.OutboxEntry) error {
	if err := s.db.QueueOutbox(&e); err != nil {
		return fmt.Errorf("queue %s: %w", e.ClientRef, err)
	}
	s.notify()
	return nil
}

// Requeue moves a failed entry back to queued. An entry the outbox no
// longer holds is stored again.
func (s *Sender) Requeue(ctx context.Context, e store.OutboxEntry) error {
	ok, err := s.db.RequeueOutbox(e.ClientRef)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", e.ClientRef, err)
	}
	if ok {
		s.notify()
		return nil
	}
	existing, err := s.db.GetOutbox(e.ClientRef)
	if err != nil {
		return err
	}
	if existing != nil {
		// Already queued, sending or sent.
		return nil
	}
	return s.Enqueue(ctx, e)
}

// Discard forgets an entry.
func (s *Sender) Discard(_ context.Context, clientRef string) error {
	return s.db.DeleteOutbox(clientRef)
}

// Undelivered lists a conversation's entries that are not confirmed yet.
func (s *Sender) Undelivered(conversationID string) ([]store.OutboxEntry, error) {
	return s.db.UndeliveredOutbox(conversationID)
}

func (s *Sender) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.wake:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	claimed, err := s.db.ClaimOutbox(claimBatch)
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range claimed {
		if ctx.Err() != nil {
			// Left in 'sending'; the next Start re-queues it.
			return
		}
		s.send(ctx, entry)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) {
	log := s.logger.With(zap.String("client_ref", entry.ClientRef), zap.String("conversation", entry.ConversationID))

	msg, err := s.writer.InsertMessage(ctx, supabase.NewMessage{
		ConversationID: entry.ConversationID,
		SenderID:       entry.SenderID,
		Content:        entry.Content,
		ClientRef:      entry.ClientRef,
	})
	if err != nil {
		log.Error("failed to send message", zap.Error(err), zap.Int("attempt", entry.Attempts))
		if mErr := s.db.MarkOutboxFailed(entry.ClientRef, err.Error()); mErr != nil {
			log.Error("failed to mark failed", zap.Error(mErr))
		}
		s.metrics.MessageSent("error")
		if o := s.currentObserver(); o != nil {
			o.Failed(entry.ClientRef, err)
		}
		s.bus.Emit(bus.KindMessageFailed, Failure{
			ClientRef:      entry.ClientRef,
			ConversationID: entry.ConversationID,
			Error:          err.Error(),
		})
		return
	}

	if err := s.db.MarkOutboxSent(entry.ClientRef, msg.ID); err != nil {
		log.Error("failed to mark sent", zap.Error(err))
	}
	s.metrics.MessageSent("ok")
	log.Info("message sent", zap.String("message_id", msg.ID))
	if o := s.currentObserver(); o != nil {
		o.Delivered(entry.ClientRef, msg)
	}
	s.bus.Emit(bus.KindMessageAck, Ack{
		ClientRef:      entry.ClientRef,
		ConversationID: entry.ConversationID,
		Message:        msg,
	})
}
