package sync

import (
	"context"
	"fmt"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/outbox"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

const previewLen = 100

// Engine mirrors confirmed messages into the local cache. It listens for
// feed rows accepted by the inbox, outbox acknowledgements and
// conversation lifecycle events.
type Engine struct {
	db         *store.DB
	bus        *bus.Bus
	reconciler *Reconciler
	me         func() (string, error)
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewEngine creates a new sync engine. me resolves the logged-in user id
// so rows can be flagged as sent by this user.
func NewEngine(db *store.DB, b *bus.Bus, r *Reconciler, me func() (string, error), logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:         db,
		bus:        b,
		reconciler: r,
		me:         me,
		logger:     logger.Named("sync"),
	}
}

// Start subscribes to feed, message and inbox events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	feed, unsubFeed := e.bus.Subscribe("feed.", 256)
	acks, unsubAcks := e.bus.Subscribe(bus.KindMessageAck, 256)
	lifecycle, unsubInbox := e.bus.Subscribe("inbox.conversation_", 32)

	go func() {
		defer close(e.done)
		defer unsubFeed()
		defer unsubAcks()
		defer unsubInbox()
		for {
			select {
			case evt := <-feed:
				e.handleEvent(ctx, evt)
			case evt := <-acks:
				e.handleEvent(ctx, evt)
			case evt := <-lifecycle:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindFeedMessage:
		m, ok := evt.Payload.(supabase.Message)
		if !ok {
			return
		}
		if err := e.IngestMessage(m); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("message_id", m.ID))
		}
	case bus.KindMessageAck:
		ack, ok := evt.Payload.(outbox.Ack)
		if !ok || ack.Message == nil {
			return
		}
		if err := e.IngestMessage(*ack.Message); err != nil {
			e.logger.Error("failed to ingest acknowledged message", zap.Error(err), zap.String("client_ref", ack.ClientRef))
		}
	case bus.KindConversationOpened:
		id, ok := evt.Payload.(string)
		if !ok || e.reconciler == nil {
			return
		}
		n, err := e.reconciler.Backfill(ctx, id)
		if err != nil {
			e.logger.Warn("backfill failed", zap.String("conversation", id), zap.Error(err))
			return
		}
		if n > 0 {
			e.logger.Info("backfilled messages", zap.String("conversation", id), zap.Int("messages", n))
		}
	case bus.KindConversationDeleted:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		if err := e.db.HideConversation(id); err != nil {
			e.logger.Error("failed to hide conversation", zap.Error(err), zap.String("conversation", id))
		}
	}
}

// IngestMessage stores a confirmed message (idempotent on its id) and
// bumps its conversation's activity.
func (e *Engine) IngestMessage(m supabase.Message) error {
	var me string
	if e.me != nil {
		me, _ = e.me()
	}
	sm := toStore(m, me)
	if _, err := e.db.UpsertMessage(&sm); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	if err := e.db.TouchConversation(m.ConversationID, sm.CreatedAt, preview(m.Content)); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func toStore(m supabase.Message, me string) store.Message {
	return store.Message{
		ConversationID: m.ConversationID,
		RemoteID:       m.ID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName(),
		Content:        m.Content,
		ClientRef:      m.Ref(),
		FromMe:         me != "" && m.SenderID == me,
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

func preview(content string) string {
	return truncate(inbox.Render(inbox.DecodePayload(content)), previewLen)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
