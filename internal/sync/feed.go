package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/realtime"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

// Subscriber is the part of the realtime client the feed needs.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, filters ...realtime.ChangeFilter) (*realtime.Channel, error)
}

// MessageFeed turns realtime message inserts into typed rows, one channel
// per conversation.
type MessageFeed struct {
	rt     Subscriber
	bus    *bus.Bus
	logger *zap.Logger
}

// NewMessageFeed creates a feed over rt.
func NewMessageFeed(rt Subscriber, b *bus.Bus, logger *zap.Logger) *MessageFeed {
	return &MessageFeed{rt: rt, bus: b, logger: logger.Named("feed")}
}

// Topic is the realtime topic carrying a conversation's messages.
func Topic(conversationID string) string {
	return "messages-" + conversationID
}

// Subscribe joins the conversation's insert feed.
func (f *MessageFeed) Subscribe(ctx context.Context, conversationID string) (inbox.Subscription, error) {
	ch, err := f.rt.Subscribe(ctx, Topic(conversationID), realtime.ChangeFilter{
		Event:  "INSERT",
		Schema: "public",
		Table:  "messages",
		Filter: "conversation_id=eq." + conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", conversationID, err)
	}
	s := &feedSubscription{
		ch:     ch,
		rows:   make(chan supabase.Message, 16),
		done:   make(chan struct{}),
		logger: f.logger.With(zap.String("conversation", conversationID)),
	}
	go s.pump()
	f.bus.Emit(bus.KindFeedJoined, conversationID)
	return &closeNotifier{feedSubscription: s, onClose: func() { f.bus.Emit(bus.KindFeedLeft, conversationID) }}, nil
}

type feedSubscription struct {
	ch     *realtime.Channel
	rows   chan supabase.Message
	done   chan struct{}
	logger *zap.Logger
}

func (s *feedSubscription) Rows() <-chan supabase.Message { return s.rows }

func (s *feedSubscription) pump() {
	defer close(s.done)
	defer close(s.rows)
	for {
		select {
		case <-s.ch.Done():
			return
		case c := <-s.ch.Changes():
			m, err := DecodeMessage(c)
			if err != nil {
				s.logger.Warn("dropping undecodable row", zap.Error(err))
				continue
			}
			select {
			case s.rows <- m:
			case <-s.ch.Done():
				return
			}
		}
	}
}

func (s *feedSubscription) Close(ctx context.Context) error {
	err := s.ch.Unsubscribe(ctx)
	<-s.done
	if errors.Is(err, realtime.ErrClosed) {
		return nil
	}
	return err
}

type closeNotifier struct {
	*feedSubscription
	onClose func()
}

func (c *closeNotifier) Close(ctx context.Context) error {
	err := c.feedSubscription.Close(ctx)
	c.onClose()
	return err
}

// DecodeMessage decodes the record of a messages insert.
func DecodeMessage(c realtime.Change) (supabase.Message, error) {
	var m supabase.Message
	if len(c.Record) == 0 {
		return m, errors.New("change has no record")
	}
	if err := json.Unmarshal(c.Record, &m); err != nil {
		return m, fmt.Errorf("decode message record: %w", err)
	}
	if m.ID == "" || m.ConversationID == "" {
		return m, fmt.Errorf("message record missing id or conversation_id")
	}
	return m, nil
}
