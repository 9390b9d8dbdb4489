package api

import (
	"context"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/outbox"
	"github.com/collatz-app/collatz/internal/store"
	"go.uber.org/zap"
)

// Inbox is the conversation and timeline surface of the synchronizer.
type Inbox interface {
	StartChatWith(ctx context.Context, username string) (inbox.Conversation, error)
	Open(ctx context.Context, conversationID string) error
	CloseConversation(ctx context.Context)
	DeleteConversation(ctx context.Context, conversationID string) error
	MarkInterest(ctx context.Context, hackathonID string) (inbox.Conversation, error)
	SearchContacts(ctx context.Context, q string, limit int) ([]inbox.Contact, error)

	State() inbox.State
	Active() string
	Timeline() []inbox.Entry
	Draft() string
	SetDraft(text string)
	Send(ctx context.Context, content string) (inbox.Entry, error)
	Retry(ctx context.Context, tempID int64) error
	Discard(ctx context.Context, tempID int64) error
}

// ConversationRefresher reloads the cached conversation list from the backend.
type ConversationRefresher interface {
	RefreshConversations(ctx context.Context, userID string) (int, error)
}

// InboxService implements the InboxService gRPC service.
type InboxService struct {
	inbox   Inbox
	db      *store.DB
	refresh ConversationRefresher
	me      func() (string, error)
	bus     *bus.Bus
	logger  *zap.Logger

	uploader ImageUploader
	bucket   string
}

// NewInboxService creates the inbox service. The conversation list is served
// from the local cache, refreshed through r.
func NewInboxService(ib Inbox, db *store.DB, r ConversationRefresher, me func() (string, error), b *bus.Bus, logger *zap.Logger) *InboxService {
	return &InboxService{inbox: ib, db: db, refresh: r, me: me, bus: b, logger: logger.Named("api.inbox")}
}

func (s *InboxService) ListConversations(ctx context.Context, req *collatzv1.ListConversationsRequest) (*collatzv1.ListConversationsResponse, error) {
	convs, err := s.db.ListConversations(200, 0)
	if err != nil {
		return nil, toStatus("list conversations", err)
	}
	if req.Refresh || len(convs) == 0 {
		me, err := s.me()
		if err != nil {
			return nil, toStatus("list conversations", err)
		}
		if _, err := s.refresh.RefreshConversations(ctx, me); err != nil {
			return nil, toStatus("refresh conversations", err)
		}
		if convs, err = s.db.ListConversations(200, 0); err != nil {
			return nil, toStatus("list conversations", err)
		}
	}

	resp := &collatzv1.ListConversationsResponse{Conversations: make([]collatzv1.Conversation, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, cachedConversationToAPI(c))
	}
	return resp, nil
}

func (s *InboxService) StartChat(ctx context.Context, req *collatzv1.StartChatRequest) (*collatzv1.StartChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	conv, err := s.inbox.StartChatWith(ctx, req.Username)
	if err != nil {
		return nil, toStatus("start chat", err)
	}
	s.remember(conv)
	return &collatzv1.StartChatResponse{Conversation: conversationToAPI(conv)}, nil
}

func (s *InboxService) OpenConversation(ctx context.Context, req *collatzv1.OpenConversationRequest) (*collatzv1.GetTimelineResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.inbox.Open(ctx, req.ConversationID); err != nil {
		return nil, toStatus("open conversation", err)
	}
	return s.timeline(), nil
}

func (s *InboxService) CloseConversation(ctx context.Context, _ *collatzv1.Empty) (*collatzv1.Empty, error) {
	s.inbox.CloseConversation(ctx)
	return &collatzv1.Empty{}, nil
}

func (s *InboxService) DeleteConversation(ctx context.Context, req *collatzv1.DeleteConversationRequest) (*collatzv1.Empty, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.inbox.DeleteConversation(ctx, req.ConversationID); err != nil {
		return nil, toStatus("delete conversation", err)
	}
	return &collatzv1.Empty{}, nil
}

func (s *InboxService) SearchUsers(ctx context.Context, req *collatzv1.SearchUsersRequest) (*collatzv1.SearchUsersResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	limit := int(req.Limit)
	if limit == 0 {
		limit = 5
	}
	contacts, err := s.inbox.SearchContacts(ctx, req.Query, limit)
	if err != nil {
		return nil, toStatus("search users", err)
	}
	resp := &collatzv1.SearchUsersResponse{Users: make([]collatzv1.Contact, 0, len(contacts))}
	for _, c := range contacts {
		resp.Users = append(resp.Users, collatzv1.Contact{ID: c.ID, Username: c.Username})
	}
	return resp, nil
}

func (s *InboxService) MarkInterest(ctx context.Context, req *collatzv1.MarkInterestRequest) (*collatzv1.MarkInterestResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	conv, err := s.inbox.MarkInterest(ctx, req.HackathonID)
	if err != nil {
		return nil, toStatus("mark interest", err)
	}
	s.remember(conv)
	return &collatzv1.MarkInterestResponse{Conversation: conversationToAPI(conv)}, nil
}

func (s *InboxService) WatchTimeline(_ *collatzv1.WatchTimelineRequest, stream collatzv1.ServerStream[collatzv1.TimelineEvent]) error {
	inboxCh, unsubInbox := s.bus.Subscribe("inbox.", 256)
	defer unsubInbox()
	msgCh, unsubMsg := s.bus.Subscribe("message.", 256)
	defer unsubMsg()

	for {
		var evt bus.Event
		select {
		case evt = <-inboxCh:
		case evt = <-msgCh:
		case <-stream.Context().Done():
			return nil
		}
		if err := stream.Send(timelineEvent(evt)); err != nil {
			return err
		}
	}
}

// remember caches a conversation the user just started so it lists before
// the next refresh.
func (s *InboxService) remember(c inbox.Conversation) {
	err := s.db.UpsertConversation(&store.Conversation{
		ID:            c.ID,
		Title:         c.Title,
		OtherUserID:   c.OtherUserID,
		OtherUsername: c.OtherUsername,
	})
	if err != nil {
		s.logger.Warn("failed to cache conversation", zap.String("conversation_id", c.ID), zap.Error(err))
	}
}

func timelineEvent(evt bus.Event) *collatzv1.TimelineEvent {
	out := &collatzv1.TimelineEvent{Kind: evt.Kind, AtUnixMs: evt.Timestamp.UnixMilli()}
	switch p := evt.Payload.(type) {
	case inbox.TimelineChanged:
		out.ConversationID = p.ConversationID
	case outbox.Ack:
		out.ConversationID = p.ConversationID
		out.ClientRef = p.ClientRef
	case outbox.Failure:
		out.ConversationID = p.ConversationID
		out.ClientRef = p.ClientRef
	case string:
		if evt.Kind == bus.KindMessageQueued {
			out.ClientRef = p
		} else {
			out.ConversationID = p
		}
	}
	return out
}

func conversationToAPI(c inbox.Conversation) collatzv1.Conversation {
	return collatzv1.Conversation{
		ID:            c.ID,
		Title:         c.Title,
		DisplayName:   c.DisplayName(),
		OtherUserID:   c.OtherUserID,
		OtherUsername: c.OtherUsername,
	}
}

func cachedConversationToAPI(c store.Conversation) collatzv1.Conversation {
	return collatzv1.Conversation{
		ID:                  c.ID,
		Title:               c.Title,
		DisplayName:         c.DisplayName(),
		OtherUserID:         c.OtherUserID,
		OtherUsername:       c.OtherUsername,
		LastMessageAtUnixMs: c.LastMessageAt,
		LastMessagePreview:  c.LastMessagePreview,
	}
}
