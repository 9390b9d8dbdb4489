package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const directChatTitle = "Direct Chat"

// StartChatWith opens the conversation shared with username, creating it
// when none exists.
func (s *Synchronizer) StartChatWith(ctx context.Context, username string) (Conversation, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Conversation{}, ErrUserNotFound
	}
	me, err := s.backend.CurrentUserID()
	if err != nil {
		return Conversation{}, err
	}
	other, err := s.backend.UserByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return Conversation{}, ErrUserNotFound
		}
		return Conversation{}, fmt.Errorf("lookup %s: %w", username, err)
	}
	if other.ID == me {
		return Conversation{}, ErrSelfChat
	}

	conv, err := s.findOrCreate(ctx, me, other.ID, directChatTitle)
	if err != nil {
		return Conversation{}, err
	}
	conv.OtherUserID = other.ID
	conv.OtherUsername = other.Username

	if err := s.Open(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

// findOrCreate returns the first conversation of other's in which me also
// participates, else creates one titled title with both participants.
func (s *Synchronizer) findOrCreate(ctx context.Context, me, other, title string) (Conversation, error) {
	ids, err := s.backend.ParticipantConversationIDs(ctx, other, true)
	if err != nil {
		return Conversation{}, fmt.Errorf("list conversations of %s: %w", other, err)
	}
	for _, id := range ids {
		ok, err := s.backend.IsParticipant(ctx, id, me)
		if err != nil {
			return Conversation{}, err
		}
		if !ok {
			continue
		}
		// A previously deleted conversation becomes visible again.
		if err := s.backend.RestoreParticipant(ctx, id, me); err != nil {
			return Conversation{}, err
		}
		return Conversation{ID: id}, nil
	}

	key := supabase.PairKey(me, other)
	created, err := s.backend.CreateConversation(ctx, title, key)
	switch {
	case err == nil:
		if err := s.backend.AddParticipants(ctx, created.ID, me, other); err != nil {
			return Conversation{}, fmt.Errorf("add participants: %w", err)
		}
		return Conversation{ID: created.ID, Title: created.Title}, nil
	case errors.Is(err, supabase.ErrUniqueViolation):
		// Both sides raced; the other creation won.
		existing, err := s.backend.ConversationByPairKey(ctx, key)
		if err != nil {
			return Conversation{}, fmt.Errorf("resolve pair %s: %w", key, err)
		}
		err = s.backend.AddParticipants(ctx, existing.ID, me, other)
		if err != nil && !errors.Is(err, supabase.ErrUniqueViolation) {
			return Conversation{}, fmt.Errorf("add participants: %w", err)
		}
		s.logger.Info("reused concurrently created conversation", zap.String("conversation", existing.ID))
		return Conversation{ID: existing.ID, Title: existing.Title}, nil
	default:
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
}

// ListConversations returns the current user's visible conversations.
func (s *Synchronizer) ListConversations(ctx context.Context) ([]Conversation, error) {
	me, err := s.backend.CurrentUserID()
	if err != nil {
		return nil, err
	}
	rows, err := s.backend.ListConversations(ctx, me)
	if err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Conversation{
			ID:            r.ID,
			Title:         r.Title,
			OtherUserID:   r.OtherUserID,
			OtherUsername: r.OtherUsername,
		})
	}
	return out, nil
}

// DeleteConversation hides conversationID from the current user only.
func (s *Synchronizer) DeleteConversation(ctx context.Context, conversationID string) error {
	me, err := s.backend.CurrentUserID()
	if err != nil {
		return err
	}
	if err := s.backend.SoftDeleteParticipant(ctx, conversationID, me); err != nil {
		return err
	}
	if s.Active() == conversationID {
		s.CloseConversation(ctx)
	}
	s.emit(bus.KindConversationDeleted, conversationID)
	return nil
}

// MarkInterest records interest in a hackathon and notifies its creator
// with a structured message in a conversation titled "Interest: <title>".
func (s *Synchronizer) MarkInterest(ctx context.Context, hackathonID string) (Conversation, error) {
	me, err := s.backend.CurrentUserID()
	if err != nil {
		return Conversation{}, err
	}
	h, err := s.backend.HackathonByID(ctx, hackathonID)
	if err != nil {
		if isNotFound(err) {
			return Conversation{}, ErrHackathonNotFound
		}
		return Conversation{}, err
	}
	if h.UserID == me {
		return Conversation{}, ErrOwnHackathon
	}
	if err := s.backend.InsertInterest(ctx, me, hackathonID); err != nil {
		if errors.Is(err, supabase.ErrUniqueViolation) {
			return Conversation{}, ErrAlreadyInterested
		}
		return Conversation{}, err
	}

	var username string
	if u, err := s.backend.UserByID(ctx, me); err == nil {
		username = u.Username
	} else {
		s.logger.Warn("lookup own username", zap.Error(err))
	}

	conv, err := s.findOrCreate(ctx, me, h.UserID, "Interest: "+h.Title)
	if err != nil {
		return Conversation{}, err
	}
	conv.OtherUserID = h.UserID

	content, err := EncodePayload(HackathonInterestPayload{
		HackathonID:        h.ID,
		HackathonTitle:     h.Title,
		InterestedUsername: username,
		Time:               s.opts.Clock().UTC(),
	})
	if err != nil {
		return conv, err
	}

	if s.Active() == conv.ID {
		_, err = s.Send(ctx, content)
		return conv, err
	}

	s.mu.Lock()
	tempID := s.nextTempIDLocked()
	s.mu.Unlock()
	err = s.queue.Enqueue(ctx, store.OutboxEntry{
		ClientRef:      uuid.NewString(),
		TempID:         tempID,
		ConversationID: conv.ID,
		SenderID:       me,
		Content:        content,
	})
	if err != nil {
		return conv, fmt.Errorf("queue interest message: %w", err)
	}
	return conv, nil
}

// SearchContacts looks up users whose username contains q.
func (s *Synchronizer) SearchContacts(ctx context.Context, q string, limit int) ([]Contact, error) {
	users, err := s.backend.SearchUsers(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	me, _ := s.backend.CurrentUserID()
	out := make([]Contact, 0, len(users))
	for _, u := range users {
		if u.ID == me {
			continue
		}
		out = append(out, Contact{ID: u.ID, Username: u.Username})
	}
	return out, nil
}
