package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/collatz-app/collatz/internal/store"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

const initialBackfill = 200

// Remote is the backend surface the reconciler reads.
type Remote interface {
	ListMessages(ctx context.Context, conversationID string, limit int) ([]supabase.Message, error)
	MessagesSince(ctx context.Context, conversationID, since string) ([]supabase.Message, error)
	ListConversations(ctx context.Context, userID string) ([]supabase.ConversationSummary, error)
}

// Reconciler pulls messages missed while offline, tracking a per
// conversation checkpoint in sync_state.
type Reconciler struct {
	db     *store.DB
	remote Remote
	me     func() (string, error)
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, remote Remote, me func() (string, error), logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, remote: remote, me: me, logger: logger}
}

func checkpointKey(conversationID string) string {
	return "messages:" + conversationID
}

// Checkpoint returns the creation time of the newest message pulled for a
// conversation, "" when none was pulled yet.
func (r *Reconciler) Checkpoint(conversationID string) (string, error) {
	return r.db.SyncState(checkpointKey(conversationID))
}

// Backfill caches every message newer than the checkpoint and advances
// it. Returns how many messages were new to the cache.
func (r *Reconciler) Backfill(ctx context.Context, conversationID string) (int, error) {
	since, err := r.Checkpoint(conversationID)
	if err != nil {
		return 0, err
	}
	var msgs []supabase.Message
	if since == "" {
		msgs, err = r.remote.ListMessages(ctx, conversationID, initialBackfill)
	} else {
		msgs, err = r.remote.MessagesSince(ctx, conversationID, since)
	}
	if err != nil {
		return 0, err
	}

	var me string
	if r.me != nil {
		me, _ = r.me()
	}
	created := 0
	var latest time.Time
	for _, m := range msgs {
		sm := toStore(m, me)
		isNew, err := r.db.UpsertMessage(&sm)
		if err != nil {
			return created, fmt.Errorf("upsert %s: %w", m.ID, err)
		}
		if isNew {
			created++
		}
		if m.CreatedAt.After(latest) {
			latest = m.CreatedAt.Time
		}
	}
	if latest.IsZero() {
		return created, nil
	}
	last := msgs[len(msgs)-1]
	if err := r.db.TouchConversation(conversationID, latest.UnixMilli(), preview(last.Content)); err != nil {
		return created, err
	}
	if err := r.db.SetSyncState(checkpointKey(conversationID), latest.UTC().Format(time.RFC3339Nano)); err != nil {
		return created, err
	}
	return created, nil
}

// RefreshConversations replaces the cached conversation list with the
// backend's view for userID.
func (r *Reconciler) RefreshConversations(ctx context.Context, userID string) (int, error) {
	rows, err := r.remote.ListConversations(ctx, userID)
	if err != nil {
		return 0, err
	}
	convs := make([]store.Conversation, 0, len(rows))
	for _, c := range rows {
		convs = append(convs, store.Conversation{
			ID:            c.ID,
			Title:         c.Title,
			OtherUserID:   c.OtherUserID,
			OtherUsername: c.OtherUsername,
		})
	}
	if err := r.db.ReplaceConversations(convs); err != nil {
		return 0, err
	}
	return len(convs), nil
}
