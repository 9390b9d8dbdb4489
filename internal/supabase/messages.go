package supabase

import (
	"context"
	"errors"
	"slices"

	"github.com/supabase-community/postgrest-go"
)

const messageColumns = "id, conversation_id, sender_id, content, created_at, client_ref, users(username)"

// ListMessages returns a conversation's history in ascending creation order.
// With a positive limit only the newest limit messages are returned.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	q := c.rest(ctx).From("messages").
		Select(messageColumns, "", false).
		Eq("conversation_id", conversationID)
	if limit > 0 {
		q = q.Order("created_at", &postgrest.OrderOpts{Ascending: false}).Limit(limit, "")
	} else {
		q = q.Order("created_at", &postgrest.OrderOpts{Ascending: true})
	}
	var msgs []Message
	if _, err := q.ExecuteTo(&msgs); err != nil {
		return nil, wrapError("list messages", err)
	}
	if limit > 0 {
		slices.Reverse(msgs)
	}
	return msgs, nil
}

// MessagesSince returns messages created strictly after the given RFC3339
// timestamp, oldest first.
func (c *Client) MessagesSince(ctx context.Context, conversationID, since string) ([]Message, error) {
	var msgs []Message
	_, err := c.rest(ctx).From("messages").
		Select(messageColumns, "", false).
		Eq("conversation_id", conversationID).
		Gt("created_at", since).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&msgs)
	if err != nil {
		return nil, wrapError("messages since", err)
	}
	return msgs, nil
}

// MessageByClientRef returns the message inserted with ref.
func (c *Client) MessageByClientRef(ctx context.Context, ref string) (*Message, error) {
	var msgs []Message
	_, err := c.rest(ctx).From("messages").
		Select(messageColumns, "", false).
		Eq("client_ref", ref).
		Limit(1, "").
		ExecuteTo(&msgs)
	if err != nil {
		return nil, wrapError("message by ref", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}

// InsertMessage performs the authoritative write of a message and returns
// the stored row with its assigned id. The write is idempotent on
// ClientRef: a retry after a lost response returns the row stored by the
// first attempt.
func (c *Client) InsertMessage(ctx context.Context, m NewMessage) (*Message, error) {
	var out []Message
	_, err := c.rest(ctx).From("messages").
		Insert(m, false, "", "representation", "").
		ExecuteTo(&out)
	if err != nil {
		err = wrapError("insert message", err)
		if m.ClientRef != "" && errors.Is(err, ErrUniqueViolation) {
			return c.MessageByClientRef(ctx, m.ClientRef)
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}
