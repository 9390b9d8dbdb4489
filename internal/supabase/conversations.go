package supabase

import (
	"context"
	"sort"
	"strings"
)

// PairKey is the canonical key of an unordered pair of user ids.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// ParticipantConversationIDs lists the conversations userID participates in,
// in backend order. Soft-deleted memberships are skipped unless
// includeDeleted is set.
func (c *Client) ParticipantConversationIDs(ctx context.Context, userID string, includeDeleted bool) ([]string, error) {
	q := c.rest(ctx).From("conversation_participants").
		Select("conversation_id", "", false).
		Eq("user_id", userID)
	if !includeDeleted {
		q = q.Eq("deleted", "false")
	}
	var rows []Participant
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, wrapError("list memberships", err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ConversationID)
	}
	return ids, nil
}

// IsParticipant reports whether userID has a participant row (deleted or
// not) in conversationID.
func (c *Client) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var rows []Participant
	_, err := c.rest(ctx).From("conversation_participants").
		Select("conversation_id", "", false).
		Eq("conversation_id", conversationID).
		Eq("user_id", userID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return false, wrapError("check membership", err)
	}
	return len(rows) > 0, nil
}

// CreateConversation inserts a conversation and returns the stored row. A
// non-empty pairKey is written to the unique pair_key column, so a
// concurrent creation for the same pair fails with ErrUniqueViolation.
func (c *Client) CreateConversation(ctx context.Context, title, pairKey string) (*Conversation, error) {
	row := map[string]any{"title": title}
	if pairKey != "" {
		row["pair_key"] = pairKey
	}
	var out []Conversation
	_, err := c.rest(ctx).From("conversations").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&out)
	if err != nil {
		return nil, wrapError("create conversation", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// ConversationByPairKey returns the conversation created for a user pair.
func (c *Client) ConversationByPairKey(ctx context.Context, pairKey string) (*Conversation, error) {
	var out []Conversation
	_, err := c.rest(ctx).From("conversations").
		Select("id, title, pair_key, created_at", "", false).
		Eq("pair_key", pairKey).
		Limit(1, "").
		ExecuteTo(&out)
	if err != nil {
		return nil, wrapError("conversation by pair", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// AddParticipants inserts one participant row per user in a single request.
func (c *Client) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	rows := make([]Participant, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, Participant{ConversationID: conversationID, UserID: id})
	}
	_, _, err := c.rest(ctx).From("conversation_participants").
		Insert(rows, false, "", "minimal", "").
		Execute()
	return wrapError("add participants", err)
}

// RestoreParticipant clears userID's soft-delete flag in conversationID.
func (c *Client) RestoreParticipant(ctx context.Context, conversationID, userID string) error {
	_, _, err := c.rest(ctx).From("conversation_participants").
		Update(map[string]any{"deleted": false}, "minimal", "").
		Eq("conversation_id", conversationID).
		Eq("user_id", userID).
		Execute()
	return wrapError("restore participant", err)
}

// SoftDeleteParticipant marks userID's participant row deleted. The
// conversation and its history stay intact for the other participant.
func (c *Client) SoftDeleteParticipant(ctx context.Context, conversationID, userID string) error {
	_, _, err := c.rest(ctx).From("conversation_participants").
		Update(map[string]any{"deleted": true}, "minimal", "").
		Eq("conversation_id", conversationID).
		Eq("user_id", userID).
		Execute()
	return wrapError("delete conversation", err)
}

// ListConversations returns the conversations visible to userID with the
// other participant resolved. Order follows the membership rows.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	ids, err := c.ParticipantConversationIDs(ctx, userID, false)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	var convs []Conversation
	_, err = c.rest(ctx).From("conversations").
		Select("id, title, pair_key, created_at", "", false).
		In("id", ids).
		ExecuteTo(&convs)
	if err != nil {
		return nil, wrapError("list conversations", err)
	}
	byID := make(map[string]Conversation, len(convs))
	for _, conv := range convs {
		byID[conv.ID] = conv
	}

	var others []struct {
		ConversationID string `json:"conversation_id"`
		UserID         string `json:"user_id"`
		User           *struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	_, err = c.rest(ctx).From("conversation_participants").
		Select("conversation_id, user_id, users(username)", "", false).
		In("conversation_id", ids).
		Neq("user_id", userID).
		ExecuteTo(&others)
	if err != nil {
		return nil, wrapError("list participants", err)
	}

	out := make([]ConversationSummary, 0, len(ids))
	for _, id := range ids {
		conv, ok := byID[id]
		if !ok {
			conv = Conversation{ID: id}
		}
		s := ConversationSummary{Conversation: conv}
		for _, o := range others {
			if o.ConversationID != id {
				continue
			}
			s.OtherUserID = o.UserID
			if o.User != nil {
				s.OtherUsername = o.User.Username
			}
			break
		}
		out = append(out, s)
	}
	return out, nil
}
