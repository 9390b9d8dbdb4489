package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertConversationSQL = `
	INSERT INTO conversations (id, title, other_user_id, other_username, last_message_at, last_message_preview, deleted, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		other_user_id = CASE WHEN excluded.other_user_id != '' THEN excluded.other_user_id ELSE conversations.other_user_id END,
		other_username = CASE WHEN excluded.other_username != '' THEN excluded.other_username ELSE conversations.other_username END,
		last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
		last_message_preview = CASE WHEN excluded.last_message_at >= conversations.last_message_at
			THEN excluded.last_message_preview ELSE conversations.last_message_preview END,
		deleted = excluded.deleted,
		updated_at = excluded.updated_at`

// UpsertConversation inserts or updates a conversation record. The last
// message time never moves backwards.
func (db *DB) UpsertConversation(c *Conversation) error {
	_, err := db.Exec(upsertConversationSQL,
		c.ID, c.Title, c.OtherUserID, c.OtherUsername, c.LastMessageAt, c.LastMessagePreview, c.Deleted, time.Now().UnixMilli())
	return err
}

// ReplaceConversations upserts the visible conversation list fetched from the
// backend and hides every cached conversation missing from it.
func (db *DB) ReplaceConversations(convs []Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`UPDATE conversations SET deleted = 1, updated_at = ?`, now); err != nil {
		return fmt.Errorf("hide conversations: %w", err)
	}
	for _, c := range convs {
		if _, err := tx.Exec(upsertConversationSQL,
			c.ID, c.Title, c.OtherUserID, c.OtherUsername, c.LastMessageAt, c.LastMessagePreview, false, now); err != nil {
			return fmt.Errorf("upsert conversation %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListConversations returns visible conversations, most recent activity first.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, title, other_user_id, other_username, last_message_at, last_message_preview, deleted
		FROM conversations
		WHERE deleted = 0
		ORDER BY last_message_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.OtherUserID, &c.OtherUsername, &c.LastMessageAt, &c.LastMessagePreview, &c.Deleted); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a conversation by id, or nil when it is not cached.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, title, other_user_id, other_username, last_message_at, last_message_preview, deleted
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.OtherUserID, &c.OtherUsername, &c.LastMessageAt, &c.LastMessagePreview, &c.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// HideConversation marks a conversation deleted for the local user. History
// stays cached.
func (db *DB) HideConversation(id string) error {
	_, err := db.Exec(`UPDATE conversations SET deleted = 1, updated_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	return err
}

// TouchConversation records new activity on a conversation, creating a
// placeholder row when the conversation is not cached yet.
func (db *DB) TouchConversation(id string, at int64, preview string) error {
	_, err := db.Exec(`
		INSERT INTO conversations (id, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_preview = CASE WHEN excluded.last_message_at >= conversations.last_message_at
				THEN excluded.last_message_preview ELSE conversations.last_message_preview END,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		id, at, preview, time.Now().UnixMilli())
	return err
}
