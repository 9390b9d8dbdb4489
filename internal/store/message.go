package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertMessage inserts or updates a message (idempotent on
// conversation_id + remote_id). Returns true when the row is new.
func (db *DB) UpsertMessage(m *Message) (bool, error) {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM messages WHERE conversation_id = ? AND remote_id = ?`, m.ConversationID, m.RemoteID).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	_, err = db.Exec(`
		INSERT INTO messages (conversation_id, remote_id, sender_id, sender_name, content, client_ref, from_me, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, remote_id) DO UPDATE SET
			sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
			content = excluded.content,
			client_ref = CASE WHEN excluded.client_ref != '' THEN excluded.client_ref ELSE messages.client_ref END`,
		m.ConversationID, m.RemoteID, m.SenderID, m.SenderName, m.Content, m.ClientRef, m.FromMe, m.CreatedAt)
	if err != nil {
		return false, err
	}
	return exists == 0, nil
}

// ListMessages returns messages for a conversation using keyset pagination
// by creation time, newest first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, remote_id, sender_id, sender_name, content, client_ref, from_me, created_at
		FROM messages
		WHERE conversation_id = ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

// LatestMessageAt returns the creation time of the newest cached message in
// a conversation, zero when none is cached.
func (db *DB) LatestMessageAt(conversationID string) (int64, error) {
	var ts sql.NullInt64
	err := db.QueryRow(`SELECT MAX(created_at) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&ts)
	return ts.Int64, err
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.RemoteID, &m.SenderID, &m.SenderName, &m.Content, &m.ClientRef, &m.FromMe, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
