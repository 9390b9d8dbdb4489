package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const outboxColumns = `id, client_ref, temp_id, conversation_id, sender_id, content, status, attempts, error_message, server_id, created_at`

// QueueOutbox inserts a new outbox entry with 'queued' status.
func (db *DB) QueueOutbox(e *OutboxEntry) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_ref, temp_id, conversation_id, sender_id, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)`,
		e.ClientRef, e.TempID, e.ConversationID, e.SenderID, e.Content, now, now)
	return err
}

// ClaimOutbox moves up to limit queued entries to 'sending' and returns
// them oldest first. Each claim bumps the attempt counter.
func (db *DB) ClaimOutbox(limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT `+outboxColumns+` FROM outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	entries, err := scanOutbox(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	for i := range entries {
		if _, err := tx.Exec(`UPDATE outbox SET status = 'sending', attempts = attempts + 1, updated_at = ? WHERE id = ?`, now, entries[i].ID); err != nil {
			return nil, fmt.Errorf("claim %q: %w", entries[i].ClientRef, err)
		}
		entries[i].Status = OutboxSending
		entries[i].Attempts++
	}
	return entries, tx.Commit()
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message id.
func (db *DB) MarkOutboxSent(clientRef, serverID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_id = ?, error_message = '', updated_at = ? WHERE client_ref = ?`, serverID, now, clientRef)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientRef, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_ref = ?`, errMsg, now, clientRef)
	return err
}

// RequeueOutbox moves a failed entry back to 'queued'. Returns false when
// no failed entry with that ref exists.
func (db *DB) RequeueOutbox(clientRef string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE outbox SET status = 'queued', error_message = '', updated_at = ? WHERE client_ref = ? AND status = 'failed'`, now, clientRef)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteOutbox removes an entry regardless of status.
func (db *DB) DeleteOutbox(clientRef string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE client_ref = ?`, clientRef)
	return err
}

// ResetSendingOutbox re-queues entries left in 'sending' by a previous run.
func (db *DB) ResetSendingOutbox() (int64, error) {
	res, err := db.Exec(`UPDATE outbox SET status = 'queued', updated_at = ? WHERE status = 'sending'`, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetOutbox returns the entry for clientRef, or nil when there is none.
func (db *DB) GetOutbox(clientRef string) (*OutboxEntry, error) {
	rows, err := db.Query(`SELECT `+outboxColumns+` FROM outbox WHERE client_ref = ?`, clientRef)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	entries, err := scanOutbox(rows)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	return db.outboxByStatus(OutboxQueued, "")
}

// UndeliveredOutbox returns entries of a conversation that are not sent
// yet, in queue order. The inbox uses it to restore pending and failed
// entries when a conversation is reopened.
func (db *DB) UndeliveredOutbox(conversationID string) ([]OutboxEntry, error) {
	rows, err := db.Query(`SELECT `+outboxColumns+` FROM outbox
		WHERE conversation_id = ? AND status != 'sent'
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOutbox(rows)
}

func (db *DB) outboxByStatus(status, conversationID string) ([]OutboxEntry, error) {
	q := `SELECT ` + outboxColumns + ` FROM outbox WHERE status = ?`
	args := []any{status}
	if conversationID != "" {
		q += ` AND conversation_id = ?`
		args = append(args, conversationID)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOutbox(rows)
}

func scanOutbox(rows *sql.Rows) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientRef, &e.TempID, &e.ConversationID, &e.SenderID, &e.Content,
			&e.Status, &e.Attempts, &e.ErrorMessage, &e.ServerID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return entries, nil
}
