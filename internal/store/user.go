package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertUserSQL = `
	INSERT INTO users (id, username, full_name, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		username = CASE WHEN excluded.username != '' THEN excluded.username ELSE users.username END,
		full_name = CASE WHEN excluded.full_name != '' THEN excluded.full_name ELSE users.full_name END,
		updated_at = excluded.updated_at`

// UpsertUsers caches directory entries in a single transaction.
func (db *DB) UpsertUsers(users []User) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, u := range users {
		if _, err := tx.Exec(upsertUserSQL, u.ID, u.Username, u.FullName, now); err != nil {
			return fmt.Errorf("upsert user %q: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// GetUser returns a cached user by id, or nil when unknown.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`SELECT id, username, full_name FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
