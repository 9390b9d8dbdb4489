package supabase

import (
	"context"
	"strings"
)

const userColumns = "id, username, full_name, college, branch, year, skills, interests"

// UserByUsername resolves an exact username. Returns ErrNotFound when no
// user has it.
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	var users []User
	_, err := c.rest(ctx).From("users").
		Select(userColumns, "", false).
		Eq("username", strings.TrimSpace(username)).
		Limit(1, "").
		ExecuteTo(&users)
	if err != nil {
		return nil, wrapError("lookup user", err)
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

// UserByID returns a user row by id.
func (c *Client) UserByID(ctx context.Context, id string) (*User, error) {
	var users []User
	_, err := c.rest(ctx).From("users").
		Select(userColumns, "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&users)
	if err != nil {
		return nil, wrapError("get user", err)
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

// SearchUsers returns up to limit users whose username contains q,
// case-insensitively.
func (c *Client) SearchUsers(ctx context.Context, q string, limit int) ([]User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	var users []User
	_, err := c.rest(ctx).From("users").
		Select("id, username", "", false).
		Ilike("username", "%"+q+"%").
		Limit(limit, "").
		ExecuteTo(&users)
	if err != nil {
		return nil, wrapError("search users", err)
	}
	return users, nil
}
