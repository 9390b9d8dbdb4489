package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap"
)

// Session is an authenticated backend session.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func fromGoTrue(s types.Session) *Session {
	exp := time.Unix(s.ExpiresAt, 0)
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		exp = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &Session{
		UserID:       s.User.ID.String(),
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    exp,
	}
}

// SignIn authenticates with email and password and makes the resulting
// session current. The gotrue client takes no context, so ctx is only
// checked before the call is issued.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sb.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	c.session = fromGoTrue(s)
	c.logger.Info("signed in", zap.String("user_id", c.session.UserID))
	return c.session, nil
}

// Refresh exchanges a refresh token for a new session and makes it current.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, ErrNotAuthenticated
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sb.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	c.session = fromGoTrue(s)
	return c.session, nil
}

// Restore makes a stored session current without a network round trip.
func (c *Client) Restore(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.sb.UpdateAuthSession(types.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    s.ExpiresAt.Unix(),
	})
}

// Session returns a copy of the current session, nil when logged out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// CurrentUserID returns the logged-in user's id.
func (c *Client) CurrentUserID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.UserID == "" {
		return "", ErrNotAuthenticated
	}
	return c.session.UserID, nil
}

// VerifyUser asks the auth service who the current token belongs to.
func (c *Client) VerifyUser(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token := c.AccessToken()
	if token == "" {
		return "", ErrNotAuthenticated
	}
	resp, err := c.sb.Auth.WithToken(token).GetUser()
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	return resp.ID.String(), nil
}

// SignOut revokes the session remotely (best effort) and forgets it.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.sb.Auth.WithToken(s.AccessToken).Logout(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
