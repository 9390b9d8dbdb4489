package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/collatz-app/collatz/internal/session"
	"github.com/collatz-app/collatz/internal/status"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

// refreshLead is how long before expiry the access token is renewed.
const refreshLead = 2 * time.Minute

// Auth is the backend auth surface the connector drives.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*supabase.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*supabase.Session, error)
	Restore(s *supabase.Session)
	Session() *supabase.Session
	SignOut(ctx context.Context) error
	UserByID(ctx context.Context, id string) (*supabase.User, error)
}

// TokenSink receives the current access token.
type TokenSink interface {
	SetAccessToken(ctx context.Context, token string)
	Connected() bool
}

// Refresher reloads the conversation cache after login.
type Refresher interface {
	RefreshConversations(ctx context.Context, userID string) (int, error)
}

// Connector owns the auth session of a daemon. It restores stored
// credentials on start, keeps the access token fresh and walks the state
// machine through CONNECTING, SYNCING and READY.
type Connector struct {
	credsPath string
	auth      Auth
	tokens    TokenSink
	refresher Refresher
	machine   *status.Machine
	logger    *zap.Logger
	now       func() time.Time
	retry     []backoff.RetryOption

	mu     sync.Mutex // serializes session changes
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnector creates a connector persisting credentials at credsPath.
func NewConnector(credsPath string, auth Auth, tokens TokenSink, r Refresher, m *status.Machine, logger *zap.Logger) *Connector {
	return &Connector{
		credsPath: credsPath,
		auth:      auth,
		tokens:    tokens,
		refresher: r,
		machine:   m,
		logger:    logger.Named("connector"),
		now:       time.Now,
		retry: []backoff.RetryOption{
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxElapsedTime(5 * time.Minute),
		},
	}
}

// Start restores stored credentials in the background, then keeps the
// access token fresh until Stop.
func (c *Connector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.restore(ctx)
		c.refreshLoop(ctx)
	}()
}

// Stop ends the refresh loop.
func (c *Connector) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

func (c *Connector) restore(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds, err := session.LoadCredentials(c.credsPath)
	if err != nil {
		if !errors.Is(err, session.ErrNoCredentials) {
			c.logger.Warn("unreadable credentials", zap.Error(err))
		}
		c.logger.Info("no credentials found, auth required")
		_ = c.machine.Transition(status.AuthRequired)
		return
	}

	_ = c.machine.Transition(status.Connecting)
	sess := &supabase.Session{
		UserID:       creds.UserID,
		Email:        creds.Email,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
	}
	if creds.Expired(c.now()) {
		c.logger.Info("stored session expired, refreshing")
		sess, err = c.auth.Refresh(ctx, creds.RefreshToken)
		if err != nil {
			c.logger.Warn("session refresh failed", zap.Error(err))
			_ = c.machine.Transition(status.AuthRequired)
			return
		}
	} else {
		c.auth.Restore(sess)
	}
	c.establishedLocked(ctx, sess, creds.Username)
}

// Login signs in with email and password.
func (c *Connector) Login(ctx context.Context, email, password string) (*supabase.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Current() != status.AuthRequired {
		_ = c.machine.Transition(status.AuthRequired)
	}
	_ = c.machine.Transition(status.Connecting)

	sess, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		_ = c.machine.Transition(status.AuthRequired)
		return nil, err
	}
	c.establishedLocked(ctx, sess, "")
	return sess, nil
}

// Logout revokes the session and forgets stored credentials.
func (c *Connector) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.auth.SignOut(ctx); err != nil {
		c.logger.Warn("remote sign out failed", zap.Error(err))
	}
	c.tokens.SetAccessToken(ctx, "")
	_ = c.machine.Ensure(status.AuthRequired)
	if err := session.ClearCredentials(c.credsPath); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	c.logger.Info("logged out")
	return nil
}

// Session returns the current backend session, nil when logged out.
func (c *Connector) Session() *supabase.Session { return c.auth.Session() }

// RealtimeConnected reports whether the realtime socket is up.
func (c *Connector) RealtimeConnected() bool { return c.tokens.Connected() }

func (c *Connector) establishedLocked(ctx context.Context, sess *supabase.Session, username string) {
	c.tokens.SetAccessToken(ctx, sess.AccessToken)

	if username == "" {
		if u, err := c.auth.UserByID(ctx, sess.UserID); err == nil {
			username = u.Username
		}
	}
	c.persist(sess, username)

	_ = c.machine.Transition(status.Syncing)
	n, err := c.refresher.RefreshConversations(ctx, sess.UserID)
	if err != nil {
		c.logger.Warn("conversation refresh failed", zap.Error(err))
		_ = c.machine.Transition(status.Degraded)
		return
	}
	c.logger.Info("session ready", zap.String("user_id", sess.UserID), zap.Int("conversations", n))
	if c.tokens.Connected() {
		_ = c.machine.Transition(status.Ready)
	} else {
		_ = c.machine.Transition(status.Reconnecting)
	}
}

func (c *Connector) persist(sess *supabase.Session, username string) {
	err := session.SaveCredentials(c.credsPath, &session.Credentials{
		UserID:       sess.UserID,
		Email:        sess.Email,
		Username:     username,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	})
	if err != nil {
		c.logger.Error("save credentials failed", zap.Error(err))
	}
}

func (c *Connector) refreshLoop(ctx context.Context) {
	timer := time.NewTimer(time.Minute)
	defer timer.Stop()
	for {
		sess := c.auth.Session()
		wait := time.Minute
		if sess != nil {
			wait = max(sess.ExpiresAt.Sub(c.now())-refreshLead, 0)
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if sess != nil {
			c.renew(ctx, sess)
		}
	}
}

func (c *Connector) renew(ctx context.Context, old *supabase.Session) {
	next, err := backoff.Retry(ctx, func() (*supabase.Session, error) {
		return c.auth.Refresh(ctx, old.RefreshToken)
	}, c.retry...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if cur := c.auth.Session(); cur == nil || cur.RefreshToken != old.RefreshToken {
			// Logged out or logged in again while refreshing.
			return
		}
		c.logger.Warn("token refresh gave up", zap.Error(err))
		if err := c.auth.SignOut(ctx); err != nil {
			c.logger.Debug("sign out after failed refresh", zap.Error(err))
		}
		c.tokens.SetAccessToken(ctx, "")
		_ = c.machine.Ensure(status.AuthRequired)
		return
	}
	if cur := c.auth.Session(); cur == nil || cur.RefreshToken != next.RefreshToken {
		return
	}
	c.tokens.SetAccessToken(ctx, next.AccessToken)
	username := ""
	if creds, err := session.LoadCredentials(c.credsPath); err == nil {
		username = creds.Username
	}
	c.persist(next, username)
	c.logger.Debug("access token refreshed", zap.Time("expires_at", next.ExpiresAt))
}
