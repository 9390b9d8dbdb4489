package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/collatz-app/collatz/internal/session"
	"github.com/collatz-app/collatz/internal/status"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

type fakeAuth struct {
	mu         sync.Mutex
	session    *supabase.Session
	restored   *supabase.Session
	refreshErr error
	signInErr  error
	refreshes  int
	signOuts   int
}

func (a *fakeAuth) SignIn(_ context.Context, email, _ string) (*supabase.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signInErr != nil {
		return nil, a.signInErr
	}
	a.session = &supabase.Session{UserID: "u1", Email: email, AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(time.Hour)}
	s := *a.session
	return &s, nil
}

func (a *fakeAuth) Refresh(_ context.Context, token string) (*supabase.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	a.session = &supabase.Session{UserID: "u1", AccessToken: "at-fresh", RefreshToken: token + "+", ExpiresAt: time.Now().Add(time.Hour)}
	s := *a.session
	return &s, nil
}

func (a *fakeAuth) Restore(s *supabase.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
	a.restored = s
}

func (a *fakeAuth) Session() *supabase.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
	a.signOuts++
	return nil
}

func (a *fakeAuth) UserByID(_ context.Context, id string) (*supabase.User, error) {
	return &supabase.User{ID: id, Username: "ada"}, nil
}

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	connected bool
}

func (f *fakeTokens) SetAccessToken(_ context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeTokens) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTokens) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type fakeRefresher struct {
	err   error
	users []string
}

func (r *fakeRefresher) RefreshConversations(_ context.Context, userID string) (int, error) {
	r.users = append(r.users, userID)
	return 2, r.err
}

type connectorEnv struct {
	c       *Connector
	auth    *fakeAuth
	tokens  *fakeTokens
	refresh *fakeRefresher
	machine *status.Machine
	path    string
}

func newConnectorEnv(t *testing.T) *connectorEnv {
	t.Helper()
	env := &connectorEnv{
		auth:    &fakeAuth{},
		tokens:  &fakeTokens{connected: true},
		refresh: &fakeRefresher{},
		machine: status.NewMachine(nil),
		path:    filepath.Join(t.TempDir(), "credentials.toml"),
	}
	env.c = NewConnector(env.path, env.auth, env.tokens, env.refresh, env.machine, zap.NewNop())
	env.c.retry = []backoff.RetryOption{backoff.WithMaxTries(1)}
	return env
}

func (e *connectorEnv) store(t *testing.T, expires time.Time) {
	t.Helper()
	err := session.SaveCredentials(e.path, &session.Credentials{
		UserID:       "u1",
		Email:        "ada@uni.edu",
		Username:     "ada",
		AccessToken:  "at-stored",
		RefreshToken: "rt-stored",
		ExpiresAt:    expires,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRestoreWithoutCredentials(t *testing.T) {
	env := newConnectorEnv(t)
	env.c.restore(context.Background())

	if got := env.machine.Current(); got != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", got)
	}
	if len(env.refresh.users) != 0 {
		t.Error("refresh must not run without a session")
	}
}

func TestRestoreValidCredentials(t *testing.T) {
	env := newConnectorEnv(t)
	env.store(t, time.Now().Add(time.Hour))

	env.c.restore(context.Background())

	if env.auth.restored == nil || env.auth.restored.AccessToken != "at-stored" {
		t.Fatalf("restored = %+v", env.auth.restored)
	}
	if env.auth.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0 for an unexpired token", env.auth.refreshes)
	}
	if env.tokens.current() != "at-stored" {
		t.Errorf("realtime token = %q", env.tokens.current())
	}
	if got := env.machine.Current(); got != status.Ready {
		t.Errorf("state = %s, want READY", got)
	}
	if len(env.refresh.users) != 1 || env.refresh.users[0] != "u1" {
		t.Errorf("refreshed for %v", env.refresh.users)
	}
}

func TestRestoreExpiredCredentialsRefreshes(t *testing.T) {
	env := newConnectorEnv(t)
	env.store(t, time.Now().Add(-time.Minute))

	env.c.restore(context.Background())

	if env.auth.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", env.auth.refreshes)
	}
	if env.tokens.current() != "at-fresh" {
		t.Errorf("realtime token = %q, want the refreshed one", env.tokens.current())
	}
	creds, err := session.LoadCredentials(env.path)
	if err != nil {
		t.Fatal(err)
	}
	if creds.RefreshToken != "rt-stored+" || creds.Username != "ada" {
		t.Errorf("saved credentials = %+v", creds)
	}
}

func TestRestoreRefreshFailureRequiresAuth(t *testing.T) {
	env := newConnectorEnv(t)
	env.store(t, time.Now().Add(-time.Minute))
	env.auth.refreshErr = errors.New("invalid refresh token")

	env.c.restore(context.Background())

	if got := env.machine.Current(); got != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", got)
	}
}

func TestRestoreWithoutRealtimeWaitsForReconnect(t *testing.T) {
	env := newConnectorEnv(t)
	env.tokens.connected = false
	env.store(t, time.Now().Add(time.Hour))

	env.c.restore(context.Background())

	if got := env.machine.Current(); got != status.Reconnecting {
		t.Errorf("state = %s, want RECONNECTING", got)
	}
}

func TestRestoreConversationFailureDegrades(t *testing.T) {
	env := newConnectorEnv(t)
	env.refresh.err = errors.New("backend down")
	env.store(t, time.Now().Add(time.Hour))

	env.c.restore(context.Background())

	if got := env.machine.Current(); got != status.Degraded {
		t.Errorf("state = %s, want DEGRADED", got)
	}
}

func TestLoginPersistsCredentials(t *testing.T) {
	env := newConnectorEnv(t)
	env.c.restore(context.Background())

	sess, err := env.c.Login(context.Background(), "ada@uni.edu", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UserID != "u1" {
		t.Errorf("UserID = %q", sess.UserID)
	}
	if got := env.machine.Current(); got != status.Ready {
		t.Errorf("state = %s, want READY", got)
	}
	creds, err := session.LoadCredentials(env.path)
	if err != nil {
		t.Fatal(err)
	}
	if creds.Email != "ada@uni.edu" || creds.Username != "ada" || creds.RefreshToken != "rt-1" {
		t.Errorf("credentials = %+v", creds)
	}

	// Logging in again from READY is allowed.
	if _, err := env.c.Login(context.Background(), "ada@uni.edu", "pw"); err != nil {
		t.Fatalf("second login: %v", err)
	}
}

func TestLoginFailure(t *testing.T) {
	env := newConnectorEnv(t)
	env.auth.signInErr = errors.New("invalid login credentials")
	env.c.restore(context.Background())

	if _, err := env.c.Login(context.Background(), "ada@uni.edu", "bad"); err == nil {
		t.Fatal("expected error")
	}
	if got := env.machine.Current(); got != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", got)
	}
	if _, err := session.LoadCredentials(env.path); !errors.Is(err, session.ErrNoCredentials) {
		t.Errorf("credentials stored after failed login: %v", err)
	}
}

func TestLogoutClearsCredentials(t *testing.T) {
	env := newConnectorEnv(t)
	env.store(t, time.Now().Add(time.Hour))
	env.c.restore(context.Background())

	if err := env.c.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if env.auth.signOuts != 1 {
		t.Errorf("signOuts = %d", env.auth.signOuts)
	}
	if env.tokens.current() != "" {
		t.Errorf("realtime token = %q, want empty", env.tokens.current())
	}
	if got := env.machine.Current(); got != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", got)
	}
	if _, err := session.LoadCredentials(env.path); !errors.Is(err, session.ErrNoCredentials) {
		t.Errorf("credentials still present: %v", err)
	}
}

func TestRenew(t *testing.T) {
	env := newConnectorEnv(t)
	env.store(t, time.Now().Add(time.Hour))
	env.c.restore(context.Background())

	env.c.renew(context.Background(), env.auth.Session())

	if env.tokens.current() != "at-fresh" {
		t.Errorf("realtime token = %q, want at-fresh", env.tokens.current())
	}
	creds, err := session.LoadCredentials(env.path)
	if err != nil {
		t.Fatal(err)
	}
	if creds.RefreshToken != "rt-stored+" || creds.Username != "ada" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestRenewGivesUp(t *testing.T) {
	env := newConnectorEnv(t)
	env.store(t, time.Now().Add(time.Hour))
	env.c.restore(context.Background())
	env.auth.refreshErr = errors.New("refresh token revoked")

	env.c.renew(context.Background(), env.auth.Session())

	if env.auth.Session() != nil {
		t.Error("session should be dropped after refresh gives up")
	}
	if got := env.machine.Current(); got != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", got)
	}
}

func TestStartStop(t *testing.T) {
	env := newConnectorEnv(t)
	env.c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for env.machine.Current() != status.AuthRequired {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want AUTH_REQUIRED", env.machine.Current())
		}
		time.Sleep(5 * time.Millisecond)
	}
	env.c.Stop()
}
