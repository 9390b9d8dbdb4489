// Package supabase adapts the hosted backend (auth, PostgREST tables and
// RPCs, object storage) to the calls the daemon needs. Every data call takes
// a context; the session token is attached per request.
package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// Config points the adapter at a project.
type Config struct {
	URL     string
	AnonKey string
	// Transport overrides the HTTP transport for REST calls (tests).
	Transport http.RoundTripper
}

// Client is the remote backend adapter. Safe for concurrent use.
type Client struct {
	baseURL   string
	anonKey   string
	transport http.RoundTripper
	logger    *zap.Logger

	mu      sync.RWMutex
	sb      *supa.Client
	session *Session
}

// New creates an adapter. It does no network I/O.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}
	base := strings.TrimRight(cfg.URL, "/")
	sb, err := supa.NewClient(base, cfg.AnonKey, nil)
	if err != nil {
		return nil, err
	}
	t := cfg.Transport
	if t == nil {
		t = http.DefaultTransport
	}
	return &Client{
		baseURL:   base,
		anonKey:   cfg.AnonKey,
		transport: t,
		logger:    logger.Named("supabase"),
		sb:        sb,
	}, nil
}

// URL returns the project base URL.
func (c *Client) URL() string { return c.baseURL }

// AnonKey returns the public api key.
func (c *Client) AnonKey() string { return c.anonKey }

// AccessToken returns the bearer token of the current session, "" when
// logged out.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) bearer() string {
	if t := c.AccessToken(); t != "" {
		return t
	}
	return c.anonKey
}

// rest returns a PostgREST client bound to ctx. A fresh client per call
// keeps postgrest-go's sticky ClientError from leaking across requests.
func (c *Client) rest(ctx context.Context) *postgrest.Client {
	pc := postgrest.NewClient(c.baseURL+"/rest/v1", "public", map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + c.bearer(),
	})
	pc.Transport.Parent = ctxTransport{ctx: ctx, next: c.transport}
	return pc
}

type ctxTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}
