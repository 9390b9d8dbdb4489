// Package realtime is a client for the backend's Phoenix-protocol change
// feed. One websocket carries every channel; the client reconnects with
// exponential backoff and re-joins live channels.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned once the client or its connection is gone.
	ErrClosed = errors.New("realtime: closed")
	// ErrReplyTimeout is returned when the server does not answer in time.
	ErrReplyTimeout = errors.New("realtime: reply timeout")
	// ErrAlreadySubscribed is returned when a topic is joined twice.
	ErrAlreadySubscribed = errors.New("realtime: topic already subscribed")
)

// Config configures a Client.
type Config struct {
	URL          string // project URL (http, https, ws or wss)
	APIKey       string
	Heartbeat    time.Duration
	ReplyTimeout time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	OnConnect    func()
	OnDisconnect func(err error)
}

func (c *Config) withDefaults() {
	if c.Heartbeat <= 0 {
		c.Heartbeat = 25 * time.Second
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = 10 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 500 * time.Millisecond
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
}

// Client multiplexes channels over one websocket connection.
type Client struct {
	cfg    Config
	logger *zap.Logger
	ref    atomic.Uint64

	mu       sync.Mutex
	conn     *websocket.Conn
	token    string
	channels map[string]*Channel
	pending  map[string]chan reply
	closed   bool
	closing  chan struct{}
}

// New creates a client. Call Run to connect.
func New(cfg Config, logger *zap.Logger) *Client {
	cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		logger:   logger.Named("realtime"),
		channels: make(map[string]*Channel),
		pending:  make(map[string]chan reply),
		closing:  make(chan struct{}),
	}
}

// Endpoint returns the websocket URL for the configured project.
func (c *Client) Endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.URL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	u.Path += "/realtime/v1/websocket"
	q := u.Query()
	q.Set("apikey", c.cfg.APIKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SetAccessToken sets the token sent with joins and pushes it to joined
// channels on the live connection.
func (c *Client) SetAccessToken(ctx context.Context, token string) {
	c.mu.Lock()
	c.token = token
	conn := c.conn
	var joined []*Channel
	for _, ch := range c.channels {
		if ch.Joined() {
			joined = append(joined, ch)
		}
	}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	for _, ch := range joined {
		env, err := c.envelope(ch.topic, eventAccessToken, map[string]string{"access_token": token})
		if err != nil {
			continue
		}
		if err := wsjson.Write(ctx, conn, env); err != nil {
			c.logger.Warn("push access token failed", zap.String("topic", ch.topic), zap.Error(err))
		}
	}
}

// Connected reports whether a websocket is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run keeps a connection open until ctx is cancelled, reconnecting with
// exponential backoff. It returns ctx.Err() or ErrClosed.
//
// One backoff spans dial failures and dropped connections. It is reset only
// after a connection proved healthy (a heartbeat or join was acknowledged).
func (c *Client) Run(ctx context.Context) error {
	endpoint, err := c.Endpoint()
	if err != nil {
		return err
	}
	b := c.newBackOff()
	for {
		if c.isClosed() {
			return ErrClosed
		}
		conn, err := c.dial(ctx, endpoint)
		if err == nil {
			var healthy bool
			healthy, err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.isClosed() {
				return ErrClosed
			}
			if healthy {
				b.Reset()
			}
			c.logger.Warn("connection lost", zap.Error(err))
			if c.cfg.OnDisconnect != nil {
				c.cfg.OnDisconnect(err)
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		if err != nil {
			c.logger.Info("reconnecting", zap.Error(err), zap.Duration("in", wait))
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.closing:
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}
	}
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectMin
	b.MaxInterval = c.cfg.ReconnectMax
	return b
}

func (c *Client) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

// serve runs one connection until it drops. healthy reports whether the
// server acknowledged at least one join or heartbeat on it.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) (healthy bool, err error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.conn = conn
	rejoin := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		rejoin = append(rejoin, ch)
	}
	c.mu.Unlock()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(connCtx, conn) }()

	c.logger.Info("connected", zap.Int("channels", len(rejoin)))
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect()
	}
	for _, ch := range rejoin {
		if err := c.join(connCtx, conn, ch); err != nil {
			c.logger.Warn("rejoin failed", zap.String("topic", ch.topic), zap.Error(err))
			continue
		}
		healthy = true
	}

	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()

	for err == nil {
		select {
		case err = <-readErr:
			readErr = nil
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			err = ctx.Err()
		case <-ticker.C:
			if _, hbErr := c.request(connCtx, conn, heartbeatTopic, eventHeartbeat, struct{}{}); hbErr != nil {
				_ = conn.CloseNow()
				err = fmt.Errorf("heartbeat: %w", hbErr)
			} else {
				healthy = true
			}
		}
	}

	cancel()
	if readErr != nil {
		<-readErr
	}
	c.dropConn(conn)
	return healthy, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	defer c.failPending()
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Event {
	case eventReply:
		if env.Ref == nil {
			return
		}
		var r reply
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			c.logger.Warn("bad reply", zap.Error(err))
			return
		}
		c.mu.Lock()
		wait, ok := c.pending[*env.Ref]
		delete(c.pending, *env.Ref)
		c.mu.Unlock()
		if ok {
			wait <- r
		}

	case eventChanges:
		ch := c.channel(env.Topic)
		if ch == nil {
			return
		}
		var p changePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.logger.Warn("bad change payload", zap.String("topic", env.Topic), zap.Error(err))
			return
		}
		ch.deliver(Change{
			Topic:           env.Topic,
			Schema:          p.Data.Schema,
			Table:           p.Data.Table,
			Type:            p.Data.Type,
			CommitTimestamp: p.Data.CommitTimestamp,
			Record:          p.Data.Record,
			OldRecord:       p.Data.OldRecord,
		})

	case eventError, eventClose:
		if ch := c.channel(env.Topic); ch != nil {
			ch.joined.Store(false)
			c.logger.Warn("channel dropped by server", zap.String("topic", env.Topic), zap.String("event", env.Event))
		}
	}
}

func (c *Client) channel(topic string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[topic]
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	for _, ch := range c.channels {
		ch.joined.Store(false)
	}
	c.mu.Unlock()
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ref, wait := range c.pending {
		close(wait)
		delete(c.pending, ref)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) nextRef() string {
	return strconv.FormatUint(c.ref.Add(1), 10)
}

func (c *Client) envelope(topic, event string, payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Topic: topic, Event: event, Payload: raw, Ref: strPtr(c.nextRef())}, nil
}

// request sends a message and waits for its phx_reply. Joins carry their
// own ref as join_ref.
func (c *Client) request(ctx context.Context, conn *websocket.Conn, topic, event string, payload any) (reply, error) {
	env, err := c.envelope(topic, event, payload)
	if err != nil {
		return reply{}, err
	}
	ref := *env.Ref
	if event == eventJoin {
		env.JoinRef = env.Ref
	}

	wait := make(chan reply, 1)
	c.mu.Lock()
	c.pending[ref] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, ref)
		c.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, conn, env); err != nil {
		return reply{}, err
	}

	timer := time.NewTimer(c.cfg.ReplyTimeout)
	defer timer.Stop()
	select {
	case r, ok := <-wait:
		if !ok {
			return reply{}, ErrClosed
		}
		return r, nil
	case <-timer.C:
		return reply{}, ErrReplyTimeout
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (c *Client) join(ctx context.Context, conn *websocket.Conn, ch *Channel) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	p := joinPayload{AccessToken: token}
	p.Config.PostgresChanges = ch.filters

	r, err := c.request(ctx, conn, ch.topic, eventJoin, p)
	if err != nil {
		return err
	}
	if r.Status != "ok" {
		return fmt.Errorf("join %s: %s %s", ch.topic, r.Status, string(r.Response))
	}
	ch.joined.Store(true)
	c.logger.Debug("joined", zap.String("topic", ch.topic))
	return nil
}

// Subscribe registers a channel on topic ("realtime:" is prepended when
// missing). When connected it joins immediately and returns the join
// error; otherwise the channel is joined on the next connection.
func (c *Client) Subscribe(ctx context.Context, topic string, filters ...ChangeFilter) (*Channel, error) {
	if !strings.HasPrefix(topic, "realtime:") {
		topic = "realtime:" + topic
	}
	ch := newChannel(c, topic, filters)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if _, dup := c.channels[topic]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, topic)
	}
	c.channels[topic] = ch
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ch, nil
	}
	if err := c.join(ctx, conn, ch); err != nil {
		if errors.Is(err, ErrClosed) {
			// Connection dropped mid-join; Run re-joins after reconnecting.
			return ch, nil
		}
		c.forget(ch)
		ch.close()
		return nil, err
	}
	return ch, nil
}

func (c *Client) forget(ch *Channel) *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels[ch.topic] == ch {
		delete(c.channels, ch.topic)
	}
	return c.conn
}

func (c *Client) unsubscribe(ctx context.Context, ch *Channel) error {
	select {
	case <-ch.done:
		return nil
	default:
	}
	joined := ch.Joined()
	conn := c.forget(ch)
	ch.close()
	if conn == nil || !joined {
		return nil
	}
	_, err := c.request(ctx, conn, ch.topic, eventLeave, struct{}{})
	if err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("leave %s: %w", ch.topic, err)
	}
	return nil
}

// Close closes every channel and the connection. Run returns once its
// context is cancelled or the connection drops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closing)
	conn := c.conn
	chans := c.channels
	c.channels = make(map[string]*Channel)
	c.mu.Unlock()

	for _, ch := range chans {
		ch.close()
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closed")
	}
	return nil
}
