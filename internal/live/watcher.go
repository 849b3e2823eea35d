// Package live follows node presence changes pushed by the panel over its
// /system-info websocket.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/missuo/flux-panel/internal/lifecycle"
)

const (
	statusPath = "/system-info"

	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 512 * 1024

	defaultMinBackoff = time.Second
	defaultMaxBackoff = time.Minute
)

// ErrUnauthorized is returned by Run when the panel rejects the token.
// Reconnecting cannot fix it.
var ErrUnauthorized = errors.New("live: unauthorized")

// NodeStatus is one presence change.
type NodeStatus struct {
	NodeID   int64
	Presence lifecycle.Presence
}

type frame struct {
	Type string          `json:"type"`
	ID   json.Number     `json:"id"`
	Data json.RawMessage `json:"data"`
}

// ParseFrame decodes a pushed message. ok is false for frames other than
// status changes, such as the periodic system info reports.
func ParseFrame(data []byte) (st NodeStatus, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return NodeStatus{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type != "status" {
		return NodeStatus{}, false, nil
	}
	id, err := f.ID.Int64()
	if err != nil || id <= 0 {
		return NodeStatus{}, false, fmt.Errorf("decode status frame: bad node id %q", f.ID.String())
	}
	var code int
	if err := json.Unmarshal(f.Data, &code); err != nil {
		return NodeStatus{}, false, fmt.Errorf("decode status frame: %w", err)
	}
	return NodeStatus{NodeID: id, Presence: lifecycle.OnlineStatus(code == 1)}, true, nil
}

// StatusURL builds the websocket URL for serverURL, authenticated with token.
func StatusURL(serverURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("server url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + statusPath
	u.RawQuery = url.Values{"secret": {token}}.Encode()
	return u.String(), nil
}

type Option func(*Watcher)

func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithBackoff bounds the delay between reconnect attempts.
func WithBackoff(lo, hi time.Duration) Option {
	return func(w *Watcher) {
		if lo > 0 {
			w.minBackoff = lo
		}
		if hi >= w.minBackoff {
			w.maxBackoff = hi
		}
	}
}

// Watcher keeps a websocket open to the panel and publishes node presence
// changes on Events.
type Watcher struct {
	url        string
	dialer     *websocket.Dialer
	logger     *log.Logger
	events     chan NodeStatus
	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	sessions int
}

func NewWatcher(serverURL, token string, opts ...Option) (*Watcher, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}
	wsURL, err := StatusURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		url:        wsURL,
		dialer:     &websocket.Dialer{HandshakeTimeout: writeTimeout, Proxy: http.ProxyFromEnvironment},
		logger:     log.Default(),
		events:     make(chan NodeStatus, 16),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Events delivers presence changes. It is closed when Run returns.
func (w *Watcher) Events() <-chan NodeStatus { return w.events }

// Sessions returns how many connections have been established so far.
func (w *Watcher) Sessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions
}

// Run connects and reconnects with exponential backoff until ctx is done or
// the token is rejected.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	backoff := w.minBackoff
	for {
		connected, err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if connected {
			backoff = w.minBackoff
		}
		w.logger.Printf("live: connection lost: %v; retrying in %s", err, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > w.maxBackoff {
			backoff = w.maxBackoff
		}
	}
}

// session runs one connection until it fails. connected reports whether
// the handshake succeeded.
func (w *Watcher) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrUnauthorized
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	w.mu.Lock()
	w.sessions++
	w.mu.Unlock()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go w.keepalive(ctx, conn, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		// Any traffic proves the server is alive.
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		st, ok, err := ParseFrame(msg)
		if err != nil {
			w.logger.Printf("live: %v", err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case w.events <- st:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// keepalive pings the server and closes the connection when ctx ends, which
// unblocks the read loop.
func (w *Watcher) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
