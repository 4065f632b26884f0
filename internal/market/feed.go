package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abhisek/investory/internal/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024

	// StreamPath is the websocket endpoint relative to the API base URL.
	StreamPath = "/market/stream"
)

// Message is the envelope of every frame on the quotes channel.
type Message struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Symbols []string        `json:"symbols,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SubscribeMessage is sent once after each connect.
func SubscribeMessage(symbols []string) Message {
	return Message{Type: "subscribe", Channel: "quotes", Symbols: symbols}
}

// StreamURL converts an http(s) API base URL into the websocket stream URL.
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + StreamPath
	return u.String(), nil
}

// Feed subscribes to the quotes channel and applies every message to a
// Board. It reconnects until its context ends.
type Feed struct {
	url     string
	board   *Board
	tokens  api.TokenSource
	symbols []string
	dialer  *websocket.Dialer
	minWait time.Duration
	maxWait time.Duration
	warn    io.Writer

	mu        sync.Mutex
	listeners map[int]func(Entry)
	nextID    int
	connected bool
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithTokenSource sends a bearer token on connect.
func WithTokenSource(ts api.TokenSource) FeedOption {
	return func(f *Feed) { f.tokens = ts }
}

// WithSymbols limits the subscription to the given symbols.
func WithSymbols(symbols []string) FeedOption {
	return func(f *Feed) { f.symbols = symbols }
}

// WithReconnectWait sets the reconnect backoff bounds.
func WithReconnectWait(minWait, maxWait time.Duration) FeedOption {
	return func(f *Feed) {
		f.minWait = minWait
		f.maxWait = maxWait
	}
}

// WithFeedWarnings redirects connection warnings. Nil silences them.
func WithFeedWarnings(w io.Writer) FeedOption {
	return func(f *Feed) { f.warn = w }
}

// NewFeed creates a feed for the websocket URL wsURL.
func NewFeed(wsURL string, board *Board, opts ...FeedOption) *Feed {
	f := &Feed{
		url:       wsURL,
		board:     board,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		minWait:   500 * time.Millisecond,
		maxWait:   30 * time.Second,
		warn:      os.Stderr,
		listeners: make(map[int]func(Entry)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Board returns the board the feed writes to.
func (f *Feed) Board() *Board {
	return f.board
}

// Connected reports whether a session is currently open.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// OnUpdate registers fn for every applied entry. The returned function
// removes it. fn runs on the feed goroutine and must not block.
func (f *Feed) OnUpdate(fn func(Entry)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Run connects and consumes messages until ctx is done, reconnecting with
// exponential backoff. It returns ctx's error.
func (f *Feed) Run(ctx context.Context) error {
	wait := f.minWait
	for {
		received, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			wait = f.minWait
		}
		if err != nil && f.warn != nil {
			fmt.Fprintf(f.warn, "warning: market feed: %v (reconnecting in %s)\n", err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait *= 2
		if wait > f.maxWait {
			wait = f.maxWait
		}
	}
}

// session runs one connection. received reports whether at least one
// message was applied.
func (f *Feed) session(ctx context.Context) (received bool, err error) {
	header := http.Header{}
	if f.tokens != nil {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			return false, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(SubscribeMessage(f.symbols)); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	f.setConnected(true)
	defer f.setConnected(false)

	for {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return received, errors.New("server closed the stream")
			}
			return received, fmt.Errorf("read: %w", err)
		}
		if f.handle(data) {
			received = true
		}
	}
}

// handle applies one frame. It reports whether the board changed.
func (f *Feed) handle(data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		f.warnf("warning: market feed: bad message: %v\n", err)
		return false
	}

	var kind Kind
	switch msg.Type {
	case string(KindQuote):
		kind = KindQuote
	case string(KindIndex):
		kind = KindIndex
	case "error":
		f.warnf("warning: market feed: server error: %s\n", string(msg.Data))
		return false
	default:
		return false
	}

	var q api.Quote
	if err := json.Unmarshal(msg.Data, &q); err != nil || q.Symbol == "" {
		f.warnf("warning: market feed: bad %s payload\n", msg.Type)
		return false
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = time.Now()
	}

	entry := Entry{Kind: kind, Quote: q}
	f.board.Apply(kind, q)

	f.mu.Lock()
	listeners := make([]func(Entry), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(entry)
	}
	return true
}

func (f *Feed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *Feed) warnf(format string, args ...any) {
	if f.warn != nil {
		fmt.Fprintf(f.warn, format, args...)
	}
}
