// Package api is the HTTP client for the Investory backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/investory/internal/store"
)

// IdempotencyHeader carries the key that makes completion retries safe.
const IdempotencyHeader = "Idempotency-Key"

// TokenSource supplies the bearer token for each request. It returns
// ErrUnauthenticated when no valid token is available.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrUnauthenticated
	}
	return string(t), nil
}

// EventRecorder receives one event per backend call.
type EventRecorder interface {
	AppendAPICall(ctx context.Context, data store.APICallEventData) error
}

// Client talks to the backend over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	events  EventRecorder
	retry   RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithEventRecorder records every call in the event log.
func WithEventRecorder(r EventRecorder) Option {
	return func(c *Client) { c.events = r }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		retry:   DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetProgress fetches the learner's authoritative progress.
func (c *Client) GetProgress(ctx context.Context) (*Progress, error) {
	var out Progress
	if err := c.do(ctx, call{method: http.MethodGet, path: "/progress", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLevel sends a partial update of one level.
func (c *Client) UpdateLevel(ctx context.Context, levelID int, u LevelUpdate) error {
	var out successResponse
	path := fmt.Sprintf("/progress/level/%d", levelID)
	if err := c.do(ctx, call{method: http.MethodPut, path: path, body: u, out: &out}); err != nil {
		return err
	}
	return checkSuccess(http.MethodPut, path, out)
}

// ResetLevel clears the quiz state of a level on the backend.
func (c *Client) ResetLevel(ctx context.Context, levelID int) error {
	var out successResponse
	path := fmt.Sprintf("/progress/level/%d/reset", levelID)
	if err := c.do(ctx, call{method: http.MethodPut, path: path, out: &out}); err != nil {
		return err
	}
	return checkSuccess(http.MethodPut, path, out)
}

// CompleteLevel asks the backend to settle the level's reward. Calls with
// the same idempotency key are awarded at most once.
func (c *Client) CompleteLevel(ctx context.Context, levelID int, req CompleteRequest, idempotencyKey string) (*CompleteResponse, error) {
	var out CompleteResponse
	h := http.Header{}
	if idempotencyKey != "" {
		h.Set(IdempotencyHeader, idempotencyKey)
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/progress/level/%d/complete", levelID),
		body:   req,
		out:    &out,
		header: h,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Quotes returns the latest quotes for symbols (all tracked symbols if empty).
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	q := url.Values{}
	if len(symbols) > 0 {
		q.Set("symbols", strings.Join(symbols, ","))
	}
	var out []Quote
	if err := c.do(ctx, call{method: http.MethodGet, path: "/market/quotes", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Watchlist returns the learner's watchlist.
func (c *Client) Watchlist(ctx context.Context) ([]string, error) {
	var out Watchlist
	if err := c.do(ctx, call{method: http.MethodGet, path: "/watchlist", out: &out}); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// AddToWatchlist adds a symbol and returns the updated list.
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) ([]string, error) {
	var out Watchlist
	body := map[string]string{"symbol": symbol}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/watchlist", body: body, out: &out}); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// RemoveFromWatchlist removes a symbol and returns the updated list.
func (c *Client) RemoveFromWatchlist(ctx context.Context, symbol string) ([]string, error) {
	var out Watchlist
	path := "/watchlist/" + url.PathEscape(symbol)
	if err := c.do(ctx, call{method: http.MethodDelete, path: path, out: &out}); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// Chat sends a message to the backend tutor.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/chat", body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports backend status. It does not require a token.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, call{method: http.MethodGet, path: "/health", out: &out, public: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	header http.Header
	public bool
}

// do runs one logical call, retrying transient failures, and records it.
func (c *Client) do(ctx context.Context, cl call) error {
	var token string
	if !cl.public {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
		}
		token = t
	}

	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", cl.method, cl.path, err)
		}
		payload = b
	}

	start := time.Now()
	status, attempts, err := c.attempt(ctx, cl, token, payload)
	c.record(ctx, cl, status, attempts, time.Since(start), err)
	return err
}

func (c *Client) attempt(ctx context.Context, cl call, token string, payload []byte) (status, attempts int, err error) {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	for attempts < c.retry.MaxAttempts {
		attempts++
		last := attempts == c.retry.MaxAttempts

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
		if err != nil {
			return 0, attempts, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for k, vs := range cl.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil || last {
				return 0, attempts, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
			}
			if err := sleepCtx(ctx, c.retry.backoff(attempts-1)); err != nil {
				return 0, attempts, err
			}
			continue
		}

		status = resp.StatusCode
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if status >= 200 && status < 300 {
			if readErr != nil {
				return status, attempts, fmt.Errorf("%s %s: read body: %w", cl.method, cl.path, readErr)
			}
			if cl.out != nil && len(bytes.TrimSpace(respBody)) > 0 {
				if err := json.Unmarshal(respBody, cl.out); err != nil {
					return status, attempts, fmt.Errorf("%s %s: decode response: %w", cl.method, cl.path, err)
				}
			}
			return status, attempts, nil
		}

		apiErr := formatAPIError(cl.method, cl.path, status, respBody)
		if !isRetryableStatus(status) || last {
			return status, attempts, apiErr
		}
		wait := c.retry.backoff(attempts - 1)
		if ra := retryAfter(resp.Header.Get("Retry-After")); ra > 0 && ra < c.retry.MaxWait {
			wait = ra
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return status, attempts, err
		}
	}
	return status, attempts, errors.New("request failed")
}

func (c *Client) record(ctx context.Context, cl call, status, attempts int, latency time.Duration, err error) {
	if c.events == nil {
		return
	}
	data := store.APICallEventData{
		Method:    cl.method,
		Path:      cl.path,
		Status:    status,
		Attempts:  attempts,
		LatencyMs: latency.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	// Log the event but don't fail the request if logging fails.
	if logErr := c.events.AppendAPICall(context.WithoutCancel(ctx), data); logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to log API call event: %v\n", logErr)
	}
}

func checkSuccess(method, path string, r successResponse) error {
	if r.Success {
		return nil
	}
	return &APIError{Method: method, Path: path, Status: http.StatusOK, Message: firstNonEmpty(r.Message, "backend reported failure")}
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
