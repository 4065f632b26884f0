package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/market"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Config{Secret: testSecret, Seed: 42, Log: io.Discard})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func token(t *testing.T, s *Server, user string) string {
	t.Helper()
	tok, err := s.IssueToken(user, user+"@example.com", time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, ts *httptest.Server, tok, method, path string, body any, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func correctAnswers(levelID int) map[int]int {
	out := map[int]int{}
	for _, q := range levels.MustGet(levelID).Questions {
		out[q.ID] = q.CorrectOption
	}
	return out
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealthIsPublic(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, ts, "", http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h api.Health
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "ok", h.Status)
	assert.NoError(t, api.Compatible(h.APIVersion))
}

func TestAuth(t *testing.T) {
	s, ts := newTestServer(t)

	resp, _ := doJSON(t, ts, "", http.MethodGet, "/progress", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, "not-a-jwt", http.MethodGet, "/progress", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := New(Config{Secret: "other", Log: io.Discard})
	require.NoError(t, err)
	resp, _ = doJSON(t, ts, token(t, other, "mallory"), http.MethodGet, "/progress", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := s.IssueToken("u1", "", -time.Minute)
	require.NoError(t, err)
	resp, _ = doJSON(t, ts, expired, http.MethodGet, "/progress", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, token(t, s, "u1"), http.MethodGet, "/progress", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/progress", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestLockedLevelRejected(t *testing.T) {
	s, ts := newTestServer(t)
	resp, _ := doJSON(t, ts, token(t, s, "u1"), http.MethodPut, "/progress/level/2", api.TasksUpdate([]int{1}), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, token(t, s, "u1"), http.MethodPut, "/progress/level/99", api.TasksUpdate([]int{1}), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateLevelPartial(t *testing.T) {
	s, ts := newTestServer(t)
	tok := token(t, s, "u1")

	resp, _ := doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.TasksUpdate([]int{3, 1, 3}), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.QuizUpdate(map[int]int{1: 1}, 1, 7), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := doJSON(t, ts, tok, http.MethodGet, "/progress", nil, nil)
	var p api.Progress
	require.NoError(t, json.Unmarshal(body, &p))
	lp := p.Progress[1]
	assert.Equal(t, []int{1, 3}, lp.TasksCompleted)
	assert.Equal(t, 1, lp.QuizScore)
	assert.Equal(t, 7, lp.TotalQuestions)

	resp, _ = doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.TasksUpdate([]int{9}), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompleteVerifiesQuizServerSide(t *testing.T) {
	s, ts := newTestServer(t)
	tok := token(t, s, "u1")
	lvl := levels.MustGet(1)
	req := api.CompleteRequest{RewardMoney: lvl.RewardMoney, BadgeName: lvl.BadgeName}

	// A claimed perfect score with wrong answers does not pass.
	wrong := map[int]int{}
	for _, q := range lvl.Questions {
		wrong[q.ID] = (q.CorrectOption + 1) % len(q.Options)
	}
	doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.QuizUpdate(wrong, 7, 7), nil)
	resp, _ := doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", req, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Tampered reward.
	doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.QuizUpdate(correctAnswers(1), 7, 7), nil)
	resp, _ = doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", api.CompleteRequest{RewardMoney: 1_000_000, BadgeName: lvl.BadgeName}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", req, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.CompleteResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.NewLevel)
	assert.Equal(t, 10000, out.NewBalance)
	assert.Equal(t, 10000, out.MoneyAwarded)
	assert.Equal(t, "Market Rookie", out.BadgeEarned.BadgeName)

	_, body = doJSON(t, ts, tok, http.MethodGet, "/progress", nil, nil)
	var p api.Progress
	require.NoError(t, json.Unmarshal(body, &p))
	assert.True(t, p.Progress[1].IsCompleted)
	assert.Equal(t, []int{1, 2, 3}, p.Progress[1].TasksCompleted)
}

func TestCompleteIsIdempotent(t *testing.T) {
	s, ts := newTestServer(t)
	tok := token(t, s, "u1")
	lvl := levels.MustGet(1)
	req := api.CompleteRequest{RewardMoney: lvl.RewardMoney, BadgeName: lvl.BadgeName}
	doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.QuizUpdate(correctAnswers(1), 7, 7), nil)

	key := map[string]string{api.IdempotencyHeader: "key-1"}
	_, first := doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", req, key)
	_, replay := doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", req, key)
	assert.JSONEq(t, string(first), string(replay))

	// A new key on a completed level awards nothing.
	_, body := doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", req, map[string]string{api.IdempotencyHeader: "key-2"})
	var again api.CompleteResponse
	require.NoError(t, json.Unmarshal(body, &again))
	assert.Zero(t, again.MoneyAwarded)
	assert.Equal(t, 10000, again.NewBalance)

	_, body = doJSON(t, ts, tok, http.MethodGet, "/progress", nil, nil)
	var p api.Progress
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, 10000, p.TotalBalance)
	assert.Len(t, p.Badges, 1)
}

func TestResetCompletedLevelConflicts(t *testing.T) {
	s, ts := newTestServer(t)
	tok := token(t, s, "u1")
	lvl := levels.MustGet(1)
	doJSON(t, ts, tok, http.MethodPut, "/progress/level/1", api.QuizUpdate(correctAnswers(1), 7, 7), nil)
	doJSON(t, ts, tok, http.MethodPost, "/progress/level/1/complete", api.CompleteRequest{RewardMoney: lvl.RewardMoney, BadgeName: lvl.BadgeName}, nil)

	resp, _ := doJSON(t, ts, tok, http.MethodPut, "/progress/level/1/reset", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAccountsAreIsolated(t *testing.T) {
	s, ts := newTestServer(t)
	doJSON(t, ts, token(t, s, "alice"), http.MethodPost, "/watchlist", map[string]string{"symbol": "tcs"}, nil)

	_, body := doJSON(t, ts, token(t, s, "bob"), http.MethodGet, "/watchlist", nil, nil)
	var w api.Watchlist
	require.NoError(t, json.Unmarshal(body, &w))
	assert.Empty(t, w.Symbols)
}

func TestWatchlist(t *testing.T) {
	s, ts := newTestServer(t)
	tok := token(t, s, "u1")

	doJSON(t, ts, tok, http.MethodPost, "/watchlist", map[string]string{"symbol": "tcs"}, nil)
	doJSON(t, ts, tok, http.MethodPost, "/watchlist", map[string]string{"symbol": "TCS"}, nil)
	_, body := doJSON(t, ts, tok, http.MethodPost, "/watchlist", map[string]string{"symbol": "infy"}, nil)
	var w api.Watchlist
	require.NoError(t, json.Unmarshal(body, &w))
	assert.Equal(t, []string{"TCS", "INFY"}, w.Symbols)

	resp, _ := doJSON(t, ts, tok, http.MethodPost, "/watchlist", map[string]string{"symbol": "bad symbol!"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = doJSON(t, ts, tok, http.MethodDelete, "/watchlist/TCS", nil, nil)
	require.NoError(t, json.Unmarshal(body, &w))
	assert.Equal(t, []string{"INFY"}, w.Symbols)
}

func TestQuotes(t *testing.T) {
	s, ts := newTestServer(t)
	_, body := doJSON(t, ts, token(t, s, "u1"), http.MethodGet, "/market/quotes?symbols=tcs,NEWCO", nil, nil)
	var qs []api.Quote
	require.NoError(t, json.Unmarshal(body, &qs))
	require.Len(t, qs, 2)
	assert.Equal(t, "TCS", qs[0].Symbol)
	assert.Equal(t, "NEWCO", qs[1].Symbol)
	assert.Positive(t, qs[1].Price)
}

func TestQuoteBookStepStaysBounded(t *testing.T) {
	b := newQuoteBook(7)
	before := b.get([]string{"TCS"}, time.Now())[0].Quote.Price
	after := b.step(time.Now())
	for _, e := range after {
		if e.Quote.Symbol == "TCS" {
			assert.InDelta(t, before, e.Quote.Price, before*maxStep+0.01)
		}
		if strings.HasPrefix(e.Quote.Symbol, "^") {
			assert.Equal(t, market.KindIndex, e.Kind)
		}
	}
}

func TestChat(t *testing.T) {
	s, ts := newTestServer(t)
	tok := token(t, s, "u1")

	_, body := doJSON(t, ts, tok, http.MethodPost, "/chat", api.ChatRequest{Message: "What is a Dividend?"}, nil)
	var r api.ChatResponse
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Contains(t, r.Reply, "share of a company's profit")
	assert.NotEmpty(t, r.FollowUps)

	resp, _ := doJSON(t, ts, tok, http.MethodPost, "/chat", api.ChatRequest{Message: " "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStream(t *testing.T) {
	s, ts := newTestServer(t)
	url, err := market.StreamURL(ts.URL)
	require.NoError(t, err)

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token(t, s, "u1"))
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(market.SubscribeMessage([]string{"^NSEI", "TCS"})))

	read := func() market.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m market.Message
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	// Snapshot of the subscribed symbols first.
	first, second := read(), read()
	assert.Equal(t, "index", first.Type)
	assert.Equal(t, "quote", second.Type)

	// The snapshot is sent after the filter is set, so ticks are filtered.
	s.Tick()
	seen := map[string]bool{}
	for range 2 {
		m := read()
		var q api.Quote
		require.NoError(t, json.Unmarshal(m.Data, &q))
		seen[q.Symbol] = true
	}
	assert.Equal(t, map[string]bool{"^NSEI": true, "TCS": true}, seen)
}

func TestStreamRequiresAuth(t *testing.T) {
	_, ts := newTestServer(t)
	url, err := market.StreamURL(ts.URL)
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, err := New(Config{Secret: testSecret, TickInterval: 10 * time.Millisecond, Log: io.Discard})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
