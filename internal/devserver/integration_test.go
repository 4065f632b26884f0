package devserver_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/chat"
	"github.com/abhisek/investory/internal/devserver"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/llm"
	"github.com/abhisek/investory/internal/market"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/quiz"
	"github.com/abhisek/investory/internal/settlement"
)

type harness struct {
	srv    *devserver.Server
	url    string
	tokens api.TokenSource
	client *api.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, err := devserver.New(devserver.Config{Secret: "it-secret", Seed: 1, Log: io.Discard})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tok, err := srv.IssueToken("learner-1", "learner@example.com", time.Hour)
	require.NoError(t, err)
	tokens := api.StaticToken(tok)
	client := api.New(ts.URL, tokens, api.WithRetry(api.RetryConfig{
		MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1,
	}))
	return &harness{srv: srv, url: ts.URL, tokens: tokens, client: client}
}

func answers(levelID int, correct bool) quiz.Answers {
	out := quiz.Answers{}
	for _, q := range levels.MustGet(levelID).Questions {
		if correct {
			out[q.ID] = q.CorrectOption
		} else {
			out[q.ID] = (q.CorrectOption + 1) % len(q.Options)
		}
	}
	return out
}

func TestLevelFlowAgainstDevServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st := progress.New()
	svc := settlement.New(st, h.client, settlement.WithDebounceWindow(5*time.Millisecond))
	require.NoError(t, svc.Hydrate(ctx))
	assert.Equal(t, settlement.PhaseInProgress, svc.Phase(1))
	assert.Equal(t, settlement.PhaseLocked, svc.Phase(2))

	for _, task := range levels.MustGet(1).RequiredTaskIDs() {
		_, err := svc.ToggleTask(1, task)
		require.NoError(t, err)
	}
	assert.Equal(t, settlement.PhaseQuizPending, svc.Phase(1))

	res, err := svc.SubmitQuiz(ctx, 1, answers(1, true))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, settlement.PhaseQuizPassed, svc.Phase(1))

	reward, err := svc.Settle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10000, reward.NewBalance)
	assert.Equal(t, 10000, reward.MoneyAwarded)
	assert.Equal(t, "Market Rookie", reward.Badge.BadgeName)
	assert.Equal(t, settlement.PhaseCompleted, svc.Phase(1))
	assert.Equal(t, 2, st.CurrentLevel())

	again, err := svc.Settle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)

	// Level 2: fail, retry, pass.
	res, err = svc.SubmitQuiz(ctx, 2, answers(2, false))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, settlement.PhaseQuizFailed, svc.Phase(2))

	_, err = svc.Settle(ctx, 2)
	assert.True(t, settlement.IsValidation(err))

	require.NoError(t, svc.Retry(ctx, 2))
	assert.Equal(t, settlement.PhaseQuizPending, svc.Phase(2))

	_, err = svc.SubmitQuiz(ctx, 2, answers(2, true))
	require.NoError(t, err)
	reward, err = svc.Settle(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 15000, reward.NewBalance)
	assert.Equal(t, 3, st.CurrentLevel())
	require.NoError(t, svc.Close(ctx))

	// A fresh client sees the same authoritative state.
	fresh := progress.New()
	other := settlement.New(fresh, h.client)
	require.NoError(t, other.Hydrate(ctx))
	snap := fresh.Snapshot()
	assert.Equal(t, 3, snap.CurrentLevel)
	assert.Equal(t, 15000, snap.TotalBalance)
	assert.Len(t, snap.Badges, 2)
	assert.True(t, fresh.IsLevelTasksComplete(1))
	assert.True(t, fresh.IsLevelTasksComplete(2))
	require.NoError(t, other.Close(ctx))
}

func TestCompatibility(t *testing.T) {
	h := newHarness(t)
	health, err := h.client.CheckCompatibility(context.Background())
	require.NoError(t, err)
	assert.Equal(t, devserver.APIVersion, health.APIVersion)
}

func TestFeedAgainstDevServer(t *testing.T) {
	h := newHarness(t)
	url, err := market.StreamURL(h.url)
	require.NoError(t, err)

	board := market.NewBoard()
	feed := market.NewFeed(url, board,
		market.WithTokenSource(h.tokens),
		market.WithSymbols([]string{"TCS", "^NSEI"}),
		market.WithReconnectWait(10*time.Millisecond, 50*time.Millisecond),
		market.WithFeedWarnings(io.Discard),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return board.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	before, _ := board.Get("TCS")
	require.Eventually(t, func() bool {
		h.srv.Tick()
		after, _ := board.Get("TCS")
		return after.Quote.UpdatedAt.After(before.Quote.UpdatedAt) || after.Quote.Price != before.Quote.Price
	}, 2*time.Second, 20*time.Millisecond)

	idx := board.List(market.KindIndex)
	require.Len(t, idx, 1)
	assert.Equal(t, "^NSEI", idx[0].Quote.Symbol)
}

func TestWatchlistAgainstDevServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	list, err := h.client.AddToWatchlist(ctx, "INFY")
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY"}, list)

	quotes, err := h.client.Quotes(ctx, list)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "INFY", quotes[0].Symbol)

	list, err = h.client.RemoveFromWatchlist(ctx, "INFY")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTutorThroughBackendProvider(t *testing.T) {
	h := newHarness(t)
	provider, err := llm.NewBackendProvider(h.client)
	require.NoError(t, err)

	a := chat.New(provider, chat.DefaultConfig())
	r, err := a.Ask(context.Background(), "What happens in an IPO?")
	require.NoError(t, err)
	assert.Contains(t, r.Answer, "first time a company sells")
	assert.Len(t, a.History(), 2)
}
