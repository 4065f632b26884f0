package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/llm"
)

func reply(answer string, followUps ...string) llm.MockResponse {
	if followUps == nil {
		followUps = []string{}
	}
	b, _ := json.Marshal(Reply{Answer: answer, FollowUps: followUps})
	return llm.MockResponse{Content: b}
}

func TestAsk_RecordsHistory(t *testing.T) {
	mock := llm.NewMockProvider(
		reply("A stock is a small ownership slice of a company.", "What is a dividend?"),
		reply("A dividend is a share of profits paid out."),
	)
	a := New(mock, DefaultConfig())

	r, err := a.Ask(context.Background(), "  What is a stock? ")
	require.NoError(t, err)
	assert.Equal(t, []string{"What is a dividend?"}, r.FollowUps)

	_, err = a.Ask(context.Background(), "What is a dividend?")
	require.NoError(t, err)

	// The second request carries the first exchange.
	second := mock.Calls[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "What is a stock?", second.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	assert.Equal(t, ReplySchema, second.Schema)

	h := a.History()
	require.Len(t, h, 4)
	assert.Equal(t, "A dividend is a share of profits paid out.", h[3].Content)
}

func TestAsk_HistoryIsBounded(t *testing.T) {
	mock := llm.NewMockProvider()
	for i := range 15 {
		mock.AddResponse(reply(fmt.Sprintf("answer %d", i)))
	}
	a := New(mock, DefaultConfig())

	for i := range 15 {
		_, err := a.Ask(context.Background(), fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	h := a.History()
	require.Len(t, h, 20)
	assert.Equal(t, "question 5", h[0].Content)
	assert.Equal(t, "answer 14", h[19].Content)
	assert.Len(t, mock.Calls[14].Messages, 21)
}

func TestAsk_FailureLeavesHistory(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}},
		reply("Recovered."),
	)
	a := New(mock, DefaultConfig())

	_, err := a.Ask(context.Background(), "Hello?")
	var unavail *llm.ErrProviderUnavailable
	require.ErrorAs(t, err, &unavail)
	assert.Empty(t, a.History())

	_, err = a.Ask(context.Background(), "Hello?")
	require.NoError(t, err)
	assert.Len(t, a.History(), 2)
}

func TestAsk_InvalidReplyRejected(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"answer":""}`)})
	a := New(mock, DefaultConfig())
	_, err := a.Ask(context.Background(), "Why?")
	var inv *llm.ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestAsk_EmptyMessage(t *testing.T) {
	mock := llm.NewMockProvider()
	a := New(mock, DefaultConfig())
	_, err := a.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, mock.CallCount())
}

func TestAsk_LearnerContext(t *testing.T) {
	mock := llm.NewMockProvider(reply("Sure."))
	a := New(mock, DefaultConfig(), WithLearner(func() *Learner {
		return &Learner{CurrentLevel: 2, LevelTitle: "The IPO Mystery", Balance: 10000, Badges: []string{"Market Rookie"}}
	}))

	_, err := a.Ask(context.Background(), "Help")
	require.NoError(t, err)
	sys := mock.Calls[0].System
	assert.Contains(t, sys, "level 2: The IPO Mystery")
	assert.Contains(t, sys, "Market Rookie")
	assert.Contains(t, sys, "10000")
}

func TestReset(t *testing.T) {
	a := New(llm.NewMockProvider(reply("ok")), Config{})
	_, err := a.Ask(context.Background(), "hi")
	require.NoError(t, err)
	a.Reset()
	assert.Empty(t, a.History())
}

func TestOfflineReplyMatchesSchema(t *testing.T) {
	assert.NoError(t, llm.ValidateJSON(ReplySchema, OfflineReply))
}
