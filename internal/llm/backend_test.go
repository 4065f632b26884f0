package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/api"
)

type fakeChat struct {
	req  api.ChatRequest
	resp *api.ChatResponse
	err  error
}

func (f *fakeChat) Chat(_ context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestBackendProvider_SplitsHistory(t *testing.T) {
	chat := &fakeChat{resp: &api.ChatResponse{Reply: "An IPO is a company's first public share sale."}}
	p, err := NewBackendProvider(chat)
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		System: "ignored by the backend",
		Messages: []Message{
			{Role: RoleUser, Content: "What is a stock?"},
			{Role: RoleAssistant, Content: "A share of a company."},
			{Role: RoleUser, Content: "And an IPO?"},
		},
		Schema: testSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, "And an IPO?", chat.req.Message)
	assert.Equal(t, []api.ChatTurn{
		{Role: "user", Content: "What is a stock?"},
		{Role: "assistant", Content: "A share of a company."},
	}, chat.req.History)

	var reply struct {
		Answer    string   `json:"answer"`
		FollowUps []string `json:"followUps"`
	}
	require.NoError(t, json.Unmarshal(resp.Content, &reply))
	assert.Equal(t, "An IPO is a company's first public share sale.", reply.Answer)
	assert.Empty(t, reply.FollowUps)
	assert.NotNil(t, reply.FollowUps)
	assert.Equal(t, "investory-backend", resp.Model)
}

func TestBackendProvider_Errors(t *testing.T) {
	_, err := NewBackendProvider(nil)
	assert.Error(t, err)

	p, _ := NewBackendProvider(&fakeChat{})
	_, err = p.Generate(context.Background(), Request{})
	var perm *ErrPermanent
	assert.ErrorAs(t, err, &perm, "no user message")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"unauthorized", api.ErrUnauthenticated, func(e error) bool { var x *ErrPermanent; return errors.As(e, &x) }},
		{"bad request", &api.APIError{Status: http.StatusBadRequest}, func(e error) bool { var x *ErrPermanent; return errors.As(e, &x) }},
		{"rate limited", &api.APIError{Status: http.StatusTooManyRequests}, func(e error) bool { var x *ErrRateLimit; return errors.As(e, &x) }},
		{"server error", &api.APIError{Status: http.StatusBadGateway}, func(e error) bool { var x *ErrProviderUnavailable; return errors.As(e, &x) }},
		{"network", errors.New("dial tcp: refused"), func(e error) bool { var x *ErrProviderUnavailable; return errors.As(e, &x) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := NewBackendProvider(&fakeChat{err: tt.err})
			_, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			assert.True(t, tt.check(err), "got %T", err)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}
