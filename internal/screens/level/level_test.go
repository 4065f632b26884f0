package level

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screens/summary"
	"github.com/abhisek/investory/internal/settlement"
)

type stubBackend struct {
	mu       sync.Mutex
	balance  int
	resets   int
	gets     int
	progress *api.Progress
}

func (b *stubBackend) GetProgress(context.Context) (*api.Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.progress != nil {
		return b.progress, nil
	}
	return &api.Progress{CurrentLevel: 1}, nil
}

func (b *stubBackend) UpdateLevel(context.Context, int, api.LevelUpdate) error { return nil }

func (b *stubBackend) ResetLevel(context.Context, int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
	return nil
}

func (b *stubBackend) CompleteLevel(_ context.Context, levelID int, req api.CompleteRequest, _ string) (*api.CompleteResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance += req.RewardMoney
	return &api.CompleteResponse{
		NewLevel:     levelID + 1,
		NewBalance:   b.balance,
		BadgeEarned:  api.Badge{LevelID: levelID, BadgeName: req.BadgeName, EarnedAt: time.Now()},
		MoneyAwarded: req.RewardMoney,
	}, nil
}

func newScreen(t *testing.T) (*LevelScreen, *settlement.Service, *stubBackend) {
	t.Helper()
	backend := &stubBackend{}
	svc := settlement.New(progress.New(), backend, settlement.WithDebounceWindow(time.Millisecond))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return New(svc, levels.MustGet(1)), svc, backend
}

func press(s *LevelScreen, key string) tea.Cmd {
	var msg tea.KeyPressMsg
	switch key {
	case "down":
		msg = tea.KeyPressMsg{Code: tea.KeyDown}
	case "space":
		msg = tea.KeyPressMsg{Code: tea.KeySpace}
	default:
		msg = tea.KeyPressMsg{Code: rune(key[0]), Text: key}
	}
	_, cmd := s.Update(msg)
	return cmd
}

// answerAll picks an option for every question; correct picks the right
// one, otherwise a wrong one.
func answerAll(s *LevelScreen, correct bool) {
	for _, q := range s.level.Questions {
		opt := q.CorrectOption
		if !correct {
			opt = (opt + 1) % len(q.Options)
		}
		press(s, string(rune('a'+opt)))
	}
}

func TestToggleTasks(t *testing.T) {
	s, svc, _ := newScreen(t)

	press(s, "space")
	press(s, "down")
	press(s, "space")

	lp := svc.Store().Level(1)
	assert.True(t, lp.TasksCompleted.Contains(1))
	assert.True(t, lp.TasksCompleted.Contains(2))
	assert.False(t, svc.Store().IsLevelTasksComplete(1))

	press(s, "space")
	assert.False(t, svc.Store().Level(1).TasksCompleted.Contains(2))
}

func TestPassAndClaim(t *testing.T) {
	s, svc, _ := newScreen(t)

	press(s, "q")
	require.Equal(t, modeQuiz, s.mode)
	assert.Equal(t, settlement.PhaseQuizPending, svc.Phase(1))

	answerAll(s, true)
	cmd := press(s, "s")
	require.NotNil(t, cmd)
	assert.True(t, s.busy)

	s.Update(cmd())
	require.Equal(t, modeResult, s.mode)
	require.NotNil(t, s.result)
	assert.True(t, s.result.Passed)
	assert.Equal(t, settlement.PhaseQuizPassed, svc.Phase(1))

	cmd = press(s, "c")
	require.NotNil(t, cmd)
	_, next := s.Update(cmd())
	require.NotNil(t, next)

	replace, ok := next().(router.ReplaceScreenMsg)
	require.True(t, ok)
	assert.IsType(t, &summary.SummaryScreen{}, replace.Screen)
	assert.Equal(t, settlement.PhaseCompleted, svc.Phase(1))
	assert.Equal(t, 10000, svc.Store().TotalBalance())
	assert.Equal(t, 2, svc.Store().CurrentLevel())
}

func TestFailAndRetry(t *testing.T) {
	s, svc, backend := newScreen(t)

	press(s, "q")
	answerAll(s, false)
	s.Update(press(s, "s")())
	require.Equal(t, modeResult, s.mode)
	assert.False(t, s.result.Passed)

	assert.Nil(t, press(s, "c"), "claim is not offered after a failed quiz")

	s.Update(press(s, "r")())
	assert.Equal(t, modeQuiz, s.mode)
	assert.Nil(t, s.result)
	assert.Equal(t, 1, backend.resets)
	assert.False(t, svc.Store().Level(1).HasQuizAttempt())
}

func TestSubmitWithUnansweredQuestions(t *testing.T) {
	s, svc, _ := newScreen(t)

	press(s, "q")
	press(s, "a")
	s.Update(press(s, "s")())

	assert.Equal(t, modeQuiz, s.mode)
	assert.Contains(t, s.errMsg, "unanswered")
	assert.False(t, svc.Store().Level(1).HasQuizAttempt())
}

func TestReopenShowsRecordedResult(t *testing.T) {
	s, svc, _ := newScreen(t)
	press(s, "q")
	answerAll(s, true)
	s.Update(press(s, "s")())

	reopened := New(svc, levels.MustGet(1))
	assert.Equal(t, modeResult, reopened.mode)
	assert.True(t, reopened.result.Passed)
}

func TestEscPops(t *testing.T) {
	s, _, _ := newScreen(t)
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	require.NotNil(t, cmd)
	assert.IsType(t, router.PopScreenMsg{}, cmd())
}

func TestViewRendersEachMode(t *testing.T) {
	s, _, _ := newScreen(t)
	assert.Contains(t, s.View(100, 30), levels.MustGet(1).Tasks[0].Title)

	press(s, "q")
	assert.Contains(t, s.View(100, 30), "Question 1 of")

	answerAll(s, true)
	s.Update(press(s, "s")())
	assert.Contains(t, s.View(100, 30), "QUIZ PASSED")
}

func TestInitReloadsProgress(t *testing.T) {
	s, svc, backend := newScreen(t)
	lvl := levels.MustGet(1)
	answers := map[int]int{}
	for _, q := range lvl.Questions {
		answers[q.ID] = q.CorrectOption
	}
	backend.progress = &api.Progress{
		CurrentLevel: 1,
		Progress: map[int]api.LevelProgress{
			1: {TasksCompleted: lvl.RequiredTaskIDs(), QuizAnswers: answers, QuizScore: len(answers), TotalQuestions: len(answers)},
		},
	}

	cmd := s.Init()
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, 1, backend.gets)

	s.Update(msg)
	assert.Equal(t, modeResult, s.mode)
	require.NotNil(t, s.result)
	assert.True(t, s.result.Passed)
	assert.True(t, svc.Store().Level(1).HasQuizAttempt())
}
