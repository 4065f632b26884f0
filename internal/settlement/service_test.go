package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/quiz"
	"github.com/abhisek/investory/internal/store"
)

var earned = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu sync.Mutex

	progress    *api.Progress
	completeErr error
	updateErr   error
	resetErr    error
	block       chan struct{}

	updates   []api.LevelUpdate
	completes []string
	resets    int
	balance   int
}

func (f *fakeBackend) GetProgress(context.Context) (*api.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progress == nil {
		return nil, &api.APIError{Method: "GET", Path: "/progress", Status: 500, Message: "boom"}
	}
	return f.progress, nil
}

func (f *fakeBackend) UpdateLevel(_ context.Context, _ int, u api.LevelUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return f.updateErr
}

func (f *fakeBackend) ResetLevel(context.Context, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetErr
}

func (f *fakeBackend) CompleteLevel(_ context.Context, levelID int, req api.CompleteRequest, key string) (*api.CompleteResponse, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, key)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.balance += req.RewardMoney
	return &api.CompleteResponse{
		NewLevel:     levelID + 1,
		NewBalance:   f.balance,
		BadgeEarned:  api.Badge{LevelID: levelID, BadgeName: req.BadgeName, EarnedAt: earned},
		MoneyAwarded: req.RewardMoney,
	}, nil
}

func (f *fakeBackend) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []store.SettlementEventData
}

func (r *fakeRecorder) AppendSettlement(_ context.Context, d store.SettlementEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, d)
	return nil
}

func newService(t *testing.T, b *fakeBackend, opts ...Option) *Service {
	t.Helper()
	n := 0
	opts = append([]Option{
		WithDebounceWindow(20 * time.Millisecond),
		WithKeyFunc(func() string { n++; return "key-" + string(rune('a'+n-1)) }),
	}, opts...)
	s := New(progress.New(), b, opts...)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func answersFor(levelID, correct int) quiz.Answers {
	lvl := levels.MustGet(levelID)
	a := quiz.Answers{}
	for i, q := range lvl.Questions {
		if i < correct {
			a[q.ID] = q.CorrectOption
		} else {
			a[q.ID] = (q.CorrectOption + 1) % len(q.Options)
		}
	}
	return a
}

func TestPhase_Flow(t *testing.T) {
	ctx := context.Background()
	s := newService(t, &fakeBackend{})

	assert.Equal(t, PhaseLocked, s.Phase(2))
	assert.Equal(t, PhaseInProgress, s.Phase(1))

	for _, task := range levels.MustGet(1).RequiredTaskIDs() {
		_, err := s.ToggleTask(1, task)
		require.NoError(t, err)
	}
	assert.Equal(t, PhaseQuizPending, s.Phase(1))

	res, err := s.SubmitQuiz(ctx, 1, answersFor(1, 4))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, PhaseQuizFailed, s.Phase(1))

	require.NoError(t, s.Retry(ctx, 1))
	assert.Equal(t, PhaseQuizPending, s.Phase(1))

	res, err = s.SubmitQuiz(ctx, 1, answersFor(1, 5))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, PhaseQuizPassed, s.Phase(1))

	reward, err := s.Settle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10000, reward.NewBalance)
	assert.Equal(t, "Market Rookie", reward.Badge.BadgeName)
	assert.Equal(t, PhaseCompleted, s.Phase(1))
	assert.Equal(t, PhaseInProgress, s.Phase(2))
}

func TestStartQuiz(t *testing.T) {
	s := newService(t, &fakeBackend{})
	require.NoError(t, s.StartQuiz(1))
	assert.Equal(t, PhaseQuizPending, s.Phase(1))
	assert.True(t, IsValidation(s.StartQuiz(3)))
}

func TestSubmitQuiz_Validation(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newService(t, b)

	_, err := s.SubmitQuiz(ctx, 1, quiz.Answers{1: 0})
	assert.True(t, IsValidation(err))

	_, err = s.SubmitQuiz(ctx, 2, answersFor(2, 7))
	assert.True(t, IsValidation(err), "locked level")

	_, err = s.SubmitQuiz(ctx, 99, quiz.Answers{})
	assert.True(t, IsValidation(err))

	bad := answersFor(1, 7)
	bad[1] = 42
	_, err = s.SubmitQuiz(ctx, 1, bad)
	assert.True(t, IsValidation(err), "option out of range")

	assert.Equal(t, 0, b.updateCount())
	assert.False(t, s.Store().Level(1).HasQuizAttempt())
}

func TestSubmitQuiz_BackendFailureKeepsLocalResult(t *testing.T) {
	b := &fakeBackend{updateErr: errors.New("connection refused")}
	s := newService(t, b)

	res, err := s.SubmitQuiz(context.Background(), 1, answersFor(1, 7))
	require.Error(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 7, s.Store().Level(1).QuizScore)
	assert.Contains(t, s.Store().Error(), "Network error")
}

func TestSettle_RequiresPassedQuiz(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newService(t, b)

	_, err := s.Settle(ctx, 1)
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "quiz not submitted", v.Reason)

	_, err = s.SubmitQuiz(ctx, 1, answersFor(1, 4))
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1)
	assert.True(t, IsValidation(err))
	assert.Empty(t, b.completes)
}

func TestSettle_NetworkFailureThenRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{completeErr: errors.New("dial tcp: timeout")}
	rec := &fakeRecorder{}
	s := newService(t, b, WithRecorder(rec))

	_, err := s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.NoError(t, err)

	_, err = s.Settle(ctx, 1)
	require.Error(t, err)
	assert.False(t, s.Store().Level(1).IsCompleted)
	assert.NotEmpty(t, s.Store().Error())
	assert.Equal(t, PhaseQuizPassed, s.Phase(1))

	b.mu.Lock()
	b.completeErr = nil
	b.mu.Unlock()

	reward, err := s.Settle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10000, reward.MoneyAwarded)
	assert.True(t, s.Store().Level(1).IsCompleted)
	assert.Empty(t, s.Store().Error())
	assert.Len(t, s.Store().Snapshot().Badges, 1)
	assert.Equal(t, 2, s.Store().CurrentLevel())

	// Both attempts carry the same idempotency key.
	require.Len(t, b.completes, 2)
	assert.Equal(t, b.completes[0], b.completes[1])

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 3)
	assert.False(t, rec.events[1].Success)
	assert.True(t, rec.events[2].Success)
}

func TestSettle_CompletedReturnsRecordedReward(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newService(t, b)

	_, err := s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1)
	require.NoError(t, err)

	again, err := s.Settle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.Equal(t, 10000, again.NewBalance)
	assert.Equal(t, "Market Rookie", again.Badge.BadgeName)
	assert.Len(t, b.completes, 1)

	assert.True(t, IsValidation(s.Retry(ctx, 1)))
	_, err = s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	assert.True(t, IsValidation(err))
}

func TestSettle_InFlightGuard(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{block: make(chan struct{})}
	s := newService(t, b)

	_, err := s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Settle(ctx, 1)
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Phase(1) == PhaseSettling }, time.Second, 5*time.Millisecond)
	_, err = s.Settle(ctx, 1)
	assert.ErrorIs(t, err, ErrSettlementInFlight)
	assert.ErrorIs(t, s.Retry(ctx, 1), ErrSettlementInFlight)

	close(b.block)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseCompleted, s.Phase(1))
}

func TestSettle_MarksAllTasksComplete(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newService(t, b)

	_, err := s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, progress.TaskSet{1, 2, 3}, s.Store().Level(1).TasksCompleted)
	require.NoError(t, s.Flush(ctx))

	b.mu.Lock()
	defer b.mu.Unlock()
	last := b.updates[len(b.updates)-1]
	require.NotNil(t, last.TasksCompleted)
	assert.Equal(t, []int{1, 2, 3}, *last.TasksCompleted)
}

func TestToggleTask_Debounced(t *testing.T) {
	b := &fakeBackend{}
	s := newService(t, b)

	_, err := s.ToggleTask(1, 1)
	require.NoError(t, err)
	_, err = s.ToggleTask(1, 2)
	require.NoError(t, err)
	set, err := s.ToggleTask(1, 1)
	require.NoError(t, err)
	assert.Equal(t, progress.TaskSet{2}, set)

	require.Eventually(t, func() bool { return b.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	b.mu.Lock()
	assert.Equal(t, []int{2}, *b.updates[0].TasksCompleted)
	b.mu.Unlock()

	_, err = s.ToggleTask(1, 9)
	assert.True(t, IsValidation(err))
}

func TestToggleTask_WriteFailureSetsError(t *testing.T) {
	b := &fakeBackend{updateErr: errors.New("offline")}
	s := newService(t, b)

	_, err := s.ToggleTask(1, 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Store().Error() != "" }, time.Second, 5*time.Millisecond)
	assert.Contains(t, s.Store().Error(), "level 1")
	assert.True(t, s.Store().Level(1).TasksCompleted.Contains(1))
}

func TestHydrate(t *testing.T) {
	b := &fakeBackend{progress: &api.Progress{
		CurrentLevel: 3,
		TotalBalance: 15000,
		Progress: map[int]api.LevelProgress{
			1: {TasksCompleted: []int{3, 1, 2}, QuizScore: 7, TotalQuestions: 7, IsCompleted: true, CompletedAt: &earned},
			2: {TasksCompleted: []int{1, 2, 3}, QuizAnswers: map[int]int{1: 2}, QuizScore: 6, TotalQuestions: 7, IsCompleted: true},
		},
		Badges: []api.Badge{
			{LevelID: 1, BadgeName: "Market Rookie", EarnedAt: earned},
			{LevelID: 2, BadgeName: "IPO Detective", EarnedAt: earned},
		},
	}}
	s := newService(t, b)

	require.NoError(t, s.Hydrate(context.Background()))
	snap := s.Store().Snapshot()
	assert.Equal(t, 3, snap.CurrentLevel)
	assert.Equal(t, 15000, snap.TotalBalance)
	assert.Equal(t, progress.TaskSet{1, 2, 3}, snap.Level(1).TasksCompleted)
	assert.Len(t, snap.Badges, 2)
	assert.False(t, s.Store().Loading())
	assert.Equal(t, PhaseCompleted, s.Phase(2))
	assert.Equal(t, PhaseInProgress, s.Phase(3))
}

func TestHydrate_Failure(t *testing.T) {
	s := newService(t, &fakeBackend{})
	err := s.Hydrate(context.Background())
	require.Error(t, err)
	assert.False(t, s.Store().Loading())
	assert.Equal(t, "boom", s.Store().Error())
}

func TestErrorClearedAfterRecovery(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{resetErr: errors.New("dial tcp: timeout")}
	s := newService(t, b)

	require.Error(t, s.Retry(ctx, 1))
	assert.Contains(t, s.Store().Error(), "Network error")

	b.mu.Lock()
	b.resetErr = nil
	b.updateErr = errors.New("dial tcp: timeout")
	b.mu.Unlock()
	require.NoError(t, s.Retry(ctx, 1))
	assert.Empty(t, s.Store().Error())

	_, err := s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.Error(t, err)
	assert.NotEmpty(t, s.Store().Error())

	b.mu.Lock()
	b.updateErr = nil
	b.mu.Unlock()
	_, err = s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.NoError(t, err)
	assert.Empty(t, s.Store().Error())
}

func TestToggleTask_WriteRecoveryClearsError(t *testing.T) {
	b := &fakeBackend{updateErr: errors.New("offline")}
	s := newService(t, b)

	_, err := s.ToggleTask(1, 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Store().Error() != "" }, time.Second, 5*time.Millisecond)

	b.mu.Lock()
	b.updateErr = nil
	b.mu.Unlock()
	_, err = s.ToggleTask(1, 2)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Store().Error() == "" }, time.Second, 5*time.Millisecond)
}

func TestSettle_CompletedWhileAcquiringSlot(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	var s *Service
	// The level completes between the first completion check and the
	// in-flight slot being taken.
	s = newService(t, b, WithKeyFunc(func() string {
		s.Store().CompleteLevel(1, 10000, progress.Badge{LevelID: 1, BadgeName: "Market Rookie", EarnedAt: earned})
		return "late"
	}))

	_, err := s.SubmitQuiz(ctx, 1, answersFor(1, 7))
	require.NoError(t, err)

	reward, err := s.Settle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, reward.AlreadyCompleted)
	assert.Equal(t, 10000, reward.NewBalance)
	assert.Empty(t, b.completes)
	assert.NotEqual(t, PhaseSettling, s.Phase(1))
}
