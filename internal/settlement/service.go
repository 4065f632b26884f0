// Package settlement drives a level through quiz submission, reward
// settlement with the backend, and retry.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/debounce"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/quiz"
	"github.com/abhisek/investory/internal/store"
)

// Backend is the subset of the backend API used by settlement.
type Backend interface {
	GetProgress(ctx context.Context) (*api.Progress, error)
	UpdateLevel(ctx context.Context, levelID int, u api.LevelUpdate) error
	ResetLevel(ctx context.Context, levelID int) error
	CompleteLevel(ctx context.Context, levelID int, req api.CompleteRequest, idempotencyKey string) (*api.CompleteResponse, error)
}

// Recorder receives settlement events.
type Recorder interface {
	AppendSettlement(ctx context.Context, data store.SettlementEventData) error
}

// Reward is the outcome of a settlement.
type Reward struct {
	LevelID      int
	NewBalance   int
	MoneyAwarded int
	Badge        progress.Badge

	// AlreadyCompleted is set when the level was completed before this
	// call and nothing was sent to the backend.
	AlreadyCompleted bool
}

// Service coordinates the progress store with the backend.
type Service struct {
	store   *progress.Store
	backend Backend
	events  Recorder
	tasks   *debounce.Queue[int, progress.TaskSet]
	window  time.Duration
	newKey  func() string

	mu       sync.Mutex
	inFlight map[int]bool
	quizOpen map[int]bool
	keys     map[int]string
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records submissions, settlements and retries.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.events = r }
}

// WithDebounceWindow sets how long task toggles are coalesced before they
// are written to the backend.
func WithDebounceWindow(d time.Duration) Option {
	return func(s *Service) { s.window = d }
}

// WithKeyFunc overrides idempotency key generation.
func WithKeyFunc(fn func() string) Option {
	return func(s *Service) { s.newKey = fn }
}

// New creates a settlement service.
func New(st *progress.Store, backend Backend, opts ...Option) *Service {
	s := &Service{
		store:    st,
		backend:  backend,
		window:   debounce.DefaultWindow,
		newKey:   uuid.NewString,
		inFlight: make(map[int]bool),
		quizOpen: make(map[int]bool),
		keys:     make(map[int]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = debounce.New(s.window, s.writeTasks, s.taskWriteFailed)
	return s
}

// Store returns the progress store this service updates.
func (s *Service) Store() *progress.Store {
	return s.store
}

// Hydrate replaces local progress with the backend's authoritative copy.
// Pending task writes are flushed first so they are not overwritten.
func (s *Service) Hydrate(ctx context.Context) error {
	if err := s.tasks.Flush(ctx); err != nil {
		s.store.SetError(api.UserMessage(err))
	}

	s.store.SetLoading(true)
	p, err := s.backend.GetProgress(ctx)
	if err != nil {
		s.store.SetLoading(false)
		s.store.SetError(api.UserMessage(err))
		return fmt.Errorf("load progress: %w", err)
	}
	s.store.SetProgress(toPartial(p))
	return nil
}

// Phase derives the level's position in the completion flow.
func (s *Service) Phase(levelID int) Phase {
	snap := s.store.Snapshot()
	lp := snap.Level(levelID)

	if !progress.CanAccessLevel(levelID, snap.CurrentLevel) {
		return PhaseLocked
	}
	if lp.IsCompleted {
		return PhaseCompleted
	}

	s.mu.Lock()
	settling := s.inFlight[levelID]
	open := s.quizOpen[levelID]
	s.mu.Unlock()

	switch {
	case settling:
		return PhaseSettling
	case lp.HasQuizAttempt() && progress.CanCompleteLevel(lp):
		return PhaseQuizPassed
	case lp.HasQuizAttempt():
		return PhaseQuizFailed
	case open || s.store.IsLevelTasksComplete(levelID):
		return PhaseQuizPending
	default:
		return PhaseInProgress
	}
}

// ToggleTask flips one task and schedules a debounced write of the
// level's task set.
func (s *Service) ToggleTask(levelID, taskID int) (progress.TaskSet, error) {
	level, err := s.accessibleLevel(levelID)
	if err != nil {
		return nil, err
	}
	if !level.HasTask(taskID) {
		return nil, &ValidationError{LevelID: levelID, Reason: fmt.Sprintf("unknown task %d", taskID)}
	}

	set := s.store.ToggleTask(levelID, taskID)
	s.pushTasks(levelID, set)
	return set, nil
}

// StartQuiz moves an open level to QuizPending.
func (s *Service) StartQuiz(levelID int) error {
	if _, err := s.accessibleLevel(levelID); err != nil {
		return err
	}
	if s.store.Level(levelID).IsCompleted {
		return &ValidationError{LevelID: levelID, Reason: "level already completed"}
	}
	s.mu.Lock()
	s.quizOpen[levelID] = true
	s.mu.Unlock()
	return nil
}

// SubmitQuiz validates and scores answers, records the attempt locally and
// saves it to the backend. A backend failure is returned together with the
// locally recorded result.
func (s *Service) SubmitQuiz(ctx context.Context, levelID int, answers quiz.Answers) (quiz.Result, error) {
	level, err := s.accessibleLevel(levelID)
	if err != nil {
		return quiz.Result{}, err
	}
	if s.store.Level(levelID).IsCompleted {
		return quiz.Result{}, &ValidationError{LevelID: levelID, Reason: "level already completed"}
	}
	if s.settling(levelID) {
		return quiz.Result{}, ErrSettlementInFlight
	}

	key := level.AnswerKey()
	if missing := quiz.Unanswered(key, answers); len(missing) > 0 {
		return quiz.Result{}, &ValidationError{
			LevelID: levelID,
			Reason:  fmt.Sprintf("%d of %d questions unanswered", len(missing), len(key)),
		}
	}
	for _, q := range level.Questions {
		if sel := answers[q.ID]; sel < 0 || sel >= len(q.Options) {
			return quiz.Result{}, &ValidationError{LevelID: levelID, Reason: fmt.Sprintf("question %d: option %d does not exist", q.ID, sel)}
		}
	}

	result := quiz.Evaluate(key, answers)
	s.store.SubmitQuiz(levelID, answers, result.Score, result.Total)
	s.mu.Lock()
	delete(s.quizOpen, levelID)
	s.mu.Unlock()

	err = s.backend.UpdateLevel(ctx, levelID, api.QuizUpdate(answers.Clone(), result.Score, result.Total))
	s.record(ctx, store.SettlementEventData{
		LevelID: levelID,
		Action:  "submit",
		Score:   result.Score,
		Total:   result.Total,
		Passed:  result.Passed,
		Success: err == nil,
	}, err)
	if err != nil {
		s.store.SetError(api.UserMessage(err))
		return result, fmt.Errorf("save quiz attempt: %w", err)
	}
	s.store.ClearError()
	return result, nil
}

// Settle claims the level's reward from the backend. It requires a passed
// quiz. On a completed level it returns the recorded reward without
// contacting the backend.
func (s *Service) Settle(ctx context.Context, levelID int) (*Reward, error) {
	level, ok := levels.Get(levelID)
	if !ok {
		return nil, &ValidationError{LevelID: levelID, Reason: "no such level"}
	}

	snap := s.store.Snapshot()
	lp := snap.Level(levelID)
	if lp.IsCompleted {
		return recordedReward(snap, levelID), nil
	}
	if !progress.CanAccessLevel(levelID, snap.CurrentLevel) {
		return nil, &ValidationError{LevelID: levelID, Reason: "level is locked"}
	}
	if !progress.CanCompleteLevel(lp) {
		reason := "quiz score below the pass mark"
		if !lp.HasQuizAttempt() {
			reason = "quiz not submitted"
		}
		return nil, &ValidationError{LevelID: levelID, Reason: reason}
	}

	s.mu.Lock()
	if s.inFlight[levelID] {
		s.mu.Unlock()
		return nil, ErrSettlementInFlight
	}
	s.inFlight[levelID] = true
	key, ok := s.keys[levelID]
	if !ok {
		key = s.newKey()
		s.keys[levelID] = key
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, levelID)
		s.mu.Unlock()
	}()

	// A settlement that finished while this one waited for the slot has
	// already claimed the reward.
	if snap := s.store.Snapshot(); snap.Level(levelID).IsCompleted {
		s.mu.Lock()
		delete(s.keys, levelID)
		s.mu.Unlock()
		return recordedReward(snap, levelID), nil
	}

	s.pushTasks(levelID, s.store.MarkAllTasksComplete(levelID))

	resp, err := s.backend.CompleteLevel(ctx, levelID, api.CompleteRequest{
		RewardMoney: level.RewardMoney,
		BadgeName:   level.BadgeName,
	}, key)
	if err != nil {
		s.store.SetError(api.UserMessage(err))
		s.record(ctx, store.SettlementEventData{LevelID: levelID, Action: "settle"}, err)
		return nil, fmt.Errorf("settle level %d: %w", levelID, err)
	}

	badge := progress.Badge{
		LevelID:   levelID,
		BadgeName: resp.BadgeEarned.BadgeName,
		EarnedAt:  resp.BadgeEarned.EarnedAt,
	}
	if badge.BadgeName == "" {
		badge.BadgeName = level.BadgeName
	}
	s.store.CompleteLevel(levelID, resp.NewBalance, badge)
	if resp.NewLevel > 0 {
		s.store.SetProgress(progress.Partial{CurrentLevel: &resp.NewLevel})
	} else {
		s.store.ClearError()
	}

	s.mu.Lock()
	delete(s.keys, levelID)
	s.mu.Unlock()

	s.record(ctx, store.SettlementEventData{
		LevelID:    levelID,
		Action:     "settle",
		NewBalance: resp.NewBalance,
		BadgeName:  badge.BadgeName,
		Success:    true,
	}, nil)

	return &Reward{
		LevelID:      levelID,
		NewBalance:   resp.NewBalance,
		MoneyAwarded: resp.MoneyAwarded,
		Badge:        s.badgeOrDefault(levelID, badge),
	}, nil
}

// Retry resets a level's quiz on the backend and locally so it can be
// retaken. Completed levels cannot be retried.
func (s *Service) Retry(ctx context.Context, levelID int) error {
	if _, err := s.accessibleLevel(levelID); err != nil {
		return err
	}
	if s.store.Level(levelID).IsCompleted {
		return &ValidationError{LevelID: levelID, Reason: "level already completed"}
	}
	if s.settling(levelID) {
		return ErrSettlementInFlight
	}

	err := s.backend.ResetLevel(ctx, levelID)
	s.record(ctx, store.SettlementEventData{LevelID: levelID, Action: "retry", Success: err == nil}, err)
	if err != nil {
		s.store.SetError(api.UserMessage(err))
		return fmt.Errorf("reset level %d: %w", levelID, err)
	}

	s.store.ResetQuiz(levelID)
	s.store.ClearError()
	s.mu.Lock()
	s.quizOpen[levelID] = true
	delete(s.keys, levelID)
	s.mu.Unlock()
	return nil
}

// Flush writes pending task changes now.
func (s *Service) Flush(ctx context.Context) error {
	return s.tasks.Flush(ctx)
}

// Close flushes pending task changes and stops accepting new ones.
func (s *Service) Close(ctx context.Context) error {
	return s.tasks.Close(ctx)
}

func (s *Service) accessibleLevel(levelID int) (levels.Level, error) {
	level, ok := levels.Get(levelID)
	if !ok {
		return levels.Level{}, &ValidationError{LevelID: levelID, Reason: "no such level"}
	}
	if !progress.CanAccessLevel(levelID, s.store.CurrentLevel()) {
		return levels.Level{}, &ValidationError{LevelID: levelID, Reason: "level is locked"}
	}
	return level, nil
}

func (s *Service) settling(levelID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[levelID]
}

func (s *Service) pushTasks(levelID int, set progress.TaskSet) {
	if err := s.tasks.Push(levelID, set); err != nil && !errors.Is(err, debounce.ErrClosed) {
		s.store.SetError(err.Error())
	}
}

func (s *Service) writeTasks(ctx context.Context, levelID int, set progress.TaskSet) error {
	if err := s.backend.UpdateLevel(ctx, levelID, api.TasksUpdate(set)); err != nil {
		return err
	}
	s.store.ClearError()
	return nil
}

func (s *Service) taskWriteFailed(levelID int, err error) {
	s.store.SetError(fmt.Sprintf("Could not save tasks for level %d: %s", levelID, api.UserMessage(err)))
}

func (s *Service) badgeOrDefault(levelID int, fallback progress.Badge) progress.Badge {
	if b, ok := s.store.Snapshot().Badge(levelID); ok {
		return b
	}
	return fallback
}

func (s *Service) record(ctx context.Context, data store.SettlementEventData, err error) {
	if s.events == nil {
		return
	}
	if err != nil {
		data.Success = false
		data.ErrorMessage = err.Error()
	}
	if logErr := s.events.AppendSettlement(context.WithoutCancel(ctx), data); logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to log settlement event: %v\n", logErr)
	}
}

func recordedReward(snap progress.State, levelID int) *Reward {
	r := &Reward{
		LevelID:          levelID,
		NewBalance:       snap.TotalBalance,
		AlreadyCompleted: true,
	}
	if b, ok := snap.Badge(levelID); ok {
		r.Badge = b
	}
	return r
}

// toPartial converts the backend's progress into a store snapshot.
func toPartial(p *api.Progress) progress.Partial {
	out := progress.Partial{
		CurrentLevel: &p.CurrentLevel,
		TotalBalance: &p.TotalBalance,
		Levels:       make(map[int]progress.LevelProgress, len(p.Progress)),
		Badges:       make([]progress.Badge, 0, len(p.Badges)),
	}
	for id, lp := range p.Progress {
		var answers quiz.Answers
		if lp.QuizAnswers != nil {
			answers = quiz.Answers(lp.QuizAnswers).Clone()
		}
		out.Levels[id] = progress.LevelProgress{
			TasksCompleted: progress.NewTaskSet(lp.TasksCompleted...),
			QuizAnswers:    answers,
			QuizScore:      lp.QuizScore,
			TotalQuestions: lp.TotalQuestions,
			IsCompleted:    lp.IsCompleted,
			CompletedAt:    lp.CompletedAt,
		}
	}
	for _, b := range p.Badges {
		out.Badges = append(out.Badges, progress.Badge{LevelID: b.LevelID, BadgeName: b.BadgeName, EarnedAt: b.EarnedAt})
	}
	return out
}
