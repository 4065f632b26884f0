package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/quiz"
)

// Persister saves the persisted portion of the progress state.
type Persister interface {
	SaveProgress(ctx context.Context, state State) error
}

// Partial is an authoritative snapshot to merge into the store. Nil fields
// are left unchanged. Levels are merged per level ID.
type Partial struct {
	CurrentLevel *int
	TotalBalance *int
	Levels       map[int]LevelProgress
	Badges       []Badge
}

// Store owns the learner's progress state. All mutations go through its
// methods; each one is a single atomic merge under the store lock.
type Store struct {
	mu      sync.Mutex
	state   State
	errMsg  string
	loading bool

	subs    map[int]func(State)
	nextSub int

	persister Persister
	warn      io.Writer
	now       func() time.Time

	persistMu sync.Mutex
	version   uint64
	persisted uint64
	pending   sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets where state is saved after each mutation.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithState seeds the store, typically from the persisted slot.
func WithState(st State) Option {
	return func(s *Store) {
		s.state = st.Clone()
		s.state.normalize()
	}
}

// WithClock overrides the time source used for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithWarnings sets where persistence failures are reported. Defaults to stderr.
func WithWarnings(w io.Writer) Option {
	return func(s *Store) { s.warn = w }
}

// New creates a progress store.
func New(opts ...Option) *Store {
	s := &Store{
		state: NewState(),
		subs:  make(map[int]func(State)),
		warn:  os.Stderr,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Level returns a copy of one level's progress.
func (s *Store) Level(levelID int) LevelProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Level(levelID)
}

// CurrentLevel returns the highest level the learner may open.
func (s *Store) CurrentLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentLevel
}

// TotalBalance returns the virtual balance last confirmed by the backend.
func (s *Store) TotalBalance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TotalBalance
}

// IsLevelTasksComplete reports whether every task of the level is done.
func (s *Store) IsLevelTasksComplete(levelID int) bool {
	l, ok := levels.Get(levelID)
	if !ok {
		return false
	}
	return TasksComplete(s.Level(levelID).TasksCompleted, l.RequiredTaskIDs())
}

// Error returns the last error message, or "" if none.
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Loading reports whether a hydration is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetProgress merges an authoritative snapshot and clears the error slot.
// CurrentLevel never decreases.
func (s *Store) SetProgress(p Partial) {
	s.mutate(true, func(st *State) {
		if p.CurrentLevel != nil && *p.CurrentLevel > st.CurrentLevel {
			st.CurrentLevel = *p.CurrentLevel
		}
		if p.TotalBalance != nil {
			st.TotalBalance = *p.TotalBalance
		}
		for id, incoming := range p.Levels {
			lp := incoming.Clone()
			if prev, ok := st.Levels[id]; ok && prev.CompletedAt != nil && lp.IsCompleted {
				t := *prev.CompletedAt
				lp.CompletedAt = &t
			}
			st.Levels[id] = &lp
		}
		if p.Badges != nil {
			st.Badges = append([]Badge(nil), p.Badges...)
		}
		st.normalize()
	}, func() {
		s.errMsg = ""
		s.loading = false
	})
}

// UpdateLevelTasks replaces the completed task set of a level.
func (s *Store) UpdateLevelTasks(levelID int, taskIDs []int) {
	s.mutate(true, func(st *State) {
		lp := levelFor(st, levelID)
		lp.TasksCompleted = NewTaskSet(taskIDs...)
	}, nil)
}

// ToggleTask flips one task of a level and returns the new set.
func (s *Store) ToggleTask(levelID, taskID int) TaskSet {
	var out TaskSet
	s.mutate(true, func(st *State) {
		lp := levelFor(st, levelID)
		lp.TasksCompleted = ToggleTask(lp.TasksCompleted, taskID)
		out = lp.TasksCompleted.Clone()
	}, nil)
	return out
}

// MarkAllTasksComplete completes every task declared for the level and
// returns the resulting set.
func (s *Store) MarkAllTasksComplete(levelID int) TaskSet {
	l, ok := levels.Get(levelID)
	if !ok {
		return s.Level(levelID).TasksCompleted
	}
	var out TaskSet
	s.mutate(true, func(st *State) {
		lp := levelFor(st, levelID)
		lp.TasksCompleted = NewTaskSet(append(lp.TasksCompleted.Clone(), l.RequiredTaskIDs()...)...)
		out = lp.TasksCompleted.Clone()
	}, nil)
	return out
}

// SubmitQuiz records a quiz attempt. It never marks the level complete.
func (s *Store) SubmitQuiz(levelID int, answers quiz.Answers, score, total int) {
	if score > total {
		score = total
	}
	s.mutate(true, func(st *State) {
		lp := levelFor(st, levelID)
		lp.QuizAnswers = answers.Clone()
		lp.QuizScore = score
		lp.TotalQuestions = total
	}, nil)
}

// CompleteLevel applies a confirmed reward settlement. It is the only
// action that marks a level complete.
func (s *Store) CompleteLevel(levelID, newBalance int, badge Badge) {
	s.mutate(true, func(st *State) {
		lp := levelFor(st, levelID)
		lp.IsCompleted = true
		if lp.CompletedAt == nil {
			t := s.now()
			lp.CompletedAt = &t
		}
		if levelID+1 > st.CurrentLevel {
			st.CurrentLevel = levelID + 1
		}
		if newBalance >= 0 {
			st.TotalBalance = newBalance
		}
		badge.LevelID = levelID
		if badge.EarnedAt.IsZero() {
			badge.EarnedAt = s.now()
		}
		st.Badges = dedupeBadges(upsertBadge(st.Badges, badge))
	}, nil)
}

// ResetQuiz clears the quiz state of a level so it can be retaken.
// Completed tasks are kept.
func (s *Store) ResetQuiz(levelID int) {
	s.mutate(true, func(st *State) {
		lp := levelFor(st, levelID)
		lp.QuizAnswers = nil
		lp.QuizScore = 0
		lp.TotalQuestions = 0
		lp.IsCompleted = false
		lp.CompletedAt = nil
	}, nil)
}

// SetError stores msg in the error slot, replacing any previous message.
func (s *Store) SetError(msg string) {
	s.mutate(false, nil, func() { s.errMsg = msg })
}

// ClearError empties the error slot.
func (s *Store) ClearError() {
	s.SetError("")
}

// SetLoading marks a hydration as started or finished.
func (s *Store) SetLoading(loading bool) {
	s.mutate(false, nil, func() { s.loading = loading })
}

// Subscribe registers fn to be called with a snapshot after every
// mutation. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// WaitPersisted blocks until every scheduled persistence write has finished.
func (s *Store) WaitPersisted() {
	s.pending.Wait()
}

// mutate applies change to the persisted state and flags to the transient
// fields, then persists (if persist is set) and notifies subscribers.
func (s *Store) mutate(persist bool, change func(*State), flags func()) {
	s.mu.Lock()
	if change != nil {
		change(&s.state)
	}
	if flags != nil {
		flags()
	}
	snap := s.state.Clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	if persist {
		s.schedulePersistLocked(snap)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.Clone())
	}
}

// schedulePersistLocked hands a snapshot to the persister in the
// background. Older snapshots never overwrite newer ones.
func (s *Store) schedulePersistLocked(snap State) {
	if s.persister == nil {
		return
	}
	s.version++
	v := s.version
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if v < s.persisted {
			return
		}
		if err := s.persister.SaveProgress(context.Background(), snap); err != nil {
			fmt.Fprintf(s.warn, "warning: failed to persist progress: %v\n", err)
			return
		}
		s.persisted = v
	}()
}

func levelFor(st *State, levelID int) *LevelProgress {
	lp, ok := st.Levels[levelID]
	if !ok || lp == nil {
		lp = &LevelProgress{}
		st.Levels[levelID] = lp
	}
	return lp
}
