package progress

import (
	"sort"
	"time"

	"github.com/abhisek/investory/internal/quiz"
)

// LevelProgress is the learner's progress within a single level.
type LevelProgress struct {
	TasksCompleted TaskSet      `json:"tasksCompleted"`
	QuizAnswers    quiz.Answers `json:"quizAnswers,omitempty"`
	QuizScore      int          `json:"quizScore"`
	TotalQuestions int          `json:"totalQuestions"`
	IsCompleted    bool         `json:"isCompleted"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

// Clone returns a deep copy.
func (lp LevelProgress) Clone() LevelProgress {
	out := lp
	out.TasksCompleted = lp.TasksCompleted.Clone()
	out.QuizAnswers = lp.QuizAnswers.Clone()
	if lp.CompletedAt != nil {
		t := *lp.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// HasQuizAttempt reports whether a quiz outcome has been recorded.
func (lp LevelProgress) HasQuizAttempt() bool {
	return lp.TotalQuestions > 0
}

// Badge is the achievement awarded once per completed level.
type Badge struct {
	LevelID   int       `json:"levelId"`
	BadgeName string    `json:"badgeName"`
	EarnedAt  time.Time `json:"earnedAt"`
}

// State is the persisted portion of the progress store.
type State struct {
	CurrentLevel int                    `json:"currentLevel"`
	TotalBalance int                    `json:"totalBalance"`
	Levels       map[int]*LevelProgress `json:"levels"`
	Badges       []Badge                `json:"badges"`
}

// NewState returns the state of a learner who has not started yet.
func NewState() State {
	return State{
		CurrentLevel: 1,
		Levels:       make(map[int]*LevelProgress),
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		CurrentLevel: s.CurrentLevel,
		TotalBalance: s.TotalBalance,
		Levels:       make(map[int]*LevelProgress, len(s.Levels)),
	}
	for id, lp := range s.Levels {
		if lp == nil {
			continue
		}
		c := lp.Clone()
		out.Levels[id] = &c
	}
	if s.Badges != nil {
		out.Badges = append([]Badge(nil), s.Badges...)
	}
	return out
}

// Level returns a copy of the level's progress, or the zero value if the
// level has not been touched yet.
func (s State) Level(levelID int) LevelProgress {
	if lp, ok := s.Levels[levelID]; ok && lp != nil {
		return lp.Clone()
	}
	return LevelProgress{}
}

// Badge returns the badge earned for a level, if any.
func (s State) Badge(levelID int) (Badge, bool) {
	for _, b := range s.Badges {
		if b.LevelID == levelID {
			return b, true
		}
	}
	return Badge{}, false
}

// normalize repairs fields that may be missing or out of range after
// decoding persisted or remote data.
func (s *State) normalize() {
	if s.CurrentLevel < 1 {
		s.CurrentLevel = 1
	}
	if s.TotalBalance < 0 {
		s.TotalBalance = 0
	}
	if s.Levels == nil {
		s.Levels = make(map[int]*LevelProgress)
	}
	for id, lp := range s.Levels {
		if lp == nil {
			delete(s.Levels, id)
			continue
		}
		lp.TasksCompleted = NewTaskSet(lp.TasksCompleted...)
		if lp.QuizScore > lp.TotalQuestions {
			lp.QuizScore = lp.TotalQuestions
		}
	}
	s.Badges = dedupeBadges(s.Badges)
}

// upsertBadge replaces any badge for the same level, otherwise appends.
func upsertBadge(badges []Badge, b Badge) []Badge {
	for i := range badges {
		if badges[i].LevelID == b.LevelID {
			out := append([]Badge(nil), badges...)
			out[i] = b
			return out
		}
	}
	return append(append([]Badge(nil), badges...), b)
}

// dedupeBadges keeps the last badge per level, ordered by level.
func dedupeBadges(badges []Badge) []Badge {
	if len(badges) == 0 {
		return badges
	}
	var out []Badge
	for _, b := range badges {
		out = upsertBadge(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LevelID < out[j].LevelID })
	return out
}
