package devserver

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/quiz"
)

// account is one learner's server-side record.
type account struct {
	currentLevel int
	balance      int
	levels       map[int]*api.LevelProgress
	badges       []api.Badge
	watchlist    []string

	// completions replays completion responses by idempotency key.
	completions map[string]api.CompleteResponse
}

func newAccount() *account {
	return &account{
		currentLevel: 1,
		levels:       make(map[int]*api.LevelProgress),
		completions:  make(map[string]api.CompleteResponse),
	}
}

func (a *account) level(id int) *api.LevelProgress {
	lp, ok := a.levels[id]
	if !ok {
		lp = &api.LevelProgress{TasksCompleted: []int{}}
		a.levels[id] = lp
	}
	return lp
}

func (a *account) badge(levelID int) (api.Badge, bool) {
	for _, b := range a.badges {
		if b.LevelID == levelID {
			return b, true
		}
	}
	return api.Badge{}, false
}

func (a *account) snapshot() api.Progress {
	out := api.Progress{
		CurrentLevel: a.currentLevel,
		TotalBalance: a.balance,
		Progress:     make(map[int]api.LevelProgress, len(a.levels)),
		Badges:       append([]api.Badge{}, a.badges...),
	}
	for id, lp := range a.levels {
		c := *lp
		c.TasksCompleted = append([]int{}, lp.TasksCompleted...)
		if lp.QuizAnswers != nil {
			c.QuizAnswers = make(map[int]int, len(lp.QuizAnswers))
			for k, v := range lp.QuizAnswers {
				c.QuizAnswers[k] = v
			}
		}
		out.Progress[id] = c
	}
	return out
}

// accountFor returns the caller's account, creating it on first use.
// s.mu must be held.
func (s *Server) accountFor(r *http.Request) *account {
	id := userFrom(r.Context())
	a, ok := s.accounts[id]
	if !ok {
		a = newAccount()
		s.accounts[id] = a
	}
	return a
}

// levelParam resolves {id} to a catalog level the caller may access. It
// writes the error response and returns false otherwise. s.mu must be held.
func (s *Server) levelParam(w http.ResponseWriter, r *http.Request, a *account) (levels.Level, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid level id")
		return levels.Level{}, false
	}
	lvl, ok := levels.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "level %d does not exist", id)
		return levels.Level{}, false
	}
	if id > a.currentLevel {
		writeError(w, http.StatusForbidden, "level %d is locked", id)
		return levels.Level{}, false
	}
	return lvl, true
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.accountFor(r).snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateLevel(w http.ResponseWriter, r *http.Request) {
	var u api.LevelUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountFor(r)
	lvl, ok := s.levelParam(w, r, a)
	if !ok {
		return
	}
	lp := a.level(lvl.ID)

	quizFields := u.QuizAnswers != nil || u.QuizScore != nil || u.TotalQuestions != nil
	if quizFields && lp.IsCompleted {
		writeError(w, http.StatusConflict, "level %d is already completed", lvl.ID)
		return
	}

	if u.TasksCompleted != nil {
		tasks := make([]int, 0, len(*u.TasksCompleted))
		for _, id := range *u.TasksCompleted {
			if !lvl.HasTask(id) {
				writeError(w, http.StatusBadRequest, "level %d has no task %d", lvl.ID, id)
				return
			}
			if !slices.Contains(tasks, id) {
				tasks = append(tasks, id)
			}
		}
		slices.Sort(tasks)
		lp.TasksCompleted = tasks
	}
	if u.QuizAnswers != nil {
		lp.QuizAnswers = *u.QuizAnswers
	}
	if u.QuizScore != nil {
		lp.QuizScore = *u.QuizScore
	}
	if u.TotalQuestions != nil {
		lp.TotalQuestions = *u.TotalQuestions
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) resetLevel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountFor(r)
	lvl, ok := s.levelParam(w, r, a)
	if !ok {
		return
	}
	lp := a.level(lvl.ID)
	if lp.IsCompleted {
		writeError(w, http.StatusConflict, "level %d is already completed", lvl.ID)
		return
	}
	lp.QuizAnswers = nil
	lp.QuizScore = 0
	lp.TotalQuestions = 0
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// completeLevel awards the level reward once. The quiz is re-scored from
// the stored answers; the client's score is not trusted. A repeated key
// replays the original response, and completing an already completed level
// awards nothing.
func (s *Server) completeLevel(w http.ResponseWriter, r *http.Request) {
	var req api.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}
	key := r.Header.Get(api.IdempotencyHeader)

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountFor(r)

	if key != "" {
		if resp, ok := a.completions[key]; ok {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	lvl, ok := s.levelParam(w, r, a)
	if !ok {
		return
	}
	if req.RewardMoney != lvl.RewardMoney || req.BadgeName != lvl.BadgeName {
		writeError(w, http.StatusBadRequest, "reward does not match level %d", lvl.ID)
		return
	}

	lp := a.level(lvl.ID)
	var resp api.CompleteResponse
	if lp.IsCompleted {
		b, _ := a.badge(lvl.ID)
		resp = api.CompleteResponse{NewLevel: a.currentLevel, NewBalance: a.balance, BadgeEarned: b}
	} else {
		res := quiz.Evaluate(lvl.AnswerKey(), quiz.Answers(lp.QuizAnswers))
		if !res.Passed {
			writeError(w, http.StatusUnprocessableEntity, "quiz for level %d not passed (%s)", lvl.ID, res.Display())
			return
		}

		now := s.now().UTC().Truncate(time.Second)
		lp.TasksCompleted = lvl.RequiredTaskIDs()
		lp.QuizScore = res.Score
		lp.TotalQuestions = res.Total
		lp.IsCompleted = true
		lp.CompletedAt = &now

		a.balance += lvl.RewardMoney
		a.currentLevel = max(a.currentLevel, lvl.ID+1)
		badge := api.Badge{LevelID: lvl.ID, BadgeName: lvl.BadgeName, EarnedAt: now}
		a.badges = slices.DeleteFunc(a.badges, func(b api.Badge) bool { return b.LevelID == lvl.ID })
		a.badges = append(a.badges, badge)

		resp = api.CompleteResponse{
			NewLevel:     a.currentLevel,
			NewBalance:   a.balance,
			BadgeEarned:  badge,
			MoneyAwarded: lvl.RewardMoney,
		}
	}

	if key != "" {
		a.completions[key] = resp
	}
	writeJSON(w, http.StatusOK, resp)
}
