// Package level is the screen for working through one level: story,
// tasks, quiz and reward.
package level

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/quiz"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/screens/summary"
	"github.com/abhisek/investory/internal/settlement"
	"github.com/abhisek/investory/internal/ui/components"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/abhisek/investory/internal/ui/theme"
)

// requestTimeout bounds the progress reload on mount.
const requestTimeout = 30 * time.Second

type mode int

const (
	modeTasks mode = iota
	modeQuiz
	modeResult
)

type submittedMsg struct {
	Result quiz.Result
	Err    error
}

type settledMsg struct {
	Reward *settlement.Reward
	Err    error
}

type retriedMsg struct {
	Err error
}

type hydratedMsg struct {
	Err error
}

// LevelScreen drives one level through the settlement service.
type LevelScreen struct {
	svc   *settlement.Service
	level levels.Level

	mode       mode
	taskCursor int
	questions  []components.MultiChoice
	qIndex     int
	result     *quiz.Result
	busy       bool
	errMsg     string
}

var _ screen.Screen = (*LevelScreen)(nil)
var _ screen.KeyHintProvider = (*LevelScreen)(nil)

// New creates a LevelScreen. A level with a recorded quiz attempt opens on
// the result.
func New(svc *settlement.Service, l levels.Level) *LevelScreen {
	s := &LevelScreen{svc: svc, level: l}
	s.showRecordedResult()
	return s
}

// showRecordedResult switches the tasks view to the result of a recorded
// quiz attempt.
func (s *LevelScreen) showRecordedResult() {
	lp := s.svc.Store().Level(s.level.ID)
	if s.mode != modeTasks || !lp.HasQuizAttempt() || lp.IsCompleted {
		return
	}
	r := quiz.Evaluate(s.level.AnswerKey(), lp.QuizAnswers)
	s.result = &r
	s.mode = modeResult
}

// Init reloads progress from the backend so the screen reflects changes
// made in other sessions.
func (s *LevelScreen) Init() tea.Cmd {
	svc := s.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return hydratedMsg{Err: svc.Hydrate(ctx)}
	}
}

func (s *LevelScreen) Title() string {
	return fmt.Sprintf("Level %d: %s", s.level.ID, s.level.Title)
}

func (s *LevelScreen) KeyHints() []layout.KeyHint {
	switch s.mode {
	case modeQuiz:
		return []layout.KeyHint{
			{Key: "A-D", Description: "Answer"},
			{Key: "←→", Description: "Question"},
			{Key: "S", Description: "Submit"},
			{Key: "Esc", Description: "Back"},
		}
	case modeResult:
		if s.result != nil && s.result.Passed {
			return []layout.KeyHint{
				{Key: "C", Description: "Claim reward"},
				{Key: "Esc", Description: "Back"},
			}
		}
		return []layout.KeyHint{
			{Key: "R", Description: "Retry quiz"},
			{Key: "Esc", Description: "Back"},
		}
	}
	hints := []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Space", Description: "Toggle task"},
	}
	if !s.completed() {
		hints = append(hints, layout.KeyHint{Key: "Q", Description: "Start quiz"})
	}
	return append(hints, layout.KeyHint{Key: "Esc", Description: "Back"})
}

func (s *LevelScreen) completed() bool {
	return s.svc.Store().Level(s.level.ID).IsCompleted
}

func (s *LevelScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case hydratedMsg:
		// Failures are on the store's error line.
		if msg.Err == nil && !s.busy {
			s.showRecordedResult()
		}
		return s, nil

	case submittedMsg:
		s.busy = false
		if msg.Err != nil && msg.Result.Total == 0 {
			s.errMsg = describe(msg.Err)
			return s, nil
		}
		// The attempt is recorded locally even if the backend save failed.
		if msg.Err != nil {
			s.errMsg = describe(msg.Err)
		}
		r := msg.Result
		s.result = &r
		for i := range s.questions {
			s.questions[i].Reveal(s.level.Questions[i].CorrectOption)
		}
		s.mode = modeResult
		return s, nil

	case settledMsg:
		s.busy = false
		if msg.Err != nil {
			s.errMsg = describe(msg.Err)
			return s, nil
		}
		reward := summary.New(msg.Reward, s.level)
		return s, func() tea.Msg { return router.ReplaceScreenMsg{Screen: reward} }

	case retriedMsg:
		s.busy = false
		if msg.Err != nil {
			s.errMsg = describe(msg.Err)
			return s, nil
		}
		s.result = nil
		s.startQuiz()
		return s, nil

	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		if msg.String() == "esc" {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
		switch s.mode {
		case modeTasks:
			return s, s.updateTasks(msg)
		case modeQuiz:
			return s, s.updateQuiz(msg)
		case modeResult:
			return s, s.updateResult(msg)
		}
	}
	return s, nil
}

func (s *LevelScreen) updateTasks(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if s.taskCursor > 0 {
			s.taskCursor--
		}
	case "down", "j":
		if s.taskCursor < len(s.level.Tasks)-1 {
			s.taskCursor++
		}
	case "space", "enter", "x":
		task := s.level.Tasks[s.taskCursor]
		if _, err := s.svc.ToggleTask(s.level.ID, task.ID); err != nil {
			s.errMsg = describe(err)
		}
	case "q":
		if err := s.svc.StartQuiz(s.level.ID); err != nil {
			s.errMsg = describe(err)
			return nil
		}
		s.startQuiz()
	}
	return nil
}

func (s *LevelScreen) startQuiz() {
	s.questions = make([]components.MultiChoice, len(s.level.Questions))
	for i, q := range s.level.Questions {
		s.questions[i] = components.NewMultiChoice(q.Text, q.Options)
	}
	s.qIndex = 0
	s.errMsg = ""
	s.mode = modeQuiz
}

func (s *LevelScreen) updateQuiz(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "left", "p":
		if s.qIndex > 0 {
			s.qIndex--
		}
		return nil
	case "right", "n", "tab":
		if s.qIndex < len(s.questions)-1 {
			s.qIndex++
		}
		return nil
	case "s":
		answers := make(quiz.Answers, len(s.questions))
		for i, mc := range s.questions {
			if mc.Answered() {
				answers[s.level.Questions[i].ID] = mc.ChosenIndex
			}
		}
		s.busy = true
		s.errMsg = ""
		return s.submit(answers)
	}

	var cmd tea.Cmd
	before := s.questions[s.qIndex].ChosenIndex
	s.questions[s.qIndex], cmd = s.questions[s.qIndex].Update(msg)
	// Move on after a fresh answer.
	if before < 0 && s.questions[s.qIndex].Answered() && s.qIndex < len(s.questions)-1 {
		s.qIndex++
	}
	return cmd
}

func (s *LevelScreen) updateResult(msg tea.KeyMsg) tea.Cmd {
	if s.result == nil {
		return nil
	}
	switch msg.String() {
	case "c":
		if s.result.Passed {
			s.busy = true
			s.errMsg = ""
			return s.settle()
		}
	case "r":
		if !s.result.Passed {
			s.busy = true
			s.errMsg = ""
			return s.retry()
		}
	}
	return nil
}

func (s *LevelScreen) submit(answers quiz.Answers) tea.Cmd {
	svc, id := s.svc, s.level.ID
	return func() tea.Msg {
		r, err := svc.SubmitQuiz(context.Background(), id, answers)
		return submittedMsg{Result: r, Err: err}
	}
}

func (s *LevelScreen) settle() tea.Cmd {
	svc, id := s.svc, s.level.ID
	return func() tea.Msg {
		reward, err := svc.Settle(context.Background(), id)
		return settledMsg{Reward: reward, Err: err}
	}
}

func (s *LevelScreen) retry() tea.Cmd {
	svc, id := s.svc, s.level.ID
	return func() tea.Msg {
		return retriedMsg{Err: svc.Retry(context.Background(), id)}
	}
}

func describe(err error) string {
	var verr *settlement.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Reason
	case errors.Is(err, settlement.ErrSettlementInFlight):
		return "Reward claim already in progress"
	default:
		return api.UserMessage(err)
	}
}

func (s *LevelScreen) View(width, height int) string {
	cw := components.ContentWidth(width)

	var body string
	switch s.mode {
	case modeQuiz:
		body = s.viewQuiz(cw)
	case modeResult:
		body = s.viewResult(cw)
	default:
		body = s.viewTasks(cw)
	}

	var status string
	switch {
	case s.busy:
		status = theme.Hint.Render(s.svc.Phase(s.level.ID).Label() + "...")
	case s.errMsg != "":
		status = theme.ErrorText.Render(s.errMsg)
	}

	out := body
	if status != "" {
		out += "\n\n" + status
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, out)
}

func (s *LevelScreen) viewTasks(cw int) string {
	var b strings.Builder
	b.WriteString(components.Card(theme.Body.Width(cw-4).Render(s.level.Story), cw))
	b.WriteString("\n\n")

	lp := s.svc.Store().Level(s.level.ID)
	for i, t := range s.level.Tasks {
		box := "[ ]"
		if lp.TasksCompleted.Contains(t.ID) {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, t.Title)
		if i == s.taskCursor {
			b.WriteString(theme.Selected.Render("▸ " + line))
		} else {
			b.WriteString(theme.Unselected.Render("  " + line))
		}
		b.WriteString("\n")
	}

	done := 0
	for _, t := range s.level.Tasks {
		if lp.TasksCompleted.Contains(t.ID) {
			done++
		}
	}
	b.WriteString("\n")
	b.WriteString(components.NewTaskMeter("Tasks", done, len(s.level.Tasks), cw).View())

	if lp.IsCompleted {
		b.WriteString("\n\n")
		b.WriteString(theme.Correct.Render(fmt.Sprintf("✓ Completed · %s earned", layout.FormatMoney(s.level.RewardMoney))))
	}
	return b.String()
}

func (s *LevelScreen) viewQuiz(cw int) string {
	answered := 0
	for _, mc := range s.questions {
		if mc.Answered() {
			answered++
		}
	}
	header := theme.Subtitle.Width(cw).Render(fmt.Sprintf(
		"Question %d of %d · %d answered", s.qIndex+1, len(s.questions), answered))
	return header + "\n\n" + components.Card(s.questions[s.qIndex].View(), cw)
}

func (s *LevelScreen) viewResult(cw int) string {
	r := s.result
	var b strings.Builder
	if r.Passed {
		b.WriteString(components.Banner("QUIZ PASSED", cw))
	} else {
		b.WriteString(lipgloss.NewStyle().Width(cw).Align(lipgloss.Center).Bold(true).
			Foreground(theme.Error).Render("NOT QUITE"))
	}
	b.WriteString("\n\n")
	b.WriteString(theme.Subtitle.Width(cw).Render("Score " + r.Display()))
	b.WriteString("\n\n")

	lp := s.svc.Store().Level(s.level.ID)
	for _, q := range s.level.Questions {
		sel, ok := lp.QuizAnswers[q.ID]
		mark := theme.Incorrect.Render("✗")
		if ok && sel == q.CorrectOption {
			mark = theme.Correct.Render("✓")
		}
		b.WriteString(fmt.Sprintf("%s %s\n", mark, theme.Body.Render(q.Text)))
		if q.Explanation != "" && !(ok && sel == q.CorrectOption) {
			b.WriteString(theme.Hint.Render("   " + q.Explanation))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if r.Passed {
		b.WriteString(theme.Body.Render(fmt.Sprintf("Press C to claim %s and the %q badge.",
			layout.FormatMoney(s.level.RewardMoney), s.level.BadgeName)))
	} else {
		b.WriteString(theme.Body.Render(fmt.Sprintf("You need %.0f%% to pass. Press R to try again.", quiz.PassThreshold)))
	}
	return b.String()
}
