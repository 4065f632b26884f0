// Package tutor is the chat screen for asking investing questions.
package tutor

import (
	"context"
	"errors"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/chat"
	"github.com/abhisek/investory/internal/llm"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/ui/components"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/abhisek/investory/internal/ui/theme"
)

type replyMsg struct {
	Reply *chat.Reply
	Err   error
}

// TutorScreen is a conversation with the tutor.
type TutorScreen struct {
	assistant *chat.Assistant
	input     components.TextInput
	followUps []string
	nextHint  int
	pending   string
	busy      bool
	errMsg    string
}

var _ screen.Screen = (*TutorScreen)(nil)
var _ screen.KeyHintProvider = (*TutorScreen)(nil)

// New creates a TutorScreen over an existing conversation.
func New(assistant *chat.Assistant) *TutorScreen {
	return &TutorScreen{
		assistant: assistant,
		input:     components.NewTextInput("Ask about stocks, IPOs, risk...", 500),
	}
}

func (s *TutorScreen) Init() tea.Cmd {
	return s.input.Init()
}

func (s *TutorScreen) Title() string {
	return "Tutor"
}

func (s *TutorScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{{Key: "Enter", Description: "Ask"}}
	if len(s.followUps) > 0 {
		hints = append(hints, layout.KeyHint{Key: "Tab", Description: "Suggestion"})
	}
	return append(hints,
		layout.KeyHint{Key: "Ctrl+R", Description: "New chat"},
		layout.KeyHint{Key: "Esc", Description: "Back"},
	)
}

func (s *TutorScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case replyMsg:
		s.busy = false
		s.pending = ""
		if msg.Err != nil {
			s.errMsg = describe(msg.Err)
			return s, nil
		}
		s.errMsg = ""
		s.followUps = msg.Reply.FollowUps
		s.nextHint = 0
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "ctrl+r":
			if !s.busy {
				s.assistant.Reset()
				s.followUps = nil
				s.errMsg = ""
			}
			return s, nil
		case "tab":
			if len(s.followUps) > 0 {
				s.input.Model.SetValue(s.followUps[s.nextHint%len(s.followUps)])
				s.input.Model.CursorEnd()
				s.nextHint++
			}
			return s, nil
		case "enter":
			question := s.input.Value()
			if s.busy || question == "" {
				return s, nil
			}
			s.busy = true
			s.pending = question
			s.errMsg = ""
			s.input.Reset()
			return s, s.ask(question)
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *TutorScreen) ask(question string) tea.Cmd {
	a := s.assistant
	return func() tea.Msg {
		reply, err := a.Ask(context.Background(), question)
		return replyMsg{Reply: reply, Err: err}
	}
}

func describe(err error) string {
	var llmErr *llm.ErrProviderUnavailable
	switch {
	case errors.As(err, &llmErr):
		return "The tutor is unavailable right now. Try again in a moment."
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Type a question first."
	default:
		return api.UserMessage(err)
	}
}

func (s *TutorScreen) View(width, height int) string {
	cw := components.ContentWidth(width)

	var lines []string
	for _, t := range s.assistant.History() {
		lines = append(lines, renderTurn(t.Role, t.Content, cw))
	}
	if s.pending != "" {
		lines = append(lines, renderTurn(llm.RoleUser, s.pending, cw))
		lines = append(lines, theme.Hint.Render("Tutor is thinking..."))
	}
	if len(lines) == 0 {
		lines = append(lines, theme.Hint.Render("Ask anything about investing. Answers are educational, not financial advice."))
	}

	var footer []string
	if len(s.followUps) > 0 && !s.busy {
		footer = append(footer, theme.Subtitle.Render("Try asking:"))
		for _, f := range s.followUps {
			footer = append(footer, theme.Hint.Render("  · "+f))
		}
	}
	if s.errMsg != "" {
		footer = append(footer, theme.ErrorText.Render(s.errMsg))
	}
	s.input.SetWidth(cw - 6)
	footer = append(footer, components.Card(s.input.View(), cw))
	bottom := strings.Join(footer, "\n")

	// Keep the newest turns on screen.
	convo := strings.Join(lines, "\n\n")
	room := height - lipgloss.Height(bottom) - 1
	if over := lipgloss.Height(convo) - room; over > 0 && room > 0 {
		convo = strings.Join(strings.Split(convo, "\n")[over:], "\n")
	}

	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(
		lipgloss.NewStyle().Width(cw).Render(convo + "\n\n" + bottom))
}

func renderTurn(role llm.Role, content string, cw int) string {
	if role == llm.RoleUser {
		return lipgloss.NewStyle().Width(cw).Align(lipgloss.Right).Foreground(theme.ArcadeCyan).
			Render(content)
	}
	return lipgloss.NewStyle().Width(cw).Foreground(theme.Text).
		Render(lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("Tutor ") + content)
}
