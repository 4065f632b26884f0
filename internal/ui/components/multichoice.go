package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/ui/theme"
)

// MultiChoice is a multiple-choice selector. Enter records the highlighted
// option; the choice can be changed until the quiz is graded with Reveal.
type MultiChoice struct {
	Question    string
	Options     []string
	Selected    int
	ChosenIndex int

	revealed     bool
	correctIndex int
}

// NewMultiChoice creates a new multiple-choice component with nothing chosen.
func NewMultiChoice(question string, options []string) MultiChoice {
	return MultiChoice{
		Question:    question,
		Options:     options,
		ChosenIndex: -1,
	}
}

// Update handles keyboard navigation and selection.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	if m.revealed {
		return m, nil
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key := kmsg.String(); key {
	case "up", "k":
		if m.Selected > 0 {
			m.Selected--
		}
	case "down", "j":
		if m.Selected < len(m.Options)-1 {
			m.Selected++
		}
	case "enter", "space":
		m.ChosenIndex = m.Selected
	default:
		// a, b, c, d pick directly.
		if len(key) == 1 && key[0] >= 'a' && int(key[0]-'a') < len(m.Options) {
			m.Selected = int(key[0] - 'a')
			m.ChosenIndex = m.Selected
		}
	}

	return m, nil
}

// Answered reports whether an option has been chosen.
func (m MultiChoice) Answered() bool {
	return m.ChosenIndex >= 0
}

// Reveal locks the component and marks the correct option.
func (m *MultiChoice) Reveal(correctIndex int) {
	m.revealed = true
	m.correctIndex = correctIndex
}

// IsCorrect returns true once revealed if the chosen option was correct.
func (m MultiChoice) IsCorrect() bool {
	return m.revealed && m.ChosenIndex == m.correctIndex
}

// View renders the multiple-choice component.
func (m MultiChoice) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(m.Question))
	b.WriteString("\n\n")

	for i, opt := range m.Options {
		prefix := "  "
		if i == m.Selected && !m.revealed {
			prefix = "▸ "
		}
		mark := " "
		if i == m.ChosenIndex {
			mark = "●"
		}
		line := fmt.Sprintf("%s%s %c)  %s", prefix, mark, 'A'+rune(i), opt)

		var style lipgloss.Style
		switch {
		case m.revealed && i == m.correctIndex:
			style = theme.Correct
		case m.revealed && i == m.ChosenIndex:
			style = theme.Incorrect
		case m.revealed:
			style = theme.Locked
		case i == m.Selected:
			style = theme.Selected
		default:
			style = theme.Unselected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	return b.String()
}
