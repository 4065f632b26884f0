// Package summary shows the reward for a completed level.
package summary

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/settlement"
	"github.com/abhisek/investory/internal/ui/components"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/abhisek/investory/internal/ui/theme"
)

// SummaryScreen displays a settled reward.
type SummaryScreen struct {
	reward *settlement.Reward
	level  levels.Level
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(reward *settlement.Reward, level levels.Level) *SummaryScreen {
	return &SummaryScreen{reward: reward, level: level}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Level Complete"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Level map"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc", "space":
			return s, func() tea.Msg { return router.PopToRootMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	r := s.reward
	if r == nil {
		return ""
	}
	cw := components.ContentWidth(width)

	var b strings.Builder
	b.WriteString(components.Banner(fmt.Sprintf("LEVEL %d COMPLETE", r.LevelID), cw))
	b.WriteString("\n\n")
	b.WriteString(theme.Subtitle.Width(cw).Render(s.level.Title))
	b.WriteString("\n\n")

	award := r.MoneyAwarded
	if r.AlreadyCompleted {
		award = s.level.RewardMoney
	}
	money := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	badge := lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Bold(true)

	lines := []string{
		money.Render("+" + layout.FormatMoney(award)),
		badge.Render("★ " + r.Badge.BadgeName),
		theme.Body.Render("Balance " + layout.FormatMoney(r.NewBalance)),
	}
	if r.AlreadyCompleted {
		lines = append(lines, theme.Hint.Render("Already claimed earlier"))
	}
	b.WriteString(components.Card(lipgloss.NewStyle().Width(cw-4).Align(lipgloss.Center).
		Render(strings.Join(lines, "\n")), cw))

	if next, ok := levels.Get(r.LevelID + 1); ok {
		b.WriteString("\n\n")
		b.WriteString(theme.Hint.Width(cw).Align(lipgloss.Center).Render("Unlocked: " + next.Title))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, b.String())
}
