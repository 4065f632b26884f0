// Package history shows the local activity log: backend calls, tutor
// requests and level settlements.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/store"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/abhisek/investory/internal/ui/theme"
)

const pageSize = 50

// kindFilters cycles with the F key; "" shows everything.
var kindFilters = []string{"", store.KindSettlement, store.KindAPICall, store.KindLLMRequest}

type historyLoadedMsg struct {
	Events []store.Event
	Err    error
}

// HistoryScreen displays recent events, newest first.
type HistoryScreen struct {
	eventRepo store.EventRepo
	events    []store.Event
	filter    int
	selected  int
	expanded  map[int64]bool
	loaded    bool
	errMsg    string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(eventRepo store.EventRepo) *HistoryScreen {
	return &HistoryScreen{
		eventRepo: eventRepo,
		expanded:  make(map[int64]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return s.load()
}

func (s *HistoryScreen) load() tea.Cmd {
	repo, kind := s.eventRepo, kindFilters[s.filter]
	return func() tea.Msg {
		events, err := repo.Query(context.Background(), store.QueryOpts{Limit: pageSize, Kind: kind})
		return historyLoadedMsg{Events: events, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "Activity"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "F", Description: "Filter"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.errMsg = ""
			s.events = msg.Events
		}
		s.loaded = true
		s.selected = min(s.selected, max(len(s.events)-1, 0))
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.events)-1 {
				s.selected++
			}
		case "enter":
			if s.selected < len(s.events) {
				seq := s.events[s.selected].Sequence
				s.expanded[seq] = !s.expanded[seq]
			}
		case "f":
			s.filter = (s.filter + 1) % len(kindFilters)
			s.selected = 0
			s.loaded = false
			return s, s.load()
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)
	if s.errMsg != "" {
		return center.Foreground(theme.Error).Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return center.Foreground(theme.TextDim).Render("\n\n  Loading activity...")
	}

	var b strings.Builder
	label := "all"
	if k := kindFilters[s.filter]; k != "" {
		label = k
	}
	b.WriteString(center.Foreground(theme.TextDim).Render("showing: " + label))
	b.WriteString("\n\n")

	if len(s.events) == 0 {
		b.WriteString(center.Foreground(theme.TextDim).Italic(true).
			Render("No activity yet. Open a level to get started!"))
		return b.String()
	}

	for i, ev := range s.events {
		mark := theme.Correct.Render("✓")
		if !ev.Success {
			mark = theme.Incorrect.Render("✗")
		}
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(kindColor(ev.Kind))
		if i == s.selected {
			prefix = "> "
			style = style.Bold(true)
		}
		line := fmt.Sprintf("%s%s  %-11s %s", prefix, ev.Timestamp.Local().Format("Jan 02 15:04"), ev.Kind, ev.Summary)
		if ev.LatencyMs > 0 {
			line += fmt.Sprintf("  %dms", ev.LatencyMs)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, mark+" "+style.Render(line)))
		b.WriteString("\n")

		if s.expanded[ev.Sequence] {
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
				theme.Hint.Render(indent(prettyData(ev.Data), "      "))))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func prettyData(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func kindColor(kind string) color.Color {
	switch kind {
	case store.KindSettlement:
		return theme.Accent
	case store.KindLLMRequest:
		return theme.Secondary
	default:
		return theme.Text
	}
}
