// Package ticker is the live market board with the learner's watchlist.
package ticker

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/market"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/ui/components"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/abhisek/investory/internal/ui/theme"
)

// WatchlistClient is the backend surface the ticker needs.
type WatchlistClient interface {
	Watchlist(ctx context.Context) ([]string, error)
	AddToWatchlist(ctx context.Context, symbol string) ([]string, error)
	RemoveFromWatchlist(ctx context.Context, symbol string) ([]string, error)
}

type boardChangedMsg struct{}

type watchlistMsg struct {
	Symbols []string
	Err     error
}

// TickerScreen shows indices and quotes as they stream in.
type TickerScreen struct {
	feed      *market.Feed
	watchlist WatchlistClient

	updates     chan struct{}
	done        chan struct{}
	unsubscribe func()

	watched     []string
	watchedOnly bool
	selected    int
	adding      bool
	input       components.TextInput
	errMsg      string
}

var _ screen.Screen = (*TickerScreen)(nil)
var _ screen.KeyHintProvider = (*TickerScreen)(nil)

// New creates a TickerScreen. watchlist may be nil.
func New(feed *market.Feed, watchlist WatchlistClient) *TickerScreen {
	return &TickerScreen{
		feed:      feed,
		watchlist: watchlist,
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		input:     components.NewTextInput("Symbol, e.g. TCS", 20),
	}
}

func (s *TickerScreen) Init() tea.Cmd {
	s.unsubscribe = s.feed.OnUpdate(func(market.Entry) {
		// Coalesce: one pending signal covers any number of updates.
		select {
		case s.updates <- struct{}{}:
		default:
		}
	})
	cmds := []tea.Cmd{s.wait()}
	if s.watchlist != nil {
		cmds = append(cmds, s.loadWatchlist())
	}
	return tea.Batch(cmds...)
}

func (s *TickerScreen) wait() tea.Cmd {
	updates, done := s.updates, s.done
	return func() tea.Msg {
		select {
		case <-updates:
			return boardChangedMsg{}
		case <-done:
			return nil
		}
	}
}

func (s *TickerScreen) loadWatchlist() tea.Cmd {
	wl := s.watchlist
	return func() tea.Msg {
		symbols, err := wl.Watchlist(context.Background())
		return watchlistMsg{Symbols: symbols, Err: err}
	}
}

func (s *TickerScreen) Title() string {
	return "Market Ticker"
}

func (s *TickerScreen) KeyHints() []layout.KeyHint {
	if s.adding {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Add"},
			{Key: "Esc", Description: "Cancel"},
		}
	}
	hints := []layout.KeyHint{{Key: "↑↓", Description: "Navigate"}}
	if s.watchlist != nil {
		hints = append(hints,
			layout.KeyHint{Key: "A", Description: "Watch"},
			layout.KeyHint{Key: "D", Description: "Unwatch"},
			layout.KeyHint{Key: "W", Description: "Watchlist only"},
		)
	}
	return append(hints, layout.KeyHint{Key: "Esc", Description: "Back"})
}

func (s *TickerScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case boardChangedMsg:
		return s, s.wait()

	case watchlistMsg:
		if msg.Err != nil {
			s.errMsg = api.UserMessage(msg.Err)
			return s, nil
		}
		s.errMsg = ""
		s.watched = msg.Symbols
		return s, nil

	case tea.KeyMsg:
		if s.adding {
			return s, s.updateInput(msg)
		}
		return s, s.updateBoard(msg)
	}
	return s, nil
}

func (s *TickerScreen) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		s.adding = false
		s.input.Reset()
		return nil
	case "enter":
		symbol, err := market.NormalizeSymbol(s.input.Value())
		if err != nil {
			s.errMsg = err.Error()
			return nil
		}
		s.adding = false
		s.input.Reset()
		wl := s.watchlist
		return func() tea.Msg {
			symbols, err := wl.AddToWatchlist(context.Background(), symbol)
			return watchlistMsg{Symbols: symbols, Err: err}
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *TickerScreen) updateBoard(msg tea.KeyMsg) tea.Cmd {
	rows := s.rows()
	switch msg.String() {
	case "esc":
		s.close()
		return func() tea.Msg { return router.PopScreenMsg{} }
	case "up", "k":
		if s.selected > 0 {
			s.selected--
		}
	case "down", "j":
		if s.selected < len(rows)-1 {
			s.selected++
		}
	case "w":
		if s.watchlist != nil {
			s.watchedOnly = !s.watchedOnly
			s.selected = 0
		}
	case "a":
		if s.watchlist != nil {
			s.adding = true
			s.errMsg = ""
			return s.input.Init()
		}
	case "d", "x":
		if s.watchlist == nil || s.selected >= len(rows) {
			return nil
		}
		symbol := rows[s.selected].Quote.Symbol
		if !slices.Contains(s.watched, symbol) {
			return nil
		}
		wl := s.watchlist
		return func() tea.Msg {
			symbols, err := wl.RemoveFromWatchlist(context.Background(), symbol)
			return watchlistMsg{Symbols: symbols, Err: err}
		}
	}
	return nil
}

// close stops listening to the feed. The pending wait command returns nil.
func (s *TickerScreen) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		close(s.done)
	}
}

// rows lists indices first, then stocks.
func (s *TickerScreen) rows() []market.Entry {
	board := s.feed.Board()
	if s.watchedOnly {
		return board.Filter(s.watched)
	}
	return append(board.List(market.KindIndex), board.List(market.KindQuote)...)
}

func (s *TickerScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	status := theme.Correct.Render("● LIVE")
	if !s.feed.Connected() {
		status = theme.Locked.Render("○ connecting")
	}
	b.WriteString(lipgloss.NewStyle().Width(cw).Align(lipgloss.Right).Render(status))
	b.WriteString("\n\n")

	rows := s.rows()
	if len(rows) == 0 {
		msg := "Waiting for quotes..."
		if s.watchedOnly {
			msg = "No watched symbols on the board yet."
		}
		b.WriteString(theme.Hint.Render(msg))
	}
	if s.selected >= len(rows) {
		s.selected = max(len(rows)-1, 0)
	}

	for i, e := range rows {
		b.WriteString(s.renderRow(e, i == s.selected))
		b.WriteString("\n")
	}

	if s.adding {
		b.WriteString("\n")
		b.WriteString(components.Card(s.input.View(), cw))
	}
	if s.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.ErrorText.Render(s.errMsg))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Top, b.String())
}

func (s *TickerScreen) renderRow(e market.Entry, selected bool) string {
	q := e.Quote
	star := " "
	if slices.Contains(s.watched, q.Symbol) {
		star = "★"
	}
	name := q.Symbol
	if e.Kind == market.KindIndex && q.Name != "" {
		name = q.Name
	}
	arrow := "▲"
	if q.Change < 0 {
		arrow = "▼"
	}

	prefix := "  "
	nameStyle := theme.Unselected
	if selected {
		prefix = "▸ "
		nameStyle = theme.Selected
	}
	return prefix + star + " " +
		nameStyle.Render(fmt.Sprintf("%-14s", name)) +
		theme.Body.Render(fmt.Sprintf("%12.2f  ", q.Price)) +
		theme.Movement(q.Change).Render(fmt.Sprintf("%s %+8.2f (%+.2f%%)", arrow, q.Change, q.ChangePercent))
}
