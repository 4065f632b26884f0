package home

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/investory/internal/chat"
	"github.com/abhisek/investory/internal/levels"
	"github.com/abhisek/investory/internal/market"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/screens/history"
	levelscreen "github.com/abhisek/investory/internal/screens/level"
	tutorscreen "github.com/abhisek/investory/internal/screens/tutor"
	"github.com/abhisek/investory/internal/screens/ticker"
	"github.com/abhisek/investory/internal/settlement"
	"github.com/abhisek/investory/internal/store"
	"github.com/abhisek/investory/internal/ui/components"
	"github.com/abhisek/investory/internal/ui/layout"
)

// Deps are the services the home screen hands to the screens it opens.
// Nil Feed, Assistant or Events disable the matching menu entry.
type Deps struct {
	Settlement *settlement.Service
	Watchlist  ticker.WatchlistClient
	Feed       *market.Feed
	Assistant  *chat.Assistant
	Events     store.EventRepo
}

type levelRow struct {
	id    int
	title string
	phase settlement.Phase
}

// HomeScreen is the level map.
type HomeScreen struct {
	deps Deps
	rows []levelRow
	menu components.Menu
}

var _ screen.Screen = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(deps Deps) *HomeScreen {
	h := &HomeScreen{deps: deps}
	h.rebuild()
	return h
}

// rebuild recomputes level phases and the menu, keeping the cursor.
func (h *HomeScreen) rebuild() {
	selected := -1
	if h.menu.Items != nil {
		selected = h.menu.Selected
	}

	h.rows = h.rows[:0]
	var items []components.MenuItem
	for _, l := range levels.All() {
		row := levelRow{id: l.ID, title: l.Title, phase: h.deps.Settlement.Phase(l.ID)}
		h.rows = append(h.rows, row)
		items = append(items, components.MenuItem{
			Label:    l.Title,
			Disabled: row.phase == settlement.PhaseLocked,
			Action:   h.openLevel(l),
		})
	}

	extra := func(label string, enabled bool, open func() screen.Screen) {
		items = append(items, components.MenuItem{
			Label:    label,
			Disabled: !enabled,
			Action:   push(open),
		})
	}
	extra("MARKET TICKER", h.deps.Feed != nil, func() screen.Screen {
		return ticker.New(h.deps.Feed, h.deps.Watchlist)
	})
	extra("ASK THE TUTOR", h.deps.Assistant != nil, func() screen.Screen {
		return tutorscreen.New(h.deps.Assistant)
	})
	extra("ACTIVITY", h.deps.Events != nil, func() screen.Screen {
		return history.New(h.deps.Events)
	})
	items = append(items, components.MenuItem{Label: "EXIT", Action: func() tea.Cmd { return tea.Quit }})

	h.menu = components.NewMenu(items)
	if selected >= 0 && selected < len(items) && !items[selected].Disabled {
		h.menu.Selected = selected
	} else {
		h.menu.Selected = h.defaultSelection()
	}
}

// defaultSelection points at the learner's current level, or the last
// open one.
func (h *HomeScreen) defaultSelection() int {
	current := h.deps.Settlement.Store().CurrentLevel()
	best := h.menu.Selected
	for i, r := range h.rows {
		if r.phase == settlement.PhaseLocked {
			continue
		}
		best = i
		if r.id == current {
			return i
		}
	}
	return best
}

func (h *HomeScreen) openLevel(l levels.Level) func() tea.Cmd {
	return push(func() screen.Screen {
		return levelscreen.New(h.deps.Settlement, l)
	})
}

func push(open func() screen.Screen) func() tea.Cmd {
	return func() tea.Cmd {
		s := open()
		return func() tea.Msg { return router.PushScreenMsg{Screen: s} }
	}
}

func (h *HomeScreen) Init() tea.Cmd {
	return nil
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if _, ok := msg.(router.RefreshMsg); ok {
		h.rebuild()
		return h, nil
	}
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	// height is the content area; add back header and footer.
	compact := layout.IsCompact(width, height+8)
	cw := components.ContentWidth(width)

	st := h.deps.Settlement.Store().Snapshot()
	stats := layout.Stats{Balance: st.TotalBalance, Badges: len(st.Badges), Level: st.CurrentLevel}

	sections := []string{
		renderTitle(cw, compact),
		components.StatsBar(statsLine(stats, compact), cw),
		components.Card(renderMap(h.rows, h.menu.Items[len(h.rows):], h.menu.Selected, cw-4), cw),
	}
	return components.CabinetFrame(strings.Join(sections, "\n\n"), width, height)
}

func (h *HomeScreen) Title() string {
	return "Level Map"
}
