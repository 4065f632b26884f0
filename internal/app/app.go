package app

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/chat"
	"github.com/abhisek/investory/internal/market"
	"github.com/abhisek/investory/internal/progress"
	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/screens/home"
	"github.com/abhisek/investory/internal/screens/ticker"
	"github.com/abhisek/investory/internal/screens/welcome"
	"github.com/abhisek/investory/internal/settlement"
	"github.com/abhisek/investory/internal/store"
	"github.com/abhisek/investory/internal/ui/layout"
)

// Options wires the services the TUI runs on. Settlement is required.
type Options struct {
	Settlement *settlement.Service
	Watchlist  ticker.WatchlistClient
	Feed       *market.Feed
	Assistant  *chat.Assistant
	Events     store.EventRepo

	// SkipSplash opens the level map directly.
	SkipSplash bool
}

type hydratedMsg struct {
	Err error
}

type storeChangedMsg struct{}

// dismissKey clears the error line.
const dismissKey = "ctrl+x"

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router  *router.Router
	svc     *settlement.Service
	changes chan struct{}
	width   int
	height  int
}

// newAppModel creates the root model with the splash screen on top of the
// level map.
func newAppModel(opts Options) AppModel {
	deps := home.Deps{
		Settlement: opts.Settlement,
		Watchlist:  opts.Watchlist,
		Feed:       opts.Feed,
		Assistant:  opts.Assistant,
		Events:     opts.Events,
	}
	var first screen.Screen
	if opts.SkipSplash {
		first = home.New(deps)
	} else {
		first = welcome.New(func() screen.Screen { return home.New(deps) })
	}

	m := AppModel{
		router:  router.New(first),
		svc:     opts.Settlement,
		changes: make(chan struct{}, 1),
	}
	opts.Settlement.Store().Subscribe(func(progress.State) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.router.Active().Init(), m.hydrate(), m.waitForChange())
}

func (m AppModel) hydrate() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return hydratedMsg{Err: svc.Hydrate(ctx)}
	}
}

func (m AppModel) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case dismissKey:
			if st := m.svc.Store(); st.Error() != "" {
				st.ClearError()
				return m, nil
			}
		}

	case hydratedMsg:
		// Failures are already on the store's error line.
		return m, m.router.Update(router.RefreshMsg{})

	case storeChangedMsg:
		return m, tea.Batch(m.router.Update(router.RefreshMsg{}), m.waitForChange())
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	st := m.svc.Store()
	snap := st.Snapshot()
	header := layout.RenderHeader(title, layout.Stats{
		Balance: snap.TotalBalance,
		Badges:  len(snap.Badges),
		Level:   snap.CurrentLevel,
	}, m.width)

	var footerHints []layout.KeyHint
	if p, ok := active.(screen.KeyHintProvider); ok {
		footerHints = p.KeyHints()
	} else {
		footerHints = []layout.KeyHint{
			{Key: "↑↓", Description: "Navigate"},
			{Key: "Enter", Description: "Select"},
		}
	}
	if st.Error() != "" {
		footerHints = append(footerHints, layout.KeyHint{Key: "Ctrl+X", Description: "Dismiss"})
	}
	footerHints = append(footerHints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})

	footer := layout.RenderFooter(footerHints, st.Error(), m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

// Run starts the Bubble Tea program. The market feed, if any, streams for
// the life of the program; pending task writes are flushed on exit.
func Run(opts Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.Feed != nil {
		go func() { _ = opts.Feed.Run(ctx) }()
	}

	p := tea.NewProgram(newAppModel(opts))
	_, err := p.Run()
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if ferr := opts.Settlement.Close(flushCtx); ferr != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save task progress: %v\n", ferr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
