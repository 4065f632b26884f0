package welcome

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/router"
	"github.com/abhisek/investory/internal/screen"
	"github.com/abhisek/investory/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	phase1End    = 500 * time.Millisecond
	phase2End    = 1500 * time.Millisecond
	totalDur     = 4500 * time.Millisecond
)

// chartRows is the rising bar chart, top row first.
var chartRows = []string{
	"    ▄█",
	"   ▄██",
	" ▄ ███",
	"▄█▄███",
}

type tickMsg time.Time

// WelcomeScreen shows a splash animation before transitioning to the home
// screen.
type WelcomeScreen struct {
	homeFactory  func() screen.Screen
	elapsed      time.Duration
	tickCount    int
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen that will transition to the screen produced
// by homeFactory.
func New(homeFactory func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{
		homeFactory: homeFactory,
	}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.elapsed < totalDur {
			w.elapsed += tickInterval
		}
		w.tickCount++
		return w, tea.Tick(tickInterval, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case tea.KeyPressMsg:
		// Any key skips the rest of the animation.
		return w, w.transition()
	}

	return w, nil
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	homeScreen := w.homeFactory()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: homeScreen}
	}
}

// renderChart draws a rising bar chart, revealed column by column during
// the first phase.
func (w *WelcomeScreen) renderChart() string {
	cols := len([]rune(chartRows[0]))
	shown := cols
	if w.elapsed < phase1End {
		shown = int(w.elapsed * time.Duration(cols) / phase1End)
	}

	gain := lipgloss.NewStyle().Foreground(theme.Gain)
	var lines []string
	for _, row := range chartRows {
		r := []rune(row)
		visible := string(r[:min(shown, len(r))]) + strings.Repeat(" ", max(len(r)-shown, 0))
		lines = append(lines, gain.Render(visible))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(theme.Border).Render("──────"))
	return strings.Join(lines, "\n")
}

func (w *WelcomeScreen) View(width, height int) string {
	var sections []string

	chart := w.renderChart()

	// Phase 2+: ticker arrows blink beside the chart
	if w.elapsed >= phase1End {
		up := lipgloss.NewStyle().Foreground(theme.Gain).Render("▲")
		down := lipgloss.NewStyle().Foreground(theme.Loss).Render("▼")
		if w.tickCount%2 == 1 {
			up, down = down, up
		}
		lines := strings.Split(chart, "\n")
		lines[0] = up + "  " + lines[0] + "  " + down
		for i := 1; i < len(lines); i++ {
			lines[i] = "   " + lines[i] + "   "
		}
		chart = strings.Join(lines, "\n")
	}
	sections = append(sections, chart)

	// Phase 3+: banner, tagline and hint
	if w.elapsed >= phase2End {
		sections = append(sections, "")
		sections = append(sections, RenderBanner(width))
		sections = append(sections, "")

		tagline := lipgloss.NewStyle().
			Foreground(theme.Text).
			Bold(true).
			Render("Learn the market, one level at a time.")
		sections = append(sections, tagline)

		sections = append(sections, "")
		hint := lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Italic(true).
			Render("press any key to continue")
		sections = append(sections, hint)
	}

	content := strings.Join(sections, "\n")

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
