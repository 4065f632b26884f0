package home

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/settlement"
	"github.com/abhisek/investory/internal/ui/components"
	"github.com/abhisek/investory/internal/ui/layout"
	"github.com/abhisek/investory/internal/ui/theme"
)

const titleFull = `╦╔╗╔╦  ╦╔═╗╔═╗╔╦╗╔═╗╦═╗╦ ╦
║║║║╚╗╔╝║╣ ╚═╗ ║ ║ ║╠╦╝╚╦╝
╩╝╚╝ ╚╝ ╚═╝╚═╝ ╩ ╚═╝╩╚═ ╩ `

const titleCompact = "I N V E S T O R Y"

// buttonWidth is the fixed width for the non-level menu buttons.
const buttonWidth = 22

func renderTitle(cw int, compact bool) string {
	style := lipgloss.NewStyle().
		Foreground(theme.ArcadeYellow).
		Bold(true)

	art := titleFull
	if compact {
		art = titleCompact
	}
	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(style.Render(art))
}

func statsLine(stats layout.Stats, compact bool) []string {
	money := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	badge := lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Bold(true)
	level := lipgloss.NewStyle().Foreground(theme.ArcadeCyan).Bold(true)

	if compact {
		return []string{
			money.Render(layout.FormatMoney(stats.Balance)),
			badge.Render(fmt.Sprintf("★%d", stats.Badges)),
			level.Render(fmt.Sprintf("L%d", stats.Level)),
		}
	}
	return []string{
		money.Render(layout.FormatMoney(stats.Balance)),
		badge.Render(fmt.Sprintf("★ %d BADGES", stats.Badges)),
		level.Render(fmt.Sprintf("▲ LEVEL %d", stats.Level)),
	}
}

// phaseMark is the glyph shown next to a level on the map.
func phaseMark(p settlement.Phase) string {
	switch p {
	case settlement.PhaseCompleted:
		return theme.Correct.Render("✓")
	case settlement.PhaseLocked:
		return theme.Locked.Render("⊘")
	case settlement.PhaseQuizPassed:
		return lipgloss.NewStyle().Foreground(theme.Accent).Render("₹")
	case settlement.PhaseQuizFailed:
		return theme.Incorrect.Render("✗")
	default:
		return lipgloss.NewStyle().Foreground(theme.ArcadeCyan).Render("●")
	}
}

// renderMap draws the level rows followed by the extra buttons. selected
// indexes the combined list.
func renderMap(rows []levelRow, extras []components.MenuItem, selected, cw int) string {
	var lines []string
	for i, r := range rows {
		label := fmt.Sprintf("%d  %-26s %s", r.id, r.title, phaseMark(r.phase))
		switch {
		case r.phase == settlement.PhaseLocked:
			lines = append(lines, theme.Locked.Render("   "+label))
		case i == selected:
			lines = append(lines, theme.Selected.Render(" ▸ "+label))
		default:
			lines = append(lines, theme.Unselected.Render("   "+label))
		}
	}
	levelsBlock := strings.Join(lines, "\n")

	selectedBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Bold(true).
		Foreground(theme.BgDark).
		Background(theme.ArcadeYellow)
	normalBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Foreground(theme.Text)

	var buttons []string
	for i, item := range extras {
		switch {
		case item.Disabled:
			buttons = append(buttons, normalBtn.Foreground(theme.TextDim).Render(item.Label))
		case len(rows)+i == selected:
			buttons = append(buttons, selectedBtn.Render("▸ "+item.Label))
		default:
			buttons = append(buttons, normalBtn.Render(item.Label))
		}
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(levelsBlock + "\n\n" + strings.Join(buttons, "\n"))
}
