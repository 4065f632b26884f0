package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/ui/theme"
)

// TaskMeter is a horizontal bar counting finished items, e.g. the tasks of
// a level. It turns to the gain color once every item is done.
type TaskMeter struct {
	Label string
	Done  int
	Total int
	Width int
}

// NewTaskMeter creates a meter. Done is clamped to [0, total].
func NewTaskMeter(label string, done, total, width int) TaskMeter {
	total = max(total, 0)
	return TaskMeter{
		Label: label,
		Done:  min(max(done, 0), total),
		Total: total,
		Width: width,
	}
}

// Complete reports whether every item is done. An empty meter is never
// complete.
func (m TaskMeter) Complete() bool {
	return m.Total > 0 && m.Done == m.Total
}

func (m TaskMeter) View() string {
	var b strings.Builder
	if m.Label != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Render(m.Label))
		b.WriteString("  ")
	}

	count := fmt.Sprintf("  %d/%d", m.Done, m.Total)
	barWidth := max(m.Width-lipgloss.Width(b.String())-len(count), 4)
	filled := 0
	if m.Total > 0 {
		filled = barWidth * m.Done / m.Total
	}

	fill := theme.Primary
	if m.Complete() {
		fill = theme.Gain
	}
	b.WriteString(lipgloss.NewStyle().Foreground(fill).Render(strings.Repeat("█", filled)))
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("░", barWidth-filled)))
	b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render(count))
	return b.String()
}
