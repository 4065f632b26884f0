package components

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func key(s string) tea.KeyPressMsg {
	switch s {
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	}
	return tea.KeyPressMsg{Code: rune(s[0]), Text: s}
}

func TestMenuSkipsDisabled(t *testing.T) {
	m := NewMenu([]MenuItem{
		{Label: "Locked", Disabled: true},
		{Label: "Level 1"},
		{Label: "Locked", Disabled: true},
		{Label: "Ticker"},
	})
	assert.Equal(t, 1, m.Selected)

	m, _ = m.Update(key("down"))
	assert.Equal(t, 3, m.Selected)
	m, _ = m.Update(key("up"))
	assert.Equal(t, 1, m.Selected)
	m, _ = m.Update(key("up"))
	assert.Equal(t, 1, m.Selected)
}

func TestMenuEnterRunsAction(t *testing.T) {
	ran := false
	m := NewMenu([]MenuItem{{Label: "Go", Action: func() tea.Cmd { ran = true; return nil }}})
	m.Update(key("enter"))
	assert.True(t, ran)
}

func TestMultiChoice(t *testing.T) {
	mc := NewMultiChoice("What is an IPO?", []string{"A", "B", "C", "D"})
	assert.False(t, mc.Answered())

	mc, _ = mc.Update(key("down"))
	mc, _ = mc.Update(key("enter"))
	assert.True(t, mc.Answered())
	assert.Equal(t, 1, mc.ChosenIndex)

	// Letters choose directly and the answer can change before grading.
	mc, _ = mc.Update(key("c"))
	assert.Equal(t, 2, mc.ChosenIndex)

	mc.Reveal(2)
	assert.True(t, mc.IsCorrect())
	mc, _ = mc.Update(key("a"))
	assert.Equal(t, 2, mc.ChosenIndex, "revealed choice is locked")
}

func TestMultiChoiceIgnoresOutOfRangeLetter(t *testing.T) {
	mc := NewMultiChoice("Q", []string{"yes", "no"})
	mc, _ = mc.Update(key("d"))
	assert.False(t, mc.Answered())
}

func TestTaskMeter(t *testing.T) {
	m := NewTaskMeter("Tasks", 7, 5, 30)
	assert.Equal(t, 5, m.Done)
	assert.True(t, m.Complete())
	assert.Contains(t, m.View(), "5/5")

	m = NewTaskMeter("", -1, 0, 2)
	assert.Equal(t, 0, m.Done)
	assert.False(t, m.Complete())
	assert.NotPanics(t, func() { _ = m.View() })

	assert.Contains(t, NewTaskMeter("Tasks", 2, 4, 40).View(), "2/4")
}
