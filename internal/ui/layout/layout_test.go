package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "₹0", FormatMoney(0))
	assert.Equal(t, "₹950", FormatMoney(950))
	assert.Equal(t, "₹10,000", FormatMoney(10000))
	assert.Equal(t, "₹1,234,567", FormatMoney(1234567))
	assert.Equal(t, "-₹5,000", FormatMoney(-5000))
}

func TestRenderHeaderShowsStats(t *testing.T) {
	h := RenderHeader("Home", Stats{Balance: 15000, Badges: 2}, 100)
	assert.Contains(t, h, "Investory")
	assert.Contains(t, h, "₹15,000")
	assert.Contains(t, h, "★ 2")
}

func TestRenderFooterStatus(t *testing.T) {
	f := RenderFooter([]KeyHint{{Key: "Esc", Description: "Back"}}, "Could not save tasks", 80)
	assert.True(t, strings.Contains(f, "Could not save tasks"))
	assert.NotContains(t, RenderFooter(nil, "", 80), "!")
}
