package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/investory/internal/ui/theme"
)

const bannerArt = `
 ██╗███╗   ██╗██╗   ██╗███████╗███████╗████████╗ ██████╗ ██████╗ ██╗   ██╗
 ██║████╗  ██║██║   ██║██╔════╝██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗╚██╗ ██╔╝
 ██║██╔██╗ ██║██║   ██║█████╗  ███████╗   ██║   ██║   ██║██████╔╝ ╚████╔╝
 ██║██║╚██╗██║╚██╗ ██╔╝██╔══╝  ╚════██║   ██║   ██║   ██║██╔══██╗  ╚██╔╝
 ██║██║ ╚████║ ╚████╔╝ ███████╗███████║   ██║   ╚██████╔╝██║  ██║   ██║
 ╚═╝╚═╝  ╚═══╝  ╚═══╝  ╚══════╝╚══════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝   ╚═╝`

const bannerCompact = "I N V E S T O R Y"

// bannerMinWidth is the narrowest terminal that fits the block letters.
const bannerMinWidth = 76

// RenderBanner returns the INVESTORY banner styled in the primary color,
// or a compact fallback on narrow terminals.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < bannerMinWidth {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
