// Package themes holds the inbox color schemes.
package themes

import "github.com/charmbracelet/lipgloss"

// DefaultCategoryIcon is shown for categories without an icon.
const DefaultCategoryIcon = "📦"

// Theme is the set of styles the inbox renders with.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Selected      lipgloss.Style
	RoundedBox    lipgloss.Style
	Income        lipgloss.Style
	Expense       lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style
	StatusPending lipgloss.Style
}

type palette struct {
	accent, onAccent, text, subtext, muted, border lipgloss.Color
	green, yellow, red                             lipgloss.Color
}

func (p palette) theme() Theme {
	status := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		Subtitle: lipgloss.NewStyle().Foreground(p.subtext),
		Normal:   lipgloss.NewStyle().Foreground(p.text),
		Bold:     lipgloss.NewStyle().Bold(true).Foreground(p.text),
		Selected: lipgloss.NewStyle().Bold(true).Background(p.accent).Foreground(p.onAccent),
		RoundedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		Income:        lipgloss.NewStyle().Foreground(p.green),
		Expense:       lipgloss.NewStyle().Foreground(p.red),
		StatusSuccess: status(p.green),
		StatusWarning: status(p.yellow),
		StatusError:   status(p.red),
		StatusPending: lipgloss.NewStyle().Foreground(p.muted).Italic(true),
	}
}

var (
	// Default matches the CLI palette.
	Default = palette{
		accent: "#f4a261", onAccent: "#1a1a1a",
		text: "#fafafa", subtext: "#a3a3a3", muted: "#737373", border: "#404040",
		green: "#2a9d8f", yellow: "#e9c46a", red: "#e76f51",
	}.theme()

	CatppuccinMocha = palette{
		accent: "#cba6f7", onAccent: "#1e1e2e",
		text: "#cdd6f4", subtext: "#a6adc8", muted: "#6c7086", border: "#45475a",
		green: "#a6e3a1", yellow: "#f9e2af", red: "#f38ba8",
	}.theme()
)

// GetTheme returns the named theme; unknown names get Default.
func GetTheme(name string) Theme {
	if name == "catppuccin-mocha" {
		return CatppuccinMocha
	}
	return Default
}

// CategoryIcon returns icon, or the default when it is empty.
func CategoryIcon(icon string) string {
	if icon == "" {
		return DefaultCategoryIcon
	}
	return icon
}
