// Package theme holds the terminal color palettes.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/debemdeboas/draftroom/internal/config"
)

type Theme struct {
	Name string

	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Mention lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

var Dark = Theme{
	Name:    config.DarkTheme,
	Accent:  lipgloss.Color("63"),
	Text:    lipgloss.Color("252"),
	Muted:   lipgloss.Color("243"),
	Mention: lipgloss.Color("212"),
	Warning: lipgloss.Color("214"),
	Error:   lipgloss.Color("203"),
	Border:  lipgloss.Color("238"),
}

var Light = Theme{
	Name:    config.LightTheme,
	Accent:  lipgloss.Color("27"),
	Text:    lipgloss.Color("235"),
	Muted:   lipgloss.Color("245"),
	Mention: lipgloss.Color("162"),
	Warning: lipgloss.Color("130"),
	Error:   lipgloss.Color("160"),
	Border:  lipgloss.Color("250"),
}

// ByName returns the named palette, falling back to Dark.
func ByName(name string) Theme {
	if name == config.LightTheme {
		return Light
	}
	return Dark
}

// Opposite returns the other palette.
func Opposite(t Theme) Theme {
	if t.Name == config.LightTheme {
		return Dark
	}
	return Light
}
