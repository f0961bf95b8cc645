package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	account    lipgloss.Style
	current    lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style

	available lipgloss.Style
	cooling   lipgloss.Style
	banned    lipgloss.Style
	unknown   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		account:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		current:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),

		available: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		cooling:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		banned:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		unknown:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}
