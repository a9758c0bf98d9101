// Package watch implements the `rollcall system watch` terminal monitor.
package watch

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#3FB950")
	colorAmber  = lipgloss.Color("#D29922")
	colorRed    = lipgloss.Color("#F85149")
	colorBlue   = lipgloss.Color("#58A6FF")
	colorFrame  = lipgloss.Color("#6E40C9")
	colorText   = lipgloss.Color("#F0F6FC")
	colorMuted  = lipgloss.Color("#8B949E")
	colorUnlit  = lipgloss.Color("#30363D")
	colorAccent = lipgloss.Color("#E3B341")
)

// Theme holds every style the monitor uses.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func NewDefaultTheme() Theme {
	return Theme{
		StatusOK:      fg(colorGreen),
		StatusRunning: fg(colorAmber),
		StatusFailed:  fg(colorRed),

		Border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFrame),
		Title:     fg(colorText).Bold(true).Padding(0, 1),
		Header:    fg(colorBlue).Bold(true),
		Dim:       fg(colorMuted),
		Highlight: fg(colorAccent),

		TickerActive:   fg(colorGreen),
		TickerInactive: fg(colorUnlit),
	}
}
