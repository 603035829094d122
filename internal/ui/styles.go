package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f5c2e7")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#fab387"))
	recStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f38ba8"))
	boxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#585b70")).Padding(0, 1)
)
