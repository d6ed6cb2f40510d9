package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	keyword = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}).
		Render

	paragraph = lipgloss.NewStyle().
			Width(78).
			Padding(0, 0, 0, 2).
			Render

	faint = lipgloss.NewStyle().Faint(true).Render

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// highlightStyle renders the word being spoken.
func highlightStyle(color string) lipgloss.Style {
	if color == "" {
		color = "yellow"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ansiColor(color)))
}

// ansiColor maps basic color names to ANSI codes. Anything else is passed
// through as a hex or ANSI value.
func ansiColor(name string) string {
	switch name {
	case "black":
		return "0"
	case "red":
		return "1"
	case "green":
		return "2"
	case "yellow":
		return "3"
	case "blue":
		return "4"
	case "magenta":
		return "5"
	case "cyan":
		return "6"
	case "white":
		return "7"
	}
	return name
}
