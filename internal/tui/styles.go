// Package tui holds the interactive terminal views of the reelshelf CLI.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared with the rendered site.
var (
	ColorOrange = lipgloss.AdaptiveColor{Light: "#D9530F", Dark: "#FB6820"}
	ColorTeal   = lipgloss.AdaptiveColor{Light: "#00878F", Dark: "#2EC4B6"}
	ColorWhite  = lipgloss.AdaptiveColor{Light: "#262626", Dark: "#FFFFFF"}
	ColorGray   = lipgloss.AdaptiveColor{Light: "#767676", Dark: "#808080"}
	ColorRed    = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}
)

var (
	StyleNormal = lipgloss.NewStyle().Foreground(ColorWhite)

	// StyleHighlight is for the selected row and the active footer shortcut.
	StyleHighlight = lipgloss.NewStyle().
			Foreground(ColorOrange).
			Bold(true)

	// StyleTag is for categories and tags.
	StyleTag = lipgloss.NewStyle().Foreground(ColorTeal)

	StyleHelp = lipgloss.NewStyle().Foreground(ColorGray)

	StyleError = lipgloss.NewStyle().Foreground(ColorRed)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	StyleBorder = lipgloss.NewStyle().
			Foreground(ColorGray).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray)
)
