package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// clearActiveCmdMsg clears the active shortcut highlight in the footer.
type clearActiveCmdMsg struct{}

// shortcut pairs a trigger key with its footer label.
type shortcut struct {
	Key   string // matched against the active command; empty never highlights
	Label string
}

// highlightCmd returns a tick that clears the footer highlight after 500ms.
// Set the model's activeCmd before returning it.
func highlightCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return clearActiveCmdMsg{}
	})
}

// renderFooterBar renders the shortcut labels, the active one highlighted.
func renderFooterBar(shortcuts []shortcut, activeCmd string) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	parts := make([]string, len(shortcuts))
	for i, sc := range shortcuts {
		if activeCmd != "" && sc.Key == activeCmd {
			parts[i] = StyleHighlight.Render("[ " + sc.Label + " ]")
		} else {
			parts[i] = dim.Render(sc.Label)
		}
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, dim.Render(" • ")))
}

// renderWithFooter frames a component view and appends the footer bar.
func renderWithFooter(view string, shortcuts []shortcut, activeCmd string) string {
	return StyleBorder.Render(view + "\n" + renderFooterBar(shortcuts, activeCmd))
}
