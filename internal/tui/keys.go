package tui

import "github.com/charmbracelet/bubbles/key"

// browserKeys are the bindings of the channel browser.
type browserKeys struct {
	Quit   key.Binding
	Select key.Binding
	Back   key.Binding
}

func newBrowserKeys() browserKeys {
	return browserKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace", "h"),
			key.WithHelp("backspace", "back"),
		),
	}
}
