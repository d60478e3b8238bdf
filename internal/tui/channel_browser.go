package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
)

// LoadFunc returns the newest records of a channel.
type LoadFunc func(slug string) ([]catalog.Record, error)

// BrowserResult is what the user picked. Both fields are nil when the
// browser was quit.
type BrowserResult struct {
	Channel *collection.IndexEntry
	Video   *catalog.Record
}

type browserView int

const (
	viewChannels browserView = iota
	viewVideos
)

type videosLoadedMsg struct {
	slug    string
	records []catalog.Record
	err     error
}

type browserModel struct {
	keys     browserKeys
	channels list.Model
	videos   list.Model
	view     browserView
	load     LoadFunc

	current   *collection.IndexEntry
	selected  *catalog.Record
	loading   bool
	status    string
	activeCmd string
	quitting  bool
}

func newBrowserModel(entries []collection.IndexEntry, load LoadFunc) browserModel {
	keys := newBrowserKeys()

	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = ChannelItem{Entry: e}
	}
	channels := newList(items, lineDelegate{render: renderChannel}, "Channels")
	channels.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.Select} }

	videos := newList(nil, lineDelegate{render: renderVideo}, "Videos")
	videos.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.Select, keys.Back} }

	return browserModel{keys: keys, channels: channels, videos: videos, load: load}
}

func newList(items []list.Item, d list.ItemDelegate, title string) list.Model {
	l := list.New(items, d, 0, 0)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = StyleHeader
	l.Styles.PaginationStyle = StyleHelp
	l.Styles.HelpStyle = StyleHelp
	return l
}

func (m browserModel) active() *list.Model {
	if m.view == viewVideos {
		return &m.videos
	}
	return &m.channels
}

func (m browserModel) loadCmd(slug string) tea.Cmd {
	load := m.load
	return func() tea.Msg {
		recs, err := load(slug)
		return videosLoadedMsg{slug: slug, records: recs, err: err}
	}
}

func (m browserModel) Init() tea.Cmd { return nil }

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := StyleBorder.GetFrameSize()
		// One line for the footer, one for the status line.
		m.channels.SetSize(msg.Width-h, msg.Height-v-2)
		m.videos.SetSize(msg.Width-h, msg.Height-v-2)
		return m, nil

	case clearActiveCmdMsg:
		m.activeCmd = ""
		return m, nil

	case videosLoadedMsg:
		m.loading = false
		if m.current == nil || msg.slug != m.current.Slug {
			return m, nil
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("loading %s: %v", msg.slug, msg.err)
			return m, nil
		}
		items := make([]list.Item, len(msg.records))
		for i, r := range msg.records {
			items[i] = VideoItem{Record: r}
		}
		cmd := m.videos.SetItems(items)
		m.videos.ResetSelected()
		m.videos.Title = m.current.Name
		m.view = viewVideos
		m.status = ""
		return m, cmd

	case tea.KeyMsg:
		if m.active().FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Select):
			if m.view == viewChannels {
				item, ok := m.channels.SelectedItem().(ChannelItem)
				if !ok || m.loading {
					return m, nil
				}
				entry := item.Entry
				m.current = &entry
				m.loading = true
				m.status = ""
				m.activeCmd = "enter"
				return m, tea.Batch(m.loadCmd(entry.Slug), highlightCmd())
			}
			if item, ok := m.videos.SelectedItem().(VideoItem); ok {
				rec := item.Record
				m.selected = &rec
				m.quitting = true
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Back):
			if m.view == viewVideos {
				m.view = viewChannels
				m.activeCmd = "backspace"
				return m, highlightCmd()
			}
		}
	}

	var cmd tea.Cmd
	if m.view == viewVideos {
		m.videos, cmd = m.videos.Update(msg)
	} else {
		m.channels, cmd = m.channels.Update(msg)
	}
	return m, cmd
}

func (m browserModel) View() string {
	if m.quitting {
		return ""
	}
	status := ""
	switch {
	case m.loading:
		status = StyleHelp.Render("loading…")
	case m.status != "":
		status = StyleError.Render(m.status)
	}
	shortcuts := []shortcut{{Key: "enter", Label: "enter open"}, {Label: "/ filter"}, {Label: "q quit"}}
	if m.view == viewVideos {
		shortcuts = []shortcut{{Key: "enter", Label: "enter show"}, {Key: "backspace", Label: "backspace back"}, {Label: "q quit"}}
	}
	return renderWithFooter(m.active().View()+"\n"+status, shortcuts, m.activeCmd)
}

// RunChannelBrowser lets the user pick a channel, then one of its videos.
func RunChannelBrowser(entries []collection.IndexEntry, load LoadFunc) (*BrowserResult, error) {
	if len(entries) == 0 {
		return nil, errors.New("no channels to display")
	}
	p := tea.NewProgram(newBrowserModel(entries, load), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running TUI: %w", err)
	}
	fm, ok := final.(browserModel)
	if !ok || fm.selected == nil {
		return &BrowserResult{}, nil
	}
	return &BrowserResult{Channel: fm.current, Video: fm.selected}, nil
}
