package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
)

// ChannelItem is one row of the channel list.
type ChannelItem struct {
	Entry collection.IndexEntry
}

func (c ChannelItem) FilterValue() string {
	return c.Entry.Slug + " " + c.Entry.Name + " " + strings.Join(c.Entry.Categories, " ")
}

// VideoItem is one row of a channel's video list.
type VideoItem struct {
	Record catalog.Record
}

func (v VideoItem) FilterValue() string {
	return v.Record.Title + " " + v.Record.Category + " " + strings.Join(v.Record.Tags, " ")
}

// lineDelegate renders every item on a single line.
type lineDelegate struct {
	render func(item list.Item) string
}

func (d lineDelegate) Height() int                         { return 1 }
func (d lineDelegate) Spacing() int                        { return 0 }
func (d lineDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d lineDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	line := d.render(item)
	if line == "" {
		return
	}
	width := m.Width() - 2
	if width > 10 {
		line = ansi.Truncate(line, width, "…")
	}
	if index == m.Index() {
		_, _ = fmt.Fprint(w, StyleHighlight.Render("› ")+line)
		return
	}
	_, _ = fmt.Fprint(w, "  "+line)
}

func renderChannel(item list.Item) string {
	c, ok := item.(ChannelItem)
	if !ok {
		return ""
	}
	line := fmt.Sprintf("%-28s %5d videos", c.Entry.Name, c.Entry.TotalVideos)
	if len(c.Entry.Categories) > 0 {
		line += " " + StyleTag.Render("["+strings.Join(c.Entry.Categories, ",")+"]")
	}
	return line
}

func renderVideo(item list.Item) string {
	v, ok := item.(VideoItem)
	if !ok {
		return ""
	}
	r := v.Record
	date := r.UploadDate
	if len(date) >= 10 {
		date = date[:10]
	}
	line := StyleHelp.Render(fmt.Sprintf("%-10s", date)) + " " + StyleNormal.Render(r.Title)
	if r.Category != "" {
		line += " " + StyleTag.Render("["+r.Category+"]")
	}
	return line
}
