package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/util"
)

func newShowCmd(st *state) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <category>/<slug>",
		Short: "Show one catalog record in the terminal",
		Example: `  reelshelf show drama/deep-water
  reelshelf show drama/deep-water --raw > deep-water.md`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecordPaths(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, slug, found := strings.Cut(strings.Trim(args[0], "/"), "/")
			if !found || category == "" || slug == "" {
				return fmt.Errorf("expected <category>/<slug>, got %q", args[0])
			}
			svc, err := st.mustServices()
			if err != nil {
				return err
			}
			defer svc.close()

			rec, err := svc.pages.Get(cmd.Context(), category, slug)
			if err != nil {
				return err
			}
			if raw {
				data, err := catalog.MarshalPage(rec)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return renderRecord(cmd.OutOrStdout(), rec, util.IsTTY())
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the page source (front matter and body)")
	return cmd
}

// recordMarkdown lays a record out as a markdown document for the terminal.
func recordMarkdown(rec catalog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s", rec.Title)
	if rec.ReleaseYear > 0 {
		fmt.Fprintf(&b, " (%d)", rec.ReleaseYear)
	}
	b.WriteString("\n\n")

	fields := []struct{ label, value string }{
		{"Category", rec.Category},
		{"Duration", rec.Duration},
		{"Language", rec.Language},
		{"Rating", rec.Rating},
		{"Quality", rec.Quality},
		{"Director", rec.Director},
		{"Producer", rec.Producer},
		{"Cast", rec.MainCast},
		{"Uploaded", rec.UploadDate},
		{"Video", rec.VideoURL},
		{"Poster", rec.PosterURL},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", f.label, f.value)
		}
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Description != "" {
		b.WriteString("\n" + rec.Description + "\n")
	}
	if body := strings.TrimSpace(rec.Body); body != "" {
		b.WriteString("\n---\n\n" + body + "\n")
	}
	return b.String()
}

// renderRecord writes rec through glamour; styled output only on a terminal.
func renderRecord(w io.Writer, rec catalog.Record, tty bool) error {
	style := glamour.WithStandardStyle("notty")
	if tty {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(util.TerminalWidth(100)-4))
	if err != nil {
		return err
	}
	out, err := r.Render(recordMarkdown(rec))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
