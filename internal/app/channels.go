package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/tui"
	"github.com/blackwell-systems/reelshelf/internal/util"
)

func newChannelsCmd(st *state) *cobra.Command {
	var (
		rebuild    bool
		asJSON     bool
		categories bool
	)
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels, or browse them interactively",
		Long: `List the channels of the index. On a terminal the channels open in an
interactive browser; pick a video to print it.

--rebuild recomputes the index from the collection files, which repairs
counts after an append whose index update failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := st.mustServices()
			if err != nil {
				return err
			}
			defer svc.close()

			ns := collection.Channels
			if categories {
				ns = collection.Categories
			}
			ctx := cmd.Context()

			var doc *collection.IndexDocument
			if rebuild {
				doc, err = svc.collections.Rebuild(ctx, ns)
				if err != nil {
					return err
				}
				if !asJSON {
					ok("rebuilt %s index: %d collections, %d videos", ns.Name, len(doc.Channels), doc.TotalVideos)
				}
			} else if doc, err = svc.collections.Index.Load(ctx, ns); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			if len(doc.Channels) > 0 && tui.ShouldUseTUI(cmd) {
				return browseChannels(ctx, cmd.OutOrStdout(), svc, ns, doc.Channels)
			}
			return printChannels(cmd, ns, doc)
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Recompute the index from the collection files")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the index document as JSON")
	cmd.Flags().BoolVar(&categories, "categories", false, "Use the per-category collections instead of channels")
	return cmd
}

func printChannels(cmd *cobra.Command, ns collection.Namespace, doc *collection.IndexDocument) error {
	if len(doc.Channels) == 0 {
		warn("no %s yet", ns.Name)
		return nil
	}
	header("%d %s, %d videos", len(doc.Channels), ns.Name, doc.TotalVideos)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tVIDEOS\tFILES\tLATEST")
	for _, e := range doc.Channels {
		latest := ""
		if e.LatestVideo != nil {
			latest = e.LatestVideo.Title
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.Slug, e.Name, e.TotalVideos, e.Files, latest)
	}
	return tw.Flush()
}

func browseChannels(ctx context.Context, w io.Writer, svc *services, ns collection.Namespace, entries []collection.IndexEntry) error {
	load := func(slug string) ([]catalog.Record, error) {
		recs, _, _, err := svc.collections.Page(ctx, ns, slug, 0)
		return recs, err
	}
	res, err := tui.RunChannelBrowser(entries, load)
	if err != nil {
		return err
	}
	if res.Video == nil {
		return nil
	}
	return renderRecord(w, *res.Video, util.IsTTY())
}
