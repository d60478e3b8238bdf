package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/scrape"
)

type appendFlags struct {
	channel     string
	fromURL     string
	rec         catalog.Record
	year        int
	tags        []string
	asJSON      bool
	createPage  bool
	pageMessage string
}

func newAppendCmd(st *state) *cobra.Command {
	var f appendFlags
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Add a video to a channel",
		Long: `Add a video to the newest collection file of a channel, starting a new file
when it is full, and update the channel index.

--from-url scrapes the page at the URL first; explicit flags win over
scraped values. Re-running with the same --request-id does not add the
video twice.`,
		Example: `  reelshelf append --channel "Comedy Hits" --title "Pilot" --video-url https://cdn.example/pilot.mp4
  reelshelf append --channel trailers --from-url https://example.com/movies/deep-water`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec := catalog.Record{}
			if f.fromURL != "" {
				res, err := scrape.NewFetcher(scrape.FetchOptions{UserAgent: "reelshelf/" + appVersion}).Scrape(ctx, f.fromURL)
				if err != nil {
					return fmt.Errorf("scraping %s: %w", f.fromURL, err)
				}
				rec = res.Record
			}
			mergeFlags(&rec, f, cmd)

			svc, err := st.mustServices()
			if err != nil {
				return err
			}
			defer svc.close()

			res, err := svc.collections.Append(ctx, collection.Channels, f.channel, rec)
			if err != nil {
				return err
			}
			if f.createPage && !res.Duplicate {
				p, _, err := svc.pages.Create(ctx, res.Record, f.pageMessage)
				if err != nil {
					warnTo(cmd.ErrOrStderr(), "page for %q not created: %v", res.Record.Title, err)
				} else {
					ok("created %s", p)
				}
			}

			if f.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"channelSlug": res.Slug,
					"jsonFile":    res.File,
					"videoCount":  res.Count,
					"nextFile":    res.NextFile,
					"totalVideos": res.Entry.TotalVideos,
					"duplicate":   res.Duplicate,
					"video":       res.Record,
				})
			}
			if res.Duplicate {
				warn("%q is already in %s, nothing written", res.Record.Title, res.File)
				return nil
			}
			ok("added %q to %s (%d in file, %d in channel)", res.Record.Title, res.File, res.Count, res.Entry.TotalVideos)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.channel, "channel", "", "Channel name (required)")
	fl.StringVar(&f.fromURL, "from-url", "", "Scrape metadata from this page first")
	fl.StringVar(&f.rec.Title, "title", "", "Title")
	fl.StringVar(&f.rec.VideoURL, "video-url", "", "Video URL")
	fl.StringVar(&f.rec.PosterURL, "poster-url", "", "Poster URL")
	fl.StringVar(&f.rec.Category, "category", "", "Category")
	fl.StringVar(&f.rec.Description, "description", "", "Description")
	fl.StringVar(&f.rec.Duration, "duration", "", "Duration, e.g. 1h 52m")
	fl.StringVar(&f.rec.Language, "language", "", "Language")
	fl.StringVar(&f.rec.RequestID, "request-id", "", "Idempotency key; a repeated key is not added again")
	fl.IntVar(&f.year, "year", 0, "Release year")
	fl.StringSliceVar(&f.tags, "tags", nil, "Comma separated tags")
	fl.BoolVar(&f.createPage, "page", false, "Also create the markdown page of the record")
	fl.StringVar(&f.pageMessage, "message", "", "Commit message for the page")
	fl.BoolVar(&f.asJSON, "json", false, "Output the result as JSON")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

// mergeFlags copies the flags the user set onto rec.
func mergeFlags(rec *catalog.Record, f appendFlags, cmd *cobra.Command) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("title", &rec.Title, f.rec.Title)
	set("video-url", &rec.VideoURL, f.rec.VideoURL)
	set("poster-url", &rec.PosterURL, f.rec.PosterURL)
	set("category", &rec.Category, f.rec.Category)
	set("description", &rec.Description, f.rec.Description)
	set("duration", &rec.Duration, f.rec.Duration)
	set("language", &rec.Language, f.rec.Language)
	set("request-id", &rec.RequestID, f.rec.RequestID)
	if cmd.Flags().Changed("year") {
		rec.ReleaseYear = f.year
	}
	if cmd.Flags().Changed("tags") {
		rec.Tags = f.tags
	}
}
