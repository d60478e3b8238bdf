package app

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/render"
	"github.com/blackwell-systems/reelshelf/internal/util"
)

func newSitemapCmd(st *state) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Write sitemaps and robots.txt for static hosting",
		Long: `Write sitemap.xml, sitemap-N.xml (1000 URLs each), sitemap-categories.xml
and robots.txt into a directory. URLs are built from server.base_url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := st.mustServices()
			if err != nil {
				return err
			}
			defer svc.close()

			rnd, err := render.New(render.Site{
				Name:        st.cfg.Server.SiteName,
				BaseURL:     st.cfg.Server.BaseURL,
				Description: st.cfg.Server.SiteDescription,
			}, catalog.RealClock{})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			recs, err := svc.pages.All(ctx)
			if err != nil {
				return err
			}
			cats, err := svc.pages.Categories(ctx)
			if err != nil {
				return err
			}
			n, err := writeSitemaps(out, rnd, recs, cats)
			if err != nil {
				return err
			}
			ok("wrote %d files for %d records to %s", n, len(recs), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "public", "Output directory")
	return cmd
}

// writeSitemaps renders every sitemap file into dir and returns how many
// files were written.
func writeSitemaps(dir string, rnd *render.Renderer, recs []catalog.Record, cats []string) (int, error) {
	type file struct {
		name   string
		render func(*bytes.Buffer) error
	}
	files := []file{
		{"sitemap.xml", func(b *bytes.Buffer) error { return rnd.SitemapIndex(b, len(recs)) }},
		{"sitemap-categories.xml", func(b *bytes.Buffer) error { return rnd.CategoriesSitemap(b, cats) }},
		{"robots.txt", func(b *bytes.Buffer) error { return rnd.Robots(b) }},
	}
	for i := 1; i <= render.SitemapPages(len(recs)); i++ {
		files = append(files, file{fmt.Sprintf("sitemap-%d.xml", i), func(b *bytes.Buffer) error {
			return rnd.SitemapPage(b, recs, i)
		}})
	}

	for _, f := range files {
		var buf bytes.Buffer
		if err := f.render(&buf); err != nil {
			return 0, fmt.Errorf("rendering %s: %w", f.name, err)
		}
		if err := util.WriteFileAtomic(filepath.Join(dir, f.name), buf.Bytes()); err != nil {
			return 0, fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return len(files), nil
}
