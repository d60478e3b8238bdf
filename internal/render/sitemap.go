package render

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
)

// URLsPerSitemap is the number of record URLs per sitemap page.
const URLsPerSitemap = 1000

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ErrNoSuchSitemap is returned for a sitemap page number out of range.
var ErrNoSuchSitemap = errors.New("no such sitemap")

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Xmlns    string       `xml:"xmlns,attr"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// SitemapPages returns the number of record sitemap pages for total records.
func SitemapPages(total int) int {
	return (total + URLsPerSitemap - 1) / URLsPerSitemap
}

// SitemapIndex writes the sitemap index: one entry per record sitemap page
// followed by the categories sitemap.
func (r *Renderer) SitemapIndex(w io.Writer, total int) error {
	today := r.clock.Now().UTC().Format(time.DateOnly)
	idx := sitemapIndex{Xmlns: sitemapNS}
	for n := 1; n <= SitemapPages(total); n++ {
		idx.Sitemaps = append(idx.Sitemaps, sitemapRef{
			Loc:     fmt.Sprintf("%s/sitemap-%d.xml", r.site.BaseURL, n),
			LastMod: today,
		})
	}
	idx.Sitemaps = append(idx.Sitemaps, sitemapRef{
		Loc:     r.site.BaseURL + "/sitemap-categories.xml",
		LastMod: today,
	})
	return writeXML(w, idx)
}

// SitemapPage writes record sitemap page n (1-based). Records are ordered
// newest first, so page 1 holds the most recent URLsPerSitemap records.
func (r *Renderer) SitemapPage(w io.Writer, records []catalog.Record, n int) error {
	if n < 1 || n > SitemapPages(len(records)) {
		return fmt.Errorf("sitemap-%d.xml: %w", n, ErrNoSuchSitemap)
	}
	sorted := append([]catalog.Record(nil), records...)
	catalog.SortNewest(sorted)

	start := (n - 1) * URLsPerSitemap
	end := min(start+URLsPerSitemap, len(sorted))

	set := urlSet{Xmlns: sitemapNS, URLs: make([]sitemapURL, 0, end-start)}
	for _, rec := range sorted[start:end] {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        r.RecordURL(rec),
			LastMod:    dateOf(rec.UploadDate),
			ChangeFreq: "monthly",
			Priority:   "0.8",
		})
	}
	return writeXML(w, set)
}

// CategoriesSitemap writes the sitemap of the homepage and the category
// listings.
func (r *Renderer) CategoriesSitemap(w io.Writer, categories []string) error {
	today := r.clock.Now().UTC().Format(time.DateOnly)
	set := urlSet{Xmlns: sitemapNS}
	set.URLs = append(set.URLs, sitemapURL{
		Loc:        r.site.BaseURL + "/",
		LastMod:    today,
		ChangeFreq: "daily",
		Priority:   "1.0",
	})
	for _, c := range catalog.NormalizeCategories(categories) {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        r.site.BaseURL + "/?category=" + url.QueryEscape(c),
			LastMod:    today,
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}
	return writeXML(w, set)
}

// Robots writes robots.txt pointing crawlers at the sitemap index.
func (r *Renderer) Robots(w io.Writer) error {
	_, err := fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: %s/sitemap.xml\n", r.site.BaseURL)
	return err
}

func writeXML(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding sitemap: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// dateOf returns the date part of an RFC3339 timestamp, or "".
func dateOf(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
