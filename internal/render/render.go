// Package render produces the server side HTML pages and XML sitemaps of the
// catalog site. Output depends only on its input and the injected clock.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
)

// DefaultPerCategory is how many records the homepage shows per category.
const DefaultPerCategory = 12

//go:embed templates/*.tmpl
var templateFS embed.FS

var pages = []string{"home", "detail", "channel", "error"}

// Site describes the site being rendered.
type Site struct {
	Name        string
	BaseURL     string // absolute, no trailing slash
	Description string
}

// Renderer renders pages and sitemaps.
type Renderer struct {
	site        Site
	clock       catalog.Clock
	perCategory int
	tpl         map[string]*template.Template
	md          goldmark.Markdown
	policy      *bluemonday.Policy
}

// New parses the page templates.
func New(site Site, clock catalog.Clock) (*Renderer, error) {
	if clock == nil {
		clock = catalog.RealClock{}
	}
	site.BaseURL = strings.TrimRight(site.BaseURL, "/")
	if site.Name == "" {
		site.Name = "reelshelf"
	}

	base, err := template.New("base.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/base.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}
	tpl := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".tmpl"); err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		tpl[name] = t
	}

	return &Renderer{
		site:        site,
		clock:       clock,
		perCategory: DefaultPerCategory,
		tpl:         tpl,
		md:          goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:      bluemonday.UGCPolicy(),
	}, nil
}

var funcs = template.FuncMap{
	"join":       strings.Join,
	"pathEscape": url.PathEscape,
	"date": func(ts string) string {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return ts
		}
		return t.UTC().Format("Jan 2, 2006")
	},
}

// page is the data passed to every template.
type page struct {
	Site      Site
	Title     string
	Canonical string
	Search    string // prefills the header search box
	Year      int
	Data      any
}

func (r *Renderer) execute(w io.Writer, name string, p page) error {
	p.Site = r.site
	p.Year = r.clock.Now().UTC().Year()
	var buf bytes.Buffer
	if err := r.tpl[name].ExecuteTemplate(&buf, "base", p); err != nil {
		return fmt.Errorf("rendering %s page: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Section is one category block on the homepage.
type Section struct {
	Category string
	Records  []catalog.Record
	Total    int
}

// HomeData is the homepage view model.
type HomeData struct {
	Search     string
	Category   string
	Categories []string
	Sections   []Section        // when no filter is active
	Results    []catalog.Record // when a filter is active
	Filtered   bool
}

// Home renders the homepage. Without a filter it shows the newest records
// of every category; with ?search= or ?category= it shows the matches.
func (r *Renderer) Home(w io.Writer, records []catalog.Record, search, category string) error {
	search = strings.TrimSpace(search)
	category = strings.TrimSpace(category)

	data := HomeData{
		Search:     search,
		Category:   category,
		Categories: categoriesOf(records),
		Filtered:   search != "" || category != "",
	}
	if data.Filtered {
		data.Results = catalog.Filter{Category: category, Search: search}.Apply(records)
		catalog.SortNewest(data.Results)
	} else {
		data.Sections = r.sections(records)
	}

	title := r.site.Name
	switch {
	case search != "":
		title = fmt.Sprintf("Search: %s | %s", search, r.site.Name)
	case category != "":
		title = fmt.Sprintf("%s | %s", category, r.site.Name)
	}
	return r.execute(w, "home", page{Title: title, Canonical: r.site.BaseURL + "/", Search: search, Data: data})
}

func (r *Renderer) sections(records []catalog.Record) []Section {
	by := make(map[string][]catalog.Record)
	for _, rec := range records {
		by[rec.Category] = append(by[rec.Category], rec)
	}
	out := make([]Section, 0, len(by))
	for cat, recs := range by {
		sorted := append([]catalog.Record(nil), recs...)
		catalog.SortNewest(sorted)
		s := Section{Category: cat, Total: len(sorted)}
		if len(sorted) > r.perCategory {
			sorted = sorted[:r.perCategory]
		}
		s.Records = sorted
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func categoriesOf(records []catalog.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range records {
		if rec.Category != "" && !seen[rec.Category] {
			seen[rec.Category] = true
			out = append(out, rec.Category)
		}
	}
	sort.Strings(out)
	return out
}

// DetailData is the detail page view model.
type DetailData struct {
	Record  catalog.Record
	Body    template.HTML
	JSONLD  template.JS
	Related []catalog.Record
}

// Detail renders the page of one record. related is shown below it.
func (r *Renderer) Detail(w io.Writer, rec catalog.Record, related []catalog.Record) error {
	body, err := r.markdown(rec.Body)
	if err != nil {
		return err
	}
	ld, err := JSONLD(r.site, rec)
	if err != nil {
		return err
	}
	title := rec.Title
	if rec.ReleaseYear > 0 {
		title = fmt.Sprintf("%s (%d)", rec.Title, rec.ReleaseYear)
	}
	return r.execute(w, "detail", page{
		Title:     title + " | " + r.site.Name,
		Canonical: r.RecordURL(rec),
		Data:      DetailData{Record: rec, Body: body, JSONLD: ld, Related: related},
	})
}

// markdown converts a record body to sanitized HTML.
func (r *Renderer) markdown(src string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// ChannelData is the channel page view model.
type ChannelData struct {
	Entry   collection.IndexEntry
	Records []catalog.Record
	Page    int
	Files   []int
}

// Channel renders one page of a channel collection.
func (r *Renderer) Channel(w io.Writer, entry collection.IndexEntry, records []catalog.Record, pageNum int, files []int) error {
	canonical := fmt.Sprintf("%s/channel/%s", r.site.BaseURL, url.PathEscape(entry.Slug))
	return r.execute(w, "channel", page{
		Title:     entry.Name + " | " + r.site.Name,
		Canonical: canonical,
		Data:      ChannelData{Entry: entry, Records: records, Page: pageNum, Files: files},
	})
}

// ErrorData is the error page view model.
type ErrorData struct {
	Status  int
	Message string
}

// Error renders an error page. Message is shown to the visitor as is, so it
// must not carry internal details.
func (r *Renderer) Error(w io.Writer, status int, message string) error {
	return r.execute(w, "error", page{
		Title: fmt.Sprintf("%d | %s", status, r.site.Name),
		Data:  ErrorData{Status: status, Message: message},
	})
}

// RecordURL returns the absolute URL of a record's detail page.
func (r *Renderer) RecordURL(rec catalog.Record) string {
	return fmt.Sprintf("%s/%s/%s", r.site.BaseURL, url.PathEscape(rec.Category), url.PathEscape(rec.Slug))
}
