// Package scrape extracts movie metadata from HTML pages: JSON-LD first,
// then OpenGraph and Twitter card meta tags, then the page title, headings
// and video elements.
package scrape

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/kaptinlin/jsonrepair"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
)

// Sources reported in Result.ExtractedFrom.
const (
	SourceJSONLD    = "json-ld"
	SourceOpenGraph = "opengraph"
	SourceTwitter   = "twitter"
	SourceMeta      = "meta"
	SourceTitle     = "title"
	SourceVideo     = "video"
)

const metaDescriptionLen = 160

// Result is the metadata found in one page.
type Result struct {
	Record        catalog.Record `json:"movieData"`
	ExtractedFrom []string       `json:"extractedFrom"`
}

// FromHTML extracts a record from page. Relative URLs are resolved against
// sourceURL, which may be empty. A page without a usable title yields a
// *catalog.ValidationError.
func FromHTML(page, sourceURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return Result{}, err
	}
	base, _ := url.Parse(sourceURL)

	e := &extractor{doc: doc, base: base}
	e.jsonLD()
	e.openGraph()
	e.twitter()
	e.meta()
	e.title()
	e.video()

	rec := e.rec
	if rec.Title == "" {
		return Result{ExtractedFrom: e.sources()}, &catalog.ValidationError{Path: sourceURL, Missing: []string{"title"}}
	}
	rec.Slug = catalog.Slugify(rec.Title)
	if rec.Category != "" {
		rec.Category = catalog.Slugify(rec.Category)
	}
	if rec.MetaDescription == "" && rec.Description != "" {
		rec.MetaDescription = truncate(rec.Description, metaDescriptionLen)
	}
	rec.Tags = dedupe(rec.Tags)
	return Result{Record: rec, ExtractedFrom: e.sources()}, nil
}

type extractor struct {
	doc  *goquery.Document
	base *url.URL
	rec  catalog.Record
	used []string
}

func (e *extractor) sources() []string {
	if e.used == nil {
		return []string{}
	}
	return e.used
}

// set stores v into *field when the field is still empty and records src.
func (e *extractor) set(field *string, v, src string) {
	v = strings.TrimSpace(v)
	if v == "" || *field != "" {
		return
	}
	*field = v
	e.mark(src)
}

func (e *extractor) setURL(field *string, v, src string) {
	e.set(field, e.resolve(v), src)
}

func (e *extractor) mark(src string) {
	for _, s := range e.used {
		if s == src {
			return
		}
	}
	e.used = append(e.used, src)
}

func (e *extractor) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || e.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return e.base.ResolveReference(u).String()
}

func (e *extractor) metaContent(attr, name string) string {
	v, _ := e.doc.Find(`meta[` + attr + `="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

func (e *extractor) openGraph() {
	r := &e.rec
	e.set(&r.Title, e.metaContent("property", "og:title"), SourceOpenGraph)
	e.set(&r.Description, e.metaContent("property", "og:description"), SourceOpenGraph)
	e.setURL(&r.PosterURL, e.metaContent("property", "og:image"), SourceOpenGraph)
	for _, p := range []string{"og:video:secure_url", "og:video:url", "og:video"} {
		e.setURL(&r.VideoURL, e.metaContent("property", p), SourceOpenGraph)
	}
	if secs, err := strconv.Atoi(e.metaContent("property", "video:duration")); err == nil && secs > 0 {
		e.set(&r.Duration, strconv.Itoa((secs+30)/60)+" min", SourceOpenGraph)
	}
	if r.ReleaseYear == 0 {
		if y := year(e.metaContent("property", "video:release_date")); y > 0 {
			r.ReleaseYear = y
			e.mark(SourceOpenGraph)
		}
	}
	e.doc.Find(`meta[property="video:tag"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			r.Tags = append(r.Tags, strings.TrimSpace(v))
			e.mark(SourceOpenGraph)
		}
	})
}

func (e *extractor) twitter() {
	r := &e.rec
	e.set(&r.Title, e.metaContent("name", "twitter:title"), SourceTwitter)
	e.set(&r.Description, e.metaContent("name", "twitter:description"), SourceTwitter)
	e.setURL(&r.PosterURL, e.metaContent("name", "twitter:image"), SourceTwitter)
	e.setURL(&r.VideoURL, e.metaContent("name", "twitter:player:stream"), SourceTwitter)
}

func (e *extractor) meta() {
	r := &e.rec
	e.set(&r.Description, e.metaContent("name", "description"), SourceMeta)
	if len(r.Tags) == 0 {
		if kw := e.metaContent("name", "keywords"); kw != "" {
			r.Tags = splitList(kw)
			e.mark(SourceMeta)
		}
	}
}

func (e *extractor) title() {
	r := &e.rec
	e.set(&r.Title, e.doc.Find("h1").First().Text(), SourceTitle)
	e.set(&r.Title, e.doc.Find("title").First().Text(), SourceTitle)
}

func (e *extractor) video() {
	r := &e.rec
	v := e.doc.Find("video").First()
	if v.Length() == 0 {
		return
	}
	src, _ := v.Attr("src")
	if src == "" {
		src, _ = v.Find("source").First().Attr("src")
	}
	e.setURL(&r.VideoURL, src, SourceVideo)
	poster, _ := v.Attr("poster")
	e.setURL(&r.PosterURL, poster, SourceVideo)
}

// jsonLD reads the first Movie, VideoObject or TV item from the page's
// JSON-LD blocks. Blocks that do not parse are repaired once and skipped if
// they still fail.
func (e *extractor) jsonLD() {
	var items []map[string]any
	e.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		items = append(items, ldItems(s.Text())...)
	})

	var item map[string]any
	for _, it := range items {
		if hasType(it, "Movie", "VideoObject", "TVEpisode", "TVSeries") {
			item = it
			break
		}
	}
	if item == nil {
		return
	}

	r := &e.rec
	e.set(&r.Title, str(item["name"]), SourceJSONLD)
	e.set(&r.Description, str(item["description"]), SourceJSONLD)
	e.setURL(&r.PosterURL, imageURL(item["image"]), SourceJSONLD)
	e.setURL(&r.PosterURL, imageURL(item["thumbnailUrl"]), SourceJSONLD)
	e.set(&r.Duration, str(item["duration"]), SourceJSONLD)
	e.set(&r.Language, str(item["inLanguage"]), SourceJSONLD)
	e.set(&r.Rating, str(item["contentRating"]), SourceJSONLD)
	e.set(&r.Director, strings.Join(names(item["director"]), ", "), SourceJSONLD)
	e.set(&r.Producer, strings.Join(names(item["producer"]), ", "), SourceJSONLD)
	e.set(&r.MainCast, strings.Join(names(item["actor"]), ", "), SourceJSONLD)
	e.setURL(&r.VideoURL, str(item["contentUrl"]), SourceJSONLD)
	e.setURL(&r.VideoURL, str(item["embedUrl"]), SourceJSONLD)
	if v, ok := item["video"].(map[string]any); ok {
		e.setURL(&r.VideoURL, str(v["contentUrl"]), SourceJSONLD)
		e.setURL(&r.VideoURL, str(v["embedUrl"]), SourceJSONLD)
		e.setURL(&r.PosterURL, imageURL(v["thumbnailUrl"]), SourceJSONLD)
		e.set(&r.Duration, str(v["duration"]), SourceJSONLD)
	}

	for _, k := range []string{"datePublished", "dateCreated", "uploadDate"} {
		if y := year(str(item[k])); y > 0 {
			r.ReleaseYear = y
			break
		}
	}
	genres := list(item["genre"])
	if len(genres) > 0 {
		e.set(&r.Category, genres[0], SourceJSONLD)
	}
	r.Tags = append(r.Tags, genres...)
	r.Tags = append(r.Tags, list(item["keywords"])...)
}

// ldItems decodes one JSON-LD block into its top level objects, flattening
// arrays and @graph.
func ldItems(text string) []map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		fixed, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(fixed), &v); err != nil {
			return nil
		}
	}
	var out []map[string]any
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, x := range t {
				walk(x)
			}
		case map[string]any:
			out = append(out, t)
			if g, ok := t["@graph"]; ok {
				walk(g)
			}
		}
	}
	walk(v)
	return out
}

func hasType(item map[string]any, types ...string) bool {
	for _, t := range list(item["@type"]) {
		for _, want := range types {
			if strings.EqualFold(t, want) {
				return true
			}
		}
	}
	return false
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// list reads a JSON-LD value that may be a string, a comma separated
// string or an array of strings.
func list(v any) []string {
	switch t := v.(type) {
	case string:
		return splitList(t)
	case []any:
		var out []string
		for _, x := range t {
			if s := str(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// names reads Person values: a name, an object with a name, or an array
// of either.
func names(v any) []string {
	switch t := v.(type) {
	case string:
		return splitList(t)
	case map[string]any:
		if n := str(t["name"]); n != "" {
			return []string{n}
		}
	case []any:
		var out []string
		for _, x := range t {
			out = append(out, names(x)...)
		}
		return out
	}
	return nil
}

// imageURL reads an ImageObject, a URL or an array of either.
func imageURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return str(t["url"])
	case []any:
		for _, x := range t {
			if u := imageURL(x); u != "" {
				return u
			}
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// year returns the leading four digit year of a date, or 0.
func year(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1800 {
		return 0
	}
	return y
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		k := strings.ToLower(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n-1]
	cut := strings.TrimRight(string(r), " ")
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
