package render_test

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/render"
	"github.com/blackwell-systems/reelshelf/internal/testutil"
)

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(render.Site{Name: "Reels", BaseURL: "https://reels.example/"}, testutil.FixedClock())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func records(n int, category string) []catalog.Record {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]catalog.Record, n)
	for i := range out {
		out[i] = catalog.Record{
			Title:      fmt.Sprintf("Film %04d", i),
			Slug:       fmt.Sprintf("film-%04d", i),
			Category:   category,
			VideoURL:   "https://cdn.example/v.mp4",
			UploadDate: catalog.Timestamp(base.Add(time.Duration(i) * time.Minute)),
		}
	}
	return out
}

func TestHome_SectionsPerCategory(t *testing.T) {
	r := newRenderer(t)
	recs := append(records(15, "drama"), records(2, "comedy")...)

	var buf bytes.Buffer
	if err := r.Home(&buf, recs, "", ""); err != nil {
		t.Fatalf("Home: %v", err)
	}
	html := buf.String()

	if got := strings.Count(html, `class="card"`); got != render.DefaultPerCategory+2 {
		t.Errorf("cards = %d, want %d", got, render.DefaultPerCategory+2)
	}
	if !strings.Contains(html, "Film 0014") {
		t.Error("newest drama record missing")
	}
	// comedy only has Film 0000 and 0001, so 0002 could only be an old drama record.
	if strings.Contains(html, "Film 0002") {
		t.Error("oldest drama records should be cut")
	}
	if strings.Index(html, ">comedy<") > strings.Index(html, ">drama<") {
		t.Error("sections not in category order")
	}
	if !strings.Contains(html, "&copy; 2024 Reels") {
		t.Error("footer year should come from the clock")
	}
}

func TestHome_Search(t *testing.T) {
	r := newRenderer(t)
	recs := []catalog.Record{
		{Title: "Deep Water", Slug: "deep-water", Category: "drama", Tags: []string{"survival"}},
		{Title: "Sunny Side", Slug: "sunny-side", Category: "comedy"},
	}

	var buf bytes.Buffer
	if err := r.Home(&buf, recs, "surviv", ""); err != nil {
		t.Fatalf("Home: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "Deep Water") || strings.Contains(html, "Sunny Side</div>") {
		t.Errorf("search results wrong:\n%s", html)
	}
	if !strings.Contains(html, `value="surviv"`) {
		t.Error("search box not prefilled")
	}
}

func TestHome_CategoryFilterNoResults(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.Home(&buf, records(3, "drama"), "", "horror"); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if !strings.Contains(buf.String(), "No titles found.") {
		t.Error("expected empty result message")
	}
}

func TestHome_EscapesTitles(t *testing.T) {
	r := newRenderer(t)
	recs := []catalog.Record{{Title: `<script>alert("x")</script>`, Slug: "x", Category: "drama"}}
	var buf bytes.Buffer
	if err := r.Home(&buf, recs, "", ""); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if strings.Contains(buf.String(), `<script>alert`) {
		t.Error("title was not escaped")
	}
}

func TestDetail(t *testing.T) {
	r := newRenderer(t)
	rec := catalog.Record{
		Title:       "Night Train",
		Slug:        "night-train",
		Category:    "thriller",
		ReleaseYear: 1998,
		Duration:    "2h 15m",
		Director:    "A. Person",
		MainCast:    "One, Two",
		VideoURL:    "https://cdn.example/videos/night-train.mp4",
		PosterURL:   "https://cdn.example/thumbnails/night-train.jpg",
		Tags:        []string{"trains"},
		UploadDate:  "2024-01-10T08:00:00Z",
		Body:        "Hello **world**\n\n<script>alert(1)</script>\n",
	}
	var buf bytes.Buffer
	if err := r.Detail(&buf, rec, nil); err != nil {
		t.Fatalf("Detail: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<title>Night Train (1998) | Reels</title>",
		`<link rel="canonical" href="https://reels.example/thriller/night-train">`,
		`"@type":"Movie"`,
		`"@type":"VideoObject"`,
		`"duration":"PT2H15M"`,
		`"datePublished":"1998"`,
		`"actor":[{"@type":"Person","name":"One"},{"@type":"Person","name":"Two"}]`,
		"<strong>world</strong>",
		"Jan 10, 2024",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("detail page missing %q", want)
		}
	}
	if strings.Contains(html, "alert(1)") {
		t.Error("raw HTML from the body was rendered")
	}
}

func TestJSONLD_NoVideo(t *testing.T) {
	js, err := render.JSONLD(render.Site{}, catalog.Record{Title: "T", Description: "d"})
	if err != nil {
		t.Fatalf("JSONLD: %v", err)
	}
	s := string(js)
	if strings.Contains(s, "VideoObject") || strings.Contains(s, `"url"`) {
		t.Errorf("unexpected fields: %s", s)
	}
	if !strings.Contains(s, `"description":"d"`) {
		t.Errorf("description missing: %s", s)
	}
}

func TestChannel(t *testing.T) {
	r := newRenderer(t)
	entry := collection.IndexEntry{Slug: "comedy-hits", Name: "Comedy Hits", TotalVideos: 102, Categories: []string{"comedy"}}

	var buf bytes.Buffer
	if err := r.Channel(&buf, entry, records(2, "comedy"), 2, []int{1, 2}); err != nil {
		t.Fatalf("Channel: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<h1>Comedy Hits</h1>", "102 videos", `href="/channel/comedy-hits?page=1"`, "<span>2</span>"} {
		if !strings.Contains(html, want) {
			t.Errorf("channel page missing %q", want)
		}
	}
}

func TestError(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.Error(&buf, 404, "Movie not found"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "<h1>404</h1>") || !strings.Contains(html, "Movie not found") {
		t.Errorf("error page wrong:\n%s", html)
	}
	if !strings.Contains(html, `<a href="/">`) {
		t.Error("error page should link home")
	}
}

// --- Sitemaps ---

type urlset struct {
	URLs []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
}

type sitemapindex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

func TestSitemap_2500Records(t *testing.T) {
	r := newRenderer(t)
	recs := records(2500, "drama")

	var buf bytes.Buffer
	if err := r.SitemapIndex(&buf, len(recs)); err != nil {
		t.Fatalf("SitemapIndex: %v", err)
	}
	var idx sitemapindex
	if err := xml.Unmarshal(buf.Bytes(), &idx); err != nil {
		t.Fatalf("parsing index: %v", err)
	}
	want := []string{
		"https://reels.example/sitemap-1.xml",
		"https://reels.example/sitemap-2.xml",
		"https://reels.example/sitemap-3.xml",
		"https://reels.example/sitemap-categories.xml",
	}
	if len(idx.Sitemaps) != len(want) {
		t.Fatalf("index has %d sitemaps, want %d", len(idx.Sitemaps), len(want))
	}
	for i, w := range want {
		if idx.Sitemaps[i].Loc != w {
			t.Errorf("sitemap %d = %q, want %q", i, idx.Sitemaps[i].Loc, w)
		}
	}

	seen := make(map[string]bool)
	for n, size := range map[int]int{1: 1000, 2: 1000, 3: 500} {
		buf.Reset()
		if err := r.SitemapPage(&buf, recs, n); err != nil {
			t.Fatalf("SitemapPage(%d): %v", n, err)
		}
		var set urlset
		if err := xml.Unmarshal(buf.Bytes(), &set); err != nil {
			t.Fatalf("parsing page %d: %v", n, err)
		}
		if len(set.URLs) != size {
			t.Errorf("page %d has %d urls, want %d", n, len(set.URLs), size)
		}
		for _, u := range set.URLs {
			if seen[u.Loc] {
				t.Errorf("%s listed twice", u.Loc)
			}
			seen[u.Loc] = true
		}
	}
	if len(seen) != 2500 {
		t.Errorf("distinct urls = %d, want 2500", len(seen))
	}
}

func TestSitemapPage_NewestFirst(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.SitemapPage(&buf, records(3, "drama"), 1); err != nil {
		t.Fatalf("SitemapPage: %v", err)
	}
	var set urlset
	if err := xml.Unmarshal(buf.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	if set.URLs[0].Loc != "https://reels.example/drama/film-0002" {
		t.Errorf("first url = %q", set.URLs[0].Loc)
	}
	if set.URLs[0].LastMod != "2024-01-01" {
		t.Errorf("lastmod = %q", set.URLs[0].LastMod)
	}
}

func TestSitemapPage_OutOfRange(t *testing.T) {
	r := newRenderer(t)
	for _, n := range []int{0, 2, -1} {
		err := r.SitemapPage(&bytes.Buffer{}, records(10, "drama"), n)
		if !errors.Is(err, render.ErrNoSuchSitemap) {
			t.Errorf("page %d: err = %v, want ErrNoSuchSitemap", n, err)
		}
	}
}

func TestSitemapIndex_Empty(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.SitemapIndex(&buf, 0); err != nil {
		t.Fatal(err)
	}
	var idx sitemapindex
	if err := xml.Unmarshal(buf.Bytes(), &idx); err != nil {
		t.Fatal(err)
	}
	if len(idx.Sitemaps) != 1 {
		t.Errorf("empty catalog index = %d sitemaps, want only the categories one", len(idx.Sitemaps))
	}
}

func TestCategoriesSitemap(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.CategoriesSitemap(&buf, []string{"Drama", "comedy", "drama"}); err != nil {
		t.Fatal(err)
	}
	var set urlset
	if err := xml.Unmarshal(buf.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, u := range set.URLs {
		got = append(got, u.Loc)
	}
	want := []string{"https://reels.example/", "https://reels.example/?category=comedy", "https://reels.example/?category=drama"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("urls = %v, want %v", got, want)
	}
	if set.URLs[0].LastMod != "2024-01-15" {
		t.Errorf("lastmod = %q, want clock date", set.URLs[0].LastMod)
	}
}

func TestRobots(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.Robots(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Sitemap: https://reels.example/sitemap.xml") {
		t.Errorf("robots.txt = %q", buf.String())
	}
}
