package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/frontmatter"
	"github.com/blackwell-systems/reelshelf/internal/store"
	"github.com/blackwell-systems/reelshelf/internal/testutil"
)

var samplePage = []byte(`---
title: "Night Train"
category: Thriller
releaseYear: "1998"
duration: 1h 52m
tags: ["trains", "mystery"]
videoUrl: https://cdn.example.com/videos/night-train.mp4
posterUrl: https://cdn.example.com/thumbnails/night-train.jpg
description: A passenger vanishes between stations.
uploadDate: 2024-01-10T08:00:00Z
---
Full synopsis.
`)

func sampleRecords() []catalog.Record {
	return []catalog.Record{
		{Title: "Night Train", Slug: "night-train", Category: "thriller", Description: "A passenger vanishes between stations.", Tags: []string{"trains", "mystery"}, UploadDate: "2024-01-10T08:00:00Z"},
		{Title: "Sunny Side", Slug: "sunny-side", Category: "comedy", Description: "Two cooks, one kitchen.", Tags: []string{"food"}, UploadDate: "2024-01-12T08:00:00Z"},
		{Title: "Deep Water", Slug: "deep-water", Category: "drama", Description: "An ocean crossing.", Tags: []string{"sea", "survival"}, UploadDate: "2024-01-11T08:00:00Z"},
	}
}

// --- Page parse / marshal ---

func TestParsePage(t *testing.T) {
	r, err := catalog.ParsePage("content/movies/thriller/night-train.md", samplePage)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if r.Slug != "night-train" {
		t.Errorf("Slug = %q, want derived from title", r.Slug)
	}
	if r.Category != "thriller" {
		t.Errorf("Category = %q, want slugified", r.Category)
	}
	if r.ReleaseYear != 1998 {
		t.Errorf("ReleaseYear = %d", r.ReleaseYear)
	}
	if !reflect.DeepEqual(r.Tags, []string{"trains", "mystery"}) {
		t.Errorf("Tags = %v", r.Tags)
	}
	if r.Body != "Full synopsis.\n" {
		t.Errorf("Body = %q", r.Body)
	}
}

func TestParsePage_MissingRequired(t *testing.T) {
	_, err := catalog.ParsePage("x.md", []byte("---\ndescription: nothing else\n---\n"))
	var verr *catalog.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"title", "videoUrl"}) {
		t.Errorf("Missing = %v", verr.Missing)
	}
	if verr.Path != "x.md" {
		t.Errorf("Path = %q", verr.Path)
	}
}

func TestParsePage_NoFrontMatter(t *testing.T) {
	_, err := catalog.ParsePage("x.md", []byte("# just markdown\n"))
	if !errors.Is(err, frontmatter.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestMarshalPage_RoundTrip(t *testing.T) {
	r, err := catalog.ParsePage("p.md", samplePage)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	data, err := catalog.MarshalPage(r)
	if err != nil {
		t.Fatalf("MarshalPage: %v", err)
	}
	r2, err := catalog.ParsePage("p.md", data)
	if err != nil {
		t.Fatalf("re-Parse: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(r, r2) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", r2, r)
	}
}

func TestRecord_UnmarshalJSON_Lenient(t *testing.T) {
	var r catalog.Record
	err := json.Unmarshal([]byte(`{"title":"X","releaseYear":"2020","tags":"a, b","videoUrl":"u"}`), &r)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.ReleaseYear != 2020 {
		t.Errorf("ReleaseYear = %d", r.ReleaseYear)
	}
	if !reflect.DeepEqual(r.Tags, []string{"a", "b"}) {
		t.Errorf("Tags = %v", r.Tags)
	}

	var r2 catalog.Record
	if err := json.Unmarshal([]byte(`{"title":"X","releaseYear":2021,"tags":["c"]}`), &r2); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r2.ReleaseYear != 2021 || !reflect.DeepEqual(r2.Tags, []string{"c"}) {
		t.Errorf("got %+v", r2)
	}
}

// --- Slugify / ISODuration ---

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Comedy Hits", "comedy-hits"},
		{"Director's Cut", "directors-cut"},
		{"  --Alien: Covenant!!  ", "alien-covenant"},
		{"“Quoted”", "quoted"},
		{"!!!", "untitled"},
		{"", "untitled"},
		{"a-very-long-title-that-keeps-going-and-going-past-the-sixty-three-char-limit", "a-very-long-title-that-keeps-going-and-going-past-the-sixty-thr"},
	}
	for _, tt := range tests {
		if got := catalog.Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestISODuration(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2h 15m", "PT2H15M"},
		{"2h15m", "PT2H15M"},
		{"135 min", "PT2H15M"},
		{"90", "PT1H30M"},
		{"1:45:00", "PT1H45M"},
		{"1:45", "PT1H45M"},
		{"2 hours", "PT2H"},
		{"PT1H30M", "PT1H30M"},
		{"pt45m", "PT45M"},
		{"", ""},
		{"about a while", ""},
	}
	for _, tt := range tests {
		if got := catalog.ISODuration(tt.in); got != tt.want {
			t.Errorf("ISODuration(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Filter / Search ---

func TestFilter_ByCategory(t *testing.T) {
	result := catalog.Filter{Category: "Comedy"}.Apply(sampleRecords())
	if len(result) != 1 || result[0].Slug != "sunny-side" {
		t.Errorf("category filter: got %v", slugs(result))
	}
}

func TestFilter_ByTag(t *testing.T) {
	result := catalog.Filter{Tag: "SEA"}.Apply(sampleRecords())
	if len(result) != 1 || result[0].Slug != "deep-water" {
		t.Errorf("tag filter: got %v", slugs(result))
	}
}

func TestFilter_Empty(t *testing.T) {
	if got := len(catalog.Filter{}.Apply(sampleRecords())); got != 3 {
		t.Errorf("empty filter should return all records, got %d", got)
	}
}

func TestSearch_TagOnlyMatch(t *testing.T) {
	// "survival" appears only in one record's tags.
	result := catalog.Search(sampleRecords(), "surviv", 20)
	if len(result) != 1 || result[0].Slug != "deep-water" {
		t.Errorf("tag-only search: got %v", slugs(result))
	}
}

func TestSearch_OrderAndLimit(t *testing.T) {
	result := catalog.Search(sampleRecords(), "e", 2)
	want := []string{"sunny-side", "deep-water"}
	if !reflect.DeepEqual(slugs(result), want) {
		t.Errorf("got %v, want %v", slugs(result), want)
	}
	if got := catalog.Search(sampleRecords(), "  ", 10); got != nil {
		t.Errorf("blank query should return nil, got %v", slugs(got))
	}
}

func slugs(records []catalog.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Slug
	}
	return out
}

// --- Repository ---

func TestRepository_CreateGetAll(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := catalog.NewRepository(st, "", nil)

	for _, r := range sampleRecords() {
		r.VideoURL = "https://cdn.example.com/" + r.Slug + ".mp4"
		if _, _, err := repo.Create(ctx, r, ""); err != nil {
			t.Fatalf("Create %s: %v", r.Slug, err)
		}
	}

	p, _, err := repo.Create(ctx, catalog.Record{Title: "Night Train", Category: "thriller", VideoURL: "u"}, "")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate Create err = %v, want ErrConflict", err)
	}
	if p != "content/movies/thriller/night-train.md" {
		t.Errorf("path = %q", p)
	}

	got, err := repo.Get(ctx, "drama", "deep-water")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Deep Water" || !reflect.DeepEqual(got.Tags, []string{"sea", "survival"}) {
		t.Errorf("Get = %+v", got)
	}

	if _, err := repo.Get(ctx, "drama", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing Get err = %v", err)
	}

	cats, err := repo.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if !reflect.DeepEqual(cats, []string{"comedy", "drama", "thriller"}) {
		t.Errorf("Categories = %v", cats)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if want := []string{"sunny-side", "deep-water", "night-train"}; !reflect.DeepEqual(slugs(all), want) {
		t.Errorf("All = %v, want %v", slugs(all), want)
	}
}

func TestRepository_SkipsBrokenPages(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if _, err := st.Put(ctx, "content/movies/drama/ok.md", samplePage, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Put(ctx, "content/movies/drama/broken.md", []byte("no header"), "", ""); err != nil {
		t.Fatal(err)
	}

	recs, err := catalog.NewRepository(st, "", nil).List(ctx, "drama")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].Slug != "ok" {
		t.Errorf("List = %v", slugs(recs))
	}
}

func TestRepository_StaysBelowRoot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if _, err := st.Put(ctx, "content/draft.md", samplePage, "", ""); err != nil {
		t.Fatal(err)
	}
	repo := catalog.NewRepository(st, "", nil)

	for _, tc := range []struct{ category, slug string }{
		{"..", "draft"},
		{"drama", "../../draft"},
		{"Drama", "ok"},
		{"", "draft"},
	} {
		if _, err := repo.Get(ctx, tc.category, tc.slug); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get(%q, %q) err = %v, want ErrNotFound", tc.category, tc.slug, err)
		}
	}
	recs, err := repo.List(ctx, "..")
	if err != nil || len(recs) != 0 {
		t.Errorf("List(..) = %v, %v", slugs(recs), err)
	}
}

func TestRepository_EmptyStore(t *testing.T) {
	repo := catalog.NewRepository(store.NewMemoryStore(), "", nil)
	all, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no records, got %d", len(all))
	}
}

func TestRepository_CreateMarkdown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := catalog.NewRepository(st, "", nil)

	p, _, err := repo.CreateMarkdown(ctx, "channels/comedy-hits", "Episode One.md", []byte("# Episode One\n"), "")
	if err != nil {
		t.Fatalf("CreateMarkdown: %v", err)
	}
	if p != "channels/comedy-hits/episode-one.md" {
		t.Errorf("path = %q", p)
	}
	if _, _, err := repo.CreateMarkdown(ctx, "channels/comedy-hits", "episode one", nil, ""); !errors.Is(err, store.ErrConflict) {
		t.Errorf("second CreateMarkdown err = %v, want ErrConflict", err)
	}
}

// --- CategorySet ---

func TestCategorySet(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	set := catalog.NewCategorySet(st, "", testutil.FixedClock())

	cats, err := set.Load(ctx)
	if err != nil || len(cats) != 0 {
		t.Fatalf("Load empty = %v, %v", cats, err)
	}

	cats, err = set.Replace(ctx, []string{"Drama", "comedy", " drama ", ""})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if !reflect.DeepEqual(cats, []string{"comedy", "drama"}) {
		t.Errorf("Replace = %v", cats)
	}

	cats, err = set.Add(ctx, "horror", "comedy")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !reflect.DeepEqual(cats, []string{"comedy", "drama", "horror"}) {
		t.Errorf("Add = %v", cats)
	}

	obj, err := st.Get(ctx, catalog.DefaultCategorySetPath)
	if err != nil {
		t.Fatal(err)
	}
	var file struct {
		Categories []string `json:"categories"`
		UpdatedAt  string   `json:"updatedAt"`
	}
	if err := json.Unmarshal(obj.Data, &file); err != nil {
		t.Fatal(err)
	}
	if file.UpdatedAt != "2024-01-15T10:30:00Z" {
		t.Errorf("updatedAt = %q", file.UpdatedAt)
	}
}

func TestCategorySet_LegacyArray(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if _, err := st.Put(ctx, "data/categories.json", []byte(`["Sci-Fi","drama"]`), "", ""); err != nil {
		t.Fatal(err)
	}
	cats, err := catalog.NewCategorySet(st, "", nil).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cats, []string{"drama", "sci-fi"}) {
		t.Errorf("Load = %v", cats)
	}
}
