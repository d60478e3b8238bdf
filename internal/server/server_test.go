package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/cdn"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/config"
	"github.com/blackwell-systems/reelshelf/internal/render"
	"github.com/blackwell-systems/reelshelf/internal/server"
	"github.com/blackwell-systems/reelshelf/internal/store"
	"github.com/blackwell-systems/reelshelf/internal/testutil"
)

type fakeUploader struct {
	mu   sync.Mutex
	keys map[string]string
	fail string
}

func (f *fakeUploader) Put(_ context.Context, key string, file cdn.File) (string, error) {
	if f.fail != "" && strings.HasPrefix(key, f.fail) {
		return "", &cdn.UpstreamError{Key: key, Status: http.StatusInternalServerError}
	}
	body, err := io.ReadAll(file.Body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.keys[key] = string(body)
	f.mu.Unlock()
	return "https://cdn.example/" + key, nil
}

type harness struct {
	srv     *server.Server
	st      *store.MemoryStore
	uploads *fakeUploader
}

func newHarness(t *testing.T, mutate func(*config.ServerConfig, *server.Deps)) *harness {
	t.Helper()
	st := store.NewMemoryStore()
	clock := testutil.FixedClock()
	rnd, err := render.New(render.Site{Name: "Reels", BaseURL: "https://reels.example"}, clock)
	require.NoError(t, err)
	up := &fakeUploader{keys: map[string]string{}}

	cfg := config.ServerConfig{MaxBodyBytes: 1 << 20, MaxUploadBytes: 8 << 20}
	deps := server.Deps{
		Pages:       catalog.NewRepository(st, "", nil),
		Categories:  catalog.NewCategorySet(st, "", clock),
		Collections: collection.NewService(st, collection.Options{Clock: clock, IDs: testutil.NewStubIDGenerator()}),
		Relay:       cdn.NewRelay(up, cdn.RelayOptions{Clock: clock}),
		Renderer:    rnd,
		Gatherer:    prometheus.NewRegistry(),
		Version:     "test",
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return &harness{srv: server.New(cfg, deps), st: st, uploads: up}
}

func (h *harness) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) postJSON(t *testing.T, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return h.do(t, http.MethodPost, target, bytes.NewReader(data), "application/json")
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func movie(title, category string) map[string]any {
	return map[string]any{
		"title":       title,
		"category":    category,
		"videoUrl":    "https://cdn.example/videos/" + catalog.Slugify(title) + ".mp4",
		"description": "A **bold** story.",
		"tags":        []string{"ocean", "survival"},
		"releaseYear": "2021",
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "version": "test"}, decodeBody(t, rec))
}

func TestSaveMovie(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.postJSON(t, "/api/save-movie", map[string]any{"movieData": movie("Deep Water", "Drama")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "categories/drama/videos-1.json", body["filePath"])
	assert.Equal(t, float64(1), body["videoCount"])
	assert.Equal(t, "content/movies/drama/deep-water.md", body["pagePath"])
	assert.Equal(t, false, body["duplicate"])

	ctx := context.Background()
	_, err := h.st.Get(ctx, "content/movies/drama/deep-water.md")
	require.NoError(t, err)
	_, err = h.st.Get(ctx, "data/category-index.json")
	require.NoError(t, err)

	rec = h.do(t, http.MethodGet, "/api/get-categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"drama"}, decodeBody(t, rec)["categories"])
}

func TestSaveMovie_Validation(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.postJSON(t, "/api/save-movie", map[string]any{"movieData": map[string]any{"title": "No Video"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "videoUrl")

	rec = h.do(t, http.MethodPost, "/api/save-movie", strings.NewReader("{not json"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.postJSON(t, "/api/save-movie", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToChannel(t *testing.T) {
	h := newHarness(t, nil)

	for _, title := range []string{"First Clip", "Second Clip"} {
		rec := h.postJSON(t, "/api/add-to-channel", map[string]any{
			"channelName": "Comedy Hits",
			"videoData":   map[string]any{"title": title},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := h.do(t, http.MethodGet, "/api/channels/comedy-hits", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	videos, ok := body["videos"].([]any)
	require.True(t, ok)
	require.Len(t, videos, 2)
	assert.Equal(t, "Second Clip", videos[0].(map[string]any)["title"])

	rec = h.do(t, http.MethodGet, "/api/channels", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["totalVideos"])
}

func TestAddToChannel_FormAndRetry(t *testing.T) {
	h := newHarness(t, nil)
	form := url.Values{
		"channelName": {"Shorts"},
		"requestId":   {"req-1"},
		"videoData":   {`{"title":"Quick One"}`},
	}

	var bodies []map[string]any
	for range 2 {
		rec := h.do(t, http.MethodPost, "/api/add-to-channel-json", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		bodies = append(bodies, decodeBody(t, rec))
	}
	assert.Equal(t, false, bodies[0]["duplicate"])
	assert.Equal(t, true, bodies[1]["duplicate"])
	assert.Equal(t, float64(1), bodies[1]["totalVideos"])
}

func TestAddToChannel_MissingTitle(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.postJSON(t, "/api/add-to-channel", map[string]any{
		"channelName": "Shorts",
		"videoData":   map[string]any{"description": "untitled"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMarkdown(t *testing.T) {
	h := newHarness(t, nil)
	req := map[string]any{"fileName": "About.md", "channelName": "Comedy Hits"}

	rec := h.postJSON(t, "/api/create-md", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "channels/comedy-hits/about.md", decodeBody(t, rec)["filePath"])

	obj, err := h.st.Get(context.Background(), "channels/comedy-hits/about.md")
	require.NoError(t, err)
	assert.Equal(t, "# About\n", string(obj.Data))

	rec = h.postJSON(t, "/api/create-md", req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.postJSON(t, "/api/create-md", map[string]any{"fileName": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "channelName")
}

func TestSaveCategories(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.postJSON(t, "/api/save-categories", map[string]any{"categories": []string{" Sci-Fi", "drama", "Drama"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/get-categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"drama", "sci-fi"}, decodeBody(t, rec)["categories"])

	rec = h.postJSON(t, "/api/save-categories", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.postJSON(t, "/api/save-movie", map[string]any{"movieData": movie("Deep Water", "drama")}).Code)
	sunny := movie("Sunny Side", "comedy")
	sunny["tags"] = []string{"family"}
	require.Equal(t, http.StatusOK, h.postJSON(t, "/api/save-movie", map[string]any{"movieData": sunny}).Code)

	rec := h.do(t, http.MethodGet, "/api/search?q=surviv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total"])
	results := body["results"].([]any)
	assert.Equal(t, "deep-water", results[0].(map[string]any)["slug"])

	rec = h.do(t, http.MethodGet, "/api/search", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["total"])

	rec = h.do(t, http.MethodGet, "/api/search-index", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	assert.Equal(t, float64(2), decodeBody(t, rec)["total"])
}

func TestPages(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.postJSON(t, "/api/save-movie", map[string]any{"movieData": movie("Deep Water", "drama")}).Code)
	require.Equal(t, http.StatusOK, h.postJSON(t, "/api/save-movie", map[string]any{"movieData": movie("Low Tide", "drama")}).Code)

	rec := h.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Deep Water")
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	rec = h.do(t, http.MethodGet, "/drama/deep-water", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "application/ld+json")
	assert.Contains(t, page, "A **bold** story.")
	assert.Contains(t, page, "Low Tide", "related records listed")

	rec = h.do(t, http.MethodGet, "/drama", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Low Tide")

	rec = h.do(t, http.MethodGet, "/drama/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "find that page")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = h.do(t, http.MethodGet, "/a/b/c", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetail_OutsidePagesRoot(t *testing.T) {
	h := newHarness(t, nil)
	draft := []byte("---\ntitle: Secret Draft\nvideoUrl: https://cdn.example/d.mp4\n---\nunpublished\n")
	_, err := h.st.Put(context.Background(), "content/draft.md", draft, "", "")
	require.NoError(t, err)

	for _, target := range []string{"/%2e%2e/draft", "/drama/%2e%2e", "/Drama/draft"} {
		rec := h.do(t, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "Secret Draft", target)
	}
}

func TestChannelPage(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.postJSON(t, "/api/add-to-channel", map[string]any{
		"channelName": "Comedy Hits",
		"videoData":   map[string]any{"title": "First Clip"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/channel/comedy-hits", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "First Clip")

	rec = h.do(t, http.MethodGet, "/channel/comedy-hits?page=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/channel/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSitemaps(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.postJSON(t, "/api/save-movie", map[string]any{"movieData": movie("Deep Water", "drama")}).Code)

	rec := h.do(t, http.MethodGet, "/sitemap.xml", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), "sitemap-1.xml")
	assert.Contains(t, rec.Body.String(), "sitemap-categories.xml")

	rec = h.do(t, http.MethodGet, "/sitemap-1.xml", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/drama/deep-water")

	rec = h.do(t, http.MethodGet, "/sitemap-categories.xml", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "category=drama")

	rec = h.do(t, http.MethodGet, "/sitemap-2.xml", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/robots.txt", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap:")
}

func multipartUpload(t *testing.T, title string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, w.WriteField("title", title))
	}
	for field, name := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(field + " bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	h := newHarness(t, nil)
	body, ct := multipartUpload(t, "My Reel", map[string]string{"video": "clip.MP4", "thumbnail": "poster.jpg"})

	rec := h.do(t, http.MethodPost, "/upload", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, "https://cdn.example/videos/my-reel-1705314600000.mp4", got["videoUrl"])
	assert.Equal(t, "https://cdn.example/thumbnails/my-reel-1705314600000.jpg", got["thumbnailUrl"])
	assert.Equal(t, "video bytes", h.uploads.keys["videos/my-reel-1705314600000.mp4"])
}

func TestUpload_Errors(t *testing.T) {
	h := newHarness(t, nil)

	body, ct := multipartUpload(t, "My Reel", map[string]string{"video": "clip.mp4"})
	rec := h.do(t, http.MethodPost, "/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "thumbnail")

	rec = h.do(t, http.MethodPost, "/upload", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.uploads.fail = cdn.ThumbnailPrefix
	body, ct = multipartUpload(t, "My Reel", map[string]string{"video": "clip.mp4", "thumbnail": "poster.jpg"})
	rec = h.do(t, http.MethodPost, "/upload", body, ct)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "videos/my-reel-1705314600000.mp4")
}

func TestUnconfiguredServices(t *testing.T) {
	h := newHarness(t, func(_ *config.ServerConfig, d *server.Deps) {
		d.Pages, d.Categories, d.Collections, d.Relay = nil, nil, nil, nil
		d.StoreErr = &config.ConfigError{Feature: config.FeatureStore, Missing: []string{"REELSHELF_GITHUB_OWNER"}}
	})

	rec := h.postJSON(t, "/api/save-movie", map[string]any{"movieData": movie("Deep Water", "drama")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "REELSHELF_GITHUB_OWNER")

	body, ct := multipartUpload(t, "My Reel", map[string]string{"video": "clip.mp4", "thumbnail": "poster.jpg"})
	rec = h.do(t, http.MethodPost, "/upload", body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = h.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Health does not depend on the store.
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", nil, "").Code)
}

type failingStore struct{ store.Store }

func (failingStore) Get(context.Context, string) (store.Object, error) {
	return store.Object{}, errors.New("disk on fire")
}

func (failingStore) List(context.Context, string) ([]store.Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := newHarness(t, func(_ *config.ServerConfig, d *server.Deps) {
		d.Categories = catalog.NewCategorySet(failingStore{}, "", nil)
	})
	rec := h.do(t, http.MethodGet, "/api/get-categories", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody(t, rec)["error"])
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.ServerConfig, _ *server.Deps) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 1
	})
	req := map[string]any{"categories": []string{"drama"}}

	assert.Equal(t, http.StatusOK, h.postJSON(t, "/api/save-categories", req).Code)
	rec := h.postJSON(t, "/api/save-categories", req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/get-categories", nil, "").Code)
}

func TestBodyLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.ServerConfig, _ *server.Deps) {
		cfg.MaxBodyBytes = 64
	})
	rec := h.postJSON(t, "/api/save-categories", map[string]any{"categories": []string{strings.Repeat("x", 200)}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
