package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/scrape"
	"github.com/blackwell-systems/reelshelf/internal/store"
)

// SearchLimit caps /api/search results.
const SearchLimit = 20

// bindJSON decodes the request body. An oversized body keeps its
// *http.MaxBytesError so it maps to 413.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// storeReady reports the configuration error of the store, if any.
func (s *Server) storeReady(c *gin.Context) bool {
	if s.deps.StoreErr != nil {
		s.apiError(c, s.deps.StoreErr)
		return false
	}
	return true
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (s *Server) scrapeURL(c *gin.Context) {
	var req scrapeRequest
	if err := bindJSON(c, &req); err != nil {
		s.apiError(c, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.apiError(c, badRequest("url is required"))
		return
	}
	res, err := s.deps.Fetcher.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		s.apiError(c, err)
		return
	}
	s.scraped(c, res)
}

type processHTMLRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

func (s *Server) processHTML(c *gin.Context) {
	var req processHTMLRequest
	if err := bindJSON(c, &req); err != nil {
		s.apiError(c, err)
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		s.apiError(c, badRequest("html is required"))
		return
	}
	res, err := scrape.FromHTML(req.HTML, req.URL)
	if err != nil {
		s.apiError(c, err)
		return
	}
	s.scraped(c, res)
}

func (s *Server) scraped(c *gin.Context, res scrape.Result) {
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"movieData":     res.Record,
		"extractedFrom": res.ExtractedFrom,
	})
}

type saveMovieRequest struct {
	MovieData *catalog.Record `json:"movieData"`
}

// saveMovie appends the record to its category collection, creates its
// page when there is none yet and adds the category to the category set.
func (s *Server) saveMovie(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	var req saveMovieRequest
	if err := bindJSON(c, &req); err != nil {
		s.apiError(c, err)
		return
	}
	if req.MovieData == nil {
		s.apiError(c, badRequest("movieData is required"))
		return
	}
	rec := *req.MovieData
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		s.apiError(c, err)
		return
	}

	ctx := c.Request.Context()
	res, err := s.deps.Collections.Append(ctx, collection.Categories, rec.Category, rec)
	if err != nil {
		s.apiError(c, err)
		return
	}

	pagePath, _, err := s.deps.Pages.Create(ctx, res.Record, "")
	switch {
	case errors.Is(err, store.ErrConflict):
		s.log.Info("page already exists", "path", pagePath)
	case err != nil:
		s.apiError(c, err)
		return
	}
	if _, err := s.deps.Categories.Add(ctx, rec.Category); err != nil {
		s.log.Warn("adding category failed", "category", rec.Category, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"filePath":   res.File,
		"videoCount": res.Count,
		"githubUrl":  res.URL,
		"pagePath":   pagePath,
		"duplicate":  res.Duplicate,
	})
}

type addToChannelRequest struct {
	ChannelName string          `json:"channelName"`
	VideoData   *catalog.Record `json:"videoData"`
	RequestID   string          `json:"requestId"`
}

// readAddToChannel accepts a JSON body or a form whose videoData field
// holds the record as JSON.
func readAddToChannel(c *gin.Context) (addToChannelRequest, error) {
	var req addToChannelRequest
	ct := c.ContentType()
	if ct != "application/x-www-form-urlencoded" && ct != "multipart/form-data" {
		return req, bindJSON(c, &req)
	}
	req.ChannelName = c.PostForm("channelName")
	req.RequestID = c.PostForm("requestId")
	if raw := c.PostForm("videoData"); raw != "" {
		var rec catalog.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return req, badRequest("videoData is not valid JSON: " + err.Error())
		}
		req.VideoData = &rec
	}
	return req, nil
}

func (s *Server) addToChannel(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	req, err := readAddToChannel(c)
	if err != nil {
		s.apiError(c, err)
		return
	}
	if req.VideoData == nil {
		s.apiError(c, badRequest("videoData is required"))
		return
	}
	rec := *req.VideoData
	if req.RequestID != "" {
		rec.RequestID = req.RequestID
	}

	res, err := s.deps.Collections.Append(c.Request.Context(), collection.Channels, req.ChannelName, rec)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"channelSlug": res.Slug,
		"jsonFile":    res.File,
		"videoCount":  res.Count,
		"nextFile":    res.NextFile,
		"totalVideos": res.Entry.TotalVideos,
		"video":       res.Record,
		"duplicate":   res.Duplicate,
		"githubUrl":   res.URL,
	})
}

type createMarkdownRequest struct {
	FileName    string `json:"fileName"`
	ChannelName string `json:"channelName"`
	Content     string `json:"content"`
}

func (s *Server) createMarkdown(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	var req createMarkdownRequest
	if err := bindJSON(c, &req); err != nil {
		s.apiError(c, err)
		return
	}
	var missing []string
	if strings.TrimSpace(req.FileName) == "" {
		missing = append(missing, "fileName")
	}
	if strings.TrimSpace(req.ChannelName) == "" {
		missing = append(missing, "channelName")
	}
	if len(missing) > 0 {
		s.apiError(c, &catalog.ValidationError{Missing: missing})
		return
	}
	content := req.Content
	if content == "" {
		content = "# " + strings.TrimSuffix(strings.TrimSpace(req.FileName), ".md") + "\n"
	}

	dir := collection.Channels.Dir(catalog.Slugify(req.ChannelName))
	p, put, err := s.deps.Pages.CreateMarkdown(c.Request.Context(), dir, req.FileName, []byte(content), "")
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "filePath": p, "githubUrl": put.URL})
}

func (s *Server) getCategories(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	cats, err := s.deps.Categories.Load(c.Request.Context())
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": cats})
}

type saveCategoriesRequest struct {
	Categories []string `json:"categories"`
}

func (s *Server) saveCategories(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	var req saveCategoriesRequest
	if err := bindJSON(c, &req); err != nil {
		s.apiError(c, err)
		return
	}
	if req.Categories == nil {
		s.apiError(c, badRequest("categories is required"))
		return
	}
	cats, err := s.deps.Categories.Replace(c.Request.Context(), req.Categories)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": cats})
}

// indexItem is one entry of the client side search index.
type indexItem struct {
	catalog.Summary
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
}

func (s *Server) search(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	results := []catalog.Summary{}
	if q != "" {
		all, err := s.deps.Pages.All(c.Request.Context())
		if err != nil {
			s.apiError(c, err)
			return
		}
		for _, r := range catalog.Search(all, q, SearchLimit) {
			results = append(results, r.Summary())
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "query": q, "results": results, "total": len(results)})
}

func (s *Server) searchIndex(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	all, err := s.deps.Pages.All(c.Request.Context())
	if err != nil {
		s.apiError(c, err)
		return
	}
	items := make([]indexItem, 0, len(all))
	for _, r := range all {
		items = append(items, indexItem{
			Summary:     r.Summary(),
			Description: r.Description,
			Tags:        r.Tags,
			ReleaseYear: r.ReleaseYear,
		})
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, gin.H{"success": true, "movies": items, "total": len(items)})
}

func (s *Server) listChannels(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	doc, err := s.deps.Collections.Index.Load(c.Request.Context(), collection.Channels)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"updatedAt":   doc.UpdatedAt,
		"totalVideos": doc.TotalVideos,
		"channels":    doc.Channels,
	})
}

func (s *Server) getChannel(c *gin.Context) {
	if !s.storeReady(c) {
		return
	}
	n, err := pageParam(c)
	if err != nil {
		s.apiError(c, err)
		return
	}
	ctx := c.Request.Context()
	slug := c.Param("slug")
	entry, err := s.deps.Collections.Index.Get(ctx, collection.Channels, slug)
	if err != nil {
		s.apiError(c, err)
		return
	}
	videos, page, files, err := s.deps.Collections.Page(ctx, collection.Channels, slug, n)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"channel": entry,
		"page":    page,
		"files":   files,
		"videos":  videos,
	})
}

// pageParam reads ?page=n; absent means the newest file.
func pageParam(c *gin.Context) (int, error) {
	raw := c.Query("page")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest("page must be a positive integer")
	}
	return n, nil
}
