package server

import (
	"bytes"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/collection"
)

const (
	pageCacheControl    = "public, max-age=300"
	sitemapCacheControl = "public, max-age=3600"
	relatedLimit        = 6
)

var sitemapPageRe = regexp.MustCompile(`^sitemap-(\d+)\.xml$`)

func (s *Server) writePage(c *gin.Context, buf *bytes.Buffer) {
	c.Header("Cache-Control", pageCacheControl)
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) writeXML(c *gin.Context, buf *bytes.Buffer) {
	c.Header("Cache-Control", sitemapCacheControl)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", buf.Bytes())
}

func (s *Server) allRecords(c *gin.Context) ([]catalog.Record, bool) {
	if s.deps.StoreErr != nil {
		s.pageError(c, s.deps.StoreErr)
		return nil, false
	}
	recs, err := s.deps.Pages.All(c.Request.Context())
	if err != nil {
		s.pageError(c, err)
		return nil, false
	}
	return recs, true
}

func (s *Server) home(c *gin.Context) {
	s.renderHome(c, c.Query("category"))
}

func (s *Server) renderHome(c *gin.Context, category string) {
	recs, ok := s.allRecords(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.Home(&buf, recs, c.Query("search"), category); err != nil {
		s.pageError(c, err)
		return
	}
	s.writePage(c, &buf)
}

// single serves one segment paths: the sitemap pages and category
// listings.
func (s *Server) single(c *gin.Context) {
	name := c.Param("category")
	if name == "sitemap-categories.xml" {
		s.categoriesSitemap(c)
		return
	}
	if m := sitemapPageRe.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[1])
		s.sitemapPage(c, n)
		return
	}
	s.renderHome(c, name)
}

func (s *Server) detail(c *gin.Context) {
	if s.deps.StoreErr != nil {
		s.pageError(c, s.deps.StoreErr)
		return
	}
	ctx := c.Request.Context()
	category, slug := c.Param("category"), c.Param("slug")

	rec, err := s.deps.Pages.Get(ctx, category, slug)
	if err != nil {
		s.pageError(c, err)
		return
	}

	var related []catalog.Record
	if recs, err := s.deps.Pages.List(ctx, category); err != nil {
		s.log.Warn("listing related records", "category", category, "error", err)
	} else {
		catalog.SortNewest(recs)
		for _, r := range recs {
			if r.Slug != rec.Slug && len(related) < relatedLimit {
				related = append(related, r)
			}
		}
	}

	var buf bytes.Buffer
	if err := s.deps.Renderer.Detail(&buf, rec, related); err != nil {
		s.pageError(c, err)
		return
	}
	s.writePage(c, &buf)
}

func (s *Server) channelPage(c *gin.Context) {
	if s.deps.StoreErr != nil {
		s.pageError(c, s.deps.StoreErr)
		return
	}
	n, err := pageParam(c)
	if err != nil {
		s.pageError(c, err)
		return
	}
	ctx := c.Request.Context()
	slug := c.Param("slug")
	entry, err := s.deps.Collections.Index.Get(ctx, collection.Channels, slug)
	if err != nil {
		s.pageError(c, err)
		return
	}
	videos, page, files, err := s.deps.Collections.Page(ctx, collection.Channels, slug, n)
	if err != nil {
		s.pageError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.Channel(&buf, entry, videos, page, files); err != nil {
		s.pageError(c, err)
		return
	}
	s.writePage(c, &buf)
}

func (s *Server) sitemapIndex(c *gin.Context) {
	recs, ok := s.allRecords(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.SitemapIndex(&buf, len(recs)); err != nil {
		s.pageError(c, err)
		return
	}
	s.writeXML(c, &buf)
}

func (s *Server) sitemapPage(c *gin.Context, n int) {
	recs, ok := s.allRecords(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.SitemapPage(&buf, recs, n); err != nil {
		s.pageError(c, err)
		return
	}
	s.writeXML(c, &buf)
}

func (s *Server) categoriesSitemap(c *gin.Context) {
	if s.deps.StoreErr != nil {
		s.pageError(c, s.deps.StoreErr)
		return
	}
	cats, err := s.deps.Pages.Categories(c.Request.Context())
	if err != nil {
		s.pageError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.CategoriesSitemap(&buf, cats); err != nil {
		s.pageError(c, err)
		return
	}
	s.writeXML(c, &buf)
}

func (s *Server) robots(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.deps.Renderer.Robots(&buf); err != nil {
		s.pageError(c, err)
		return
	}
	c.Header("Cache-Control", sitemapCacheControl)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}
