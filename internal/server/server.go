// Package server exposes the catalog over HTTP: the JSON API used by the
// admin tools, the rendered site and the upload relay.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/cdn"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/config"
	"github.com/blackwell-systems/reelshelf/internal/metrics"
	"github.com/blackwell-systems/reelshelf/internal/render"
	"github.com/blackwell-systems/reelshelf/internal/scrape"
)

// Deps are the services behind the routes. A nil service makes its routes
// answer with the matching Err field (a *config.ConfigError).
type Deps struct {
	Pages       *catalog.Repository
	Categories  *catalog.CategorySet
	Collections *collection.Service
	StoreErr    error

	Relay    *cdn.Relay
	RelayErr error

	Renderer *render.Renderer
	Fetcher  *scrape.Fetcher

	Metrics  *metrics.Observer
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Version  string
}

// Server is the HTTP server.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	log    *slog.Logger
	engine *gin.Engine
}

// New builds the router.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Fetcher == nil {
		deps.Fetcher = scrape.NewFetcher(scrape.FetchOptions{})
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Pages == nil && deps.StoreErr == nil {
		deps.StoreErr = &config.ConfigError{Feature: config.FeatureStore, Reason: "no store configured"}
	}
	if deps.Relay == nil && deps.RelayErr == nil {
		deps.RelayErr = &config.ConfigError{Feature: config.FeatureCDN, Reason: "no cdn configured"}
	}

	s := &Server{cfg: cfg, deps: deps, log: deps.Logger}
	s.engine = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.observe())
	r.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))

	limit := newRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst)
	body := bodyLimit(s.cfg.MaxBodyBytes)

	api := r.Group("/api")
	api.GET("/get-categories", s.getCategories)
	api.GET("/search", s.search)
	api.GET("/search-index", s.searchIndex)
	api.GET("/channels", s.listChannels)
	api.GET("/channels/:slug", s.getChannel)

	write := api.Group("", limit.middleware(), body)
	write.POST("/scrape", s.scrapeURL)
	write.POST("/process-html", s.processHTML)
	write.POST("/save-movie", s.saveMovie)
	write.POST("/add-to-channel", s.addToChannel)
	write.POST("/add-to-channel-json", s.addToChannel)
	write.POST("/create-md", s.createMarkdown)
	write.POST("/save-categories", s.saveCategories)

	r.POST("/upload", limit.middleware(), bodyLimit(s.cfg.MaxUploadBytes), s.upload)

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/robots.txt", s.robots)
	r.GET("/sitemap.xml", s.sitemapIndex)

	r.GET("/", s.home)
	r.GET("/channel/:slug", s.channelPage)
	r.GET("/:category", s.single)
	r.GET("/:category/:slug", s.detail)
	r.NoRoute(func(c *gin.Context) { s.pageError(c, errNotFoundPage) })
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.deps.Version})
}
