package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/config"
	"github.com/blackwell-systems/reelshelf/internal/render"
	"github.com/blackwell-systems/reelshelf/internal/scrape"
	"github.com/blackwell-systems/reelshelf/internal/server"
)

func newServeCmd(st *state) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site, sitemaps and the JSON API",
		Long: `Serve the rendered catalog, sitemaps, the admin JSON API and the upload
relay. Missing store or CDN settings do not stop the server: the affected
routes answer 500 with the names of the missing settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := st.cfg
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg.Log, os.Stderr)
	reg, obs, err := newRegistry()
	if err != nil {
		return err
	}

	deps := server.Deps{
		Metrics:  obs,
		Gatherer: reg,
		Logger:   log,
		Version:  appVersion,
		Fetcher:  scrape.NewFetcher(scrape.FetchOptions{UserAgent: "reelshelf/" + appVersion}),
	}

	svc, err := openServices(cfg, log, reg, obs)
	var cerr *config.ConfigError
	switch {
	case errors.As(err, &cerr):
		log.Warn("store unavailable, API routes will fail", "error", err)
		deps.StoreErr = err
	case err != nil:
		return err
	default:
		defer func() {
			if err := svc.close(); err != nil {
				log.Warn("closing store", "error", err)
			}
		}()
		if strings.EqualFold(cfg.Store.Backend, "memory") {
			log.Warn("memory store: everything written is lost on exit")
		}
		deps.Pages = svc.pages
		deps.Categories = svc.categories
		deps.Collections = svc.collections
	}

	relay, err := openRelay(ctx, cfg, log, obs)
	switch {
	case errors.As(err, &cerr):
		log.Warn("cdn unavailable, uploads will fail", "error", err)
		deps.RelayErr = err
	case err != nil:
		return err
	default:
		deps.Relay = relay
	}

	rnd, err := render.New(render.Site{
		Name:        cfg.Server.SiteName,
		BaseURL:     cfg.Server.BaseURL,
		Description: cfg.Server.SiteDescription,
	}, catalog.RealClock{})
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	deps.Renderer = rnd

	return server.New(cfg.Server, deps).Run(ctx)
}
