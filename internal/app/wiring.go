package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/cdn"
	"github.com/blackwell-systems/reelshelf/internal/collection"
	"github.com/blackwell-systems/reelshelf/internal/config"
	"github.com/blackwell-systems/reelshelf/internal/github"
	"github.com/blackwell-systems/reelshelf/internal/metrics"
	"github.com/blackwell-systems/reelshelf/internal/store"
	"github.com/blackwell-systems/reelshelf/internal/util"
)

// newLogger builds the process logger from the log section.
func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// services are the store backed components shared by the commands.
type services struct {
	store       store.Store
	pages       *catalog.Repository
	categories  *catalog.CategorySet
	collections *collection.Service
	metrics     *metrics.Observer
	registry    *prometheus.Registry
	log         *slog.Logger

	close func() error
}

// newRegistry returns a registry with the Go runtime and process collectors
// and an Observer registered on it.
func newRegistry() (*prometheus.Registry, *metrics.Observer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs, err := metrics.New("reelshelf", reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, obs, nil
}

// openServices validates the store settings and wires the store stack:
// backend, instrumentation, then the read cache.
func openServices(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry, obs *metrics.Observer) (*services, error) {
	if err := cfg.Validate(config.FeatureStore); err != nil {
		return nil, err
	}
	backend, closeFn, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	st := store.NewInstrumented(backend, obs)
	if cfg.Store.CacheSize > 0 {
		st = store.NewCached(st, cfg.Store.CacheSize, cfg.Store.CacheTTL)
	}

	clock := catalog.RealClock{}
	return &services{
		store:      st,
		pages:      catalog.NewRepository(st, cfg.Store.PagesRoot, log),
		categories: catalog.NewCategorySet(st, "", clock),
		collections: collection.NewService(st, collection.Options{
			Capacity:    cfg.Collections.Capacity,
			MaxAttempts: cfg.Collections.MaxAttempts,
			Clock:       clock,
			Logger:      log,
			Observer:    obs,
		}),
		metrics:  obs,
		registry: reg,
		log:      log,
		close:    closeFn,
	}, nil
}

func openBackend(cfg *config.Config) (store.Store, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Store.Backend) {
	case "github":
		gh := github.New(cfg.GitHub.Token, cfg.GitHub.APIBase,
			github.WithTimeout(cfg.GitHub.Timeout),
			github.WithUserAgent("reelshelf/"+appVersion),
		)
		return store.NewGitHubStore(gh, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch), noop, nil
	case "sqlite":
		if err := util.EnsureDir(filepath.Dir(cfg.Store.SQLitePath)); err != nil {
			return nil, nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
		s, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return store.NewMemoryStore(), noop, nil
	}
	return nil, nil, &config.ConfigError{Feature: config.FeatureStore, Reason: fmt.Sprintf("unknown backend %q", cfg.Store.Backend)}
}

// openRelay validates the CDN settings and builds the upload relay.
func openRelay(ctx context.Context, cfg *config.Config, log *slog.Logger, obs *metrics.Observer) (*cdn.Relay, error) {
	if err := cfg.Validate(config.FeatureCDN); err != nil {
		return nil, err
	}
	var up cdn.Uploader
	switch strings.ToLower(cfg.CDN.Provider) {
	case "bunny":
		up = cdn.NewBunnyUploader(cdn.BunnyConfig{
			Host:       cfg.CDN.Host,
			Zone:       cfg.CDN.Zone,
			AccessKey:  cfg.CDN.AccessKey,
			PublicBase: cfg.CDN.PublicBase,
		})
	case "s3":
		s3up, err := cdn.NewS3Uploader(ctx, cdn.S3Config{
			Bucket:          cfg.CDN.Bucket,
			Region:          cfg.CDN.Region,
			Endpoint:        cfg.CDN.Endpoint,
			AccessKeyID:     cfg.CDN.S3KeyID,
			SecretAccessKey: cfg.CDN.S3Secret,
			PublicBase:      cfg.CDN.PublicBase,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring s3: %w", err)
		}
		up = s3up
	default:
		return nil, &config.ConfigError{Feature: config.FeatureCDN, Reason: fmt.Sprintf("unknown provider %q", cfg.CDN.Provider)}
	}
	return cdn.NewRelay(up, cdn.RelayOptions{Logger: log, Observer: obs}), nil
}

// mustServices opens the services for a one-shot command. Logs go to
// stderr so command output stays clean.
func (st *state) mustServices() (*services, error) {
	log := newLogger(st.cfg.Log, os.Stderr)
	reg, obs, err := newRegistry()
	if err != nil {
		return nil, err
	}
	svc, err := openServices(st.cfg, log, reg, obs)
	if err != nil {
		var cerr *config.ConfigError
		if errors.As(err, &cerr) {
			return nil, fmt.Errorf("%w (see 'reelshelf config init')", err)
		}
		return nil, err
	}
	return svc, nil
}
