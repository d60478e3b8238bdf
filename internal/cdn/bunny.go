package cdn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBunnyHost is the primary Bunny storage endpoint.
const DefaultBunnyHost = "storage.bunnycdn.com"

// BunnyConfig configures a BunnyUploader.
type BunnyConfig struct {
	Host       string // storage endpoint host, or a full base URL
	Zone       string
	AccessKey  string
	PublicBase string // pull zone URL the stored objects are served from
	Timeout    time.Duration
	Client     *http.Client
}

// BunnyUploader stores objects in a Bunny.net storage zone.
type BunnyUploader struct {
	base       string
	accessKey  string
	publicBase string
	http       *http.Client
}

// NewBunnyUploader creates a BunnyUploader.
func NewBunnyUploader(cfg BunnyConfig) *BunnyUploader {
	host := cfg.Host
	if host == "" {
		host = DefaultBunnyHost
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &BunnyUploader{
		base:       strings.TrimRight(host, "/") + "/" + strings.Trim(cfg.Zone, "/"),
		accessKey:  cfg.AccessKey,
		publicBase: cfg.PublicBase,
		http:       hc,
	}
}

// Put uploads f with PUT {host}/{zone}/{key}.
func (b *BunnyUploader) Put(ctx context.Context, key string, f File) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.base+"/"+key, f.Body)
	if err != nil {
		return "", err
	}
	if f.Size >= 0 {
		req.ContentLength = f.Size
	}
	req.Header.Set("AccessKey", b.accessKey)
	req.Header.Set("Content-Type", f.ContentType)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &UpstreamError{Key: key, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return publicURL(b.publicBase, key), nil
}
