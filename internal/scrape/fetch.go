package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 5 << 20
	maxRedirects    = 5
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrTooLarge is returned when a page exceeds the size cap.
	ErrTooLarge = errors.New("page too large")
)

// UpstreamError is a non-200 response from the scraped site.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Status)
}

// FetchOptions configures a Fetcher. Zero values select defaults.
type FetchOptions struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
}

// Fetcher downloads pages for scraping.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "reelshelf (+metadata scraper)"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}
	return &Fetcher{client: client, maxBytes: opts.MaxBytes, userAgent: opts.UserAgent}
}

// Fetch returns the body of rawURL and the URL it was finally served from.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &UpstreamError{URL: u.String(), Status: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("%s: %w", u, ErrTooLarge)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", u, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("%s: %w", u, ErrTooLarge)
	}
	return body, resp.Request.URL.String(), nil
}

// Scrape fetches rawURL and extracts its metadata.
func (f *Fetcher) Scrape(ctx context.Context, rawURL string) (Result, error) {
	body, final, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	return FromHTML(string(body), final)
}
