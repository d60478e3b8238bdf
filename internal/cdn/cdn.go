// Package cdn relays uploaded video and thumbnail files to CDN object
// storage.
package cdn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
)

// Key prefixes of the two uploaded objects.
const (
	VideoPrefix     = "videos"
	ThumbnailPrefix = "thumbnails"
)

// File is one uploaded file.
type File struct {
	Name        string // original file name, used for the extension
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// Uploader stores an object under key and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, key string, f File) (string, error)
}

// Observer is notified of every object upload.
type Observer interface {
	RecordUpload(d time.Duration, sizeBytes int64, err error)
}

// UpstreamError is a non-2xx response from the storage endpoint.
type UpstreamError struct {
	Key    string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("storing %s: HTTP %d", e.Key, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// UploadError reports a failed relay. Uploaded lists the keys that were
// stored anyway; those objects are left in place.
type UploadError struct {
	Key      string
	Uploaded []string
	Err      error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload of %s failed: %v", e.Key, e.Err)
	if len(e.Uploaded) > 0 {
		msg += fmt.Sprintf(" (orphaned: %s)", strings.Join(e.Uploaded, ", "))
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }

// RelayOptions configures a Relay. Zero values select defaults.
type RelayOptions struct {
	Clock    catalog.Clock
	Logger   *slog.Logger
	Observer Observer
}

// Relay uploads a video and its thumbnail.
type Relay struct {
	up    Uploader
	clock catalog.Clock
	log   *slog.Logger
	obs   Observer
}

// NewRelay creates a Relay over up.
func NewRelay(up Uploader, opts RelayOptions) *Relay {
	if opts.Clock == nil {
		opts.Clock = catalog.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Relay{up: up, clock: opts.Clock, log: opts.Logger, obs: opts.Observer}
}

// Result holds the public URLs of both uploaded files.
type Result struct {
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoKey     string `json:"videoKey"`
	ThumbnailKey string `json:"thumbnailKey"`
}

// Key returns the object key for a file: {prefix}/{slug}-{unixMillis}{ext}.
func Key(prefix, title string, at time.Time, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("%s/%s-%d%s", prefix, catalog.Slugify(title), at.UnixMilli(), ext)
}

// Upload stores video and thumbnail concurrently. The two uploads are
// independent: a failure of one does not cancel or undo the other, and the
// returned *UploadError names what was stored.
func (r *Relay) Upload(ctx context.Context, title string, video, thumbnail File) (Result, error) {
	var missing []string
	if strings.TrimSpace(title) == "" {
		missing = append(missing, "title")
	}
	if video.Body == nil {
		missing = append(missing, "video")
	}
	if thumbnail.Body == nil {
		missing = append(missing, "thumbnail")
	}
	if len(missing) > 0 {
		return Result{}, &catalog.ValidationError{Missing: missing}
	}

	now := r.clock.Now()
	res := Result{
		VideoKey:     Key(VideoPrefix, title, now, video.Name),
		ThumbnailKey: Key(ThumbnailPrefix, title, now, thumbnail.Name),
	}

	var (
		g                  errgroup.Group
		videoErr, thumbErr error
	)
	g.Go(func() error {
		res.VideoURL, videoErr = r.put(ctx, res.VideoKey, video)
		return nil
	})
	g.Go(func() error {
		res.ThumbnailURL, thumbErr = r.put(ctx, res.ThumbnailKey, thumbnail)
		return nil
	})
	_ = g.Wait()

	switch {
	case videoErr != nil && thumbErr != nil:
		return Result{}, &UploadError{Key: res.VideoKey, Err: videoErr}
	case videoErr != nil:
		return Result{}, &UploadError{Key: res.VideoKey, Uploaded: []string{res.ThumbnailKey}, Err: videoErr}
	case thumbErr != nil:
		return Result{}, &UploadError{Key: res.ThumbnailKey, Uploaded: []string{res.VideoKey}, Err: thumbErr}
	}
	r.log.Info("upload relayed", "video", res.VideoKey, "thumbnail", res.ThumbnailKey)
	return res, nil
}

func (r *Relay) put(ctx context.Context, key string, f File) (string, error) {
	if f.ContentType == "" {
		f.ContentType = "application/octet-stream"
	}
	start := time.Now()
	u, err := r.up.Put(ctx, key, f)
	if r.obs != nil {
		r.obs.RecordUpload(time.Since(start), f.Size, err)
	}
	if err != nil {
		r.log.Error("object upload failed", "key", key, "error", err)
	}
	return u, err
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
