// Package store models a remote repository as a keyed object store with
// optimistic concurrency: every object carries a version token and writes
// name the version they expect to replace.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when the path (or directory) is confirmed absent.
	ErrNotFound = errors.New("object not found")
	// ErrConflict is returned when a write precondition fails: the object
	// exists on a create, or its version moved since it was read.
	ErrConflict = errors.New("version conflict")
	// ErrNoChange may be returned by a Mutator to skip the write.
	ErrNoChange = errors.New("no change")
)

// Version is an opaque, backend-specific version token (a blob sha on GitHub).
type Version string

// Object is the content of one path plus its version.
type Object struct {
	Data    []byte
	Version Version
}

// PutResult describes a successful write.
type PutResult struct {
	Version   Version
	URL       string // browsable URL of the object, when the backend has one
	CommitURL string
}

// Entry is one child of a listed directory.
type Entry struct {
	Name    string
	Path    string
	IsDir   bool
	Version Version
}

// Store is the narrow interface every backend implements.
type Store interface {
	// Get returns ErrNotFound when path does not exist.
	Get(ctx context.Context, path string) (Object, error)
	// Put writes data. An empty expect means create-only; otherwise the
	// current version must equal expect. Both failures are ErrConflict.
	Put(ctx context.Context, path string, data []byte, expect Version, message string) (PutResult, error)
	// List returns the immediate children of dir, or ErrNotFound.
	List(ctx context.Context, dir string) ([]Entry, error)
}

// Mutator computes the new content of an object from its current content.
// current is nil and exists false when the object does not exist yet.
type Mutator func(current []byte, exists bool) ([]byte, error)

// UpdateOptions tunes Update.
type UpdateOptions struct {
	Message     string
	MaxAttempts int
	// OnConflict is called before each retry.
	OnConflict func(path string, attempt int)
}

// DefaultMaxAttempts bounds the read-modify-write loop.
const DefaultMaxAttempts = 5

// Update performs a read-modify-write of path, retrying on ErrConflict.
// A confirmed ErrNotFound on read starts from empty content; any other read
// error aborts without writing.
func Update(ctx context.Context, s Store, p string, opts UpdateOptions, fn Mutator) (PutResult, error) {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	msg := opts.Message
	if msg == "" {
		msg = "update " + p
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PutResult{}, err
		}

		var (
			current []byte
			version Version
			exists  bool
		)
		obj, err := s.Get(ctx, p)
		switch {
		case err == nil:
			current, version, exists = obj.Data, obj.Version, true
		case errors.Is(err, ErrNotFound):
		default:
			return PutResult{}, fmt.Errorf("reading %s: %w", p, err)
		}

		next, err := fn(current, exists)
		if errors.Is(err, ErrNoChange) {
			return PutResult{Version: version}, nil
		}
		if err != nil {
			return PutResult{}, err
		}

		res, err := s.Put(ctx, p, next, version, msg)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrConflict) {
			return PutResult{}, fmt.Errorf("writing %s: %w", p, err)
		}
		lastErr = err
		if attempt < attempts && opts.OnConflict != nil {
			opts.OnConflict(p, attempt)
		}
	}
	return PutResult{}, fmt.Errorf("writing %s: gave up after %d attempts: %w", p, attempts, lastErr)
}

// Clean normalizes a store path: slash separated, no leading or trailing slash.
func Clean(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimPrefix(p, "/")
}

// Dir returns the parent directory of a store path ("" for the root).
func Dir(p string) string {
	d := path.Dir(Clean(p))
	if d == "." || d == "/" {
		return ""
	}
	return d
}
