package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/store"
)

// IndexDocument summarizes every collection of a namespace.
type IndexDocument struct {
	UpdatedAt   string       `json:"updatedAt,omitempty"`
	TotalVideos int          `json:"totalVideos"`
	Channels    []IndexEntry `json:"channels"`
}

// IndexEntry is the rollup of one collection.
type IndexEntry struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	TotalVideos int              `json:"totalVideos"`
	Files       int              `json:"files"`
	CurrentFile string           `json:"currentFile,omitempty"`
	Categories  []string         `json:"categories,omitempty"`
	LatestVideo *catalog.Summary `json:"latestVideo,omitempty"`
	CreatedAt   string           `json:"createdAt,omitempty"`
	UpdatedAt   string           `json:"updatedAt,omitempty"`
}

// Find returns the entry for slug, or nil.
func (d *IndexDocument) Find(slug string) *IndexEntry {
	for i := range d.Channels {
		if d.Channels[i].Slug == slug {
			return &d.Channels[i]
		}
	}
	return nil
}

func (d *IndexDocument) recount() {
	total := 0
	for _, e := range d.Channels {
		total += e.TotalVideos
	}
	d.TotalVideos = total
}

// Upsert describes one append to fold into the index.
type Upsert struct {
	Slug       string
	Name       string
	Latest     catalog.Summary
	Category   string
	FileNumber int
}

// Index maintains index documents.
type Index struct {
	st   store.Store
	opts Options
}

// NewIndex creates an Index over st.
func NewIndex(st store.Store, opts Options) *Index {
	return &Index{st: st, opts: opts.withDefaults()}
}

// Load returns the index document of ns. A missing document is empty.
func (x *Index) Load(ctx context.Context, ns Namespace) (*IndexDocument, error) {
	obj, err := x.st.Get(ctx, ns.IndexPath)
	if errors.Is(err, store.ErrNotFound) {
		return &IndexDocument{Channels: []IndexEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ns.IndexPath, err)
	}
	doc, err := decodeIndex(obj.Data, true)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ns.IndexPath, err)
	}
	return doc, nil
}

// Get returns the entry of one collection, or store.ErrNotFound.
func (x *Index) Get(ctx context.Context, ns Namespace, slug string) (IndexEntry, error) {
	doc, err := x.Load(ctx, ns)
	if err != nil {
		return IndexEntry{}, err
	}
	if e := doc.Find(slug); e != nil {
		return *e, nil
	}
	return IndexEntry{}, fmt.Errorf("%s %q: %w", ns.Name, slug, store.ErrNotFound)
}

// Upsert folds one appended record into the index: the entry's count goes
// up by one, its latest pointer is replaced and the category is added to
// its set. A new slug gets an entry with a count of one. The document is
// rewritten under its version, so concurrent upserts are all counted.
func (x *Index) Upsert(ctx context.Context, ns Namespace, u Upsert) (IndexEntry, error) {
	now := catalog.Timestamp(x.opts.Clock.Now())
	var result IndexEntry

	_, err := store.Update(ctx, x.st, ns.IndexPath, store.UpdateOptions{
		Message:     fmt.Sprintf("%s: update index for %s", ns.Name, u.Slug),
		MaxAttempts: x.opts.MaxAttempts,
		OnConflict: func(p string, attempt int) {
			x.opts.Logger.Debug("index conflict, retrying", "namespace", ns.Name, "path", p, "attempt", attempt)
			if x.opts.Observer != nil {
				x.opts.Observer.RecordAppendRetry(ns.Name)
			}
		},
	}, func(cur []byte, exists bool) ([]byte, error) {
		doc, err := decodeIndex(cur, exists)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ns.IndexPath, err)
		}

		latest := u.Latest
		e := doc.Find(u.Slug)
		if e == nil {
			name := u.Name
			if name == "" {
				name = u.Slug
			}
			doc.Channels = append(doc.Channels, IndexEntry{
				Slug:      u.Slug,
				Name:      name,
				CreatedAt: now,
			})
			e = &doc.Channels[len(doc.Channels)-1]
		}
		e.TotalVideos++
		e.LatestVideo = &latest
		e.Categories = unionCategory(e.Categories, u.Category)
		if u.FileNumber > e.Files {
			e.Files = u.FileNumber
		}
		if u.FileNumber > 0 {
			e.CurrentFile = FileName(u.FileNumber)
		}
		e.UpdatedAt = now
		result = *e

		doc.UpdatedAt = now
		doc.recount()
		return json.MarshalIndent(doc, "", "  ")
	})
	if err != nil {
		return IndexEntry{}, err
	}
	return result, nil
}

// Rebuild recomputes the index of ns from the collection files. Names and
// creation times of existing entries are kept.
func (x *Index) Rebuild(ctx context.Context, ns Namespace, w *Writer) (*IndexDocument, error) {
	entries, err := x.st.List(ctx, ns.Root)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("listing %s: %w", ns.Root, err)
	}

	now := catalog.Timestamp(x.opts.Clock.Now())
	var fresh []IndexEntry
	for _, dir := range entries {
		if !dir.IsDir {
			continue
		}
		files, err := w.Files(ctx, ns, dir.Name)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		e := IndexEntry{Slug: dir.Name, Name: dir.Name, Files: files[len(files)-1], UpdatedAt: now}
		e.CurrentFile = FileName(e.Files)
		for i := len(files) - 1; i >= 0; i-- {
			recs, err := w.Read(ctx, ns, dir.Name, files[i])
			if err != nil {
				return nil, err
			}
			if e.LatestVideo == nil && len(recs) > 0 {
				s := recs[0].Summary()
				e.LatestVideo = &s
			}
			for _, r := range recs {
				e.Categories = unionCategory(e.Categories, r.Category)
			}
			e.TotalVideos += len(recs)
		}
		fresh = append(fresh, e)
	}

	var out *IndexDocument
	_, err = store.Update(ctx, x.st, ns.IndexPath, store.UpdateOptions{
		Message:     fmt.Sprintf("%s: rebuild index", ns.Name),
		MaxAttempts: x.opts.MaxAttempts,
	}, func(cur []byte, exists bool) ([]byte, error) {
		old, err := decodeIndex(cur, exists)
		if err != nil {
			// An unreadable index is replaced wholesale.
			x.opts.Logger.Warn("discarding unreadable index", "path", ns.IndexPath, "error", err)
			old = &IndexDocument{}
		}
		doc := &IndexDocument{UpdatedAt: now, Channels: make([]IndexEntry, 0, len(fresh))}
		for _, e := range fresh {
			if prev := old.Find(e.Slug); prev != nil {
				e.Name = prev.Name
				e.CreatedAt = prev.CreatedAt
			}
			if e.CreatedAt == "" {
				e.CreatedAt = now
			}
			doc.Channels = append(doc.Channels, e)
		}
		doc.recount()
		out = doc
		return json.MarshalIndent(doc, "", "  ")
	})
	if err != nil {
		return nil, err
	}
	x.opts.Logger.Info("index rebuilt", "namespace", ns.Name, "collections", len(out.Channels), "total", out.TotalVideos)
	return out, nil
}

func decodeIndex(data []byte, exists bool) (*IndexDocument, error) {
	doc := &IndexDocument{Channels: []IndexEntry{}}
	if !exists || len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Channels == nil {
		doc.Channels = []IndexEntry{}
	}
	return doc, nil
}

func unionCategory(set []string, c string) []string {
	c = strings.TrimSpace(c)
	if c == "" {
		return set
	}
	for _, s := range set {
		if s == c {
			return set
		}
	}
	set = append(set, c)
	sort.Strings(set)
	return set
}
