package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/reelshelf/internal/frontmatter"
	"github.com/blackwell-systems/reelshelf/internal/store"
)

// DefaultPagesRoot is where markdown records live: {root}/{category}/{slug}.md.
const DefaultPagesRoot = "content/movies"

// scanConcurrency bounds parallel reads during a full scan.
const scanConcurrency = 8

// Repository reads and creates markdown records in a store.
type Repository struct {
	st   store.Store
	root string
	log  *slog.Logger
}

// NewRepository creates a repository rooted at root (DefaultPagesRoot when
// empty).
func NewRepository(st store.Store, root string, logger *slog.Logger) *Repository {
	if root == "" {
		root = DefaultPagesRoot
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{st: st, root: store.Clean(root), log: logger}
}

// PagePath returns the store path of a record page.
func (r *Repository) PagePath(category, slug string) string {
	return path.Join(r.root, category, slug+".md")
}

// Get loads one record. A missing page is store.ErrNotFound.
func (r *Repository) Get(ctx context.Context, category, slug string) (Record, error) {
	if !isSlug(category) || !isSlug(slug) {
		return Record{}, fmt.Errorf("page %s/%s: %w", category, slug, store.ErrNotFound)
	}
	p := r.PagePath(category, slug)
	obj, err := r.st.Get(ctx, p)
	if err != nil {
		return Record{}, err
	}
	rec, err := ParsePage(p, obj.Data)
	if err != nil {
		return Record{}, err
	}
	rec.Category = category
	rec.Slug = slug
	return rec, nil
}

// Categories lists category directories. An absent root is an empty list.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	entries, err := r.st.List(ctx, r.root)
	if errors.Is(err, store.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir {
			out = append(out, e.Name)
		}
	}
	return out, nil
}

// List loads every record of one category. Pages that fail to parse are
// logged and skipped.
func (r *Repository) List(ctx context.Context, category string) ([]Record, error) {
	if !isSlug(category) {
		return []Record{}, nil
	}
	dir := path.Join(r.root, category)
	entries, err := r.st.List(ctx, dir)
	if errors.Is(err, store.ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var slugs []string
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Name, ".md") {
			slugs = append(slugs, strings.TrimSuffix(e.Name, ".md"))
		}
	}

	results := make([]*Record, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, slug := range slugs {
		g.Go(func() error {
			rec, err := r.Get(gctx, category, slug)
			if err != nil {
				if isRecordError(err) {
					r.log.Warn("skipping unreadable record", "category", category, "slug", slug, "error", err)
					return nil
				}
				return err
			}
			results[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// All loads every record of every category, newest first.
func (r *Repository) All(ctx context.Context) ([]Record, error) {
	cats, err := r.Categories(ctx)
	if err != nil {
		return nil, err
	}

	perCat := make([][]Record, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, cat := range cats {
		g.Go(func() error {
			recs, err := r.List(gctx, cat)
			if err != nil {
				return err
			}
			perCat[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for _, recs := range perCat {
		out = append(out, recs...)
	}
	SortNewest(out)
	return out, nil
}

// Create writes a new record page. It never overwrites: an existing page is
// store.ErrConflict.
func (r *Repository) Create(ctx context.Context, rec Record, message string) (string, store.PutResult, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return "", store.PutResult{}, err
	}
	data, err := MarshalPage(rec)
	if err != nil {
		return "", store.PutResult{}, err
	}
	p := r.PagePath(rec.Category, rec.Slug)
	if message == "" {
		message = fmt.Sprintf("add: %s/%s", rec.Category, rec.Slug)
	}
	res, err := r.st.Put(ctx, p, data, "", message)
	if err != nil {
		return p, store.PutResult{}, err
	}
	return p, res, nil
}

// CreateMarkdown writes a free form markdown file below dir. The file name
// is slugified and given an .md extension. Existing files are not replaced.
func (r *Repository) CreateMarkdown(ctx context.Context, dir, fileName string, content []byte, message string) (string, store.PutResult, error) {
	name := strings.TrimSuffix(fileName, ".md")
	p := path.Join(store.Clean(dir), Slugify(name)+".md")
	if message == "" {
		message = "add: " + p
	}
	res, err := r.st.Put(ctx, p, content, "", message)
	if err != nil {
		return p, store.PutResult{}, err
	}
	return p, res, nil
}

// isSlug reports whether s is a path segment written by Create. Anything
// else, such as "..", would resolve outside the pages root.
func isSlug(s string) bool {
	return s != "" && Slugify(s) == s
}

func isRecordError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, frontmatter.ErrMalformed) || errors.Is(err, store.ErrNotFound)
}
