package collection

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/store"
)

// Service appends records and keeps the namespace index in step.
type Service struct {
	Writer *Writer
	Index  *Index
	opts   Options
}

// NewService creates a Service over st.
func NewService(st store.Store, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		Writer: NewWriter(st, opts),
		Index:  NewIndex(st, opts),
		opts:   opts,
	}
}

// Result is the outcome of Service.Append.
type Result struct {
	AppendResult
	Entry IndexEntry
}

// Append writes rec into the collection named name (slugified) and updates
// the index. A duplicate delivery writes nothing and returns the current
// index entry.
//
// The two writes are not atomic. If the index update fails after the record
// was stored, the error is returned and Index.Rebuild restores the counts.
func (s *Service) Append(ctx context.Context, ns Namespace, name string, rec catalog.Record) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, &catalog.ValidationError{Missing: []string{"name"}}
	}
	slug := catalog.Slugify(name)

	res, err := s.Writer.Append(ctx, ns, slug, rec)
	if err != nil {
		return Result{}, err
	}
	if res.Duplicate {
		entry, err := s.Index.Get(ctx, ns, slug)
		if err != nil {
			s.opts.Logger.Warn("duplicate append has no index entry", "namespace", ns.Name, "slug", slug, "error", err)
		}
		return Result{AppendResult: res, Entry: entry}, nil
	}

	entry, err := s.Index.Upsert(ctx, ns, Upsert{
		Slug:       slug,
		Name:       name,
		Latest:     res.Record.Summary(),
		Category:   res.Record.Category,
		FileNumber: res.FileNumber,
	})
	if err != nil {
		s.opts.Logger.Error("index update failed after append",
			"namespace", ns.Name, "slug", slug, "file", res.File, "error", err)
		return Result{AppendResult: res}, fmt.Errorf("updating %s index: %w", ns.Name, err)
	}
	return Result{AppendResult: res, Entry: entry}, nil
}

// Page returns collection file n of slug; n <= 0 selects the newest file.
func (s *Service) Page(ctx context.Context, ns Namespace, slug string, n int) ([]catalog.Record, int, []int, error) {
	files, err := s.Writer.Files(ctx, ns, slug)
	if err != nil {
		return nil, 0, nil, err
	}
	if len(files) == 0 {
		return nil, 0, nil, fmt.Errorf("%s %q: %w", ns.Name, slug, store.ErrNotFound)
	}
	if n <= 0 {
		n = files[len(files)-1]
	}
	recs, err := s.Writer.Read(ctx, ns, slug, n)
	if err != nil {
		return nil, 0, nil, err
	}
	return recs, n, files, nil
}

// Rebuild recomputes the index of ns from its collection files.
func (s *Service) Rebuild(ctx context.Context, ns Namespace) (*IndexDocument, error) {
	return s.Index.Rebuild(ctx, ns, s.Writer)
}
