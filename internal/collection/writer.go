package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/store"
)

// DefaultCapacity is the maximum number of records per collection file.
const DefaultCapacity = 100

// Observer is notified of version conflict retries.
type Observer interface {
	RecordAppendRetry(namespace string)
}

// Options configures a Writer. Zero values select defaults.
type Options struct {
	Capacity    int
	MaxAttempts int
	Clock       catalog.Clock
	IDs         catalog.IDGenerator
	Logger      *slog.Logger
	Observer    Observer
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = store.DefaultMaxAttempts
	}
	if o.Clock == nil {
		o.Clock = catalog.RealClock{}
	}
	if o.IDs == nil {
		o.IDs = catalog.UUIDGenerator{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Writer appends records to collection files.
type Writer struct {
	st   store.Store
	opts Options
}

// NewWriter creates a Writer over st.
func NewWriter(st store.Store, opts Options) *Writer {
	return &Writer{st: st, opts: opts.withDefaults()}
}

// Capacity reports the per-file record limit.
func (w *Writer) Capacity() int { return w.opts.Capacity }

// AppendResult describes where a record landed.
type AppendResult struct {
	Slug       string
	File       string // store path of the file written
	FileNumber int
	Count      int    // records in that file after the append
	NextFile   string // file the next append will go to
	Record     catalog.Record
	// Duplicate is set when the record was already present; nothing was
	// written and Record is the stored copy.
	Duplicate bool
	URL       string
	CommitURL string
}

// errFileFull is returned by the mutator when another writer filled the
// target file between choosing it and writing it.
var errFileFull = errors.New("collection file full")

// Append adds rec to the front of the newest collection file of slug,
// starting a new file when that one is full.
//
// The record gets an id and uploadDate when it has none. A record whose
// requestId matches a stored record, or whose caller supplied uploadDate
// (to the minute) and title match one, is treated as a retried delivery and
// not written again.
func (w *Writer) Append(ctx context.Context, ns Namespace, slug string, rec catalog.Record) (AppendResult, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return AppendResult{}, &catalog.ValidationError{Missing: []string{"title"}}
	}
	slug = catalog.Slugify(slug)
	callerDated := rec.UploadDate != ""
	prepare(&rec, w.opts)

	files, err := w.Files(ctx, ns, slug)
	if err != nil {
		return AppendResult{}, err
	}

	target := 1
	if len(files) > 0 {
		highest := files[len(files)-1]
		recs, err := w.read(ctx, ns.FilePath(slug, highest))
		if err != nil {
			return AppendResult{}, err
		}
		// A retry may land right after a rollover, so look one file back too.
		if dup := findDuplicate(recs, rec, callerDated); dup != nil {
			return w.duplicate(ns, slug, highest, len(recs), *dup), nil
		}
		if len(files) > 1 {
			prev, err := w.read(ctx, ns.FilePath(slug, files[len(files)-2]))
			if err != nil {
				return AppendResult{}, err
			}
			if dup := findDuplicate(prev, rec, callerDated); dup != nil {
				return w.duplicate(ns, slug, highest, len(recs), *dup), nil
			}
		}
		target = highest
		if len(recs) >= w.opts.Capacity {
			target = highest + 1
		}
	}

	for {
		p := ns.FilePath(slug, target)
		var (
			count int
			dup   *catalog.Record
		)
		res, err := store.Update(ctx, w.st, p, store.UpdateOptions{
			Message:     fmt.Sprintf("%s: add %q to %s", ns.Name, rec.Title, slug),
			MaxAttempts: w.opts.MaxAttempts,
			OnConflict:  w.onConflict(ns, p),
		}, func(cur []byte, exists bool) ([]byte, error) {
			recs, err := decode(cur, exists)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", p, err)
			}
			if d := findDuplicate(recs, rec, callerDated); d != nil {
				dup, count = d, len(recs)
				return nil, store.ErrNoChange
			}
			if len(recs) >= w.opts.Capacity {
				return nil, errFileFull
			}
			recs = append([]catalog.Record{rec}, recs...)
			count = len(recs)
			return json.MarshalIndent(recs, "", "  ")
		})
		if errors.Is(err, errFileFull) {
			w.opts.Logger.Debug("collection file filled concurrently, rolling over", "namespace", ns.Name, "file", p)
			target++
			continue
		}
		if err != nil {
			return AppendResult{}, err
		}
		if dup != nil {
			return w.duplicate(ns, slug, target, count, *dup), nil
		}

		out := AppendResult{
			Slug:       slug,
			File:       p,
			FileNumber: target,
			Count:      count,
			NextFile:   w.nextFile(target, count),
			Record:     rec,
			URL:        res.URL,
			CommitURL:  res.CommitURL,
		}
		w.opts.Logger.Info("record appended",
			"namespace", ns.Name, "slug", slug, "file", p, "count", count, "id", rec.ID)
		return out, nil
	}
}

// Files returns the collection file numbers of slug in ascending order. A
// collection that does not exist yet has none.
func (w *Writer) Files(ctx context.Context, ns Namespace, slug string) ([]int, error) {
	entries, err := w.st.List(ctx, ns.Dir(slug))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", ns.Dir(slug), err)
	}
	var nums []int
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if n, ok := parseFileName(e.Name); ok {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

// Read returns the records of collection file n, newest first.
func (w *Writer) Read(ctx context.Context, ns Namespace, slug string, n int) ([]catalog.Record, error) {
	p := ns.FilePath(slug, n)
	obj, err := w.st.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	recs, err := decode(obj.Data, true)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}
	return recs, nil
}

// ReadAll returns every record of slug, newest first.
func (w *Writer) ReadAll(ctx context.Context, ns Namespace, slug string) ([]catalog.Record, error) {
	files, err := w.Files(ctx, ns, slug)
	if err != nil {
		return nil, err
	}
	var out []catalog.Record
	for i := len(files) - 1; i >= 0; i-- {
		recs, err := w.Read(ctx, ns, slug, files[i])
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// read is Read by path, treating a missing file as empty.
func (w *Writer) read(ctx context.Context, p string) ([]catalog.Record, error) {
	obj, err := w.st.Get(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	recs, err := decode(obj.Data, true)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}
	return recs, nil
}

func (w *Writer) nextFile(n, count int) string {
	if count >= w.opts.Capacity {
		return FileName(n + 1)
	}
	return FileName(n)
}

func (w *Writer) duplicate(ns Namespace, slug string, n, count int, rec catalog.Record) AppendResult {
	w.opts.Logger.Info("duplicate append ignored", "namespace", ns.Name, "slug", slug, "id", rec.ID)
	return AppendResult{
		Slug:       slug,
		File:       ns.FilePath(slug, n),
		FileNumber: n,
		Count:      count,
		NextFile:   w.nextFile(n, count),
		Record:     rec,
		Duplicate:  true,
	}
}

func (w *Writer) onConflict(ns Namespace, p string) func(string, int) {
	return func(_ string, attempt int) {
		w.opts.Logger.Debug("version conflict, retrying", "namespace", ns.Name, "path", p, "attempt", attempt)
		if w.opts.Observer != nil {
			w.opts.Observer.RecordAppendRetry(ns.Name)
		}
	}
}

// prepare fills generated fields.
func prepare(rec *catalog.Record, opts Options) {
	rec.Title = strings.TrimSpace(rec.Title)
	if rec.ID == "" {
		rec.ID = opts.IDs.New()
	}
	if rec.UploadDate == "" {
		rec.UploadDate = catalog.Timestamp(opts.Clock.Now())
	}
	if rec.Slug == "" {
		rec.Slug = catalog.Slugify(rec.Title)
	}
	if rec.Category != "" {
		rec.Category = catalog.Slugify(rec.Category)
	}
}

func decode(data []byte, exists bool) ([]catalog.Record, error) {
	if !exists || len(strings.TrimSpace(string(data))) == 0 {
		return []catalog.Record{}, nil
	}
	var recs []catalog.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func findDuplicate(recs []catalog.Record, rec catalog.Record, callerDated bool) *catalog.Record {
	for i := range recs {
		if isDuplicate(recs[i], rec, callerDated) {
			return &recs[i]
		}
	}
	return nil
}

func isDuplicate(existing, rec catalog.Record, callerDated bool) bool {
	if rec.RequestID != "" {
		return existing.RequestID == rec.RequestID
	}
	if !callerDated {
		return false
	}
	return strings.EqualFold(existing.Title, rec.Title) &&
		minute(existing.UploadDate) != "" &&
		minute(existing.UploadDate) == minute(rec.UploadDate)
}

// minute truncates an RFC3339 timestamp to the minute; "" when unparseable.
func minute(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339)
}
