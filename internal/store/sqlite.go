package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blackwell-systems/reelshelf/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps objects in a single SQLite table with an integer
// version per row. Used for local development and offline rendering.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating and migrating if needed) the database at path.
// path may be ":memory:".
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, p string) (Object, error) {
	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content, version FROM objects WHERE path = ?`, Clean(p)).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return Object{}, fmt.Errorf("reading %s: %w", p, err)
	}
	return Object{Data: data, Version: formatVersion(version)}, nil
}

// Put implements Store. Both the create and the conditional update are
// single statements, so the precondition check is atomic.
func (s *SQLiteStore) Put(ctx context.Context, p string, data []byte, expect Version, _ string) (PutResult, error) {
	p = Clean(p)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var (
		res sql.Result
		err error
		v   int64 = 1
	)
	if expect == "" {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO objects (path, content, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(path) DO NOTHING`, p, data, now)
	} else {
		prev, perr := parseVersion(expect)
		if perr != nil {
			return PutResult{}, fmt.Errorf("%s: %v: %w", p, perr, ErrConflict)
		}
		v = prev + 1
		res, err = s.db.ExecContext(ctx,
			`UPDATE objects SET content = ?, version = ?, updated_at = ? WHERE path = ? AND version = ?`,
			data, v, now, p, prev)
	}
	if err != nil {
		return PutResult{}, fmt.Errorf("writing %s: %w", p, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return PutResult{}, err
	}
	if n == 0 {
		return PutResult{}, fmt.Errorf("%s: %w", p, ErrConflict)
	}
	return PutResult{Version: formatVersion(v), URL: "sqlite://" + p}, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, dir string) ([]Entry, error) {
	dir = Clean(dir)
	prefix := dir + "/"
	if dir == "" {
		prefix = ""
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, version FROM objects WHERE substr(path, 1, ?) = ?`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	defer rows.Close()

	seen := make(map[string]Entry)
	for rows.Next() {
		var (
			p string
			v int64
		)
		if err := rows.Scan(&p, &v); err != nil {
			return nil, err
		}
		name, _, nested := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		if nested {
			seen[name] = Entry{Name: name, Path: prefix + name, IsDir: true}
			continue
		}
		seen[name] = Entry{Name: name, Path: p, Version: formatVersion(v)}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotFound)
	}

	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func formatVersion(v int64) Version { return Version(strconv.FormatInt(v, 10)) }

func parseVersion(v Version) (int64, error) {
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", v)
	}
	return n, nil
}
