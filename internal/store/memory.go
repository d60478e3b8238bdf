package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memObject struct {
	data    []byte
	version Version
}

// MemoryStore is an in-memory Store. It enforces the same version
// preconditions as the remote backends and is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	seq     int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, p string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[Clean(p)]
	if !ok {
		return Object{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	data := make([]byte, len(o.data))
	copy(data, o.data)
	return Object{Data: data, Version: o.version}, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, p string, data []byte, expect Version, _ string) (PutResult, error) {
	p = Clean(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.objects[p]
	switch {
	case expect == "" && exists:
		return PutResult{}, fmt.Errorf("%s already exists: %w", p, ErrConflict)
	case expect != "" && (!exists || cur.version != expect):
		return PutResult{}, fmt.Errorf("%s changed since version %s: %w", p, expect, ErrConflict)
	}

	m.seq++
	v := Version(fmt.Sprintf("m%d", m.seq))
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[p] = memObject{data: buf, version: v}
	return PutResult{Version: v, URL: "memory://" + p}, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, dir string) ([]Entry, error) {
	dir = Clean(dir)
	prefix := dir + "/"
	if dir == "" {
		prefix = ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]Entry)
	for p, o := range m.objects {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = Entry{Name: name, Path: prefix + name, IsDir: true}
			continue
		}
		seen[name] = Entry{Name: name, Path: p, Version: o.version}
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

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
