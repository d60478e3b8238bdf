package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blackwell-systems/reelshelf/internal/store"
)

// DefaultCategorySetPath is where the permitted category list is kept.
const DefaultCategorySetPath = "data/categories.json"

type categoryFile struct {
	Categories []string `json:"categories"`
	UpdatedAt  string   `json:"updatedAt,omitempty"`
}

// CategorySet is the flat, deduplicated list of permitted categories.
type CategorySet struct {
	st    store.Store
	path  string
	clock Clock
}

// NewCategorySet creates a CategorySet stored at p (DefaultCategorySetPath
// when empty).
func NewCategorySet(st store.Store, p string, clock Clock) *CategorySet {
	if p == "" {
		p = DefaultCategorySetPath
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &CategorySet{st: st, path: store.Clean(p), clock: clock}
}

// Load returns the categories, sorted. A missing file is an empty set.
func (c *CategorySet) Load(ctx context.Context) ([]string, error) {
	obj, err := c.st.Get(ctx, c.path)
	if errors.Is(err, store.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	cats, err := decodeCategories(obj.Data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", c.path, err)
	}
	return cats, nil
}

// Replace overwrites the set with categories.
func (c *CategorySet) Replace(ctx context.Context, categories []string) ([]string, error) {
	return c.update(ctx, "update categories", func([]string) []string { return categories })
}

// Add unions categories into the set.
func (c *CategorySet) Add(ctx context.Context, categories ...string) ([]string, error) {
	return c.update(ctx, "add categories", func(cur []string) []string { return append(cur, categories...) })
}

func (c *CategorySet) update(ctx context.Context, msg string, fn func([]string) []string) ([]string, error) {
	var result []string
	_, err := store.Update(ctx, c.st, c.path, store.UpdateOptions{Message: msg}, func(cur []byte, exists bool) ([]byte, error) {
		var existing []string
		if exists {
			var err error
			if existing, err = decodeCategories(cur); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", c.path, err)
			}
		}
		next := NormalizeCategories(fn(existing))
		if exists && equalStrings(existing, next) {
			result = existing
			return nil, store.ErrNoChange
		}
		result = next
		return json.MarshalIndent(categoryFile{Categories: next, UpdatedAt: Timestamp(c.clock.Now())}, "", "  ")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NormalizeCategories trims, lowercases, deduplicates and sorts.
func NormalizeCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := []string{}
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// decodeCategories reads either the object form or a bare JSON array.
func decodeCategories(data []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return NormalizeCategories(list), nil
	}
	var f categoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return NormalizeCategories(f.Categories), nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
