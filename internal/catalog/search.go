package catalog

import (
	"sort"
	"strings"
)

// Filter applies all non-empty criteria and returns matching records.
type Filter struct {
	Category string
	Tag      string
	Search   string // matches title, description, tags or category
}

// Apply returns the subset of records matching all non-empty filter fields.
func (f Filter) Apply(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
			continue
		}
		if f.Tag != "" && !hasTag(r, f.Tag) {
			continue
		}
		if f.Search != "" && !matchesSearch(r, f.Search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Search returns at most limit records matching q, newest first. A limit
// of zero or less means no limit.
func Search(records []Record, q string, limit int) []Record {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	out := Filter{Search: q}.Apply(records)
	SortNewest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortNewest orders records by upload date, newest first, then by title.
func SortNewest(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].UploadDate != records[j].UploadDate {
			return records[i].UploadDate > records[j].UploadDate
		}
		return records[i].Title < records[j].Title
	})
}

// Find returns the record with the given category and slug, or nil.
func Find(records []Record, category, slug string) *Record {
	for i := range records {
		if records[i].Category == category && records[i].Slug == slug {
			return &records[i]
		}
	}
	return nil
}

func hasTag(r Record, tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func matchesSearch(r Record, q string) bool {
	q = strings.ToLower(q)
	for _, s := range []string{r.Title, r.Description, r.MetaDescription, r.Category} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
