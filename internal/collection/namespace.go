// Package collection appends records to paginated JSON collection files and
// keeps the per-namespace index document in step.
//
// A collection is a directory {root}/{slug}/ holding videos-1.json,
// videos-2.json, ... Each file is a JSON array, newest record first, holding
// at most Capacity records. When the highest numbered file is full the next
// append starts a new file; records are never dropped.
package collection

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
)

// Namespace groups collections that share a root directory and an index.
type Namespace struct {
	Name      string // metric label and log field
	Root      string
	IndexPath string
}

var (
	// Channels holds user facing channels.
	Channels = Namespace{Name: "channels", Root: "channels", IndexPath: "channels/index.json"}
	// Categories holds the per-category collections written by save-movie.
	Categories = Namespace{Name: "categories", Root: "categories", IndexPath: "data/category-index.json"}
)

var fileRe = regexp.MustCompile(`^videos-(\d+)\.json$`)

// FileName returns the name of collection file n.
func FileName(n int) string {
	return fmt.Sprintf("videos-%d.json", n)
}

// Dir returns the directory of one collection.
func (ns Namespace) Dir(slug string) string {
	return path.Join(ns.Root, slug)
}

// FilePath returns the store path of collection file n.
func (ns Namespace) FilePath(slug string, n int) string {
	return path.Join(ns.Root, slug, FileName(n))
}

// parseFileName returns n for "videos-<n>.json".
func parseFileName(name string) (int, bool) {
	m := fileRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
