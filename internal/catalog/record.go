package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blackwell-systems/reelshelf/internal/frontmatter"
)

// DefaultCategory is used when a record names none.
const DefaultCategory = "uncategorized"

// ValidationError reports required fields a record is missing.
type ValidationError struct {
	Path    string
	Missing []string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: missing required field(s): %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return "missing required field(s): " + strings.Join(e.Missing, ", ")
}

// Validate checks the fields every record must carry.
func (r Record) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.VideoURL) == "" {
		missing = append(missing, "videoUrl")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Normalize fills derived identity fields: a slug from the title and a
// slugified category.
func (r *Record) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	if r.Slug == "" {
		r.Slug = Slugify(r.Title)
	} else {
		r.Slug = Slugify(r.Slug)
	}
	if strings.TrimSpace(r.Category) == "" {
		r.Category = DefaultCategory
	} else {
		r.Category = Slugify(r.Category)
	}
}

// stringFields maps front matter keys onto record fields.
func (r *Record) stringFields() map[string]*string {
	return map[string]*string{
		"id":              &r.ID,
		"title":           &r.Title,
		"slug":            &r.Slug,
		"category":        &r.Category,
		"duration":        &r.Duration,
		"language":        &r.Language,
		"rating":          &r.Rating,
		"quality":         &r.Quality,
		"description":     &r.Description,
		"metaDescription": &r.MetaDescription,
		"videoUrl":        &r.VideoURL,
		"posterUrl":       &r.PosterURL,
		"director":        &r.Director,
		"producer":        &r.Producer,
		"mainCast":        &r.MainCast,
		"uploadDate":      &r.UploadDate,
	}
}

// documentOrder is the key order used when writing a new page.
var documentOrder = []string{
	"id", "title", "slug", "category", "releaseYear", "duration", "language",
	"rating", "quality", "description", "metaDescription", "videoUrl",
	"posterUrl", "tags", "director", "producer", "mainCast", "uploadDate",
}

// FromDocument decodes a parsed page into a Record. Missing required fields
// are a *ValidationError; path is only used in error messages.
func FromDocument(path string, d *frontmatter.Document) (Record, error) {
	var r Record
	for key, dst := range r.stringFields() {
		v, ok := d.Fields[key]
		if !ok || v == nil {
			continue
		}
		*dst = strings.TrimSpace(fmt.Sprint(v))
	}
	if y, ok := d.Fields[frontmatter.KeyReleaseYear].(int); ok {
		r.ReleaseYear = y
	}
	if tags, ok := d.Fields[frontmatter.KeyTags].([]string); ok && len(tags) > 0 {
		r.Tags = tags
	}
	r.Body = d.Body

	if err := r.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Path = path
		}
		return Record{}, err
	}
	r.Normalize()
	return r, nil
}

// ToDocument renders r as a YAML front matter document. Empty fields are
// left out.
func ToDocument(r Record) *frontmatter.Document {
	d := frontmatter.New()
	fields := r.stringFields()
	for _, key := range documentOrder {
		switch key {
		case frontmatter.KeyReleaseYear:
			if r.ReleaseYear != 0 {
				d.Set(key, r.ReleaseYear)
			}
		case frontmatter.KeyTags:
			if len(r.Tags) > 0 {
				d.Set(key, r.Tags)
			}
		default:
			if v := *fields[key]; v != "" {
				d.Set(key, v)
			}
		}
	}
	d.Body = r.Body
	return d
}

// ParsePage parses raw page bytes into a Record.
func ParsePage(path string, data []byte) (Record, error) {
	d, err := frontmatter.Parse(data)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return FromDocument(path, d)
}

// MarshalPage renders r as page bytes.
func MarshalPage(r Record) ([]byte, error) {
	return frontmatter.Marshal(ToDocument(r))
}
