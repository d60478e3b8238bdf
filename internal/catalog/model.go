package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/blackwell-systems/reelshelf/internal/frontmatter"
)

// Record is one movie/video entry. Markdown pages are identified by
// (Category, Slug); collection entries by (channel slug, ID).
type Record struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Slug            string   `json:"slug,omitempty"`
	Category        string   `json:"category,omitempty"`
	ReleaseYear     int      `json:"releaseYear,omitempty"`
	Duration        string   `json:"duration,omitempty"`
	Language        string   `json:"language,omitempty"`
	Rating          string   `json:"rating,omitempty"`
	Quality         string   `json:"quality,omitempty"`
	Description     string   `json:"description,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	VideoURL        string   `json:"videoUrl,omitempty"`
	PosterURL       string   `json:"posterUrl,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Director        string   `json:"director,omitempty"`
	Producer        string   `json:"producer,omitempty"`
	MainCast        string   `json:"mainCast,omitempty"`
	UploadDate      string   `json:"uploadDate,omitempty"`
	// RequestID is an optional caller supplied idempotency key.
	RequestID string `json:"requestId,omitempty"`

	// Body is the markdown body of a page record. Not part of collections.
	Body string `json:"-"`
}

// Summary is the compact form kept in index documents and search results.
type Summary struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Category   string `json:"category,omitempty"`
	PosterURL  string `json:"posterUrl,omitempty"`
	UploadDate string `json:"uploadDate,omitempty"`
}

// Summary returns the compact form of r.
func (r Record) Summary() Summary {
	return Summary{
		ID:         r.ID,
		Title:      r.Title,
		Slug:       r.Slug,
		Category:   r.Category,
		PosterURL:  r.PosterURL,
		UploadDate: r.UploadDate,
	}
}

// UnmarshalJSON accepts releaseYear as a number or a numeric string and
// tags as an array or a comma separated string, the shapes scraped and
// hand-written payloads arrive in.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		ReleaseYear any `json:"releaseYear,omitempty"`
		Tags        any `json:"tags,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	year, present, err := frontmatter.CoerceYear(aux.ReleaseYear)
	if err != nil {
		return fmt.Errorf("releaseYear: %w", err)
	}
	if present {
		r.ReleaseYear = year
	}
	if aux.Tags != nil {
		tags, err := frontmatter.CoerceTags(aux.Tags)
		if err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		if len(tags) > 0 {
			r.Tags = tags
		}
	}
	return nil
}
