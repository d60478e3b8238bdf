package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
)

type person struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type videoObject struct {
	Type         string `json:"@type"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ContentURL   string `json:"contentUrl,omitempty"`
	UploadDate   string `json:"uploadDate,omitempty"`
	Duration     string `json:"duration,omitempty"`
}

type movie struct {
	Context       string       `json:"@context"`
	Type          string       `json:"@type"`
	Name          string       `json:"name"`
	URL           string       `json:"url,omitempty"`
	Description   string       `json:"description,omitempty"`
	Image         string       `json:"image,omitempty"`
	DatePublished string       `json:"datePublished,omitempty"`
	Genre         string       `json:"genre,omitempty"`
	Keywords      string       `json:"keywords,omitempty"`
	InLanguage    string       `json:"inLanguage,omitempty"`
	ContentRating string       `json:"contentRating,omitempty"`
	Duration      string       `json:"duration,omitempty"`
	Director      *person      `json:"director,omitempty"`
	Producer      *person      `json:"producer,omitempty"`
	Actor         []person     `json:"actor,omitempty"`
	Video         *videoObject `json:"video,omitempty"`
}

// JSONLD returns the schema.org Movie description of rec, with a nested
// VideoObject when the record has a video URL. The result is safe to embed
// in a <script type="application/ld+json"> element.
func JSONLD(site Site, rec catalog.Record) (template.JS, error) {
	desc := rec.MetaDescription
	if desc == "" {
		desc = rec.Description
	}
	dur := rec.ISODuration()

	m := movie{
		Context:       "https://schema.org",
		Type:          "Movie",
		Name:          rec.Title,
		Description:   desc,
		Image:         rec.PosterURL,
		Genre:         rec.Category,
		Keywords:      strings.Join(rec.Tags, ", "),
		InLanguage:    rec.Language,
		ContentRating: rec.Rating,
		Duration:      dur,
		Director:      newPerson(rec.Director),
		Producer:      newPerson(rec.Producer),
		Actor:         cast(rec.MainCast),
	}
	if site.BaseURL != "" && rec.Category != "" && rec.Slug != "" {
		m.URL = fmt.Sprintf("%s/%s/%s", site.BaseURL, rec.Category, rec.Slug)
	}
	if rec.ReleaseYear > 0 {
		m.DatePublished = strconv.Itoa(rec.ReleaseYear)
	}
	if rec.VideoURL != "" {
		m.Video = &videoObject{
			Type:         "VideoObject",
			Name:         rec.Title,
			Description:  desc,
			ThumbnailURL: rec.PosterURL,
			ContentURL:   rec.VideoURL,
			UploadDate:   rec.UploadDate,
			Duration:     dur,
		}
	}

	// json.Marshal escapes <, > and & so the output cannot close the script element.
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding json-ld: %w", err)
	}
	return template.JS(b), nil
}

func newPerson(name string) *person {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &person{Type: "Person", Name: name}
}

// cast splits a comma separated cast list.
func cast(s string) []person {
	var out []person
	for _, name := range strings.Split(s, ",") {
		if p := newPerson(name); p != nil {
			out = append(out, *p)
		}
	}
	return out
}
