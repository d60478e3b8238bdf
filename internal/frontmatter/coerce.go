package frontmatter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// Coerced keys. Every other key keeps the type its syntax produced.
const (
	KeyReleaseYear = "releaseYear"
	KeyTags        = "tags"
)

// Delete removes a field.
func (d *Document) Delete(key string) {
	if _, ok := d.Fields[key]; !ok {
		return
	}
	delete(d.Fields, key)
	for i, k := range d.Keys {
		if k == key {
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			break
		}
	}
}

func coerce(d *Document) error {
	for k, v := range d.Fields {
		d.Fields[k] = normalize(v)
	}

	if v, ok := d.Fields[KeyReleaseYear]; ok {
		year, present, err := CoerceYear(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, KeyReleaseYear, err)
		}
		if present {
			d.Fields[KeyReleaseYear] = year
		} else {
			d.Delete(KeyReleaseYear)
		}
	}

	if v, ok := d.Fields[KeyTags]; ok {
		tags, err := CoerceTags(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, KeyTags, err)
		}
		d.Fields[KeyTags] = tags
	}
	return nil
}

// normalize maps syntax-specific scalar types onto the small set the
// catalog understands.
func normalize(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	}
	return v
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// CoerceYear reads a release year from an int, a whole float or a string
// starting with digits. present is false for nil and blank strings.
func CoerceYear(v any) (year int, present bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int:
		return x, true, nil
	case float64:
		if x != float64(int(x)) {
			return 0, false, fmt.Errorf("%v is not a whole year", x)
		}
		return int(x), true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		digits := leadingDigits.FindString(s)
		if digits == "" {
			return 0, false, fmt.Errorf("%q is not a year", s)
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	}
	return 0, false, fmt.Errorf("unsupported type %T", v)
}

// CoerceTags accepts a list, a JSON array string, or a comma separated string.
// A broken JSON array is repaired once before giving up.
func CoerceTags(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return cleanTags(x), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, t := range x {
			out = append(out, fmt.Sprint(t))
		}
		return cleanTags(out), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return []string{}, nil
		}
		if !strings.HasPrefix(s, "[") {
			return cleanTags(strings.Split(s, ",")), nil
		}
		var tags []any
		if err := json.Unmarshal([]byte(s), &tags); err != nil {
			fixed, rerr := jsonrepair.JSONRepair(s)
			if rerr != nil {
				return nil, fmt.Errorf("invalid JSON array %q: %v", s, err)
			}
			if err := json.Unmarshal([]byte(fixed), &tags); err != nil {
				return nil, fmt.Errorf("invalid JSON array %q: %v", s, err)
			}
		}
		return CoerceTags(tags)
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
