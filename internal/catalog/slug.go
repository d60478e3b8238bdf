package catalog

import "strings"

const maxSlugLen = 63

// Slugify converts a human readable name into a lowercase, hyphen separated
// identifier usable as a path segment. Quotes are dropped without splitting
// words ("Director's Cut" -> "directors-cut"); every other run of
// non-alphanumeric characters becomes one hyphen.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	prevWasSep := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		isQuote := r == '\'' || r == '"' ||
			r == '‘' || r == '’' ||
			r == '“' || r == '”'

		if isAlnum {
			b.WriteRune(r)
			prevWasSep = false
		} else if isQuote {
			continue
		} else {
			if !prevWasSep && b.Len() > 0 {
				b.WriteRune('-')
			}
			prevWasSep = true
		}
	}
	result := strings.TrimRight(b.String(), "-")
	if len(result) > maxSlugLen {
		result = strings.TrimRight(result[:maxSlugLen], "-")
	}
	if result == "" {
		return "untitled"
	}
	return result
}
