package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	isoDurationRe = regexp.MustCompile(`^P(T(\d+H)?(\d+M)?(\d+S)?)$`)
	clockRe       = regexp.MustCompile(`^(\d+):(\d{1,2})(?::(\d{1,2}))?$`)
	hoursRe       = regexp.MustCompile(`(\d+)\s*(?:hours|hour|hrs|hr|h)(?:[^a-z]|$)`)
	minutesRe     = regexp.MustCompile(`(\d+)\s*(?:minutes|minute|mins|min|m)(?:[^a-z]|$)`)
)

// ISODuration converts the free text duration of r ("2h 15m", "135 min",
// "1:45:00") into an ISO-8601 duration such as "PT2H15M". It returns "" when
// the text cannot be read.
func (r Record) ISODuration() string {
	return ISODuration(r.Duration)
}

// ISODuration is the function form of Record.ISODuration.
func ISODuration(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	if up := strings.ToUpper(s); isoDurationRe.MatchString(up) && up != "PT" {
		return up
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if m[3] == "" {
			// h:mm
			return format(a, b)
		}
		c, _ := strconv.Atoi(m[3])
		return format(a, b+roundSeconds(c))
	}

	lower := strings.ToLower(s)
	var h, m int
	found := false
	if mm := hoursRe.FindStringSubmatch(lower); mm != nil {
		h, _ = strconv.Atoi(mm[1])
		found = true
	}
	if mm := minutesRe.FindStringSubmatch(lower); mm != nil {
		m, _ = strconv.Atoi(mm[1])
		found = true
	}
	if !found {
		// A bare number is minutes.
		n, err := strconv.Atoi(lower)
		if err != nil {
			return ""
		}
		m = n
	}
	return format(h, m)
}

func roundSeconds(s int) int {
	if s >= 30 {
		return 1
	}
	return 0
}

func format(h, m int) string {
	h += m / 60
	m %= 60
	switch {
	case h == 0 && m == 0:
		return ""
	case h == 0:
		return fmt.Sprintf("PT%dM", m)
	case m == 0:
		return fmt.Sprintf("PT%dH", h)
	}
	return fmt.Sprintf("PT%dH%dM", h, m)
}
