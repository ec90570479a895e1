package model

import (
	"sort"
	"strings"
	"time"

	"workblix/internal/domain"
)

var dateLayouts = []string{"2006-01-02", "2006-01", "01/2006", "1/2006", "2006"}

// ParseDate accepts the date shapes the profile editor produces.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) > 10 && s[4] == '-' {
		// ISO timestamps: keep the date part only
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatMonth renders a date as MM/YYYY. Unparsable input is returned as is.
func FormatMonth(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return t.Format("01/2006")
}

// Period renders "start - end", substituting present for ongoing entries.
func Period(start, end string, ongoing bool, present string) string {
	from := FormatMonth(start)
	to := FormatMonth(end)
	if ongoing {
		to = present
	}
	switch {
	case from == "" && to == "":
		return ""
	case to == "":
		return from
	case from == "":
		return to
	}
	return from + " - " + to
}

// startKey orders entries; unparsable dates get the zero time and sort last.
func startKey(s string) time.Time {
	t, _ := ParseDate(s)
	return t
}

// SortExperience returns a copy sorted descending by start date. The sort is
// stable, so ties and unparsable dates keep their input order.
func SortExperience(in []domain.Experience) []domain.Experience {
	out := make([]domain.Experience, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return startKey(out[i].StartDate).After(startKey(out[j].StartDate))
	})
	return out
}

// SortEducation is SortExperience for education entries.
func SortEducation(in []domain.Education) []domain.Education {
	out := make([]domain.Education, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return startKey(out[i].StartDate).After(startKey(out[j].StartDate))
	})
	return out
}

var bulletMarkers = []string{"- ", "• ", "* "}

// Bullets splits a newline-delimited description into trimmed, non-blank
// lines. A leading list marker is dropped only when a space follows it.
func Bullets(desc string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(desc, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		for _, m := range bulletMarkers {
			if strings.HasPrefix(line, m) {
				line = strings.TrimSpace(line[len(m):])
				break
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
