package notice

import (
	"strings"
	"time"
)

// NormalizeLocations trims and upper-cases codes and drops duplicates,
// keeping first-seen order. An empty list or a blank code is rejected.
func NormalizeLocations(locations []string) ([]string, error) {
	if len(locations) == 0 {
		return nil, &ValidationError{Field: "locations", Reason: "missing or empty"}
	}

	out := make([]string, 0, len(locations))
	seen := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		code := strings.ToUpper(strings.TrimSpace(loc))
		if code == "" {
			return nil, &ValidationError{Field: "locations", Reason: "blank location code"}
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

// SplitLocations splits comma- or space-separated codes from each value,
// e.g. repeated ?locations= query parameters.
func SplitLocations(values ...string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	return out
}

// ParseWindow builds a window from optional date strings. A blank bound
// defaults to the start of today (UTC).
func ParseWindow(start, end string, now time.Time) (Window, error) {
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)

	parse := func(field, v string) (time.Time, error) {
		if strings.TrimSpace(v) == "" {
			return today, nil
		}
		t, ok := ParseTime(v)
		if !ok {
			return time.Time{}, &ValidationError{Field: field, Reason: "unparseable date " + v}
		}
		return t, nil
	}

	from, err := parse("start_date", start)
	if err != nil {
		return Window{}, err
	}
	to, err := parse("end_date", end)
	if err != nil {
		return Window{}, err
	}

	w := NewWindow(from, to)
	return w, w.Validate()
}
