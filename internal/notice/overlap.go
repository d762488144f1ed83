package notice

import "time"

// Window is a requested validity range. Both ends are inclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow normalizes both ends to naive time.
func NewWindow(from, to time.Time) Window {
	return Window{From: Naive(from), To: Naive(to)}
}

func (w Window) Validate() error {
	if w.From.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "missing"}
	}
	if w.To.IsZero() {
		return &ValidationError{Field: "end_date", Reason: "missing"}
	}
	if w.To.Before(w.From) {
		return &ValidationError{Field: "end_date", Reason: "before start_date"}
	}
	return nil
}

// IsActive reports whether r should be shown for window w.
//
// Permanent and estimated notices are always active. Otherwise both bounds
// must be known and the record must satisfy one of the four overlap
// cases; a record with a missing bound is excluded, the same as the
// store-side query where NULL comparisons never match.
func IsActive(w Window, r Record) bool {
	if r.AlwaysActive() {
		return true
	}
	if r.ValidFrom == nil || r.ValidTo == nil {
		return false
	}

	d1, d2 := Naive(w.From), Naive(w.To)
	n1, n2 := Naive(*r.ValidFrom), Naive(*r.ValidTo)
	le := func(a, b time.Time) bool { return !a.After(b) }

	switch {
	case le(d1, n1) && le(n2, d2): // record inside window
		return true
	case le(d1, n1) && le(n1, d2) && le(d2, n2): // window overlaps record start
		return true
	case le(n1, d1) && le(d1, n2) && le(n2, d2): // record overlaps window start
		return true
	case le(n1, d1) && le(d1, n2) && le(d2, n2): // window inside record
		return true
	}
	return false
}

// FilterActive keeps the records active in w, preserving order.
func FilterActive(w Window, records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if IsActive(w, r) {
			out = append(out, r)
		}
	}
	return out
}
