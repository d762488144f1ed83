package notice

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// compactLayout is the YYMMDDHHMM form used inside notice text
const compactLayout = "0601021504"

var (
	permPattern    = regexp.MustCompile(`\bC\)\s*PERM\b`)
	estPattern     = regexp.MustCompile(`\bC\)\s*\d{6,10}\s*EST\b|\b\d{6}\d{4}-\d{6}\d{4}EST\b`)
	bodyDatePair   = regexp.MustCompile(`\b(\d{10})-(\d{10})\b`)
	estDatePair    = regexp.MustCompile(`\b(\d{6})(\d{4})-(\d{6})(\d{4})EST\b`)
	upstreamLayout = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// Normalize turns an upstream notice into a Record. Unparseable dates are
// reported as warnings and left absent; normalization itself never fails.
func Normalize(raw Raw, now time.Time) (Record, []NormalizationWarning) {
	var warnings []NormalizationWarning

	rec := Record{
		ID:          HashKey(raw.Key),
		Key:         raw.Key,
		Location:    strings.ToUpper(strings.TrimSpace(raw.Location)),
		Permanent:   permPattern.MatchString(raw.All),
		Estimated:   estPattern.MatchString(raw.All),
		ProcessedAt: now,
		RawID:       string(raw.ID),
		IsICAO:      raw.IsICAO,
		Entity:      raw.Entity,
		Status:      raw.Status,
		QCode:       raw.QCode,
		Area:        raw.Area,
		SubArea:     raw.SubArea,
		Condition:   raw.Condition,
		Subject:     raw.Subject,
		Modifier:    raw.Modifier,
		Message:     raw.Message,
		All:         raw.All,
		Type:        raw.Type,
		StateCode:   raw.StateCode,
		StateName:   raw.StateName,
		Criticality: string(raw.Criticality),
	}

	rec.Body = raw.Message
	if strings.TrimSpace(rec.Body) == "" {
		rec.Body = raw.All
	}

	parseField := func(field, value string) *time.Time {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		t, ok := ParseTime(value)
		if !ok {
			warnings = append(warnings, NormalizationWarning{Key: raw.Key, Field: field, Value: value})
			return nil
		}
		return &t
	}

	rec.ValidFrom = parseField("startdate", raw.StartDate)
	rec.ValidTo = parseField("enddate", raw.EndDate)
	rec.Created = parseField("Created", raw.Created)

	if rec.ValidFrom == nil || rec.ValidTo == nil {
		from, to := scanBodyDates(raw.All)
		if rec.ValidFrom == nil {
			rec.ValidFrom = from
		}
		if rec.ValidTo == nil {
			rec.ValidTo = to
		}
	}

	return rec, warnings
}

// scanBodyDates looks for a YYMMDDHHMM-YYMMDDHHMM pair, then for the
// EST-suffixed form. Malformed digits yield nil for that side.
func scanBodyDates(body string) (from, to *time.Time) {
	if m := bodyDatePair.FindStringSubmatch(body); m != nil {
		return parseCompact(m[1]), parseCompact(m[2])
	}
	if m := estDatePair.FindStringSubmatch(body); m != nil {
		return parseCompact(m[1] + m[2]), parseCompact(m[3] + m[4])
	}
	return nil, nil
}

func parseCompact(s string) *time.Time {
	t, err := time.Parse(compactLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseTime parses the timestamp formats seen in upstream payloads and
// request parameters. The result is timezone-naive.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range upstreamLayout {
		if t, err := time.Parse(layout, s); err == nil {
			return Naive(t), true
		}
	}
	if len(s) >= 10 && isDigits(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Naive(time.Unix(sec, 0).UTC()), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
