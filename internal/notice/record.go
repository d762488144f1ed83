package notice

import (
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// FreshnessWindow is how long a location's cached notices are trusted
// before an upstream refetch is due. The store's recency pre-filter uses
// the same duration.
const FreshnessWindow = 15 * time.Minute

// Record is a normalized notice as it is kept in the durable store
type Record struct {
	ID       uint32 `json:"notice_id"`
	Key      string `json:"key"`
	Location string `json:"location"`

	ValidFrom *time.Time `json:"startdate,omitempty"` // nil when unknown
	ValidTo   *time.Time `json:"enddate,omitempty"`   // nil when unknown
	Permanent bool       `json:"perm"`
	Estimated bool       `json:"est"`

	Body        string    `json:"body"`
	ProcessedAt time.Time `json:"processed_at"`
	Interpreted bool      `json:"interpreted"`

	// Upstream passthrough
	RawID       string     `json:"raw_id,omitempty"`
	IsICAO      bool       `json:"is_icao"`
	Entity      string     `json:"entity,omitempty"`
	Status      string     `json:"status,omitempty"`
	QCode       string     `json:"qcode,omitempty"`
	Area        string     `json:"area,omitempty"`
	SubArea     string     `json:"sub_area,omitempty"`
	Condition   string     `json:"condition,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Modifier    string     `json:"modifier,omitempty"`
	Message     string     `json:"message,omitempty"`
	All         string     `json:"all"`
	Created     *time.Time `json:"created,omitempty"`
	Type        string     `json:"type,omitempty"`
	StateCode   string     `json:"state_code,omitempty"`
	StateName   string     `json:"state_name,omitempty"`
	Criticality string     `json:"criticality,omitempty"`
}

// ICAO returns the location code when upstream flagged it as an ICAO
// aerodrome, or "" otherwise.
func (r Record) ICAO() string {
	if r.IsICAO {
		return r.Location
	}
	return ""
}

// AlwaysActive reports whether the record bypasses window comparison.
func (r Record) AlwaysActive() bool {
	return r.Permanent || r.Estimated
}

// HashKey derives the stable record ID from an upstream natural key: the
// first 8 hex digits of SHA-256(key) read as a uint32.
//
// The ID space is 2^32. Collisions are accepted as negligible for the
// expected volume; two distinct keys that collide collapse into one row.
func HashKey(key string) uint32 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint32(sum[:4])
}

// Naive drops the offset of t and keeps its wall clock, labelled UTC.
// It is not a UTC conversion: 10:00+02:00 becomes 10:00Z.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Interpretation is a summarizer annotation for one notice and one model
type Interpretation struct {
	NoticeID         uint32    `json:"notice_id"`
	Model            string    `json:"model"`
	Content          string    `json:"content"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	ImpactedRoles    string    `json:"impacted_roles"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// InterpretedNotice pairs a stored record with its latest interpretation,
// if any.
type InterpretedNotice struct {
	Record
	Interpretation *Interpretation `json:"interpretation,omitempty"`
}
