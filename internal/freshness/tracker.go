// Package freshness decides when a location's cached notices are stale
// enough to justify an upstream refetch.
package freshness

import (
	"context"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
)

// Tracker gates upstream calls per location
type Tracker struct {
	cursors storage.CursorStore
	window  time.Duration
}

// NewTracker creates a tracker over cursors. A non-positive window uses
// notice.FreshnessWindow.
func NewTracker(cursors storage.CursorStore, window time.Duration) *Tracker {
	if window <= 0 {
		window = notice.FreshnessWindow
	}
	return &Tracker{cursors: cursors, window: window}
}

// Window returns the configured freshness window
func (t *Tracker) Window() time.Duration {
	return t.window
}

// IsDue reports whether location has never been fetched or was last
// fetched more than the window before now.
func (t *Tracker) IsDue(ctx context.Context, location string, now time.Time) (bool, error) {
	last, ok, err := t.cursors.LastFetched(ctx, location)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return now.Sub(last) > t.window, nil
}

// MarkAttempted records now as the last fetch time for location
func (t *Tracker) MarkAttempted(ctx context.Context, location string, now time.Time) error {
	return t.cursors.SetLastFetched(ctx, location, now)
}
