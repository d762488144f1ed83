package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
)

func TestTracker_IsDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last *time.Time
		want bool
	}{
		{"never fetched", nil, true},
		{"just fetched", ptr(now), false},
		{"ten minutes ago", ptr(now.Add(-10 * time.Minute)), false},
		{"exactly fifteen minutes ago", ptr(now.Add(-15 * time.Minute)), false},
		{"just over fifteen minutes ago", ptr(now.Add(-15*time.Minute - time.Second)), true},
		{"yesterday", ptr(now.Add(-24 * time.Hour)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			if tt.last != nil {
				store.SetLastFetched(ctx, "KSEA", *tt.last)
			}

			tracker := NewTracker(store, 0)
			got, err := tracker.IsDue(ctx, "KSEA", now)
			if err != nil {
				t.Fatalf("IsDue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_MarkAttempted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tracker := NewTracker(store, 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := tracker.MarkAttempted(ctx, "KSEA", now); err != nil {
		t.Fatalf("MarkAttempted() error = %v", err)
	}
	if due, _ := tracker.IsDue(ctx, "KSEA", now.Add(5*time.Minute)); due {
		t.Error("IsDue() = true right after MarkAttempted")
	}
	if due, _ := tracker.IsDue(ctx, "KPDX", now); !due {
		t.Error("IsDue() = false for an unrelated location")
	}

	// stamping is unconditional, even backwards
	if err := tracker.MarkAttempted(ctx, "KSEA", now.Add(-time.Hour)); err != nil {
		t.Fatalf("MarkAttempted() error = %v", err)
	}
	if due, _ := tracker.IsDue(ctx, "KSEA", now); !due {
		t.Error("IsDue() = false after stamping an hour back")
	}
}

func TestTracker_Window(t *testing.T) {
	if w := NewTracker(storage.NewMemoryStore(), 0).Window(); w != notice.FreshnessWindow {
		t.Errorf("Window() = %v, want %v", w, notice.FreshnessWindow)
	}
	if w := NewTracker(storage.NewMemoryStore(), time.Minute).Window(); w != time.Minute {
		t.Errorf("Window() = %v, want 1m", w)
	}
}

type failingCursors struct{}

func (failingCursors) LastFetched(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, &notice.StoreError{Op: "read cursor", Err: errors.New("boom")}
}

func (failingCursors) SetLastFetched(context.Context, string, time.Time) error {
	return &notice.StoreError{Op: "write cursor", Err: errors.New("boom")}
}

func TestTracker_PropagatesStoreErrors(t *testing.T) {
	tracker := NewTracker(failingCursors{}, 0)
	if _, err := tracker.IsDue(context.Background(), "KSEA", time.Now()); !errors.Is(err, notice.ErrStore) {
		t.Errorf("IsDue() error = %v, want ErrStore", err)
	}
}

func ptr(t time.Time) *time.Time { return &t }
