package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
)

func sample() []notice.Record {
	mk := func(key, loc, body string) notice.Record {
		return notice.Record{ID: notice.HashKey(key), Key: key, Location: loc, Body: body, All: body, ProcessedAt: time.Now()}
	}
	return []notice.Record{
		mk("A", "KSEA", "RWY 16L/34R CLOSED FOR MAINTENANCE"),
		mk("B", "KSEA", "TWY B LIGHTING UNSERVICEABLE"),
		mk("C", "KPDX", "RWY 10R/28L CLOSED"),
	}
}

func TestIndex_SearchWithLocationFilter(t *testing.T) {
	idx, err := NewMemOnly()
	if err != nil {
		t.Fatalf("NewMemOnly() error = %v", err)
	}
	defer idx.Close()

	if err := idx.IndexNotices(sample()); err != nil {
		t.Fatalf("IndexNotices() error = %v", err)
	}

	hits, err := idx.Search("closed", nil, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search(closed) = %d hits, want 2", len(hits))
	}

	hits, err = idx.Search("closed", []string{"kpdx"}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != notice.HashKey("C") || hits[0].Location != "KPDX" {
		t.Errorf("Search(closed, KPDX) = %+v, want only C", hits)
	}
}

func TestIndex_ReindexIsIdempotent(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "notices.bleve"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer idx.Close()

	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.UpsertRecords(ctx, sample()); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}

	for range 2 {
		n, err := idx.IndexFromStore(ctx, store)
		if err != nil {
			t.Fatalf("IndexFromStore() error = %v", err)
		}
		if n != 3 {
			t.Errorf("IndexFromStore() = %d, want 3", n)
		}
	}

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	if err := idx.Delete(notice.HashKey("A")); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if count, _ := idx.Count(); count != 2 {
		t.Errorf("Count() after delete = %d, want 2", count)
	}
}

func TestIndex_PruneDropsNoticesMissingFromStore(t *testing.T) {
	idx, err := NewMemOnly()
	if err != nil {
		t.Fatalf("NewMemOnly() error = %v", err)
	}
	defer idx.Close()

	if err := idx.IndexNotices(sample()); err != nil {
		t.Fatalf("IndexNotices() error = %v", err)
	}

	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.UpsertRecords(ctx, sample()[:2]); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}

	pruned, err := idx.Prune(ctx, store)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("Prune() = %d, want 1", pruned)
	}

	hits, err := idx.Search("closed", nil, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != notice.HashKey("A") {
		t.Errorf("Search(closed) after prune = %+v, want only A", hits)
	}

	if pruned, err := idx.Prune(ctx, store); err != nil || pruned != 0 {
		t.Errorf("second Prune() = %d, %v; want 0, nil", pruned, err)
	}
}
