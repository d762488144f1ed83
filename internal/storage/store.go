// Package storage persists normalized notices, fetch cursors and
// interpretations.
package storage

import (
	"context"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
)

// NoticeStore is the durable record store consumed by the fetch core.
type NoticeStore interface {
	// QueryActive returns distinct records for any of locations that are
	// active in w (or permanent/estimated) and were processed at or after
	// processedSince.
	QueryActive(ctx context.Context, locations []string, w notice.Window, processedSince time.Time) ([]notice.Record, error)

	// UpsertRecords stores records idempotently by ID. On conflict the row
	// with the newest ProcessedAt wins.
	UpsertRecords(ctx context.Context, records []notice.Record) error

	// ExistingIDs returns the subset of ids already stored.
	ExistingIDs(ctx context.Context, ids []uint32) (map[uint32]struct{}, error)

	// GetByIDs returns the stored records for ids, in no particular order.
	GetByIDs(ctx context.Context, ids []uint32) ([]notice.Record, error)

	List(ctx context.Context) ([]notice.Record, error)
	Count(ctx context.Context) (int, error)
}

// CursorStore keeps the last upstream fetch attempt per location. It is a
// plain keyed get/set with no protection against concurrent writers.
type CursorStore interface {
	LastFetched(ctx context.Context, location string) (time.Time, bool, error)
	SetLastFetched(ctx context.Context, location string, at time.Time) error
}

// InterpretationStore keeps summarizer annotations per notice and model.
type InterpretationStore interface {
	// PendingInterpretation returns the ids with no interpretation for model.
	PendingInterpretation(ctx context.Context, ids []uint32, model string) ([]uint32, error)
	SaveInterpretation(ctx context.Context, in notice.Interpretation) error
	// Interpretations returns each stored record among ids with its newest
	// interpretation, ordered by location then impacted roles.
	Interpretations(ctx context.Context, ids []uint32) ([]notice.InterpretedNotice, error)
}

// Store is everything a backend provides.
type Store interface {
	NoticeStore
	CursorStore
	InterpretationStore

	// Cursors lists every fetch cursor, most recent first
	Cursors(ctx context.Context) ([]Cursor, error)
	Close() error
}

// Cursor is one location's fetch bookkeeping
type Cursor struct {
	Location      string
	LastFetchedAt time.Time
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &notice.StoreError{Op: op, Err: err}
}
