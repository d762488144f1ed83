// Package fetch answers "which notices are active for these locations and
// this window", calling upstream only when a location's cache is stale.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/renderinc/notice-cache/internal/broker"
	"github.com/renderinc/notice-cache/internal/freshness"
	"github.com/renderinc/notice-cache/internal/metrics"
	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
)

// Source is the upstream notice API
type Source interface {
	FetchNotices(ctx context.Context, locations []string) ([]notice.Raw, error)
}

// Indexer receives newly stored notices for keyword search
type Indexer interface {
	IndexNotices(records []notice.Record) error
}

// StampPolicy controls when due locations get their fetch cursor stamped.
type StampPolicy int

const (
	// StampBeforeFetch stamps as soon as a location is judged due. A failed
	// upstream call then suppresses retries for the whole freshness window.
	StampBeforeFetch StampPolicy = iota
	// StampAfterSuccess stamps only once the upstream call and the upsert
	// have both succeeded.
	StampAfterSuccess
)

func (p StampPolicy) String() string {
	if p == StampAfterSuccess {
		return "after"
	}
	return "before"
}

// ParseStampPolicy accepts "before" or "after"; blank means before
func ParseStampPolicy(s string) (StampPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "before":
		return StampBeforeFetch, nil
	case "after":
		return StampAfterSuccess, nil
	}
	return 0, fmt.Errorf("unknown stamp policy %q (want before or after)", s)
}

// Result is the outcome of one FetchOrFromCache call
type Result struct {
	Records []notice.Record `json:"notices"`
	// Refetched is the number of locations judged due. Callers bill on it.
	Refetched int    `json:"refetched"`
	// Inserted counts notices the store had never seen before this call.
	Inserted  int    `json:"inserted"`
	RequestID string `json:"request_id"`
}

// IDs returns the record ids in result order
func (r *Result) IDs() []uint32 {
	return ids(r.Records)
}

// Options are the optional collaborators of an Orchestrator
type Options struct {
	Policy  StampPolicy
	Broker  broker.Broker // receives notice.stored events
	Index   Indexer
	Metrics *metrics.Metrics
	Logger  *log.Logger
	Now     func() time.Time
}

// Orchestrator holds no mutable state; concurrent calls are safe
type Orchestrator struct {
	store   storage.NoticeStore
	tracker *freshness.Tracker
	source  Source
	policy  StampPolicy
	broker  broker.Broker
	index   Indexer
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(store storage.NoticeStore, tracker *freshness.Tracker, source Source, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		tracker: tracker,
		source:  source,
		policy:  opts.Policy,
		broker:  opts.Broker,
		index:   opts.Index,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if o.logger == nil {
		o.logger = &log.DefaultLogger
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// FetchOrFromCache returns the notices active in w for locations. Due
// locations trigger one upstream call covering the whole location set;
// otherwise the cached view is returned as is.
func (o *Orchestrator) FetchOrFromCache(ctx context.Context, locations []string, w notice.Window) (*Result, error) {
	locs, err := notice.NormalizeLocations(locations)
	if err != nil {
		return nil, err
	}
	w = notice.NewWindow(w.From, w.To)
	if err := w.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	now := o.now()
	result := &Result{RequestID: uuid.NewString()}
	defer func() {
		if o.metrics != nil {
			o.metrics.FetchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	// 1. Freshness check, stamping due locations under the before policy
	var due []string
	for _, loc := range locs {
		isDue, err := o.tracker.IsDue(ctx, loc, now)
		if err != nil {
			return nil, err
		}
		if !isDue {
			continue
		}
		due = append(due, loc)
		if o.policy == StampBeforeFetch {
			if err := o.tracker.MarkAttempted(ctx, loc, now); err != nil {
				return nil, err
			}
		}
	}
	result.Refetched = len(due)

	// 2. Cached view, pre-filtered by recency in the store
	cached, err := o.store.QueryActive(ctx, locs, w, now.Add(-o.tracker.Window()))
	if err != nil {
		return nil, err
	}

	// 3. Nothing due: answer from cache
	if len(due) == 0 {
		result.Records = notice.FilterActive(w, cached)
		if o.metrics != nil {
			o.metrics.CacheOnly.Inc()
		}
		o.logger.Debug().Str("request_id", result.RequestID).Strs("locations", locs).
			Int("notices", len(result.Records)).Msg("served from cache")
		return result, nil
	}

	// 4. One upstream call for the full set
	raws, err := o.source.FetchNotices(ctx, locs)
	if err != nil {
		if o.metrics != nil {
			o.metrics.UpstreamCalls.WithLabelValues(metrics.OutcomeError).Inc()
		}
		entry := o.logger.Warn().Str("request_id", result.RequestID).Strs("due", due).Err(err)
		if o.policy == StampBeforeFetch {
			entry.Dur("retry_suppressed_for", o.tracker.Window()).Msg("upstream fetch failed after stamping due locations")
		} else {
			entry.Msg("upstream fetch failed")
		}
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.UpstreamCalls.WithLabelValues(metrics.OutcomeOK).Inc()
		o.metrics.RefetchedLocations.Add(float64(len(due)))
	}

	// 5. Normalize, collapsing duplicates within the batch
	batch := make(map[uint32]struct{}, len(raws))
	var upstream []notice.Record
	for _, raw := range raws {
		if strings.TrimSpace(raw.Key) == "" {
			o.logger.Warn().Str("request_id", result.RequestID).Str("location", raw.Location).
				Msg("skipping upstream notice without key")
			continue
		}

		rec, warnings := notice.Normalize(raw, now)
		for _, warn := range warnings {
			o.logger.Warn().Str("request_id", result.RequestID).Str("key", warn.Key).
				Str("field", warn.Field).Str("value", warn.Value).Msg("unparseable notice date")
		}

		if _, dup := batch[rec.ID]; dup {
			continue
		}
		batch[rec.ID] = struct{}{}
		upstream = append(upstream, rec)
	}

	// 6. Persist every upstream record so its ProcessedAt keeps pace with
	// the cursor, then merge what the cached view lacks
	var fresh map[uint32]struct{}
	if len(upstream) > 0 {
		existing, err := o.store.ExistingIDs(ctx, ids(upstream))
		if err != nil {
			return nil, err
		}
		if err := o.store.UpsertRecords(ctx, upstream); err != nil {
			return nil, err
		}
		fresh = make(map[uint32]struct{}, len(upstream))
		for _, r := range upstream {
			if _, ok := existing[r.ID]; !ok {
				fresh[r.ID] = struct{}{}
			}
		}
	}
	result.Inserted = len(fresh)

	if o.policy == StampAfterSuccess {
		for _, loc := range due {
			if err := o.tracker.MarkAttempted(ctx, loc, now); err != nil {
				return nil, err
			}
		}
	}

	inCache := make(map[uint32]struct{}, len(cached))
	for _, r := range cached {
		inCache[r.ID] = struct{}{}
	}
	merged := make([]notice.Record, 0, len(cached)+len(upstream))
	merged = append(merged, cached...)
	for _, r := range upstream {
		if _, ok := inCache[r.ID]; !ok {
			merged = append(merged, r)
		}
	}

	// 7. Overlap filter over the merged set
	result.Records = notice.FilterActive(w, merged)

	o.afterInsert(ctx, result.RequestID, upstream, fresh)

	if o.metrics != nil {
		o.metrics.InsertedNotices.Add(float64(len(fresh)))
	}
	o.logger.Info().Str("request_id", result.RequestID).Strs("locations", locs).Strs("due", due).
		Int("upstream", len(raws)).Int("inserted", len(fresh)).Int("notices", len(result.Records)).
		Str("stamp_policy", o.policy.String()).Msg("refetched notices")

	return result, nil
}

// afterInsert indexes stored records and announces the ones never seen
// before. Failures are logged and do not fail the fetch.
func (o *Orchestrator) afterInsert(ctx context.Context, requestID string, stored []notice.Record, fresh map[uint32]struct{}) {
	if len(stored) == 0 {
		return
	}

	if o.index != nil {
		if err := o.index.IndexNotices(stored); err != nil {
			o.logger.Warn().Str("request_id", requestID).Err(err).Msg("index notices")
		}
	}

	if o.broker == nil {
		return
	}
	for _, r := range stored {
		if _, ok := fresh[r.ID]; !ok {
			continue
		}
		if err := broker.PublishStored(ctx, o.broker, broker.NewStoredEvent(r, requestID)); err != nil {
			o.logger.Warn().Str("request_id", requestID).Uint64("notice_id", uint64(r.ID)).Err(err).Msg("publish notice.stored")
		}
	}
}

func ids(records []notice.Record) []uint32 {
	out := make([]uint32, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
