// Package annotate interprets stored notices with the summarizer and builds
// role briefings from the stored interpretations.
package annotate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/renderinc/notice-cache/internal/broker"
	"github.com/renderinc/notice-cache/internal/metrics"
	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
	"github.com/renderinc/notice-cache/internal/summarize"
)

// DefaultConcurrency is the number of notices interpreted in parallel
const DefaultConcurrency = 5

// Store is what the worker reads and writes
type Store interface {
	GetByIDs(ctx context.Context, ids []uint32) ([]notice.Record, error)
	storage.InterpretationStore
}

// Worker interprets notices that have no interpretation for the
// summarizer's model yet
type Worker struct {
	store       Store
	summarizer  *summarize.Summarizer
	metrics     *metrics.Metrics
	logger      *log.Logger
	concurrency int
	now         func() time.Time
}

// Option configures a Worker
type Option func(*Worker)

// WithMetrics counts interpretations by outcome
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithConcurrency sets the pool size; values below 1 are ignored
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithClock overrides the time source used for ProcessedAt
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// NewWorker creates a new annotation worker
func NewWorker(store Store, s *summarize.Summarizer, opts ...Option) *Worker {
	w := &Worker{
		store:       store,
		summarizer:  s,
		logger:      &log.DefaultLogger,
		concurrency: DefaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Stats holds annotation statistics
type Stats struct {
	Requested   int
	Interpreted int
	Skipped     int
	Errors      int
	Duration    time.Duration
}

// Annotate interprets every notice among ids that has no interpretation
// for the current model. A failing notice is logged and counted; only store
// reads fail the call.
func (w *Worker) Annotate(ctx context.Context, ids []uint32) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{Requested: len(ids)}
	if len(ids) == 0 {
		return stats, nil
	}

	pending, err := w.store.PendingInterpretation(ctx, ids, w.summarizer.Model())
	if err != nil {
		return nil, fmt.Errorf("pending interpretations: %w", err)
	}
	stats.Skipped = len(ids) - len(pending)
	if len(pending) == 0 {
		stats.Duration = time.Since(startTime)
		return stats, nil
	}

	records, err := w.store.GetByIDs(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("load notices: %w", err)
	}
	// ids that are not stored at all are skipped
	stats.Skipped += len(pending) - len(records)

	recordChan := make(chan notice.Record, len(records))
	for _, r := range records {
		recordChan <- r
	}
	close(recordChan)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for range min(w.concurrency, len(records)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range recordChan {
				err := w.interpret(ctx, r)
				mu.Lock()
				if err != nil {
					stats.Errors++
				} else {
					stats.Interpreted++
				}
				mu.Unlock()
				if err != nil {
					w.logger.Warn().Uint64("notice_id", uint64(r.ID)).Str("location", r.Location).Err(err).Msg("interpret notice")
				}
			}
		}()
	}

	wg.Wait()

	stats.Duration = time.Since(startTime)
	w.logger.Info().Int("requested", stats.Requested).Int("interpreted", stats.Interpreted).
		Int("skipped", stats.Skipped).Int("errors", stats.Errors).Dur("duration", stats.Duration).
		Str("model", w.summarizer.Model()).Msg("annotation complete")

	return stats, nil
}

func (w *Worker) interpret(ctx context.Context, r notice.Record) error {
	text := r.Body
	if text == "" {
		text = r.All
	}

	in, err := w.summarizer.Interpret(ctx, text)
	if err != nil {
		w.count(metrics.OutcomeError)
		return err
	}

	err = w.store.SaveInterpretation(ctx, notice.Interpretation{
		NoticeID:         r.ID,
		Model:            w.summarizer.Model(),
		Content:          text,
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
		Category:         in.Category,
		ImpactedRoles:    in.ImpactedRoles,
		ProcessedAt:      w.now(),
	})
	if err != nil {
		w.count(metrics.OutcomeError)
		return fmt.Errorf("save interpretation: %w", err)
	}

	w.count(metrics.OutcomeOK)
	return nil
}

func (w *Worker) count(outcome string) {
	if w.metrics != nil {
		w.metrics.Interpretations.WithLabelValues(outcome).Inc()
	}
}

// Run consumes notice.stored events until ctx is done or the subscription
// closes, interpreting each announced notice.
func (w *Worker) Run(ctx context.Context, b broker.Broker, groupID string) error {
	msgs, err := b.Subscribe(ctx, broker.TopicNoticeStored, groupID)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", broker.TopicNoticeStored, err)
	}

	w.logger.Info().Str("topic", broker.TopicNoticeStored).Str("group", groupID).Msg("annotation worker started")

	for msg := range msgs {
		ev, err := broker.DecodeStored(msg)
		if err != nil {
			w.logger.Warn().Err(err).Msg("skip malformed event")
			continue
		}
		if _, err := w.Annotate(ctx, []uint32{ev.NoticeID}); err != nil {
			w.logger.Error().Str("request_id", ev.RequestID).Uint64("notice_id", uint64(ev.NoticeID)).Err(err).Msg("annotate stored notice")
		}
	}

	return ctx.Err()
}
