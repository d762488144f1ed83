package annotate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/renderinc/notice-cache/internal/broker"
	"github.com/renderinc/notice-cache/internal/logging"
	"github.com/renderinc/notice-cache/internal/metrics"
	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/storage"
	"github.com/renderinc/notice-cache/internal/summarize"
)

// fakeCompleter answers interpretations from the notice text and fails
// on any prompt containing "BROKEN".
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string, asJSON bool) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if strings.Contains(prompt, "BROKEN") {
		return "", errors.New("model unavailable")
	}
	if !asJSON {
		return "Here is your briefing", nil
	}
	text := prompt[strings.LastIndex(prompt, "NOTAM: ")+len("NOTAM: "):]
	return `{"notamShortDescription":"short ` + text + `","notamDescription":"d","category":"c","impactedRole":"Pilot"}`, nil
}

func (f *fakeCompleter) Health(context.Context, string) error { return nil }

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func seed(t *testing.T, store *storage.MemoryStore, bodies map[string]string) []uint32 {
	t.Helper()
	var records []notice.Record
	var ids []uint32
	for key, body := range bodies {
		r := notice.Record{
			ID:          notice.HashKey(key),
			Key:         key,
			Location:    key[:4],
			Body:        body,
			All:         body,
			ProcessedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		records = append(records, r)
		ids = append(ids, r.ID)
	}
	if err := store.UpsertRecords(context.Background(), records); err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	return ids
}

func newWorker(store Store, c summarize.Completer, opts ...Option) *Worker {
	clock := func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithLogger(logging.NewSilent()), WithClock(clock)}, opts...)
	return NewWorker(store, summarize.New(c, "test-model", ""), opts...)
}

func TestAnnotate_InterpretsOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ids := seed(t, store, map[string]string{
		"KSEA-1": "RWY 16L CLSD",
		"KPDX-1": "TWY B LGT U/S",
	})
	completer := &fakeCompleter{}
	m := metrics.New(nil)
	w := newWorker(store, completer, WithMetrics(m))

	stats, err := w.Annotate(ctx, append(ids, 42))
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if stats.Interpreted != 2 || stats.Skipped != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 2 interpreted, 1 skipped", stats)
	}
	if got := testutil.ToFloat64(m.Interpretations.WithLabelValues(metrics.OutcomeOK)); got != 2 {
		t.Errorf("ok interpretations = %v, want 2", got)
	}

	stats, err = w.Annotate(ctx, ids)
	if err != nil {
		t.Fatalf("second Annotate() error = %v", err)
	}
	if stats.Interpreted != 0 || stats.Skipped != 2 {
		t.Errorf("second stats = %+v, want everything skipped", stats)
	}
	if completer.calls() != 2 {
		t.Errorf("completer called %d times, want 2", completer.calls())
	}

	items, err := store.Interpretations(ctx, ids)
	if err != nil {
		t.Fatalf("Interpretations() error = %v", err)
	}
	for _, it := range items {
		if it.Interpretation == nil || it.Interpretation.Model != "test-model" {
			t.Errorf("notice %d interpretation = %+v", it.ID, it.Interpretation)
			continue
		}
		if it.Interpretation.ShortDescription != "short "+it.Body || it.Interpretation.Content != it.Body {
			t.Errorf("notice %d stored %+v", it.ID, it.Interpretation)
		}
	}
}

func TestAnnotate_FailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ids := seed(t, store, map[string]string{
		"KSEA-1": "RWY 16L CLSD",
		"KSEA-2": "BROKEN",
	})
	m := metrics.New(nil)
	w := newWorker(store, &fakeCompleter{}, WithMetrics(m), WithConcurrency(1))

	stats, err := w.Annotate(ctx, ids)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if stats.Interpreted != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want 1 interpreted and 1 error", stats)
	}
	if got := testutil.ToFloat64(m.Interpretations.WithLabelValues(metrics.OutcomeError)); got != 1 {
		t.Errorf("error interpretations = %v, want 1", got)
	}

	pending, _ := store.PendingInterpretation(ctx, ids, "test-model")
	if len(pending) != 1 || pending[0] != notice.HashKey("KSEA-2") {
		t.Errorf("pending = %v, want only the failed notice", pending)
	}
}

func TestBriefing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ids := seed(t, store, map[string]string{
		"KSEA-1": "RWY 16L CLSD",
		"KPDX-1": "TWY B LGT U/S",
	})
	completer := &fakeCompleter{}
	w := newWorker(store, completer)

	if _, err := w.Briefing(ctx, ids, "pilot"); !errors.Is(err, ErrNothingToBrief) {
		t.Fatalf("Briefing() before annotation error = %v, want ErrNothingToBrief", err)
	}

	if _, err := w.Annotate(ctx, ids[:1]); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	out, err := w.Briefing(ctx, ids, "pilot")
	if err != nil {
		t.Fatalf("Briefing() error = %v", err)
	}
	if out != "Here is your briefing" {
		t.Errorf("Briefing() = %q", out)
	}

	completer.mu.Lock()
	prompt := completer.prompts[len(completer.prompts)-1]
	completer.mu.Unlock()
	if !strings.Contains(prompt, "briefing for a pilot") {
		t.Errorf("prompt does not name the role: %q", prompt)
	}
	if strings.Count(prompt, "Airport: ") != 1 {
		t.Errorf("prompt should only carry interpreted notices: %q", prompt)
	}
}

func TestRun_ConsumesStoredEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()
	ids := seed(t, store, map[string]string{"KSEA-1": "RWY 16L CLSD"})
	records, _ := store.GetByIDs(ctx, ids)

	b := broker.NewInMemoryBroker()
	defer b.Close()

	w := newWorker(store, &fakeCompleter{})
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, b, "annotate") }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		// the subscription may not exist yet; republishing is harmless
		// because interpreted notices are skipped
		if err := broker.PublishStored(ctx, b, broker.NewStoredEvent(records[0], "req-1")); err != nil {
			t.Fatalf("PublishStored() error = %v", err)
		}
		pending, _ := store.PendingInterpretation(ctx, ids, "test-model")
		if len(pending) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("notice was not interpreted from the stored event")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
