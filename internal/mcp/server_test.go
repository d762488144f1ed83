package mcp

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/renderinc/notice-cache/internal/annotate"
	"github.com/renderinc/notice-cache/internal/fetch"
	"github.com/renderinc/notice-cache/internal/freshness"
	"github.com/renderinc/notice-cache/internal/logging"
	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/search"
	"github.com/renderinc/notice-cache/internal/storage"
	"github.com/renderinc/notice-cache/internal/summarize"
)

type fakeSource struct{}

func (fakeSource) FetchNotices(context.Context, []string) ([]notice.Raw, error) {
	return []notice.Raw{
		{Key: "A", Location: "KSEA", All: "RWY 16L CLSD", StartDate: "2024-01-01T06:00:00Z", EndDate: "2024-01-01T18:00:00Z"},
		{Key: "P", Location: "KPDX", All: "A) KPDX B) 2001010000 C) PERM E) OBST CRANE", StartDate: "2020-01-01T00:00:00Z", EndDate: "PERM"},
	}, nil
}

type fixedCompleter struct{}

func (fixedCompleter) Complete(_ context.Context, _ string, _ string, asJSON bool) (string, error) {
	if asJSON {
		return `{"notamShortDescription":"Runway closed","impactedRole":"Pilot"}`, nil
	}
	return "Here is your briefing\n- Runway closed", nil
}

func (fixedCompleter) Health(context.Context, string) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logging.NewSilent()
	store := storage.NewMemoryStore()

	idx, err := search.NewMemOnly()
	if err != nil {
		t.Fatalf("NewMemOnly() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	now := func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	orch := fetch.NewOrchestrator(store, freshness.NewTracker(store, 0), fakeSource{}, fetch.Options{
		Index:  idx,
		Logger: logger,
		Now:    now,
	})
	worker := annotate.NewWorker(store, summarize.New(fixedCompleter{}, "m", ""), annotate.WithLogger(logger))

	s := NewServer("test", orch, store, worker, idx)
	s.now = now
	return s
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result.Content[0].(mcp.TextContent).Text, result.IsError
}

func TestFetchNotices(t *testing.T) {
	s := newTestServer(t)

	text, isErr := call(t, s.handleFetchNotices, map[string]any{
		"locations":  "ksea, kpdx",
		"start_date": "2024-01-01",
		"end_date":   "2024-01-02",
	})
	if isErr {
		t.Fatalf("fetch_notices failed: %s", text)
	}

	var result fetch.Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Refetched != 2 || len(result.Records) != 2 {
		t.Errorf("result = %+v, want 2 refetched locations and 2 notices", result)
	}

	if text, isErr := call(t, s.handleFetchNotices, map[string]any{"locations": " "}); !isErr {
		t.Errorf("blank locations should fail, got %s", text)
	}
}

func TestGetNoticesAndBrief(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleFetchNotices, map[string]any{"locations": "KSEA", "start_date": "2024-01-01", "end_date": "2024-01-02"})
	id := strconv.FormatUint(uint64(notice.HashKey("A")), 10)

	text, isErr := call(t, s.handleGetNotices, map[string]any{"ids": id})
	if isErr || !strings.Contains(text, `"key":"A"`) {
		t.Errorf("get_notices = %s (error %v)", text, isErr)
	}

	text, isErr = call(t, s.handleBrief, map[string]any{"ids": id, "role": "pilot"})
	if isErr || !strings.HasPrefix(text, "Here is your briefing") {
		t.Errorf("brief = %s (error %v)", text, isErr)
	}

	if _, isErr := call(t, s.handleGetNotices, map[string]any{"ids": "nope"}); !isErr {
		t.Error("get_notices with a bad id should fail")
	}
	if _, isErr := call(t, s.handleBrief, map[string]any{"ids": "42"}); !isErr {
		t.Error("brief for unknown notices should fail")
	}
}

func TestSearchNotices(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleFetchNotices, map[string]any{"locations": "KSEA,KPDX", "start_date": "2024-01-01", "end_date": "2024-01-02"})

	text, isErr := call(t, s.handleSearch, map[string]any{"query": "crane", "limit": float64(5)})
	if isErr {
		t.Fatalf("search_notices failed: %s", text)
	}
	if !strings.Contains(text, `"Location":"KPDX"`) || !strings.Contains(text, `"count":1`) {
		t.Errorf("search_notices = %s", text)
	}

	if _, isErr := call(t, s.handleSearch, map[string]any{}); !isErr {
		t.Error("search_notices without a query should fail")
	}
}
