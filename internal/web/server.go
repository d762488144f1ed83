// Package web serves the JSON read API over the fetch orchestrator.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/phuslu/log"

	"github.com/renderinc/notice-cache/internal/annotate"
	"github.com/renderinc/notice-cache/internal/cache"
	"github.com/renderinc/notice-cache/internal/fetch"
	"github.com/renderinc/notice-cache/internal/metrics"
	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/search"
)

// RefetchedHeader carries the number of locations refetched upstream. The
// billing collaborator reads it.
const RefetchedHeader = "X-Refetched-Locations"

// Fetcher answers notice queries
type Fetcher interface {
	FetchOrFromCache(ctx context.Context, locations []string, w notice.Window) (*fetch.Result, error)
}

// Store is the read side the server needs
type Store interface {
	GetByIDs(ctx context.Context, ids []uint32) ([]notice.Record, error)
	Interpretations(ctx context.Context, ids []uint32) ([]notice.InterpretedNotice, error)
	Count(ctx context.Context) (int, error)
}

// Options are the optional collaborators of a Server
type Options struct {
	Annotator *annotate.Worker
	Index     *search.Index
	// Briefings caches briefing text by ids and role; nil disables caching
	Briefings *cache.Cache[string]
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	Now       func() time.Time
}

type Server struct {
	fetcher   Fetcher
	store     Store
	annotator *annotate.Worker
	idx       *search.Index
	briefings *cache.Cache[string]
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time
}

type SearchResponse struct {
	Results []*search.SearchResult `json:"results"`
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
}

type BriefingResponse struct {
	Role     string `json:"role"`
	Briefing string `json:"briefing"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(fetcher Fetcher, store Store, opts Options) *Server {
	s := &Server{
		fetcher:   fetcher,
		store:     store,
		annotator: opts.Annotator,
		idx:       opts.Index,
		briefings: opts.Briefings,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = &log.DefaultLogger
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/notices", s.handleNotices)
	mux.HandleFunc("GET /api/notices/{ids}", s.handleGetNotices)
	mux.HandleFunc("GET /api/briefing/{ids}", s.handleBriefing)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

// handleNotices returns the ids of the notices active for the requested
// locations and dates. With batch_load=true the notices are interpreted
// and nothing is returned.
func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	window, err := notice.ParseWindow(q.Get("start_date"), q.Get("end_date"), s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.fetcher.FetchOrFromCache(r.Context(), notice.SplitLocations(q["locations"]...), window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(RefetchedHeader, strconv.Itoa(result.Refetched))

	if batch, _ := strconv.ParseBool(q.Get("batch_load")); batch {
		if s.annotator != nil {
			if _, err := s.annotator.Annotate(r.Context(), result.IDs()); err != nil {
				s.writeError(w, err)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, result.IDs())
}

// handleGetNotices returns stored notices with their interpretation,
// interpreting the ones that have none yet.
func (s *Server) handleGetNotices(w http.ResponseWriter, r *http.Request) {
	ids, err := notice.ParseIDs(r.PathValue("ids"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	records, err := s.store.GetByIDs(r.Context(), ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "notices not found"})
		return
	}

	if s.annotator != nil {
		if _, err := s.annotator.Annotate(r.Context(), ids); err != nil {
			s.logger.Warn().Str("ids", notice.FormatIDs(ids)).Err(err).Msg("annotate on read")
		}
	}

	items, err := s.store.Interpretations(r.Context(), ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if s.annotator == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "summarizer not configured"})
		return
	}

	ids, err := notice.ParseIDs(r.PathValue("ids"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	role := r.URL.Query().Get("role")
	key := briefingKey(ids, role)
	if s.briefings != nil {
		if briefing, ok := s.briefings.Get(key); ok {
			writeJSON(w, http.StatusOK, BriefingResponse{Role: role, Briefing: briefing})
			return
		}
	}

	briefing, err := s.annotator.Briefing(r.Context(), ids, role)
	if errors.Is(err, annotate.ErrNothingToBrief) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.briefings != nil {
		s.briefings.Set(key, briefing)
	}
	writeJSON(w, http.StatusOK, BriefingResponse{Role: role, Briefing: briefing})
}

// briefingKey is independent of id order
func briefingKey(ids []uint32, role string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return role + "|" + notice.FormatIDs(sorted)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "search index not available"})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, &notice.ValidationError{Field: "q", Reason: "search query required"})
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	results, err := s.idx.Search(query, notice.SplitLocations(r.URL.Query()["locations"]...), limit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Query: query, Count: len(results)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbCount, err := s.store.Count(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var indexCount uint64
	if s.idx != nil {
		indexCount, _ = s.idx.Count()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ok",
		"notices_in_db":          dbCount,
		"notices_in_index":       indexCount,
		"interpretation_enabled": s.annotator != nil,
	})
}

// writeError maps domain errors onto status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, notice.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, notice.ErrUpstream):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Int("status", status).Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
