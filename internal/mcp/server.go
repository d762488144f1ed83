// Package mcp exposes the notice cache as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/renderinc/notice-cache/internal/annotate"
	"github.com/renderinc/notice-cache/internal/notice"
	"github.com/renderinc/notice-cache/internal/search"
	"github.com/renderinc/notice-cache/internal/web"
)

// Server is the MCP server for the notice cache.
type Server struct {
	mcpServer *server.MCPServer
	fetcher   web.Fetcher
	store     web.Store
	annotator *annotate.Worker
	idx       *search.Index
	now       func() time.Time
}

// NewServer creates a new MCP server. annotator and idx may be nil; the
// tools that need them are then not registered.
func NewServer(version string, fetcher web.Fetcher, store web.Store, annotator *annotate.Worker, idx *search.Index) *Server {
	s := server.NewMCPServer(
		"notice-cache",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		fetcher:   fetcher,
		store:     store,
		annotator: annotator,
		idx:       idx,
		now:       func() time.Time { return time.Now().UTC() },
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	fetchTool := mcp.NewTool("fetch_notices",
		mcp.WithDescription("Get the notices active at one or more locations for a date range. Uses the local cache and only calls the upstream API for locations not fetched in the last few minutes."),
		mcp.WithString("locations",
			mcp.Required(),
			mcp.Description("Comma-separated location codes (e.g. 'KSEA,KPDX')"),
		),
		mcp.WithString("start_date",
			mcp.Description("Start of the window, YYYY-MM-DD or RFC 3339 (default: today)"),
		),
		mcp.WithString("end_date",
			mcp.Description("End of the window, YYYY-MM-DD or RFC 3339 (default: today)"),
		),
	)

	getTool := mcp.NewTool("get_notices",
		mcp.WithDescription("Get stored notices by id with their interpretation, if any."),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Comma-separated notice ids from fetch_notices"),
		),
	)

	s.mcpServer.AddTool(fetchTool, s.handleFetchNotices)
	s.mcpServer.AddTool(getTool, s.handleGetNotices)

	if s.annotator != nil {
		briefTool := mcp.NewTool("brief",
			mcp.WithDescription("Write a markdown briefing for a role from the interpreted notices. Notices are interpreted first if needed."),
			mcp.WithString("ids",
				mcp.Required(),
				mcp.Description("Comma-separated notice ids"),
			),
			mcp.WithString("role",
				mcp.Description("Role to brief (default: flight dispatcher)"),
			),
		)
		s.mcpServer.AddTool(briefTool, s.handleBrief)
	}

	if s.idx != nil {
		searchTool := mcp.NewTool("search_notices",
			mcp.WithDescription("Keyword search over stored notice text. Supports quotes, +/- operators and fuzzy~ terms."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query"),
			),
			mcp.WithString("locations",
				mcp.Description("Comma-separated location codes to restrict hits to"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Max results (default: 10)"),
			),
		)
		s.mcpServer.AddTool(searchTool, s.handleSearch)
	}
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleFetchNotices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	window, err := notice.ParseWindow(request.GetString("start_date", ""), request.GetString("end_date", ""), s.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	locations := notice.SplitLocations(request.GetString("locations", ""))
	result, err := s.fetcher.FetchOrFromCache(ctx, locations, window)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}

	return jsonResult(result)
}

func (s *Server) handleGetNotices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := notice.ParseIDs(request.GetString("ids", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	items, err := s.store.Interpretations(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load notices: %v", err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultError("notices not found: " + notice.FormatIDs(ids)), nil
	}

	return jsonResult(items)
}

func (s *Server) handleBrief(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := notice.ParseIDs(request.GetString("ids", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.annotator.Annotate(ctx, ids); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("interpret notices: %v", err)), nil
	}

	briefing, err := s.annotator.Briefing(ctx, ids, request.GetString("role", ""))
	if errors.Is(err, annotate.ErrNothingToBrief) {
		return mcp.NewToolResultError("none of the notices could be interpreted"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("briefing failed: %v", err)), nil
	}

	return mcp.NewToolResultText(briefing), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := request.GetInt("limit", 10)
	results, err := s.idx.Search(query, notice.SplitLocations(request.GetString("locations", "")), limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return jsonResult(web.SearchResponse{Results: results, Query: query, Count: len(results)})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
