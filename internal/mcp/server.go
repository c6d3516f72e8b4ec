// Package mcp exposes chartline over the Model Context Protocol.
//
// Tools: chartline_analyze runs the full extraction pipeline over a text,
// chartline_history queries stored runs. Recent runs are also published as
// a resource. Stdio transport only.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jinhwalab/chartline/internal/pipeline"
	"github.com/jinhwalab/chartline/internal/store"
)

// ServerConfig holds the dependencies of the MCP server.
type ServerConfig struct {
	Engine  *pipeline.Engine
	Store   *store.Store // optional; nil disables history
	Version string
}

// dbMu serializes tool calls that touch the database. mcp-go dispatches
// handlers concurrently, and SQLite supports one writer at a time; the mutex
// ensures an analyze run is fully persisted before history reads see it.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all chartline tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Chartline",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerAnalyzeTool(s, cfg.Engine, cfg.Store)
	if cfg.Store != nil {
		registerHistoryTool(s, cfg.Store)
		registerRecentRunsResource(s, cfg.Store)
	}

	return s
}

func registerAnalyzeTool(s *server.MCPServer, engine *pipeline.Engine, st *store.Store) {
	tool := mcp.NewTool("chartline_analyze",
		mcp.WithDescription("Extract date anchors from Korean or English medical/insurance narrative text, resolve conflicting readings, and return a ranked timeline."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The narrative text to analyze"),
		),
		mcp.WithString("reference_date",
			mcp.Description("Reference date (YYYY-MM-DD) for resolving relative expressions. Defaults to today."),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the run to history (default: true when history is enabled)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		ref := time.Now().UTC()
		if refStr, err := req.RequireString("reference_date"); err == nil && refStr != "" {
			ref, err = time.Parse("2006-01-02", refStr)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid reference_date: %v", err)), nil
			}
		}

		save := st != nil
		if v, err := req.RequireBool("save"); err == nil {
			save = save && v
		}

		res, err := engine.Analyze(ctx, text, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis error: %v", err)), nil
		}

		if save {
			dbMu.Lock()
			saveErr := st.SaveResult(ctx, text, res)
			dbMu.Unlock()
			if saveErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving run: %v", saveErr)), nil
			}
		}

		data, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerHistoryTool(s *server.MCPServer, st *store.Store) {
	tool := mcp.NewTool("chartline_history",
		mcp.WithDescription("List recent analysis runs, or fetch one run's full result by id."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("run_id",
			mcp.Description("Fetch this run's full result instead of listing"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum runs to list (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if runID, err := req.RequireString("run_id"); err == nil && runID != "" {
			run, err := st.GetRun(ctx, runID)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("history error: %v", err)), nil
			}
			data, _ := json.MarshalIndent(run, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}

		limit := 20
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit = int(limitVal)
			if limit > 100 {
				limit = 100
			}
		}

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(runs, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRecentRunsResource(s *server.MCPServer, st *store.Store) {
	resource := mcp.NewResource(
		"chartline://runs/recent",
		"Recent Runs",
		mcp.WithResourceDescription("The most recent analysis runs with anchor and conflict counts."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		runs, err := st.ListRuns(ctx, 20)
		if err != nil {
			return nil, fmt.Errorf("querying recent runs: %w", err)
		}

		payload := map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
