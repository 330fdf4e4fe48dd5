// Package mcp exposes cached paper search and stored rankings as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/coordinator"
	"github.com/hyperjump/proozl/internal/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP server around a coordinator.
type Server struct {
	mcpServer *server.MCPServer
	coord     *coordinator.Coordinator
	logger    *zap.Logger
}

// NewServer creates an MCP server with the search_papers and get_analysis tools.
func NewServer(config Config, coord *coordinator.Coordinator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		coord:     coord,
		logger:    logger,
	}

	searchTool := mcp.NewTool("search_papers",
		mcp.WithDescription("Search arXiv papers. Results are cached per query and page start, so repeated searches are served locally."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("start",
			mcp.Description("Offset of the first result (default: 0)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Number of papers to fetch on a cache miss (default: configured page size)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	analysisTool := mcp.NewTool("get_analysis",
		mcp.WithDescription("Get the most frequent proper nouns and word roots across the abstracts of a cached search. Analyses are computed in the background after a search is cached."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("start",
			mcp.Description("Offset of the first result (default: 0)"),
		),
	)
	mcpServer.AddTool(analysisTool, s.analysisHandler)

	return s
}

func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errResult := keyFromRequest(req)
	if errResult != nil {
		return errResult, nil
	}
	maxResults := req.GetInt("max_results", 0)
	if maxResults < 0 {
		return mcp.NewToolResultError("max_results cannot be negative"), nil
	}
	resp := s.coord.Handle(ctx, coordinator.ResultQuery{Key: key, MaxResults: maxResults})
	return s.toolResult(resp)
}

func (s *Server) analysisHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errResult := keyFromRequest(req)
	if errResult != nil {
		return errResult, nil
	}
	resp := s.coord.Handle(ctx, coordinator.AnalysisQuery{Key: key})
	return s.toolResult(resp)
}

func keyFromRequest(req mcp.CallToolRequest) (models.CacheKey, *mcp.CallToolResult) {
	query, err := req.RequireString("query")
	if err != nil {
		return models.CacheKey{}, mcp.NewToolResultError("query parameter is required")
	}
	key, err := models.NewCacheKey(query, req.GetInt("start", 0))
	if err != nil {
		return models.CacheKey{}, mcp.NewToolResultError(err.Error())
	}
	return key, nil
}

// toolResult renders a coordinator response. Plain string bodies are passed through.
func (s *Server) toolResult(resp coordinator.Response) (*mcp.CallToolResult, error) {
	if resp.Status != http.StatusOK {
		s.logger.Warn("tool call failed", zap.Int("status", resp.Status), zap.Any("body", resp.Body))
		return mcp.NewToolResultError(fmt.Sprintf("request failed: %v", resp.Body)), nil
	}
	if text, ok := resp.Body.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	result, err := json.Marshal(resp.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
