package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/tools"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// ToolCaller runs a remote tool and returns its serialized content.
// *tools.Invoker satisfies it.
type ToolCaller interface {
	Invoke(ctx context.Context, tool tools.Descriptor, rawArguments string) (string, error)
}

// MCPProvider searches by calling a search tool on a connected MCP server.
// The tool is expected to answer with a text item holding a JSON array of
// results, optionally encoded a second time as a JSON string.
type MCPProvider struct {
	name       string
	server     string
	toolName   string // e.g. "webSearchPrime", "search"
	queryParam string // e.g. "search_query", "query"
	caller     ToolCaller
	log        *zap.Logger
}

// NewMCPProvider creates a provider for the server and tool named in cfg.
func NewMCPProvider(name string, cfg *config.ProviderConfig, caller ToolCaller) *MCPProvider {
	if cfg.ToolName == "" {
		cfg.ToolName = "webSearchPrime"
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = "search_query"
	}
	return &MCPProvider{
		name:       name,
		server:     cfg.Server,
		toolName:   cfg.ToolName,
		queryParam: cfg.QueryParam,
		caller:     caller,
		log:        logger.Named("search.mcp"),
	}
}

// Name returns the provider name
func (p *MCPProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *MCPProvider) IsAvailable() bool {
	return p.server != "" && p.caller != nil
}

// Search performs a search query using MCP
func (p *MCPProvider) Search(ctx context.Context, query string) (*models.SearchProviderResult, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing server", p.name)
	}

	args, err := json.Marshal(map[string]string{p.queryParam: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	output, err := p.caller.Invoke(ctx, tools.Descriptor{
		Name:       p.toolName,
		ServerID:   p.server,
		ServerName: p.server,
	}, string(args))
	if err != nil {
		var execErr *tools.ExecutionError
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("MCP error: %w", err)
		}
		return nil, fmt.Errorf("failed to call search tool: %w", err)
	}

	text := gjson.Get(output, `#(type=="text").text`)
	if !text.Exists() {
		return nil, fmt.Errorf("no content in response")
	}
	p.log.Debug("MCP content text",
		zap.String("provider", p.name),
		zap.Int("bytes", len(text.Str)),
	)
	return p.parseResults(query, text.Str)
}

// parseResults reads the result array, unwrapping one level of string
// encoding when present.
func (p *MCPProvider) parseResults(query, text string) (*models.SearchProviderResult, error) {
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("failed to parse results: invalid JSON")
	}
	parsed := gjson.Parse(text)
	if parsed.Type == gjson.String {
		if !gjson.Valid(parsed.Str) {
			return nil, fmt.Errorf("failed to parse nested results: invalid JSON")
		}
		parsed = gjson.Parse(parsed.Str)
	}
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unexpected result type: %s", parsed.Type)
	}

	items := parsed.Array()
	result := &models.SearchProviderResult{
		Query:   query,
		Results: make([]models.SearchResult, 0, len(items)),
	}
	for _, item := range items {
		// Handle both Link and URL fields
		url := item.Get("link").String()
		if url == "" {
			url = item.Get("url").String()
		}
		result.Results = append(result.Results, models.SearchResult{
			Title:   item.Get("title").String(),
			URL:     url,
			Content: item.Get("content").String(),
			Snippet: item.Get("snippet").String(),
		})
	}

	p.log.Info("MCP search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(result.Results)),
	)
	return result, nil
}
