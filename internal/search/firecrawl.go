package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/pkg/logger"
)

const (
	firecrawlBaseURL    = "https://api.firecrawl.dev/v2"
	firecrawlTimeout    = 30 * time.Second
	firecrawlMaxResults = 5
	maxResponseBytes    = 8 << 20
)

// FirecrawlProvider searches with the Firecrawl REST API.
type FirecrawlProvider struct {
	name       string
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
	log        *zap.Logger
}

// NewFirecrawlProvider creates a provider from cfg, filling in the public
// endpoint, a 30s timeout and five results where cfg leaves them unset.
func NewFirecrawlProvider(name string, cfg *config.ProviderConfig) *FirecrawlProvider {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = firecrawlBaseURL
	}
	timeout := firecrawlTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = firecrawlMaxResults
	}
	return &FirecrawlProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		endpoint:   base + "/search",
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
		log:        logger.Named("firecrawl"),
	}
}

func (p *FirecrawlProvider) Name() string { return p.name }

// IsAvailable reports whether an API key is configured.
func (p *FirecrawlProvider) IsAvailable() bool { return p.apiKey != "" }

// Search runs query and maps the web results. Both the v2 response shape
// (data.web) and the v1 shape (data as a list) are accepted.
func (p *FirecrawlProvider) Search(ctx context.Context, query string) (*models.SearchProviderResult, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing API key", p.name)
	}

	payload, err := json.Marshal(map[string]any{"query": query, "limit": p.maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	p.log.Debug("firecrawl response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse response (status %d)", resp.StatusCode)
	}
	doc := gjson.ParseBytes(body)
	if !doc.Get("success").Bool() || resp.StatusCode >= http.StatusBadRequest {
		msg := doc.Get("error").String()
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("firecrawl search failed: %s", msg)
	}

	items := doc.Get("data.web")
	if data := doc.Get("data"); data.IsArray() {
		items = data
	}
	result := &models.SearchProviderResult{Query: query}
	for _, item := range items.Array() {
		result.Results = append(result.Results, models.SearchResult{
			Title:   item.Get("title").String(),
			URL:     item.Get("url").String(),
			Content: item.Get("markdown").String(),
			Snippet: item.Get("description").String(),
		})
	}

	p.log.Info("firecrawl search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(result.Results)),
	)
	return result, nil
}
