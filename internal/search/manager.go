package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/pkg/logger"
)

var (
	// ErrDisabled is returned when web search is turned off.
	ErrDisabled = errors.New("web search is disabled")
	// ErrNoProvider is returned when no configured provider is available.
	ErrNoProvider = errors.New("no available search provider")
)

// factory builds a provider from its configuration. A false result skips
// the provider.
type factory func(name string, cfg *config.ProviderConfig, caller ToolCaller) (Provider, bool)

var factories = map[string]factory{
	"mcp": func(name string, cfg *config.ProviderConfig, caller ToolCaller) (Provider, bool) {
		return NewMCPProvider(name, cfg, caller), true
	},
	"firecrawl": func(name string, cfg *config.ProviderConfig, _ ToolCaller) (Provider, bool) {
		if cfg.APIKey == "" {
			return nil, false
		}
		return NewFirecrawlProvider(name, cfg), true
	},
}

// Manager owns the configured search providers and picks one per query.
type Manager struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
	enabled         bool
	log             *zap.Logger
}

// NewManager creates a manager for the providers in cfg. caller serves
// "mcp" providers and may be nil when no tool servers are configured.
func NewManager(cfg *config.WebSearchConfig, caller ToolCaller) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.Default,
		enabled:         cfg.Enabled,
		log:             logger.Named("search"),
	}
	if !m.enabled {
		m.log.Info("web search is disabled")
		return m
	}

	for name, providerCfg := range cfg.Providers {
		build, ok := factories[providerCfg.Type]
		if !ok {
			m.log.Warn("unknown provider type, skipping",
				zap.String("provider", name),
				zap.String("type", providerCfg.Type),
			)
			continue
		}
		p, ok := build(name, &providerCfg, caller)
		if !ok {
			m.log.Debug("skipping incomplete provider", zap.String("provider", name))
			continue
		}
		m.Add(p)
	}

	m.log.Info("search manager initialized",
		zap.String("default_provider", m.defaultProvider),
		zap.Int("provider_count", len(m.providers)),
	)
	return m
}

// Add registers p under its name, replacing any provider with that name.
func (m *Manager) Add(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// HasAvailableProvider reports whether any provider can serve a query.
func (m *Manager) HasAvailableProvider() bool {
	return len(m.Available()) > 0
}

// Available lists the available providers, default first and the rest by name.
func (m *Manager) Available() []Provider {
	if !m.enabled {
		return nil
	}
	m.mu.RLock()
	out := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if p.IsAvailable() {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Name(), out[j].Name()
		if a == m.defaultProvider || b == m.defaultProvider {
			return a == m.defaultProvider
		}
		return a < b
	})
	return out
}

// Search tries the available providers in order and returns the first
// answer. When every provider fails their errors are joined.
func (m *Manager) Search(ctx context.Context, query string) (*models.SearchProviderResult, error) {
	if !m.enabled {
		return nil, ErrDisabled
	}
	available := m.Available()
	if len(available) == 0 {
		return nil, ErrNoProvider
	}

	var errs []error
	for _, p := range available {
		result, err := p.Search(ctx, query)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Warn("search provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, errors.Join(errs...)
}

// SearchWithProvider runs query on the named provider only.
func (m *Manager) SearchWithProvider(ctx context.Context, providerName, query string) (*models.SearchProviderResult, error) {
	if !m.enabled {
		return nil, ErrDisabled
	}
	m.mu.RLock()
	p, ok := m.providers[providerName]
	m.mu.RUnlock()
	switch {
	case !ok:
		return nil, fmt.Errorf("provider not found: %s", providerName)
	case !p.IsAvailable():
		return nil, fmt.Errorf("provider not available: %s", providerName)
	}
	return p.Search(ctx, query)
}

// maxContentChars bounds page content quoted to the model.
const maxContentChars = 500

// FormatResults renders results as the text of a tool message.
func FormatResults(result *models.SearchProviderResult) string {
	if result == nil || len(result.Results) == 0 {
		return "No search results found."
	}

	var b strings.Builder
	b.WriteString("Search results for: " + result.Query + "\n\n")
	for i, r := range result.Results {
		writeResult(&b, i+1, r)
	}
	return b.String()
}

func writeResult(b *strings.Builder, n int, r models.SearchResult) {
	fmt.Fprintf(b, "%d. %s\n", n, r.Title)
	field := func(label, v string) {
		if v != "" {
			b.WriteString("   " + label + ": " + v + "\n")
		}
	}
	field("URL", r.URL)
	field("Summary", r.Snippet)
	if r.Content != r.Snippet {
		content := r.Content
		if len(content) > maxContentChars {
			content = content[:maxContentChars] + "..."
		}
		field("Content", content)
	}
	b.WriteString("\n")
}
