package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/tools"
)

type fakeCaller struct {
	output string
	err    error
	tool   tools.Descriptor
	args   string
}

func (f *fakeCaller) Invoke(_ context.Context, tool tools.Descriptor, rawArguments string) (string, error) {
	f.tool = tool
	f.args = rawArguments
	return f.output, f.err
}

func textOutput(t *testing.T, text string) string {
	t.Helper()
	return tools.SerializeContent([]tools.Content{{Type: tools.ContentText, Text: text}})
}

const pagesJSON = `[{"title":"Go","link":"https://go.dev","content":"The Go language","snippet":"Go"},{"title":"Pkg","url":"https://pkg.go.dev"}]`

func TestMCPProviderSearch(t *testing.T) {
	doubled, err := json.Marshal(pagesJSON)
	require.NoError(t, err)

	for name, text := range map[string]string{
		"plain":          pagesJSON,
		"double encoded": string(doubled),
	} {
		t.Run(name, func(t *testing.T) {
			caller := &fakeCaller{output: textOutput(t, text)}
			p := NewMCPProvider("zhipu", &config.ProviderConfig{Type: "mcp", Server: "web"}, caller)

			result, err := p.Search(context.Background(), "golang")
			require.NoError(t, err)
			assert.Equal(t, "golang", result.Query)
			require.Len(t, result.Results, 2)
			assert.Equal(t, models.SearchResult{Title: "Go", URL: "https://go.dev", Content: "The Go language", Snippet: "Go"}, result.Results[0])
			assert.Equal(t, "https://pkg.go.dev", result.Results[1].URL)

			assert.Equal(t, "webSearchPrime", caller.tool.Name)
			assert.Equal(t, "web", caller.tool.ServerID)
			assert.JSONEq(t, `{"search_query":"golang"}`, caller.args)
		})
	}
}

func TestMCPProviderCustomTool(t *testing.T) {
	caller := &fakeCaller{output: textOutput(t, `[]`)}
	p := NewMCPProvider("brave", &config.ProviderConfig{Server: "brave", ToolName: "search", QueryParam: "q"}, caller)

	result, err := p.Search(context.Background(), "bbolt")
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Equal(t, "search", caller.tool.Name)
	assert.JSONEq(t, `{"q":"bbolt"}`, caller.args)
}

func TestMCPProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		caller  *fakeCaller
		wantErr string
	}{
		{"tool error", &fakeCaller{err: &tools.ExecutionError{Tool: "webSearchPrime"}}, "MCP error"},
		{"dispatch error", &fakeCaller{err: errors.New("closed")}, "failed to call search tool"},
		{"no text", &fakeCaller{output: `[{"type":"image","data":"AQI="}]`}, "no content in response"},
		{"not json", &fakeCaller{output: `[{"type":"text","text":"rate limited"}]`}, "invalid JSON"},
		{"object", &fakeCaller{output: `[{"type":"text","text":"{\"error\":1}"}]`}, "unexpected result type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMCPProvider("zhipu", &config.ProviderConfig{Server: "web"}, tt.caller)
			_, err := p.Search(context.Background(), "q")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMCPProviderAvailability(t *testing.T) {
	assert.False(t, NewMCPProvider("a", &config.ProviderConfig{}, &fakeCaller{}).IsAvailable())
	assert.False(t, NewMCPProvider("a", &config.ProviderConfig{Server: "web"}, nil).IsAvailable())
	assert.True(t, NewMCPProvider("a", &config.ProviderConfig{Server: "web"}, &fakeCaller{}).IsAvailable())
}

func TestFirecrawlProviderSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"query":"golang","limit":3}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"web":[{"url":"https://go.dev","title":"Go","description":"Build simple software","markdown":"# Go"}]}}`))
	}))
	defer srv.Close()

	p := NewFirecrawlProvider("firecrawl", &config.ProviderConfig{APIKey: "fc-key", BaseURL: srv.URL, MaxResults: 3})
	result, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, models.SearchResult{Title: "Go", URL: "https://go.dev", Content: "# Go", Snippet: "Build simple software"}, result.Results[0])
}

func TestFirecrawlProviderV1Response(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[{"url":"https://a.dev","title":"A"},{"url":"https://b.dev","title":"B"}]}`))
	}))
	defer srv.Close()

	p := NewFirecrawlProvider("firecrawl", &config.ProviderConfig{APIKey: "fc-key", BaseURL: srv.URL + "/"})
	result, err := p.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "https://b.dev", result.Results[1].URL)
}

func TestFirecrawlProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"success":false,"error":"Insufficient credits"}`))
	}))
	defer srv.Close()

	p := NewFirecrawlProvider("firecrawl", &config.ProviderConfig{APIKey: "fc-key", BaseURL: srv.URL})
	_, err := p.Search(context.Background(), "golang")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient credits")

	missing := NewFirecrawlProvider("firecrawl", &config.ProviderConfig{})
	assert.False(t, missing.IsAvailable())
	_, err = missing.Search(context.Background(), "golang")
	assert.Error(t, err)
}

type staticProvider struct {
	name      string
	available bool
	err       error
}

func (s staticProvider) Name() string      { return s.name }
func (s staticProvider) IsAvailable() bool { return s.available }

func (s staticProvider) Search(_ context.Context, query string) (*models.SearchProviderResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.SearchProviderResult{Query: query, Results: []models.SearchResult{{Title: s.name}}}, nil
}

func TestManagerFallsBack(t *testing.T) {
	m := NewManager(&config.WebSearchConfig{Enabled: true, Default: "primary"}, nil)
	m.Add(staticProvider{name: "primary", available: true, err: errors.New("quota")})
	m.Add(staticProvider{name: "backup", available: true})

	result, err := m.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "backup", result.Results[0].Title)

	m.Add(staticProvider{name: "backup", available: true, err: errors.New("down")})
	_, err = m.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary: quota")
	assert.Contains(t, err.Error(), "backup: down")
}

func TestManager(t *testing.T) {
	m := NewManager(&config.WebSearchConfig{Enabled: true, Default: "primary"}, nil)
	assert.False(t, m.HasAvailableProvider())
	_, err := m.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoProvider)

	m.Add(staticProvider{name: "zeta", available: true})
	m.Add(staticProvider{name: "alpha", available: true})
	m.Add(staticProvider{name: "primary", available: false})
	require.True(t, m.HasAvailableProvider())

	names := func() []string {
		var out []string
		for _, p := range m.Available() {
			out = append(out, p.Name())
		}
		return out
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names())

	result, err := m.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "alpha", result.Results[0].Title)

	m.Add(staticProvider{name: "primary", available: true})
	assert.Equal(t, []string{"primary", "alpha", "zeta"}, names())

	result, err = m.SearchWithProvider(context.Background(), "zeta", "q")
	require.NoError(t, err)
	assert.Equal(t, "zeta", result.Results[0].Title)

	_, err = m.SearchWithProvider(context.Background(), "missing", "q")
	assert.Error(t, err)
}

func TestManagerFromConfig(t *testing.T) {
	cfg := &config.WebSearchConfig{
		Enabled: true,
		Default: "zhipu",
		Providers: map[string]config.ProviderConfig{
			"zhipu":     {Type: "mcp", Server: "web"},
			"firecrawl": {Type: "firecrawl"},
			"bing":      {Type: "bing", APIKey: "k"},
		},
	}
	m := NewManager(cfg, &fakeCaller{})
	available := m.Available()
	require.Len(t, available, 1)
	assert.Equal(t, "zhipu", available[0].Name())
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(&config.WebSearchConfig{Enabled: false}, nil)
	m.Add(staticProvider{name: "a", available: true})
	assert.False(t, m.HasAvailableProvider())
	assert.Empty(t, m.Available())

	_, err := m.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = m.SearchWithProvider(context.Background(), "a", "q")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No search results found.", FormatResults(nil))
	assert.Equal(t, "No search results found.", FormatResults(&models.SearchProviderResult{Query: "q"}))

	long := strings.Repeat("x", 600)
	out := FormatResults(&models.SearchProviderResult{
		Query: "golang",
		Results: []models.SearchResult{
			{Title: "Go", URL: "https://go.dev", Snippet: "Fast", Content: "Fast"},
			{Title: "Long", Content: long},
		},
	})
	assert.True(t, strings.HasPrefix(out, "Search results for: golang\n\n"))
	assert.Contains(t, out, "1. Go\n   URL: https://go.dev\n   Summary: Fast\n\n")
	assert.NotContains(t, out, "Content: Fast")
	assert.Contains(t, out, "2. Long\n   Content: "+strings.Repeat("x", 500)+"...\n")
}
