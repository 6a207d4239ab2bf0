package models

// SearchProviderResult is what one provider returned for a query
type SearchProviderResult struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchResult is one page found by a provider
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Snippet string `json:"snippet,omitempty"`
	// Provider is set when results from several providers are merged
	Provider string `json:"provider,omitempty"`
}
