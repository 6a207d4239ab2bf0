package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/search"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// FunctionName is the name the model calls web search by.
const FunctionName = "web_search"

const toolDescription = "Searches the web for current information based on the provided query. " +
	"This tool can help find up-to-date information, news, facts, or any other content available on the internet."

// ErrInvalidParameters is returned when the tool input does not match its schema.
var ErrInvalidParameters = errors.New("invalid parameters")

func parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look for on the web. Should be clear and specific to get the best results.",
			},
		},
		"required":             []any{"query"},
		"additionalProperties": false,
	}
}

type sinkKey struct{}

// WithStatusSink attaches a status sink to ctx for the tool call it is
// passed to.
func WithStatusSink(ctx context.Context, sink chan<- Status) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

func statusSink(ctx context.Context) chan<- Status {
	sink, _ := ctx.Value(sinkKey{}).(chan<- Status)
	return sink
}

// Tool exposes web search to the model.
type Tool struct {
	gatherer *Gatherer
	sources  Sources
	schema   *jsonschema.Schema
	log      *zap.Logger
}

// NewTool creates the web search tool.
func NewTool(sources Sources) (*Tool, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("web_search.json", parameters()); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("web_search.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Tool{
		gatherer: NewGatherer(sources),
		sources:  sources,
		schema:   schema,
		log:      logger.Named("websearch"),
	}, nil
}

func (t *Tool) ShortDescription() string { return "Web Search" }

func (t *Tool) InterfaceName() string { return "Web Search" }

func (t *Tool) FunctionName() string { return FunctionName }

func (t *Tool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        FunctionName,
			Description: toolDescription,
			Parameters:  parameters(),
			Strict:      true,
		},
	}
}

// IsEnabled reports whether any provider can serve a search.
func (t *Tool) IsEnabled() bool {
	return len(t.sources.Available()) > 0
}

// Query validates input and returns its query.
func (t *Tool) Query(input string) (string, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(input))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := t.schema.Validate(doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return gjson.Get(input, "query").String(), nil
}

// Execute searches for the query in input. Status snapshots are published
// to the sink attached with WithStatusSink, if any.
func (t *Tool) Execute(ctx context.Context, input string) (string, error) {
	query, err := t.Query(input)
	if err != nil {
		return "", err
	}
	result, err := t.Search(ctx, query, statusSink(ctx))
	if err != nil {
		return "", err
	}
	return search.FormatResults(result), nil
}

// Search gathers results for query, publishing status snapshots to sink.
func (t *Tool) Search(ctx context.Context, query string, sink chan<- Status) (*models.SearchProviderResult, error) {
	agg := NewAggregator(ctx, sink)
	agg.Begin(query)

	var documents []models.SearchResult
	phases := t.gatherer.Gather(ctx, []string{query}, func(batch []models.SearchResult) {
		documents = append(documents, batch...)
		stored := make([]SearchResult, 0, len(batch))
		for _, d := range batch {
			stored = append(stored, SearchResult{Title: d.Title, URL: d.URL})
		}
		agg.AppendResults(stored)
	})
	if err := agg.Run(ctx, phases); err != nil {
		return nil, err
	}

	t.log.Info("web search completed",
		zap.String("query", query),
		zap.Int("result_count", len(documents)),
	)
	return &models.SearchProviderResult{Query: query, Results: documents}, nil
}
