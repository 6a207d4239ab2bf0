// Package websearch tracks the progress of a web search tool call and
// exposes web search as a built-in tool.
package websearch

import (
	"context"
	"sync"
	"time"
)

// progressFloor is the lowest progress shown once a search has begun.
const progressFloor = 0.1

// SearchResult is a page surfaced to the user.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Status is the user-visible state of one web search tool call.
type Status struct {
	Queries               []string       `json:"queries"`
	SearchResults         []SearchResult `json:"search_results"`
	CurrentSource         int            `json:"current_source"`
	NumberOfSource        int            `json:"number_of_source"`
	NumberOfWebsites      int            `json:"number_of_websites"`
	CurrentQuery          *string        `json:"current_query,omitempty"`
	CurrentQueryBeginDate *time.Time     `json:"current_query_begin_date,omitempty"`
	NumberOfResults       int            `json:"number_of_results"`
	ProcessProgress       float64        `json:"process_progress"`
}

// Clone returns a deep copy of s.
func (s Status) Clone() Status {
	out := s
	if s.Queries != nil {
		out.Queries = append([]string(nil), s.Queries...)
	}
	if s.SearchResults != nil {
		out.SearchResults = append([]SearchResult(nil), s.SearchResults...)
	}
	if s.CurrentQuery != nil {
		q := *s.CurrentQuery
		out.CurrentQuery = &q
	}
	if s.CurrentQueryBeginDate != nil {
		d := *s.CurrentQueryBeginDate
		out.CurrentQueryBeginDate = &d
	}
	return out
}

// Phase is one progress report from the search gatherer. An empty Query or a
// zero QueryBeginDate clears the corresponding status field.
type Phase struct {
	Query            string
	QueryBeginDate   time.Time
	NumberOfQueries  int
	CurrentSource    int
	NumberOfSource   int
	NumberOfWebsites int
	NumberOfResults  int
	Progress         float64
}

// Aggregator folds gatherer phases and result batches into a Status and
// publishes a snapshot to its sink after every change, in order.
type Aggregator struct {
	ctx  context.Context
	sink chan<- Status

	mu       sync.Mutex
	status   Status
	finished bool
}

// NewAggregator creates an aggregator publishing to sink, which may be nil.
// Publishing blocks until the sink accepts the snapshot or ctx is done.
func NewAggregator(ctx context.Context, sink chan<- Status) *Aggregator {
	return &Aggregator{ctx: ctx, sink: sink}
}

// Status returns a copy of the current status.
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.Clone()
}

// Begin records the query the tool call was made with.
func (a *Aggregator) Begin(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Queries = []string{query}
	a.publish()
}

// Apply overwrites the progress fields from p. Progress never drops below
// the floor once a search has begun.
func (a *Aggregator) Apply(p Phase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.status.Clone()
	s.CurrentSource = p.CurrentSource
	s.NumberOfSource = p.NumberOfSource
	s.NumberOfWebsites = p.NumberOfWebsites
	s.CurrentQuery = nil
	if p.Query != "" {
		q := p.Query
		s.CurrentQuery = &q
	}
	s.CurrentQueryBeginDate = nil
	if !p.QueryBeginDate.IsZero() {
		d := p.QueryBeginDate
		s.CurrentQueryBeginDate = &d
	}
	s.NumberOfResults = p.NumberOfResults
	s.ProcessProgress = clampProgress(max(progressFloor, p.Progress))
	a.status = s
	a.publish()
}

// AppendResults adds batch after every result seen so far.
func (a *Aggregator) AppendResults(batch []SearchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.SearchResults = append(a.status.SearchResults, batch...)
	a.publish()
}

// Finish marks the search complete. Only the first call has an effect.
func (a *Aggregator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.finished = true
	a.status.ProcessProgress = 1.0
	a.publish()
}

// Run applies phases until the channel closes, then finishes. It returns
// the context error, without finishing, once ctx is done.
func (a *Aggregator) Run(ctx context.Context, phases <-chan Phase) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-phases:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				a.Finish()
				return nil
			}
			a.Apply(p)
		}
	}
}

// publish must be called with mu held.
func (a *Aggregator) publish() {
	if a.sink == nil {
		return
	}
	snapshot := a.status.Clone()
	select {
	case a.sink <- snapshot:
	case <-a.ctx.Done():
	}
}

func clampProgress(p float64) float64 {
	if p != p {
		return progressFloor
	}
	return min(1, max(0, p))
}
