package websearch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/search"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// Sources lists the search providers a gatherer may use.
// *search.Manager satisfies it.
type Sources interface {
	Available() []search.Provider
}

// Gatherer runs queries against every available provider and reports
// progress as phases.
type Gatherer struct {
	sources Sources
	now     func() time.Time
	log     *zap.Logger
}

// NewGatherer creates a gatherer over sources.
func NewGatherer(sources Sources) *Gatherer {
	return &Gatherer{sources: sources, now: time.Now, log: logger.Named("websearch")}
}

type providerOutcome struct {
	provider string
	result   *models.SearchProviderResult
	err      error
}

// Gather searches each query in turn. Every provider answer yields a phase;
// onResults receives the deduplicated results once, before the final phase.
// The returned channel is closed when gathering ends or ctx is done.
func (g *Gatherer) Gather(ctx context.Context, queries []string, onResults func([]models.SearchResult)) <-chan Phase {
	phases := make(chan Phase)
	go func() {
		defer close(phases)

		emit := func(p Phase) bool {
			select {
			case phases <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			results []models.SearchResult
			seen    = make(map[string]bool)
		)
		phase := Phase{NumberOfQueries: len(queries)}
		for idx, query := range queries {
			if ctx.Err() != nil {
				return
			}
			providers := g.sources.Available()
			phase.Query = query
			phase.QueryBeginDate = g.now()
			phase.CurrentSource = 0
			phase.NumberOfSource = len(providers)
			phase.NumberOfWebsites = 0
			phase.Progress = max(progressFloor, float64(idx)/float64(len(queries)))
			if !emit(phase) {
				return
			}

			outcomes := make(chan providerOutcome, len(providers))
			var eg errgroup.Group
			for _, p := range providers {
				eg.Go(func() error {
					result, err := p.Search(ctx, query)
					outcomes <- providerOutcome{provider: p.Name(), result: result, err: err}
					return nil
				})
			}

			for done := 1; done <= len(providers); done++ {
				out := <-outcomes
				if out.err != nil {
					g.log.Warn("search provider failed",
						zap.String("provider", out.provider),
						zap.String("query", query),
						zap.Error(out.err),
					)
				} else if out.result != nil {
					for _, r := range out.result.Results {
						key := r.URL
						if key == "" {
							key = r.Title
						}
						if seen[key] {
							continue
						}
						seen[key] = true
						r.Provider = out.provider
						results = append(results, r)
						phase.NumberOfWebsites++
					}
				}
				phase.CurrentSource = done
				phase.Progress = (float64(idx) + float64(done)/float64(len(providers))) / float64(len(queries))
				if !emit(phase) {
					_ = eg.Wait()
					return
				}
			}
			_ = eg.Wait()
		}

		if ctx.Err() != nil {
			return
		}
		if onResults != nil {
			onResults(results)
		}
		phase.Query = ""
		phase.QueryBeginDate = time.Time{}
		phase.NumberOfResults = len(results)
		emit(phase)
	}()
	return phases
}
