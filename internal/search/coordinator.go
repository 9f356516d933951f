// Package search coordinates a concept's product queries against a provider.
package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/37-Inc/goose.gifts-sub000/internal/config"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/internal/product"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

// liteQueryCount is how many of a concept's queries are searched in lite mode.
const liteQueryCount = 2

// Strategy runs all of a concept's search queries against the active product
// source and returns the merged, deduplicated candidates. A query error is an
// empty contribution, never a failure. Post-condition for every
// implementation: no two returned products share an identity.
type Strategy interface {
	Run(ctx context.Context, concept model.Concept, minPrice, maxPrice float64) []model.Product
}

// ForConfig selects the strategy for the active provider. The rate-limited
// marketplace API gets the sequential strategy; the web scraper fans out in
// parallel. Selected once at startup, never per request.
func ForConfig(cfg *config.Config, src product.Source, log *logger.Logger) Strategy {
	if cfg.ActiveProvider == config.ProviderAmazon {
		return NewSequentialStrategy(src, cfg.SequentialDelay, cfg.SearchMode == config.SearchModeLite, log)
	}
	return NewParallelStrategy(src, cfg.ParallelCeiling, log)
}

// ParallelStrategy issues one search per query concurrently. A single
// weighted semaphore, shared by every Run, bounds the total in-flight
// provider calls: concept branches running at the same time draw from the
// one budget, so the ceiling holds process-wide, not per concept.
// Each query's price band is the concept's band divided evenly by query
// count. Merge order follows query list order regardless of which goroutine
// finishes first.
type ParallelStrategy struct {
	source product.Source
	sem    *semaphore.Weighted
	logger *logger.Logger
}

// NewParallelStrategy constructs a ParallelStrategy with the given in-flight
// ceiling (bumped to 1 when non-positive).
func NewParallelStrategy(src product.Source, ceiling int, log *logger.Logger) *ParallelStrategy {
	if ceiling <= 0 {
		ceiling = 1
	}
	return &ParallelStrategy{
		source: src,
		sem:    semaphore.NewWeighted(int64(ceiling)),
		logger: log,
	}
}

// Run implements Strategy.
func (s *ParallelStrategy) Run(ctx context.Context, concept model.Concept, minPrice, maxPrice float64) []model.Product {
	queries := concept.SearchQueries
	if len(queries) == 0 {
		return nil
	}

	// Each slot is written by exactly one goroutine, so no lock is needed.
	results := make([][]model.Product, len(queries))

	qMin := minPrice / float64(len(queries))
	qMax := maxPrice / float64(len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break // deadline hit, abandon remaining queries
		}
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			defer s.sem.Release(1)

			found, err := s.source.Search(ctx, query, qMin, qMax)
			if err != nil {
				s.logger.Warn("query search failed",
					zap.String("query", query),
					zap.String("provider", s.source.Name()),
					zap.Error(err),
				)
				return
			}
			results[i] = found
		}(i, query)
	}
	wg.Wait()

	var merged []model.Product
	for _, r := range results {
		merged = append(merged, r...)
	}
	return dedupe(merged, s.source.Name())
}

// SequentialStrategy issues queries one at a time, spacing each call a fixed
// delay after the previous one. The previous-call timestamp is shared across
// Runs, so the gap also holds between the last query of one concept and the
// first of the next. In lite mode only the first two queries are searched.
type SequentialStrategy struct {
	source product.Source
	delay  time.Duration
	lite   bool
	logger *logger.Logger

	mu       sync.Mutex
	lastCall time.Time
}

// NewSequentialStrategy constructs a SequentialStrategy.
func NewSequentialStrategy(src product.Source, delay time.Duration, lite bool, log *logger.Logger) *SequentialStrategy {
	return &SequentialStrategy{
		source: src,
		delay:  delay,
		lite:   lite,
		logger: log,
	}
}

// Run implements Strategy.
func (s *SequentialStrategy) Run(ctx context.Context, concept model.Concept, minPrice, maxPrice float64) []model.Product {
	queries := concept.SearchQueries
	if s.lite && len(queries) > liteQueryCount {
		queries = queries[:liteQueryCount]
	}

	var merged []model.Product
	for _, query := range queries {
		if err := s.pace(ctx); err != nil {
			return dedupe(merged, s.source.Name())
		}

		found, err := s.source.Search(ctx, query, minPrice, maxPrice)
		if err != nil {
			s.logger.Warn("query search failed",
				zap.String("query", query),
				zap.String("provider", s.source.Name()),
				zap.Error(err),
			)
			continue
		}
		merged = append(merged, found...)
	}
	return dedupe(merged, s.source.Name())
}

// pace blocks until the inter-query delay since the previous call has
// elapsed, then claims the new call slot. Returns the context error when the
// wait is cut short.
func (s *SequentialStrategy) pace(ctx context.Context) error {
	s.mu.Lock()
	last := s.lastCall
	s.mu.Unlock()

	if !last.IsZero() {
		if wait := s.delay - time.Since(last); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	s.mu.Lock()
	s.lastCall = time.Now()
	s.mu.Unlock()
	return nil
}

func dedupe(merged []model.Product, provider string) []model.Product {
	out := product.Deduplicate(merged)
	if removed := len(merged) - len(out); removed > 0 {
		metrics.DuplicatesRemovedTotal.Add(float64(removed))
	}
	metrics.ProductsFound.WithLabelValues(provider).Observe(float64(len(out)))
	return out
}
