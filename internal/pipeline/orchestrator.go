// Package pipeline drives the gift bundle generation pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/analytics"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/internal/search"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

// Fatal error classes surfaced to the caller. Search and persistence degrade
// instead of failing; these four do not.
var (
	ErrInvalidRequest    = errors.New("invalid generation request")
	ErrConceptGeneration = errors.New("concept generation failed")
	ErrSelection         = errors.New("product selection failed")
	ErrTimeout           = errors.New("generation deadline exceeded")
)

// ConceptService produces themed gift concepts for a request.
type ConceptService interface {
	GenerateConcepts(ctx context.Context, req model.GenerationRequest) ([]model.Concept, error)
}

// Selector performs the batched selection step: one call covering every
// concept of the request.
type Selector interface {
	SelectBest(ctx context.Context, concepts []model.ConceptCandidates, k int) ([][]model.Product, error)
}

// Enricher refreshes product data best-effort. It never errors and never
// drops a product.
type Enricher interface {
	Enrich(ctx context.Context, products []model.Product) []model.Product
}

// Store persists a finished result and returns its permalink slug.
type Store interface {
	Save(ctx context.Context, req model.GenerationRequest, ideas []model.GiftIdea, seo model.SEOContent) (string, error)
}

// SEOWriter synthesizes page copy for the persisted bundle page.
type SEOWriter interface {
	Write(ctx context.Context, req model.GenerationRequest, ideas []model.GiftIdea) model.SEOContent
}

// EventRecorder accepts fire-and-forget analytics events.
type EventRecorder interface {
	Record(e analytics.Event)
}

// Pipeline stages, in order. Failed is reachable from Validating,
// GeneratingConcepts and Selecting; the other stages degrade.
const (
	stageValidating         = "validating"
	stageGeneratingConcepts = "generating_concepts"
	stageSearchingProducts  = "searching_products"
	stageSelecting          = "selecting"
	stageEnriching          = "enriching"
	stagePersisting         = "persisting"
)

// Options carry the startup-time pipeline configuration.
type Options struct {
	// ProductsPerBundle bounds each idea's final product list.
	ProductsPerBundle int

	// SequentialConcepts runs the per-concept searches one after another
	// instead of concurrently. Set when the active provider is rate limited,
	// matching the strategy choice.
	SequentialConcepts bool

	// EnrichmentEnabled gates the post-selection enrichment pass.
	EnrichmentEnabled bool

	// Timeout bounds the whole pipeline. Defaults to 60s.
	Timeout time.Duration

	// ProviderName tags analytics events with the active provider.
	ProviderName string
}

// Orchestrator is the pipeline entry point. Collaborators are injected once
// at startup; the orchestrator holds no per-request state.
type Orchestrator struct {
	concepts ConceptService
	strategy search.Strategy
	selector Selector
	enricher Enricher
	store    Store
	seo      SEOWriter
	recorder EventRecorder
	opts     Options
	logger   *logger.Logger
	tracer   trace.Tracer
}

// New constructs an Orchestrator. store, seo, enricher and recorder may be
// nil; the corresponding stages are skipped or degrade.
func New(
	concepts ConceptService,
	strategy search.Strategy,
	selector Selector,
	enricher Enricher,
	store Store,
	seo SEOWriter,
	recorder EventRecorder,
	opts Options,
	log *logger.Logger,
) *Orchestrator {
	if opts.ProductsPerBundle <= 0 {
		opts.ProductsPerBundle = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Orchestrator{
		concepts: concepts,
		strategy: strategy,
		selector: selector,
		enricher: enricher,
		store:    store,
		seo:      seo,
		recorder: recorder,
		opts:     opts,
		logger:   log,
		tracer:   otel.Tracer("pipeline"),
	}
}

// Generate runs the full pipeline for one validated request.
//
// Fatal outcomes (validation, concept generation, selection, timeout) return
// an error and no result. Zero products for a concept drops that concept;
// zero products for every concept yields a preview result carrying the raw
// concepts and the NeedsConfiguration flag. A persistence error still
// returns the generated ideas, just without a permalink.
func (o *Orchestrator) Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	start := time.Now()

	// Validating
	if err := req.Validate(); err != nil {
		metrics.RecordGeneration("invalid", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	// GeneratingConcepts
	concepts, err := o.generateConcepts(ctx, req)
	if err != nil {
		outcome := "concept_failed"
		if errors.Is(err, ErrTimeout) {
			outcome = "timeout"
		}
		metrics.RecordGeneration(outcome, time.Since(start).Seconds())
		return nil, err
	}

	// SearchingProducts
	candidates := o.searchProducts(ctx, concepts, req)

	withProducts := make([]model.ConceptCandidates, 0, len(candidates))
	for _, cc := range candidates {
		if len(cc.Candidates) == 0 {
			o.logger.Info("concept dropped, no products found",
				zap.String("concept", cc.Concept.Title))
			continue
		}
		withProducts = append(withProducts, cc)
	}

	if len(withProducts) == 0 {
		if err := ctx.Err(); err != nil {
			metrics.RecordGeneration("timeout", time.Since(start).Seconds())
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		// Preview mode: the user still sees what was generated even without
		// a working product feed. Nothing is persisted.
		metrics.RecordGeneration("preview", time.Since(start).Seconds())
		return &model.GenerationResult{
			Concepts:           concepts,
			NeedsConfiguration: true,
		}, nil
	}

	// Selecting
	selections, err := o.selectProducts(ctx, withProducts)
	if err != nil {
		outcome := "selection_failed"
		if errors.Is(err, ErrTimeout) {
			outcome = "timeout"
		}
		metrics.RecordGeneration(outcome, time.Since(start).Seconds())
		return nil, err
	}

	ideas := buildIdeas(withProducts, selections)

	// Enriching
	if o.opts.EnrichmentEnabled && o.enricher != nil {
		ideas = o.enrichIdeas(ctx, ideas)
	}

	if len(ideas) == 0 {
		metrics.RecordGeneration("preview", time.Since(start).Seconds())
		return &model.GenerationResult{
			Concepts:           concepts,
			NeedsConfiguration: true,
		}, nil
	}

	// Persisting: a deadline hit at this point is a whole-request timeout.
	// Partial results are never persisted.
	if err := ctx.Err(); err != nil {
		metrics.RecordGeneration("timeout", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	slug := o.persist(ctx, req, ideas)

	if o.recorder != nil {
		o.recorder.Record(analytics.Event{
			Type:      analytics.EventBundleGenerated,
			Slug:      slug,
			Provider:  o.opts.ProviderName,
			IdeaCount: len(ideas),
		})
	}

	metrics.RecordGeneration("ok", time.Since(start).Seconds())
	o.logger.Info("generation complete",
		zap.Int("ideas", len(ideas)),
		zap.String("slug", slug),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &model.GenerationResult{Ideas: ideas, Slug: slug}, nil
}

func (o *Orchestrator) generateConcepts(ctx context.Context, req model.GenerationRequest) ([]model.Concept, error) {
	ctx, span := o.tracer.Start(ctx, "generation."+stageGeneratingConcepts)
	defer span.End()

	concepts, err := o.concepts.GenerateConcepts(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConceptGeneration, err)
	}
	if len(concepts) == 0 {
		return nil, fmt.Errorf("%w: empty concept list", ErrConceptGeneration)
	}
	span.SetAttributes(attribute.Int("concepts", len(concepts)))
	return concepts, nil
}

// searchProducts runs one coordinator pass per concept. Branches are
// confined: each writes only its own slot, and the merge re-associates
// results by concept index, never by completion order.
func (o *Orchestrator) searchProducts(ctx context.Context, concepts []model.Concept, req model.GenerationRequest) []model.ConceptCandidates {
	ctx, span := o.tracer.Start(ctx, "generation."+stageSearchingProducts)
	defer span.End()

	out := make([]model.ConceptCandidates, len(concepts))

	if o.opts.SequentialConcepts {
		for i, c := range concepts {
			out[i] = model.ConceptCandidates{
				Concept:    c,
				Candidates: o.strategy.Run(ctx, c, req.MinPrice, req.MaxPrice),
			}
		}
		return out
	}

	var wg sync.WaitGroup
	for i, c := range concepts {
		wg.Add(1)
		go func(i int, c model.Concept) {
			defer wg.Done()
			out[i] = model.ConceptCandidates{
				Concept:    c,
				Candidates: o.strategy.Run(ctx, c, req.MinPrice, req.MaxPrice),
			}
		}(i, c)
	}
	wg.Wait()
	return out
}

func (o *Orchestrator) selectProducts(ctx context.Context, candidates []model.ConceptCandidates) ([][]model.Product, error) {
	ctx, span := o.tracer.Start(ctx, "generation."+stageSelecting)
	defer span.End()

	selections, err := o.selector.SelectBest(ctx, candidates, o.opts.ProductsPerBundle)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSelection, err)
	}
	if len(selections) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d selections for %d concepts", ErrSelection, len(selections), len(candidates))
	}
	return selections, nil
}

// buildIdeas assembles final GiftIdeas in concept order, removing
// cross-concept duplicates (two concepts can independently surface the same
// product; the earlier concept keeps it) and dropping ideas left empty.
func buildIdeas(candidates []model.ConceptCandidates, selections [][]model.Product) []model.GiftIdea {
	seen := make(map[string]struct{})
	var ideas []model.GiftIdea

	for i, selected := range selections {
		var products []model.Product
		for _, p := range selected {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			products = append(products, p)
		}
		if len(products) == 0 {
			continue
		}
		ideas = append(ideas, model.GiftIdea{
			Concept:  candidates[i].Concept,
			Products: products,
		})
	}
	return ideas
}

func (o *Orchestrator) enrichIdeas(ctx context.Context, ideas []model.GiftIdea) []model.GiftIdea {
	ctx, span := o.tracer.Start(ctx, "generation."+stageEnriching)
	defer span.End()

	for i := range ideas {
		ideas[i].Products = o.enricher.Enrich(ctx, ideas[i].Products)
	}
	return ideas
}

// persist saves the result. Failure is recovered: the caller still gets the
// generated ideas, just without a permalink.
func (o *Orchestrator) persist(ctx context.Context, req model.GenerationRequest, ideas []model.GiftIdea) string {
	if o.store == nil {
		return ""
	}

	ctx, span := o.tracer.Start(ctx, "generation."+stagePersisting)
	defer span.End()

	var seo model.SEOContent
	if o.seo != nil {
		seo = o.seo.Write(ctx, req, ideas)
	}

	slug, err := o.store.Save(ctx, req, ideas, seo)
	if err != nil {
		o.logger.Warn("persistence failed, returning result without permalink", zap.Error(err))
		return ""
	}
	return slug
}
