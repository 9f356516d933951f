package product

import (
	"context"

	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

// Enricher refreshes price, rating and image data for an already-selected
// product set via a second marketplace lookup. It is strictly best-effort:
// on any error or missing response the original data is kept, and no product
// is ever dropped.
type Enricher struct {
	source *AmazonSource
	logger *logger.Logger
}

// NewEnricher constructs an Enricher backed by the signed marketplace API.
func NewEnricher(source *AmazonSource, log *logger.Logger) *Enricher {
	return &Enricher{source: source, logger: log}
}

// Enrich returns products with refreshed marketplace data where available.
// The result always has the same length and order as the input.
func (e *Enricher) Enrich(ctx context.Context, products []model.Product) []model.Product {
	if e.source == nil || !e.source.Configured() {
		return products
	}

	var ids []string
	for _, p := range products {
		if p.Source == e.source.Name() {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return products
	}

	fresh, err := e.source.Lookup(ctx, ids)
	if err != nil {
		e.logger.Warn("enrichment lookup failed, keeping original data", zap.Error(err))
		metrics.EnrichmentsTotal.WithLabelValues("failed").Inc()
		return products
	}

	byID := make(map[string]model.Product, len(fresh))
	for _, p := range fresh {
		byID[p.ID] = p
	}

	out := make([]model.Product, len(products))
	for i, p := range products {
		out[i] = merge(p, byID)
	}

	metrics.EnrichmentsTotal.WithLabelValues("ok").Inc()
	return out
}

// merge overlays fresh fields onto the original product. Fields absent from
// the lookup response are preserved.
func merge(orig model.Product, fresh map[string]model.Product) model.Product {
	f, ok := fresh[orig.ID]
	if !ok {
		return orig
	}

	out := orig
	if f.Price > 0 {
		out.Price = f.Price
		out.Currency = f.Currency
	}
	if f.ImageURL != "" {
		out.ImageURL = f.ImageURL
	}
	if f.Title != "" {
		out.Title = f.Title
	}
	if f.Rating != nil {
		out.Rating = f.Rating
	}
	if f.ReviewCount != nil {
		out.ReviewCount = f.ReviewCount
	}
	return out
}
