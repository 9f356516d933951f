// Package product provides product search providers and result curation.
package product

import (
	"context"
	"sort"
	"strings"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
)

// Source is a product search provider. Implementations must tolerate missing
// credentials by returning an empty list rather than an error: generation
// degrades gracefully when a provider is unavailable.
type Source interface {
	// Search returns candidate products for one keyword query within a price
	// band. Every returned product has a non-empty ImageURL.
	Search(ctx context.Context, keywords string, minPrice, maxPrice float64) ([]model.Product, error)

	// Name returns the provider tag stamped on returned products.
	Name() string
}

// humorKeywords is the fixed keyword list used by the relevance heuristic.
// Title hits suggest the product itself is in on the joke.
var humorKeywords = []string{
	"funny", "gag", "joke", "novelty", "prank", "sarcastic", "humor", "pun",
	"weird", "hilarious",
}

// relevanceScore computes the static relevance heuristic: +3 per humor
// keyword match in the title, +2 for rating >= 4, +1 for more than 100
// reviews.
func relevanceScore(p model.Product) int {
	score := 0
	title := strings.ToLower(p.Title)
	for _, kw := range humorKeywords {
		if strings.Contains(title, kw) {
			score += 3
		}
	}
	if p.Rating != nil && *p.Rating >= 4 {
		score += 2
	}
	if p.ReviewCount != nil && *p.ReviewCount > 100 {
		score++
	}
	return score
}

// rankByRelevance orders products by descending relevance score. The sort is
// stable so equally scored products keep provider response order.
func rankByRelevance(products []model.Product) []model.Product {
	sort.SliceStable(products, func(i, j int) bool {
		return relevanceScore(products[i]) > relevanceScore(products[j])
	})
	return products
}

// Deduplicate returns the list with later duplicates (same provider identity)
// removed, preserving first-seen order. It is idempotent.
func Deduplicate(products []model.Product) []model.Product {
	if len(products) == 0 {
		return products
	}
	seen := make(map[string]struct{}, len(products))
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
