// Package model defines data structures for the gift bundle pipeline.
package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// HumorStyle selects the comedic register for generated concepts.
type HumorStyle string

const (
	HumorDadJoke    HumorStyle = "dad-joke"
	HumorOfficeSafe HumorStyle = "office-safe"
	HumorEdgy       HumorStyle = "edgy"
	HumorPG         HumorStyle = "pg"
)

// ParseHumorStyle validates a raw humor style string.
func ParseHumorStyle(s string) (HumorStyle, error) {
	switch HumorStyle(s) {
	case HumorDadJoke, HumorOfficeSafe, HumorEdgy, HumorPG:
		return HumorStyle(s), nil
	default:
		return "", fmt.Errorf("invalid humor style %q", s)
	}
}

// GenerationRequest is one validated gift generation request. It is immutable
// once accepted and lives only for the duration of a single Generate call.
type GenerationRequest struct {
	Description string     `json:"description" validate:"required,min=5,max=2000"`
	Occasion    string     `json:"occasion,omitempty" validate:"max=200"`
	HumorStyle  HumorStyle `json:"humor_style" validate:"required"`
	MinPrice    float64    `json:"min_price" validate:"gte=0"`
	MaxPrice    float64    `json:"max_price" validate:"gte=0"`
}

var validate = validator.New()

// Validate checks a request before any external call is made.
func (r *GenerationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %q (%s)", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	if _, err := ParseHumorStyle(string(r.HumorStyle)); err != nil {
		return err
	}
	if r.MinPrice > r.MaxPrice {
		return errors.New("min_price must not exceed max_price")
	}
	return nil
}

// Concept is an AI-generated gift theme. Produced by the concept service and
// read-only afterward.
type Concept struct {
	Title         string   `json:"title"`
	Tagline       string   `json:"tagline"`
	Description   string   `json:"description"`
	SearchQueries []string `json:"search_queries"`
}

// Product is one purchasable item surfaced by a provider. ID is the
// provider-scoped identity used for deduplication.
type Product struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	ImageURL     string   `json:"image_url"`
	AffiliateURL string   `json:"affiliate_url"`
	Source       string   `json:"source"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewCount  *int     `json:"review_count,omitempty"`
}

// ConceptCandidates pairs a concept with its deduplicated candidate products
// for the batched selection step.
type ConceptCandidates struct {
	Concept    Concept   `json:"concept"`
	Candidates []Product `json:"candidates"`
}

// GiftIdea is a Concept paired with its finalized product list.
type GiftIdea struct {
	Concept  Concept   `json:"concept"`
	Products []Product `json:"products"`
}

// SEOContent is the synthesized copy for a persisted bundle page.
type SEOContent struct {
	PageTitle       string `json:"page_title"`
	MetaDescription string `json:"meta_description"`
	Intro           string `json:"intro"`
}

// GenerationResult is the outcome of one generation request. When every
// concept ended with zero products, Ideas is empty, Concepts carries the raw
// generated themes and NeedsConfiguration is set: a preview rather than an
// error.
type GenerationResult struct {
	Ideas              []GiftIdea `json:"ideas"`
	Concepts           []Concept  `json:"concepts,omitempty"`
	Slug               string     `json:"slug,omitempty"`
	NeedsConfiguration bool       `json:"needs_configuration,omitempty"`
}

// Bundle is a persisted generation result as returned by the store.
type Bundle struct {
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Occasion    string     `json:"occasion,omitempty"`
	HumorStyle  HumorStyle `json:"humor_style"`
	Ideas       []GiftIdea `json:"ideas"`
	SEO         SEOContent `json:"seo"`
}
