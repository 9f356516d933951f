package product

import (
	"context"
	"reflect"
	"testing"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
)

func TestEnrich_UnconfiguredReturnsInputUntouched(t *testing.T) {
	e := NewEnricher(NewAmazonSource(AmazonConfig{}, testLogger(t)), testLogger(t))

	rating := 4.1
	in := []model.Product{
		{ID: "B01", Title: "Gag Trophy", Price: 15, ImageURL: "https://img/1", Source: "amazon", Rating: &rating},
		{ID: "123", Title: "Etsy Plaque", Price: 22, ImageURL: "https://img/2", Source: "etsy"},
	}
	out := e.Enrich(context.Background(), in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("enrichment with unconfigured source changed the input: %+v", out)
	}
}

func TestMerge_PreservesFieldsAbsentFromLookup(t *testing.T) {
	rating := 4.4
	reviews := 90
	orig := model.Product{
		ID:           "B0X",
		Title:        "Original Title",
		Price:        19.99,
		Currency:     "USD",
		ImageURL:     "https://img/orig.jpg",
		AffiliateURL: "https://amazon.com/dp/B0X",
		Source:       "amazon",
		Rating:       &rating,
		ReviewCount:  &reviews,
	}

	// Lookup response carries only a fresh price.
	fresh := map[string]model.Product{
		"B0X": {ID: "B0X", Price: 17.49, Currency: "USD"},
	}

	out := merge(orig, fresh)
	if out.Price != 17.49 {
		t.Errorf("price = %v, want refreshed 17.49", out.Price)
	}
	if out.Title != orig.Title {
		t.Errorf("title = %q, want preserved %q", out.Title, orig.Title)
	}
	if out.ImageURL != orig.ImageURL {
		t.Errorf("image = %q, want preserved %q", out.ImageURL, orig.ImageURL)
	}
	if out.Rating != orig.Rating || out.ReviewCount != orig.ReviewCount {
		t.Error("rating/review count not preserved")
	}
}

func TestMerge_NoLookupHitKeepsOriginal(t *testing.T) {
	orig := model.Product{ID: "B0Y", Title: "Untouched", Price: 9.99}
	out := merge(orig, map[string]model.Product{})
	if !reflect.DeepEqual(orig, out) {
		t.Errorf("merge without a lookup hit changed the product: %+v", out)
	}
}
