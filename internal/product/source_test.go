package product

import (
	"reflect"
	"testing"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
)

func prod(id string) model.Product {
	return model.Product{ID: id, Title: id, ImageURL: "https://img/" + id}
}

func TestDeduplicate_KeepsFirstSeenOrder(t *testing.T) {
	in := []model.Product{prod("a"), prod("b"), prod("a"), prod("c"), prod("b")}
	out := Deduplicate(in)

	wantIDs := []string{"a", "b", "c"}
	if len(out) != len(wantIDs) {
		t.Fatalf("got %d products, want %d", len(out), len(wantIDs))
	}
	for i, id := range wantIDs {
		if out[i].ID != id {
			t.Errorf("out[%d].ID = %q, want %q", i, out[i].ID, id)
		}
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	in := []model.Product{prod("x"), prod("y"), prod("x")}
	once := Deduplicate(in)
	twice := Deduplicate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed the list: %v vs %v", once, twice)
	}
}

func TestDeduplicate_Empty(t *testing.T) {
	if got := Deduplicate(nil); len(got) != 0 {
		t.Errorf("Deduplicate(nil) = %v, want empty", got)
	}
}

func TestRelevanceScore(t *testing.T) {
	rating := 4.5
	lowRating := 3.2
	manyReviews := 250
	fewReviews := 12

	cases := []struct {
		name string
		p    model.Product
		want int
	}{
		{"plain title", model.Product{Title: "Coffee Mug"}, 0},
		{"one humor keyword", model.Product{Title: "Funny Coffee Mug"}, 3},
		{"two humor keywords", model.Product{Title: "Funny Novelty Mug"}, 6},
		{"high rating", model.Product{Title: "Coffee Mug", Rating: &rating}, 2},
		{"low rating", model.Product{Title: "Coffee Mug", Rating: &lowRating}, 0},
		{"many reviews", model.Product{Title: "Coffee Mug", ReviewCount: &manyReviews}, 1},
		{"few reviews", model.Product{Title: "Coffee Mug", ReviewCount: &fewReviews}, 0},
		{
			"everything",
			model.Product{Title: "Hilarious Gag Gift", Rating: &rating, ReviewCount: &manyReviews},
			9,
		},
	}
	for _, tc := range cases {
		if got := relevanceScore(tc.p); got != tc.want {
			t.Errorf("%s: relevanceScore = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRankByRelevance_DescendingAndStable(t *testing.T) {
	rating := 4.8
	in := []model.Product{
		{ID: "1", Title: "Plain Socks"},
		{ID: "2", Title: "Funny Socks"},
		{ID: "3", Title: "Other Plain Socks"},
		{ID: "4", Title: "Funny Gag Socks", Rating: &rating},
	}
	out := rankByRelevance(in)

	wantIDs := []string{"4", "2", "1", "3"}
	for i, id := range wantIDs {
		if out[i].ID != id {
			t.Errorf("out[%d].ID = %q, want %q", i, out[i].ID, id)
		}
	}
}
