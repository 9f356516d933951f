package concept

import (
	"context"
	"strings"
	"testing"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
)

func candidatesFixture() []model.ConceptCandidates {
	rating := 4.5
	return []model.ConceptCandidates{
		{
			Concept: model.Concept{Title: "Pun Intended", Tagline: "wordplay"},
			Candidates: []model.Product{
				{ID: "a0", Title: "Pun Mug", Price: 14.99, Rating: &rating},
				{ID: "a1", Title: "Pun Sign", Price: 22.50},
				{ID: "a2", Title: "Pun Socks", Price: 9.99},
			},
		},
		{
			Concept: model.Concept{Title: "Desk Zoo", Tagline: "tiny animals"},
			Candidates: []model.Product{
				{ID: "b0", Title: "Brass Capybara", Price: 31.00},
				{ID: "b1", Title: "Felt Owl", Price: 18.00},
			},
		},
	}
}

func TestSelectBest(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"selections":[[2,0],[1]]}`}}
	sel := NewSelector(client, "test-model", testLogger(t))

	picks, err := sel.SelectBest(context.Background(), candidatesFixture(), 2)
	if err != nil {
		t.Fatalf("SelectBest returned error: %v", err)
	}
	if len(picks) != 2 {
		t.Fatalf("got %d selection lists, want 2", len(picks))
	}

	// Picks follow the index order the model returned.
	if picks[0][0].ID != "a2" || picks[0][1].ID != "a0" {
		t.Errorf("first concept picks = %s, %s, want a2, a0", picks[0][0].ID, picks[0][1].ID)
	}
	if len(picks[1]) != 1 || picks[1][0].ID != "b1" {
		t.Errorf("second concept picks = %v, want just b1", picks[1])
	}

	// One batched call covers every concept.
	if len(client.requests) != 1 {
		t.Fatalf("made %d LLM calls, want 1", len(client.requests))
	}
	prompt := client.requests[0].Messages[0].Content
	for _, want := range []string{"Concept 0: Pun Intended", "Concept 1: Desk Zoo", "[2] Pun Socks", "4.5 stars"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSelectBest_DiscardsBadIndexes(t *testing.T) {
	// Out-of-range and duplicate indexes are skipped, k is enforced.
	client := &scriptedClient{responses: []string{`{"selections":[[9,-1,1,1,0,2],[0]]}`}}
	sel := NewSelector(client, "test-model", testLogger(t))

	picks, err := sel.SelectBest(context.Background(), candidatesFixture(), 2)
	if err != nil {
		t.Fatalf("SelectBest returned error: %v", err)
	}
	if len(picks[0]) != 2 {
		t.Fatalf("got %d picks, want 2 after discarding bad indexes", len(picks[0]))
	}
	if picks[0][0].ID != "a1" || picks[0][1].ID != "a0" {
		t.Errorf("picks = %s, %s, want a1, a0", picks[0][0].ID, picks[0][1].ID)
	}
}

func TestSelectBest_LengthMismatchIsError(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"selections":[[0]]}`}}
	sel := NewSelector(client, "test-model", testLogger(t))

	if _, err := sel.SelectBest(context.Background(), candidatesFixture(), 2); err == nil {
		t.Fatal("expected an error for a selection list count mismatch")
	}
}

func TestSelectBest_EmptyInput(t *testing.T) {
	client := &scriptedClient{}
	sel := NewSelector(client, "test-model", testLogger(t))

	picks, err := sel.SelectBest(context.Background(), nil, 2)
	if err != nil {
		t.Fatalf("SelectBest returned error: %v", err)
	}
	if picks != nil {
		t.Errorf("picks = %v, want nil", picks)
	}
	if len(client.requests) != 0 {
		t.Errorf("made %d LLM calls for empty input, want 0", len(client.requests))
	}
}

func TestSelectBest_EmptyListForConcept(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"selections":[[], [0]]}`}}
	sel := NewSelector(client, "test-model", testLogger(t))

	picks, err := sel.SelectBest(context.Background(), candidatesFixture(), 2)
	if err != nil {
		t.Fatalf("SelectBest returned error: %v", err)
	}
	if len(picks[0]) != 0 {
		t.Errorf("got %d picks for the skipped concept, want 0", len(picks[0]))
	}
}
