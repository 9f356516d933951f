package concept

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/37-Inc/goose.gifts-sub000/internal/llm"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

// scriptedClient returns canned completions in order.
type scriptedClient struct {
	responses []string
	err       error
	requests  []*llm.CompletionRequest
}

func (c *scriptedClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	content := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return &llm.CompletionResponse{Content: content, Model: "test-model"}, nil
}

func (c *scriptedClient) Name() string { return "scripted" }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func testRequest() model.GenerationRequest {
	return model.GenerationRequest{
		Description: "a coworker who loves terrible puns",
		HumorStyle:  model.HumorOfficeSafe,
		MinPrice:    10,
		MaxPrice:    50,
	}
}

const conceptResponse = `{
  "concepts": [
    {"title": "Pun Intended", "tagline": "office-safe wordplay", "description": "For the pun lover.", "search_queries": ["funny pun mug", "pun desk sign"]},
    {"title": "Desk Zoo", "tagline": "tiny animals everywhere", "description": "A menagerie.", "search_queries": ["desk animal figurine"]},
    {"title": "", "tagline": "dropped", "description": "no title", "search_queries": ["x"]},
    {"title": "No Queries", "tagline": "dropped", "description": "no queries", "search_queries": []}
  ]
}`

func TestGenerateConcepts(t *testing.T) {
	client := &scriptedClient{responses: []string{conceptResponse}}
	gen := NewGenerator(client, "test-model", 4, testLogger(t))

	concepts, err := gen.GenerateConcepts(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("GenerateConcepts returned error: %v", err)
	}

	// Entries without a title or without search queries are unusable.
	if len(concepts) != 2 {
		t.Fatalf("got %d concepts, want 2", len(concepts))
	}
	if concepts[0].Title != "Pun Intended" || concepts[1].Title != "Desk Zoo" {
		t.Errorf("concept titles = %q, %q", concepts[0].Title, concepts[1].Title)
	}
	if len(concepts[0].SearchQueries) != 2 {
		t.Errorf("got %d search queries, want 2", len(concepts[0].SearchQueries))
	}

	if len(client.requests) != 1 {
		t.Fatalf("made %d LLM calls, want 1", len(client.requests))
	}
	if !client.requests[0].JSONOnly {
		t.Error("expected a strict-JSON completion request")
	}
	if !strings.Contains(client.requests[0].Messages[0].Content, "$10.00 to $50.00") {
		t.Error("prompt does not carry the price band")
	}
}

func TestGenerateConcepts_StripsCodeFences(t *testing.T) {
	fenced := "```json\n" + conceptResponse + "\n```"
	client := &scriptedClient{responses: []string{fenced}}
	gen := NewGenerator(client, "test-model", 4, testLogger(t))

	concepts, err := gen.GenerateConcepts(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("GenerateConcepts returned error: %v", err)
	}
	if len(concepts) != 2 {
		t.Errorf("got %d concepts, want 2", len(concepts))
	}
}

func TestGenerateConcepts_CapsAtRequestedCount(t *testing.T) {
	client := &scriptedClient{responses: []string{conceptResponse}}
	gen := NewGenerator(client, "test-model", 1, testLogger(t))

	concepts, err := gen.GenerateConcepts(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("GenerateConcepts returned error: %v", err)
	}
	if len(concepts) != 1 {
		t.Errorf("got %d concepts, want 1", len(concepts))
	}
}

func TestGenerateConcepts_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *scriptedClient
	}{
		{"provider error", &scriptedClient{err: errors.New("upstream 500")}},
		{"unparsable response", &scriptedClient{responses: []string{"sure! here are some ideas:"}}},
		{"empty concept list", &scriptedClient{responses: []string{`{"concepts":[]}`}}},
		{"all concepts unusable", &scriptedClient{responses: []string{`{"concepts":[{"title":"","search_queries":[]}]}`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(tt.client, "test-model", 4, testLogger(t))
			if _, err := gen.GenerateConcepts(context.Background(), testRequest()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
