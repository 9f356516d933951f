package concept

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/37-Inc/goose.gifts-sub000/internal/llm"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

const selectorSystemPrompt = `You pick the products that best fit a gift bundle
theme. Respond with strict JSON only.`

// Selector performs the batched product-selection step: one LLM call covering
// every concept of a generation request. Its failure is fatal to the request;
// without selection there is no meaningful curation.
type Selector struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// NewSelector creates a Selector.
func NewSelector(client llm.Client, modelName string, log *logger.Logger) *Selector {
	return &Selector{client: client, model: modelName, logger: log}
}

type selectionPayload struct {
	Selections [][]int `json:"selections"`
}

// SelectBest returns, for each concept in order, the chosen candidate subset
// (at most k products each). The chosen products keep the candidates' order.
func (s *Selector) SelectBest(ctx context.Context, concepts []model.ConceptCandidates, k int) ([][]model.Product, error) {
	if len(concepts) == 0 {
		return nil, nil
	}

	prompt := buildSelectionPrompt(concepts, k)

	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		Model:       s.model,
		System:      selectorSystemPrompt,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("product selection failed: %w", err)
	}
	metrics.RecordLLMTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	var payload selectionPayload
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &payload); err != nil {
		return nil, fmt.Errorf("product selection returned unparsable response: %w", err)
	}
	if len(payload.Selections) != len(concepts) {
		return nil, fmt.Errorf("product selection returned %d lists for %d concepts",
			len(payload.Selections), len(concepts))
	}

	out := make([][]model.Product, len(concepts))
	for i, picks := range payload.Selections {
		candidates := concepts[i].Candidates
		chosen := make([]model.Product, 0, k)
		seen := make(map[int]struct{}, len(picks))
		for _, idx := range picks {
			if idx < 0 || idx >= len(candidates) {
				continue
			}
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			chosen = append(chosen, candidates[idx])
			if len(chosen) == k {
				break
			}
		}
		out[i] = chosen
	}
	return out, nil
}

// buildSelectionPrompt writes a compact digest of every concept's candidates.
// Digests stay terse so a request with four concepts and dozens of candidates
// fits comfortably in one call.
func buildSelectionPrompt(concepts []model.ConceptCandidates, k int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "For each gift bundle concept below, pick the %d candidate products that best fit the theme. Prefer funny, on-theme items with good ratings.\n\n", k)

	for i, cc := range concepts {
		fmt.Fprintf(&b, "Concept %d: %s (%s)\n", i, cc.Concept.Title, cc.Concept.Tagline)
		for j, p := range cc.Candidates {
			fmt.Fprintf(&b, "  [%d] %s ($%.2f", j, p.Title, p.Price)
			if p.Rating != nil {
				fmt.Fprintf(&b, ", %.1f stars", *p.Rating)
			}
			b.WriteString(")\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Respond as JSON with one index list per concept, in concept order: {\"selections\":[[0,2],[1,3]]}. At most %d indexes per list. Use an empty list for a concept with no suitable candidates.", k)
	return b.String()
}
