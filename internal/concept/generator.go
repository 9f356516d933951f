// Package concept provides the LLM-backed concept, selection and SEO services.
package concept

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/llm"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

const conceptSystemPrompt = `You are a gift curator with a sharp sense of humor.
You design themed gift bundles from a short description of the recipient.
Respond with strict JSON only, no prose around it.`

// Generator produces themed gift concepts for a recipient description.
type Generator struct {
	client llm.Client
	model  string
	count  int
	logger *logger.Logger
}

// NewGenerator creates a concept generator. count is the number of concepts
// requested per generation.
func NewGenerator(client llm.Client, modelName string, count int, log *logger.Logger) *Generator {
	return &Generator{client: client, model: modelName, count: count, logger: log}
}

type conceptPayload struct {
	Concepts []struct {
		Title         string   `json:"title"`
		Tagline       string   `json:"tagline"`
		Description   string   `json:"description"`
		SearchQueries []string `json:"search_queries"`
	} `json:"concepts"`
}

// GenerateConcepts asks the LLM for themed concepts. An error or an empty
// result is fatal to the request; there is no degraded fallback for missing
// concepts.
func (g *Generator) GenerateConcepts(ctx context.Context, req model.GenerationRequest) ([]model.Concept, error) {
	prompt := fmt.Sprintf(`Design %d themed gift bundle concepts.

Recipient: %s
Occasion: %s
Humor style: %s
Budget per product: $%.2f to $%.2f

Each concept needs a punchy title, a one-line tagline, a two-sentence
description, and 3 to 4 short product search queries that would surface real
purchasable products for the theme.

Respond as JSON: {"concepts":[{"title":"...","tagline":"...","description":"...","search_queries":["...","..."]}]}`,
		g.count, req.Description, orNone(req.Occasion), req.HumorStyle, req.MinPrice, req.MaxPrice)

	resp, err := g.client.Complete(ctx, &llm.CompletionRequest{
		Model:       g.model,
		System:      conceptSystemPrompt,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.9,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("concept generation failed: %w", err)
	}
	metrics.RecordLLMTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	var payload conceptPayload
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &payload); err != nil {
		return nil, fmt.Errorf("concept generation returned unparsable response: %w", err)
	}

	concepts := make([]model.Concept, 0, len(payload.Concepts))
	for _, c := range payload.Concepts {
		if c.Title == "" || len(c.SearchQueries) == 0 {
			continue
		}
		concepts = append(concepts, model.Concept{
			Title:         c.Title,
			Tagline:       c.Tagline,
			Description:   c.Description,
			SearchQueries: c.SearchQueries,
		})
	}
	if len(concepts) == 0 {
		return nil, fmt.Errorf("concept generation returned no usable concepts")
	}
	if len(concepts) > g.count {
		concepts = concepts[:g.count]
	}

	g.logger.Info("concepts generated",
		zap.Int("count", len(concepts)),
		zap.String("model", resp.Model),
	)
	return concepts, nil
}

func orNone(s string) string {
	if s == "" {
		return "none given"
	}
	return s
}

// extractJSON strips markdown code fences some models wrap around JSON even
// when asked not to.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if i := strings.LastIndex(content, "```"); i >= 0 {
			content = content[:i]
		}
	}
	return strings.TrimSpace(content)
}
