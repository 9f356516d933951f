package concept

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/llm"
	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

// SEOWriter synthesizes page copy for a persisted bundle. Best-effort: a
// failure yields empty content and is only logged.
type SEOWriter struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// NewSEOWriter creates an SEOWriter.
func NewSEOWriter(client llm.Client, modelName string, log *logger.Logger) *SEOWriter {
	return &SEOWriter{client: client, model: modelName, logger: log}
}

// Write produces a page title, meta description and intro paragraph for the
// generated bundles.
func (w *SEOWriter) Write(ctx context.Context, req model.GenerationRequest, ideas []model.GiftIdea) model.SEOContent {
	titles := make([]string, len(ideas))
	for i, idea := range ideas {
		titles[i] = idea.Concept.Title
	}

	prompt := fmt.Sprintf(`Write page copy for a gift guide page.
Recipient: %s
Bundle themes: %v

Respond as JSON: {"page_title":"...","meta_description":"...","intro":"..."}.
Keep the title under 60 characters and the meta description under 155.`,
		req.Description, titles)

	resp, err := w.client.Complete(ctx, &llm.CompletionRequest{
		Model:       w.model,
		Messages:    []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   512,
		JSONOnly:    true,
	})
	if err != nil {
		w.logger.Warn("seo synthesis failed", zap.Error(err))
		return model.SEOContent{}
	}

	var content model.SEOContent
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &content); err != nil {
		w.logger.Warn("seo synthesis returned unparsable response", zap.Error(err))
		return model.SEOContent{}
	}
	return content
}
