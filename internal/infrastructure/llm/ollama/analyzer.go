package ollama

import (
	"context"
	"log/slog"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

// Analyzer classifies single documents and reviews whole returns.
type Analyzer struct {
	client           *Client
	minLearningScore float64
	maxImageEdge     int
}

func NewAnalyzer(client *Client, minLearningScore float64) *Analyzer {
	if minLearningScore <= 0 {
		minLearningScore = DefaultLearningMinScore
	}
	return &Analyzer{
		client:           client,
		minLearningScore: minLearningScore,
		maxImageEdge:     MaxImageEdge,
	}
}

// Classify returns the fallback classification when the service answers with
// something that cannot be decoded. Transport failures are returned.
func (a *Analyzer) Classify(
	ctx context.Context,
	content domain.NormalizedContent,
	returnCtx domain.ReturnContext,
	learnings []domain.Learning,
) (domain.ClassificationResult, error) {
	if content.IsEmpty() {
		return domain.FallbackClassification("no text or page images could be extracted"), nil
	}

	images := make([]string, 0, len(content.Images))
	for _, ref := range content.Images {
		encoded, err := prepareImage(ref, a.maxImageEdge)
		if err != nil {
			return domain.ClassificationResult{}, err
		}
		images = append(images, encoded)
	}

	relevant := FilterLearnings(learnings, a.minLearningScore)
	raw, err := a.client.generate(ctx, "classify", generateRequest{
		System: classificationSystemPrompt(returnCtx),
		Prompt: buildClassificationPrompt(content, relevant),
		Images: images,
		Format: "json",
	})
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	result, err := decodeClassification(raw)
	if err != nil {
		slog.Warn("classification_parse_failed",
			"content_kind", content.Kind,
			"response_chars", len(raw),
			"error", err,
		)
		return domain.FallbackClassification("analysis response could not be parsed"), nil
	}
	slog.Debug("document_classified",
		"document_type", result.DocumentType,
		"confidence", result.Confidence,
		"learnings", len(relevant),
	)
	return result, nil
}

// ReviewAll asks for a holistic completeness judgment. Unlike Classify, a
// response that cannot be decoded is an error.
func (a *Analyzer) ReviewAll(
	ctx context.Context,
	summaries []domain.DocumentSummary,
	returnCtx domain.ReturnContext,
	rules domain.ReviewRules,
) (domain.ReviewDraft, error) {
	raw, err := a.client.generate(ctx, "review", generateRequest{
		System: reviewSystemPrompt(returnCtx),
		Prompt: buildReviewPrompt(summaries, rules),
		Format: "json",
	})
	if err != nil {
		return domain.ReviewDraft{}, err
	}
	return decodeReview(raw)
}
