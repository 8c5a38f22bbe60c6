package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
)

// LearningSeeder loads reviewer feedback into the store and, when
// configured, the semantic index.
type LearningSeeder struct {
	writer   ports.LearningWriter
	index    ports.LearningIndexWriter
	embedder ports.BatchEmbedder
	now      func() time.Time
}

func NewLearningSeeder(writer ports.LearningWriter, index ports.LearningIndexWriter, embedder ports.BatchEmbedder) *LearningSeeder {
	return &LearningSeeder{writer: writer, index: index, embedder: embedder, now: time.Now}
}

// Seed validates and stores learnings, returning how many were written.
func (s *LearningSeeder) Seed(ctx context.Context, learnings []domain.Learning) (int, error) {
	prepared := make([]domain.Learning, 0, len(learnings))
	for i, l := range learnings {
		l.Content = strings.TrimSpace(l.Content)
		if l.Content == "" {
			return 0, domain.WrapError(domain.ErrInvalidInput, "seed learnings", fmt.Errorf("learning %d has no content", i))
		}
		if l.Kind != domain.LearningLegitimate && l.Kind != domain.LearningFlagged {
			return 0, domain.WrapError(domain.ErrInvalidInput, "seed learnings", fmt.Errorf("learning %d has kind %q", i, l.Kind))
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = s.now().UTC()
		}
		prepared = append(prepared, l)
	}

	for _, l := range prepared {
		if err := s.writer.UpsertLearning(ctx, l); err != nil {
			return 0, fmt.Errorf("store learning %s: %w", l.ID, err)
		}
	}

	if s.index != nil && s.embedder != nil && len(prepared) > 0 {
		texts := make([]string, len(prepared))
		for i, l := range prepared {
			texts[i] = learningText(l)
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return len(prepared), fmt.Errorf("embed learnings: %w", err)
		}
		if err := s.index.IndexLearnings(ctx, prepared, vectors); err != nil {
			return len(prepared), fmt.Errorf("index learnings: %w", err)
		}
	}

	slog.Info("learnings_seeded", "count", len(prepared), "indexed", s.index != nil)
	return len(prepared), nil
}

func learningText(l domain.Learning) string {
	parts := []string{l.Category, l.Scenario, l.Content}
	if len(l.Keywords) > 0 {
		parts = append(parts, strings.Join(l.Keywords, " "))
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ". ")
}
