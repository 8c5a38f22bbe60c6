package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
)

const defaultLearningsLimit = 20

// LearningService merges stored reviewer feedback with semantic matches for
// the return under review. Either source may be nil.
type LearningService struct {
	store    ports.LearningStore
	index    ports.LearningIndex
	embedder ports.Embedder
	limit    int
}

func NewLearningService(store ports.LearningStore, index ports.LearningIndex, embedder ports.Embedder, limit int) *LearningService {
	if limit <= 0 {
		limit = defaultLearningsLimit
	}
	return &LearningService{
		store:    store,
		index:    index,
		embedder: embedder,
		limit:    limit,
	}
}

func (s *LearningService) Retrieve(ctx context.Context, returnCtx domain.ReturnContext) ([]domain.Learning, error) {
	var errs []error

	semantic, err := s.searchSemantic(ctx, returnCtx)
	if err != nil {
		slog.Warn("learnings_semantic_search_failed", "error", err)
		errs = append(errs, err)
	}

	var stored []domain.Learning
	if s.store != nil {
		stored, err = s.store.ListLearnings(ctx, s.limit)
		if err != nil {
			slog.Warn("learnings_store_failed", "error", err)
			errs = append(errs, fmt.Errorf("list learnings: %w", err))
		}
	}

	merged := mergeLearnings(semantic, stored)
	if len(merged) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(merged) > s.limit {
		merged = merged[:s.limit]
	}
	return merged, nil
}

func (s *LearningService) searchSemantic(ctx context.Context, returnCtx domain.ReturnContext) ([]domain.Learning, error) {
	if s.index == nil || s.embedder == nil {
		return nil, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, learningQuery(returnCtx))
	if err != nil {
		return nil, fmt.Errorf("embed learnings query: %w", err)
	}
	hits, err := s.index.SearchLearnings(ctx, vector, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search learnings: %w", err)
	}
	return hits, nil
}

func learningQuery(rc domain.ReturnContext) string {
	propertyType := rc.PropertyType
	if propertyType == "" {
		propertyType = domain.PropertyExisting
	}
	gst := "not GST registered"
	if rc.GSTRegistered {
		gst = "GST registered"
	}
	return fmt.Sprintf("rental property tax return document review, %s property, year %d of ownership, %s, bank loan insurance settlement rates",
		propertyType, rc.YearOfOwnership, gst)
}

// mergeLearnings keeps the highest score per id, ordered by score with
// semantic hits first on ties.
func mergeLearnings(semantic, stored []domain.Learning) []domain.Learning {
	byID := make(map[string]int)
	out := make([]domain.Learning, 0, len(semantic)+len(stored))
	for _, group := range [][]domain.Learning{semantic, stored} {
		for _, l := range group {
			if l.ID == "" {
				out = append(out, l)
				continue
			}
			if idx, ok := byID[l.ID]; ok {
				if l.Score > out[idx].Score {
					out[idx].Score = l.Score
				}
				continue
			}
			byID[l.ID] = len(out)
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
