package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

type learningStoreFake struct {
	learnings []domain.Learning
	err       error
}

func (f *learningStoreFake) ListLearnings(context.Context, int) ([]domain.Learning, error) {
	return f.learnings, f.err
}

type learningIndexFake struct {
	hits   []domain.Learning
	err    error
	vector []float32
}

func (f *learningIndexFake) SearchLearnings(_ context.Context, vector []float32, _ int) ([]domain.Learning, error) {
	f.vector = vector
	return f.hits, f.err
}

type embedderFake struct {
	err error
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func TestRetrieveMergesStoredAndSemanticLearnings(t *testing.T) {
	store := &learningStoreFake{learnings: []domain.Learning{
		{ID: "a", Content: "stored a", Score: 0.2},
		{ID: "b", Content: "stored b", Score: 0.5},
	}}
	index := &learningIndexFake{hits: []domain.Learning{
		{ID: "a", Content: "semantic a", Score: 0.8},
		{ID: "c", Content: "semantic c", Score: 0.4},
	}}
	svc := NewLearningService(store, index, &embedderFake{}, 10)

	got, err := svc.Retrieve(context.Background(), existingReturn)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(index.vector) != 2 {
		t.Fatalf("expected embedded query vector")
	}
	ids := ""
	for _, l := range got {
		ids += l.ID
	}
	if ids != "abc" || got[0].Score != 0.8 || got[0].Content != "semantic a" {
		t.Fatalf("unexpected merge result %+v", got)
	}
}

func TestRetrieveToleratesOneFailingSource(t *testing.T) {
	store := &learningStoreFake{learnings: []domain.Learning{{ID: "a", Content: "stored", Score: 0.5}}}
	svc := NewLearningService(store, &learningIndexFake{}, &embedderFake{err: errors.New("ollama down")}, 10)

	got, err := svc.Retrieve(context.Background(), existingReturn)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected stored learnings despite embed failure, got %v %v", got, err)
	}
}

func TestRetrieveFailsWhenEverySourceFails(t *testing.T) {
	svc := NewLearningService(&learningStoreFake{err: errors.New("db down")}, &learningIndexFake{err: errors.New("qdrant down")}, &embedderFake{}, 10)
	if _, err := svc.Retrieve(context.Background(), existingReturn); err == nil {
		t.Fatalf("expected error when all sources fail")
	}
}
