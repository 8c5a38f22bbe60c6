package usecase

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

type learningWriterFake struct {
	stored []domain.Learning
}

func (f *learningWriterFake) UpsertLearning(_ context.Context, l domain.Learning) error {
	f.stored = append(f.stored, l)
	return nil
}

type learningIndexWriterFake struct {
	learnings []domain.Learning
	vectors   [][]float32
}

func (f *learningIndexWriterFake) IndexLearnings(_ context.Context, learnings []domain.Learning, vectors [][]float32) error {
	f.learnings = learnings
	f.vectors = vectors
	return nil
}

type batchEmbedderFake struct {
	texts []string
}

func (f *batchEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestSeedStoresAndIndexesLearnings(t *testing.T) {
	writer := &learningWriterFake{}
	index := &learningIndexWriterFake{}
	embedder := &batchEmbedderFake{}
	seeder := NewLearningSeeder(writer, index, embedder)

	n, err := seeder.Seed(context.Background(), []domain.Learning{
		{ID: "l-1", Category: "bank", Scenario: "transfer_between_accounts", Kind: domain.LearningLegitimate, Content: " Offset transfers are fine ", Keywords: []string{"offset"}},
		{Category: "insurance", Kind: domain.LearningFlagged, Content: "Home and contents is personal"},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != 2 || len(writer.stored) != 2 || len(index.vectors) != 2 {
		t.Fatalf("unexpected seed result n=%d stored=%d vectors=%d", n, len(writer.stored), len(index.vectors))
	}
	if writer.stored[1].ID == "" || writer.stored[1].CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", writer.stored[1])
	}
	want := []string{
		"bank. transfer_between_accounts. Offset transfers are fine. offset",
		"insurance. Home and contents is personal",
	}
	if diff := cmp.Diff(want, embedder.texts); diff != "" {
		t.Fatalf("embedded texts mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedRejectsInvalidLearnings(t *testing.T) {
	writer := &learningWriterFake{}
	seeder := NewLearningSeeder(writer, nil, nil)

	for _, l := range []domain.Learning{
		{Kind: domain.LearningFlagged},
		{Kind: "maybe", Content: "x"},
	} {
		if _, err := seeder.Seed(context.Background(), []domain.Learning{l}); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", l, err)
		}
	}
	if len(writer.stored) != 0 {
		t.Fatalf("nothing should be stored for invalid input")
	}
}
