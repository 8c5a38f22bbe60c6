package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
)

func newTestIngest(repo *taskRepoFake, storage *storageFake, registry *progress.Registry) *IngestUseCase {
	analyzer := &analyzerFake{draft: domain.ReviewDraft{Status: "complete"}}
	normalizer := &normalizerFake{}
	pipeline := newTestPipeline(repo, normalizer, analyzer, nil, nil)
	return NewIngestUseCase(repo, storage, normalizer, registry, pipeline)
}

func upload(name, body string) ports.Upload {
	return ports.Upload{Filename: name, MimeType: "application/octet-stream", Body: strings.NewReader(body)}
}

func TestSubmitStartsRunAndSkipsDuplicates(t *testing.T) {
	repo := newTaskRepoFake()
	storage := newStorageFake()
	registry := progress.NewRegistry()
	uc := newTestIngest(repo, storage, registry)

	task, err := uc.Submit(context.Background(), existingReturn, []ports.Upload{
		upload("ANZ statement.pdf", "pdf-1"),
		upload("copy.pdf", "pdf-1"),
		upload("rates.csv", "a,b"),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	uc.Wait()

	if task.Status != domain.TaskCreated || len(task.Documents) != 2 {
		t.Fatalf("unexpected task snapshot %+v", task)
	}
	if task.Documents[0].File.Filename != "ANZ statement.pdf" || task.Documents[0].File.SHA256 != "sha-pdf-1" {
		t.Fatalf("unexpected stored file %+v", task.Documents[0].File)
	}
	if len(storage.deleted) != 1 || len(storage.saved) != 2 {
		t.Fatalf("expected duplicate removed from storage, saved=%d deleted=%v", len(storage.saved), storage.deleted)
	}
	for key := range storage.saved {
		if !strings.HasPrefix(key, task.ID+"/") || strings.Contains(key, " ") {
			t.Fatalf("unexpected storage key %q", key)
		}
	}
	if len(repo.documents) != 2 {
		t.Fatalf("expected 2 document rows, got %d", len(repo.documents))
	}

	ch, ok := registry.Get(task.ID)
	if !ok {
		t.Fatalf("expected progress channel registered")
	}
	events := drain(t, ch)
	if events[len(events)-1].Stage != domain.StageComplete {
		t.Fatalf("expected completed run, got %+v", events[len(events)-1])
	}
	stored, _ := repo.GetTask(context.Background(), task.ID)
	if stored.Status != domain.TaskDone {
		t.Fatalf("expected task done, got %s", stored.Status)
	}
}

func TestSubmitRejectsUnsupportedFormat(t *testing.T) {
	repo := newTaskRepoFake()
	storage := newStorageFake()
	registry := progress.NewRegistry()
	uc := newTestIngest(repo, storage, registry)

	_, err := uc.Submit(context.Background(), existingReturn, []ports.Upload{
		upload("anz.pdf", "x"),
		upload("notes.docx", "y"),
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) || !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected invalid input wrapping unsupported format, got %v", err)
	}
	if len(storage.saved) != 0 || len(repo.tasks) != 0 || registry.Len() != 0 {
		t.Fatalf("nothing may be stored for a rejected submission")
	}
}

func TestSubmitValidatesReturnContext(t *testing.T) {
	cases := []struct {
		name string
		edit func(*domain.ReturnContext)
	}{
		{name: "missing address", edit: func(rc *domain.ReturnContext) { rc.PropertyAddress = " " }},
		{name: "unknown property type", edit: func(rc *domain.ReturnContext) { rc.PropertyType = "castle" }},
		{name: "year zero", edit: func(rc *domain.ReturnContext) { rc.YearOfOwnership = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := existingReturn
			tc.edit(&rc)
			uc := newTestIngest(newTaskRepoFake(), newStorageFake(), progress.NewRegistry())
			_, err := uc.Submit(context.Background(), rc, []ports.Upload{upload("anz.pdf", "x")})
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSubmitFailsWhenStorageFails(t *testing.T) {
	storage := newStorageFake()
	storage.err = errors.New("disk full")
	uc := newTestIngest(newTaskRepoFake(), storage, progress.NewRegistry())

	_, err := uc.Submit(context.Background(), existingReturn, []ports.Upload{upload("anz.pdf", "x")})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../My Rates (2024).pdf"); got != "My_Rates__2024_.pdf" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
