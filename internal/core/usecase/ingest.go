package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
)

// IngestUseCase stores uploads, records the task, opens its progress channel
// and starts the pipeline in the background.
type IngestUseCase struct {
	repo       ports.TaskRepository
	storage    ports.ObjectStorage
	normalizer ports.ContentNormalizer
	registry   *progress.Registry
	pipeline   *Pipeline

	runs sync.WaitGroup
}

func NewIngestUseCase(
	repo ports.TaskRepository,
	storage ports.ObjectStorage,
	normalizer ports.ContentNormalizer,
	registry *progress.Registry,
	pipeline *Pipeline,
) *IngestUseCase {
	return &IngestUseCase{
		repo:       repo,
		storage:    storage,
		normalizer: normalizer,
		registry:   registry,
		pipeline:   pipeline,
	}
}

func (uc *IngestUseCase) Submit(ctx context.Context, returnCtx domain.ReturnContext, uploads []ports.Upload) (*domain.Task, error) {
	returnCtx, err := uc.validate(returnCtx, uploads)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:        uuid.NewString(),
		Status:    domain.TaskCreated,
		Context:   returnCtx,
		Documents: []domain.AnalyzedDocument{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	files, err := uc.store(ctx, task.ID, uploads, now)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		task.Documents = append(task.Documents, domain.AnalyzedDocument{File: f})
	}

	if err := uc.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create review task: %w", err)
	}
	for _, f := range files {
		if err := uc.repo.SaveDocument(ctx, f); err != nil {
			return nil, fmt.Errorf("save document metadata: %w", err)
		}
	}

	channel, err := uc.registry.Open(task.ID)
	if err != nil {
		return nil, fmt.Errorf("open progress channel: %w", err)
	}

	snapshot := *task
	uc.runs.Add(1)
	go func() {
		defer uc.runs.Done()
		// The run outlives the upload request.
		runCtx := context.WithoutCancel(ctx)
		_, _ = uc.pipeline.Run(runCtx, task, files, channel)
	}()

	slog.Info("review_submitted", "task_id", task.ID, "documents", len(files))
	return &snapshot, nil
}

// Wait blocks until every started run has finished.
func (uc *IngestUseCase) Wait() {
	uc.runs.Wait()
}

func (uc *IngestUseCase) validate(rc domain.ReturnContext, uploads []ports.Upload) (domain.ReturnContext, error) {
	if len(uploads) == 0 {
		return rc, domain.WrapError(domain.ErrInvalidInput, "submit review", errors.New("no documents uploaded"))
	}
	for _, u := range uploads {
		if !uc.normalizer.Supports(u.Filename) {
			return rc, domain.WrapError(domain.ErrInvalidInput, "submit review",
				domain.WrapError(domain.ErrUnsupportedFormat, u.Filename, fmt.Errorf("extension %q", filepath.Ext(u.Filename))))
		}
	}

	rc.ClientName = strings.TrimSpace(rc.ClientName)
	rc.PropertyAddress = strings.TrimSpace(rc.PropertyAddress)
	rc.TaxYear = strings.TrimSpace(rc.TaxYear)
	if rc.PropertyAddress == "" {
		return rc, domain.WrapError(domain.ErrInvalidInput, "submit review", errors.New("property address is required"))
	}
	switch rc.PropertyType {
	case "":
		rc.PropertyType = domain.PropertyExisting
	case domain.PropertyExisting, domain.PropertyNewBuild:
	default:
		return rc, domain.WrapError(domain.ErrInvalidInput, "submit review", fmt.Errorf("unknown property type %q", rc.PropertyType))
	}
	if rc.YearOfOwnership < 1 {
		return rc, domain.WrapError(domain.ErrInvalidInput, "submit review", errors.New("year of ownership must be at least 1"))
	}
	return rc, nil
}

// store saves every upload. Files whose content repeats an earlier upload of
// the same task are dropped.
func (uc *IngestUseCase) store(ctx context.Context, taskID string, uploads []ports.Upload, now time.Time) ([]domain.StoredFile, error) {
	files := make([]domain.StoredFile, 0, len(uploads))
	seen := make(map[string]string, len(uploads))
	for _, u := range uploads {
		fileID := uuid.NewString()
		key := fmt.Sprintf("%s/%s_%s", taskID, fileID, sanitizeFilename(u.Filename))

		obj, err := uc.storage.Save(ctx, key, u.Body)
		if err != nil {
			return nil, fmt.Errorf("save to object storage: %w", err)
		}
		if first, dup := seen[obj.SHA256]; dup {
			slog.Info("duplicate_upload_skipped", "task_id", taskID, "filename", u.Filename, "duplicate_of", first)
			if err := uc.storage.Delete(ctx, key); err != nil {
				slog.Warn("duplicate_upload_cleanup_failed", "key", key, "error", err)
			}
			continue
		}
		seen[obj.SHA256] = u.Filename

		files = append(files, domain.StoredFile{
			ID:        fileID,
			TaskID:    taskID,
			Filename:  filepath.Base(u.Filename),
			MimeType:  u.MimeType,
			Path:      obj.Path,
			Size:      obj.Size,
			SHA256:    obj.SHA256,
			CreatedAt: now,
		})
	}
	return files, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
