package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

type TaskRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	contextJSON, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("marshal return context: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO review_tasks (id, status, return_context, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, task.ID, string(task.Status), contextJSON, task.Error, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create review task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, return_context, verdict, error_message, created_at, updated_at
FROM review_tasks
WHERE id = $1
`, id)

	var (
		task       domain.Task
		status     string
		contextRaw []byte
		verdictRaw []byte
	)
	err := row.Scan(&task.ID, &status, &contextRaw, &verdictRaw, &task.Error, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTaskNotFound, "get review task", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan review task: %w", err)
	}
	task.Status = domain.TaskStatus(status)
	if err := json.Unmarshal(contextRaw, &task.Context); err != nil {
		return nil, fmt.Errorf("unmarshal return context: %w", err)
	}
	if len(verdictRaw) > 0 {
		var verdict domain.ReviewVerdict
		if err := json.Unmarshal(verdictRaw, &verdict); err != nil {
			return nil, fmt.Errorf("unmarshal verdict: %w", err)
		}
		task.Verdict = &verdict
	}

	docs, err := r.listDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Documents = docs
	return &task, nil
}

func (r *TaskRepository) listDocuments(ctx context.Context, taskID string) ([]domain.AnalyzedDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, task_id, filename, mime_type, storage_path, size_bytes, sha256, content_kind, classification, error_message, created_at
FROM review_documents
WHERE task_id = $1
ORDER BY created_at, id
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list review documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnalyzedDocument, 0)
	for rows.Next() {
		var (
			doc               domain.AnalyzedDocument
			kind              string
			classificationRaw []byte
		)
		if err := rows.Scan(
			&doc.File.ID, &doc.File.TaskID, &doc.File.Filename, &doc.File.MimeType, &doc.File.Path,
			&doc.File.Size, &doc.File.SHA256, &kind, &classificationRaw, &doc.Error, &doc.File.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review document: %w", err)
		}
		doc.ContentKind = domain.ContentKind(kind)
		if len(classificationRaw) > 0 {
			if err := json.Unmarshal(classificationRaw, &doc.Classification); err != nil {
				return nil, fmt.Errorf("unmarshal classification: %w", err)
			}
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review documents: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE review_tasks
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update review task status: %w", err)
	}
	return requireRow(result, "update review task status", id)
}

func (r *TaskRepository) SaveDocument(ctx context.Context, file domain.StoredFile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO review_documents (id, task_id, filename, mime_type, storage_path, size_bytes, sha256, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
`, file.ID, file.TaskID, file.Filename, file.MimeType, file.Path, file.Size, file.SHA256, file.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review document: %w", err)
	}
	return nil
}

func (r *TaskRepository) SaveClassification(
	ctx context.Context,
	fileID string,
	kind domain.ContentKind,
	result domain.ClassificationResult,
	errMessage string,
) error {
	classificationJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE review_documents
SET content_kind = $2, classification = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, fileID, string(kind), classificationJSON, errMessage, r.now().UTC())
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return requireRow(res, "save classification", fileID)
}

func (r *TaskRepository) SaveVerdict(ctx context.Context, taskID string, verdict domain.ReviewVerdict) error {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE review_tasks
SET verdict = $2, updated_at = $3
WHERE id = $1
`, taskID, verdictJSON, r.now().UTC())
	if err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}
	return requireRow(res, "save verdict", taskID)
}

func requireRow(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrTaskNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
