// Package memory keeps review state in process memory for local runs and
// the CLI. Reads return copies so callers never share mutable state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

type TaskRepository struct {
	now func() time.Time

	mu       sync.RWMutex
	tasks    map[string]*domain.Task
	docIndex map[string]string
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		now:      time.Now,
		tasks:    make(map[string]*domain.Task),
		docIndex: make(map[string]string),
	}
}

func (r *TaskRepository) CreateTask(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; ok {
		return domain.WrapError(domain.ErrInvalidInput, "create review task", fmt.Errorf("duplicate id=%s", task.ID))
	}
	stored := cloneTask(task)
	stored.Documents = nil
	r.tasks[task.ID] = stored
	return nil
}

func (r *TaskRepository) GetTask(_ context.Context, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, notFound("get review task", id)
	}
	return cloneTask(task), nil
}

func (r *TaskRepository) UpdateStatus(_ context.Context, id string, status domain.TaskStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return notFound("update review task status", id)
	}
	task.Status = status
	task.Error = errMessage
	task.UpdatedAt = r.now().UTC()
	return nil
}

func (r *TaskRepository) SaveDocument(_ context.Context, file domain.StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[file.TaskID]
	if !ok {
		return notFound("insert review document", file.TaskID)
	}
	task.Documents = append(task.Documents, domain.AnalyzedDocument{File: file})
	r.docIndex[file.ID] = file.TaskID
	return nil
}

func (r *TaskRepository) SaveClassification(
	_ context.Context,
	fileID string,
	kind domain.ContentKind,
	result domain.ClassificationResult,
	errMessage string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[r.docIndex[fileID]]
	if !ok {
		return notFound("save classification", fileID)
	}
	for i := range task.Documents {
		if task.Documents[i].File.ID != fileID {
			continue
		}
		task.Documents[i].ContentKind = kind
		task.Documents[i].Classification = cloneClassification(result)
		task.Documents[i].Error = errMessage
		return nil
	}
	return notFound("save classification", fileID)
}

func (r *TaskRepository) SaveVerdict(_ context.Context, taskID string, verdict domain.ReviewVerdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return notFound("save verdict", taskID)
	}
	v := cloneVerdict(verdict)
	task.Verdict = &v
	task.UpdatedAt = r.now().UTC()
	return nil
}

// LearningStore holds feedback records seeded from a file or tests.
type LearningStore struct {
	mu        sync.RWMutex
	learnings map[string]domain.Learning
}

func NewLearningStore(seed ...domain.Learning) *LearningStore {
	s := &LearningStore{learnings: make(map[string]domain.Learning, len(seed))}
	for _, l := range seed {
		s.learnings[l.ID] = l
	}
	return s
}

func (s *LearningStore) UpsertLearning(_ context.Context, l domain.Learning) error {
	if l.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert learning", fmt.Errorf("empty id"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learnings[l.ID] = l
	return nil
}

// ListLearnings mirrors the database ordering: score first, newest next.
func (s *LearningStore) ListLearnings(_ context.Context, limit int) ([]domain.Learning, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	out := make([]domain.Learning, 0, len(s.learnings))
	for _, l := range s.learnings {
		out = append(out, l)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func notFound(operation, id string) error {
	return domain.WrapError(domain.ErrTaskNotFound, operation, fmt.Errorf("id=%s", id))
}

func cloneTask(task *domain.Task) *domain.Task {
	out := *task
	if task.Documents != nil {
		out.Documents = make([]domain.AnalyzedDocument, len(task.Documents))
		for i, doc := range task.Documents {
			doc.Classification = cloneClassification(doc.Classification)
			out.Documents[i] = doc
		}
	}
	if task.Verdict != nil {
		v := cloneVerdict(*task.Verdict)
		out.Verdict = &v
	}
	return &out
}

func cloneClassification(c domain.ClassificationResult) domain.ClassificationResult {
	c.Flags = cloneSlice(c.Flags)
	if c.ExtractedFields != nil {
		fields := make(map[string]string, len(c.ExtractedFields))
		for k, v := range c.ExtractedFields {
			fields[k] = v
		}
		c.ExtractedFields = fields
	}
	return c
}

func cloneVerdict(v domain.ReviewVerdict) domain.ReviewVerdict {
	v.MissingDocuments = cloneSlice(v.MissingDocuments)
	v.BlockingIssues = cloneSlice(v.BlockingIssues)
	v.Recommendations = cloneSlice(v.Recommendations)
	return v
}

// cloneSlice keeps empty slices non-nil so they still encode as [].
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
