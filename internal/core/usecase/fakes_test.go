package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
)

type taskRepoFake struct {
	mu              sync.Mutex
	tasks           map[string]*domain.Task
	documents       []domain.StoredFile
	statuses        []domain.TaskStatus
	classifications map[string]domain.ClassificationResult
	verdict         *domain.ReviewVerdict
	createErr       error
}

func newTaskRepoFake() *taskRepoFake {
	return &taskRepoFake{
		tasks:           make(map[string]*domain.Task),
		classifications: make(map[string]domain.ClassificationResult),
	}
}

func (f *taskRepoFake) CreateTask(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyTask := *task
	f.tasks[task.ID] = &copyTask
	return nil
}

func (f *taskRepoFake) GetTask(_ context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copyTask := *task
	return &copyTask, nil
}

func (f *taskRepoFake) UpdateStatus(_ context.Context, id string, status domain.TaskStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if task, ok := f.tasks[id]; ok {
		task.Status = status
		task.Error = errMessage
	}
	return nil
}

func (f *taskRepoFake) SaveDocument(_ context.Context, file domain.StoredFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, file)
	return nil
}

func (f *taskRepoFake) SaveClassification(_ context.Context, fileID string, _ domain.ContentKind, result domain.ClassificationResult, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifications[fileID] = result
	return nil
}

func (f *taskRepoFake) SaveVerdict(_ context.Context, _ string, verdict domain.ReviewVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdict = &verdict
	return nil
}

func (f *taskRepoFake) statusHistory() []domain.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TaskStatus(nil), f.statuses...)
}

type normalizerFake struct {
	contents map[string]domain.NormalizedContent
	errs     map[string]error
}

func (f *normalizerFake) Supports(filename string) bool {
	for _, ext := range []string{".pdf", ".csv", ".png"} {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

func (f *normalizerFake) Normalize(_ context.Context, _ string, filename string) (domain.NormalizedContent, error) {
	if err := f.errs[filename]; err != nil {
		return domain.NormalizedContent{}, err
	}
	if content, ok := f.contents[filename]; ok {
		return content, nil
	}
	return domain.NormalizedContent{Kind: domain.ContentDigitalPDF, Text: filename}, nil
}

// analyzerFake classifies by the normalized text.
type analyzerFake struct {
	mu        sync.Mutex
	results   map[string]domain.ClassificationResult
	errs      map[string]error
	draft     domain.ReviewDraft
	reviewErr error

	reviewed      []domain.DocumentSummary
	reviewedRules domain.ReviewRules
	learnings     []domain.Learning
}

func (f *analyzerFake) Classify(_ context.Context, content domain.NormalizedContent, _ domain.ReturnContext, learnings []domain.Learning) (domain.ClassificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learnings = learnings
	if err := f.errs[content.Text]; err != nil {
		return domain.ClassificationResult{}, err
	}
	if result, ok := f.results[content.Text]; ok {
		return result, nil
	}
	return domain.ClassificationResult{DocumentType: domain.DocOther, Confidence: 0.5, Flags: []string{}, ExtractedFields: map[string]string{}}, nil
}

func (f *analyzerFake) ReviewAll(_ context.Context, summaries []domain.DocumentSummary, _ domain.ReturnContext, rules domain.ReviewRules) (domain.ReviewDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewed = summaries
	f.reviewedRules = rules
	if f.reviewErr != nil {
		return domain.ReviewDraft{}, f.reviewErr
	}
	return f.draft, nil
}

type learningRetrieverFake struct {
	learnings []domain.Learning
	err       error
}

func (f *learningRetrieverFake) Retrieve(context.Context, domain.ReturnContext) ([]domain.Learning, error) {
	return f.learnings, f.err
}

type notifierFake struct {
	mu      sync.Mutex
	taskIDs []string
	err     error
}

func (f *notifierFake) PublishReviewCompleted(_ context.Context, taskID string, _ domain.ReviewVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskIDs = append(f.taskIDs, taskID)
	return f.err
}

type storageFake struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	err     error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (ports.StoredObject, error) {
	if f.err != nil {
		return ports.StoredObject{}, f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return ports.StoredObject{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = raw
	return ports.StoredObject{Path: "/data/" + key, Size: int64(len(raw)), SHA256: "sha-" + string(raw)}, nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

type observerFake struct {
	mu       sync.Mutex
	started  int
	finished []domain.TaskStatus
	outcomes []string
}

func (f *observerFake) StartRun() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *observerFake) FinishRun(status domain.TaskStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, status)
}

func (f *observerFake) ObserveDocument(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

// drain collects every event of a channel whose producer already finished.
func drain(t *testing.T, ch *progress.Channel) []domain.ProgressEvent {
	t.Helper()
	sub, err := ch.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	var events []domain.ProgressEvent
	err = sub.Stream(context.Background(), 50*time.Millisecond, func(ev domain.ProgressEvent) error {
		events = append(events, ev)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	return events
}
