package ports

import (
	"context"
	"io"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

// TaskRepository persists review tasks, their documents, and verdicts.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errMessage string) error
	SaveDocument(ctx context.Context, file domain.StoredFile) error
	SaveClassification(ctx context.Context, fileID string, kind domain.ContentKind, result domain.ClassificationResult, errMessage string) error
	SaveVerdict(ctx context.Context, taskID string, verdict domain.ReviewVerdict) error
}

// ObjectStorage stores uploaded source documents on a local filesystem path.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (StoredObject, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StoredObject describes bytes written by ObjectStorage.
type StoredObject struct {
	Path   string
	Size   int64
	SHA256 string
}

// ContentNormalizer converts a stored file into analyzable content.
type ContentNormalizer interface {
	Supports(filename string) bool
	Normalize(ctx context.Context, path, filename string) (domain.NormalizedContent, error)
}

// DocumentAnalyzer is the external AI classification capability.
type DocumentAnalyzer interface {
	Classify(ctx context.Context, content domain.NormalizedContent, returnCtx domain.ReturnContext, learnings []domain.Learning) (domain.ClassificationResult, error)
	ReviewAll(ctx context.Context, summaries []domain.DocumentSummary, returnCtx domain.ReturnContext, rules domain.ReviewRules) (domain.ReviewDraft, error)
}

// LearningStore lists stored feedback records.
type LearningStore interface {
	ListLearnings(ctx context.Context, limit int) ([]domain.Learning, error)
}

// LearningIndex searches feedback records semantically.
type LearningIndex interface {
	SearchLearnings(ctx context.Context, queryVector []float32, limit int) ([]domain.Learning, error)
}

// Embedder builds vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LearningRetriever resolves the learnings relevant to a return.
type LearningRetriever interface {
	Retrieve(ctx context.Context, returnCtx domain.ReturnContext) ([]domain.Learning, error)
}

// ReviewNotifier announces finished reviews to other services.
type ReviewNotifier interface {
	PublishReviewCompleted(ctx context.Context, taskID string, verdict domain.ReviewVerdict) error
}

// ProgressSink receives pipeline milestones for a single task.
type ProgressSink interface {
	Emit(stage domain.Stage, message string, detail map[string]any, subProgress float64) error
	Complete(detail map[string]any, message string) error
	Fail(err error) error
}

// LearningWriter persists feedback records.
type LearningWriter interface {
	UpsertLearning(ctx context.Context, learning domain.Learning) error
}

// LearningIndexWriter stores feedback records with their embeddings.
type LearningIndexWriter interface {
	IndexLearnings(ctx context.Context, learnings []domain.Learning, vectors [][]float32) error
}

// BatchEmbedder builds one vector per input text.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
