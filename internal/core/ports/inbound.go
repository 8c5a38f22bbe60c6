package ports

import (
	"context"
	"io"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

// Upload is a single file received by the ingestion boundary.
type Upload struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// ReviewSubmitter is the inbound contract for starting a review run.
type ReviewSubmitter interface {
	Submit(ctx context.Context, returnCtx domain.ReturnContext, uploads []Upload) (*domain.Task, error)
}

// TaskReader is the inbound read model for review task state.
type TaskReader interface {
	GetTask(ctx context.Context, id string) (*domain.Task, error)
}
