package domain

import "time"

// TaskStatus tracks a pipeline run through its state machine.
type TaskStatus string

const (
	TaskCreated     TaskStatus = "created"
	TaskNormalizing TaskStatus = "normalizing"
	TaskAnalyzing   TaskStatus = "analyzing"
	TaskAggregating TaskStatus = "aggregating"
	TaskReviewing   TaskStatus = "reviewing"
	TaskDone        TaskStatus = "done"
	TaskFailed      TaskStatus = "failed"
)

func (s TaskStatus) Finished() bool {
	return s == TaskDone || s == TaskFailed
}

type Task struct {
	ID        string             `json:"id"`
	Status    TaskStatus         `json:"status"`
	Context   ReturnContext      `json:"context"`
	Documents []AnalyzedDocument `json:"documents"`
	Verdict   *ReviewVerdict     `json:"verdict,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
