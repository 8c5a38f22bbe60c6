package domain

import "time"

type LearningKind string

const (
	LearningLegitimate LearningKind = "legitimate"
	LearningFlagged    LearningKind = "flagged"
)

// Learning is a prior human feedback record injected as classification guidance.
type Learning struct {
	ID        string       `json:"id" yaml:"id"`
	Category  string       `json:"category" yaml:"category"`
	Scenario  string       `json:"scenario,omitempty" yaml:"scenario"`
	Kind      LearningKind `json:"kind" yaml:"kind"`
	Content   string       `json:"content" yaml:"content"`
	Keywords  []string     `json:"keywords,omitempty" yaml:"keywords"`
	Score     float64      `json:"score" yaml:"score"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
}
