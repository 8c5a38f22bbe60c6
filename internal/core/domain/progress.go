package domain

import "time"

// Stage is a named phase of a pipeline run mapped to a progress band.
type Stage string

const (
	StageInitializing        Stage = "initializing"
	StageLoadingDocuments    Stage = "loading_documents"
	StageClassifying         Stage = "classifying"
	StageExtractingBatch     Stage = "extracting_batch"
	StageMergingBatches      Stage = "merging_batches"
	StageVerification        Stage = "verification"
	StageReadingTransactions Stage = "reading_transactions"
	StageApplyingFeedback    Stage = "applying_feedback"
	StageQueryingRAG         Stage = "querying_rag"
	StageCategorizing        Stage = "categorizing"
	StageApplyingTaxRules    Stage = "applying_tax_rules"
	StageGeneratingSummaries Stage = "generating_summaries"
	StageFinalizing          Stage = "finalizing"
	StageComplete            Stage = "complete"
	StageError               Stage = "error"
)

// StageBand is the [Start, End] percentage range owned by a stage.
type StageBand struct {
	Stage Stage
	Start float64
	End   float64
}

var stageBands = []StageBand{
	{StageInitializing, 0, 5},
	{StageLoadingDocuments, 5, 10},
	{StageClassifying, 10, 15},
	{StageExtractingBatch, 15, 60},
	{StageMergingBatches, 60, 65},
	{StageVerification, 65, 70},
	{StageReadingTransactions, 70, 75},
	{StageApplyingFeedback, 75, 78},
	{StageQueryingRAG, 78, 82},
	{StageCategorizing, 82, 90},
	{StageApplyingTaxRules, 90, 94},
	{StageGeneratingSummaries, 94, 98},
	{StageFinalizing, 98, 100},
	{StageComplete, 100, 100},
	{StageError, 0, 0},
}

// StageBands returns the fixed ordered stage table.
func StageBands() []StageBand {
	out := make([]StageBand, len(stageBands))
	copy(out, stageBands)
	return out
}

func (s Stage) Band() (StageBand, bool) {
	for _, band := range stageBands {
		if band.Stage == s {
			return band, true
		}
	}
	return StageBand{}, false
}

func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

type ProgressEvent struct {
	TaskID    string         `json:"task_id"`
	Stage     Stage          `json:"stage"`
	Progress  float64        `json:"progress"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
