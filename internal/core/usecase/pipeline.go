package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
)

const defaultAnalysisConcurrency = 4

// Document outcomes reported to PipelineObserver.
const (
	OutcomeClassified = "classified"
	OutcomeFallback   = "fallback"
	OutcomeFailed     = "failed"
)

// PipelineObserver receives run and per-document measurements.
type PipelineObserver interface {
	StartRun()
	FinishRun(status domain.TaskStatus, duration time.Duration)
	ObserveDocument(outcome string, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) StartRun() {}

func (noopObserver) FinishRun(domain.TaskStatus, time.Duration) {}

func (noopObserver) ObserveDocument(string, time.Duration) {}

type PipelineDeps struct {
	Repo       ports.TaskRepository
	Normalizer ports.ContentNormalizer
	Analyzer   ports.DocumentAnalyzer
	Aggregator *ReviewAggregator

	// Optional.
	Learnings ports.LearningRetriever
	Notifier  ports.ReviewNotifier
	Observer  PipelineObserver
}

// Pipeline runs one review: normalize, analyze each document, then review
// the whole return once every document has an outcome.
type Pipeline struct {
	repo        ports.TaskRepository
	normalizer  ports.ContentNormalizer
	analyzer    ports.DocumentAnalyzer
	aggregator  *ReviewAggregator
	learnings   ports.LearningRetriever
	notifier    ports.ReviewNotifier
	observer    PipelineObserver
	concurrency int
}

func NewPipeline(deps PipelineDeps, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = defaultAnalysisConcurrency
	}
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Pipeline{
		repo:        deps.Repo,
		normalizer:  deps.Normalizer,
		analyzer:    deps.Analyzer,
		aggregator:  deps.Aggregator,
		learnings:   deps.Learnings,
		notifier:    deps.Notifier,
		observer:    observer,
		concurrency: concurrency,
	}
}

// documentOutcome is what one document contributes to the join. Failures are
// recorded here instead of cancelling sibling documents.
type documentOutcome struct {
	file           domain.StoredFile
	content        domain.NormalizedContent
	classification domain.ClassificationResult
	err            error
}

// Run drives the task to done or failed and reports every milestone to sink.
// It returns the verdict on success.
func (p *Pipeline) Run(ctx context.Context, task *domain.Task, files []domain.StoredFile, sink ports.ProgressSink) (domain.ReviewVerdict, error) {
	start := time.Now()
	p.observer.StartRun()
	slog.Info("review_started", "task_id", task.ID, "documents", len(files))

	verdict, err := p.run(ctx, task, files, sink)
	if err != nil {
		if statusErr := p.repo.UpdateStatus(ctx, task.ID, domain.TaskFailed, err.Error()); statusErr != nil {
			slog.Error("review_status_update_failed", "task_id", task.ID, "status", domain.TaskFailed, "error", statusErr)
		}
		if failErr := sink.Fail(err); failErr != nil {
			slog.Warn("progress_fail_rejected", "task_id", task.ID, "error", failErr)
		}
		p.observer.FinishRun(domain.TaskFailed, time.Since(start))
		slog.Error("review_failed", "task_id", task.ID, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return domain.ReviewVerdict{}, err
	}

	p.observer.FinishRun(domain.TaskDone, time.Since(start))
	slog.Info("review_completed",
		"task_id", task.ID,
		"status", verdict.Status,
		"completeness_score", verdict.CompletenessScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return verdict, nil
}

func (p *Pipeline) run(ctx context.Context, task *domain.Task, files []domain.StoredFile, sink ports.ProgressSink) (domain.ReviewVerdict, error) {
	emit := p.emitter(task.ID, sink)
	emit(domain.StageInitializing, "Starting review", map[string]any{"documents": len(files)}, 1)

	if err := p.setStatus(ctx, task.ID, domain.TaskNormalizing); err != nil {
		return domain.ReviewVerdict{}, err
	}
	outcomes := p.normalizeAll(ctx, files, emit)

	emit(domain.StageClassifying, "Loading reviewer learnings", nil, 0)
	learnings := p.retrieveLearnings(ctx, task)
	emit(domain.StageClassifying, "Classifying documents", map[string]any{"learnings": len(learnings)}, 1)

	if err := p.setStatus(ctx, task.ID, domain.TaskAnalyzing); err != nil {
		return domain.ReviewVerdict{}, err
	}
	if err := p.analyzeAll(ctx, task, outcomes, learnings, emit); err != nil {
		return domain.ReviewVerdict{}, err
	}

	emit(domain.StageMergingBatches, "All documents analyzed", nil, 0)
	summaries := make([]domain.DocumentSummary, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		summaries = append(summaries, domain.SummarizeDocument(o.file.Filename, o.classification))
		if o.classification.HasFlag(domain.FlagClassificationError) {
			failed++
		}
	}
	emit(domain.StageMergingBatches, "Merged document results", map[string]any{"documents": len(summaries), "failed": failed}, 1)

	if err := p.setStatus(ctx, task.ID, domain.TaskAggregating); err != nil {
		return domain.ReviewVerdict{}, err
	}
	rules := p.aggregator.Rules(summaries, task.Context)
	emit(domain.StageVerification, "Checked document requirements", map[string]any{
		"required_documents": len(rules.RequiredDocuments),
		"hard_violations":    len(rules.HardViolations),
	}, 1)

	if err := p.setStatus(ctx, task.ID, domain.TaskReviewing); err != nil {
		return domain.ReviewVerdict{}, err
	}
	emit(domain.StageApplyingTaxRules, "Reviewing return completeness", nil, 0)
	verdict, err := p.aggregator.Review(ctx, summaries, task.Context, rules)
	if err != nil {
		return domain.ReviewVerdict{}, err
	}
	emit(domain.StageGeneratingSummaries, "Review verdict ready", map[string]any{"status": verdict.Status}, 1)

	emit(domain.StageFinalizing, "Saving verdict", nil, 0)
	if err := p.repo.SaveVerdict(ctx, task.ID, verdict); err != nil {
		return domain.ReviewVerdict{}, fmt.Errorf("save verdict: %w", err)
	}
	if err := p.setStatus(ctx, task.ID, domain.TaskDone); err != nil {
		return domain.ReviewVerdict{}, err
	}
	p.notify(ctx, task.ID, verdict)

	if err := sink.Complete(map[string]any{
		"status":             verdict.Status,
		"completeness_score": verdict.CompletenessScore,
		"verdict":            verdict,
	}, ""); err != nil {
		slog.Warn("progress_complete_rejected", "task_id", task.ID, "error", err)
	}
	return verdict, nil
}

type emitFunc func(stage domain.Stage, message string, detail map[string]any, sub float64)

// emitter serializes emissions from concurrent document workers. A rejected
// event is logged and never aborts the run.
func (p *Pipeline) emitter(taskID string, sink ports.ProgressSink) emitFunc {
	var mu sync.Mutex
	return func(stage domain.Stage, message string, detail map[string]any, sub float64) {
		mu.Lock()
		defer mu.Unlock()
		if err := sink.Emit(stage, message, detail, sub); err != nil {
			slog.Warn("progress_emit_rejected", "task_id", taskID, "stage", stage, "error", err)
		}
	}
}

func (p *Pipeline) normalizeAll(ctx context.Context, files []domain.StoredFile, emit emitFunc) []*documentOutcome {
	outcomes := make([]*documentOutcome, len(files))
	var (
		mu   sync.Mutex
		done int
	)

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, file := range files {
		outcomes[i] = &documentOutcome{file: file}
		o := outcomes[i]
		g.Go(func() error {
			content, err := p.normalizer.Normalize(ctx, file.Path, file.Filename)
			if err != nil {
				o.err = fmt.Errorf("normalize %s: %w", file.Filename, err)
				slog.Warn("document_normalize_failed", "file_id", file.ID, "filename", file.Filename, "error", err)
			}
			o.content = content

			mu.Lock()
			defer mu.Unlock()
			done++
			emit(domain.StageLoadingDocuments, "Loaded "+file.Filename, map[string]any{
				"filename":     file.Filename,
				"content_kind": content.Kind,
				"done":         done,
				"total":        len(files),
			}, ratio(done, len(files)))
			return nil
		})
	}
	_ = g.Wait()

	if len(files) == 0 {
		emit(domain.StageLoadingDocuments, "No documents to load", nil, 1)
	}
	return outcomes
}

func (p *Pipeline) retrieveLearnings(ctx context.Context, task *domain.Task) []domain.Learning {
	if p.learnings == nil {
		return nil
	}
	learnings, err := p.learnings.Retrieve(ctx, task.Context)
	if err != nil {
		slog.Warn("learnings_unavailable", "task_id", task.ID, "error", err)
		return nil
	}
	return learnings
}

func (p *Pipeline) analyzeAll(
	ctx context.Context,
	task *domain.Task,
	outcomes []*documentOutcome,
	learnings []domain.Learning,
	emit emitFunc,
) error {
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, o := range outcomes {
		g.Go(func() error {
			started := time.Now()
			outcome := p.analyzeOne(gctx, task, o, learnings)
			p.observer.ObserveDocument(outcome, time.Since(started))

			errMessage := ""
			if o.err != nil {
				errMessage = o.err.Error()
			}
			if err := p.repo.SaveClassification(gctx, o.file.ID, o.content.Kind, o.classification, errMessage); err != nil {
				return fmt.Errorf("save classification %s: %w", o.file.ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			emit(domain.StageExtractingBatch, "Analyzed "+o.file.Filename, map[string]any{
				"filename":      o.file.Filename,
				"document_type": o.classification.DocumentType,
				"confidence":    o.classification.Confidence,
				"flags":         o.classification.Flags,
				"done":          done,
				"total":         len(outcomes),
			}, ratio(done, len(outcomes)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(outcomes) == 0 {
		emit(domain.StageExtractingBatch, "No documents to analyze", nil, 1)
	}
	return nil
}

// analyzeOne never fails: any error becomes the fallback classification.
func (p *Pipeline) analyzeOne(ctx context.Context, task *domain.Task, o *documentOutcome, learnings []domain.Learning) string {
	if o.err != nil {
		o.classification = domain.FallbackClassification(o.err.Error())
		return OutcomeFailed
	}
	if o.content.IsEmpty() {
		o.classification = domain.FallbackClassification("no text or page images could be extracted")
		return OutcomeFallback
	}

	result, err := p.analyzer.Classify(ctx, o.content, task.Context, learnings)
	if err != nil {
		o.err = fmt.Errorf("classify %s: %w", o.file.Filename, err)
		o.classification = domain.FallbackClassification(o.err.Error())
		slog.Warn("document_analysis_failed", "task_id", task.ID, "file_id", o.file.ID, "error", err)
		return OutcomeFailed
	}
	o.classification = result
	slog.Info("document_analyzed",
		"task_id", task.ID,
		"file_id", o.file.ID,
		"document_type", result.DocumentType,
		"confidence", result.Confidence,
		"flags", result.Flags,
	)
	if result.HasFlag(domain.FlagClassificationError) {
		return OutcomeFallback
	}
	return OutcomeClassified
}

func (p *Pipeline) setStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	if err := p.repo.UpdateStatus(ctx, taskID, status, ""); err != nil {
		return fmt.Errorf("set status=%s: %w", status, err)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, taskID string, verdict domain.ReviewVerdict) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishReviewCompleted(ctx, taskID, verdict); err != nil {
		slog.Warn("review_notify_failed", "task_id", taskID, "error", err)
	}
}

func ratio(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(done) / float64(total)
}
