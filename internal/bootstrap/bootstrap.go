package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/ports"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/progress"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/usecase"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/extractor/content"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/llm/ollama"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/queue/nats"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/repository/memory"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/repository/postgres"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/resilience"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/storage/localfs"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/vector/qdrant"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Registry   *progress.Registry
	Repo       ports.TaskRepository
	Normalizer *content.Normalizer
	Pipeline   *usecase.Pipeline
	IngestUC   *usecase.IngestUseCase
	Seeder     *usecase.LearningSeeder
	Metrics    *metrics.HTTPServerMetrics

	// Notifier is nil when NATS_URL is empty.
	Notifier *nats.Notifier

	closeFn func()
}

type learningBackend interface {
	ports.LearningStore
	ports.LearningWriter
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	var (
		repo      ports.TaskRepository
		learnings learningBackend
		db        *sql.DB
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo = postgres.NewTaskRepository(db)
		learnings = postgres.NewLearningRepository(db)
	} else {
		repo = memory.NewTaskRepository()
		learnings = memory.NewLearningStore()
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registerer())

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	ollamaClient := ollama.New(ollama.Options{
		BaseURL:      cfg.OllamaURL,
		Model:        cfg.OllamaModel,
		EmbedModel:   cfg.OllamaEmbedModel,
		Timeout:      cfg.AnalysisTimeout(),
		RateLimitRPS: cfg.AnalysisRateLimitRPS,
		MaxAttempts:  cfg.AnalysisMaxAttempts,
		OnRetry:      pipelineMetrics.RecordAnalysisRetry,
	}, executor)
	analyzer := ollama.NewAnalyzer(ollamaClient, cfg.LearningMinScore)
	embedder := ollama.NewEmbedder(ollamaClient)

	var (
		index       ports.LearningIndex
		indexWriter ports.LearningIndexWriter
	)
	if cfg.QdrantURL != "" {
		vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantLearningsCollection)
		index = vectorDB
		indexWriter = vectorDB
	}

	deps := usecase.PipelineDeps{
		Repo:       repo,
		Analyzer:   analyzer,
		Aggregator: usecase.NewReviewAggregator(analyzer, cfg.ComplianceCutoffDate),
		Learnings:  usecase.NewLearningService(learnings, index, embedder, cfg.LearningsLimit),
		Observer:   pipelineMetrics,
	}

	var notifier *nats.Notifier
	if cfg.NATSURL != "" {
		notifier, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("init review notifier: %w", err)
		}
		deps.Notifier = notifier
	}

	normalizer := content.NewNormalizer(content.Options{})
	deps.Normalizer = normalizer
	registry := progress.NewRegistry()
	pipeline := usecase.NewPipeline(deps, cfg.AnalysisConcurrency)

	return &App{
		Config:     cfg,
		Registry:   registry,
		Repo:       repo,
		Normalizer: normalizer,
		Pipeline:   pipeline,
		IngestUC:   usecase.NewIngestUseCase(repo, storage, normalizer, registry, pipeline),
		Seeder:     usecase.NewLearningSeeder(learnings, indexWriter, embedder),
		Metrics:    httpMetrics,
		Notifier:   notifier,
		closeFn: func() {
			if notifier != nil {
				notifier.Close()
			}
			closeDB(db)
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
