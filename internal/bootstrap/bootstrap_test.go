package bootstrap

import (
	"context"
	"testing"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/repository/memory"
)

func TestNewWithoutExternalStoresUsesMemoryRepository(t *testing.T) {
	cfg := config.Config{
		StoragePath:         t.TempDir(),
		OllamaURL:           "http://127.0.0.1:1",
		AnalysisConcurrency: 2,
	}
	app, err := New(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if _, ok := app.Repo.(*memory.TaskRepository); !ok {
		t.Fatalf("expected in-memory repository, got %T", app.Repo)
	}
	if app.Notifier != nil {
		t.Fatalf("expected notifier disabled without NATS_URL")
	}
	if app.IngestUC == nil || app.Registry == nil || app.Seeder == nil || app.Metrics == nil {
		t.Fatalf("app is not fully wired: %+v", app)
	}
}
