package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsRunWithoutExternalStores(t *testing.T) {
	for _, key := range []string{"POSTGRES_DSN", "NATS_URL", "QDRANT_URL", "ANALYSIS_CONCURRENCY", "COMPLIANCE_CUTOFF_DATE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.PostgresDSN != "" || cfg.NATSURL != "" || cfg.QdrantURL != "" {
		t.Fatalf("expected optional stores disabled by default, got %+v", cfg)
	}
	if cfg.AnalysisConcurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.AnalysisConcurrency)
	}
	if want := time.Date(2020, time.March, 27, 0, 0, 0, 0, time.UTC); !cfg.ComplianceCutoffDate.Equal(want) {
		t.Fatalf("expected default cutoff %s, got %s", want, cfg.ComplianceCutoffDate)
	}
	if cfg.KeepaliveInterval() != 30*time.Second {
		t.Fatalf("expected 30s keepalive, got %s", cfg.KeepaliveInterval())
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_RATE_LIMIT_RPS", "0.5")
	t.Setenv("LEARNING_MIN_SCORE", "0.45")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("COMPLIANCE_CUTOFF_DATE", "2021-01-01")

	cfg := Load()
	if cfg.AnalysisRateLimitRPS != 0.5 {
		t.Fatalf("expected rps 0.5, got %v", cfg.AnalysisRateLimitRPS)
	}
	if cfg.LearningMinScore != 0.45 {
		t.Fatalf("expected min score 0.45, got %v", cfg.LearningMinScore)
	}
	if cfg.MaxUploadBytes() != 8<<20 {
		t.Fatalf("expected 8MiB, got %d", cfg.MaxUploadBytes())
	}
	if cfg.ComplianceCutoffDate.Year() != 2021 {
		t.Fatalf("expected cutoff override, got %s", cfg.ComplianceCutoffDate)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("ANALYSIS_MAX_ATTEMPTS", "many")
	t.Setenv("API_RATE_LIMIT_RPS", "fast")
	t.Setenv("COMPLIANCE_CUTOFF_DATE", "27/03/2020")

	cfg := Load()
	if cfg.AnalysisMaxAttempts != 3 {
		t.Fatalf("expected fallback attempts 3, got %d", cfg.AnalysisMaxAttempts)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected fallback rps 20, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ComplianceCutoffDate.Year() != 2020 {
		t.Fatalf("expected fallback cutoff, got %s", cfg.ComplianceCutoffDate)
	}
}
