package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	// PostgresDSN empty keeps review state in memory.
	PostgresDSN string

	// NATSURL empty disables review-completed notifications.
	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaModel      string
	OllamaEmbedModel string

	// QdrantURL empty disables semantic learning search.
	QdrantURL                 string
	QdrantLearningsCollection string

	StoragePath string

	AnalysisConcurrency    int
	AnalysisMaxAttempts    int
	AnalysisRateLimitRPS   float64
	AnalysisTimeoutSeconds int

	LearningsLimit   int
	LearningMinScore float64

	ProgressKeepaliveSeconds  int
	RegistryEvictAfterSeconds int

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	MaxUploadMB       int

	ComplianceCutoffDate time.Time
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "reviews.completed"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      mustEnv("OLLAMA_MODEL", "qwen2.5vl:7b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		QdrantURL:                 mustEnv("QDRANT_URL", ""),
		QdrantLearningsCollection: mustEnv("QDRANT_LEARNINGS_COLLECTION", "review_learnings"),

		StoragePath: mustEnv("STORAGE_PATH", "./data/uploads"),

		AnalysisConcurrency:    mustEnvInt("ANALYSIS_CONCURRENCY", 4),
		AnalysisMaxAttempts:    mustEnvInt("ANALYSIS_MAX_ATTEMPTS", 3),
		AnalysisRateLimitRPS:   mustEnvFloat("ANALYSIS_RATE_LIMIT_RPS", 2),
		AnalysisTimeoutSeconds: mustEnvInt("ANALYSIS_TIMEOUT_SECONDS", 180),

		LearningsLimit:   mustEnvInt("LEARNINGS_LIMIT", 20),
		LearningMinScore: mustEnvFloat("LEARNING_MIN_SCORE", 0.3),

		ProgressKeepaliveSeconds:  mustEnvInt("PROGRESS_KEEPALIVE_SECONDS", 30),
		RegistryEvictAfterSeconds: mustEnvInt("REGISTRY_EVICT_AFTER_SECONDS", 600),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),
		MaxUploadMB:       mustEnvInt("MAX_UPLOAD_MB", 100),

		ComplianceCutoffDate: mustEnvDate("COMPLIANCE_CUTOFF_DATE", time.Date(2020, time.March, 27, 0, 0, 0, 0, time.UTC)),
	}
}

func (c Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.ProgressKeepaliveSeconds) * time.Second
}

func (c Config) EvictAfter() time.Duration {
	return time.Duration(c.RegistryEvictAfterSeconds) * time.Second
}

func (c Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutSeconds) * time.Second
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvDate(key string, fallback time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		return fallback
	}
	return parsed
}
