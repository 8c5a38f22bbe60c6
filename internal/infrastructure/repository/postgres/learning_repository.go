package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

type LearningRepository struct {
	db *sql.DB
}

func NewLearningRepository(db *sql.DB) *LearningRepository {
	return &LearningRepository{db: db}
}

// ListLearnings returns the highest scoring feedback records first.
func (r *LearningRepository) ListLearnings(ctx context.Context, limit int) ([]domain.Learning, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, category, scenario, kind, content, keywords, score, created_at
FROM review_learnings
ORDER BY score DESC, created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list learnings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Learning, 0, limit)
	for rows.Next() {
		var (
			l           domain.Learning
			kind        string
			keywordsRaw []byte
		)
		if err := rows.Scan(&l.ID, &l.Category, &l.Scenario, &kind, &l.Content, &keywordsRaw, &l.Score, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan learning: %w", err)
		}
		l.Kind = domain.LearningKind(kind)
		if len(keywordsRaw) > 0 {
			if err := json.Unmarshal(keywordsRaw, &l.Keywords); err != nil {
				return nil, fmt.Errorf("unmarshal learning keywords: %w", err)
			}
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learnings: %w", err)
	}
	return out, nil
}

// UpsertLearning stores or replaces a feedback record by id.
func (r *LearningRepository) UpsertLearning(ctx context.Context, l domain.Learning) error {
	keywords := l.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal learning keywords: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO review_learnings (id, category, scenario, kind, content, keywords, score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE
SET category = EXCLUDED.category, scenario = EXCLUDED.scenario, kind = EXCLUDED.kind,
	content = EXCLUDED.content, keywords = EXCLUDED.keywords, score = EXCLUDED.score
`, l.ID, l.Category, l.Scenario, string(l.Kind), l.Content, keywordsJSON, l.Score, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert learning: %w", err)
	}
	return nil
}
