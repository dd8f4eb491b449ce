package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"certprep-server/models"
	"certprep-server/questions"
)

// QuestionStore serves questions and flashcards from PostgreSQL.
type QuestionStore struct {
	pool   *pgxpool.Pool
	policy questions.TierPolicy
	log    *zap.Logger
}

// NewQuestionStore returns a store applying policy to every question fetch.
func NewQuestionStore(pool *pgxpool.Pool, policy questions.TierPolicy, log *zap.Logger) *QuestionStore {
	return &QuestionStore{pool: pool, policy: policy, log: log}
}

// FetchQuestions returns the bank in ingestion order, bounded by the tier's limit.
// Rows failing validation are skipped.
func (s *QuestionStore) FetchQuestions(ctx context.Context, tier models.Tier) ([]models.Question, error) {
	var limit *int
	if n := s.policy.Limit(tier); n > 0 {
		limit = &n
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, question_text, options, correct_index, explanation, category, difficulty
		FROM questions
		ORDER BY position, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var q models.Question
		var difficulty string
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options, &q.CorrectIndex, &q.Explanation, &q.Category, &difficulty); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		q.Difficulty = models.Difficulty(difficulty)
		if err := q.Validate(); err != nil {
			s.log.Warn("skipping invalid question", zap.Error(err))
			continue
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}
	return out, nil
}

// FetchFlashcards returns flashcards, optionally restricted to one category.
func (s *QuestionStore) FetchFlashcards(ctx context.Context, category string) ([]models.Flashcard, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, question, answer, category
		FROM flashcards
		WHERE $1 = '' OR category = $1
		ORDER BY position, id
	`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}
	defer rows.Close()

	var out []models.Flashcard
	for rows.Next() {
		var f models.Flashcard
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &f.Category); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flashcard rows: %w", err)
	}
	return out, nil
}
