package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"certprep-server/models"
)

// ResultStore persists submitted mock exams.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// SubmitResult stores one submission. A repeated session ID is ignored so a
// retried submission cannot create a second row.
func (s *ResultStore) SubmitResult(ctx context.Context, sub models.ExamSubmission) error {
	answersJSON, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers for session %s: %w", sub.SessionID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO exam_results (session_id, user_id, score, total_questions, duration_seconds, answers)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO NOTHING
	`, sub.SessionID, sub.UserID, sub.Score, sub.TotalQuestions, sub.DurationSeconds, answersJSON)
	if err != nil {
		return fmt.Errorf("failed to insert exam result for session %s: %w", sub.SessionID, err)
	}
	return nil
}

// History lists a user's submitted exams, newest first.
func (s *ResultStore) History(ctx context.Context, userID string, limit int) ([]models.ExamHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id::text, score, total_questions, duration_seconds, submitted_at
		FROM exam_results
		WHERE user_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exam history for %s: %w", userID, err)
	}
	defer rows.Close()

	history := []models.ExamHistoryEntry{}
	for rows.Next() {
		var entry models.ExamHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Score, &entry.TotalQuestions, &entry.DurationSeconds, &entry.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exam history row: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exam history rows: %w", err)
	}
	return history, nil
}
