package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"certprep-server/db"
	"certprep-server/tracing"
)

const sourceName = "ingestion"

// ImportStats summarises a completed import
type ImportStats struct {
	SchemaVersion string `json:"schema_version"`
	Questions     int    `json:"questions"`
	Flashcards    int    `json:"flashcards"`
}

// Import loads a bank and replaces the database content with it. Problems in
// the bank files are recorded in error_logs before returning.
func Import(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, load BankLoader) (ImportStats, error) {
	bank, err := load(ctx)
	if err != nil {
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			db.LogError(ctx, pool, log, sourceName, rowErr.File, rowErr.Line, rowErr.Field, rowErr.Message, rowErr.Fix)
		}
		return ImportStats{}, err
	}
	return ImportBank(ctx, pool, log, bank)
}

// ImportBank replaces all questions and flashcards with the bank's content in one transaction.
func ImportBank(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, bank *Bank) (ImportStats, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ingestion.ImportBank")
	defer span.End()
	span.SetAttributes(
		attribute.String("bank.schema_version", bank.Meta.SchemaVersion),
		attribute.Int("bank.questions", len(bank.Questions)),
	)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	// Previous bank content is dropped so removed questions disappear from new sessions.
	if _, err := tx.Exec(ctx, `DELETE FROM questions; DELETE FROM flashcards;`); err != nil {
		db.LogError(ctx, pool, log, sourceName, "", 0, "", "Failed to clear existing bank", fmt.Sprintf("Database error during pre-ingestion cleanup: %v", err))
		return ImportStats{}, fmt.Errorf("failed to clear existing bank: %w", err)
	}

	version := bank.Meta.SchemaVersion
	for i, q := range bank.Questions {
		_, err := tx.Exec(ctx, `
			INSERT INTO questions (id, position, question_text, options, correct_index, explanation, category, difficulty, bank_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, q.ID, i, q.Prompt, q.Options, q.CorrectIndex, q.Explanation, q.Category, string(q.Difficulty), version)
		if err != nil {
			db.LogError(ctx, pool, log, sourceName, QuestionsFile, i+2, "", "Failed to insert question", fmt.Sprintf("Database error: %v", err))
			return ImportStats{}, fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}
	for i, c := range bank.Meta.Flashcards {
		_, err := tx.Exec(ctx, `
			INSERT INTO flashcards (id, position, question, answer, category, bank_version)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, i, c.Question, c.Answer, c.Category, version)
		if err != nil {
			db.LogError(ctx, pool, log, sourceName, BankFile, 0, "flashcards", "Failed to insert flashcard", fmt.Sprintf("Database error: %v", err))
			return ImportStats{}, fmt.Errorf("failed to insert flashcard %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ImportStats{}, fmt.Errorf("failed to commit bank import: %w", err)
	}

	stats := ImportStats{SchemaVersion: version, Questions: len(bank.Questions), Flashcards: len(bank.Meta.Flashcards)}
	log.Info("bank imported",
		zap.String("schema_version", version),
		zap.Int("questions", stats.Questions),
		zap.Int("flashcards", stats.Flashcards))
	return stats, nil
}
