package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"certprep-server/models"
	"certprep-server/utils"
)

// InitDB initializes the PostgreSQL database connection pool
func InitDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Ping the database to verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// CreateSchema sets up the tables for questions, flashcards and exam results.
// In a production environment, use a proper migration tool (e.g., golang-migrate).
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		position INT NOT NULL,
		question_text TEXT NOT NULL,
		options TEXT[] NOT NULL CHECK (cardinality(options) >= 2),
		correct_index INT NOT NULL CHECK (correct_index >= 0 AND correct_index < cardinality(options)),
		explanation TEXT NOT NULL DEFAULT '',
		category VARCHAR(255) NOT NULL,
		difficulty VARCHAR(20) NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard')),
		bank_version VARCHAR(50) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flashcards (
		id TEXT PRIMARY KEY,
		position INT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category VARCHAR(255) NOT NULL,
		bank_version VARCHAR(50) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL UNIQUE,
		user_id VARCHAR(255) NOT NULL,
		score INT NOT NULL,
		total_questions INT NOT NULL,
		duration_seconds INT NOT NULL,
		answers JSONB NOT NULL,
		submitted_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS exam_results_user_idx ON exam_results (user_id, submitted_at DESC);

	CREATE TABLE IF NOT EXISTS error_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		source TEXT NOT NULL, -- e.g., "ingestion"
		file_path TEXT,
		line_number INT,
		field_name TEXT,
		error_message TEXT NOT NULL,
		suggested_fix TEXT
	);

	CREATE TABLE IF NOT EXISTS admin_events (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		action VARCHAR(255),
		actor VARCHAR(255), -- user id or 'system'
		target TEXT,
		notes TEXT
	);
	`
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	return nil
}

// LogError adds an entry to the error_logs table
func LogError(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, source, filePath string, lineNumber int, fieldName, errMsg, fixSug string) {
	_, err := pool.Exec(ctx, `
		INSERT INTO error_logs (source, file_path, line_number, field_name, error_message, suggested_fix)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, source, utils.StringPtr(filePath), lineNumberOrNil(lineNumber), utils.StringPtr(fieldName), errMsg, utils.StringPtr(fixSug))
	if err != nil {
		log.Error("failed to log error to database", zap.Error(err), zap.String("original_error", errMsg))
	}
}

// LogAdminEvent adds an entry to the admin_events table
func LogAdminEvent(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, actor, action, target, notes string) {
	_, err := pool.Exec(ctx, `
		INSERT INTO admin_events (action, actor, target, notes)
		VALUES ($1, $2, $3, $4)
	`, action, actor, target, notes)
	if err != nil {
		log.Error("failed to log admin event to database",
			zap.Error(err), zap.String("action", action), zap.String("actor", actor), zap.String("target", target))
	}
}

func lineNumberOrNil(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// ErrorLogs returns the most recent error log entries, optionally filtered by
// source and a case-insensitive message search.
func ErrorLogs(ctx context.Context, pool *pgxpool.Pool, source, search string, limit int) ([]models.ErrorLog, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, timestamp, source, file_path, line_number, field_name, error_message, suggested_fix
		FROM error_logs
		WHERE ($1 = '' OR source = $1)
		AND error_message ILIKE $2
		ORDER BY timestamp DESC
		LIMIT $3
	`, source, "%"+search+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query error logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ErrorLog{}
	for rows.Next() {
		var entry models.ErrorLog
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Source, &entry.FilePath,
			&entry.LineNumber, &entry.FieldName, &entry.ErrorMessage, &entry.SuggestedFix); err != nil {
			return nil, fmt.Errorf("failed to scan error log row: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
