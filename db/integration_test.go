package db_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"certprep-server/db"
	"certprep-server/models"
	"certprep-server/questions"
)

// openTestDB connects to CERTPREP_TEST_DATABASE_URL and resets the schema.
func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("CERTPREP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CERTPREP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.InitDB(ctx, url)
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS questions, flashcards, exam_results, error_logs, admin_events`); err != nil {
		t.Fatalf("drop tables: %v", err)
	}
	if err := db.CreateSchema(ctx, pool); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}
	return pool
}

func seedQuestions(t *testing.T, pool *pgxpool.Pool, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := pool.Exec(context.Background(), `
			INSERT INTO questions (id, position, question_text, options, correct_index, explanation, category, difficulty, bank_version)
			VALUES ($1, $2, $3, $4, $5, 'because', 'Technology', 'easy', '1.0.0')
		`, "q"+string(rune('a'+i)), i, "Question "+string(rune('A'+i))+"?", []string{"A", "B", "C"}, i%3)
		if err != nil {
			t.Fatalf("seed question %d: %v", i, err)
		}
	}
}

func TestQuestionStoreAppliesTierLimit(t *testing.T) {
	pool := openTestDB(t)
	seedQuestions(t, pool, 5)
	store := db.NewQuestionStore(pool, questions.TierPolicy{BasicLimit: 3}, zap.NewNop())
	ctx := context.Background()

	basic, err := store.FetchQuestions(ctx, models.TierBasic)
	if err != nil {
		t.Fatal(err)
	}
	if len(basic) != 3 || basic[0].ID != "qa" || basic[2].ID != "qc" {
		t.Errorf("basic tier = %d questions starting %v", len(basic), basic)
	}
	pro, err := store.FetchQuestions(ctx, models.TierPro)
	if err != nil {
		t.Fatal(err)
	}
	if len(pro) != 5 {
		t.Errorf("pro tier = %d questions, want 5", len(pro))
	}
	if len(pro[1].Options) != 3 || pro[1].CorrectIndex != 1 {
		t.Errorf("question qb = %+v", pro[1])
	}
}

func TestResultStoreIsIdempotent(t *testing.T) {
	pool := openTestDB(t)
	results := db.NewResultStore(pool)
	ctx := context.Background()

	sel := 1
	sub := models.ExamSubmission{
		SessionID:       uuid.NewString(),
		UserID:          "user-1",
		Score:           1,
		TotalQuestions:  2,
		DurationSeconds: 120,
		Answers: []models.AnswerDetail{
			{QuestionID: "qa", Options: []string{"A", "B"}, CorrectIndex: 1, SelectedIndex: &sel, IsCorrect: true},
			{QuestionID: "qb", Options: []string{"A", "B"}, CorrectIndex: 0},
		},
	}
	for i := 0; i < 2; i++ {
		if err := results.SubmitResult(ctx, sub); err != nil {
			t.Fatalf("SubmitResult() #%d error = %v", i+1, err)
		}
	}

	history, err := results.History(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d entries, want 1", len(history))
	}
	if history[0].SessionID != sub.SessionID || history[0].Score != 1 || history[0].DurationSeconds != 120 {
		t.Errorf("history entry = %+v", history[0])
	}

	other, err := results.History(ctx, "user-2", 10)
	if err != nil || len(other) != 0 {
		t.Errorf("other user's history = %v, %v", other, err)
	}
}

func TestErrorLogs(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	db.LogError(ctx, pool, zap.NewNop(), "ingestion", "questions.csv", 4, "options", "invalid question", "Add a second option.")
	db.LogError(ctx, pool, zap.NewNop(), "other", "", 0, "", "unrelated", "")

	logs, err := db.ErrorLogs(ctx, pool, "ingestion", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].LineNumber == nil || *logs[0].LineNumber != 4 {
		t.Errorf("ingestion logs = %+v", logs)
	}
}
