package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"certprep-server/config"
	"certprep-server/models"
	"certprep-server/questions"
)

const testBankYAML = `schema_version: "2.1.0"
name: Cloud Practitioner
categories: [Compute, Storage]
flashcards:
  - id: f1
    question: What is S3?
    answer: Object storage
    category: Storage
  - id: f2
    question: What is EC2?
    answer: Virtual machines
    category: Compute
`

const testQuestionsCSV = `id,category,difficulty,question,options,correct_index,explanation
q1,Compute,easy,Which service runs VMs?,EC2|S3|RDS,0,EC2 provides virtual machines.
q2,Storage,medium,"Which service stores objects, at scale?",EC2|S3,1,S3 is object storage.
q3,Storage,hard,Which class is cheapest for archives?,Standard|Glacier Deep Archive|One Zone,1,Deep Archive has the lowest price.
`

func writeBank(t *testing.T, bankYAML, questionsCSV string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, BankFile), []byte(bankYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, QuestionsFile), []byte(questionsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadBank(t *testing.T) {
	bank, err := LoadBank(writeBank(t, testBankYAML, testQuestionsCSV))
	if err != nil {
		t.Fatalf("LoadBank() error = %v", err)
	}
	if bank.Meta.SchemaVersion != "2.1.0" {
		t.Errorf("SchemaVersion = %q, want 2.1.0", bank.Meta.SchemaVersion)
	}
	if len(bank.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(bank.Questions))
	}
	q := bank.Questions[1]
	if q.Prompt != "Which service stores objects, at scale?" {
		t.Errorf("quoted prompt = %q", q.Prompt)
	}
	if len(q.Options) != 2 || q.Options[1] != "S3" || q.CorrectIndex != 1 {
		t.Errorf("q2 options = %v correct = %d", q.Options, q.CorrectIndex)
	}
	if q.Difficulty != models.DifficultyMedium {
		t.Errorf("q2 difficulty = %q", q.Difficulty)
	}
	if len(bank.Meta.Flashcards) != 2 {
		t.Errorf("got %d flashcards, want 2", len(bank.Meta.Flashcards))
	}
}

func TestLoadBankRejectsBadRows(t *testing.T) {
	header := "id,category,difficulty,question,options,correct_index,explanation\n"
	tests := []struct {
		name      string
		rows      string
		wantField string
		wantLine  int
		wantErr   error
	}{
		{"correct index out of range", "q1,Compute,easy,Q?,A|B,2,x\n", "correct_index", 2, models.ErrCorrectOutOfRange},
		{"one option", "q1,Compute,easy,Q?,A,0,x\n", "options", 2, models.ErrTooFewOptions},
		{"unknown difficulty", "q1,Compute,extreme,Q?,A|B,0,x\n", "difficulty", 2, models.ErrUnknownDifficulty},
		{"duplicate id", "q1,Compute,easy,Q1?,A|B,0,x\nq1,Compute,easy,Q2?,A|B,0,x\n", "id", 3, nil},
		{"duplicate text", "q1,Compute,easy,Q?,A|B,0,x\nq2,Compute,easy,Q?,A|B,0,x\n", "question", 3, nil},
		{"undeclared category", "q1,Network,easy,Q?,A|B,0,x\n", "category", 0, nil},
		{"non-numeric index", "q1,Compute,easy,Q?,A|B,first,x\n", "correct_index", 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBank(writeBank(t, testBankYAML, header+tt.rows))
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("LoadBank() error = %v, want *RowError", err)
			}
			if rowErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", rowErr.Field, tt.wantField)
			}
			if rowErr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", rowErr.Line, tt.wantLine)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error %v does not wrap %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadBankBadHeader(t *testing.T) {
	_, err := LoadBank(writeBank(t, testBankYAML, "id,topic,difficulty,question,options,correct_index,explanation\n"))
	if err == nil || !strings.Contains(err.Error(), "unexpected header") {
		t.Fatalf("LoadBank() error = %v, want header error", err)
	}
}

func TestLoadBankMissingFiles(t *testing.T) {
	if _, err := LoadBank(t.TempDir()); err == nil {
		t.Fatal("LoadBank() on empty dir should fail")
	}
}

func TestFileSource(t *testing.T) {
	src, err := NewFileSource(context.Background(), DirLoader(writeBank(t, testBankYAML, testQuestionsCSV)), questions.TierPolicy{BasicLimit: 2})
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	ctx := context.Background()

	basic, err := src.FetchQuestions(ctx, models.TierBasic)
	if err != nil {
		t.Fatal(err)
	}
	if len(basic) != 2 || basic[0].ID != "q1" || basic[1].ID != "q2" {
		t.Errorf("basic tier got %d questions", len(basic))
	}
	pro, _ := src.FetchQuestions(ctx, models.TierPro)
	if len(pro) != 3 {
		t.Errorf("pro tier got %d questions, want 3", len(pro))
	}

	// callers must not be able to mutate the bank
	pro[0].Prompt = "changed"
	again, _ := src.FetchQuestions(ctx, models.TierPro)
	if again[0].Prompt == "changed" {
		t.Error("FetchQuestions returned a slice aliasing the bank")
	}

	cards, _ := src.FetchFlashcards(ctx, "Storage")
	if len(cards) != 1 || cards[0].ID != "f1" {
		t.Errorf("Storage flashcards = %+v", cards)
	}
	all, _ := src.FetchFlashcards(ctx, "")
	if len(all) != 2 {
		t.Errorf("all flashcards = %d, want 2", len(all))
	}
}

func TestParseBankFromReaders(t *testing.T) {
	bank, err := ParseBank("mem://bank.yaml", []byte("name: Minimal\n"), "mem://questions.csv", strings.NewReader(testQuestionsCSV))
	if err != nil {
		t.Fatalf("ParseBank() error = %v", err)
	}
	if bank.Meta.SchemaVersion != "1.0.0" {
		t.Errorf("default SchemaVersion = %q, want 1.0.0", bank.Meta.SchemaVersion)
	}
	if len(bank.Questions) != 3 {
		t.Errorf("got %d questions, want 3", len(bank.Questions))
	}

	_, err = ParseBank("mem://bank.yaml", []byte("flashcards:\n  - id: f1\n    question: Q\n"), "mem://questions.csv", strings.NewReader(testQuestionsCSV))
	var rowErr *RowError
	if !errors.As(err, &rowErr) || rowErr.Field != "answer" {
		t.Errorf("flashcard without answer error = %v, want answer field", err)
	}
}

func TestMinioLoaderRequiresEndpoint(t *testing.T) {
	if _, err := MinioLoader(config.MinioConfig{Bucket: "bank"}); err == nil {
		t.Error("MinioLoader() without endpoint should fail")
	}
}
