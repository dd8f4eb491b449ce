package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"certprep-server/models"
	"certprep-server/utils"
)

const (
	BankFile      = "bank.yaml"
	QuestionsFile = "questions.csv"

	defaultSchemaVersion = "1.0.0"
)

// csvHeaders is the required header row of questions.csv
var csvHeaders = []string{"id", "category", "difficulty", "question", "options", "correct_index", "explanation"}

// BankMeta is the content of bank.yaml
type BankMeta struct {
	SchemaVersion string             `yaml:"schema_version"`
	Name          string             `yaml:"name"`
	Categories    []string           `yaml:"categories"`
	Flashcards    []models.Flashcard `yaml:"flashcards"`
}

// Bank is a fully parsed and validated content bank.
type Bank struct {
	Meta      BankMeta
	Questions []models.Question
}

// RowError locates a problem in one of the bank files.
type RowError struct {
	File    string
	Line    int // 0 when the problem is not tied to a line
	Field   string
	Message string
	Fix     string
	Err     error
}

func (e *RowError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Field != "" {
		loc += " (" + e.Field + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

func (e *RowError) Unwrap() error { return e.Err }

// BankLoader fetches and parses a content bank from wherever it lives.
type BankLoader func(ctx context.Context) (*Bank, error)

// DirLoader loads the bank from bank.yaml and questions.csv in dir.
func DirLoader(dir string) BankLoader {
	return func(ctx context.Context) (*Bank, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadBank(dir)
	}
}

// LoadBank reads bank.yaml and questions.csv from dir and validates them.
func LoadBank(dir string) (*Bank, error) {
	metaPath := filepath.Join(dir, BankFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, &RowError{File: metaPath, Message: "failed to read bank metadata", Fix: "Ensure file exists and is readable.", Err: err}
	}

	csvPath := filepath.Join(dir, QuestionsFile)
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, &RowError{File: csvPath, Message: "failed to open question file", Fix: "Ensure file exists and is readable.", Err: err}
	}
	defer f.Close()

	return ParseBank(metaPath, data, csvPath, f)
}

// ParseBank validates bank metadata and question rows read from any medium.
// The names only label errors.
func ParseBank(metaName string, meta []byte, csvName string, rows io.Reader) (*Bank, error) {
	var bm BankMeta
	if err := yaml.Unmarshal(meta, &bm); err != nil {
		return nil, &RowError{File: metaName, Message: "failed to parse bank metadata", Fix: "Ensure YAML format is correct.", Err: err}
	}
	if bm.SchemaVersion == "" {
		bm.SchemaVersion = defaultSchemaVersion
	}
	if err := validateFlashcards(metaName, bm.Flashcards); err != nil {
		return nil, err
	}

	questions, err := ParseQuestions(csvName, rows)
	if err != nil {
		return nil, err
	}
	if len(bm.Categories) > 0 {
		for _, q := range questions {
			if !utils.ContainsString(bm.Categories, q.Category) {
				return nil, &RowError{File: csvName, Field: "category", Message: fmt.Sprintf("question %s uses undeclared category %q", q.ID, q.Category), Fix: "Add the category to bank.yaml or fix the row."}
			}
		}
	}
	return &Bank{Meta: bm, Questions: questions}, nil
}

// ParseQuestions reads question rows in questions.csv format. name is used in errors only.
func ParseQuestions(name string, r io.Reader) ([]models.Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeaders)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &RowError{File: name, Line: 1, Message: "empty question file", Fix: "Add a header row and at least one question."}
		}
		return nil, &RowError{File: name, Line: 1, Message: "failed to read header", Err: err}
	}
	for i, h := range csvHeaders {
		if strings.TrimSpace(strings.ToLower(header[i])) != h {
			return nil, &RowError{File: name, Line: 1, Field: h, Message: fmt.Sprintf("unexpected header %q", header[i]), Fix: "Header must be: " + strings.Join(csvHeaders, ",")}
		}
	}

	var (
		questions []models.Question
		seenIDs   = make(map[string]bool)
		seenTexts = make(map[string]bool)
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			return nil, &RowError{File: name, Line: line, Message: "malformed row", Fix: fmt.Sprintf("Each row needs %d columns.", len(csvHeaders)), Err: err}
		}
		line, _ := reader.FieldPos(0)

		q, rowErr := parseRow(row)
		if rowErr != nil {
			rowErr.File, rowErr.Line = name, line
			return nil, rowErr
		}
		if seenIDs[q.ID] {
			return nil, &RowError{File: name, Line: line, Field: "id", Message: fmt.Sprintf("duplicate question id %q", q.ID), Fix: "Question ids must be unique."}
		}
		if seenTexts[q.Prompt] {
			return nil, &RowError{File: name, Line: line, Field: "question", Message: "duplicate question text", Fix: "Question text must be unique within a bank."}
		}
		seenIDs[q.ID] = true
		seenTexts[q.Prompt] = true
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, &RowError{File: name, Message: "no questions found", Fix: "Add at least one question row."}
	}
	return questions, nil
}

func parseRow(row []string) (models.Question, *RowError) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	correct, err := strconv.Atoi(row[5])
	if err != nil {
		return models.Question{}, &RowError{Field: "correct_index", Message: "invalid value", Fix: "Must be a zero-based option index.", Err: err}
	}
	q := models.Question{
		ID:           row[0],
		Category:     row[1],
		Difficulty:   models.Difficulty(strings.ToLower(row[2])),
		Prompt:       row[3],
		Options:      utils.SplitPipeList(row[4]),
		CorrectIndex: correct,
		Explanation:  row[6],
	}
	if q.Category == "" {
		return models.Question{}, &RowError{Field: "category", Message: "missing category"}
	}
	if err := q.Validate(); err != nil {
		return models.Question{}, &RowError{Field: fieldFor(err), Message: "invalid question", Err: err}
	}
	return q, nil
}

func fieldFor(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingQuestionID):
		return "id"
	case errors.Is(err, models.ErrMissingQuestionText):
		return "question"
	case errors.Is(err, models.ErrTooFewOptions):
		return "options"
	case errors.Is(err, models.ErrCorrectOutOfRange):
		return "correct_index"
	case errors.Is(err, models.ErrUnknownDifficulty):
		return "difficulty"
	}
	return ""
}

func validateFlashcards(path string, cards []models.Flashcard) error {
	seen := make(map[string]bool, len(cards))
	for i, c := range cards {
		field := ""
		switch {
		case c.ID == "":
			field = "id"
		case c.Question == "":
			field = "question"
		case c.Answer == "":
			field = "answer"
		}
		if field != "" {
			return &RowError{File: path, Field: field, Message: fmt.Sprintf("flashcard %d is missing %s", i+1, field)}
		}
		if seen[c.ID] {
			return &RowError{File: path, Field: "id", Message: fmt.Sprintf("duplicate flashcard id %q", c.ID)}
		}
		seen[c.ID] = true
	}
	return nil
}
