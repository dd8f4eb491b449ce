package models

import (
	"errors"
	"fmt"
	"time"
)

// Difficulty labels a question's level
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty labels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Tier is the access level carried in the user's token
type Tier string

const (
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierAdmin Tier = "admin"
)

// Question is a single multiple-choice question. Immutable once fetched.
type Question struct {
	ID           string     `json:"id" yaml:"id"`
	Prompt       string     `json:"question" yaml:"question"`
	Options      []string   `json:"options" yaml:"options"`
	CorrectIndex int        `json:"correct_index" yaml:"correct_index"`
	Explanation  string     `json:"explanation" yaml:"explanation"`
	Category     string     `json:"category" yaml:"category"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
}

var (
	ErrTooFewOptions       = errors.New("question needs at least two options")
	ErrCorrectOutOfRange   = errors.New("correct index is not a valid option")
	ErrUnknownDifficulty   = errors.New("unknown difficulty")
	ErrMissingQuestionID   = errors.New("question id is required")
	ErrMissingQuestionText = errors.New("question text is required")
)

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return ErrMissingQuestionID
	}
	if q.Prompt == "" {
		return fmt.Errorf("question %s: %w", q.ID, ErrMissingQuestionText)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s: %w", q.ID, ErrTooFewOptions)
	}
	if !q.HasOption(q.CorrectIndex) {
		return fmt.Errorf("question %s: %w (%d of %d)", q.ID, ErrCorrectOutOfRange, q.CorrectIndex, len(q.Options))
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("question %s: %w %q", q.ID, ErrUnknownDifficulty, q.Difficulty)
	}
	return nil
}

// HasOption reports whether i indexes one of the question's options.
func (q Question) HasOption(i int) bool {
	return i >= 0 && i < len(q.Options)
}

// Flashcard is a question/answer study card
type Flashcard struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Category string `json:"category" yaml:"category"`
}

// AnswerDetail is the per-question entry of a scored session
type AnswerDetail struct {
	QuestionID    string   `json:"question_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectIndex  int      `json:"correct_index"`
	SelectedIndex *int     `json:"selected_index"` // nil when unanswered
	IsCorrect     bool     `json:"is_correct"`
	Explanation   string   `json:"explanation"`
}

// ExamSubmission is the record sent to the result store when a mock exam is submitted
type ExamSubmission struct {
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	Score           int            `json:"score"`
	TotalQuestions  int            `json:"total_questions"`
	DurationSeconds int            `json:"duration_seconds"`
	Answers         []AnswerDetail `json:"answers"`
}

// ExamHistoryEntry is a previously submitted mock exam
type ExamHistoryEntry struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Score           int       `json:"score"`
	TotalQuestions  int       `json:"total_questions"`
	DurationSeconds int       `json:"duration_seconds"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// ExamHistoryResponse for the dashboard history endpoint
type ExamHistoryResponse struct {
	Exams            []ExamHistoryEntry `json:"exams"`
	PracticeProgress *int               `json:"practice_progress,omitempty"` // percent of practice questions answered
	AnsweredCount    int                `json:"answered_count"`
}

// StartSessionRequest starts or restarts a session
type StartSessionRequest struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// SelectRequest records an answer for the current question
type SelectRequest struct {
	Option *int `json:"option" binding:"required"`
}

// AdvanceRequest moves through the session
type AdvanceRequest struct {
	Direction string `json:"direction" binding:"required,oneof=next previous"`
}

// GoToRequest jumps to a position
type GoToRequest struct {
	Position *int `json:"position" binding:"required"`
}

// SessionQuestion is the question view shown to the user. Correctness fields are
// only filled once the mode allows revealing them.
type SessionQuestion struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"question"`
	Options      []string   `json:"options"`
	Category     string     `json:"category"`
	Difficulty   Difficulty `json:"difficulty"`
	CorrectIndex *int       `json:"correct_index,omitempty"`
	Explanation  string     `json:"explanation,omitempty"`
}

// SessionView is the API representation of an engine's state
type SessionView struct {
	SessionID        string           `json:"session_id,omitempty"`
	Mode             string           `json:"mode"`
	Phase            string           `json:"phase"`
	Position         int              `json:"position"`
	TotalQuestions   int              `json:"total_questions"`
	AnsweredCount    int              `json:"answered_count"`
	Answers          []*int           `json:"answers"`
	RemainingSeconds *int             `json:"remaining_seconds,omitempty"`
	TimeRemaining    string           `json:"time_remaining,omitempty"` // "M:SS"
	Current          *SessionQuestion `json:"current,omitempty"`
	Result           *ResultView      `json:"result,omitempty"`
}

// ResultView is the API representation of a scored session
type ResultView struct {
	Correct        int            `json:"correct"`
	Total          int            `json:"total"`
	ScorePercent   int            `json:"score_percent"`
	Pass           bool           `json:"pass"`
	ElapsedSeconds int            `json:"elapsed_seconds"`
	Answers        []AnswerDetail `json:"answers"`
}

// ErrorLog is a recorded ingestion problem
type ErrorLog struct {
	ID           int       `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	FilePath     *string   `json:"file_path,omitempty"`
	LineNumber   *int      `json:"line_number,omitempty"`
	FieldName    *string   `json:"field_name,omitempty"`
	ErrorMessage string    `json:"error_message"`
	SuggestedFix *string   `json:"suggested_fix,omitempty"`
}
