package exam

import (
	"math"
	"time"

	"certprep-server/models"
)

// Result is the scored outcome of a submitted session.
type Result struct {
	Correct        int
	Total          int
	ElapsedSeconds int
	Answers        []models.AnswerDetail
}

// Score compares the ledger with the questions' correct indices. Unanswered
// slots count as incorrect. It has no side effects.
func Score(questions []models.Question, ledger Ledger, elapsed time.Duration) Result {
	res := Result{
		Total:          len(questions),
		ElapsedSeconds: int(elapsed / time.Second),
		Answers:        make([]models.AnswerDetail, len(questions)),
	}
	if res.ElapsedSeconds < 0 {
		res.ElapsedSeconds = 0
	}
	for i, q := range questions {
		detail := models.AnswerDetail{
			QuestionID:   q.ID,
			Question:     q.Prompt,
			Options:      append([]string(nil), q.Options...),
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		}
		if sel, ok := ledger.At(i); ok {
			detail.SelectedIndex = &sel
			detail.IsCorrect = sel == q.CorrectIndex
		}
		if detail.IsCorrect {
			res.Correct++
		}
		res.Answers[i] = detail
	}
	return res
}

// Percent is the rounded share of correct answers, 0 for an empty session.
func (r Result) Percent() int {
	if r.Total == 0 {
		return 0
	}
	return int(math.Round(float64(r.Correct) / float64(r.Total) * 100))
}

// Passed reports whether the score reaches passingPercent.
func (r Result) Passed(passingPercent int) bool {
	return r.Total > 0 && r.Percent() >= passingPercent
}

// Submission converts the result into the record sent to the result store.
func (r Result) Submission(sessionID, userID string) models.ExamSubmission {
	return models.ExamSubmission{
		SessionID:       sessionID,
		UserID:          userID,
		Score:           r.Correct,
		TotalQuestions:  r.Total,
		DurationSeconds: r.ElapsedSeconds,
		Answers:         r.Answers,
	}
}
