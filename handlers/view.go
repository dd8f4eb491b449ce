package handlers

import (
	"certprep-server/exam"
	"certprep-server/models"
	"certprep-server/utils"
)

// sessionView maps an engine snapshot to its API form. Practice sessions reveal
// a question's answer once it has been answered; mock sessions only after submission.
func sessionView(s exam.Snapshot, passingPercent int) models.SessionView {
	view := models.SessionView{
		SessionID:      s.SessionID,
		Mode:           string(s.Mode),
		Phase:          string(s.Phase),
		Position:       s.Position,
		TotalQuestions: len(s.Questions),
		AnsweredCount:  s.Ledger.Answered(),
		Answers:        []*int(s.Ledger),
	}
	if view.Answers == nil {
		view.Answers = []*int{}
	}
	if s.Remaining != nil {
		view.RemainingSeconds = s.Remaining
		view.TimeRemaining = utils.FormatClock(*s.Remaining)
	}

	if q, ok := s.Current(); ok && s.Phase != exam.PhaseSetup {
		sq := &models.SessionQuestion{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    q.Options,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		}
		_, answered := s.Ledger.At(s.Position)
		if s.Phase == exam.PhaseSubmitted || (s.Mode == exam.ModePractice && answered) {
			sq.CorrectIndex = utils.IntPtr(q.CorrectIndex)
			sq.Explanation = q.Explanation
		}
		view.Current = sq
	}

	if s.Result != nil {
		view.Result = resultView(*s.Result, passingPercent)
	}
	return view
}

func resultView(r exam.Result, passingPercent int) *models.ResultView {
	return &models.ResultView{
		Correct:        r.Correct,
		Total:          r.Total,
		ScorePercent:   r.Percent(),
		Pass:           r.Passed(passingPercent),
		ElapsedSeconds: r.ElapsedSeconds,
		Answers:        r.Answers,
	}
}
