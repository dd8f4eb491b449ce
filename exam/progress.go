package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"certprep-server/models"
)

// ProgressStore is the durable key-value medium holding progress records.
type ProgressStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ProgressKey is the storage slot of a user's session in one mode.
func ProgressKey(userID string, mode Mode) string {
	return fmt.Sprintf("progress:%s:%s", userID, mode)
}

// progressRecord is the serialized snapshot of a session.
type progressRecord struct {
	SessionID        string    `json:"session_id,omitempty"`
	Answers          Ledger    `json:"answers"`
	Current          int       `json:"current"`
	Phase            Phase     `json:"phase"`
	Filters          Filters   `json:"filters"`
	QuestionIDs      []string  `json:"question_ids,omitempty"`
	RemainingSeconds *int      `json:"remaining_seconds,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	ElapsedSeconds   int       `json:"elapsed_seconds,omitempty"`
}

func decodeProgress(raw string) (progressRecord, error) {
	var rec progressRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return progressRecord{}, fmt.Errorf("decode progress record: %w", err)
	}
	if rec.Answers == nil {
		return progressRecord{}, fmt.Errorf("decode progress record: missing answers")
	}
	switch rec.Phase {
	case PhaseActive, PhaseSubmitted:
	default:
		return progressRecord{}, fmt.Errorf("decode progress record: unexpected phase %q", rec.Phase)
	}
	return rec, nil
}

func (r progressRecord) encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode progress record: %w", err)
	}
	return string(b), nil
}

// resolve maps the record onto a freshly built question list. It returns the
// question order to use, or ok=false when the record does not fit.
func (r progressRecord) resolve(built, pool []models.Question) ([]models.Question, bool) {
	if len(r.Answers) != len(built) || len(built) == 0 {
		return nil, false
	}
	questions := built
	if len(r.QuestionIDs) > 0 {
		if len(r.QuestionIDs) != len(built) {
			return nil, false
		}
		byID := make(map[string]models.Question, len(pool))
		for _, q := range pool {
			byID[q.ID] = q
		}
		questions = make([]models.Question, len(r.QuestionIDs))
		for i, id := range r.QuestionIDs {
			q, found := byID[id]
			if !found {
				return nil, false
			}
			questions[i] = q
		}
	}
	for i, slot := range r.Answers {
		if slot != nil && !questions[i].HasOption(*slot) {
			return nil, false
		}
	}
	return questions, true
}

// AnsweredShare reads a stored record and reports how many of its slots are
// answered. ok is false when no usable record exists.
func AnsweredShare(raw string) (answered, total int, ok bool) {
	rec, err := decodeProgress(raw)
	if err != nil || len(rec.Answers) == 0 {
		return 0, 0, false
	}
	return rec.Answers.Answered(), len(rec.Answers), true
}

func questionIDs(questions []models.Question) []string {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}
