package ingestion

import (
	"context"

	"certprep-server/models"
	"certprep-server/questions"
)

// FileSource serves a bank held in memory, loaded from disk or object storage.
type FileSource struct {
	bank   *Bank
	policy questions.TierPolicy
}

// NewFileSource loads the bank once and serves it from memory.
func NewFileSource(ctx context.Context, load BankLoader, policy questions.TierPolicy) (*FileSource, error) {
	bank, err := load(ctx)
	if err != nil {
		return nil, err
	}
	return &FileSource{bank: bank, policy: policy}, nil
}

func (s *FileSource) FetchQuestions(ctx context.Context, tier models.Tier) ([]models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.policy.Apply(tier, s.bank.Questions)
	out := make([]models.Question, len(pool))
	copy(out, pool)
	return out, nil
}

func (s *FileSource) FetchFlashcards(ctx context.Context, category string) ([]models.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []models.Flashcard{}
	for _, c := range s.bank.Meta.Flashcards {
		if category == "" || c.Category == category {
			out = append(out, c)
		}
	}
	return out, nil
}
