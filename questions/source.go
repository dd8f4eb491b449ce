// Package questions defines how the server obtains question pools and
// flashcards, and the access-tier policy applied to them.
package questions

import (
	"context"

	"certprep-server/models"
)

// Source supplies the question pool for a session.
type Source interface {
	FetchQuestions(ctx context.Context, tier models.Tier) ([]models.Question, error)
}

// FlashcardSource supplies study flashcards.
type FlashcardSource interface {
	FetchFlashcards(ctx context.Context, category string) ([]models.Flashcard, error)
}

// TierPolicy bounds how many questions each access tier receives.
type TierPolicy struct {
	BasicLimit int // questions visible to the basic tier; 0 means unlimited
}

// Limit returns the number of questions tier may see, or 0 for no limit.
func (p TierPolicy) Limit(tier models.Tier) int {
	switch tier {
	case models.TierPro, models.TierAdmin:
		return 0
	default:
		// unknown tiers get the restricted view
		return p.BasicLimit
	}
}

// Apply truncates pool to the tier's limit, keeping pool order.
func (p TierPolicy) Apply(tier models.Tier, pool []models.Question) []models.Question {
	if n := p.Limit(tier); n > 0 && len(pool) > n {
		return pool[:n]
	}
	return pool
}
