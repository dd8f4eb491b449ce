package handlers

import (
	"context"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"certprep-server/exam"
	"certprep-server/middleware"
	"certprep-server/models"
	"certprep-server/questions"
)

const historyLimit = 50

// HistoryReader lists a user's submitted mock exams.
type HistoryReader interface {
	History(ctx context.Context, userID string, limit int) ([]models.ExamHistoryEntry, error)
}

// GetQuestions lists the questions visible to the caller's tier.
// GET /api/v1/questions?category=&difficulty=
func GetQuestions(src questions.Source, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		pool, err := src.FetchQuestions(c.Request.Context(), middleware.Tier(c))
		if err != nil {
			log.Error("failed to fetch questions", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve questions"})
			return
		}
		filtered := exam.Filter(pool, exam.Filters{Category: c.Query("category"), Difficulty: c.Query("difficulty")})
		c.JSON(http.StatusOK, gin.H{"questions": filtered, "total": len(filtered)})
	}
}

// GetFlashcards lists flashcards, optionally for one category.
// GET /api/v1/flashcards?category=
func GetFlashcards(src questions.FlashcardSource, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Query("category")
		if category == exam.AllValues {
			category = ""
		}
		cards, err := src.FetchFlashcards(c.Request.Context(), category)
		if err != nil {
			log.Error("failed to fetch flashcards", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve flashcards"})
			return
		}
		if cards == nil {
			cards = []models.Flashcard{}
		}
		c.JSON(http.StatusOK, cards)
	}
}

// GetExamHistory returns submitted mock exams and the share of the stored
// practice session that has been answered. history may be nil when no result
// store is configured.
// GET /api/v1/exams/history
func GetExamHistory(history HistoryReader, progress exam.ProgressStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := middleware.UserID(c)

		resp := models.ExamHistoryResponse{Exams: []models.ExamHistoryEntry{}}
		if history != nil {
			exams, err := history.History(ctx, userID, historyLimit)
			if err != nil {
				log.Error("failed to load exam history", zap.String("user_id", userID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve exam history"})
				return
			}
			resp.Exams = append(resp.Exams, exams...)
		}

		raw, found, err := progress.Get(ctx, exam.ProgressKey(userID, exam.ModePractice))
		if err != nil {
			// progress is optional in the response
			log.Warn("failed to read practice progress", zap.String("user_id", userID), zap.Error(err))
		}
		if found {
			if answered, total, ok := exam.AnsweredShare(raw); ok {
				pct := int(math.Round(float64(answered) / float64(total) * 100))
				resp.PracticeProgress = &pct
				resp.AnsweredCount = answered
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
