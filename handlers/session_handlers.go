package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"certprep-server/exam"
	"certprep-server/middleware"
	"certprep-server/models"
	"certprep-server/questions"
)

// Sessions carries the dependencies of the session endpoints.
type Sessions struct {
	Registry       *exam.Registry
	Source         questions.Source
	PassingPercent int
	Log            *zap.Logger
}

// poolLoader fetches the question pool for the caller's tier. A failed fetch
// is logged and yields an empty pool, which sessions treat as no content.
func (s *Sessions) poolLoader(tier models.Tier) exam.PoolLoader {
	return func(ctx context.Context) []models.Question {
		pool, err := s.Source.FetchQuestions(ctx, tier)
		if err != nil {
			s.Log.Error("failed to fetch questions", zap.String("tier", string(tier)), zap.Error(err))
			return nil
		}
		return pool
	}
}

// engine resolves the caller's engine for the :mode path parameter, writing a
// 404 for unknown modes.
func (s *Sessions) engine(c *gin.Context) (*exam.Engine, bool) {
	mode, err := exam.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	userID := middleware.UserID(c)
	return s.Registry.Acquire(c.Request.Context(), userID, mode, s.poolLoader(middleware.Tier(c))), true
}

func (s *Sessions) respond(c *gin.Context, e *exam.Engine) {
	c.JSON(http.StatusOK, sessionView(e.Snapshot(), s.PassingPercent))
}

// writeEngineError maps engine errors to HTTP statuses.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exam.ErrNoContent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, exam.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, exam.ErrInvalidOption), errors.Is(err, exam.ErrInvalidPosition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session operation failed"})
	}
}

// GetSession returns the caller's session, restoring stored progress on first access.
// GET /api/v1/sessions/:mode
func GetSession(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.engine(c)
		if !ok {
			return
		}
		s.respond(c, e)
	}
}

// StartSession builds a new session, replacing any previous one.
// POST /api/v1/sessions/:mode/start
func StartSession(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StartSessionRequest
		// an empty body starts with no filters
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		if req.Difficulty != "" && req.Difficulty != exam.AllValues && !models.Difficulty(req.Difficulty).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown difficulty: " + req.Difficulty})
			return
		}

		e, ok := s.engine(c)
		if !ok {
			return
		}
		filters := exam.Filters{Category: req.Category, Difficulty: req.Difficulty}
		if c.Param("mode") == string(exam.ModeMock) {
			// mock exams always draw from the whole bank
			filters = exam.Filters{}
		}
		pool := s.poolLoader(middleware.Tier(c))(c.Request.Context())
		if err := e.Start(c.Request.Context(), pool, filters); err != nil {
			writeEngineError(c, err)
			return
		}
		s.respond(c, e)
	}
}

// SelectAnswer records the answer for the current question.
// POST /api/v1/sessions/:mode/select
func SelectAnswer(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SelectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		e, ok := s.engine(c)
		if !ok {
			return
		}
		if err := e.Select(c.Request.Context(), *req.Option); err != nil {
			writeEngineError(c, err)
			return
		}
		s.respond(c, e)
	}
}

// AdvanceSession moves to the previous or next question. Next on the last question submits.
// POST /api/v1/sessions/:mode/advance
func AdvanceSession(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AdvanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Direction must be 'next' or 'previous'"})
			return
		}
		dir := exam.Next
		if req.Direction == "previous" {
			dir = exam.Previous
		}
		e, ok := s.engine(c)
		if !ok {
			return
		}
		if err := e.Advance(c.Request.Context(), dir); err != nil {
			writeEngineError(c, err)
			return
		}
		s.respond(c, e)
	}
}

// GoToQuestion jumps to a position.
// POST /api/v1/sessions/:mode/goto
func GoToQuestion(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GoToRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		e, ok := s.engine(c)
		if !ok {
			return
		}
		if err := e.GoTo(c.Request.Context(), *req.Position); err != nil {
			writeEngineError(c, err)
			return
		}
		s.respond(c, e)
	}
}

// NextUnanswered jumps to the next unanswered question.
// POST /api/v1/sessions/:mode/next-unanswered
func NextUnanswered(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.engine(c)
		if !ok {
			return
		}
		moved, err := e.NextUnanswered(c.Request.Context())
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.Header("X-All-Answered", strconv.FormatBool(!moved))
		s.respond(c, e)
	}
}

// SubmitSession ends the active session and returns the scored view.
// POST /api/v1/sessions/:mode/submit
func SubmitSession(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.engine(c)
		if !ok {
			return
		}
		if _, err := e.Submit(c.Request.Context()); err != nil {
			writeEngineError(c, err)
			return
		}
		s.respond(c, e)
	}
}

// ResetSession discards the session and its stored progress.
// POST /api/v1/sessions/:mode/reset
func ResetSession(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.engine(c)
		if !ok {
			return
		}
		if err := e.Reset(c.Request.Context()); err != nil {
			s.Log.Error("failed to reset session", zap.String("user_id", middleware.UserID(c)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear stored progress"})
			return
		}
		s.respond(c, e)
	}
}

