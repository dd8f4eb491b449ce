package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"certprep-server/db"
	"certprep-server/ingestion"
	"certprep-server/middleware"
)

// AdminErrorLogs lists recent ingestion problems.
// GET /admin/error_logs?source=&search=&limit=
func AdminErrorLogs(pool *pgxpool.Pool, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil || limit <= 0 || limit > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		logs, err := db.ErrorLogs(c.Request.Context(), pool, c.Query("source"), c.Query("search"), limit)
		if err != nil {
			log.Error("error querying error logs", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve error logs"})
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

// TriggerIngestion imports the content bank returned by load into the database.
// location names the bank in logs and admin events.
// POST /admin/ingest
func TriggerIngestion(pool *pgxpool.Pool, load ingestion.BankLoader, location string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor := middleware.UserID(c)

		stats, err := ingestion.Import(ctx, pool, log, load)
		if err != nil {
			log.Error("manual ingestion failed", zap.String("location", location), zap.Error(err))
			db.LogAdminEvent(ctx, pool, log, actor, "manual_ingestion_failed", location, fmt.Sprintf("Error: %v", err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("Ingestion failed: %v", err)})
			return
		}

		db.LogAdminEvent(ctx, pool, log, actor, "manual_ingestion_success", location,
			fmt.Sprintf("Imported %d questions and %d flashcards (schema %s).", stats.Questions, stats.Flashcards, stats.SchemaVersion))
		c.JSON(http.StatusOK, stats)
	}
}
