package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"certprep-server/config"
	"certprep-server/db"
	"certprep-server/exam"
	"certprep-server/handlers"
	"certprep-server/ingestion"
	"certprep-server/logger"
	"certprep-server/metrics"
	"certprep-server/middleware"
	"certprep-server/questions"
	"certprep-server/store"
	"certprep-server/tracing"
)

// contentSource serves both questions and flashcards
type contentSource interface {
	questions.Source
	questions.FlashcardSource
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer zlog.Sync()

	metrics.Init()
	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			zlog.Fatal("error initializing tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				zlog.Error("error shutting down tracer", zap.Error(err))
			}
		}()
	}

	// Initialize database connection pool. A file bank may run without one,
	// in which case mock results are not recorded.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("unable to connect to database", zap.Error(err))
		}
		defer pool.Close()

		// Ensure database schema is set up
		if err := db.CreateSchema(ctx, pool); err != nil {
			zlog.Fatal("error creating database schema", zap.Error(err))
		}
	}

	loader, location, err := bankLoader(cfg.Bank)
	if err != nil {
		zlog.Fatal("error configuring question bank", zap.Error(err))
	}

	policy := questions.TierPolicy{BasicLimit: cfg.Bank.BasicTierLimit}
	var content contentSource
	switch cfg.Bank.Source {
	case "file", "minio":
		content, err = ingestion.NewFileSource(ctx, loader, policy)
		if err != nil {
			zlog.Fatal("error loading question bank", zap.String("location", location), zap.Error(err))
		}
	default:
		content = db.NewQuestionStore(pool, policy, zlog)
	}

	progress, closeProgress, err := openProgressStore(ctx, cfg.Progress)
	if err != nil {
		zlog.Fatal("error opening progress store", zap.String("backend", cfg.Progress.Backend), zap.Error(err))
	}
	defer closeProgress()

	var (
		submitter exam.ResultSubmitter
		history   handlers.HistoryReader
	)
	if pool != nil {
		results := db.NewResultStore(pool)
		submitter, history = results, results
	}

	registry := exam.NewRegistry(func(userID string, mode exam.Mode) *exam.Engine {
		return exam.NewEngine(exam.Options{
			UserID:     userID,
			Mode:       mode,
			Store:      progress,
			Submitter:  submitter,
			Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
			Logger:     zlog,
			Categories: cfg.Exam.Categories,
			TargetSize: cfg.Exam.MockQuestions,
			Duration:   cfg.Exam.MockDuration,
		})
	}, clockwork.NewRealClock(), cfg.Progress.TTL)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), tracing.GinMiddleware(), middleware.Logger(zlog), metrics.MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.PrometheusHandler())

	authMiddleware := middleware.AuthMiddleware(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, zlog)
	rateLimit := middleware.RateLimit(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	sessions := &handlers.Sessions{
		Registry:       registry,
		Source:         content,
		PassingPercent: cfg.Exam.PassingPercent,
		Log:            zlog,
	}

	// API Routes (version 1)
	apiV1 := router.Group("/api/v1")
	apiV1.Use(authMiddleware, rateLimit)
	{
		apiV1.GET("/questions", handlers.GetQuestions(content, zlog))
		apiV1.GET("/flashcards", handlers.GetFlashcards(content, zlog))
		apiV1.GET("/exams/history", handlers.GetExamHistory(history, progress, zlog))

		apiV1.GET("/sessions/:mode", handlers.GetSession(sessions))
		apiV1.POST("/sessions/:mode/start", handlers.StartSession(sessions))
		apiV1.POST("/sessions/:mode/select", handlers.SelectAnswer(sessions))
		apiV1.POST("/sessions/:mode/advance", handlers.AdvanceSession(sessions))
		apiV1.POST("/sessions/:mode/goto", handlers.GoToQuestion(sessions))
		apiV1.POST("/sessions/:mode/next-unanswered", handlers.NextUnanswered(sessions))
		apiV1.POST("/sessions/:mode/submit", handlers.SubmitSession(sessions))
		apiV1.POST("/sessions/:mode/reset", handlers.ResetSession(sessions))
	}

	if pool != nil {
		admin := router.Group("/admin")
		admin.Use(authMiddleware, middleware.RoleCheckMiddleware("admin"))
		{
			admin.GET("/error_logs", handlers.AdminErrorLogs(pool, zlog))
			admin.POST("/ingest", handlers.TriggerIngestion(pool, loader, location, zlog))
		}
	}

	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: middleware.CORS(cfg.CORS.AllowedOrigins)(router),
	}

	// Goroutine to gracefully shut down the server
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zlog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("server forced to shutdown", zap.Error(err))
		}
		// stop countdowns and flush pending result submissions
		registry.Close()
	}()

	zlog.Info("certprep server starting",
		zap.String("addr", cfg.ServerPort),
		zap.String("bank", cfg.Bank.Source),
		zap.String("progress", cfg.Progress.Backend))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("server startup error", zap.Error(err))
	}
	<-idle
	zlog.Info("server exited gracefully")
}

// bankLoader reads the bank from object storage when BANK.SOURCE is minio and
// from BANK.PATH otherwise. location labels it in logs.
func bankLoader(cfg config.BankConfig) (ingestion.BankLoader, string, error) {
	if cfg.Source == "minio" {
		load, err := ingestion.MinioLoader(cfg.Minio)
		if err != nil {
			return nil, "", err
		}
		return load, fmt.Sprintf("s3://%s/%s", cfg.Minio.Bucket, cfg.Minio.Prefix), nil
	}
	return ingestion.DirLoader(cfg.Path), cfg.Path, nil
}

// openProgressStore opens the configured progress backend and returns its closer.
func openProgressStore(ctx context.Context, cfg config.ProgressConfig) (exam.ProgressStore, func(), error) {
	switch cfg.Backend {
	case "redis":
		r, err := store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case "sqlite":
		s, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}
