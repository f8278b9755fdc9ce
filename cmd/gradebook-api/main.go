package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-gradebook-api/api/swagger"
	"github.com/noah-isme/sma-gradebook-api/internal/handler"
	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/internal/repository"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	"github.com/noah-isme/sma-gradebook-api/pkg/cache"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	"github.com/noah-isme/sma-gradebook-api/pkg/database"
	"github.com/noah-isme/sma-gradebook-api/pkg/export"
	"github.com/noah-isme/sma-gradebook-api/pkg/jobs"
	"github.com/noah-isme/sma-gradebook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-gradebook-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-gradebook-api/pkg/storage"
)

// @title SMA Gradebook API
// @version 1.0.0
// @description Grade aggregation and report card service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	derivedEnabled := cfg.Cache.Enabled
	var cacheRepo service.CacheRepository
	if derivedEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, derived cache disabled", "error", err)
			derivedEnabled = false
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	derived := service.NewDerivedCacheService(cacheRepo, metrics, cfg.Cache.DerivedTTL, logr, derivedEnabled)

	classRepo := repository.NewClassRepository(db)
	gradebookRepo := repository.NewGradeBookRepository(db)
	termRepo := repository.NewTermRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	assessmentConfigRepo := repository.NewAssessmentConfigRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	historyRepo := repository.NewGradeHistoryRepository(db)
	termResultRepo := repository.NewTermResultRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reportRepo := repository.NewReportRepository(db)

	validate := validator.New()

	configSvc := service.NewAssessmentConfigService(assessmentConfigRepo, logr)
	scoringSvc := service.NewScoringService(configSvc, logr)
	periodSvc := service.NewPeriodGradeService(submissionRepo, assessmentRepo, configSvc, scoringSvc,
		cfg.Grading.DefaultCategoryWeight, cfg.Grading.DefaultPassingPercentage, logr)
	memo := cache.NewMemory(cfg.Cache.RecalcTTL, cfg.Cache.RecalcEntries)
	termSvc := service.NewTermGradeService(termRepo, classRepo, configSvc, periodSvc, scoringSvc,
		memo, cfg.Grading.DefaultPassingPercentage, logr)
	cumulativeSvc := service.NewCumulativeGradeService(termSvc, termResultRepo, logr)
	validatorSvc := service.NewGradeValidatorService(attendanceRepo, submissionRepo, cfg.Grading, logr)
	gradebookSvc := service.NewGradeBookService(classRepo, gradebookRepo, termRepo, assessmentRepo,
		submissionRepo, historyRepo, termSvc, validatorSvc, configSvc, derived, validate, logr)
	batchSvc := service.NewBatchRecalculationService(classRepo, gradebookRepo, gradebookSvc,
		derived, cfg.Recalc, metrics, logr)

	reportSvc := service.NewReportService(classRepo, gradebookRepo, cumulativeSvc, termResultRepo,
		derived, reportRepo, nil, nil, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Recalc.MaxRetries,
		})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(reportSvc, batchSvc, classRepo, store, signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
			logr, export.NewCSVExporter(), export.NewPDFExporter())
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Recalc.MaxRetries, logr)
		queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    2,
			BufferSize: 64,
			MaxRetries: cfg.Recalc.MaxRetries,
			RetryDelay: cfg.Recalc.RetryDelay,
			Logger:     logr,
		})
		reportSvc.Attach(queue, exportSvc)
		queue.Start(ctx)
		defer queue.Stop()
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	gradebookHandler := handler.NewGradebookHandler(gradebookSvc)
	gradeHandler := handler.NewGradeHandler(gradebookSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	configHandler := handler.NewConfigHandler(configSvc, validatorSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/engine", metricsHandler.Engine)
	if cfg.Reports.Enabled {
		api.GET("/export/:token", reportHandler.Download)
	}

	staff := middleware.RequireRole("ADMIN", "TEACHER")
	protected := api.Group("", middleware.JWT(cfg.JWT.Secret))
	{
		protected.POST("/gradebooks/classes/:id", staff, gradebookHandler.Initialize)
		protected.POST("/gradebooks/grades", staff, gradebookHandler.UpdateGrade)
		protected.GET("/gradebooks/classes/:id/subjects/:subjectId/summary", staff, gradebookHandler.SubjectSummary)

		protected.GET("/grades/classes/:classId/students/:studentId/subjects/:subjectId", middleware.RequireRole("ADMIN", "TEACHER", "SELF"), gradeHandler.TermGrade)
		protected.GET("/grades/history", staff, gradeHandler.History)

		protected.POST("/classes/:id/recalculate", staff, batchHandler.Recalculate)
		protected.GET("/classes/:id/statistics", staff, batchHandler.Statistics)

		protected.GET("/subjects/:id/config", staff, configHandler.SubjectConfig)
		protected.GET("/subjects/:id/config/validate", staff, configHandler.ValidateWeights)

		protected.GET("/reports/classes/:id/students/:studentId", middleware.RequireRole("ADMIN", "TEACHER", "SELF"), reportHandler.ReportCard)
		if cfg.Reports.Enabled {
			protected.POST("/reports/jobs", staff, reportHandler.Generate)
			protected.GET("/reports/jobs/:id", staff, reportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("shutdown incomplete", "error", err)
	}
}
