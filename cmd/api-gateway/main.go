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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-timetable-api/api/swagger"
	"github.com/noah-isme/exam-timetable-api/internal/handler"
	"github.com/noah-isme/exam-timetable-api/internal/middleware"
	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/repository"
	"github.com/noah-isme/exam-timetable-api/internal/service"
	"github.com/noah-isme/exam-timetable-api/pkg/cache"
	"github.com/noah-isme/exam-timetable-api/pkg/config"
	"github.com/noah-isme/exam-timetable-api/pkg/database"
	"github.com/noah-isme/exam-timetable-api/pkg/jobs"
	"github.com/noah-isme/exam-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/exam-timetable-api/pkg/storage"
)

// @title Exam Timetable API
// @version 1.0.0
// @description Final exam scheduling, conflict detection and roster exports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && cacheRepo != nil)

	startDate, err := parseStartDate(cfg.Timetable.StartDate)
	if err != nil {
		logr.Sugar().Fatalw("invalid TIMETABLE_START_DATE", "error", err)
	}
	timetableSvc := service.NewTimetableService(repository.NewTimetableRepository(db), cacheSvc, metricsSvc, validate, logr, service.TimetableDefaults{
		SlotIntervalMinutes: cfg.Timetable.SlotIntervalMinutes,
		StartHour:           cfg.Timetable.StartHour,
		EndHour:             cfg.Timetable.EndHour,
		StudentsPerRoom:     cfg.Timetable.StudentsPerRoom,
		InvigilatorPoolSize: cfg.Timetable.InvigilatorPoolSize,
		WeekCount:           cfg.Timetable.WeekCount,
		StartDate:           startDate,
	})
	catalogSvc := service.NewCatalogService(repository.NewCourseRepository(db), timetableSvc, cacheSvc, metricsSvc, logr, service.CatalogConfig{CacheTTL: cfg.Catalog.CacheTTL})

	catalog, err := catalogSvc.Current(ctx)
	if err != nil {
		logr.Sugar().Fatalw("failed to load course catalog", "error", err)
	}
	if err := timetableSvc.Load(ctx, catalog); err != nil {
		logr.Sugar().Fatalw("failed to load timetable", "error", err)
	}

	exportJobSvc, exportQueue := buildExports(ctx, cfg, db, timetableSvc, metricsSvc, validate, logr)
	if exportQueue != nil {
		defer exportQueue.Stop()
	}

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics"))

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cache.Pinger{Client: redisClient}
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	exportHandler := handler.NewExportHandler(nil)
	if exportJobSvc != nil {
		exportHandler = handler.NewExportHandler(exportJobSvc)
	}
	registerRoutes(r.Group(cfg.APIPrefix), authSvc,
		handler.NewAuthHandler(),
		handler.NewTimetableHandler(timetableSvc),
		handler.NewCourseHandler(timetableSvc, catalogSvc, cfg.Catalog.MaxUploadMB),
		exportHandler,
	)

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
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup, auth middleware.TokenValidator, authHandler *handler.AuthHandler, timetableHandler *handler.TimetableHandler, courseHandler *handler.CourseHandler, exportHandler *handler.ExportHandler) {
	api.GET("/export/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))
	editors := middleware.RequireRoles(models.RoleCoordinator)

	secured.GET("/auth/me", authHandler.Me)

	tt := secured.Group("/timetable")
	tt.GET("/settings", timetableHandler.GetSettings)
	tt.PUT("/settings", editors, timetableHandler.UpdateSettings)
	tt.GET("/weeks", timetableHandler.ListWeeks)
	tt.POST("/weeks", editors, timetableHandler.AddWeek)
	tt.GET("/weeks/:week", timetableHandler.GetWeek)
	tt.GET("/weeks/:week/roster", timetableHandler.GetRoster)
	tt.POST("/placements", editors, timetableHandler.Place)
	tt.DELETE("/placements", editors, timetableHandler.Remove)
	tt.POST("/reset", editors, timetableHandler.Reset)
	tt.GET("/conflicts", timetableHandler.Conflicts)
	tt.GET("/overview", timetableHandler.Overview)

	courses := secured.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.POST("/import", editors, courseHandler.Import)
	courses.GET("/imports/latest", courseHandler.LatestImport)

	exports := secured.Group("/exports")
	exports.POST("", editors, exportHandler.Create)
	exports.GET("/:id", exportHandler.Status)
}

// buildExports wires storage, the worker queue and cleanup. It returns nils
// when exports are disabled or storage cannot be prepared.
func buildExports(ctx context.Context, cfg *config.Config, db *sqlx.DB, source *service.TimetableService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ExportJobService, *jobs.Queue) {
	if !cfg.Exports.Enabled {
		logr.Sugar().Infow("exports disabled")
		return nil, nil
	}
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Warnw("export storage unavailable, exports disabled", "dir", cfg.Exports.StorageDir, "error", err)
		return nil, nil
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(source, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	repo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(repo, exporter, metrics, logr)
	queue := jobs.NewQueue("roster-exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		BufferSize:  128,
		MaxRetries:  cfg.Exports.WorkerRetries,
		RetryDelay:  2 * time.Second,
		Logger:      logr,
		OnExhausted: worker.Exhausted,
	})
	queue.Start(ctx)

	svc := service.NewExportJobService(repo, queue, exporter, source, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	svc.RecoverPendingJobs(ctx)
	svc.StartCleanup(ctx)
	return svc, queue
}

func parseStartDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
