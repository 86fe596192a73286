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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/classtrace/classtrace-api/api/swagger"
	"github.com/classtrace/classtrace-api/internal/handler"
	"github.com/classtrace/classtrace-api/internal/middleware"
	"github.com/classtrace/classtrace-api/internal/models"
	"github.com/classtrace/classtrace-api/internal/repository"
	"github.com/classtrace/classtrace-api/internal/service"
	"github.com/classtrace/classtrace-api/pkg/cache"
	"github.com/classtrace/classtrace-api/pkg/config"
	"github.com/classtrace/classtrace-api/pkg/database"
	"github.com/classtrace/classtrace-api/pkg/jobs"
	"github.com/classtrace/classtrace-api/pkg/logger"
	corsmiddleware "github.com/classtrace/classtrace-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classtrace/classtrace-api/pkg/middleware/requestid"
	"github.com/classtrace/classtrace-api/pkg/storage"
)

// @title ClassTrace API
// @version 1.0.0
// @description Class meeting attendance reconciliation service
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Meetings.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Meetings.CacheTTL, logr, cfg.Meetings.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "classtrace-api",
	})
	meetingSvc := service.NewMeetingService(meetingRepo, rosterRepo, cacheSvc, metricsSvc, logr, cfg.Meetings)
	rosterSvc := service.NewRosterService(rosterRepo, cacheSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/meetings/reconcile", meetingHandler.Reconcile)
	protected.GET("/meetings", meetingHandler.List)
	protected.GET("/meetings/:id", meetingHandler.Get)
	protected.GET("/meetings/:id/result", meetingHandler.Result)
	protected.GET("/meetings/:id/summary", meetingHandler.Summary)
	protected.GET("/meetings/:id/periods", meetingHandler.Periods)
	protected.GET("/meetings/:id/unknown-names", meetingHandler.UnknownNames)

	protected.GET("/rosters", rosterHandler.List)
	protected.GET("/rosters/:id", rosterHandler.Get)
	protected.POST("/rosters", rosterHandler.Create)
	protected.POST("/rosters/import", rosterHandler.Import)
	protected.PUT("/rosters/:id/entries/:entryId/alias", rosterHandler.SetAlias)

	protected.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportRepo := repository.NewReportRepository(db)
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(meetingRepo, rosterRepo, store, signer, cfg.Meetings, cfg.APIPrefix, logr)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc := service.NewReportService(reportRepo, meetingRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})

		reportQueue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler := handler.NewReportHandler(reportSvc)
		protected.POST("/reports", reportHandler.Create)
		protected.GET("/reports/status/:id", reportHandler.Status)
		api.GET("/reports/download/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
