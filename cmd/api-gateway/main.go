package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/enrollment-pipeline/api/swagger"
	"github.com/noah-isme/enrollment-pipeline/internal/handler"
	"github.com/noah-isme/enrollment-pipeline/internal/middleware"
	"github.com/noah-isme/enrollment-pipeline/internal/repository"
	"github.com/noah-isme/enrollment-pipeline/internal/service"
	"github.com/noah-isme/enrollment-pipeline/pkg/cache"
	"github.com/noah-isme/enrollment-pipeline/pkg/config"
	"github.com/noah-isme/enrollment-pipeline/pkg/database"
	"github.com/noah-isme/enrollment-pipeline/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-pipeline/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-pipeline/pkg/middleware/requestid"
	"github.com/noah-isme/enrollment-pipeline/pkg/response"
	"github.com/noah-isme/enrollment-pipeline/pkg/storage"
)

// @title Enrollment Pipeline API
// @version 1.0.0
// @description Read access to normalized enrollment data and generated artifacts
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("migrate schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Features.Cache {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, serving without cache", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)
	analytics := service.NewAnalyticsService(enrollmentRepo, cacheSvc, metrics, logr)

	store, err := storage.NewLocalStorage(cfg.Artifact.BaseDir)
	if err != nil {
		logr.Fatal("open artifact storage", zap.Error(err))
	}
	secret := cfg.Artifact.SigningSecret
	if secret == "" {
		secret = uuid.NewString()
		logr.Warn("ARTIFACT_SIGNING_SECRET not set, download links will not survive a restart")
	}
	artifacts := service.NewArtifactService(store, storage.NewSignedURLSigner(secret, cfg.Artifact.LinkTTL), []string{
		cfg.Pipeline.OutputPath,
		cfg.Pipeline.MetricsPath,
		cfg.Pipeline.ReportPath,
		path.Join(cfg.Pipeline.VisualsDir, service.CityChartFile),
		path.Join(cfg.Pipeline.VisualsDir, service.TrendChartFile),
	}, logr)

	dependencies := map[string]handler.Pinger{"postgres": enrollmentRepo}
	if redisClient != nil {
		dependencies["redis"] = cacheRepo
	}
	metricsHandler := handler.NewMetricsHandler(metrics, dependencies)
	enrollmentHandler := handler.NewEnrollmentHandler(analytics)
	cityHandler := handler.NewCityHandler(analytics)
	artifactHandler := handler.NewArtifactHandler(artifacts, cfg.APIPrefix)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.NoRoute(response.NotFound)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.GET("/enrollments", enrollmentHandler.List)
	api.GET("/cities", cityHandler.List)
	api.GET("/cities/:city", cityHandler.Get)
	api.GET("/runs/latest", cityHandler.LatestRun)
	api.GET("/artifacts", artifactHandler.List)
	api.GET("/artifacts/:token", artifactHandler.Download)
	api.GET("/metrics/system", metricsHandler.System)

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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
