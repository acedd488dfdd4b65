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
	"go.uber.org/zap"

	_ "github.com/seventic/ops-api/api/swagger"
	"github.com/seventic/ops-api/internal/handler"
	"github.com/seventic/ops-api/internal/middleware"
	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/repository"
	"github.com/seventic/ops-api/internal/service"
	"github.com/seventic/ops-api/pkg/cache"
	"github.com/seventic/ops-api/pkg/config"
	"github.com/seventic/ops-api/pkg/database"
	"github.com/seventic/ops-api/pkg/jobs"
	"github.com/seventic/ops-api/pkg/logger"
	corsmiddleware "github.com/seventic/ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/seventic/ops-api/pkg/middleware/requestid"
	"github.com/seventic/ops-api/pkg/storage"
)

// @title Seventic Ops API
// @version 1.0.0
// @description Request dashboard and growth operations backend
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	missionRepo := repository.NewMissionRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	// Redis is optional: without it dashboards are computed on every call.
	var cacheSvc *service.CacheService
	if cfg.Dashboard.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
		}
	}

	// Core services.
	normalizer := service.NewNormalizer(missionRepo, logr)
	engine := service.NewFilterEngine()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "seventic-ops",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	missionSvc := service.NewMissionService(missionRepo, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, userRepo, normalizer, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(requestRepo, userRepo, normalizer, engine, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, validate, logr)
	exportSvc := service.NewExportService(dashboardSvc, logr)

	statsCache := service.NewStatsCache(service.StatsCacheOptions{
		TTL:      cfg.StatsCache.TTL,
		Capacity: cfg.StatsCache.Capacity,
	})
	statsCache.StartSweeper(ctx, cfg.StatsCache.SweepInterval, logr)
	acelleClient := service.NewAcelleClient(cfg.Acelle.Endpoint, cfg.Acelle.APIToken, cfg.Acelle.Timeout, logr)
	statsSvc := service.NewStatsService(acelleClient, statsCache, metricsSvc, logr)

	attachmentStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)
	attachmentSvc := service.NewAttachmentService(attachmentRepo, attachmentStore, signer, service.AttachmentOptions{
		MaxFileSizeBytes: cfg.Attachments.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Attachments.AllowedMIMEs,
	}, logr)

	// Invitation emails go through the in-memory job queue.
	mailQueue := jobs.NewQueue("invitation-mail", func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.InvitationEmailPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		logr.Info("sending invitation email",
			zap.String("to", payload.Email),
			zap.String("from", cfg.Invitations.FromEmail),
			zap.String("role", payload.Role),
			zap.Time("expires_at", payload.ExpiresAt))
		return nil
	}, jobs.QueueConfig{Workers: cfg.Invitations.Workers, Logger: logr})
	mailQueue.Start(ctx)
	defer mailQueue.Stop()
	invitationSvc := service.NewInvitationService(invitationRepo, userRepo, mailQueue, validate, logr, cfg.Invitations.TTL)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	missionHandler := handler.NewMissionHandler(missionSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	invitationHandler := handler.NewInvitationHandler(invitationSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
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

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/dashboard/requests", dashboardHandler.Load)

		requests := protected.Group("/requests")
		{
			requests.POST("", middleware.RequireRoles(models.RoleSDR), requestHandler.Create)
			requests.GET("/:id", requestHandler.Get)
			requests.PUT("/:id", requestHandler.Update)
			requests.POST("/:id/claim", requestHandler.Claim)
			requests.POST("/:id/assign", middleware.RequireRoles(models.RoleAdmin, models.RoleGrowth), requestHandler.Assign)
			requests.POST("/:id/complete", requestHandler.Complete)
			requests.POST("/:id/cancel", requestHandler.Cancel)
			requests.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), requestHandler.Delete)

			requests.POST("/:id/attachments", attachmentHandler.Upload)
			requests.GET("/:id/attachments", attachmentHandler.List)
		}

		missions := protected.Group("/missions")
		{
			missions.GET("", missionHandler.List)
			missions.GET("/:id", missionHandler.Get)
			missions.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleGrowth), missionHandler.Create)
			missions.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleGrowth), missionHandler.Update)
			missions.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), missionHandler.Delete)
		}

		users := protected.Group("/users")
		{
			users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
			users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
			users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
			users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
			users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
		}

		protected.GET("/stats/campaigns/:uid", statsHandler.Campaign)

		protected.POST("/attachments/:attachmentId/sign", attachmentHandler.Sign)
		protected.DELETE("/attachments/:attachmentId", middleware.RequireRoles(models.RoleAdmin, models.RoleGrowth), attachmentHandler.Delete)

		protected.GET("/ops/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

		if cfg.Schedules.Enabled {
			schedule := protected.Group("/schedule")
			{
				schedule.PUT("", scheduleHandler.Set)
				schedule.GET("/week", scheduleHandler.Week)
				schedule.GET("/me", scheduleHandler.Mine)
				schedule.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), scheduleHandler.Delete)
			}
		}

		if cfg.Exports.Enabled {
			protected.GET("/exports/requests", exportHandler.Requests)
		}
	}

	if cfg.Invitations.Enabled {
		api.POST("/invitations/accept", invitationHandler.Accept)
		invitations := api.Group("/invitations")
		invitations.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
		{
			invitations.POST("", invitationHandler.Invite)
			invitations.GET("", invitationHandler.List)
			invitations.DELETE("/:token", invitationHandler.Revoke)
		}
	}

	// Signed downloads authenticate through the token itself.
	api.GET("/attachments/download", attachmentHandler.Download)

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
