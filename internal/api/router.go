package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/alerts"
	"github.com/leozw/mantenapp/internal/api/handlers"
	"github.com/leozw/mantenapp/internal/api/middleware"
	"github.com/leozw/mantenapp/internal/auth"
	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/metrics"
	"github.com/leozw/mantenapp/internal/probe"
	"github.com/leozw/mantenapp/internal/queue"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

type Server struct {
	Config    *config.Config
	Router    *gin.Engine
	Repo      *db.Repository
	Cache     *redis.Client
	Collector *metrics.Collector
	Writer    *metrics.RemoteWriter
	Logger    *zap.Logger

	tokens *auth.TokenManager
	rules  alerts.Rules
}

func NewServer(cfg *config.Config, repo *db.Repository, cache *redis.Client, collector *metrics.Collector, writer *metrics.RemoteWriter, logger *zap.Logger) (*Server, error) {
	rules, err := alerts.RulesFromConfig(cfg.Alerts)
	if err != nil {
		return nil, err
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.CORS())

	server := &Server{
		Config:    cfg,
		Router:    router,
		Repo:      repo,
		Cache:     cache,
		Collector: collector,
		Writer:    writer,
		Logger:    logger,
		tokens:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		rules:     rules,
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	health := handlers.NewHandler(s.Repo, s.Cache, s.Logger)
	s.Router.GET("/health", health.Health)
	s.Router.GET("/ready", health.Ready)
	s.Router.GET("/metrics", gin.WrapH(s.Collector.Handler()))

	v1 := s.Router.Group("/api/" + s.Config.Server.APIVersion)

	// Plugin ingestion, authenticated by client API key
	engine := alerts.NewEngine(s.rules)
	processor := alerts.NewProcessor(s.Repo, s.Collector, s.Logger)
	syncHandler := handlers.NewSyncHandler(s.Repo, engine, processor, s.Collector, s.Cache, s.Logger)
	limiter := middleware.NewRateLimiter(s.Config.Ingest.RatePerMinute, s.Config.Ingest.Burst)
	ingest := v1.Group("")
	ingest.Use(limiter.Limit(middleware.APIKey))
	{
		ingest.POST("/sync", syncHandler.Sync)
		ingest.GET("/sync/test", syncHandler.TestConnection)
		ingest.POST("/webhooks/client-data", syncHandler.Webhook)
	}

	// Auth routes
	authHandler := handlers.NewAuthHandler(s.Repo, s.Repo, s.tokens, s.Config.Auth.BcryptRounds, s.Logger)
	authPublic := v1.Group("/auth")
	{
		authPublic.POST("/register", authHandler.Register)
		authPublic.POST("/login", authHandler.Login)
	}

	// Admin routes (protected)
	admin := v1.Group("")
	admin.Use(middleware.AuthRequired(s.tokens), middleware.RequireRole(core.RoleAdmin, core.RoleSuperAdmin))
	{
		admin.GET("/auth/me", authHandler.Me)
		admin.POST("/auth/change-password", authHandler.ChangePassword)
		admin.POST("/auth/logout", authHandler.Logout)
		admin.GET("/auth/refresh", authHandler.Refresh)
		admin.GET("/auth/activity", authHandler.Activity)
	}

	var jobs handlers.ProbeQueue
	if s.Cache != nil {
		jobs = queue.NewRedisQueue(s.Cache.Client)
	}
	sink := probe.NewSink(s.Cache, s.Collector, s.Writer, s.Logger)
	clientHandler := handlers.NewClientHandler(s.Repo, s.Repo, probe.NewProber(), sink, jobs, s.Cache, s.Logger)
	{
		admin.GET("/clients", clientHandler.List)
		admin.POST("/clients", clientHandler.Create)
		admin.GET("/clients/:id", clientHandler.Get)
		admin.PUT("/clients/:id", clientHandler.Update)
		admin.DELETE("/clients/:id", clientHandler.Delete)
		admin.POST("/clients/:id/regenerate-api-key", clientHandler.RegenerateAPIKey)
		admin.GET("/clients/:id/site-data", clientHandler.SiteData)
		admin.POST("/clients/:id/probe", clientHandler.Probe)
		admin.GET("/clients/:id/probe", clientHandler.LatestProbe)
	}

	alertHandler := handlers.NewAlertHandler(s.Repo, s.Repo, s.Cache, s.Logger)
	{
		admin.GET("/alerts", alertHandler.List)
		admin.GET("/alerts/stats", alertHandler.Stats)
		admin.POST("/alerts/bulk-update", alertHandler.BulkUpdate)
		admin.GET("/alerts/:id", alertHandler.Get)
		admin.PATCH("/alerts/:id", alertHandler.UpdateStatus)
		admin.DELETE("/alerts/:id", alertHandler.Delete)
	}

	dashboardHandler := handlers.NewDashboardHandler(s.Repo, s.Cache, s.Logger)
	{
		admin.GET("/dashboard/stats", dashboardHandler.Stats)
		admin.GET("/dashboard/recent-activity", dashboardHandler.RecentActivity)
		admin.GET("/dashboard/charts/sync-activity", dashboardHandler.SyncActivity)
		admin.GET("/dashboard/charts/alerts-distribution", dashboardHandler.AlertsDistribution)
		admin.GET("/dashboard/system-health", dashboardHandler.SystemHealth)
	}
}
