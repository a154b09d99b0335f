package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/embedding"
	"github.com/alintentu/farmer-app/internal/entitlement"
	"github.com/alintentu/farmer-app/internal/handler"
	"github.com/alintentu/farmer-app/internal/ingestion"
	"github.com/alintentu/farmer-app/internal/middleware"
	"github.com/alintentu/farmer-app/internal/queue"
	"github.com/alintentu/farmer-app/internal/registry"
	"github.com/alintentu/farmer-app/pkg/config"
	"github.com/alintentu/farmer-app/pkg/database"
	"github.com/alintentu/farmer-app/pkg/jwtutil"
	"github.com/alintentu/farmer-app/pkg/logger"
	"github.com/alintentu/farmer-app/pkg/storage"
	"github.com/alintentu/farmer-app/prometheus"
)

// gatedServices are the downstream services exposed through the proxy,
// each behind its own plan gate.
var gatedServices = []string{
	"tasks", "crm", "invoicing", "marketing",
	"analytics", "communication", "files", "search",
}

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting farmer-app core service...", cfg.LogConfig()...)

	// Initialize database
	if err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)

	db := database.GetDB()

	// Entitlement wiring
	resolver := entitlement.NewResolver(entitlement.NewGormModuleSource(db), nil)
	tenants := entitlement.NewGormTenantSource(db)
	usage := entitlement.NewGormUsageStore(db)

	// Service registry with pluggable health cache
	var healthCache registry.HealthCache
	if cfg.Registry.CacheDriver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		healthCache = registry.NewRedisHealthCache(client)
		log.Info("Service health cache backed by redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		healthCache = registry.NewMemoryHealthCache()
	}
	serviceRegistry := registry.NewRegistry(&cfg.Registry, healthCache, log)

	// Document pipeline
	files := storage.NewLocalStore(cfg.Storage.Root)
	embedder := embedding.NewClient(&cfg.Embeddings, log)
	pipeline, err := ingestion.NewPipeline(
		ingestion.NewGormStore(db),
		ingestion.NewExtractor(&cfg.Ingestion, cfg.Storage.Root, log),
		embedder,
		log,
	)
	if err != nil {
		log.Fatal("Failed to build ingestion pipeline", zap.Error(err))
	}
	defer pipeline.Release()

	// Job queue
	var dispatcher queue.Dispatcher
	if cfg.Queue.Driver == "rabbitmq" {
		dispatcher, err = queue.NewRabbitMQDispatcher(cfg.Queue.AMQPURL, cfg.Queue.QueueName, log)
		if err != nil {
			log.Fatal("Failed to connect to rabbitmq", zap.Error(err))
		}
	} else {
		dispatcher = queue.NewMemoryDispatcher(cfg.Queue.BufferSize, log)
	}
	defer dispatcher.Close()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go func() {
		err := dispatcher.Consume(consumerCtx, func(ctx context.Context, job queue.DocumentJob) error {
			return pipeline.Process(ctx, job.DocumentID)
		})
		if err != nil && consumerCtx.Err() == nil {
			log.Error("Queue consumer stopped", zap.Error(err))
		}
	}()

	// Handlers
	documents := handler.NewDocumentHandler(files, dispatcher, usage)
	services := handler.NewServiceHandler(serviceRegistry)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(middleware.MetricsMiddleware)

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	auth := e.Group("/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/register", handler.Register)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Catalog
	api.GET("/modules", handler.ListModules)
	api.GET("/plans", handler.ListPlans)

	// Tenant management
	tenantsGroup := api.Group("/tenants")
	tenantsGroup.POST("", handler.CreateTenant)
	tenantsGroup.GET("/:id", handler.GetTenant)
	tenantsGroup.PATCH("/:id", handler.UpdateTenant)
	tenantsGroup.POST("/:id/modules", handler.AttachModule)

	// Entitlements for the authenticated tenant
	api.GET("/entitlements", handler.GetEntitlements)
	api.GET("/entitlements/:feature", handler.CheckFeature)

	// Content library behind the files feature gate
	docs := api.Group("/documents")
	docs.Use(middleware.FeatureGate(resolver, tenants, "files"))
	docs.POST("", documents.Upload)
	docs.GET("", documents.List)
	docs.GET("/:id", documents.Get)
	docs.GET("/:id/download", documents.Download)
	docs.POST("/:id/process", documents.Reprocess)
	docs.DELETE("/:id", documents.Delete)
	docs.PATCH("/:id/pages/:pageID", documents.TogglePage)
	docs.PATCH("/:id/images/:imageID", documents.ToggleImage)

	// Downstream service registry and proxy
	api.GET("/services/status", services.Status)
	for _, svc := range gatedServices {
		group := api.Group("/services/" + svc)
		group.Use(middleware.ServiceGate(resolver, tenants, usage, svc))
		group.Any("/*", services.Proxy(svc))
	}

	// Shut the consumer down cleanly on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		stopConsumer()
		e.Shutdown(context.Background())
	}()

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server stopped", zap.Error(err))
	}
}
