// ===========================================
// linkpulse - Main Entry Point
// ===========================================
// RESPONSIBILITY:
// 1. Load configuration
// 2. Initialize dependencies (PostgreSQL, Redis, Kafka)
// 3. Set up the HTTP server with middleware
// 4. Start the rollup scheduler
// 5. Handle graceful shutdown
//
// If any critical dependency fails at startup, exit immediately.
// ===========================================

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/enrich"
	"github.com/user/linkpulse/internal/events"
	"github.com/user/linkpulse/internal/handler"
	"github.com/user/linkpulse/internal/logger"
	"github.com/user/linkpulse/internal/middleware"
	"github.com/user/linkpulse/internal/repository"
	"github.com/user/linkpulse/internal/scheduler"
	"github.com/user/linkpulse/internal/service"
	"go.uber.org/zap"
)

// Version is set at build time using ldflags.
// go build -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {
	// .env is optional; production sets real environment variables.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.IsDevelopment(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if code := exitCode(log, run(cfg, log)); code != 0 {
		os.Exit(code)
	}
}

// exitCode logs a failed run and flushes the logger, since os.Exit
// skips deferred calls.
func exitCode(log *zap.Logger, err error) int {
	if err == nil {
		return 0
	}
	log.Error("Server failed", zap.Error(err))
	_ = log.Sync()
	return 1
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting linkpulse", zap.String("version", Version), zap.String("port", cfg.Server.Port))

	// ===========================================
	// Step 1: Storage
	// ===========================================
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL, log); err != nil {
			return err
		}
	}

	postgres, err := database.NewPostgresDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer postgres.Close()
	log.Info("PostgreSQL connected")

	redis, err := database.NewRedisDB(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	defer redis.Close()
	log.Info("Redis connected")

	// ===========================================
	// Step 2: Repositories
	// ===========================================
	linkRepo := repository.NewLinkRepository(postgres.Pool)
	clickRepo := repository.NewClickRepository(postgres.Pool)
	dailyRepo := repository.NewDailyStatsRepository(postgres)
	userRepo := repository.NewUserRepository(postgres.Pool)
	apiKeyRepo := repository.NewAPIKeyRepository(postgres.Pool)

	// ===========================================
	// Step 3: Enrichment and click events
	// ===========================================
	var geoClient *enrich.GeoClient
	var geo enrich.GeoLookup
	if cfg.Geo.Enabled {
		geoClient = enrich.NewGeoClient(cfg.Geo, log)
		geo = geoClient
	}
	enricher := enrich.NewEnricher(geo, log)

	publisher := events.New(cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close click publisher", zap.Error(err))
		}
	}()
	if len(cfg.Kafka.Brokers) > 0 {
		log.Info("Publishing click events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// ===========================================
	// Step 4: Services
	// ===========================================
	loc := cfg.Analytics.Location()

	generator := service.NewCodeGenerator(linkRepo, cfg.Shortener, log)
	plans := service.NewPlanLimiter(userRepo, redis, log)
	linkService := service.NewLinkService(linkRepo, generator, plans, redis, cfg.Redis.CacheTTL, cfg.Shortener, log)
	resolver := service.NewResolver(linkRepo, clickRepo, redis, cfg.Redis.CacheTTL, enricher, publisher, log)
	analyticsService := service.NewAnalyticsService(linkRepo, clickRepo, dailyRepo, loc, log)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, log)

	// ===========================================
	// Step 5: Handlers and middleware
	// ===========================================
	healthHandler := handler.NewHealthHandler(postgres, redis, Version).WithPoolStats(postgres)
	if geoClient != nil {
		healthHandler.WithGeo(geoClient)
	}
	redirectHandler := handler.NewRedirectHandler(resolver, log)
	linkHandler := handler.NewLinkHandler(linkService, log)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, loc, log)

	rateLimiter := middleware.NewRateLimiter(redis, cfg.RateLimit, log)
	apiKeyAuth := middleware.NewAPIKeyAuth(apiKeyService, log)

	// ===========================================
	// Step 6: Router
	// ===========================================
	if os.Getenv("GIN_MODE") == "" && !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Redirects: no auth, rate limited per IP.
	router.GET("/:shortCode", rateLimiter.Middleware(), redirectHandler.Redirect)
	router.POST("/:shortCode", rateLimiter.Middleware(), redirectHandler.Unlock)

	// Auth runs before the rate limiter so per-key limits apply.
	api := router.Group("/api")
	api.POST("/links", apiKeyAuth.OptionalKey(), rateLimiter.Middleware(), linkHandler.Create)

	owned := api.Group("", apiKeyAuth.RequireKey(), rateLimiter.Middleware())
	{
		owned.GET("/links", linkHandler.List)
		owned.DELETE("/links/:id", linkHandler.Deactivate)

		owned.GET("/analytics/dashboard", analyticsHandler.Dashboard)
		owned.GET("/analytics/links/:id", analyticsHandler.Link)

		// Rollups span every user's links; only operators may trigger one.
		owned.POST("/analytics/rollup", middleware.RequireUser(cfg.Rollup.AdminUsers), analyticsHandler.Rollup)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ===========================================
	// Step 7: Background jobs
	// ===========================================
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if cfg.Rollup.Enabled {
		if err := scheduler.New(analyticsService, cfg.Rollup.Schedule, loc, log).Start(bgCtx); err != nil {
			return err
		}
	}

	// ===========================================
	// Step 8: Serve until a shutdown signal
	// ===========================================
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	bgCancel()

	log.Info("Server stopped")
	return nil
}
