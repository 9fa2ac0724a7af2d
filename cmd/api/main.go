package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/database/postgres"
	"github.com/getmentor/getmentor-sessions/internal/handlers"
	"github.com/getmentor/getmentor-sessions/internal/middleware"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	"github.com/getmentor/getmentor-sessions/internal/repository/memory"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/getmentor/getmentor-sessions/internal/sweep"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	"github.com/getmentor/getmentor-sessions/pkg/db"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
	"github.com/getmentor/getmentor-sessions/pkg/identity"
	"github.com/getmentor/getmentor-sessions/pkg/jwt"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/notifier"
	"github.com/getmentor/getmentor-sessions/pkg/profiling"
	"github.com/getmentor/getmentor-sessions/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// apiHandlers groups the handlers mounted under /api
type apiHandlers struct {
	sessions     *handlers.SessionHandler
	availability *handlers.AvailabilityHandler
	reviews      *handlers.ReviewHandler
	cache        *handlers.CacheHandler
	health       *handlers.HealthHandler
}

// registerUserRoutes registers the authenticated /api/v1 routes
func registerUserRoutes(
	v1 *gin.RouterGroup,
	generalRateLimiter, writeRateLimiter *middleware.RateLimiter,
	h apiHandlers,
) {
	v1.Use(generalRateLimiter.Middleware())

	// Availability (mentors only for writes)
	slots := v1.Group("/availability/slots", middleware.RequireMentor())
	slots.POST("", writeRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(16*1024), h.availability.AddSlot)
	slots.PUT("/:id", writeRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(16*1024), h.availability.UpdateSlot)
	slots.POST("/:id/deactivate", h.availability.DeactivateSlot)
	v1.GET("/mentors/:mentorId/availability", h.availability.ListSlots)

	// Sessions
	sessions := v1.Group("/sessions")
	sessions.POST("", writeRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(16*1024), h.sessions.Book)
	sessions.GET("", h.sessions.ListSessions)
	sessions.GET("/:id", h.sessions.GetSession)
	sessions.POST("/:id/cancel", middleware.BodySizeLimitMiddleware(16*1024), h.sessions.Cancel)
	sessions.POST("/:id/start", h.sessions.Start)
	sessions.POST("/:id/complete", h.sessions.Complete)
	sessions.PUT("/:id/notes", middleware.BodySizeLimitMiddleware(64*1024), h.sessions.UpdateNotes)
	sessions.GET("/:id/reminders", h.sessions.ListReminders)

	// Reviews
	v1.POST("/reviews", writeRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(64*1024), h.reviews.SubmitReview)
	v1.GET("/users/:userId/reviews", h.reviews.ListReviews)
	v1.GET("/users/:userId/rating", h.reviews.GetRating)
}

// registerInternalRoutes registers token-protected operational routes
func registerInternalRoutes(internal *gin.RouterGroup, token string, h apiHandlers) {
	internal.Use(middleware.InternalAPIAuthMiddleware(token))
	internal.POST("/reviews/:id/moderation", middleware.BodySizeLimitMiddleware(4*1024), h.reviews.Moderate)
	internal.GET("/cache/stats", h.cache.Stats)
}

// openStore returns the PostgreSQL store, or the in-memory store in offline mode.
// The returned func releases the store's resources.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.WorkOffline {
		logger.Warn("DB_WORK_OFFLINE is set: using the in-memory store, data will not survive a restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:        cfg.Database.URL,
		CACertPath: cfg.Database.CACertPath,
		MaxConns:   cfg.Database.MaxConns,
		MinConns:   cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}

	client := postgres.NewClient(pool)
	return client, client.Close, nil
}

func newCacheManager(cfg *config.Config, clk clock.Clock) (*cache.Manager, error) {
	return cache.NewManager(clk,
		cache.RegionConfig{Name: cache.RegionProfiles, TTL: cfg.Cache.Profiles.TTL(), MaxEntries: cfg.Cache.Profiles.MaxEntries},
		cache.RegionConfig{Name: cache.RegionSessions, TTL: cfg.Cache.Sessions.TTL(), MaxEntries: cfg.Cache.Sessions.MaxEntries},
		cache.RegionConfig{Name: cache.RegionAvailability, TTL: cfg.Cache.Availability.TTL(), MaxEntries: cfg.Cache.Availability.MaxEntries},
		cache.RegionConfig{Name: cache.RegionReviews, TTL: cfg.Cache.Reviews.TTL(), MaxEntries: cfg.Cache.Reviews.MaxEntries},
	)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting GetMentor Sessions API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	// Initialize distributed tracing
	tracerShutdown, err := tracing.InitTracer(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	// Continuous profiling
	stopProfiler, err := profiling.InitProfiler(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	// Start infrastructure metrics collection
	metrics.RecordInfrastructureMetrics()

	// Background work stops when the process receives a shutdown signal
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Storage
	// NOTE: migrations are run separately via the migrate command
	store, closeStore, err := openStore(appCtx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	clk := clock.Real()

	// Cache regions
	cacheManager, err := newCacheManager(cfg, clk)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	cacheManager.Start(appCtx,
		time.Duration(cfg.Cache.JanitorIntervalSecs)*time.Second,
		time.Duration(cfg.Cache.StatsLogIntervalSecs)*time.Second)
	defer cacheManager.Stop()

	// Collaborators
	httpClient := httpclient.NewStandardClient()

	var identityLookup services.IdentityLookup
	if cfg.Collaborators.IdentityURL != "" {
		identityLookup = identity.NewClient(cfg.Collaborators.IdentityURL,
			httpclient.NewClientWithTimeout(time.Duration(cfg.Collaborators.IdentityTimeoutSeconds)*time.Second))
	} else {
		logger.Warn("IDENTITY_SERVICE_URL not set: participant profiles will be placeholders")
	}

	var sender notifier.Sender
	if cfg.Collaborators.NotificationURL != "" {
		sender = notifier.NewClient(cfg.Collaborators.NotificationURL,
			httpclient.NewClientWithTimeout(time.Duration(cfg.Collaborators.NotificationTimeoutSeconds)*time.Second))
	} else {
		logger.Warn("NOTIFICATION_SERVICE_URL not set: reminders will only be logged")
		sender = notifier.LogSender{}
	}

	// Services
	offsets, err := models.ParseOffsets(cfg.Reminders.Offsets)
	if err != nil {
		logger.Fatal("Invalid reminder offsets", zap.Error(err))
	}

	profileService := services.NewProfileService(identityLookup, cacheManager,
		time.Duration(cfg.Cache.ProfileFallbackTTL)*time.Second)
	availabilityService := services.NewAvailabilityService(store, cacheManager, clk)
	reminderService := services.NewReminderService(store, offsets, services.RetryPolicy{
		MaxAttempts: cfg.Reminders.MaxAttempts,
		Backoff:     time.Duration(cfg.Reminders.RetryBackoffSeconds) * time.Second,
	}, clk)
	sessionService := services.NewSessionService(store, availabilityService, reminderService,
		profileService, cacheManager, cfg, httpClient, clk)
	reviewService := services.NewReviewService(store, profileService, cacheManager, cfg, httpClient, clk)
	dispatchService := services.NewDispatchService(reminderService, sender, cacheManager, clk, services.DispatchOptions{
		Channel:     cfg.Reminders.Channel,
		BatchSize:   cfg.Sweep.BatchSize,
		Workers:     cfg.Sweep.Workers,
		SendTimeout: time.Duration(cfg.Sweep.DispatchTimeoutSeconds) * time.Second,
	})

	// Periodic sweep: no-show detection, then reminder dispatch
	sweeper := sweep.New(sessionService, dispatchService, cfg.Sweep.Interval(), cfg.Sweep.BatchSize, 0)
	sweeper.Start(appCtx)
	defer sweeper.Stop()

	// Initialize handlers
	h := apiHandlers{
		sessions:     handlers.NewSessionHandler(sessionService),
		availability: handlers.NewAvailabilityHandler(availabilityService),
		reviews:      handlers.NewReviewHandler(reviewService),
		cache:        handlers.NewCacheHandler(cacheManager),
		health:       handlers.NewHealthHandler(store),
	}
	tokenManager := jwt.NewTokenManager(cfg.UserSession.JWTSecret, cfg.UserSession.JWTIssuer, cfg.UserSession.SessionTTLHours)

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName)) // OpenTelemetry tracing
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// CORS configuration - SECURITY: Only allow specific origins
	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.InternalAPITokenHeader, "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true, // Required for session cookies
		MaxAge:           12 * time.Hour,
	}))

	// SECURITY: Rate limiters to prevent abuse
	generalRateLimiter := middleware.NewRateLimiter(appCtx, 100, 200) // 100 req/sec, burst of 200
	writeRateLimiter := middleware.NewRateLimiter(appCtx, 5, 10)      // 5 req/sec, burst of 10

	// Utility endpoints (not versioned - operational endpoints)
	api := router.Group("/api")
	api.GET("/healthcheck", generalRateLimiter.Middleware(), h.health.Healthcheck)
	api.GET("/metrics", generalRateLimiter.Middleware(), gin.WrapH(promhttp.Handler()))
	registerInternalRoutes(api.Group("/internal"), cfg.Auth.InternalAPIToken, h)

	// API v1 routes
	v1 := router.Group("/api/v1", middleware.UserSessionMiddleware(tokenManager, cfg.UserSession.CookieName))
	registerUserRoutes(v1, generalRateLimiter, writeRateLimiter, h)

	// Create HTTP server
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // SECURITY: 1 MB max header size
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop background work before the store is closed
	stopApp()
	sweeper.Stop()

	logger.Info("Server exited")
}
