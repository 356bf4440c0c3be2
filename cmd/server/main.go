package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smarttransit/booking-engine/internal/cache"
	"github.com/smarttransit/booking-engine/internal/config"
	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/events"
	"github.com/smarttransit/booking-engine/internal/handlers"
	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/smarttransit/booking-engine/internal/services"
	"github.com/smarttransit/booking-engine/internal/telemetry"
	"github.com/smarttransit/booking-engine/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit Booking Engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Tracing
	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		logger.Fatalf("Failed to set up tracing: %v", err)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Redis is only needed for rate limiting and the redis event backend
	var redisClient *goRedis.Client
	if cfg.RateLimit.Enabled || cfg.Events.Backend == "redis" {
		redisClient, err = cache.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	// Capacity events
	var publisher events.Publisher
	switch cfg.Events.Backend {
	case "kafka":
		publisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	case "redis":
		publisher = events.NewRedisPublisher(redisClient, cfg.Events.RedisChannel)
	default:
		publisher = events.NewLogPublisher(logger)
	}
	dispatcher := events.NewDispatcher(publisher, cfg.Booking.EventBufferSize, logger)
	dispatcher.Start()
	logger.WithField("backend", cfg.Events.Backend).Info("✓ Capacity event dispatcher started")

	// Repositories
	tripRepository := database.NewTripRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	auditLogRepository := database.NewAuditLogRepository(db)
	txRunner := database.NewTripTxRunner(db, cfg.Booking.TransactionTimeout, logger)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Hour)
	auditService := services.NewAuditService(auditLogRepository, logger)

	coordinator := services.NewBookingCoordinator(
		txRunner,
		tripRepository,
		bookingRepository,
		services.NewSeatAllocator(),
		services.NewFareCalculator(cfg.Booking.CommissionRate, cfg.Booking.VATRate),
		services.NewCapacityMonitor(cfg.Booking.LowSlotThreshold),
		dispatcher,
		logger,
	)

	tripAdminService := services.NewTripAdminService(
		tripRepository,
		txRunner,
		services.NewResourceConflictValidator(cfg.Booking.Location()),
		auditService,
		dispatcher,
		logger,
	)

	reaper := services.NewPendingBookingReaper(
		bookingRepository,
		coordinator,
		cfg.Booking.PendingWindow,
		cfg.Booking.ReaperBatchSize,
		logger,
	)

	// Initialize and start cron service
	cronService := services.NewCronService(reaper, auditService, services.CronConfig{
		ReaperSchedule:       cfg.Booking.ReaperSchedule,
		AuditCleanupSchedule: cfg.Audit.CleanupSchedule,
		AuditRetention:       cfg.Audit.Retention,
	}, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("✓ Cron service started - pending booking reaper enabled")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(coordinator, auditService, logger)
	channelHandler := handlers.NewChannelBookingHandler(coordinator, logger)
	tripAdminHandler := handlers.NewTripAdminHandler(tripAdminService, logger)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"database":       "connected",
			"version":        version,
			"events_dropped": dispatcher.Dropped(),
			"events_failed":  dispatcher.Failed(),
			"scheduled_jobs": cronService.GetJobStatus(),
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		authMiddleware := middleware.AuthMiddleware(jwtService, logger)

		// Web channel
		web := v1.Group("", authMiddleware)
		if cfg.RateLimit.Enabled {
			limiter := services.NewRateLimitService(redisClient, cfg.RateLimit.Requests,
				time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
			web.POST("/trips/:trip_id/bookings", middleware.RateLimit(limiter, logger), bookingHandler.UpsertBooking)
		} else {
			web.POST("/trips/:trip_id/bookings", bookingHandler.UpsertBooking)
		}
		web.DELETE("/bookings/:booking_id", bookingHandler.CancelBooking)
		web.GET("/trips/:trip_id/availability", bookingHandler.GetAvailability)

		// SMS gateway and chat-bot workers
		channelKeys := map[models.BookingChannel]string{
			models.BookingChannelSMS:     cfg.Channels.SMSKeyHash,
			models.BookingChannelChatbot: cfg.Channels.ChatbotKeyHash,
		}
		v1.POST("/channels/:channel/bookings",
			middleware.ChannelKeyAuth(channelKeys, logger),
			channelHandler.UpsertBooking,
		)

		// Operators
		admin := v1.Group("/admin/trips", authMiddleware, middleware.RequireRole(handlers.RoleAdmin))
		{
			admin.POST("", tripAdminHandler.CreateTrip)
			admin.PUT("/:trip_id", tripAdminHandler.EditTrip)
			admin.POST("/:trip_id/resume-booking", tripAdminHandler.ResumeBookings)
			admin.PUT("/:trip_id/auto-resume", tripAdminHandler.SetAutoResume)
			admin.PUT("/:trip_id/status", tripAdminHandler.UpdateStatus)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop cron service
	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Deliver queued events before the publisher goes away
	if err := dispatcher.Close(ctx); err != nil {
		logger.Errorf("Failed to drain capacity events: %v", err)
	}

	if err := shutdownTracing(ctx); err != nil {
		logger.Errorf("Failed to flush traces: %v", err)
	}

	logger.Info("Server exited successfully")
}
