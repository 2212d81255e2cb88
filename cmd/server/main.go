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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/backend"
	"github.com/smarttravel/checkout-backend/internal/checkout"
	"github.com/smarttravel/checkout-backend/internal/config"
	"github.com/smarttravel/checkout-backend/internal/database"
	"github.com/smarttravel/checkout-backend/internal/handlers"
	"github.com/smarttravel/checkout-backend/internal/middleware"
	"github.com/smarttravel/checkout-backend/internal/services"
	"github.com/smarttravel/checkout-backend/internal/session"
	"github.com/smarttravel/checkout-backend/internal/store"
	"github.com/smarttravel/checkout-backend/pkg/jwt"
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

	logger.Info("Starting SmartTravel Checkout Backend")
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
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(startupCtx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Draft store: Redis when configured, in-process otherwise
	var (
		drafts      store.DraftStore
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		redisClient, err = store.NewRedisClient(startupCtx, cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		drafts = store.NewRedisDraftStore(redisClient, cfg.Redis.KeyPrefix, cfg.Checkout.DraftTTL)
		logger.Info("Using Redis draft store")
	} else {
		drafts = store.NewMemoryDraftStore(cfg.Checkout.DraftTTL)
		logger.Warn("REDIS_URL not set, drafts are kept in memory and lost on restart")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer)
	sessions := session.NewRegistry()
	backendClient := backend.NewClient(cfg.Backend, logger)

	paymentSessionRepository := database.NewPaymentSessionRepository(db.Sqlx(), logger)
	paymentAuditRepository := database.NewPaymentAuditRepository(db.Sqlx(), logger)

	checkoutService := services.NewCheckoutService(backendClient, drafts, checkout.NewSubmissionValidator(), logger)
	paymentService := services.NewPaymentService(
		cfg.Payment,
		backendClient,
		paymentSessionRepository,
		paymentAuditRepository,
		checkoutService,
		logger,
	)

	sweepService, err := services.NewSweepService(cfg.Checkout.SweepInterval, drafts, paymentService, sessions, logger)
	if err != nil {
		logger.Fatalf("Failed to create sweep service: %v", err)
	}
	if err := sweepService.Start(); err != nil {
		logger.Fatalf("Failed to start sweep service: %v", err)
	}

	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Server.RequestLogging {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, redisClient, paymentService))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtService, sessions, logger))
	{
		checkoutRoutes := v1.Group("/checkout")
		{
			checkoutRoutes.POST("", checkoutHandler.Open)
			checkoutRoutes.GET("/:id", checkoutHandler.Get)
			checkoutRoutes.DELETE("/:id", checkoutHandler.Discard)
			checkoutRoutes.POST("/:id/events", checkoutHandler.Apply)
			checkoutRoutes.POST("/:id/submit", checkoutHandler.Submit)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.Initiate)
			payments.GET("/:orderCode", paymentHandler.Status)
			payments.DELETE("/:orderCode/watch", paymentHandler.Leave)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Pending payments stay PENDING and are resumed on the next status request
	paymentService.Shutdown()

	if err := sweepService.Stop(); err != nil {
		logger.Errorf("Failed to stop sweep service: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if userID, exists := c.Get(middleware.UserIDContextKey); exists {
			fields["user_id"] = userID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB, redisClient *redis.Client, payments *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{
			"status":          "healthy",
			"database":        "healthy",
			"version":         version,
			"active_watchers": payments.ActiveWatchers(),
			"timestamp":       time.Now().Unix(),
		}

		if err := db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "unhealthy"
			body["error"] = err.Error()
		}

		if redisClient != nil {
			body["redis"] = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["redis"] = "unhealthy"
				body["error"] = err.Error()
			}
		}

		c.JSON(status, body)
	}
}
