package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"ticketing-engine/internal/config"
	"ticketing-engine/internal/handlers"
	"ticketing-engine/internal/kafka"
	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/logger"
	"ticketing-engine/internal/middleware"
	"ticketing-engine/internal/models"
	"ticketing-engine/internal/monitoring"
	rediswrap "ticketing-engine/internal/redis"
	"ticketing-engine/internal/services"
	"ticketing-engine/internal/storage"
)

var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Ticketing engine starting up...")

	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store := openStore(cfg)
	defer store.Close()

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer producer.Close()

	locker := openLocker(ctx, cfg)

	ticketService := services.NewTicketService(store, locker, producer, log, services.Options{
		DefaultGate:          cfg.Checkin.DefaultGate,
		DefaultPaymentMethod: cfg.Checkin.DefaultPaymentMethod,
		BulkWorkers:          cfg.Checkin.BulkWorkers,
	})
	log.LogProcess("SERVICE", "Ticket service initialized")

	if cfg.Kafka.ConsumeScans && !cfg.Kafka.MockMode {
		consumer, err := kafka.NewScanConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ScansTopic, log)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
		}
		defer consumer.Close()

		go func() {
			log.LogKafka("START", cfg.Kafka.ScansTopic, "Starting scan consumer goroutine")
			if err := consumer.Run(ctx, ticketService); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	}

	go monitoring.CollectRuntime(ctx, 30*time.Second)

	router := setupRouter(cfg, store, handlers.NewTicketHandler(ticketService))
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "Health check available at: http://localhost"+cfg.Server.Port+"/health")
		log.Info("STARTUP", "Ticket API available at: http://localhost"+cfg.Server.Port+"/api/v1/tickets")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "Ticketing engine shutdown completed successfully")
}

func openStore(cfg *config.Config) storage.Store {
	if cfg.Database.Driver == "mysql" {
		log.LogProcess("DATABASE", "Initializing MySQL database...")
		store, err := storage.NewMySQLStore(cfg.Database, log)
		if err != nil {
			log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
		}
		return store
	}

	log.Warn("DATABASE", "Using in-memory storage; data is lost on restart")
	store := storage.NewInMemoryStore()
	seedDemoData(store)
	return store
}

// seedDemoData gives the in-memory store one user and one event so the API
// can be exercised without the catalogue service.
func seedDemoData(store storage.Store) {
	ctx := context.Background()
	user := &models.User{Name: "Demo Attendee", Email: "attendee@example.com"}
	event := &models.Event{
		Name:        "Demo Concert",
		Location:    "Main Hall",
		StartDate:   time.Now().Add(24 * time.Hour),
		EndDate:     time.Now().Add(28 * time.Hour),
		Capacity:    100,
		TicketPrice: decimal.NewFromInt(500),
	}
	if err := store.SaveUser(ctx, user); err != nil {
		log.Error("DATABASE", "Failed to seed user: "+err.Error())
		return
	}
	if err := store.SaveEvent(ctx, event); err != nil {
		log.Error("DATABASE", "Failed to seed event: "+err.Error())
		return
	}
	log.LogDatabase("SEED", "memory", "Seeded demo user 1 and event 1")
}

func openLocker(ctx context.Context, cfg *config.Config) lock.Locker {
	if !cfg.Redis.Enabled {
		log.LogProcess("LOCK", "Using in-process keyed locks")
		return lock.NewKeyedMutex()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	locker := rediswrap.NewLocker(client, cfg.Redis.LockPrefix, cfg.Redis.LockTTL, cfg.Redis.LockRetry, log)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := locker.Ping(pingCtx); err != nil {
		log.Fatal("REDIS", "Failed to connect to Redis: "+err.Error())
	}
	log.LogProcess("LOCK", "Redis locks enabled at "+cfg.Redis.Addr)
	return locker
}

func setupRouter(cfg *config.Config, store storage.Store, ticketHandler *handlers.TicketHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(log))
	router.Use(middleware.RateLimit(cfg.RateLimit, log))

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := store.HealthCheck(c.Request.Context()); err != nil {
			log.Error("HEALTH", "Store health check failed: "+err.Error())
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "ticketing-engine",
			"version":   "1.0.0",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ticketHandler.RegisterRoutes(router.Group("/api/v1"))

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
