package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/toolshare/rental-backend/internal/config"
	"github.com/toolshare/rental-backend/internal/database"
	"github.com/toolshare/rental-backend/internal/handler"
	"github.com/toolshare/rental-backend/internal/middleware"
	"github.com/toolshare/rental-backend/internal/queue"
	"github.com/toolshare/rental-backend/internal/repository"
	"github.com/toolshare/rental-backend/internal/router"
	"github.com/toolshare/rental-backend/internal/scheduler"
	"github.com/toolshare/rental-backend/internal/service"
	"github.com/toolshare/rental-backend/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(logLevel(cfg.LogLevel))
	logger := e.Logger

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Infoj(log.JSON{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			})
			return nil
		},
	}))

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancelMigrate()
		logger.Fatalf("migrate: %v", err)
	}
	cancelMigrate()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and response caching disabled")
	} else {
		defer rdb.Close()
	}
	e.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	rents := repository.NewRentRequestRepo(db)
	transactions := repository.NewTransactionRepo(db)
	reviews := repository.NewReviewRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitMQURL, logger)
	rentService := service.NewRentRequestService(
		service.NewSQLRentStore(db, listings, rents, transactions),
		publisher,
		service.RentRequestConfig{CommissionRate: cfg.CommissionRate, BookingWindow: cfg.BookingWindow},
		logger,
	)

	var images service.ImageStore
	bucket, err := storage.NewS3(cfg.S3)
	if err != nil {
		logger.Fatalf("s3: %v", err)
	}
	if bucket != nil {
		images = bucket
	} else {
		logger.Warn("S3_BUCKET not set; listing image uploads disabled")
	}
	listingService := service.NewListingService(listings, images, cache, logger)
	reviewService := service.NewReviewService(reviews, transactions, logger)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterRentRequests(e, handler.NewRentRequestHandler(rentService), cfg.JWTSecret)
	router.RegisterListings(e, handler.NewListingHandler(listingService), handler.NewReviewHandler(reviewService), cache, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.RabbitMQURL, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("mail consumer stopped: %v", err)
		}
	}()

	sched, err := scheduler.New(cfg.ExpirySchedule, rentService, logger)
	if err != nil {
		logger.Fatalf("scheduler: %v", err)
	}
	sched.Start()

	addr := ":" + cfg.Port
	go func() {
		logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	sched.Stop(shutdownCtx)
}

func logLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
