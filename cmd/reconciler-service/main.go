package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-booking/internal/availability"
	blackoutdb "ms-booking/internal/blackout/db"
	"ms-booking/internal/booking"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/giftcard"
	giftcarddb "ms-booking/internal/giftcard/db"
	"ms-booking/internal/giftcard/qr"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/notify"
	"ms-booking/internal/payment"
	"ms-booking/internal/popup"
	popupdb "ms-booking/internal/popup/db"
	"ms-booking/internal/utils"
)

// Stripe webhook bodies are small; anything bigger is not a webhook.
const maxWebhookBody = 64 * 1024

// stripeWebhook verifies the delivery and hands the notice to the reconciler.
// 2xx acknowledges, anything else makes Stripe retry, so the status mapping
// is the retry policy: signature problems get their own 4xx, reconciliation
// failures that a retry might fix get a 500.
func stripeWebhook(checkout *payment.Checkout, reconciler *booking.Reconciler, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
			return
		}

		notice, err := checkout.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			var werr *payment.WebhookError
			if errors.As(err, &werr) {
				c.JSON(werr.StatusCode, utils.ErrorResponse(werr.PublicError, ""))
				return
			}
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Webhook processing error", ""))
			return
		}

		if err := reconciler.Process(c.Request.Context(), notice); err != nil {
			log.Error("WEBHOOK", fmt.Sprintf("Reconciliation failed, leaving delivery for retry: %v", err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Reconciliation failed", "delivery will be retried"))
			return
		}

		c.JSON(http.StatusOK, utils.SuccessResponse("processed", nil))
	}
}

func main() {
	logger := logger.NewLogger("reconciler")
	defer logger.Close()

	logger.Info("APP", "Starting Reconciler Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	// The booking service owns Postgres migrations; only the sqlite demo mode
	// self-bootstraps so this binary can run alone.
	if cfg.Database.Driver == "sqlite" {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("REDIS", fmt.Sprintf("Redis unreachable at %s, continuing without cache invalidation: %v", cfg.Redis.Addr, err))
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()

		topics := []string{
			cfg.Kafka.Topics.BookingConfirmed,
			cfg.Kafka.Topics.BookingConflict,
			cfg.Kafka.Topics.GiftCardIssued,
			cfg.Kafka.Topics.PopupSold,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		logger.Info("KAFKA", "Event publishing disabled by configuration")
	}

	reservations := &bookingdb.DB{Bun: bunDB}
	blackouts := &blackoutdb.DB{Bun: bunDB}
	giftCards := &giftcarddb.DB{Bun: bunDB}
	popupStore := &popupdb.DB{Bun: bunDB}

	calc := availability.NewCalculator(reservations, blackouts, cfg.Booking.ResourceCapacityPerDay)
	cache := availability.NewCache(calc, redisClient, cfg.Redis.CacheTTL, logger)

	giftService := giftcard.NewService(giftCards, qr.NewGenerator(cfg.Booking.QRSecret), logger)
	popupService := popup.NewService(popupStore, logger)

	// A plain nil keeps the notifier's publishing-disabled check working; a
	// typed nil *kafka.Producer would not compare equal to nil.
	var publisher notify.Publisher
	if producer != nil {
		publisher = producer
	}
	notifier := notify.NewNotifier(publisher, cfg.Kafka.Topics, logger)

	checkout := payment.NewCheckout(cfg.Stripe, logger)
	reconciler := booking.NewReconciler(reservations, cache, giftService, popupService, notifier, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	router.POST("/webhooks/stripe", stripeWebhook(checkout, reconciler, logger))
	router.GET("/healthz", func(c *gin.Context) {
		if err := bunDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	logger.Info("ROUTER", "Webhook endpoint registered at /webhooks/stripe")

	server := &http.Server{
		Addr:         cfg.Server.ReconcilerPort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Reconciler Service running on %s", cfg.Server.ReconcilerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Reconciler Service shutdown complete")
	}
}
