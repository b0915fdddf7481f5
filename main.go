package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-booking/internal/antiabuse"
	"ms-booking/internal/auth"
	"ms-booking/internal/availability"
	"ms-booking/internal/blackout"
	blackoutdb "ms-booking/internal/blackout/db"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/giftcard"
	giftcarddb "ms-booking/internal/giftcard/db"
	"ms-booking/internal/giftcard/qr"
	"ms-booking/internal/logger"
	"ms-booking/internal/payment"
	"ms-booking/internal/popup"
	popupdb "ms-booking/internal/popup/db"
	"ms-booking/internal/pricing"
	"ms-booking/internal/reporting"
	reporting_api "ms-booking/internal/reporting/api"
)

// connectRedis returns nil when the cache is disabled or unreachable; the
// availability cache treats a nil client as cache-off, so the service keeps
// serving either way.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Availability cache disabled by configuration")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Redis unreachable at %s, continuing without cache: %v", cfg.Addr, err))
		client.Close()
		return nil
	}

	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	logger := logger.NewLogger("booking-api")
	defer logger.Close()

	logger.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connection")
	bunDB, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.Driver == "sqlite" {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
		}
	} else {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	reservations := &bookingdb.DB{Bun: bunDB}
	blackouts := &blackoutdb.DB{Bun: bunDB}
	giftCards := &giftcarddb.DB{Bun: bunDB}
	popupStore := &popupdb.DB{Bun: bunDB}

	calc := availability.NewCalculator(reservations, blackouts, cfg.Booking.ResourceCapacityPerDay)
	cache := availability.NewCache(calc, redisClient, cfg.Redis.CacheTTL, logger)

	checkout := payment.NewCheckout(cfg.Stripe, logger)
	verifier := antiabuse.NewVerifier(nil, cfg.AntiAbuse, logger)
	engine := pricing.NewEngine(cfg.Booking.DepositRate, cfg.Booking.AccessCodes)

	popupService := popup.NewService(popupStore, logger)
	bookingService := booking.NewService(reservations, cache, engine, checkout, verifier, popupService, cfg.Booking, logger)
	blackoutService := blackout.NewService(blackouts, cache, logger)
	giftService := giftcard.NewService(giftCards, qr.NewGenerator(cfg.Booking.QRSecret), logger)
	reportingService := reporting.NewService(bunDB, logger)

	handler := booking_api.NewHandler(bookingService, blackoutService, giftService, popupService, logger)
	reportingHandler := reporting_api.NewHandler(reportingService, logger)

	adminAuth, err := auth.Middleware(cfg.Auth, logger)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("OIDC setup failed: %v", err))
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		// --- Public Routes ---
		r.Get("/availability/{year}/{month}", handler.Availability)
		r.Post("/quotes", handler.Quote)
		r.Post("/bookings", handler.CreateBooking)
		r.Post("/giftcards/checkout", handler.GiftCardCheckout)
		r.Get("/popup", handler.ListPopupEvents)
		r.Post("/popup/{eventId}/checkout", handler.PopupCheckout)
		logger.Info("ROUTER", "Public booking endpoints registered under /api")

		// --- Admin Routes ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)

			r.Get("/reservations", handler.ListReservations)
			r.Post("/reservations", handler.CreateManualReservation)
			r.Delete("/reservations/{reservationId}", handler.CancelReservation)

			r.Get("/blackouts/{year}/{month}", handler.ListBlackouts)
			r.Post("/blackouts", handler.AddBlackout)
			r.Post("/blackouts/bulk", handler.BulkAddBlackouts)
			r.Delete("/blackouts/{date}", handler.RemoveBlackout)

			r.Get("/giftcards", handler.ListGiftCards)
			r.Post("/giftcards/{code}/redeem", handler.RedeemGiftCard)
			r.Get("/giftcards/{code}/qr", handler.GiftCardQR)

			r.Post("/popup", handler.CreatePopupEvent)
			r.Post("/popup/{eventId}/adjust", handler.AdjustPopupSeats)

			reportingHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Admin endpoints registered under /api/admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Booking Service running on %s", cfg.Server.Port))
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
		logger.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}
