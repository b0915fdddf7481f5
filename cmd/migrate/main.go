package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// The schema bootstrap tool. Postgres databases go through the versioned SQL
// migrations; sqlite builds the schema straight from the bun models. -reset
// tears everything down first, -seed adds the demo rows afterwards.
func main() {
	reset := flag.Bool("reset", false, "drop everything before migrating")
	seed := flag.Bool("seed", false, "insert demo data after migrating")
	flag.Parse()

	logger := logger.NewLogger("migrate")
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.Driver == "sqlite" {
		migrateSQLite(ctx, bunDB, *reset, *seed, logger)
	} else {
		migratePostgres(bunDB, *reset, *seed, logger)
	}

	logger.Info("APP", "✅ Done")
}

func migratePostgres(bunDB *bun.DB, reset, seed bool, log *logger.Logger) {
	opts := migrations.DefaultOptions()
	opts.SeedData = seed
	runner := migrations.NewRunner(bunDB, opts, log)
	defer runner.Close()

	if reset {
		log.Info("DATABASE", "Rolling back all migrations")
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Rollback failed: %v", err))
		}
	}

	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
}

func migrateSQLite(ctx context.Context, bunDB *bun.DB, reset, seed bool, log *logger.Logger) {
	if reset {
		log.Info("DATABASE", "Dropping tables")
		if err := database.DropSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Drop failed: %v", err))
		}
	}

	log.Info("DATABASE", "Creating tables")
	if err := database.CreateSchema(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
	}

	if seed {
		log.Info("DATABASE", "Seeding demo data")
		if err := seedDemo(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Seed failed: %v", err))
		}
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// seedDemo mirrors the 000002 seed migration so both drivers end up with the
// same demo rows.
func seedDemo(ctx context.Context, db *bun.DB) error {
	now := time.Now().UTC()

	reservation := models.Reservation{
		ID:            "demo-weekend-hold",
		StartDate:     day(2027, time.February, 12),
		EndDate:       day(2027, time.February, 14),
		Status:        models.ReservationConfirmed,
		Channel:       models.ChannelManual,
		CustomerName:  "Rowan Ellis",
		CustomerEmail: "rowan@example.com",
		PackageCode:   "family",
		PartySize:     6,
		SubtotalCents: 57000,
		DepositCents:  17100,
		BalanceCents:  39900,
		Notes:         "demo seed",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := db.NewInsert().Model(&reservation).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed reservation: %w", err)
	}

	blackout := models.BlackoutRange{
		StartDate: day(2027, time.January, 4),
		EndDate:   day(2027, time.January, 11),
		Reason:    "winter maintenance",
		CreatedBy: "seed",
		CreatedAt: now,
	}
	if _, err := db.NewInsert().Model(&blackout).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed blackout: %w", err)
	}

	card := models.GiftCard{
		Code:           "GC-DEMO-0001",
		PaymentRef:     "cs_demo_giftcard_0001",
		FaceValueCents: 15000,
		RemainingCents: 15000,
		BuyerName:      "Rowan Ellis",
		BuyerEmail:     "rowan@example.com",
		RecipientName:  "Marin Ellis",
		Status:         models.GiftCardActive,
		IssuedAt:       now,
	}
	if _, err := db.NewInsert().Model(&card).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed gift card: %w", err)
	}

	event := models.PopupEvent{
		ID:         "demo-harvest-dinner",
		Name:       "Harvest Dinner",
		EventDate:  day(2027, time.October, 5),
		Capacity:   40,
		Sold:       0,
		PriceCents: 4500,
		CreatedAt:  now,
	}
	if _, err := db.NewInsert().Model(&event).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed popup event: %w", err)
	}

	return nil
}
