package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

const connectRetries = 5

// Connect opens the configured database and verifies it answers before any
// service starts taking traffic. Postgres is the production driver; the
// sqlite mode keeps demo and single-binary setups running without a server.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if cfg.Driver == "sqlite" {
		return connectSQLite(cfg, log)
	}
	return connectPostgres(cfg, log)
}

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	var sqldb *sql.DB
	var err error
	for i := 0; i < connectRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, connectRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < connectRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", connectRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func connectSQLite(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	dsn := fmt.Sprintf("file:%s.db?cache=shared", cfg.Database)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection sidesteps SQLITE_BUSY under concurrent writes.
	sqldb.SetMaxOpenConns(1)

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	log.Info("DATABASE", fmt.Sprintf("SQLite database ready at %s.db", cfg.Database))
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Tables lists every model the service persists, in creation order.
func Tables() []interface{} {
	return []interface{}{
		(*models.Reservation)(nil),
		(*models.BlackoutRange)(nil),
		(*models.GiftCard)(nil),
		(*models.PopupEvent)(nil),
		(*models.PopupSale)(nil),
	}
}

// CreateSchema builds the schema straight from the bun models. The sqlite
// mode and the migrate tool use this; production Postgres runs the versioned
// SQL migrations instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range Tables() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropSchema removes every table. Only the migrate tool's reset path calls
// this.
func DropSchema(ctx context.Context, db *bun.DB) error {
	tables := Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", tables[i], err)
		}
	}
	return nil
}
