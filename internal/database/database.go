package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know the bindvar style of
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect opens and pings the database. A non-empty databaseURL selects
// Postgres, otherwise dbPath is opened as a SQLite file.
func Connect(ctx context.Context, databaseURL, dbPath string, logger *zap.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, dsn := DriverPostgres, databaseURL
	if databaseURL == "" {
		driver, dsn = DriverSQLite, dbPath
	}
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: set DATABASE_URL or DB_PATH")
	}

	logger.Info("connecting to database", zap.String("driver", driver))

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		logger.Error("database ping failed", zap.String("driver", driver), zap.Error(err))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection successful", zap.String("driver", driver))
	return db, nil
}

// Migrate creates the tables the service needs. Statements are portable
// between Postgres and SQLite, so timestamps are always written by the caller.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT,
			delivery_address TEXT,
			city TEXT,
			zip_code TEXT,
			role TEXT NOT NULL CHECK(role IN ('admin', 'driver', 'customer')),
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK(status IN ('active', 'paused', 'cancelled')),
			total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			delivery_days TEXT NOT NULL DEFAULT '',
			preferred_delivery_time TEXT,
			assigned_driver_id TEXT REFERENCES users(id) ON DELETE SET NULL,
			start_date TEXT,
			end_date TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id)`,

		`CREATE TABLE IF NOT EXISTS delivery_zones (
			zip_code TEXT PRIMARY KEY,
			zone_name TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS driver_devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_driver_devices_user ON driver_devices(user_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

func now() int64 {
	return time.Now().Unix()
}
