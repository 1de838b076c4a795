package db

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"price_backend/internal/platform/config"
)

const retryInterval = 3 * time.Second

// Config holds the Postgres connection settings.
type Config struct {
	User          string `env:"DB_USER"`
	Password      string `env:"DB_PASSWORD"`
	Name          string `env:"DB_NAME"`
	Host          string `env:"DB_HOST" envDefault:"localhost"`
	Port          string `env:"DB_PORT" envDefault:"5432"`
	SSLMode       string `env:"DB_SSLMODE" envDefault:"disable"`
	InstanceName  string `env:"INSTANCE_CONNECTION_NAME"` // Cloud SQL instance; overrides Host/Port
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
}

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// LoadConfigFromEnv loads database configuration from environment variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BuildDSN builds a Postgres key/value DSN. A Cloud SQL instance is reached through its unix socket.
func BuildDSN(cfg Config) string {
	if cfg.InstanceName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s TimeZone=UTC",
			cfg.InstanceName, cfg.User, cfg.Password, cfg.Name)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

// ConnectWithRetry calls open until it succeeds or timeout elapses, waiting retryInterval between attempts.
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %v: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err)
		time.Sleep(retryInterval)
	}
}

// ParseDSN validates dsn with the pgx parser without connecting.
func ParseDSN(dsn string) (*pgx.ConnConfig, error) {
	pcfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	return pcfg, nil
}

// openPostgres opens gorm on a pgx stdlib pool. gorm pings on open.
func openPostgres(dsn string) (*gorm.DB, error) {
	pcfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	sqlDB := stdlib.OpenDB(*pcfg)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		return nil, errors.Join(err, sqlDB.Close())
	}
	return db, nil
}

// OpenDB connects to Postgres and, if RunMigrations is set, migrates models.
func OpenDB(cfg Config, models ...any) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)
	// a malformed DSN will not heal by retrying
	if _, err := ParseDSN(dsn); err != nil {
		return nil, err
	}
	db, err := ConnectWithRetry(dsn, 60*time.Second, openPostgres)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		slog.Info("database migrated", "tables", len(models))
	}
	return db, nil
}
