package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Option customizes the gorm config used by Open.
type Option func(*gorm.Config)

// WithLogger installs l as the gorm query logger.
func WithLogger(l logger.Interface) Option {
	return func(cfg *gorm.Config) {
		cfg.Logger = l
	}
}

// Open connects to the database selected by driver ("sqlite" or "postgres").
// SQLite is the default for development and tests; postgres for deployments.
func Open(driver, dsn string, opts ...Option) (*gorm.DB, error) {
	// constraint violations surface as gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated
	cfg := &gorm.Config{TranslateError: true}
	for _, opt := range opts {
		opt(cfg)
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// Each connection to ":memory:" is its own database.
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}
