package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes the connection pool and SQL logging.
type Options struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	LogQueries   bool
}

// Open connects to postgres. The caller owns the handle and must Close it.
func Open(opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  opts.DSN,
		PreferSimpleProtocol: true, // transaction-mode poolers reject implicit prepared statements
	}), GormConfig(opts.LogQueries))
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	log.Info().Int("max_open", opts.MaxOpenConns).Msg("database connection established")
	return db, nil
}

// GormConfig is shared by every dialector so tests see the same error translation.
func GormConfig(logQueries bool) *gorm.Config {
	level := logger.Warn
	if logQueries {
		level = logger.Info
	}
	zl := log.Logger.With().Str("component", "gorm").Logger()
	return &gorm.Config{
		Logger: logger.New(&zl, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		TranslateError: true,
		PrepareStmt:    false,
	}
}

// Migrate creates or updates the given tables.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ logger.Writer = (*zerolog.Logger)(nil)
