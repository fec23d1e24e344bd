package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sahilchouksey/fitcamp-api/config"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GORM DB access
	GetDB() *gorm.DB
}

// Models lists every table managed by AutoMigrate, parents before children
var Models = []interface{}{
	&model.User{},
	&model.Activity{},
	&model.Participation{},
	&model.Favorite{},
	&model.Comment{},
	&model.UserSession{},
	&model.CronJobLog{},
}

type GORMStore struct {
	db *gorm.DB
}

// StartGORM opens the configured database (PostgreSQL or SQLite) through GORM
func StartGORM(cfg *config.Config) (*GORMStore, error) {
	logLevel := gormlogger.Info
	if cfg.IsProduction() {
		logLevel = gormlogger.Error
	}

	gormConfig := &gorm.Config{
		Logger:                 logger.NewGormLogger(logLevel),
		SkipDefaultTransaction: false,
		TranslateError:         true, // duplicate keys surface as gorm.ErrDuplicatedKey
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)

	switch strings.ToLower(cfg.DBDriver) {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(SQLiteDSN(cfg.SQLitePath)), gormConfig)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUserName,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)
		gormConfig.PrepareStmt = true
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		logger.Global().Error().Err(err).Str("driver", cfg.DBDriver).Msg("unable to connect to database")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "sqlite" {
		// SQLite allows one writer; a single connection keeps transactions serialized
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logger.Global().Info().Str("driver", db.Dialector.Name()).Msg("connected to database")

	return &GORMStore{db: db}, nil
}

// NewGORMStore wraps an already opened connection
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

// SQLiteDSN builds a DSN with foreign key enforcement and a busy timeout
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	logger.Global().Info().Int("models", len(Models)).Msg("running AutoMigrate")

	if err := s.db.AutoMigrate(Models...); err != nil {
		logger.Global().Error().Err(err).Msg("AutoMigrate failed")
		return err
	}

	logger.Global().Info().Msg("AutoMigrate completed")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	logger.Global().Info().Msg("closing database connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for use in services/handlers
func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
