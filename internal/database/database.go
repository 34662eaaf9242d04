package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/purchases"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// Options selects the store backing the service.
type Options struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open establishes the database connection and performs schema migrations.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := dialectorFor(options)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if dialector.Name() == driverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer; one connection serializes statements.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", dialector.Name()))
	return db, nil
}

// Migrate creates or updates every table and applies pending one-shot migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&notes.StudentNote{},
		&notes.SharedNote{},
		&purchases.Course{},
		&purchases.Purchase{},
		&users.Identity{},
		&migrationRecord{},
	); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func dialectorFor(options Options) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(options.Driver)) {
	case "", driverSQLite:
		if strings.TrimSpace(options.Path) == "" {
			return nil, fmt.Errorf("database path is required")
		}
		return sqlite.Open(options.Path), nil
	case driverPostgres:
		if strings.TrimSpace(options.DSN) == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		return postgres.Open(options.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}
}
