package main

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens PostgreSQL for postgres:// DSNs and SQLite otherwise.
func OpenDB(dsn string, debug bool) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// every new connection would get its own empty in-memory database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Category{},
		&Quest{},
		&User{},
		&Account{},
		&Session{},
		&VerificationToken{},
	); err != nil {
		return err
	}
	return ensureUncategorized(db)
}

func ensureUncategorized(db *gorm.DB) error {
	var c Category
	return db.Where(Category{ID: UncategorizedID}).
		Attrs(Category{Name: uncategorizedName}).
		FirstOrCreate(&c).Error
}
