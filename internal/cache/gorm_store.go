package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/calebh/marketscout/internal/domain"
)

// DBConfig holds the relational store settings.
type DBConfig struct {
	Driver          string // "sqlite" or "postgres"
	Path            string // sqlite file path
	DSN             string // postgres DSN
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// InitDB opens the cache database and runs migrations.
// Parameters:
//   - cfg: database configuration including driver and connection settings.
// Returns:
//   - *gorm.DB: initialized database handle.
//   - error: non-nil if connection or migration fails.
func InitDB(cfg *DBConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormConfig)
	default:
		db, err = initSQLite(cfg, gormConfig)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&domain.CacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate listing cache: %w", err)
	}
	return db, nil
}

func initSQLite(cfg *DBConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	// WAL mode lets concurrent jobs read while one commits
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	return db, nil
}

// GormStore persists cache entries in a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore bound to db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get retrieves the entry for a listing.
func (s *GormStore) Get(ctx context.Context, marketplace, listingID string) (*domain.CacheEntry, error) {
	var entry domain.CacheEntry
	err := s.db.WithContext(ctx).
		First(&entry, "marketplace = ? AND listing_id = ?", marketplace, listingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Put inserts or updates an entry keyed by (marketplace, listing_id).
func (s *GormStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "marketplace"}, {Name: "listing_id"}},
		UpdateAll: true,
	}).Create(entry).Error
}

// Delete removes an entry.
func (s *GormStore) Delete(ctx context.Context, marketplace, listingID string) error {
	return s.db.WithContext(ctx).
		Delete(&domain.CacheEntry{}, "marketplace = ? AND listing_id = ?", marketplace, listingID).Error
}

// Count returns the number of stored entries.
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.CacheEntry{}).Count(&count).Error
	return count, err
}
