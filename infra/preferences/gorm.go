// Package preferences provides persistent preference stores.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/fxdate/pkg/preferences"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Preference is one stored setting.
type Preference struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     int    `gorm:"not null"`
	UpdatedAt time.Time
}

// GormStore keeps preferences in a SQL database.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens a sqlite database at path and migrates the schema.
func OpenSQLite(path string, appEnv string) (*GormStore, error) {
	return open(sqlite.Open(path), appEnv)
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string, appEnv string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("PREFERENCES_DSN is not set")
	}
	return open(postgres.Open(dsn), appEnv)
}

func open(dialector gorm.Dialector, appEnv string) (*GormStore, error) {
	logMode := logger.Silent
	if appEnv == "development" {
		logMode = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore migrates the schema on db and returns a store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return nil, fmt.Errorf("failed to migrate preferences: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetInt(ctx context.Context, key string, def int) (int, error) {
	if key == "" {
		return 0, preferences.ErrEmptyKey
	}
	var p Preference
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return p.Value, nil
}

func (s *GormStore) SetInt(ctx context.Context, key string, value int) error {
	if key == "" {
		return preferences.ErrEmptyKey
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Preference{Name: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to store preference %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ preferences.Store = (*GormStore)(nil)
