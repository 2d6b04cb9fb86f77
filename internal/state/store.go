// Package state persists small pieces of session state (auth token, last
// selected group, navigation trail) in a local SQLite database so the
// console restores where the user left off.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Well-known keys.
const (
	KeyAuthToken  = "auth_token"
	KeyLastGroup  = "last_group"
	KeyNavHistory = "nav_history"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("state key not found")

// Entry is one persisted key/value pair.
type Entry struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName keeps the table name stable regardless of gorm's pluralization.
func (Entry) TableName() string { return "session_state" }

// Store is a durable key/value store backed by SQLite.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the state database at path. Pass ":memory:" for an
// ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Set writes a key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get reads a key. Returns ErrNotFound when it was never written.
func (s *Store) Get(key string) (string, error) {
	var entry Entry
	err := s.db.First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Delete(&Entry{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists all stored keys.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.Model(&Entry{}).Order("key").Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
