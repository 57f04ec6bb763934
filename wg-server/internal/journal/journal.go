// Package journal keeps a history of reconciliation passes in sqlite.
package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is one recorded pass.
type Entry struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	StartedAt         time.Time `gorm:"index;not null" json:"started_at"`
	DurationMillis    int64     `gorm:"not null" json:"duration_ms"`
	Added             int       `gorm:"not null" json:"added"`
	Removed           int       `gorm:"not null" json:"removed"`
	AccountChanges    int       `gorm:"not null" json:"account_changes"`
	ConnectionChanges int       `gorm:"not null" json:"connection_changes"`
	Failures          string    `json:"failures,omitempty"`
	Saved             bool      `gorm:"not null" json:"saved"`
	SaveError         string    `json:"save_error,omitempty"`
}

func (Entry) TableName() string {
	return "passes"
}

type Journal struct {
	db *gorm.DB
}

// Open opens (or creates) the journal database at path and migrates it.
// ":memory:" gives a private in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (j *Journal) Record(ctx context.Context, e *Entry) error {
	if err := j.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	return nil
}

// List returns the most recent entries first. limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	query := j.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	return out, nil
}

// Prune deletes entries that started before cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := j.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune passes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
