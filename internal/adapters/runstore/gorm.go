// Package runstore keeps the history of pipeline runs.
// Clean Architecture: Adapter implementing ports.RunStore.
package runstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// runRow is the persisted form of entities.RunRecord.
type runRow struct {
	RunID        string `gorm:"primaryKey;size:64"`
	DocumentName string `gorm:"index"`
	DocumentHash string `gorm:"size:64;index"`
	Category     int
	Confidence   float64
	TestCount    int
	Status       string `gorm:"size:32;index"`
	Error        string
	OutputDir    string
	StartedAt    time.Time `gorm:"index"`
	FinishedAt   time.Time
}

func (runRow) TableName() string { return "runs" }

// GormStore implements ports.RunStore on SQLite through gorm.
type GormStore struct {
	db *gorm.DB
}

// Open opens (or creates) the run database at path. ":memory:" is accepted for tests.
func Open(path string) (*GormStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating run database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&runRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Save inserts or replaces the record for rec.RunID.
func (s *GormStore) Save(ctx context.Context, rec entities.RunRecord) error {
	row := runRow{
		RunID:        rec.RunID,
		DocumentName: rec.DocumentName,
		DocumentHash: rec.DocumentHash,
		Category:     rec.Category,
		Confidence:   rec.Confidence,
		TestCount:    rec.TestCount,
		Status:       string(rec.Status),
		Error:        rec.Error,
		OutputDir:    rec.OutputDir,
		StartedAt:    rec.StartedAt.UTC(),
		FinishedAt:   rec.FinishedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("saving run %s: %w", rec.RunID, err)
	}
	return nil
}

// List returns the most recent runs first. limit <= 0 returns all runs.
func (s *GormStore) List(ctx context.Context, limit int) ([]entities.RunRecord, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC").Order("run_id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	out := make([]entities.RunRecord, len(rows))
	for i, r := range rows {
		out[i] = entities.RunRecord{
			RunID:        r.RunID,
			DocumentName: r.DocumentName,
			DocumentHash: r.DocumentHash,
			Category:     r.Category,
			Confidence:   r.Confidence,
			TestCount:    r.TestCount,
			Status:       entities.RunStatus(r.Status),
			Error:        r.Error,
			OutputDir:    r.OutputDir,
			StartedAt:    r.StartedAt.UTC(),
			FinishedAt:   r.FinishedAt.UTC(),
		}
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
