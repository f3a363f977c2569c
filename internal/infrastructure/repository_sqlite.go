package infrastructure

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
// The archive is append-only: entries are written once when a download
// reaches a terminal state and are never requeued.
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository creates a new SQLite history repository
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.HistoryEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Create writes a terminal download entry to the archive
func (r *SQLiteHistoryRepository) Create(entry *domain.HistoryEntry) error {
	return r.db.Create(entry).Error
}

// FindByID finds an archive entry by request ID
func (r *SQLiteHistoryRepository) FindByID(requestID string) (*domain.HistoryEntry, error) {
	var entry domain.HistoryEntry
	err := r.db.First(&entry, "request_id = ?", requestID).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindRecent returns the most recent archive entries, newest first
func (r *SQLiteHistoryRepository) FindRecent(limit int) ([]*domain.HistoryEntry, error) {
	var entries []*domain.HistoryEntry
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

// CountByStatus returns the number of archived downloads with a status
func (r *SQLiteHistoryRepository) CountByStatus(status domain.ProgressStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.HistoryEntry{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
