package domain

import "time"

// HistoryEntry is the archived record of a finished download. Only
// terminal downloads are written; the archive is an audit trail, not a
// job queue, and nothing is requeued from it on restart.
type HistoryEntry struct {
	RequestID       string         `json:"request_id" gorm:"primaryKey"`
	URL             string         `json:"url" gorm:"not null"`
	Type            DownloadType   `json:"type" gorm:"not null"`
	Status          ProgressStatus `json:"status" gorm:"not null;index"`
	FilePath        string         `json:"file_path,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	DownloadedBytes int64          `json:"downloaded_bytes"`
	TotalBytes      int64          `json:"total_bytes"`
	AverageSpeed    float64        `json:"average_speed"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// HistoryRepository defines the interface for the finished-download archive
type HistoryRepository interface {
	// Create appends a finished download to the archive
	Create(entry *HistoryEntry) error

	// FindByID finds an archived entry by request ID
	FindByID(requestID string) (*HistoryEntry, error)

	// FindRecent returns the most recently archived entries, newest first
	FindRecent(limit int) ([]*HistoryEntry, error)

	// CountByStatus returns the number of archived entries with a status
	CountByStatus(status ProgressStatus) (int64, error)
}
