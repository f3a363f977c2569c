package domain

import "time"

// Statistics is the aggregate view across all tracked downloads. It is
// derived state: the registry recomputes it after every mutation and it
// is never mutated independently.
type Statistics struct {
	TotalDownloads     int `json:"total_downloads"`
	ActiveDownloads    int `json:"active_downloads"`
	CompletedDownloads int `json:"completed_downloads"`
	FailedDownloads    int `json:"failed_downloads"`
	CancelledDownloads int `json:"cancelled_downloads"`

	TotalBytesDownloaded int64 `json:"total_bytes_downloaded"`
	TotalBytesToDownload int64 `json:"total_bytes_to_download"`

	OverallProgress float64 `json:"overall_progress"` // percent, [0,100]

	AverageSpeed float64 `json:"average_speed"` // bytes/sec across active downloads
	PeakSpeed    float64 `json:"peak_speed"`    // session maximum, never decreases

	EstimatedTimeRemaining int64 `json:"estimated_time_remaining"` // seconds

	SessionStartTime time.Time     `json:"session_start_time"`
	SessionDuration  time.Duration `json:"session_duration"`
}
