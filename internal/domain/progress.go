package domain

import (
	"fmt"
	"time"
)

// ProgressStatus represents the current status of a download
type ProgressStatus string

const (
	StatusPending      ProgressStatus = "pending"
	StatusFetchingInfo ProgressStatus = "fetching_info"
	StatusDownloading  ProgressStatus = "downloading"
	StatusProcessing   ProgressStatus = "processing"
	StatusCompleted    ProgressStatus = "completed"
	StatusFailed       ProgressStatus = "failed"
	StatusCancelled    ProgressStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions may occur
func (s ProgressStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ProgressRecord is a snapshot of one download's observable state,
// keyed by request ID. The registry owns the canonical copy; callers
// only ever see clones.
type ProgressRecord struct {
	RequestID string         `json:"request_id"`
	Status    ProgressStatus `json:"status"`

	DownloadedBytes    int64 `json:"downloaded_bytes"`
	TotalBytes         int64 `json:"total_bytes,omitempty"`          // 0 when unknown
	TotalBytesEstimate int64 `json:"total_bytes_estimate,omitempty"` // engine's guess when exact size unknown

	Speed      *float64 `json:"speed,omitempty"`       // bytes/sec
	ETASeconds *int64   `json:"eta_seconds,omitempty"` // estimated seconds remaining

	Filename         string `json:"filename,omitempty"`
	TempFilename     string `json:"temp_filename,omitempty"`
	CurrentOperation string `json:"current_operation,omitempty"`

	FragmentIndex int `json:"fragment_index,omitempty"`
	FragmentCount int `json:"fragment_count,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewProgressRecord creates a pending record for a freshly registered request
func NewProgressRecord(requestID string) *ProgressRecord {
	now := time.Now()
	return &ProgressRecord{
		RequestID: requestID,
		Status:    StatusPending,
		StartedAt: &now,
		UpdatedAt: now,
	}
}

// EffectiveTotal returns the exact total size when known, otherwise the
// engine's estimate, otherwise 0.
func (p *ProgressRecord) EffectiveTotal() int64 {
	if p.TotalBytes > 0 {
		return p.TotalBytes
	}
	return p.TotalBytesEstimate
}

// Percentage derives the completion percentage from byte counts,
// clamped to [0,100]. Reports 0 until a total size is known. A
// completed download is 100% regardless of byte counts.
func (p *ProgressRecord) Percentage() float64 {
	if p.Status == StatusCompleted {
		return 100
	}
	total := p.EffectiveTotal()
	if total <= 0 {
		return 0
	}
	pct := float64(p.DownloadedBytes) / float64(total) * 100.0
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Clone returns a deep copy safe to hand outside the registry
func (p *ProgressRecord) Clone() *ProgressRecord {
	clone := *p
	if p.Speed != nil {
		speed := *p.Speed
		clone.Speed = &speed
	}
	if p.ETASeconds != nil {
		eta := *p.ETASeconds
		clone.ETASeconds = &eta
	}
	if p.StartedAt != nil {
		started := *p.StartedAt
		clone.StartedAt = &started
	}
	if p.CompletedAt != nil {
		completed := *p.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// MarkCompleted transitions the record into the completed terminal
// state. A successful download moved every byte it was going to move,
// so the counters are reconciled even when the engine's last payload
// left one of them behind.
func (p *ProgressRecord) MarkCompleted() {
	p.Status = StatusCompleted
	switch {
	case p.TotalBytes == 0 && p.DownloadedBytes > 0:
		p.TotalBytes = p.DownloadedBytes
	case p.TotalBytes > 0 && p.DownloadedBytes < p.TotalBytes:
		p.DownloadedBytes = p.TotalBytes
	}
	now := time.Now()
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// MarkFailed transitions the record into the failed terminal state
func (p *ProgressRecord) MarkFailed(err error) {
	p.Status = StatusFailed
	if err != nil {
		p.ErrorMessage = err.Error()
	}
	now := time.Now()
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// MarkCancelled transitions the record into the cancelled terminal state
func (p *ProgressRecord) MarkCancelled() {
	p.Status = StatusCancelled
	now := time.Now()
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// SpeedString formats the speed as a human-readable rate, or "" if unknown
func (p *ProgressRecord) SpeedString() string {
	if p.Speed == nil {
		return ""
	}
	return FormatBytes(int64(*p.Speed)) + "/s"
}

// ETAString formats the ETA as a human-readable duration, or "" if unknown
func (p *ProgressRecord) ETAString() string {
	if p.ETASeconds == nil {
		return ""
	}
	eta := *p.ETASeconds
	switch {
	case eta < 60:
		return fmt.Sprintf("%ds", eta)
	case eta < 3600:
		return fmt.Sprintf("%dm %ds", eta/60, eta%60)
	default:
		return fmt.Sprintf("%dh %dm", eta/3600, (eta%3600)/60)
	}
}

// SizeString formats downloaded/total bytes for display
func (p *ProgressRecord) SizeString() string {
	downloaded := FormatBytes(p.DownloadedBytes)
	if p.TotalBytes > 0 {
		return fmt.Sprintf("%s / %s", downloaded, FormatBytes(p.TotalBytes))
	}
	if p.TotalBytesEstimate > 0 {
		return fmt.Sprintf("%s / ~%s", downloaded, FormatBytes(p.TotalBytesEstimate))
	}
	return downloaded
}

// FormatBytes formats a byte count as a human-readable size
func FormatBytes(b int64) string {
	switch {
	case b < 1024:
		return fmt.Sprintf("%d B", b)
	case b < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	case b < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(b)/(1024*1024*1024))
	}
}
