package progress

import (
	"time"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// Aggregator maintains the derived Statistics snapshot. Counts are
// adjusted by registry bookkeeping; byte totals, speeds and the overall
// percentage are recomputed from the full record set after every
// mutation. Not safe for concurrent use; the registry serializes access.
type Aggregator struct {
	stats domain.Statistics
}

// NewAggregator creates an aggregator with a fresh session start time
func NewAggregator() *Aggregator {
	return &Aggregator{
		stats: domain.Statistics{SessionStartTime: time.Now()},
	}
}

// OnRegister records a newly tracked download
func (a *Aggregator) OnRegister() {
	a.stats.TotalDownloads++
	a.stats.ActiveDownloads++
}

// OnTerminal records a download reaching a terminal status
func (a *Aggregator) OnTerminal(status domain.ProgressStatus) {
	switch status {
	case domain.StatusCompleted:
		a.stats.CompletedDownloads++
	case domain.StatusFailed:
		a.stats.FailedDownloads++
	case domain.StatusCancelled:
		a.stats.CancelledDownloads++
	}
	if a.stats.ActiveDownloads > 0 {
		a.stats.ActiveDownloads--
	}
}

// Recompute rebuilds the derived fields from the tracked records
func (a *Aggregator) Recompute(records map[string]*domain.ProgressRecord) {
	a.stats.TotalBytesDownloaded = 0
	a.stats.TotalBytesToDownload = 0

	var speeds []float64
	for _, record := range records {
		a.stats.TotalBytesDownloaded += record.DownloadedBytes
		a.stats.TotalBytesToDownload += record.EffectiveTotal()

		if record.Speed != nil && *record.Speed > 0 {
			speeds = append(speeds, *record.Speed)
		}
	}

	if a.stats.TotalBytesToDownload > 0 {
		a.stats.OverallProgress = float64(a.stats.TotalBytesDownloaded) /
			float64(a.stats.TotalBytesToDownload) * 100.0
	} else {
		a.stats.OverallProgress = 0
	}

	if len(speeds) > 0 {
		var sum, max float64
		for _, s := range speeds {
			sum += s
			if s > max {
				max = s
			}
		}
		a.stats.AverageSpeed = sum / float64(len(speeds))
		// Peak is monotone within a session
		if max > a.stats.PeakSpeed {
			a.stats.PeakSpeed = max
		}

		remaining := a.stats.TotalBytesToDownload - a.stats.TotalBytesDownloaded
		if remaining > 0 && a.stats.AverageSpeed > 0 {
			a.stats.EstimatedTimeRemaining = int64(float64(remaining) / a.stats.AverageSpeed)
		} else {
			a.stats.EstimatedTimeRemaining = 0
		}
	} else {
		a.stats.AverageSpeed = 0
		a.stats.EstimatedTimeRemaining = 0
	}
}

// Snapshot returns a copy of the statistics with the session duration
// brought up to date
func (a *Aggregator) Snapshot() domain.Statistics {
	a.stats.SessionDuration = time.Since(a.stats.SessionStartTime)
	return a.stats
}

// Reset clears all statistics and restarts the session clock
func (a *Aggregator) Reset() {
	a.stats = domain.Statistics{SessionStartTime: time.Now()}
}
