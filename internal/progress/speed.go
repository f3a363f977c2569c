package progress

import (
	"time"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// sample is one observation of cumulative downloaded bytes
type sample struct {
	at    time.Time
	bytes int64
}

// SpeedEstimator smooths the bursty instantaneous speed reported by the
// extraction engine using a trailing time window of byte counters per
// request. It is not safe for concurrent use on its own; the registry
// serializes access under its lock.
type SpeedEstimator struct {
	window      time.Duration
	sampleCount int
	samples     map[string][]sample
}

// NewSpeedEstimator creates an estimator with the given trailing window
// and per-estimate sample count
func NewSpeedEstimator(window time.Duration, sampleCount int) *SpeedEstimator {
	if window <= 0 {
		window = 10 * time.Second
	}
	if sampleCount < 2 {
		sampleCount = 5
	}
	return &SpeedEstimator{
		window:      window,
		sampleCount: sampleCount,
		samples:     make(map[string][]sample),
	}
}

// Observe records a new byte counter for a request and returns the
// estimated rate in bytes/sec. ok is false until at least two samples
// fall inside the window.
func (e *SpeedEstimator) Observe(requestID string, at time.Time, downloadedBytes int64) (rate float64, ok bool) {
	history := append(e.samples[requestID], sample{at: at, bytes: downloadedBytes})

	// Drop samples older than the window relative to the newest sample
	cutoff := at.Add(-e.window)
	kept := history[:0]
	for _, s := range history {
		if s.at.After(cutoff) || s.at.Equal(cutoff) {
			kept = append(kept, s)
		}
	}
	e.samples[requestID] = kept

	if len(kept) < 2 {
		return 0, false
	}

	recent := kept
	if len(recent) > e.sampleCount {
		recent = recent[len(recent)-e.sampleCount:]
	}

	first := recent[0]
	last := recent[len(recent)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0, false
	}

	return float64(last.bytes-first.bytes) / elapsed, true
}

// Smooth applies the estimate to a record's speed field. The reported
// speed wins when it tracks the trend; the estimate replaces it when
// the engine reported nothing or the deviation exceeds the configured
// fraction of the reported value.
func (e *SpeedEstimator) Smooth(record *domain.ProgressRecord, rate float64, deviationRatio float64) {
	if record.Speed == nil {
		record.Speed = &rate
		return
	}

	reported := *record.Speed
	deviation := rate - reported
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > reported*deviationRatio {
		record.Speed = &rate
	}
}

// Drop discards the sample window for a request
func (e *SpeedEstimator) Drop(requestID string) {
	delete(e.samples, requestID)
}

// Reset discards all sample windows
func (e *SpeedEstimator) Reset() {
	e.samples = make(map[string][]sample)
}
