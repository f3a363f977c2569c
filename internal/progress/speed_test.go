package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

func TestSpeedEstimator_SteadyRate(t *testing.T) {
	est := NewSpeedEstimator(10*time.Second, 5)
	base := time.Now()

	_, ok := est.Observe("req-1", base, 0)
	assert.False(t, ok)

	_, ok = est.Observe("req-1", base.Add(1*time.Second), 1_000_000)
	require.True(t, ok)

	rate, ok := est.Observe("req-1", base.Add(2*time.Second), 2_000_000)
	require.True(t, ok)
	assert.InDelta(t, 1_000_000, rate, 1.0)
}

func TestSpeedEstimator_DropsSamplesOutsideWindow(t *testing.T) {
	est := NewSpeedEstimator(10*time.Second, 5)
	base := time.Now()

	est.Observe("req-1", base, 0)
	// Next sample arrives well past the window, so the old one is dropped
	_, ok := est.Observe("req-1", base.Add(30*time.Second), 5_000_000)
	assert.False(t, ok)
}

func TestSpeedEstimator_UsesMostRecentSamples(t *testing.T) {
	est := NewSpeedEstimator(10*time.Second, 3)
	base := time.Now()

	// Slow start, then a faster tail; only the last 3 samples count
	est.Observe("req-1", base, 0)
	est.Observe("req-1", base.Add(1*time.Second), 100)
	est.Observe("req-1", base.Add(2*time.Second), 1_000_100)
	rate, ok := est.Observe("req-1", base.Add(3*time.Second), 2_000_100)
	require.True(t, ok)

	// (2_000_100 - 100) / 2s
	assert.InDelta(t, 1_000_000, rate, 1.0)
}

func TestSpeedEstimator_SmoothOverridesMissingSpeed(t *testing.T) {
	est := NewSpeedEstimator(10*time.Second, 5)

	record := &domain.ProgressRecord{RequestID: "req-1"}
	est.Smooth(record, 512_000, 0.5)

	require.NotNil(t, record.Speed)
	assert.InDelta(t, 512_000, *record.Speed, 0.1)
}

func TestSpeedEstimator_SmoothKeepsReportedSpeedNearTrend(t *testing.T) {
	est := NewSpeedEstimator(10*time.Second, 5)

	reported := 1_000_000.0
	record := &domain.ProgressRecord{RequestID: "req-1", Speed: &reported}

	// Estimate within 50% of the reported value: reported wins
	est.Smooth(record, 1_200_000, 0.5)
	assert.InDelta(t, 1_000_000, *record.Speed, 0.1)

	// Estimate deviating by more than 50%: estimate wins
	est.Smooth(record, 2_000_000, 0.5)
	assert.InDelta(t, 2_000_000, *record.Speed, 0.1)
}

func TestSpeedEstimator_DropDiscardsWindow(t *testing.T) {
	est := NewSpeedEstimator(10*time.Second, 5)
	base := time.Now()

	est.Observe("req-1", base, 0)
	est.Observe("req-1", base.Add(time.Second), 1000)
	est.Drop("req-1")

	_, ok := est.Observe("req-1", base.Add(2*time.Second), 2000)
	assert.False(t, ok, "window should restart after Drop")
}
