package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressStatus_IsTerminal(t *testing.T) {
	terminal := []ProgressStatus{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), string(s))
	}

	active := []ProgressStatus{StatusPending, StatusFetchingInfo, StatusDownloading, StatusProcessing}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), string(s))
	}
}

func TestPercentage(t *testing.T) {
	record := &ProgressRecord{DownloadedBytes: 250, TotalBytes: 1000}
	assert.InDelta(t, 25.0, record.Percentage(), 0.01)

	// Unknown total without estimate reports zero
	record = &ProgressRecord{DownloadedBytes: 250}
	assert.Equal(t, 0.0, record.Percentage())

	// Estimate stands in for the total when yt-dlp cannot know it yet
	record = &ProgressRecord{DownloadedBytes: 250, TotalBytesEstimate: 500}
	assert.InDelta(t, 50.0, record.Percentage(), 0.01)

	// Downloaded can briefly exceed a stale estimate; clamp at 100
	record = &ProgressRecord{DownloadedBytes: 600, TotalBytesEstimate: 500}
	assert.Equal(t, 100.0, record.Percentage())
}

func TestEffectiveTotal(t *testing.T) {
	record := &ProgressRecord{TotalBytes: 1000, TotalBytesEstimate: 900}
	assert.Equal(t, int64(1000), record.EffectiveTotal())

	record = &ProgressRecord{TotalBytesEstimate: 900}
	assert.Equal(t, int64(900), record.EffectiveTotal())

	record = &ProgressRecord{}
	assert.Equal(t, int64(0), record.EffectiveTotal())
}

func TestClone_IsDeep(t *testing.T) {
	speed := 1000.0
	eta := int64(30)
	started := time.Now()
	record := &ProgressRecord{
		RequestID:  "req-1",
		Status:     StatusDownloading,
		Speed:      &speed,
		ETASeconds: &eta,
		StartedAt:  &started,
	}

	clone := record.Clone()
	*clone.Speed = 9999.0
	*clone.ETASeconds = 1

	assert.InDelta(t, 1000.0, *record.Speed, 0.01)
	assert.Equal(t, int64(30), *record.ETASeconds)
}

func TestMarkCompleted_FillsUnknownTotal(t *testing.T) {
	record := NewProgressRecord("req-1")
	record.DownloadedBytes = 4096

	record.MarkCompleted()

	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, int64(4096), record.TotalBytes)
	assert.InDelta(t, 100.0, record.Percentage(), 0.01)
	require.NotNil(t, record.CompletedAt)
}

func TestMarkCompleted_AlignsBytesToKnownTotal(t *testing.T) {
	record := NewProgressRecord("req-1")
	record.DownloadedBytes = 500
	record.TotalBytes = 1000

	record.MarkCompleted()

	assert.Equal(t, int64(1000), record.DownloadedBytes)
	assert.InDelta(t, 100.0, record.Percentage(), 0.01)
}

func TestPercentage_CompletedWithoutByteCountsIs100(t *testing.T) {
	record := NewProgressRecord("req-1")
	record.MarkCompleted()

	assert.Equal(t, int64(0), record.DownloadedBytes)
	assert.InDelta(t, 100.0, record.Percentage(), 0.01)
}

func TestMarkFailedAndCancelled(t *testing.T) {
	record := NewProgressRecord("req-1")
	record.MarkFailed(errors.New("HTTP Error 403"))
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "HTTP Error 403", record.ErrorMessage)
	require.NotNil(t, record.CompletedAt)

	record = NewProgressRecord("req-2")
	record.MarkCancelled()
	assert.Equal(t, StatusCancelled, record.Status)
	require.NotNil(t, record.CompletedAt)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}
