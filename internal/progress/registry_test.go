package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

func testTrackerConfig() domain.TrackerConfig {
	return domain.TrackerConfig{
		SpeedWindow:         10 * time.Second,
		SpeedSampleCount:    5,
		SpeedDeviationRatio: 0.5,
		SpeedEventThreshold: 100 * 1024,
		ETAEventThreshold:   5,
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(testTrackerConfig(), nil)
}

// eventCollector records events delivered to a listener
type eventCollector struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (c *eventCollector) listener() domain.EventListener {
	return func(event domain.ProgressEvent) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
	}
}

func (c *eventCollector) kinds() []domain.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]domain.EventKind, len(c.events))
	for i, e := range c.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestRegister_InitialRecordIsPending(t *testing.T) {
	reg := newTestRegistry()

	require.NoError(t, reg.Register("req-1", nil))

	record := reg.Get("req-1")
	require.NotNil(t, record)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.Equal(t, int64(0), record.DownloadedBytes)
	assert.Equal(t, float64(0), record.Percentage())
}

func TestRegister_DuplicateFails(t *testing.T) {
	reg := newTestRegistry()

	require.NoError(t, reg.Register("req-1", nil))
	err := reg.Register("req-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestRegister_FiresStartedEvent(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	require.NoError(t, reg.Register("req-1", nil))

	require.Len(t, collector.kinds(), 1)
	assert.Equal(t, domain.EventStarted, collector.kinds()[0])
}

func TestUpdate_UnknownIDIsIgnored(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	assert.NotPanics(t, func() {
		reg.Update("ghost", &domain.ProgressRecord{Status: domain.StatusDownloading})
	})

	assert.Empty(t, collector.kinds())
	assert.NotContains(t, reg.GetAll(), "ghost")
}

func TestUpdate_PercentageIsNonDecreasing(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))

	var last float64
	for _, downloaded := range []int64{100, 250, 500, 900, 1000} {
		reg.Update("req-1", &domain.ProgressRecord{
			Status:          domain.StatusDownloading,
			DownloadedBytes: downloaded,
			TotalBytes:      1000,
		})
		record := reg.Get("req-1")
		pct := record.Percentage()
		assert.GreaterOrEqual(t, pct, last)
		assert.LessOrEqual(t, pct, 100.0)
		last = pct
	}
	assert.InDelta(t, 100.0, last, 0.001)
}

func TestUpdate_TerminalStatusIsIdempotent(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))

	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusCompleted, DownloadedBytes: 1000, TotalBytes: 1000})

	// A stale callback after the terminal transition must not change anything
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 1})

	record := reg.Get("req-1")
	require.NotNil(t, record)
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, int64(1000), record.DownloadedBytes)
}

func TestUpdate_AppendsHistory(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))

	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 100, TotalBytes: 1000})
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 200, TotalBytes: 1000})

	history := reg.History("req-1")
	require.Len(t, history, 3) // initial pending + two updates
	assert.Equal(t, domain.StatusPending, history[0].Status)
	assert.Equal(t, int64(100), history[1].DownloadedBytes)
	assert.Equal(t, int64(200), history[2].DownloadedBytes)
}

func TestEventClassification_TerminalWins(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	require.NoError(t, reg.Register("req-1", nil))
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 500, TotalBytes: 1000})

	// Huge speed change alongside the terminal transition: terminal wins
	speed := 50_000_000.0
	reg.Update("req-1", &domain.ProgressRecord{
		Status:          domain.StatusCompleted,
		DownloadedBytes: 1000,
		TotalBytes:      1000,
		Speed:           &speed,
	})

	kinds := collector.kinds()
	require.Len(t, kinds, 3)
	assert.Equal(t, domain.EventStarted, kinds[0])
	assert.Equal(t, domain.EventCompleted, kinds[2])

	// Exactly one completed event, no trailing speed_updated
	completed := 0
	for _, k := range kinds {
		if k == domain.EventCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestEventClassification_SpeedThreshold(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	require.NoError(t, reg.Register("req-1", nil))

	// Byte counters must move with the reported speeds, or the
	// estimator's trailing-window trend overrides the reported value
	// before classification sees it.
	slow := 10_000.0
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 10_000, Speed: &slow})

	// Jump far beyond the 100 KB/s threshold
	fast := 5_000_000.0
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 50_000_000, Speed: &fast})

	kinds := collector.kinds()
	require.Len(t, kinds, 3)
	assert.Equal(t, domain.EventSpeedUpdated, kinds[2])
}

func TestEventClassification_ETAThreshold(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	require.NoError(t, reg.Register("req-1", nil))

	etaOne := int64(100)
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, ETASeconds: &etaOne})

	etaTwo := int64(60)
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, ETASeconds: &etaTwo})

	kinds := collector.kinds()
	require.Len(t, kinds, 3)
	assert.Equal(t, domain.EventETAUpdated, kinds[2])
}

func TestEventClassification_GenericUpdate(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	require.NoError(t, reg.Register("req-1", nil))
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 10, TotalBytes: 1000})

	kinds := collector.kinds()
	require.Len(t, kinds, 2)
	assert.Equal(t, domain.EventUpdated, kinds[1])
}

func TestUnregister_NonTerminalIsNoOp(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusDownloading, DownloadedBytes: 10})

	reg.Unregister("req-1")

	assert.NotNil(t, reg.Get("req-1"), "active download must remain retrievable")
}

func TestUnregister_TerminalRemovesRecordAndHistory(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))
	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusCompleted})

	reg.Unregister("req-1")

	assert.Nil(t, reg.Get("req-1"))
	assert.Nil(t, reg.History("req-1"))
}

func TestListeners_DedupByIdentity(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	listener := collector.listener()

	reg.AddListener(listener)
	reg.AddListener(listener)

	require.NoError(t, reg.Register("req-1", nil))

	assert.Len(t, collector.kinds(), 1, "listener added twice must be stored once")
}

func TestListeners_RemovedListenerStopsReceiving(t *testing.T) {
	reg := newTestRegistry()
	collector := &eventCollector{}
	listener := collector.listener()

	reg.AddListener(listener)
	reg.RemoveListener(listener)

	require.NoError(t, reg.Register("req-1", nil))

	assert.Empty(t, collector.kinds())
}

func TestListeners_PanicDoesNotBreakDelivery(t *testing.T) {
	reg := newTestRegistry()

	reg.AddListener(func(domain.ProgressEvent) {
		panic("bad listener")
	})
	collector := &eventCollector{}
	reg.AddListener(collector.listener())

	assert.NotPanics(t, func() {
		require.NoError(t, reg.Register("req-1", nil))
	})
	assert.Len(t, collector.kinds(), 1)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))

	record := reg.Get("req-1")
	record.Status = domain.StatusFailed
	record.DownloadedBytes = 999

	fresh := reg.Get("req-1")
	assert.Equal(t, domain.StatusPending, fresh.Status)
	assert.Equal(t, int64(0), fresh.DownloadedBytes)
}

func TestRegistry_StatisticsTrackTerminalCounts(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))
	require.NoError(t, reg.Register("req-2", nil))

	reg.Update("req-1", &domain.ProgressRecord{Status: domain.StatusCompleted})
	reg.Update("req-2", &domain.ProgressRecord{Status: domain.StatusFailed, ErrorMessage: "network error"})

	stats := reg.Statistics()
	assert.Equal(t, 2, stats.TotalDownloads)
	assert.Equal(t, 0, stats.ActiveDownloads)
	assert.Equal(t, 1, stats.CompletedDownloads)
	assert.Equal(t, 1, stats.FailedDownloads)
}

func TestRegistry_Reset(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.Register("req-1", nil))

	reg.Reset()

	assert.Empty(t, reg.GetAll())
	assert.Equal(t, 0, reg.Statistics().TotalDownloads)
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	reg := newTestRegistry()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.NoError(t, reg.Register(id, nil))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := int64(1); i <= 100; i++ {
				reg.Update(id, &domain.ProgressRecord{
					Status:          domain.StatusDownloading,
					DownloadedBytes: i * 10,
					TotalBytes:      1000,
				})
			}
			reg.Update(id, &domain.ProgressRecord{Status: domain.StatusCompleted, DownloadedBytes: 1000, TotalBytes: 1000})
		}(id)
	}
	wg.Wait()

	stats := reg.Statistics()
	assert.Equal(t, 4, stats.CompletedDownloads)
	assert.Equal(t, 0, stats.ActiveDownloads)

	for _, id := range ids {
		record := reg.Get(id)
		require.NotNil(t, record)
		assert.Equal(t, domain.StatusCompleted, record.Status)
	}
}
