package progress

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// ErrDuplicateRequest is returned when registering an already-tracked request ID
var ErrDuplicateRequest = fmt.Errorf("request already registered")

// listenerEntry pairs a listener with its identity key for dedup/removal
type listenerEntry struct {
	key      uintptr
	listener domain.EventListener
}

// Registry is the single source of truth for all in-flight and recently
// finished downloads. All mutations are serialized under one mutex;
// reads return copies so callers never hold mutable shared state.
//
// Events are dispatched synchronously on the updating goroutine after
// the lock is released, so per-request ordering follows callback order
// while listeners remain free to call back into the registry.
type Registry struct {
	mu        sync.Mutex
	records   map[string]*domain.ProgressRecord
	history   map[string][]*domain.ProgressRecord
	listeners []listenerEntry

	estimator  *SpeedEstimator
	aggregator *Aggregator
	cfg        domain.TrackerConfig
	logger     *zap.Logger
}

// NewRegistry creates a registry using the given tracker tuning constants
func NewRegistry(cfg domain.TrackerConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		records:    make(map[string]*domain.ProgressRecord),
		history:    make(map[string][]*domain.ProgressRecord),
		estimator:  NewSpeedEstimator(cfg.SpeedWindow, cfg.SpeedSampleCount),
		aggregator: NewAggregator(),
		cfg:        cfg,
		logger:     logger,
	}
}

// Register starts tracking a download. The initial record may be nil, in
// which case a pending record is created. Fires a started event.
func (r *Registry) Register(requestID string, initial *domain.ProgressRecord) error {
	r.mu.Lock()

	if _, exists := r.records[requestID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}

	if initial == nil {
		initial = domain.NewProgressRecord(requestID)
	} else {
		initial = initial.Clone()
		initial.RequestID = requestID
	}

	r.records[requestID] = initial
	r.history[requestID] = []*domain.ProgressRecord{initial.Clone()}

	r.aggregator.OnRegister()
	r.aggregator.Recompute(r.records)

	event := domain.ProgressEvent{
		Kind:      domain.EventStarted,
		RequestID: requestID,
		Record:    *initial.Clone(),
		Timestamp: time.Now(),
	}
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	r.logger.Info("Registered progress tracking",
		zap.String("request_id", requestID))

	r.dispatch(listeners, event)
	return nil
}

// Update replaces the current record for a request and fires exactly one
// classified event. Updates for unknown IDs are logged and ignored: a
// cancelled download's last callback can race with cleanup, and that is
// not a caller bug. Updates after a terminal status are likewise ignored
// so terminal states stay final.
func (r *Registry) Update(requestID string, record *domain.ProgressRecord) {
	r.mu.Lock()

	previous, exists := r.records[requestID]
	if !exists {
		r.mu.Unlock()
		r.logger.Warn("Progress update for unregistered download",
			zap.String("request_id", requestID))
		return
	}

	if previous.Status.IsTerminal() {
		r.mu.Unlock()
		r.logger.Warn("Progress update after terminal status ignored",
			zap.String("request_id", requestID),
			zap.String("status", string(previous.Status)))
		return
	}

	current := record.Clone()
	current.RequestID = requestID
	current.UpdatedAt = time.Now()
	if current.StartedAt == nil {
		current.StartedAt = previous.StartedAt
	}

	// Smooth the reported speed against the trailing byte-rate window
	if rate, ok := r.estimator.Observe(requestID, current.UpdatedAt, current.DownloadedBytes); ok {
		r.estimator.Smooth(current, rate, r.cfg.SpeedDeviationRatio)
	}

	r.records[requestID] = current
	r.history[requestID] = append(r.history[requestID], current.Clone())

	if current.Status.IsTerminal() {
		r.aggregator.OnTerminal(current.Status)
		r.estimator.Drop(requestID)
	}
	r.aggregator.Recompute(r.records)

	event := domain.ProgressEvent{
		Kind:      classifyEvent(previous, current, r.cfg),
		RequestID: requestID,
		Record:    *current.Clone(),
		Timestamp: current.UpdatedAt,
		Diff:      buildDiff(previous, current),
	}
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	if current.Status.IsTerminal() {
		r.logger.Info("Download reached terminal status",
			zap.String("request_id", requestID),
			zap.String("status", string(current.Status)))
	}

	r.dispatch(listeners, event)
}

// Get returns a copy of the current record for a request, or nil if unknown
func (r *Registry) Get(requestID string) *domain.ProgressRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[requestID]
	if !exists {
		return nil
	}
	return record.Clone()
}

// GetAll returns copies of all tracked records keyed by request ID
func (r *Registry) GetAll() map[string]*domain.ProgressRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make(map[string]*domain.ProgressRecord, len(r.records))
	for id, record := range r.records {
		all[id] = record.Clone()
	}
	return all
}

// History returns a copy of the append-only snapshot sequence for a request
func (r *Registry) History(requestID string) []*domain.ProgressRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, exists := r.history[requestID]
	if !exists {
		return nil
	}
	out := make([]*domain.ProgressRecord, len(history))
	for i, record := range history {
		out[i] = record.Clone()
	}
	return out
}

// Unregister stops tracking a download. Only terminal downloads may be
// removed; removing an in-progress download would lose its bookkeeping,
// so the call is logged and ignored in that case.
func (r *Registry) Unregister(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[requestID]
	if !exists {
		return
	}

	if !record.Status.IsTerminal() {
		r.logger.Warn("Refusing to unregister active download",
			zap.String("request_id", requestID),
			zap.String("status", string(record.Status)))
		return
	}

	delete(r.records, requestID)
	delete(r.history, requestID)
	r.estimator.Drop(requestID)
	r.aggregator.Recompute(r.records)

	r.logger.Info("Unregistered progress tracking",
		zap.String("request_id", requestID))
}

// AddListener registers an event listener. Listener identity determines
// dedup: adding the same function twice stores it once.
func (r *Registry) AddListener(listener domain.EventListener) {
	key := listenerKey(listener)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.listeners {
		if entry.key == key {
			return
		}
	}
	r.listeners = append(r.listeners, listenerEntry{key: key, listener: listener})
}

// RemoveListener removes a previously added listener
func (r *Registry) RemoveListener(listener domain.EventListener) {
	key := listenerKey(listener)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, entry := range r.listeners {
		if entry.key == key {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Statistics returns the current aggregate snapshot
func (r *Registry) Statistics() domain.Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregator.Snapshot()
}

// Reset clears all tracked state and restarts the statistics session
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]*domain.ProgressRecord)
	r.history = make(map[string][]*domain.ProgressRecord)
	r.estimator.Reset()
	r.aggregator.Reset()

	r.logger.Info("Progress registry reset")
}

// ActiveIDs returns the request IDs of downloads not yet in a terminal state
func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, record := range r.records {
		if !record.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// CleanupFinished unregisters every download in a terminal state and
// returns how many were removed
func (r *Registry) CleanupFinished() int {
	r.mu.Lock()
	var finished []string
	for id, record := range r.records {
		if record.Status.IsTerminal() {
			finished = append(finished, id)
		}
	}
	for _, id := range finished {
		delete(r.records, id)
		delete(r.history, id)
		r.estimator.Drop(id)
	}
	r.aggregator.Recompute(r.records)
	r.mu.Unlock()

	if len(finished) > 0 {
		r.logger.Info("Cleaned up finished downloads", zap.Int("count", len(finished)))
	}
	return len(finished)
}

// snapshotListeners copies the listener list so dispatch never iterates
// the live slice. Must be called with the lock held.
func (r *Registry) snapshotListeners() []listenerEntry {
	snapshot := make([]listenerEntry, len(r.listeners))
	copy(snapshot, r.listeners)
	return snapshot
}

// dispatch delivers an event to every listener, recovering panics
// per-listener so one faulty observer cannot break the others
func (r *Registry) dispatch(listeners []listenerEntry, event domain.ProgressEvent) {
	for _, entry := range listeners {
		func() {
			defer func() {
				if err := recover(); err != nil {
					r.logger.Error("Progress event listener panicked",
						zap.String("request_id", event.RequestID),
						zap.String("kind", string(event.Kind)),
						zap.Any("panic", err))
				}
			}()
			entry.listener(event)
		}()
	}
}

// classifyEvent picks the single event kind for an update. Terminal
// transitions win; otherwise a large speed change, then a large ETA
// change, then a generic update.
func classifyEvent(previous, current *domain.ProgressRecord, cfg domain.TrackerConfig) domain.EventKind {
	if previous.Status != current.Status && current.Status.IsTerminal() {
		switch current.Status {
		case domain.StatusCompleted:
			return domain.EventCompleted
		case domain.StatusFailed:
			return domain.EventFailed
		case domain.StatusCancelled:
			return domain.EventCancelled
		}
	}

	if current.Speed != nil {
		var prevSpeed float64
		if previous.Speed != nil {
			prevSpeed = *previous.Speed
		}
		delta := *current.Speed - prevSpeed
		if delta < 0 {
			delta = -delta
		}
		if delta > cfg.SpeedEventThreshold {
			return domain.EventSpeedUpdated
		}
	}

	if current.ETASeconds != nil {
		var prevETA int64
		if previous.ETASeconds != nil {
			prevETA = *previous.ETASeconds
		}
		delta := *current.ETASeconds - prevETA
		if delta < 0 {
			delta = -delta
		}
		if delta > cfg.ETAEventThreshold {
			return domain.EventETAUpdated
		}
	}

	return domain.EventUpdated
}

// buildDiff captures the before/after values listeners may want to render
func buildDiff(previous, current *domain.ProgressRecord) *domain.EventDiff {
	return &domain.EventDiff{
		SpeedBefore:   previous.Speed,
		SpeedAfter:    current.Speed,
		PercentBefore: previous.Percentage(),
		PercentAfter:  current.Percentage(),
		ETABefore:     previous.ETASeconds,
		ETAAfter:      current.ETASeconds,
	}
}

// listenerKey derives the identity key used for listener dedup
func listenerKey(listener domain.EventListener) uintptr {
	return reflect.ValueOf(listener).Pointer()
}
