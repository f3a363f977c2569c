package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/internal/infrastructure"
	"github.com/yourusername/yt-fetch-go/internal/progress"
)

// ProgressCallback receives record snapshots for a single submitted
// download. Each task owns its own callback through closure capture;
// there is no shared callback table keyed by request ID.
type ProgressCallback func(*domain.ProgressRecord)

// Orchestrator bridges download requests to the extraction engine and
// into the progress registry. Each Submit spawns one independent
// goroutine; there is no queue and no concurrency cap here.
type Orchestrator struct {
	engine   domain.Engine
	registry *progress.Registry
	history  domain.HistoryRepository
	notifier *infrastructure.NotificationService
	logger   *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates a new download orchestrator. The history
// repository and notifier are optional.
func NewOrchestrator(
	engine domain.Engine,
	registry *progress.Registry,
	history domain.HistoryRepository,
	notifier *infrastructure.NotificationService,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		engine:   engine,
		registry: registry,
		history:  history,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit validates and registers a download request, then launches its
// background task. Returns the request ID for tracking. Validation
// failures are the only errors surfaced synchronously; everything that
// happens later is observable through the registry.
func (o *Orchestrator) Submit(req *domain.DownloadRequest, onProgress ProgressCallback) (string, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	if err := req.Validate(); err != nil {
		return "", err
	}

	if err := o.registry.Register(req.RequestID, nil); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	if o.cancels == nil {
		o.cancels = make(map[string]context.CancelFunc)
	}
	o.cancels[req.RequestID] = cancel
	o.mu.Unlock()

	o.logger.Info("Download submitted",
		zap.String("request_id", req.RequestID),
		zap.String("url", req.URL),
		zap.String("type", string(req.Type)))

	o.wg.Add(1)
	go o.runDownload(ctx, req, onProgress)

	return req.RequestID, nil
}

// Cancel marks an active download cancelled and cancels its task
// context, which kills the engine subprocess. Returns false when the
// request is unknown or already terminal. Engine callbacks that race
// with cancellation are discarded by the registry.
func (o *Orchestrator) Cancel(requestID string) bool {
	record := o.registry.Get(requestID)
	if record == nil || record.Status.IsTerminal() {
		return false
	}

	cancelled := record.Clone()
	cancelled.MarkCancelled()
	o.registry.Update(requestID, cancelled)

	o.mu.Lock()
	cancel, ok := o.cancels[requestID]
	o.mu.Unlock()
	if ok {
		cancel()
	}

	o.logger.Info("Download cancelled", zap.String("request_id", requestID))
	return true
}

// Wait blocks until all launched download tasks have exited
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// runDownload is the per-request background task. Nothing escapes it as
// a fault: every failure becomes a terminal failed record.
func (o *Orchestrator) runDownload(ctx context.Context, req *domain.DownloadRequest, onProgress ProgressCallback) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, req.RequestID)
		o.mu.Unlock()
	}()

	o.transition(req.RequestID, domain.StatusDownloading, onProgress)

	hook := func(p domain.EngineProgress) {
		record := o.translateProgress(req.RequestID, p)
		o.registry.Update(req.RequestID, record)
		o.notify(req.RequestID, onProgress)
	}

	filePath, err := o.invokeEngine(ctx, req, hook)

	current := o.registry.Get(req.RequestID)
	if current == nil {
		return
	}
	if current.Status.IsTerminal() {
		// Cancelled while the engine call was in flight; the terminal
		// record is already in place.
		o.archive(req, current)
		return
	}

	final := current.Clone()
	switch {
	case err == nil:
		final.Filename = filePath
		final.MarkCompleted()
	case ctx.Err() == context.Canceled:
		final.MarkCancelled()
	default:
		final.MarkFailed(err)
		o.logger.Error("Download failed",
			zap.String("request_id", req.RequestID),
			zap.String("url", req.URL),
			zap.Error(err))
	}

	o.registry.Update(req.RequestID, final)
	o.notify(req.RequestID, onProgress)
	o.archive(req, o.registry.Get(req.RequestID))

	if o.notifier != nil {
		switch final.Status {
		case domain.StatusCompleted:
			o.notifier.NotifyDownloadCompleted(req.URL)
		case domain.StatusFailed:
			o.notifier.NotifyDownloadFailed(req.URL, err)
		}
	}
}

// invokeEngine runs the engine once, or twice for the "both" type:
// first the video transfer, then the audio extraction, surfacing a
// single combined outcome.
func (o *Orchestrator) invokeEngine(ctx context.Context, req *domain.DownloadRequest, hook domain.EngineProgressHook) (string, error) {
	if req.Type != domain.TypeBoth {
		return o.engine.Download(ctx, req, hook)
	}

	videoReq := *req
	videoReq.Type = domain.TypeVideo
	filePath, err := o.engine.Download(ctx, &videoReq, hook)
	if err != nil {
		return filePath, err
	}

	audioReq := *req
	audioReq.Type = domain.TypeAudio
	if _, err := o.engine.Download(ctx, &audioReq, hook); err != nil {
		return filePath, err
	}

	return filePath, nil
}

// translateProgress folds the engine's loose payload into the current
// record. This is the single boundary point: unknown statuses default
// to downloading and the untyped shape goes no further. Sparse payloads
// are the norm with yt-dlp, which may emit a bare status line with no
// byte counts, so fields the payload omits carry forward from the
// previous snapshot instead of resetting the record.
func (o *Orchestrator) translateProgress(requestID string, p domain.EngineProgress) *domain.ProgressRecord {
	record := o.registry.Get(requestID)
	if record == nil {
		record = domain.NewProgressRecord(requestID)
	}

	if p.DownloadedBytes > 0 {
		record.DownloadedBytes = p.DownloadedBytes
	}
	if p.TotalBytes > 0 {
		record.TotalBytes = p.TotalBytes
	}
	if p.TotalBytesEstimate > 0 {
		record.TotalBytesEstimate = p.TotalBytesEstimate
	}
	if p.Speed != nil {
		record.Speed = p.Speed
	}
	if p.ETASeconds != nil {
		record.ETASeconds = p.ETASeconds
	}
	if p.Filename != "" {
		record.Filename = p.Filename
	}
	if p.TempFilename != "" {
		record.TempFilename = p.TempFilename
	}
	if p.FragmentIndex > 0 {
		record.FragmentIndex = p.FragmentIndex
	}
	if p.FragmentCount > 0 {
		record.FragmentCount = p.FragmentCount
	}
	record.UpdatedAt = time.Now()

	switch p.Status {
	case domain.EngineStatusFinished:
		// The transfer is done but remuxing/extraction may follow;
		// the task marks completed only when the engine call returns.
		record.Status = domain.StatusProcessing
		record.CurrentOperation = "Processing " + displayName(record.Filename)
	case domain.EngineStatusError:
		// Transient: yt-dlp retries fragments on its own. A fatal error
		// surfaces as the engine call's return value and is converted
		// to a failed record at the task boundary.
		record.Status = domain.StatusDownloading
		record.CurrentOperation = "Retrying after engine error"
	default:
		record.Status = domain.StatusDownloading
		record.CurrentOperation = "Downloading " + displayName(record.Filename)
	}

	return record
}

// transition replaces the current record with one carrying a new status
func (o *Orchestrator) transition(requestID string, status domain.ProgressStatus, onProgress ProgressCallback) {
	record := o.registry.Get(requestID)
	if record == nil || record.Status.IsTerminal() {
		return
	}
	next := record.Clone()
	next.Status = status
	o.registry.Update(requestID, next)
	o.notify(requestID, onProgress)
}

// notify hands the caller's per-request callback a fresh snapshot
func (o *Orchestrator) notify(requestID string, onProgress ProgressCallback) {
	if onProgress == nil {
		return
	}
	if record := o.registry.Get(requestID); record != nil {
		onProgress(record)
	}
}

// archive writes a terminal record to the finished-download archive
func (o *Orchestrator) archive(req *domain.DownloadRequest, record *domain.ProgressRecord) {
	if o.history == nil || record == nil || !record.Status.IsTerminal() {
		return
	}

	entry := &domain.HistoryEntry{
		RequestID:       record.RequestID,
		URL:             req.URL,
		Type:            req.Type,
		Status:          record.Status,
		FilePath:        record.Filename,
		ErrorMessage:    record.ErrorMessage,
		DownloadedBytes: record.DownloadedBytes,
		TotalBytes:      record.EffectiveTotal(),
		StartedAt:       record.StartedAt,
		CompletedAt:     record.CompletedAt,
	}
	if record.Speed != nil {
		entry.AverageSpeed = *record.Speed
	}

	if err := o.history.Create(entry); err != nil {
		o.logger.Error("Failed to archive download",
			zap.String("request_id", record.RequestID),
			zap.Error(err))
	}
}

// displayName returns a short label for progress messages
func displayName(filename string) string {
	if filename == "" {
		return "stream"
	}
	return filename
}
