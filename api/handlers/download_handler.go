package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/internal/progress"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	orchestrator *app.Orchestrator
	registry     *progress.Registry
	config       *domain.Config
	logger       *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(orchestrator *app.Orchestrator, registry *progress.Registry, config *domain.Config, logger *zap.Logger) *DownloadHandler {
	if config == nil {
		config = domain.DefaultConfig()
	}
	return &DownloadHandler{
		orchestrator: orchestrator,
		registry:     registry,
		config:       config,
		logger:       logger,
	}
}

// AddDownloadRequest represents a request to start a download
type AddDownloadRequest struct {
	URL              string   `json:"url" binding:"required"`
	Type             string   `json:"type,omitempty"`
	OutputDir        string   `json:"output_dir,omitempty"`
	FilenameTemplate string   `json:"filename_template,omitempty"`
	VideoFormat      string   `json:"video_format,omitempty"`
	AudioFormat      string   `json:"audio_format,omitempty"`
	Quality          string   `json:"quality,omitempty"`
	EmbedSubtitles   bool     `json:"embed_subtitles,omitempty"`
	SubtitleLangs    []string `json:"subtitle_langs,omitempty"`
	Overwrite        bool     `json:"overwrite,omitempty"`
}

// toDomain builds a download request, filling unset fields from the
// server configuration
func (r *AddDownloadRequest) toDomain(cfg *domain.Config) *domain.DownloadRequest {
	downloadType := domain.DownloadType(r.Type)
	if downloadType == "" {
		downloadType = domain.TypeVideo
	}

	outputDir := r.OutputDir
	if outputDir == "" {
		outputDir = cfg.Download.OutputDir
	}

	req := domain.NewDownloadRequest(r.URL, downloadType, outputDir)
	req.FilenameTemplate = r.FilenameTemplate
	req.EmbedSubtitles = r.EmbedSubtitles
	req.SubtitleLangs = r.SubtitleLangs
	req.Overwrite = r.Overwrite || cfg.Download.OverwriteOutputs
	req.ContinuePartial = cfg.Download.ContinuePartial
	req.RetryCount = cfg.Download.MaxRetries

	if r.Quality != "" {
		req.Quality = domain.Quality(r.Quality)
	} else {
		req.Quality = cfg.Download.DefaultQuality
	}
	if r.VideoFormat != "" {
		req.VideoFormat = domain.VideoFormat(r.VideoFormat)
	} else {
		req.VideoFormat = cfg.Download.DefaultVideoFmt
	}
	if r.AudioFormat != "" {
		req.AudioFormat = domain.AudioFormat(r.AudioFormat)
	} else {
		req.AudioFormat = cfg.Download.DefaultAudioFmt
	}

	return req
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var body AddDownloadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := body.toDomain(h.config)

	requestID, err := h.orchestrator.Submit(req, nil)
	if err != nil {
		if errors.Is(err, progress.ErrDuplicateRequest) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to submit download", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"request_id": requestID,
		"url":        req.URL,
		"type":       req.Type,
	})
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	id := c.Param("id")

	record := h.registry.Get(id)
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, recordResponse(record))
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	records := h.registry.GetAll()

	out := make([]gin.H, 0, len(records))
	for _, record := range records {
		out = append(out, recordResponse(record))
	}

	c.JSON(http.StatusOK, out)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Statistics())
}

// GetDownloadHistory handles GET /api/v1/downloads/:id/history
func (h *DownloadHandler) GetDownloadHistory(c *gin.Context) {
	id := c.Param("id")

	history := h.registry.History(id)
	if history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	out := make([]gin.H, 0, len(history))
	for _, record := range history {
		out = append(out, recordResponse(record))
	}

	c.JSON(http.StatusOK, out)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if !h.orchestrator.Cancel(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "download is not active"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}

// DeleteDownload handles DELETE /api/v1/downloads/:id. Only terminal
// downloads are removed from tracking; active ones must be cancelled
// first.
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	id := c.Param("id")

	record := h.registry.Get(id)
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}
	if !record.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "download is still active"})
		return
	}

	h.registry.Unregister(id)
	c.JSON(http.StatusOK, gin.H{"message": "download removed"})
}

// CleanupDownloads handles POST /api/v1/downloads/cleanup
func (h *DownloadHandler) CleanupDownloads(c *gin.Context) {
	removed := h.registry.CleanupFinished()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// recordResponse shapes a progress record for API responses, adding the
// derived fields clients render directly
func recordResponse(record *domain.ProgressRecord) gin.H {
	return gin.H{
		"request_id":       record.RequestID,
		"status":           record.Status,
		"downloaded_bytes": record.DownloadedBytes,
		"total_bytes":      record.EffectiveTotal(),
		"percentage":       record.Percentage(),
		"speed":            record.SpeedString(),
		"eta":              record.ETAString(),
		"filename":         record.Filename,
		"operation":        record.CurrentOperation,
		"error_message":    record.ErrorMessage,
		"started_at":       record.StartedAt,
		"updated_at":       record.UpdatedAt,
		"completed_at":     record.CompletedAt,
	}
}
