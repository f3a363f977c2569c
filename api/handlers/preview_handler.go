package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/app"
)

// PreviewHandler handles metadata preview requests
type PreviewHandler struct {
	preview *app.PreviewService
	logger  *zap.Logger
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(preview *app.PreviewService, logger *zap.Logger) *PreviewHandler {
	return &PreviewHandler{
		preview: preview,
		logger:  logger,
	}
}

// PreviewRequest represents a metadata preview request
type PreviewRequest struct {
	URL string `json:"url" binding:"required"`
}

// Preview handles POST /api/v1/preview
func (h *PreviewHandler) Preview(c *gin.Context) {
	var body PreviewRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.preview.Preview(c.Request.Context(), body.URL)
	if err != nil {
		h.logger.Warn("Preview failed", zap.String("url", body.URL), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        info.ID,
		"title":     info.Title,
		"duration":  info.DurationString(),
		"uploader":  info.Uploader,
		"channel":   info.Channel,
		"thumbnail": info.ThumbnailPath,
		"is_live":   info.IsLive,
		"has_video": info.HasVideo,
		"has_audio": info.HasAudio,
		"qualities": info.AvailableQualities(),
		"info":      info,
	})
}
