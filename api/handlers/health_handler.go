package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-fetch-go/internal/progress"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	registry *progress.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *progress.Registry) *HealthHandler {
	return &HealthHandler{
		registry: registry,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Downloads struct {
		Active int `json:"active"`
		Total  int `json:"total"`
	} `json:"downloads"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	stats := h.registry.Statistics()

	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	response.Downloads.Active = stats.ActiveDownloads
	response.Downloads.Total = stats.TotalDownloads

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
