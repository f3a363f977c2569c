package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/api/handlers"
	"github.com/yourusername/yt-fetch-go/api/middleware"
	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/internal/progress"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	orchestrator *app.Orchestrator,
	registry *progress.Registry,
	preview *app.PreviewService,
	history domain.HistoryRepository,
	config *domain.Config,
	log *zap.Logger,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(registry)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Progress event stream
	wsHandler := handlers.NewProgressWebSocketHandler(registry, log)
	router.GET("/ws/progress", wsHandler.HandleWebSocket)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Download endpoints
		downloadHandler := handlers.NewDownloadHandler(orchestrator, registry, config, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.POST("/cleanup", downloadHandler.CleanupDownloads)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.GET("/:id/history", downloadHandler.GetDownloadHistory)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		// Metadata preview
		previewHandler := handlers.NewPreviewHandler(preview, log)
		v1.POST("/preview", previewHandler.Preview)

		// Finished-download archive
		if history != nil {
			historyHandler := handlers.NewHistoryHandler(history, log)
			v1.GET("/history", historyHandler.ListHistory)
			v1.GET("/history/:id", historyHandler.GetHistoryEntry)
		}
	}

	return router
}
