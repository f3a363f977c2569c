//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/api"
	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/internal/progress"
)

// fakeEngine simulates a short successful download
type fakeEngine struct{}

func (e *fakeEngine) ExtractInfo(ctx context.Context, url string) (*domain.VideoInfo, error) {
	return &domain.VideoInfo{ID: "dQw4w9WgXcQ", Title: "test video"}, nil
}

func (e *fakeEngine) Download(ctx context.Context, req *domain.DownloadRequest, hook domain.EngineProgressHook) (string, error) {
	speed := 1_000_000.0
	hook(domain.EngineProgress{
		Status:          domain.EngineStatusDownloading,
		DownloadedBytes: 500_000,
		TotalBytes:      1_000_000,
		Speed:           &speed,
	})
	hook(domain.EngineProgress{
		Status:          domain.EngineStatusFinished,
		DownloadedBytes: 1_000_000,
		TotalBytes:      1_000_000,
		Filename:        "/tmp/test.mp4",
	})
	return "/tmp/test.mp4", nil
}

func setupTestServer(t *testing.T) (*httptest.Server, *app.Orchestrator, *progress.Registry) {
	t.Helper()

	config := domain.DefaultConfig()
	config.Download.OutputDir = t.TempDir()

	registry := progress.NewRegistry(config.Tracker, zap.NewNop())
	engine := &fakeEngine{}
	orchestrator := app.NewOrchestrator(engine, registry, nil, nil, zap.NewNop())
	preview := app.NewPreviewService(engine, t.TempDir(), zap.NewNop())

	router := api.SetupRouter(orchestrator, registry, preview, nil, config, zap.NewNop())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, orchestrator, registry
}

func TestAPI_AddDownloadAndTrackToCompletion(t *testing.T) {
	server, orchestrator, _ := setupTestServer(t)

	payload := map[string]string{
		"url":  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"type": "video",
	}
	data, _ := json.Marshal(payload)

	resp, err := http.Post(server.URL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	requestID, _ := created["request_id"].(string)
	require.NotEmpty(t, requestID)

	orchestrator.Wait()

	getResp, err := http.Get(server.URL + "/api/v1/downloads/" + requestID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var record map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&record))
	assert.Equal(t, "completed", record["status"])
	assert.InDelta(t, 100.0, record["percentage"], 0.01)
}

func TestAPI_RejectsUnsupportedURL(t *testing.T) {
	server, _, _ := setupTestServer(t)

	data, _ := json.Marshal(map[string]string{"url": "https://example.com/video"})
	resp, err := http.Post(server.URL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_StatsReflectFinishedDownloads(t *testing.T) {
	server, orchestrator, _ := setupTestServer(t)

	for i := 0; i < 3; i++ {
		data, _ := json.Marshal(map[string]string{
			"url": fmt.Sprintf("https://www.youtube.com/watch?v=video%05d", i),
		})
		resp, err := http.Post(server.URL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	orchestrator.Wait()

	resp, err := http.Get(server.URL + "/api/v1/downloads/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats domain.Statistics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 3, stats.TotalDownloads)
	assert.Equal(t, 3, stats.CompletedDownloads)
	assert.Equal(t, 0, stats.ActiveDownloads)
}

func TestAPI_CancelInactiveDownloadConflicts(t *testing.T) {
	server, orchestrator, _ := setupTestServer(t)

	data, _ := json.Marshal(map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"})
	resp, err := http.Post(server.URL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	var created map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	requestID, _ := created["request_id"].(string)

	orchestrator.Wait()

	// Already completed; cancellation must be refused
	cancelResp, err := http.Post(server.URL+"/api/v1/downloads/"+requestID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer cancelResp.Body.Close()
	assert.Equal(t, http.StatusConflict, cancelResp.StatusCode)
}

func TestAPI_HealthReportsDownloadCounts(t *testing.T) {
	server, _, registry := setupTestServer(t)

	require.NoError(t, registry.Register("req-health", nil))

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	downloads, _ := health["downloads"].(map[string]interface{})
	require.NotNil(t, downloads)
	assert.Equal(t, float64(1), downloads["total"])
}
