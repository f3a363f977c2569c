package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// PreviewService fetches video metadata without starting a download and
// caches thumbnails on disk keyed by video ID.
type PreviewService struct {
	engine   domain.Engine
	cacheDir string
	client   *http.Client
	logger   *zap.Logger
}

// NewPreviewService creates a preview service writing thumbnails under cacheDir
func NewPreviewService(engine domain.Engine, cacheDir string, logger *zap.Logger) *PreviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreviewService{
		engine:   engine,
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Preview validates the URL and extracts metadata through the engine.
// The thumbnail is fetched into the cache best-effort; metadata is still
// returned when the thumbnail fetch fails.
func (s *PreviewService) Preview(ctx context.Context, url string) (*domain.VideoInfo, error) {
	if err := domain.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	info, err := s.engine.ExtractInfo(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to extract video info: %w", err)
	}

	if info.Thumbnail != "" {
		path, err := s.cacheThumbnail(ctx, info.ID, info.Thumbnail)
		if err != nil {
			s.logger.Warn("Thumbnail fetch failed",
				zap.String("video_id", info.ID),
				zap.Error(err))
		} else {
			info.ThumbnailPath = path
		}
	}

	s.logger.Info("Video preview fetched",
		zap.String("video_id", info.ID),
		zap.String("title", info.Title))
	return info, nil
}

// cacheThumbnail downloads the thumbnail once per video ID. Concurrent
// fetches of the same ID write the same bytes, so a temp-file rename
// keeps the cached copy whole without locking.
func (s *PreviewService) cacheThumbnail(ctx context.Context, videoID, thumbnailURL string) (string, error) {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail cache: %w", err)
	}

	dest := filepath.Join(s.cacheDir, videoID+".jpg")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnailURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("thumbnail fetch returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.cacheDir, videoID+"-*.part")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return dest, nil
}
