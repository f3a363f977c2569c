package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// progressTemplate makes yt-dlp emit one JSON object per progress tick
// on stdout, which is far sturdier than scraping the human progress bar.
const progressTemplate = "%(progress)j"

// YTDLPEngine runs yt-dlp as a subprocess and streams its structured
// progress output back through the hook. Cancelling the context kills
// the subprocess.
type YTDLPEngine struct {
	config  *domain.EngineConfig
	logsDir string
	logger  *zap.Logger
}

// NewYTDLPEngine creates an engine using the given yt-dlp configuration
func NewYTDLPEngine(config *domain.EngineConfig, logsDir string, logger *zap.Logger) *YTDLPEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLPEngine{
		config:  config,
		logsDir: logsDir,
		logger:  logger,
	}
}

// ExtractInfo fetches metadata for a URL without downloading anything
func (e *YTDLPEngine) ExtractInfo(ctx context.Context, url string) (*domain.VideoInfo, error) {
	args := []string{
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
	}
	args = e.appendCommonArgs(args)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, e.config.YTDLPBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp info extraction failed: %s", firstStderrLine(stderr.String(), err))
	}

	info, err := parseVideoInfo(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return info, nil
}

// Download runs yt-dlp for a single request, reporting progress through
// the hook. Returns the path of the downloaded file when yt-dlp reports
// one.
func (e *YTDLPEngine) Download(ctx context.Context, req *domain.DownloadRequest, hook domain.EngineProgressHook) (string, error) {
	args := e.buildDownloadArgs(req)

	// Per-day subprocess log, appended across downloads
	downloadLog, err := e.openLogFile()
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	defer downloadLog.Close()

	cmdLine := ShellEscapeCommand(e.config.YTDLPBinary, args...)
	e.writeLogHeader(downloadLog, req.RequestID, cmdLine)
	e.logger.Debug("Starting yt-dlp", zap.String("request_id", req.RequestID), zap.String("cmd", cmdLine))

	cmd := exec.CommandContext(ctx, e.config.YTDLPBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		e.writeLogFooter(downloadLog, false, fmt.Sprintf("failed to start yt-dlp: %v", err))
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var lastFilename string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		downloadLog.WriteString(line + "\n")

		payload, ok := parseProgressLine(line)
		if !ok {
			continue
		}
		if payload.Filename != "" {
			lastFilename = payload.Filename
		}
		if hook != nil {
			hook(payload)
		}
	}

	err = cmd.Wait()
	if err != nil {
		if ctx.Err() != nil {
			e.writeLogFooter(downloadLog, false, "cancelled")
			return "", ctx.Err()
		}
		msg := firstStderrLine(stderr.String(), err)
		e.writeLogFooter(downloadLog, false, msg)
		return "", fmt.Errorf("yt-dlp failed: %s", msg)
	}

	e.writeLogFooter(downloadLog, true, fmt.Sprintf("Downloaded: %s", lastFilename))
	return lastFilename, nil
}

// buildDownloadArgs translates a request into a yt-dlp argument list
func (e *YTDLPEngine) buildDownloadArgs(req *domain.DownloadRequest) []string {
	args := []string{
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--no-playlist",
		"--no-warnings",
		"--restrict-filenames",
	}

	args = append(args, "-f", formatSelector(req))

	if req.Type == domain.TypeAudio {
		args = append(args, "-x", "--audio-format", string(audioFormat(req)))
	} else if req.VideoFormat != "" {
		args = append(args, "--merge-output-format", string(req.VideoFormat))
	}

	template := req.FilenameTemplate
	if template == "" {
		template = "%(title)s.%(ext)s"
	}
	args = append(args, "-o", template, "-P", req.OutputDir)

	if req.ContinuePartial {
		args = append(args, "--continue")
	} else {
		args = append(args, "--no-continue")
	}
	if req.Overwrite {
		args = append(args, "--force-overwrites")
	} else {
		args = append(args, "--no-overwrites")
	}
	if req.RetryCount > 0 {
		args = append(args, "--retries", fmt.Sprintf("%d", req.RetryCount))
	}

	if req.EmbedSubtitles {
		args = append(args, "--write-subs", "--embed-subs")
		if len(req.SubtitleLangs) > 0 {
			args = append(args, "--sub-langs", strings.Join(req.SubtitleLangs, ","))
		}
	}

	args = e.appendCommonArgs(args)
	return append(args, req.URL)
}

// appendCommonArgs adds the engine-level flags shared by all invocations
func (e *YTDLPEngine) appendCommonArgs(args []string) []string {
	if e.config.CookieFile != "" && fileExists(e.config.CookieFile) {
		args = append(args, "--cookies", e.config.CookieFile)
	}
	if e.config.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", e.config.FFmpegLocation)
	}
	if e.config.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", fmt.Sprintf("%d", int(e.config.SocketTimeout.Seconds())))
	}
	return args
}

// formatSelector builds the -f expression for the request
func formatSelector(req *domain.DownloadRequest) string {
	if req.Type == domain.TypeAudio {
		return "bestaudio/best"
	}

	switch req.Quality {
	case domain.QualityBest, "":
		return "bestvideo+bestaudio/best"
	case domain.QualityWorst:
		return "worstvideo+worstaudio/worst"
	default:
		height := strings.TrimSuffix(string(req.Quality), "p")
		return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", height, height)
	}
}

// audioFormat picks the extraction format, defaulting to mp3
func audioFormat(req *domain.DownloadRequest) domain.AudioFormat {
	if req.AudioFormat != "" {
		return req.AudioFormat
	}
	return domain.FormatMP3
}

// ytdlpProgress mirrors the JSON emitted by the progress template.
// Numeric fields are pointers because yt-dlp omits or nulls them freely.
type ytdlpProgress struct {
	Status             string   `json:"status"`
	DownloadedBytes    *int64   `json:"downloaded_bytes"`
	TotalBytes         *int64   `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
	Speed              *float64 `json:"speed"`
	ETA                *float64 `json:"eta"`
	Filename           string   `json:"filename"`
	TmpFilename        string   `json:"tmpfilename"`
	FragmentIndex      *int     `json:"fragment_index"`
	FragmentCount      *int     `json:"fragment_count"`
}

// parseProgressLine decodes one stdout line into an engine payload.
// Non-JSON lines (yt-dlp banners, postprocessor chatter) are skipped.
func parseProgressLine(line string) (domain.EngineProgress, bool) {
	if !strings.HasPrefix(line, "{") {
		return domain.EngineProgress{}, false
	}

	var raw ytdlpProgress
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return domain.EngineProgress{}, false
	}
	if raw.Status == "" {
		return domain.EngineProgress{}, false
	}

	p := domain.EngineProgress{
		Status:       raw.Status,
		Filename:     raw.Filename,
		TempFilename: raw.TmpFilename,
	}
	if raw.DownloadedBytes != nil {
		p.DownloadedBytes = *raw.DownloadedBytes
	}
	if raw.TotalBytes != nil {
		p.TotalBytes = *raw.TotalBytes
	}
	if raw.TotalBytesEstimate != nil {
		p.TotalBytesEstimate = int64(*raw.TotalBytesEstimate)
	}
	if raw.Speed != nil {
		speed := *raw.Speed
		p.Speed = &speed
	}
	if raw.ETA != nil {
		eta := int64(*raw.ETA)
		p.ETASeconds = &eta
	}
	if raw.FragmentIndex != nil {
		p.FragmentIndex = *raw.FragmentIndex
	}
	if raw.FragmentCount != nil {
		p.FragmentCount = *raw.FragmentCount
	}
	return p, true
}

// ytdlpInfo is the subset of --dump-json output the preview needs
type ytdlpInfo struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	WebpageURL      string  `json:"webpage_url"`
	Description     string  `json:"description"`
	Duration        float64 `json:"duration"`
	UploadDate      string  `json:"upload_date"`
	ViewCount       int64   `json:"view_count"`
	LikeCount       int64   `json:"like_count"`
	Channel         string  `json:"channel"`
	ChannelID       string  `json:"channel_id"`
	ChannelURL      string  `json:"channel_url"`
	Uploader        string  `json:"uploader"`
	Thumbnail       string  `json:"thumbnail"`
	Ext             string  `json:"ext"`
	Filesize        int64   `json:"filesize"`
	FilesizeApprox  int64   `json:"filesize_approx"`
	IsLive          bool    `json:"is_live"`
	AgeLimit        int     `json:"age_limit"`
	VCodec          string  `json:"vcodec"`
	ACodec          string  `json:"acodec"`
	OriginalFormats []struct {
		FormatID string  `json:"format_id"`
		Ext      string  `json:"ext"`
		Height   int     `json:"height"`
		Width    int     `json:"width"`
		FPS      float64 `json:"fps"`
		VCodec   string  `json:"vcodec"`
		ACodec   string  `json:"acodec"`
		Filesize int64   `json:"filesize"`
	} `json:"formats"`
}

// parseVideoInfo maps --dump-json output into the domain type
func parseVideoInfo(data []byte) (*domain.VideoInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("missing video id")
	}

	info := &domain.VideoInfo{
		ID:              raw.ID,
		Title:           raw.Title,
		URL:             raw.WebpageURL,
		WebpageURL:      raw.WebpageURL,
		Description:     raw.Description,
		DurationSeconds: int(raw.Duration),
		UploadDate:      raw.UploadDate,
		ViewCount:       raw.ViewCount,
		LikeCount:       raw.LikeCount,
		Channel:         raw.Channel,
		ChannelID:       raw.ChannelID,
		ChannelURL:      raw.ChannelURL,
		Uploader:        raw.Uploader,
		Thumbnail:       raw.Thumbnail,
		Ext:             raw.Ext,
		Filesize:        raw.Filesize,
		FilesizeApprox:  raw.FilesizeApprox,
		IsLive:          raw.IsLive,
		AgeLimit:        raw.AgeLimit,
		HasVideo:        raw.VCodec != "" && raw.VCodec != "none",
		HasAudio:        raw.ACodec != "" && raw.ACodec != "none",
		FetchedAt:       time.Now(),
	}

	for _, f := range raw.OriginalFormats {
		info.Formats = append(info.Formats, domain.FormatInfo{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Height:   f.Height,
			Width:    f.Width,
			FPS:      f.FPS,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			Filesize: f.Filesize,
		})
	}
	return info, nil
}

// firstStderrLine returns the last meaningful stderr line, which is
// where yt-dlp puts its actual error, falling back to the exec error
func firstStderrLine(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line
		}
	}
	return err.Error()
}

// openLogFile opens the subprocess log file for today
func (e *YTDLPEngine) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(e.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	logPath := filepath.Join(e.logsDir, "download-"+dateStr+".log")
	return os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the download start marker
func (e *YTDLPEngine) writeLogHeader(file *os.File, requestID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	file.WriteString(fmt.Sprintf("\n=== [%s] Download: %s ===\n", timestamp, requestID))
	file.WriteString(fmt.Sprintf("$ %s\n", cmdLine))
}

// writeLogFooter writes the download end marker
func (e *YTDLPEngine) writeLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	file.WriteString(fmt.Sprintf("[%s] %s: %s\n", timestamp, status, message))
	file.WriteString("=== END ===\n\n")
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
