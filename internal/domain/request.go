package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadType represents what streams a download request asks for
type DownloadType string

const (
	TypeVideo DownloadType = "video"
	TypeAudio DownloadType = "audio"
	TypeBoth  DownloadType = "both" // video file plus extracted audio
)

// VideoFormat represents the target video container
type VideoFormat string

const (
	FormatMP4  VideoFormat = "mp4"
	FormatWebM VideoFormat = "webm"
	FormatMKV  VideoFormat = "mkv"
)

// AudioFormat represents the target audio codec/container
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatM4A AudioFormat = "m4a"
	FormatOGG AudioFormat = "ogg"
	FormatWAV AudioFormat = "wav"
)

// Quality represents the preferred video quality
type Quality string

const (
	QualityBest  Quality = "best"
	QualityWorst Quality = "worst"
	Quality2160p Quality = "2160p"
	Quality1440p Quality = "1440p"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	Quality360p  Quality = "360p"
	Quality240p  Quality = "240p"
	Quality144p  Quality = "144p"
)

// youtubeURLPatterns covers the URL shapes the engine can extract from
var youtubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/playlist\?list=[\w-]+`),
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/shorts/[\w-]+`),
	regexp.MustCompile(`(?i)^(?:https?://)?(?:m\.)?youtube\.com/watch\?v=[\w-]+`),
}

var subtitleLangPattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)

// invalidTemplateChars are characters that cannot appear in output filenames
const invalidTemplateChars = `<>:"|?*`

// DownloadRequest represents a single download submission.
// RequestID is unique for the lifetime of the process; callers may supply
// their own or let NewDownloadRequest generate one.
type DownloadRequest struct {
	RequestID string       `json:"request_id"`
	URL       string       `json:"url"`
	Type      DownloadType `json:"type"`

	OutputDir        string `json:"output_dir"`
	FilenameTemplate string `json:"filename_template,omitempty"`

	VideoFormat VideoFormat `json:"video_format,omitempty"`
	AudioFormat AudioFormat `json:"audio_format,omitempty"`
	Quality     Quality     `json:"quality"`

	EmbedSubtitles bool     `json:"embed_subtitles"`
	SubtitleLangs  []string `json:"subtitle_langs,omitempty"`

	Overwrite       bool `json:"overwrite"`
	ContinuePartial bool `json:"continue_partial"`
	RetryCount      int  `json:"retry_count"`

	CreatedAt time.Time `json:"created_at"`
}

// NewDownloadRequest creates a request with generated ID and defaults applied
func NewDownloadRequest(url string, downloadType DownloadType, outputDir string) *DownloadRequest {
	return &DownloadRequest{
		RequestID:       uuid.New().String(),
		URL:             url,
		Type:            downloadType,
		OutputDir:       outputDir,
		Quality:         QualityBest,
		ContinuePartial: true,
		RetryCount:      3,
		CreatedAt:       time.Now(),
	}
}

// ValidateSourceURL checks that the URL matches a supported source-site shape
func ValidateSourceURL(url string) error {
	for _, pattern := range youtubeURLPatterns {
		if pattern.MatchString(url) {
			return nil
		}
	}
	return fmt.Errorf("unsupported URL: %s", url)
}

// ValidateType checks if a download type is valid
func ValidateType(t DownloadType) bool {
	return t == TypeVideo || t == TypeAudio || t == TypeBoth
}

// Validate checks the request before it is registered.
// Validation failures are the only errors surfaced synchronously to callers.
func (r *DownloadRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request id must not be empty")
	}

	if err := ValidateSourceURL(r.URL); err != nil {
		return err
	}

	if !ValidateType(r.Type) {
		return fmt.Errorf("invalid download type: %s", r.Type)
	}

	if r.RetryCount < 0 {
		return fmt.Errorf("retry count cannot be negative")
	}

	if err := validateOutputDir(r.OutputDir); err != nil {
		return err
	}

	if strings.ContainsAny(r.FilenameTemplate, invalidTemplateChars) {
		return fmt.Errorf("filename template contains invalid characters: %s", invalidTemplateChars)
	}

	for _, lang := range r.SubtitleLangs {
		if !subtitleLangPattern.MatchString(lang) {
			return fmt.Errorf("invalid subtitle language code: %s", lang)
		}
	}

	return nil
}

// validateOutputDir ensures the output directory exists and is writable
func validateOutputDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory must not be empty")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}
