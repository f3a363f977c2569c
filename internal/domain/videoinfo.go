package domain

import (
	"fmt"
	"sort"
	"time"
)

// FormatInfo describes one downloadable stream variant
type FormatInfo struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext,omitempty"`
	Height   int     `json:"height,omitempty"`
	Width    int     `json:"width,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec,omitempty"`
	Filesize int64   `json:"filesize,omitempty"`
}

// VideoInfo holds metadata extracted for a source URL, used for the
// preview step before a download is submitted.
type VideoInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url,omitempty"`

	Description     string `json:"description,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	UploadDate      string `json:"upload_date,omitempty"` // YYYYMMDD
	ViewCount       int64  `json:"view_count,omitempty"`
	LikeCount       int64  `json:"like_count,omitempty"`

	Channel    string `json:"channel,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
	ChannelURL string `json:"channel_url,omitempty"`
	Uploader   string `json:"uploader,omitempty"`

	Thumbnail     string `json:"thumbnail,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`

	Formats  []FormatInfo `json:"formats,omitempty"`
	HasVideo bool         `json:"has_video"`
	HasAudio bool         `json:"has_audio"`

	Ext            string `json:"ext,omitempty"`
	Filesize       int64  `json:"filesize,omitempty"`
	FilesizeApprox int64  `json:"filesize_approx,omitempty"`

	IsLive   bool `json:"is_live"`
	AgeLimit int  `json:"age_limit,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// DurationString formats the duration as MM:SS or HH:MM:SS
func (v *VideoInfo) DurationString() string {
	d := v.DurationSeconds
	if d <= 0 {
		return ""
	}
	hours := d / 3600
	minutes := (d % 3600) / 60
	seconds := d % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// AvailableQualities extracts the selectable quality options from the
// format list, highest resolution first, bracketed by best/worst.
func (v *VideoInfo) AvailableQualities() []Quality {
	heights := make(map[int]bool)
	for _, f := range v.Formats {
		if f.Height > 0 {
			heights[f.Height] = true
		}
	}
	if len(heights) == 0 {
		return nil
	}

	sorted := make([]int, 0, len(heights))
	for h := range heights {
		sorted = append(sorted, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	qualities := []Quality{QualityBest}
	for _, h := range sorted {
		qualities = append(qualities, Quality(fmt.Sprintf("%dp", h)))
	}
	qualities = append(qualities, QualityWorst)

	return qualities
}
