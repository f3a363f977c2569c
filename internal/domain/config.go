package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Tracker      TrackerConfig      `mapstructure:"tracker"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	OutputDir        string      `mapstructure:"output_dir"`
	CacheDir         string      `mapstructure:"cache_dir"` // thumbnail/metadata cache
	LogsDir          string      `mapstructure:"logs_dir"`
	DefaultQuality   Quality     `mapstructure:"default_quality"`
	DefaultVideoFmt  VideoFormat `mapstructure:"default_video_format"`
	DefaultAudioFmt  AudioFormat `mapstructure:"default_audio_format"`
	MaxRetries       int         `mapstructure:"max_retries"`
	ContinuePartial  bool        `mapstructure:"continue_partial"`
	OverwriteOutputs bool        `mapstructure:"overwrite_outputs"`
}

// EngineConfig contains extraction-engine configuration
type EngineConfig struct {
	YTDLPBinary    string        `mapstructure:"ytdlp_binary"`
	FFmpegLocation string        `mapstructure:"ffmpeg_location"`
	SocketTimeout  time.Duration `mapstructure:"socket_timeout"`
	CookieFile     string        `mapstructure:"cookie_file"`
}

// TrackerConfig contains progress-tracking tuning constants. The event
// thresholds and deviation ratio are tuning knobs, not fixed semantics.
type TrackerConfig struct {
	SpeedWindow         time.Duration `mapstructure:"speed_window"`          // trailing window for rate smoothing
	SpeedSampleCount    int           `mapstructure:"speed_sample_count"`    // most recent samples used for the estimate
	SpeedDeviationRatio float64       `mapstructure:"speed_deviation_ratio"` // override reported speed beyond this fraction
	SpeedEventThreshold float64       `mapstructure:"speed_event_threshold"` // bytes/sec change for a speed_updated event
	ETAEventThreshold   int64         `mapstructure:"eta_event_threshold"`   // seconds change for an eta_updated event
}

// HistoryConfig contains the finished-download archive configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			OutputDir:       "$HOME/Downloads/yt-fetch",
			CacheDir:        "$HOME/Downloads/yt-fetch/cache",
			LogsDir:         "$HOME/Downloads/yt-fetch/logs",
			DefaultQuality:  QualityBest,
			DefaultVideoFmt: FormatMP4,
			DefaultAudioFmt: FormatMP3,
			MaxRetries:      3,
			ContinuePartial: true,
		},
		Engine: EngineConfig{
			YTDLPBinary:   "yt-dlp",
			SocketTimeout: 30 * time.Second,
		},
		Tracker: TrackerConfig{
			SpeedWindow:         10 * time.Second,
			SpeedSampleCount:    5,
			SpeedDeviationRatio: 0.5,
			SpeedEventThreshold: 100 * 1024,
			ETAEventThreshold:   5,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/Downloads/yt-fetch/history.db",
		},
		Notification: NotificationConfig{
			Enabled: true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
