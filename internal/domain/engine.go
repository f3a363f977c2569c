package domain

import "context"

// Engine status strings as reported by the extraction toolchain
const (
	EngineStatusDownloading = "downloading"
	EngineStatusFinished    = "finished"
	EngineStatusError       = "error"
)

// EngineProgress is the loosely-typed progress payload the extraction
// engine reports through its hook. It is translated into a typed
// ProgressRecord at a single boundary point in the orchestrator; the
// untyped shape never travels further.
type EngineProgress struct {
	Status             string   `json:"status"`
	DownloadedBytes    int64    `json:"downloaded_bytes"`
	TotalBytes         int64    `json:"total_bytes,omitempty"`
	TotalBytesEstimate int64    `json:"total_bytes_estimate,omitempty"`
	Speed              *float64 `json:"speed,omitempty"`
	ETASeconds         *int64   `json:"eta,omitempty"`
	Filename           string   `json:"filename,omitempty"`
	TempFilename       string   `json:"tmpfilename,omitempty"`
	FragmentIndex      int      `json:"fragment_index,omitempty"`
	FragmentCount      int      `json:"fragment_count,omitempty"`
	Postprocessor      string   `json:"postprocessor,omitempty"`
}

// EngineProgressHook receives progress payloads from the engine,
// invoked synchronously on the download goroutine.
type EngineProgressHook func(EngineProgress)

// Engine is the contract for the external extraction/download toolchain.
// Implementations resolve a source URL into stream metadata and perform
// transfers; demuxing and transcoding happen inside the engine.
type Engine interface {
	// ExtractInfo resolves metadata for a URL without downloading
	ExtractInfo(ctx context.Context, url string) (*VideoInfo, error)

	// Download performs the transfer described by the request, invoking
	// hook repeatedly with progress payloads. Returns the final output
	// path on success.
	Download(ctx context.Context, req *DownloadRequest, hook EngineProgressHook) (string, error)
}
