package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "yt-fetch",
		Short: "yt-fetch CLI - YouTube download manager",
		Long:  `A command-line interface for downloading YouTube videos and audio with live progress tracking.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Start a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		url := args[0]
		downloadType, _ := cmd.Flags().GetString("type")
		quality, _ := cmd.Flags().GetString("quality")
		outputDir, _ := cmd.Flags().GetString("output")
		audioFormat, _ := cmd.Flags().GetString("audio-format")

		payload := map[string]interface{}{
			"url": url,
		}
		if downloadType != "" {
			payload["type"] = downloadType
		}
		if quality != "" {
			payload["quality"] = quality
		}
		if outputDir != "" {
			payload["output_dir"] = outputDir
		}
		if audioFormat != "" {
			payload["audio_format"] = audioFormat
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/downloads", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Download started!\n")
		fmt.Printf("ID:   %s\n", result["request_id"])
		fmt.Printf("URL:  %s\n", result["url"])
		fmt.Printf("Type: %s\n", result["type"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked downloads",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		resp, err := http.Get(serverURL + "/api/v1/downloads")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var downloads []map[string]interface{}
		json.Unmarshal(body, &downloads)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSPEED\tETA\tFILE")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\t%s\n",
				truncate(stringField(d, "request_id"), 8),
				d["status"],
				floatField(d, "percentage"),
				d["speed"],
				d["eta"],
				truncate(stringField(d, "filename"), 40))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/downloads/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		fmt.Println("Session Statistics:")
		fmt.Printf("  Total:      %v\n", stats["total_downloads"])
		fmt.Printf("  Active:     %v\n", stats["active_downloads"])
		fmt.Printf("  Completed:  %v\n", stats["completed_downloads"])
		fmt.Printf("  Failed:     %v\n", stats["failed_downloads"])
		fmt.Printf("  Cancelled:  %v\n", stats["cancelled_downloads"])
		fmt.Printf("  Progress:   %.1f%%\n", floatField(stats, "overall_progress"))
		fmt.Printf("  Avg speed:  %.0f B/s\n", floatField(stats, "average_speed"))
		fmt.Printf("  Peak speed: %.0f B/s\n", floatField(stats, "peak_speed"))
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Get(serverURL + "/api/v1/downloads/" + id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var download map[string]interface{}
		json.Unmarshal(body, &download)

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:        %s\n", download["request_id"])
		fmt.Printf("  Status:    %s\n", download["status"])
		fmt.Printf("  Progress:  %.1f%%\n", floatField(download, "percentage"))
		fmt.Printf("  Speed:     %s\n", download["speed"])
		fmt.Printf("  ETA:       %s\n", download["eta"])
		if file := stringField(download, "filename"); file != "" {
			fmt.Printf("  File:      %s\n", file)
		}
		if msg := stringField(download, "error_message"); msg != "" {
			fmt.Printf("  Error:     %s\n", msg)
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		id := args[0]
		resp, err := http.Post(serverURL+"/api/v1/downloads/"+id+"/cancel", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}
		fmt.Println("Download cancelled successfully")
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [url]",
	Short: "Fetch video metadata without downloading",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		data, _ := json.Marshal(map[string]string{"url": args[0]})
		resp, err := http.Post(serverURL+"/api/v1/preview", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var preview map[string]interface{}
		json.Unmarshal(body, &preview)

		fmt.Printf("Title:     %s\n", preview["title"])
		fmt.Printf("Duration:  %s\n", preview["duration"])
		fmt.Printf("Uploader:  %s\n", preview["uploader"])
		if qualities, ok := preview["qualities"].([]interface{}); ok && len(qualities) > 0 {
			strs := make([]string, 0, len(qualities))
			for _, q := range qualities {
				strs = append(strs, fmt.Sprint(q))
			}
			fmt.Printf("Qualities: %s\n", strings.Join(strs, ", "))
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished downloads",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := http.Get(fmt.Sprintf("%s/api/v1/history?limit=%d", serverURL, limit))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var entries []map[string]interface{}
		json.Unmarshal(body, &entries)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tURL\tFILE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				truncate(stringField(e, "request_id"), 8),
				e["status"],
				truncate(stringField(e, "url"), 40),
				truncate(stringField(e, "file_path"), 40))
		}
		w.Flush()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live progress events",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws/progress"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var msg map[string]interface{}
				if json.Unmarshal(data, &msg) != nil {
					continue
				}
				record, _ := msg["record"].(map[string]interface{})
				fmt.Printf("[%s] %s  %.1f%%  %s  eta %s\n",
					msg["kind"],
					truncate(stringField(msg, "request_id"), 8),
					floatField(record, "percentage"),
					record["speed"],
					record["eta"])
			}
		}()

		select {
		case <-interrupt:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		case <-done:
		}
	},
}

func init() {
	addCmd.Flags().StringP("type", "t", "", "Download type (video, audio, both)")
	addCmd.Flags().StringP("quality", "q", "", "Video quality (best, 1080p, 720p, ...)")
	addCmd.Flags().StringP("output", "o", "", "Output directory")
	addCmd.Flags().String("audio-format", "", "Audio format for extraction (mp3, m4a, ogg, wav)")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func floatField(m map[string]interface{}, key string) float64 {
	if m == nil {
		return 0
	}
	if f, ok := m[key].(float64); ok {
		return f
	}
	return 0
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
