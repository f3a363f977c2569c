package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/internal/progress"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ProgressWebSocketHandler streams classified progress events to
// connected WebSocket clients. It registers a single listener with the
// registry and fans events out to every client; a slow client is
// dropped rather than allowed to stall the others.
type ProgressWebSocketHandler struct {
	registry *progress.Registry
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]chan []byte
}

// NewProgressWebSocketHandler creates the handler and hooks it into the registry
func NewProgressWebSocketHandler(registry *progress.Registry, logger *zap.Logger) *ProgressWebSocketHandler {
	h := &ProgressWebSocketHandler{
		registry: registry,
		logger:   logger,
		clients:  make(map[*websocket.Conn]chan []byte),
	}
	registry.AddListener(h.onEvent)
	return h
}

// onEvent is the registry listener: marshal once, enqueue per client
func (h *ProgressWebSocketHandler) onEvent(event domain.ProgressEvent) {
	data, err := json.Marshal(eventMessage(event))
	if err != nil {
		h.logger.Error("Failed to marshal progress event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client buffer full; its writer goroutine will close it
			h.logger.Warn("Dropping slow WebSocket client",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			conn.Close()
		}
	}
}

// HandleWebSocket handles GET /ws/progress
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := make(chan []byte, 100)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	h.logger.Info("WebSocket client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Send a snapshot of every tracked download so the client starts
	// from current state instead of waiting for the next event
	for _, record := range h.registry.GetAll() {
		data, err := json.Marshal(snapshotMessage(record))
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Read messages from client (for close detection and ping/pong)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// eventMessage shapes a progress event for the wire
func eventMessage(event domain.ProgressEvent) gin.H {
	msg := gin.H{
		"kind":       event.Kind,
		"request_id": event.RequestID,
		"timestamp":  event.Timestamp,
		"record":     recordResponse(&event.Record),
	}
	if event.Diff != nil {
		msg["diff"] = event.Diff
	}
	return msg
}

// snapshotMessage shapes a current-state record sent on connect
func snapshotMessage(record *domain.ProgressRecord) gin.H {
	return gin.H{
		"kind":       "snapshot",
		"request_id": record.RequestID,
		"timestamp":  record.UpdatedAt,
		"record":     recordResponse(record),
	}
}
