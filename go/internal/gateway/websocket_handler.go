package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/session"
)

// StatsProvider reports coordinator state for the stats endpoint
type StatsProvider interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// WebSocketHandler serves the client socket and the stats endpoint
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stats             StatsProvider
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, stats StatsProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stats:             stats,
	}
}

// HandleConnection upgrades a client connection. Identity is established by
// the JOIN messages that follow, not by the handshake.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// the upgrader has already written an HTTP error
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
	}
}

// StatsResponse is the body of GET /api/stats
type StatsResponse struct {
	session.Stats
	Sockets int `json:"sockets"`
}

// HandleStats returns statistics about active connections
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to collect coordinator stats")
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StatsResponse{
		Stats:   stats,
		Sockets: h.connectionManager.Count(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/api/stats", h.HandleStats)
}
