package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/roomname"
)

// WebSocketHandler handles WebSocket upgrade requests for meeting rooms
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleMeetingConnection handles GET /ws/meeting/{room}/
func (h *WebSocketHandler) HandleMeetingConnection(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if err := roomname.Validate(room); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// on failure the upgrader has already written the HTTP error response
	if err := h.connectionManager.UpgradeConnection(w, r, room); err != nil {
		log.Error().
			Err(err).
			Str("room", room).
			Msg("failed to upgrade WebSocket connection")
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/meeting/{room}", h.HandleMeetingConnection)
	r.Get("/ws/meeting/{room}/", h.HandleMeetingConnection)
}
