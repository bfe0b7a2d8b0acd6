package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RoomsResponse is the body of GET /api/rooms.
type RoomsResponse struct {
	TotalConnections int         `json:"total_connections"`
	ActiveRooms      int         `json:"active_rooms"`
	Rooms            []RoomStats `json:"rooms"`
}

// StateHandler serves read-only room state over HTTP.
type StateHandler struct {
	registry *Registry
}

func NewStateHandler(registry *Registry) *StateHandler {
	return &StateHandler{registry: registry}
}

// HandleGetRooms handles GET /api/rooms
func (h *StateHandler) HandleGetRooms(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()
	resp := RoomsResponse{ActiveRooms: len(stats), Rooms: stats}
	for _, s := range stats {
		resp.TotalConnections += s.Connections
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetRoomState handles GET /api/rooms/{room}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	stats, err := h.registry.State(room)
	if errors.Is(err, ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to get room state")
		http.Error(w, "failed to get room state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Get("/api/rooms", h.HandleGetRooms)
	r.Get("/api/rooms/{room}/state", h.HandleGetRoomState)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
