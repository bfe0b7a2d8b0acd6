package segments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/roomname"
	"github.com/mcdev12/classroom/go/internal/timeline"
)

// maxTimelineBytes bounds a PUT body.
const maxTimelineBytes = 1 << 20

// Handler serves meeting timelines over HTTP.
type Handler struct {
	app *App
}

func NewHandler(app *App) *Handler {
	return &Handler{app: app}
}

// RegisterRoutes registers the segment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/meetings/{name}/segments", h.HandleGetSegments)
	r.Put("/api/meetings/{name}/segments", h.HandlePutSegments)
}

// HandleGetSegments handles GET /api/meetings/{name}/segments
func (h *Handler) HandleGetSegments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	tl, err := h.app.GetTimeline(r.Context(), name)
	switch {
	case errors.Is(err, roomname.ErrInvalidRoomName):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrMeetingNotFound):
		http.Error(w, "meeting not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("meeting", name).Msg("failed to get timeline")
		http.Error(w, "failed to get timeline", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// HandlePutSegments handles PUT /api/meetings/{name}/segments
func (h *Handler) HandlePutSegments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var tl timeline.Timeline
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTimelineBytes)).Decode(&tl); err != nil {
		http.Error(w, "invalid timeline: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.app.SaveTimeline(r.Context(), name, &tl)
	if errors.Is(err, roomname.ErrInvalidRoomName) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("meeting", name).Msg("failed to save timeline")
		http.Error(w, "failed to save timeline", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, &tl)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
