package videostore

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/roomname"
)

// MaxUploadBytes bounds a single video upload.
const MaxUploadBytes = 2 << 30

// Handler exposes a Store over HTTP. A meeting's video is stored under the meeting name.
type Handler struct {
	store Store
	now   func() time.Time
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes registers the video routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Put("/api/meetings/{name}/video", h.HandlePut)
	r.Get("/api/meetings/{name}/video", h.HandleGet)
	r.Get("/api/videos", h.HandleList)
}

// HandlePut handles PUT /api/meetings/{name}/video?duration=<seconds>
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := roomname.Validate(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	meta := Metadata{
		ID:          name,
		Name:        name,
		ContentType: r.Header.Get("Content-Type"),
		UploadedAt:  h.now().UTC(),
	}
	if r.ContentLength > 0 {
		meta.Size = r.ContentLength
	}
	if d := r.URL.Query().Get("duration"); d != "" {
		sec, err := strconv.ParseFloat(d, 64)
		if err != nil || sec <= 0 {
			http.Error(w, "duration must be a positive number of seconds", http.StatusBadRequest)
			return
		}
		meta.DurationSec = sec
	}

	body := http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := h.store.Put(r.Context(), name, meta, body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "video too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Error().Err(err).Str("meeting", name).Msg("failed to store video")
		http.Error(w, "failed to store video", http.StatusInternalServerError)
		return
	}

	log.Info().Str("meeting", name).Int64("size", meta.Size).Msg("video stored")
	w.WriteHeader(http.StatusCreated)
}

// HandleGet handles GET /api/meetings/{name}/video
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	meta, blob, err := h.store.Get(r.Context(), name)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("meeting", name).Msg("failed to load video")
		http.Error(w, "failed to load video", http.StatusInternalServerError)
		return
	}
	defer blob.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.DurationSec > 0 {
		w.Header().Set("X-Video-Duration", strconv.FormatFloat(meta.DurationSec, 'f', -1, 64))
	}
	if _, err := io.Copy(w, blob); err != nil {
		log.Warn().Err(err).Str("meeting", name).Msg("video download interrupted")
	}
}

// HandleList handles GET /api/videos
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	videos, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list videos")
		http.Error(w, "failed to list videos", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(videos); err != nil {
		log.Error().Err(err).Msg("failed to encode video list")
	}
}
