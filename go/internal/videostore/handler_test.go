package videostore

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(store Store) *chi.Mux {
	h := NewHandler(store)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandler_UploadDownloadList(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	req := httptest.NewRequest(http.MethodPut, "/api/meetings/algebra/video?duration=20.5", strings.NewReader("mp4 bytes"))
	req.Header.Set("Content-Type", "video/mp4")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/meetings/algebra/video", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "mp4 bytes" || rec.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("download = %q %v", body, rec.Header())
	}
	if rec.Header().Get("X-Video-Duration") != "20.5" {
		t.Errorf("duration header = %q", rec.Header().Get("X-Video-Duration"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var list []Metadata
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "algebra" || list[0].DurationSec != 20.5 {
		t.Errorf("list = %+v", list)
	}
}

func TestHandler_Errors(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"missing video", http.MethodGet, "/api/meetings/physics/video", http.StatusNotFound},
		{"bad name", http.MethodPut, "/api/meetings/bad%20name/video", http.StatusBadRequest},
		{"bad duration", http.MethodPut, "/api/meetings/algebra/video?duration=-3", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("x"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
