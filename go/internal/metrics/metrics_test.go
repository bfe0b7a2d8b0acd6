package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGatewayHandler(t *testing.T) {
	m := NewGateway()
	m.RecordBroadcast("sync_update")
	m.RecordBroadcast("sync_update")
	m.RecordMalformedMessage()
	m.RecordRejected("room_not_found")

	refreshed := false
	srv := httptest.NewServer(m.Handler(func() {
		refreshed = true
		m.SetActive(2, 5)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	if !refreshed {
		t.Error("gauges were not refreshed before scrape")
	}
	for _, want := range []string{
		`meeting_broadcasts_total{type="sync_update"} 2`,
		`meeting_malformed_messages_total 1`,
		`meeting_rejected_requests_total{reason="room_not_found"} 1`,
		`meeting_active_rooms 2`,
		`meeting_active_connections 5`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
