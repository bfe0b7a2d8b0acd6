package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
	"github.com/mcdev12/classroom/go/internal/meeting/gateway"
	"github.com/mcdev12/classroom/go/internal/meeting/segments"
	"github.com/mcdev12/classroom/go/internal/roomname"
)

type fakeMedia struct {
	mu      sync.Mutex
	seeks   []float64
	playing bool
	rate    float64
}

func (m *fakeMedia) Play(rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
	m.rate = rate
	return nil
}

func (m *fakeMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *fakeMedia) Seek(realTime float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, realTime)
	return nil
}

func (m *fakeMedia) position() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seeks) == 0 {
		return 0, m.playing
	}
	return m.seeks[len(m.seeks)-1], m.playing
}

type fakeCards struct {
	mu    sync.Mutex
	shown string
}

func (c *fakeCards) ShowCard(segmentID string, card json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = segmentID
}

func (c *fakeCards) HideCard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = ""
}

func (c *fakeCards) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}

func ptr[T any](v T) *T { return &v }

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	repo := segments.NewMemoryRepository()
	if err := repo.ReplaceSegments(context.Background(), "algebra", cardTimeline(t).Segments()); err != nil {
		t.Fatalf("ReplaceSegments: %v", err)
	}

	cfg := gateway.DefaultConfig()
	cfg.HeartbeatInterval = 0
	svc := gateway.NewService(cfg)

	r := chi.NewRouter()
	svc.RegisterRoutes(r)
	segments.NewHandler(segments.NewApp(repo)).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		svc.Stop()
		srv.Close()
	})
	return srv
}

func join(t *testing.T, ctx context.Context, srv *httptest.Server, media *fakeMedia, cards *fakeCards) *Client {
	t.Helper()
	c, err := Dial(ctx, ClientConfig{
		GatewayURL: srv.URL,
		Room:       "algebra",
		Media:      media,
		Cards:      cards,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	go c.Run(ctx)
	t.Cleanup(func() { c.Close() })
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClient_ViewerFollowsDirector(t *testing.T) {
	srv := newGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	media, cards := &fakeMedia{}, &fakeCards{}
	viewer := join(t, ctx, srv, media, cards)
	director := join(t, ctx, srv, &fakeMedia{}, &fakeCards{})

	if err := director.StartMeeting(); err != nil {
		t.Fatalf("StartMeeting: %v", err)
	}
	if err := director.UpdateState(events.NewUpdateState(ptr(true), ptr(12.0), nil)); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	eventually(t, "card q1 pinned at 10", func() bool {
		pos, playing := media.position()
		return cards.current() == "q1" && pos == 10 && !playing
	})
	if !viewer.Live() {
		t.Error("viewer did not see meeting_started")
	}

	if err := director.UpdateState(events.NewUpdateState(ptr(false), ptr(16.0), ptr(2.0))); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	eventually(t, "playback resumed after the card", func() bool {
		pos, playing := media.position()
		return cards.current() == "" && pos == 11 && playing
	})
	if got := viewer.State(); got.Stopped || got.CurrentTime != 16 || got.Speed != 2 {
		t.Errorf("viewer state = %+v", got)
	}
}

func TestClient_BuffersStateUntilMeetingStarts(t *testing.T) {
	srv := newGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	media, cards := &fakeMedia{}, &fakeCards{}
	viewer := join(t, ctx, srv, media, cards)
	director := join(t, ctx, srv, &fakeMedia{}, &fakeCards{})

	if err := director.UpdateState(events.NewUpdateState(ptr(true), ptr(12.0), nil)); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	eventually(t, "state received", func() bool { return viewer.State().CurrentTime == 12 })
	if cards.current() != "" {
		t.Fatal("card shown before the timeline was loaded")
	}

	if err := director.StartMeeting(); err != nil {
		t.Fatalf("StartMeeting: %v", err)
	}
	eventually(t, "buffered state applied", func() bool {
		pos, _ := media.position()
		return cards.current() == "q1" && pos == 10
	})
}

func TestHTTPTimelineSource_MissingMeetingIsUnedited(t *testing.T) {
	srv := newGateway(t)

	tl, err := HTTPTimelineSource{BaseURL: srv.URL}.Timeline(context.Background(), "physics")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.Len() != 0 {
		t.Errorf("segments = %d, want 0", tl.Len())
	}

	tl, err = HTTPTimelineSource{BaseURL: srv.URL}.Timeline(context.Background(), "algebra")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.TotalEditedLength() != 25 || tl.TotalRealMediaLength() != 20 {
		t.Errorf("lengths = %v / %v", tl.TotalEditedLength(), tl.TotalRealMediaLength())
	}
}

func TestDial_RejectsBadRoomName(t *testing.T) {
	_, err := Dial(context.Background(), ClientConfig{GatewayURL: "http://127.0.0.1:1", Room: "bad room"})
	if !errors.Is(err, roomname.ErrInvalidRoomName) {
		t.Errorf("err = %v, want ErrInvalidRoomName", err)
	}
}
