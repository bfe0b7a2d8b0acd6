package playback

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type recordingMedia struct {
	mu      sync.Mutex
	calls   []string
	playErr error
}

func (m *recordingMedia) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *recordingMedia) Play(rate float64) error {
	m.record("play")
	return m.playErr
}

func (m *recordingMedia) Pause() error {
	m.record("pause")
	return nil
}

func (m *recordingMedia) Seek(realTime float64) error {
	m.record("seek")
	return nil
}

func (m *recordingMedia) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type recordingCards struct {
	mu    sync.Mutex
	shown []string
	hides int
}

func (c *recordingCards) ShowCard(segmentID string, card json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = append(c.shown, segmentID)
}

func (c *recordingCards) HideCard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hides++
}

func TestRunner_PlayThroughCard(t *testing.T) {
	media := &recordingMedia{}
	cards := &recordingCards{}
	r := NewRunner(NewController(cardTimeline(t), DefaultTickInterval), media, cards, clockwork.NewFakeClock())

	r.SeekTo(9.95)
	r.Toggle()
	r.Step()

	st := r.State()
	if st.Mode != ModePausedForCard {
		t.Fatalf("mode = %v, want paused_for_card", st.Mode)
	}
	r.Step()
	if len(cards.shown) != 1 || cards.shown[0] != "q1" {
		t.Errorf("cards shown = %v, want [q1]", cards.shown)
	}

	calls := media.Calls()
	want := []string{"seek", "seek", "play", "pause"}
	if len(calls) != len(want) {
		t.Fatalf("media calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("media calls = %v, want %v", calls, want)
		}
	}
}

func TestRunner_NoMediaStillDrivesCards(t *testing.T) {
	cards := &recordingCards{}
	r := NewRunner(NewController(cardTimeline(t), DefaultTickInterval), nil, cards, clockwork.NewFakeClock())

	r.SeekTo(9.95)
	r.Toggle()
	r.Step()
	for i := 0; i < 51; i++ {
		r.Step()
	}

	if len(cards.shown) != 1 || cards.hides != 1 {
		t.Errorf("shown=%v hides=%d, want one show and one hide", cards.shown, cards.hides)
	}
	if r.State().Mode != ModePlaying {
		t.Errorf("mode = %v, want playing", r.State().Mode)
	}
}

func TestRunner_RejectedPlayStaysPaused(t *testing.T) {
	media := &recordingMedia{playErr: errors.New("autoplay blocked")}
	r := NewRunner(NewController(cardTimeline(t), DefaultTickInterval), media, nil, clockwork.NewFakeClock())

	r.Toggle()

	st := r.State()
	if st.Mode != ModePausedByUser || st.MediaPlaying {
		t.Fatalf("state after rejected play = %+v", st)
	}
	r.Step()
	if r.State().EditedTime != 0 {
		t.Errorf("clock advanced after rejected play: %v", r.State().EditedTime)
	}
}

func TestRunner_RunTicksOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRunner(NewController(cardTimeline(t), DefaultTickInterval), &recordingMedia{}, nil, clock)
	r.Toggle()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("ticker never started: %v", err)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(DefaultTickInterval)
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for !approx(r.State().EditedTime, 0.3) {
		if time.Now().After(deadline) {
			t.Fatalf("EditedTime = %v, want 0.3", r.State().EditedTime)
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
}

func TestExecutor_RoutesByTarget(t *testing.T) {
	media := &recordingMedia{}
	cards := &recordingCards{}
	seg := cardTimeline(t).Segments()[1]

	cmds := []Command{Seek(10), ShowCard(seg), Play(1), HideCard(), Pause()}
	for _, cmd := range cmds {
		if err := (Executor{Media: media, Cards: cards}).Execute(cmd); err != nil {
			t.Fatalf("Execute(%v): %v", cmd, err)
		}
		// either side may be missing
		if err := (Executor{}).Execute(cmd); err != nil {
			t.Fatalf("Execute(%v) without targets: %v", cmd, err)
		}
	}

	calls := media.Calls()
	if len(calls) != 3 || calls[0] != "seek" || calls[1] != "play" || calls[2] != "pause" {
		t.Errorf("media calls = %v", calls)
	}
	if len(cards.shown) != 1 || cards.shown[0] != "q1" || cards.hides != 1 {
		t.Errorf("cards shown=%v hides=%d", cards.shown, cards.hides)
	}
}
