package gateway

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
)

// DefaultHeartbeatInterval is the resync period of a live room.
const DefaultHeartbeatInterval = 250 * time.Millisecond

// startHeartbeatLocked replaces any running heartbeat with a fresh one.
func (room *Room) startHeartbeatLocked() {
	if room.stopHeartbeat != nil {
		room.stopHeartbeat()
		room.stopHeartbeat = nil
	}
	interval := room.registry.heartbeat
	if interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	// the ticker is created and stopped outside the goroutine so a fake clock sees both
	// before the caller returns
	ticker := room.registry.clock.NewTicker(interval)
	room.stopHeartbeat = func() {
		cancel()
		ticker.Stop()
	}
	go room.runHeartbeat(ctx, ticker)
}

func (room *Room) runHeartbeat(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()
	log.Debug().Str("room", room.name).Dur("interval", room.registry.heartbeat).Msg("heartbeat started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("room", room.name).Msg("heartbeat stopped")
			return
		case <-ticker.Chan():
			if !room.beat(ctx) {
				return
			}
		}
	}
}

// beat advances a running room by one interval and resyncs every peer.
func (room *Room) beat(ctx context.Context) bool {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || ctx.Err() != nil {
		return false
	}
	if !room.state.Stopped {
		room.state.CurrentTime += room.registry.heartbeat.Seconds() * room.state.Speed
	}
	room.broadcastLocked(events.NewSyncUpdate(room.state, room.registry.clock.Now()))
	return true
}
