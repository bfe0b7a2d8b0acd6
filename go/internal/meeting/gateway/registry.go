package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidState = errors.New("invalid playback state")
	ErrClosed       = errors.New("gateway is shutting down")
)

// Peer is a room member that receives fan-out.
type Peer interface {
	ID() string
	// Enqueue hands a message to the peer without blocking. It returns false when the
	// peer cannot accept it.
	Enqueue(msg []byte) bool
	Close()
}

// MetricsCollector receives gateway counters.
type MetricsCollector interface {
	RecordBroadcast(messageType string)
	RecordMalformedMessage()
	RecordRejected(reason string)
	RecordDroppedConnection()
}

// NoOpMetricsCollector is used when metrics aren't needed.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordBroadcast(string)   {}
func (NoOpMetricsCollector) RecordMalformedMessage()  {}
func (NoOpMetricsCollector) RecordRejected(string)    {}
func (NoOpMetricsCollector) RecordDroppedConnection() {}

// RegistryConfig tunes room behavior.
type RegistryConfig struct {
	// HeartbeatInterval is the resync period of a live room. Zero disables the heartbeat.
	HeartbeatInterval time.Duration
	Clock             clockwork.Clock
	Publisher         EventPublisher
	Metrics           MetricsCollector
}

// Registry owns every room's playback state. Lock order is registry, then room.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool

	heartbeat time.Duration
	clock     clockwork.Clock
	publisher EventPublisher
	metrics   MetricsCollector
}

// Room is one meeting's playback state and its members.
type Room struct {
	name     string
	registry *Registry

	mu            sync.Mutex
	state         events.PlaybackState
	live          bool
	closed        bool
	peers         map[string]Peer
	stopHeartbeat context.CancelFunc
}

// RoomStats summarizes one room.
type RoomStats struct {
	Room        string               `json:"room"`
	Connections int                  `json:"connections"`
	Live        bool                 `json:"live"`
	State       events.PlaybackState `json:"state"`
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = NoopPublisher{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoOpMetricsCollector{}
	}
	return &Registry{
		rooms:     make(map[string]*Room),
		heartbeat: cfg.HeartbeatInterval,
		clock:     cfg.Clock,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
	}
}

// Join registers peer in the room, creating the room with default state if needed.
// The peer receives meeting_started (when the room is live) and the current state
// before any later broadcast.
func (r *Registry) Join(roomName string, peer Peer) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	room, ok := r.rooms[roomName]
	if !ok {
		room = &Room{
			name:     roomName,
			registry: r,
			state:    events.DefaultPlaybackState(),
			peers:    make(map[string]Peer),
		}
		r.rooms[roomName] = room
		log.Info().Str("room", roomName).Msg("room created")
	}
	room.mu.Lock()
	r.mu.Unlock()
	defer room.mu.Unlock()

	room.peers[peer.ID()] = peer

	if room.live {
		room.sendLocked(peer, events.NewMeetingStarted())
	}
	room.sendLocked(peer, events.NewSyncUpdate(room.state, r.clock.Now()))

	log.Debug().
		Str("room", roomName).
		Str("connection_id", peer.ID()).
		Int("connections", len(room.peers)).
		Msg("peer joined")
	return nil
}

// Leave deregisters peer. The last peer out discards the room and its state.
func (r *Registry) Leave(roomName string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomName]
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	delete(room.peers, peer.ID())
	if len(room.peers) > 0 {
		return
	}

	room.closed = true
	if room.stopHeartbeat != nil {
		room.stopHeartbeat()
		room.stopHeartbeat = nil
	}
	delete(r.rooms, roomName)
	log.Info().Str("room", roomName).Msg("room emptied, state discarded")
}

// UpdateState merges the provided fields into the room state and broadcasts the result.
func (r *Registry) UpdateState(ctx context.Context, roomName string, upd events.UpdateState) (events.PlaybackState, error) {
	if err := validateUpdate(upd); err != nil {
		r.metrics.RecordRejected("invalid_state")
		return events.PlaybackState{}, err
	}

	room, err := r.lockRoom(roomName)
	if err != nil {
		return events.PlaybackState{}, err
	}
	defer room.mu.Unlock()

	if upd.Stopped != nil {
		room.state.Stopped = *upd.Stopped
	}
	if upd.CurrentTime != nil {
		room.state.CurrentTime = *upd.CurrentTime
	}
	if upd.Speed != nil {
		room.state.Speed = *upd.Speed
	}

	room.broadcastLocked(events.NewSyncUpdate(room.state, r.clock.Now()))
	r.publish(ctx, roomName, events.TypeUpdateState, room.state)
	return room.state, nil
}

// StartMeeting marks the room live, broadcasts meeting_started and (re)starts the heartbeat.
func (r *Registry) StartMeeting(ctx context.Context, roomName string) error {
	room, err := r.lockRoom(roomName)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if !room.live {
		log.Info().Str("room", roomName).Msg("meeting started")
	}
	room.live = true
	room.broadcastLocked(events.NewMeetingStarted())
	room.startHeartbeatLocked()
	r.publish(ctx, roomName, events.TypeStartMeeting, room.state)
	return nil
}

// State returns a snapshot of the room's playback state.
func (r *Registry) State(roomName string) (RoomStats, error) {
	room, err := r.lockRoom(roomName)
	if err != nil {
		return RoomStats{}, err
	}
	defer room.mu.Unlock()
	return room.statsLocked(), nil
}

// Stats returns every room, sorted by name.
func (r *Registry) Stats() []RoomStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]RoomStats, 0, len(r.rooms))
	for _, room := range r.rooms {
		room.mu.Lock()
		stats = append(stats, room.statsLocked())
		room.mu.Unlock()
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Room < stats[j].Room })
	return stats
}

// Counts returns the number of rooms and connections.
func (r *Registry) Counts() (rooms, connections int) {
	for _, s := range r.Stats() {
		rooms++
		connections += s.Connections
	}
	return rooms, connections
}

// Close stops every heartbeat and disconnects every peer.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		room.mu.Lock()
		if room.stopHeartbeat != nil {
			room.stopHeartbeat()
			room.stopHeartbeat = nil
		}
		peers := make([]Peer, 0, len(room.peers))
		for _, p := range room.peers {
			peers = append(peers, p)
		}
		room.mu.Unlock()

		for _, p := range peers {
			p.Close()
		}
	}
}

// lockRoom returns the named room locked. The caller unlocks it.
func (r *Registry) lockRoom(roomName string) (*Room, error) {
	r.mu.Lock()
	room, ok := r.rooms[roomName]
	r.mu.Unlock()
	if !ok {
		r.metrics.RecordRejected("room_not_found")
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomName)
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		r.metrics.RecordRejected("room_not_found")
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomName)
	}
	return room, nil
}

func (r *Registry) publish(ctx context.Context, roomName string, eventType events.MessageType, state events.PlaybackState) {
	if err := r.publisher.Publish(ctx, RoomEvent{
		Room:       roomName,
		Type:       eventType,
		State:      state,
		OccurredAt: r.clock.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("room", roomName).Str("event_type", string(eventType)).Msg("failed to publish room event")
	}
}

func (room *Room) statsLocked() RoomStats {
	return RoomStats{
		Room:        room.name,
		Connections: len(room.peers),
		Live:        room.live,
		State:       room.state,
	}
}

// broadcastLocked marshals msg once and hands it to every peer in the room.
// Peers that cannot keep up are removed and closed.
func (room *Room) broadcastLocked(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("room", room.name).Msg("failed to marshal broadcast")
		return
	}

	for id, peer := range room.peers {
		if peer.Enqueue(data) {
			continue
		}
		log.Warn().
			Str("room", room.name).
			Str("connection_id", id).
			Msg("connection send buffer full, closing connection")
		delete(room.peers, id)
		room.registry.metrics.RecordDroppedConnection()
		peer.Close()
	}

	room.registry.metrics.RecordBroadcast(messageType(msg))
}

func (room *Room) sendLocked(peer Peer, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("room", room.name).Msg("failed to marshal message")
		return
	}
	if !peer.Enqueue(data) {
		log.Warn().Str("room", room.name).Str("connection_id", peer.ID()).Msg("dropping message for slow connection")
	}
}

func messageType(msg any) string {
	switch m := msg.(type) {
	case events.SyncUpdate:
		return string(m.Type)
	case events.MeetingStarted:
		return string(m.Type)
	case events.Error:
		return string(m.Type)
	}
	return "unknown"
}

func validateUpdate(upd events.UpdateState) error {
	if upd.Speed != nil {
		s := *upd.Speed
		if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
			return fmt.Errorf("%w: speed must be a positive number, got %v", ErrInvalidState, s)
		}
	}
	if upd.CurrentTime != nil {
		t := *upd.CurrentTime
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return fmt.Errorf("%w: current_time must be a non-negative number, got %v", ErrInvalidState, t)
		}
	}
	return nil
}
