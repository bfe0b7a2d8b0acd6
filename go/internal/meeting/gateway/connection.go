package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int
	CheckOrigin      func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		SendBufferSize:   256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// ConnectionManager upgrades HTTP requests and attaches the resulting connections to rooms.
type ConnectionManager struct {
	registry *Registry
	upgrader websocket.Upgrader
	config   ConnectionConfig
	metrics  MetricsCollector

	ctx    context.Context
	cancel context.CancelFunc
}

// Connection is one client's websocket in one room.
type Connection struct {
	id      string
	room    string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	manager *ConnectionManager

	connectedAt time.Time
}

func NewConnectionManager(registry *Registry, config ConnectionConfig, metrics MetricsCollector) *ConnectionManager {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultConnectionConfig().PingInterval
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		registry: registry,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
			CheckOrigin:      config.CheckOrigin,
		},
		config:  config,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and joins it to room.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, room string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		id:          uuid.New().String(),
		room:        room,
		conn:        conn,
		send:        make(chan []byte, cm.config.SendBufferSize),
		done:        make(chan struct{}),
		manager:     cm,
		connectedAt: cm.registry.clock.Now(),
	}

	if err := cm.registry.Join(room, c); err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cm.config.WriteTimeout))
		conn.Close()
		return fmt.Errorf("failed to join room %s: %w", room, err)
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("room", room).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
	return nil
}

// Shutdown stops in-flight request handling and closes every connection.
func (cm *ConnectionManager) Shutdown() {
	cm.cancel()
	cm.registry.Close()
}

func (c *Connection) ID() string { return c.id }

// Enqueue implements Peer.
func (c *Connection) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close implements Peer. The write pump sends a close frame and tears the socket down.
func (c *Connection) Close() {
	c.once.Do(func() { close(c.done) })
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.manager.registry.Leave(c.room, c)
		c.Close()
		log.Info().
			Str("connection_id", c.id).
			Str("room", c.room).
			Dur("connected_for", c.manager.registry.clock.Since(c.connectedAt)).
			Msg("connection closed")
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// handleClientMessage applies one director request. Failures are reported to this
// connection only and never close it.
func (c *Connection) handleClientMessage(message []byte) {
	decoded, err := events.Decode(message)
	if err != nil {
		c.manager.metrics.RecordMalformedMessage()
		log.Warn().
			Err(err).
			Str("connection_id", c.id).
			Str("room", c.room).
			Msg("dropping malformed client message")
		return
	}

	ctx := c.manager.ctx
	switch msg := decoded.(type) {
	case events.UpdateState:
		_, err = c.manager.registry.UpdateState(ctx, c.room, msg)
	case events.StartMeeting:
		err = c.manager.registry.StartMeeting(ctx, c.room)
	default:
		c.manager.metrics.RecordMalformedMessage()
		log.Warn().
			Str("connection_id", c.id).
			Str("message_type", fmt.Sprintf("%T", decoded)).
			Msg("dropping server-only message sent by client")
		return
	}

	if err == nil {
		return
	}
	log.Warn().Err(err).Str("connection_id", c.id).Str("room", c.room).Msg("client request rejected")
	if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrInvalidState) {
		c.reply(events.NewError(err))
	}
}

func (c *Connection) reply(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	if !c.Enqueue(data) {
		log.Warn().Str("connection_id", c.id).Msg("dropping reply for slow connection")
	}
}
