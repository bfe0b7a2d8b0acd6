package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
)

// RoomEvent is an accepted room mutation, published for downstream consumers
// (recording, analytics). Subscribers never feed back into room state.
type RoomEvent struct {
	Room       string               `json:"room"`
	Type       events.MessageType   `json:"type"`
	State      events.PlaybackState `json:"state"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// EventPublisher forwards room events. Publish is called with the room locked and must not block.
type EventPublisher interface {
	Publish(ctx context.Context, event RoomEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, RoomEvent) error { return nil }

type NATSPublisherConfig struct {
	URL           string
	SubjectPrefix string // e.g., "meeting.events"
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSPublisherConfig() NATSPublisherConfig {
	return NATSPublisherConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "meeting.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes room events on core NATS, one subject per room.
type NATSPublisher struct {
	nc     *nats.Conn
	config NATSPublisherConfig
}

func NewNATSPublisher(cfg NATSPublisherConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("meeting-gateway"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, config: cfg}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event RoomEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subjectFor(p.config.SubjectPrefix, event.Room),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Room":       []string{event.Room},
		},
	}
	// core NATS publish only buffers; it never waits on the server
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to NATS: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// subjectFor maps a room name onto a single NATS subject token.
func subjectFor(prefix, room string) string {
	return prefix + "." + strings.ReplaceAll(room, ".", "_")
}
