package gateway

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the meeting gateway: room registry, WebSocket connections and REST state.
type Service struct {
	registry          *Registry
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the meeting gateway service
type Config struct {
	ConnectionConfig  ConnectionConfig
	HeartbeatInterval time.Duration
	Clock             clockwork.Clock
	Publisher         EventPublisher
	Metrics           MetricsCollector
}

// DefaultConfig returns default configuration for the meeting gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig:  DefaultConnectionConfig(),
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

func NewService(config Config) *Service {
	registry := NewRegistry(RegistryConfig{
		HeartbeatInterval: config.HeartbeatInterval,
		Clock:             config.Clock,
		Publisher:         config.Publisher,
		Metrics:           config.Metrics,
	})
	connectionManager := NewConnectionManager(registry, config.ConnectionConfig, config.Metrics)

	return &Service{
		registry:          registry,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(registry),
	}
}

// Registry exposes the room registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Start blocks until ctx is cancelled, then disconnects every client.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting meeting gateway service")
	<-ctx.Done()
	log.Info().Msg("meeting gateway service shutting down")
	return s.Stop()
}

// Stop closes every room and connection.
func (s *Service) Stop() error {
	s.connectionManager.Shutdown()
	log.Info().Msg("meeting gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterStateRoutes(r)
	log.Info().Msg("meeting gateway routes registered")
}
