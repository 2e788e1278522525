package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the WebSocket gateway in front of the session coordinator
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig `yaml:"connection"`
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, coordinator Coordinator, stats StatsProvider) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, coordinator)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, stats),
	}
}

// Start blocks until ctx is done, then closes every client connection
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting quiz gateway service")
	<-ctx.Done()
	log.Info().Msg("quiz gateway service shutting down")
	s.connectionManager.CloseAll()
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("quiz gateway routes registered")
}

// Connections returns the number of open sockets
func (s *Service) Connections() int {
	return s.connectionManager.Count()
}
