package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mobdhq/mobd/internal/bus"
	"github.com/mobdhq/mobd/internal/timer"
)

// ServiceConfig holds listener and mode settings for the gateway.
type ServiceConfig struct {
	Host        string
	Port        int
	SingleTimer bool
	Conn        ConnConfig
}

// DefaultServiceConfig returns the default listener settings.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Host:        "localhost",
		Port:        4321,
		SingleTimer: true,
		Conn:        DefaultConnConfig(),
	}
}

// Service owns the combined HTTP+WebSocket listener and the bus
// subscription. Start binds the listener; Stop tears everything down and is
// safe to call more than once.
type Service struct {
	config      ServiceConfig
	registry    *Registry
	broadcaster *Broadcaster
	server      *http.Server

	stopOnce sync.Once
	stopErr  error
}

// NewService wires the registry, broadcaster, control routes, handshake
// handler and viewer pages into one HTTP server.
func NewService(config ServiceConfig, store *timer.Store, dispatcher Dispatcher, events bus.Bus, tokens TokenSource) *Service {
	registry := NewRegistry(config.Conn)
	broadcaster := NewBroadcaster(store, registry, events)
	api := NewAPI(store, dispatcher)
	wsHandler := NewWSHandler(store, dispatcher, registry, tokens)
	pages := NewPages(store, wsHandler, config.SingleTimer)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	pages.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	handler := recoverMiddleware(c.Handler(mux))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Service{
		config:      config,
		registry:    registry,
		broadcaster: broadcaster,
		server:      server,
	}
}

// Registry exposes the connection registry, mainly for tests and stats.
func (s *Service) Registry() *Registry { return s.registry }

// Start subscribes the broadcaster and serves until the listener is closed.
func (s *Service) Start() error {
	if err := s.broadcaster.Start(); err != nil {
		return err
	}

	log.Info().
		Str("addr", s.server.Addr).
		Bool("single_timer", s.config.SingleTimer).
		Msg("gateway listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway listener: %w", err)
	}
	return nil
}

// Stop unsubscribes from the bus, closes the listener and every open
// connection. Later calls return the first result.
func (s *Service) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		log.Info().Msg("gateway shutting down")

		s.broadcaster.Stop()

		if err := s.server.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("shutdown listener: %w", err)
		}

		s.registry.CloseAll()
	})
	return s.stopErr
}
