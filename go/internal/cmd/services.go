package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/codeduel/go/clients/game_client"
	"github.com/mcdev12/codeduel/go/internal/config"
	"github.com/mcdev12/codeduel/go/internal/duel/controller"
	"github.com/mcdev12/codeduel/go/internal/duel/gateway"
	"github.com/mcdev12/codeduel/go/internal/duel/telemetry"
)

type Services struct {
	Controller *controller.Controller
	Publisher  telemetry.Publisher
	Metrics    *telemetry.Counters
}

func setupServices(cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Clients → Telemetry → Transport → Controller
	clock := clockwork.NewRealClock()

	games := game_client.NewGameClient(cfg.APIURL, cfg.AuthToken)
	games.SetTimeout(cfg.FetchTimeout)

	metrics := telemetry.NewCounters()
	publisher := telemetry.NewMetricPublisher(setupPublisher(cfg), metrics)

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.URL = cfg.WSURL
	connConfig.AuthToken = cfg.AuthToken
	connConfig.HandshakeTimeout = cfg.HandshakeTimeout
	connConfig.PingInterval = cfg.PingInterval

	ctrl, err := controller.New(controller.Config{
		RoomID:  cfg.RoomID,
		UserID:  cfg.UserID,
		Fetcher: games,
		NewTransport: func(dispatch gateway.Dispatcher) controller.Transport {
			return gateway.NewConnectionManager(connConfig, clock, dispatch)
		},
		Clock:        clock,
		Notifier:     controller.LogNotifier{},
		Publisher:    publisher,
		Metrics:      metrics,
		FetchTimeout: cfg.FetchTimeout,
	})
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create room controller: %w", err)
	}

	return &Services{
		Controller: ctrl,
		Publisher:  publisher,
		Metrics:    metrics,
	}, nil
}

// setupPublisher prefers NATS and falls back to the log when no broker is
// configured or reachable.
func setupPublisher(cfg config.Config) telemetry.Publisher {
	if cfg.NATSURL == "" {
		return telemetry.NewLogPublisher()
	}

	natsConfig := telemetry.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.SubjectPrefix = cfg.NATSSubjectPrefix

	publisher, err := telemetry.NewNATSPublisher(natsConfig)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("NATS unavailable, logging phase changes instead")
		return telemetry.NewLogPublisher()
	}
	log.Info().Str("url", cfg.NATSURL).Msg("publishing phase changes to NATS")
	return publisher
}

func (s *Services) Close() {
	s.Controller.Close()
	if err := s.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close telemetry publisher")
	}
}
