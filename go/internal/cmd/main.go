package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/codeduel/go/internal/config"
	"github.com/mcdev12/codeduel/go/internal/duel/room"
)

func main() {
	autoReady := flag.Bool("ready", false, "mark ready as soon as the lobby is full")
	flag.Parse()

	setupLogging("info")
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	if cfg.StatusPort > 0 {
		server := setupServer(cfg, services)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("status server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("status server shutdown failed")
			}
		}()
	}

	ctrl := services.Controller
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start room controller")
	}

	readySent := false
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return

		case state, ok := <-updates:
			if !ok {
				return
			}
			logState(state)

			if *autoReady && !readySent && room.CanMarkReady(state) == nil {
				if err := ctrl.MarkReady(); err == nil {
					readySent = true
				}
			}
			if state.Phase.IsTerminal() {
				return
			}
		}
	}
}

func logState(state room.ViewState) {
	evt := log.Info().
		Str("phase", state.Phase.String()).
		Bool("connected", state.Connected)

	if state.Room != nil {
		evt = evt.Str("room_status", string(state.Room.Status)).
			Int("players", len(state.Room.Players)).
			Int("max_players", state.Room.MaxPlayers)
	}
	switch state.Phase {
	case room.PhaseBattleIntro:
		if state.Opponent != nil {
			evt = evt.Str("opponent", state.Opponent.DisplayName())
		}
	case room.PhaseInProgress:
		evt = evt.Int("time_left_sec", state.TimeLeft).
			Str("problem", state.CurrentProblem)
	case room.PhaseEnded:
		evt = evt.Str("reason", state.EndReason)
		if state.GameResults != nil && state.GameResults.Winner != nil {
			evt = evt.Str("winner", state.GameResults.Winner.DisplayName())
		}
	case room.PhaseError:
		evt = evt.Str("reason", state.ErrorReason).Bool("cancelled", state.Cancelled)
	}
	evt.Msg("room state")
}
