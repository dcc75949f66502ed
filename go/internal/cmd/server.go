package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/codeduel/go/internal/config"
	"github.com/mcdev12/codeduel/go/internal/duel/room"
	"github.com/mcdev12/codeduel/go/internal/duel/telemetry"
)

// stateSource is the read side of the room controller
type stateSource interface {
	State() room.ViewState
}

func setupServer(cfg config.Config, services *Services) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StatusPort),
		Handler: newStatusHandler(services.Controller, services.Metrics),
	}
}

func newStatusHandler(states stateSource, metrics *telemetry.Counters) http.Handler {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, states.State())
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, metrics.Snapshot())
	})
	setupHealthCheck(mux)

	// Wrap with CORS and serve HTTP/2 without TLS
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write status response")
	}
}
