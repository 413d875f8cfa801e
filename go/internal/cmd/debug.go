package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/yottascore1997/edutech-sub000/go/internal/channel"
	"github.com/yottascore1997/edutech-sub000/go/internal/session"
)

// unhandledCounter is implemented by every transport in this repo.
type unhandledCounter interface {
	UnhandledEvents() uint64
}

// setupDebugServer exposes the live session and channel stats as JSON for a
// local web UI to poll.
func setupDebugServer(config *Config, client *session.Client, ch channel.Channel) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(client.Session()); err != nil {
			log.Error().Err(err).Msg("failed to encode session")
		}
	})

	mux.HandleFunc("/debug/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(client.Chat()); err != nil {
			log.Error().Err(err).Msg("failed to encode chat log")
		}
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{
			"connected": ch.Connected(),
		}
		if counter, ok := ch.(unhandledCounter); ok {
			stats["unhandled_events"] = counter.UnhandledEvents()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Error().Err(err).Msg("failed to encode stats")
		}
	})

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Debug.Port),
		Handler: c.Handler(mux),
	}
}
