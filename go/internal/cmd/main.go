package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	spyapi "github.com/yottascore1997/edutech-sub000/go/clients/spy_api_client"
	"github.com/yottascore1997/edutech-sub000/go/internal/channel"
	"github.com/yottascore1997/edutech-sub000/go/internal/session"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := getEnv("CONFIG_PATH", "config.yaml")
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}

	if config.Room.Code == "" || config.Viewer.UserID == "" {
		log.Fatal().Msg("room.code and viewer.user_id are required")
	}

	log.Info().
		Str("room_code", config.Room.Code).
		Str("transport", config.Transport.Kind).
		Str("api_base_url", config.API.BaseURL).
		Msg("starting session watcher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fetch the initial snapshot; every start needs a fresh one, nothing is
	// persisted locally.
	api := spyapi.NewSpyApiClient(config.API.BaseURL, os.Getenv("API_TOKEN"))
	fetchCtx, fetchCancel := context.WithTimeout(ctx, 10*time.Second)
	initial, err := api.GetSession(fetchCtx, config.Room.Code)
	fetchCancel()
	if err != nil {
		log.Warn().Err(err).Msg("snapshot fetch failed, starting from an empty lobby")
		initial = session.NewSession("", config.Room.Code)
	}

	ch, err := setupChannel(config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event channel")
	}

	client, err := session.NewClient(session.ClientConfig{
		Channel:    ch,
		ViewerID:   config.Viewer.UserID,
		ViewerName: config.Viewer.Name,
		Initial:    initial,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session client")
	}
	defer client.Close()

	// Local debug surface for poking at the live session state.
	debugSrv := setupDebugServer(config, client, ch)
	go func() {
		log.Info().Int("port", config.Debug.Port).Msg("debug server listening")
		if err := debugSrv.ListenAndServe(); err != nil {
			log.Warn().Err(err).Msg("debug server stopped")
		}
	}()

	go watchSession(ctx, client)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := debugSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("debug server shutdown failed")
	}
}

func setupChannel(config *Config) (channel.Channel, error) {
	switch config.Transport.Kind {
	case "websocket":
		return channel.NewWebSocketChannel(channel.DefaultWebSocketConfig(config.Transport.WebSocketURL)), nil
	case "nats":
		natsConfig := channel.DefaultNATSConfig(config.Room.Code)
		natsConfig.URL = config.Transport.NATSURL
		return channel.NewNATSChannel(natsConfig)
	case "memory":
		return channel.NewMemoryChannel(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", config.Transport.Kind)
	}
}

// watchSession logs phase, roster and countdown transitions as they land.
func watchSession(ctx context.Context, client *session.Client) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last session.Session
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess := client.Session()
			if sess.Phase != last.Phase {
				log.Info().
					Str("phase", string(sess.Phase)).
					Int("current_turn", sess.CurrentTurn).
					Msg("phase changed")
			}
			if len(sess.Players) != len(last.Players) {
				log.Info().Int("players", len(sess.Players)).Msg("roster changed")
			}
			if sess.Timer.RemainingSeconds != last.Timer.RemainingSeconds {
				log.Info().
					Int("remaining_sec", sess.Timer.RemainingSeconds).
					Int("total_sec", sess.Timer.TotalSeconds).
					Msg("countdown")
			}
			if notice, ok := client.PopNotice(); ok {
				log.Info().Str("notice", notice).Msg("server notice")
			}
			last = sess
		}
	}
}
