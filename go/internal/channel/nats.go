package channel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS transport.
type NATSConfig struct {
	URL           string
	RoomCode      string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default NATS transport configuration.
func DefaultNATSConfig(roomCode string) NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		RoomCode:      roomCode,
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSChannel is the Channel implementation over NATS. Event names map to
// subjects under a per-room prefix: event "timerSync" in room "KX42F" rides
// on "spy.room.KX42F.timerSync". A single wildcard subscription on the room
// prefix is the catch-all that feeds the registry, so event names unknown at
// compile time still dispatch by exact name.
type NATSChannel struct {
	config NATSConfig
	prefix string

	nc  *nats.Conn
	sub *nats.Subscription

	registry  *registry
	callbacks callbacks
}

// NewNATSChannel connects to NATS and subscribes to the room subject space.
func NewNATSChannel(config NATSConfig) (*NATSChannel, error) {
	c := &NATSChannel{
		config:   config,
		prefix:   fmt.Sprintf("spy.room.%s", config.RoomCode),
		registry: newRegistry(),
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			c.callbacks.fireDisconnect()
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			c.callbacks.fireConnect()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
			c.callbacks.fireError(err)
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc

	sub, err := nc.Subscribe(c.prefix+".>", c.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to room subjects: %w", err)
	}
	c.sub = sub

	log.Info().Str("room_code", config.RoomCode).Str("subject", c.prefix+".>").Msg("NATS channel subscribed")
	return c, nil
}

func (c *NATSChannel) On(event string, h Handler) { c.registry.on(event, h) }
func (c *NATSChannel) Off(event string)           { c.registry.off(event) }

func (c *NATSChannel) Connected() bool { return c.nc.IsConnected() }

func (c *NATSChannel) OnConnect(fn func())        { c.callbacks.setConnect(fn) }
func (c *NATSChannel) OnDisconnect(fn func())     { c.callbacks.setDisconnect(fn) }
func (c *NATSChannel) OnError(fn func(err error)) { c.callbacks.setError(fn) }

// Emit publishes a named event to the room subject space. A silent no-op
// while disconnected.
func (c *NATSChannel) Emit(event string, payload any) {
	if !c.nc.IsConnected() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal emit payload")
		return
	}
	if err := c.nc.Publish(c.prefix+"."+event, data); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("publish failed, dropping message")
	}
}

// UnhandledEvents reports inbound events dropped for lack of a handler.
func (c *NATSChannel) UnhandledEvents() uint64 { return c.registry.unhandledCount() }

// Close drains the subscription and closes the connection.
func (c *NATSChannel) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	c.nc.Close()
	return nil
}

// handleMessage strips the room prefix off the subject to recover the event
// name, then dispatches through the registry on the NATS delivery goroutine.
func (c *NATSChannel) handleMessage(msg *nats.Msg) {
	event := strings.TrimPrefix(msg.Subject, c.prefix+".")
	if event == msg.Subject || event == "" {
		log.Debug().Str("subject", msg.Subject).Msg("ignoring message outside room prefix")
		return
	}
	c.registry.dispatch(event, json.RawMessage(msg.Data))
}
