package channel

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for the WebSocket transport.
type WebSocketConfig struct {
	URL             string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	MaxReconnects   int // total reconnect attempts before giving up
	ReconnectWait   time.Duration
	MaxReconnectGap time.Duration // backoff cap
}

// DefaultWebSocketConfig returns the default WebSocket transport configuration.
func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:             url,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		SendBufferSize:  256,
		MaxReconnects:   10,
		ReconnectWait:   2 * time.Second,
		MaxReconnectGap: 30 * time.Second,
	}
}

// WebSocketChannel is the Channel implementation over a WebSocket client
// connection. Events ride as JSON Envelopes. Reconnection is handled here
// with bounded exponential backoff; consumers only see the connectivity flag
// flip and the OnConnect/OnDisconnect callbacks fire.
type WebSocketChannel struct {
	config WebSocketConfig

	registry  *registry
	callbacks callbacks

	connected atomic.Bool
	send      chan []byte

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWebSocketChannel creates the channel and starts its connect loop. The
// initial dial happens in the background; use OnConnect to learn when the
// channel becomes usable.
func NewWebSocketChannel(config WebSocketConfig) *WebSocketChannel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &WebSocketChannel{
		config:   config,
		registry: newRegistry(),
		send:     make(chan []byte, config.SendBufferSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

func (c *WebSocketChannel) On(event string, h Handler) { c.registry.on(event, h) }
func (c *WebSocketChannel) Off(event string)           { c.registry.off(event) }

func (c *WebSocketChannel) Connected() bool { return c.connected.Load() }

func (c *WebSocketChannel) OnConnect(fn func())       { c.callbacks.setConnect(fn) }
func (c *WebSocketChannel) OnDisconnect(fn func())    { c.callbacks.setDisconnect(fn) }
func (c *WebSocketChannel) OnError(fn func(err error)) { c.callbacks.setError(fn) }

// Emit sends a named event. While disconnected it does nothing: no error, no
// queueing, no retry. A full send buffer also drops the message rather than
// blocking the caller.
func (c *WebSocketChannel) Emit(event string, payload any) {
	if !c.connected.Load() {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal emit payload")
		return
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal envelope")
		return
	}

	select {
	case c.send <- msg:
	default:
		log.Warn().Str("event", event).Msg("send buffer full, dropping message")
	}
}

// UnhandledEvents reports inbound events dropped for lack of a handler.
func (c *WebSocketChannel) UnhandledEvents() uint64 { return c.registry.unhandledCount() }

// Close tears the connection down and stops the reconnect loop.
func (c *WebSocketChannel) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

// run owns the connection lifecycle: dial, pump until failure, back off,
// redial. Gives up after MaxReconnects consecutive failed attempts.
func (c *WebSocketChannel) run(ctx context.Context) {
	defer close(c.done)

	attempts := 0
	wait := c.config.ReconnectWait

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
		if err != nil {
			attempts++
			if attempts > c.config.MaxReconnects {
				log.Error().Err(err).Int("attempts", attempts-1).Msg("websocket reconnect attempts exhausted")
				c.callbacks.fireError(err)
				return
			}
			log.Warn().
				Err(err).
				Int("attempt", attempts).
				Dur("wait", wait).
				Msg("websocket dial failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait *= 2
			if wait > c.config.MaxReconnectGap {
				wait = c.config.MaxReconnectGap
			}
			continue
		}

		// Dial succeeded, reset the backoff window.
		attempts = 0
		wait = c.config.ReconnectWait

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.connected.Store(true)
		log.Info().Str("url", c.config.URL).Msg("websocket connected")
		c.callbacks.fireConnect()

		c.pump(ctx, conn)

		c.connected.Store(false)
		log.Info().Str("url", c.config.URL).Msg("websocket disconnected")
		c.callbacks.fireDisconnect()
	}
}

// pump runs the write loop on a helper goroutine and the read loop on the
// current one; it returns once either side fails.
func (c *WebSocketChannel) pump(ctx context.Context, conn *websocket.Conn) {
	writeCtx, stopWriter := context.WithCancel(ctx)
	defer stopWriter()

	go c.writePump(writeCtx, conn)
	c.readPump(conn)
}

func (c *WebSocketChannel) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().Err(err).Msg("failed to write message to websocket")
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				conn.Close()
				return
			}
		}
	}
}

// readPump reads envelopes and dispatches them through the registry. Handler
// execution happens on this goroutine, so handlers for a given connection are
// never re-entrant.
func (c *WebSocketChannel) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(c.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed envelope")
			continue
		}
		if env.Event == "" {
			log.Debug().Msg("ignoring envelope without event name")
			continue
		}
		c.registry.dispatch(env.Event, env.Data)
	}
}
