package channel

import (
	"encoding/json"
)

// Handler processes the payload of a single named event.
type Handler func(data json.RawMessage)

// Channel is a bidirectional named-event connection. The game session layer
// only ever talks to this interface; the concrete transport (WebSocket, NATS,
// in-process loopback) is chosen at wiring time.
//
// Contract:
//   - On registers exactly one handler per event name; registering again for
//     the same name replaces the previous handler.
//   - Off is idempotent.
//   - Emit is fire-and-forget and a silent no-op while disconnected. Nothing
//     is queued and nothing is retried.
//   - Connection lifecycle is owned by the transport and only observed
//     through the OnConnect/OnDisconnect/OnError callbacks.
type Channel interface {
	On(event string, h Handler)
	Off(event string)
	Emit(event string, payload any)

	Connected() bool
	OnConnect(fn func())
	OnDisconnect(fn func())
	OnError(fn func(err error))

	Close() error
}

// Envelope is the wire shape used by the JSON transports: a named event plus
// an opaque payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
