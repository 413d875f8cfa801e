package channel

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// MemoryChannel is an in-process Channel used by tests and the demo's
// offline mode. Inject delivers an event to registered handlers
// synchronously on the caller's goroutine; Emit records outbound messages
// for inspection.
type MemoryChannel struct {
	registry  *registry
	callbacks callbacks
	connected atomic.Bool

	mu   sync.Mutex
	sent []Envelope
}

// NewMemoryChannel returns a connected in-process channel.
func NewMemoryChannel() *MemoryChannel {
	c := &MemoryChannel{registry: newRegistry()}
	c.connected.Store(true)
	return c
}

func (c *MemoryChannel) On(event string, h Handler) { c.registry.on(event, h) }
func (c *MemoryChannel) Off(event string)           { c.registry.off(event) }

func (c *MemoryChannel) Connected() bool { return c.connected.Load() }

func (c *MemoryChannel) OnConnect(fn func())        { c.callbacks.setConnect(fn) }
func (c *MemoryChannel) OnDisconnect(fn func())     { c.callbacks.setDisconnect(fn) }
func (c *MemoryChannel) OnError(fn func(err error)) { c.callbacks.setError(fn) }

func (c *MemoryChannel) Emit(event string, payload any) {
	if !c.connected.Load() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Envelope{Event: event, Data: data})
}

func (c *MemoryChannel) Close() error {
	c.SetConnected(false)
	return nil
}

// Inject delivers an inbound event as if it had arrived from the server.
func (c *MemoryChannel) Inject(event string, data json.RawMessage) {
	c.registry.dispatch(event, data)
}

// InjectJSON is Inject with a raw JSON string payload.
func (c *MemoryChannel) InjectJSON(event string, data string) {
	c.Inject(event, json.RawMessage(data))
}

// SetConnected flips the connectivity flag and fires the matching callback.
func (c *MemoryChannel) SetConnected(connected bool) {
	was := c.connected.Swap(connected)
	if was == connected {
		return
	}
	if connected {
		c.callbacks.fireConnect()
	} else {
		c.callbacks.fireDisconnect()
	}
}

// Sent returns a copy of everything emitted so far.
func (c *MemoryChannel) Sent() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentNamed returns only the emitted messages for one event name.
func (c *MemoryChannel) SentNamed(event string) []Envelope {
	var out []Envelope
	for _, env := range c.Sent() {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// UnhandledEvents reports inbound events dropped for lack of a handler.
func (c *MemoryChannel) UnhandledEvents() uint64 { return c.registry.unhandledCount() }
