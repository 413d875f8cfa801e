package channel

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// registry is the name-keyed handler table shared by every transport. It is
// the catch-all dispatch point: every inbound event goes through dispatch,
// which matches by exact name so server event names unknown at compile time
// still reach a registered handler.
type registry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	unhandled atomic.Uint64
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]Handler)}
}

func (r *registry) on(event string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = h
}

func (r *registry) off(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, event)
}

// dispatch routes one inbound event to its handler. Events with no handler
// are a counted no-op, never an error.
func (r *registry) dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	h, ok := r.handlers[event]
	r.mu.RUnlock()

	if !ok {
		r.unhandled.Add(1)
		log.Debug().Str("event", event).Msg("no handler registered, dropping event")
		return
	}
	h(data)
}

// unhandledCount reports how many inbound events were dropped for lack of a
// handler. Exposed on transports for the debug surface.
func (r *registry) unhandledCount() uint64 {
	return r.unhandled.Load()
}

// callbacks holds the lifecycle observers shared by every transport.
type callbacks struct {
	mu           sync.Mutex
	onConnect    func()
	onDisconnect func()
	onError      func(error)
}

func (c *callbacks) setConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

func (c *callbacks) setDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *callbacks) setError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func (c *callbacks) fireConnect() {
	c.mu.Lock()
	fn := c.onConnect
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *callbacks) fireDisconnect() {
	c.mu.Lock()
	fn := c.onDisconnect
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *callbacks) fireError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
