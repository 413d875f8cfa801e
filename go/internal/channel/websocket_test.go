package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testServer is a minimal envelope-speaking WebSocket peer.
type testServer struct {
	*httptest.Server
	inbound chan Envelope
	conns   chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := &testServer{
		inbound: make(chan Envelope, 16),
		conns:   make(chan *websocket.Conn, 4),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			ts.inbound <- env
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitConnected(t *testing.T, ch *WebSocketChannel, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if ch.Connected() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("channel never connected")
}

func recvEnvelope(t *testing.T, ch <-chan Envelope, within time.Duration) Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for envelope")
		return Envelope{} // unreachable
	}
}

func TestWebSocketChannel_DispatchesInboundEvents(t *testing.T) {
	server := newTestServer(t)

	ch := NewWebSocketChannel(DefaultWebSocketConfig(server.wsURL()))
	defer ch.Close()

	received := make(chan json.RawMessage, 1)
	ch.On("timerSync", func(data json.RawMessage) { received <- data })

	waitConnected(t, ch, 2*time.Second)
	conn := <-server.conns

	payload := json.RawMessage(`{"totalSeconds":120,"remainingSeconds":45}`)
	if err := conn.WriteJSON(Envelope{Event: "timerSync", Data: payload}); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != string(payload) {
			t.Fatalf("payload mangled: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event never dispatched")
	}
}

func TestWebSocketChannel_EmitReachesServer(t *testing.T) {
	server := newTestServer(t)

	ch := NewWebSocketChannel(DefaultWebSocketConfig(server.wsURL()))
	defer ch.Close()
	waitConnected(t, ch, 2*time.Second)

	ch.Emit("startGame", map[string]string{"roomCode": "KX42F"})

	env := recvEnvelope(t, server.inbound, 2*time.Second)
	if env.Event != "startGame" {
		t.Fatalf("want startGame, got %q", env.Event)
	}
	var body map[string]string
	if err := json.Unmarshal(env.Data, &body); err != nil || body["roomCode"] != "KX42F" {
		t.Fatalf("payload wrong: %s (%v)", env.Data, err)
	}
}

func TestWebSocketChannel_MalformedFramesAreIgnored(t *testing.T) {
	server := newTestServer(t)

	ch := NewWebSocketChannel(DefaultWebSocketConfig(server.wsURL()))
	defer ch.Close()

	received := make(chan json.RawMessage, 1)
	ch.On("ok", func(data json.RawMessage) { received <- data })

	waitConnected(t, ch, 2*time.Second)
	conn := <-server.conns

	// Garbage, then an envelope without a name, then a real event. Only the
	// real one dispatches; the connection survives the rest.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)); err != nil {
		t.Fatalf("server write: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Event: "ok"}); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("real event lost after malformed frames")
	}
}

func TestWebSocketChannel_DisconnectFlipsFlagAndEmitBecomesNoOp(t *testing.T) {
	server := newTestServer(t)

	config := DefaultWebSocketConfig(server.wsURL())
	config.MaxReconnects = 0 // fail fast once the server goes away
	config.ReconnectWait = 10 * time.Millisecond
	ch := NewWebSocketChannel(config)
	defer ch.Close()
	waitConnected(t, ch, 2*time.Second)

	var disconnected int32
	ch.OnDisconnect(func() { atomic.StoreInt32(&disconnected, 1) })

	// Take the whole server down so the redial fails too.
	server.CloseClientConnections()
	server.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && ch.Connected() {
		time.Sleep(10 * time.Millisecond)
	}
	if ch.Connected() {
		t.Fatalf("connectivity flag never dropped")
	}
	if atomic.LoadInt32(&disconnected) != 1 {
		t.Fatalf("OnDisconnect callback never fired")
	}

	// Fire-and-forget while down: no error, no queueing, no panic.
	ch.Emit("startGame", map[string]string{"roomCode": "KX42F"})
}
