package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/yottascore1997/edutech-sub000/go/internal/channel"
)

// Client owns one game session: the channel, the reducer, the snapshot clock
// and the chat log. Handlers for every known event name are registered on
// construction; all mutations funnel through one mutex so event handling is
// never re-entrant regardless of which transport goroutine delivers.
//
// Outbound commands are fire-and-forget; issued while disconnected they do
// nothing and are never queued or resent. The UI disables controls off the
// Connected flag.
type Client struct {
	ch    channel.Channel
	clock *SnapshotClock
	chat  *ChatLog

	mu  sync.Mutex
	red *Reducer

	viewerID   string
	viewerName string
	roomCode   string
}

// ClientConfig wires a Client.
type ClientConfig struct {
	Channel    channel.Channel
	Clock      clockwork.Clock // nil means the real clock
	ViewerID   string
	ViewerName string
	Initial    Session
}

// NewClient validates the event table, builds the reducer around the initial
// snapshot and registers every handled event on the channel.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Channel == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if cfg.ViewerID == "" {
		return nil, fmt.Errorf("viewer id is required")
	}
	if err := ValidateEventTable(); err != nil {
		return nil, fmt.Errorf("validate event table: %w", err)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	c := &Client{
		ch:         cfg.Channel,
		chat:       NewChatLog(),
		viewerID:   cfg.ViewerID,
		viewerName: cfg.ViewerName,
		roomCode:   cfg.Initial.RoomCode,
	}
	c.clock = NewSnapshotClock(clk, c.onTick)
	c.red = NewReducer(cfg.ViewerID, cfg.Initial, c.clock, c.chat)

	for _, name := range EventNames() {
		event := name
		cfg.Channel.On(event, func(data json.RawMessage) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.red.Apply(event, data)
		})
	}

	cfg.Channel.OnConnect(c.onReconnect)

	log.Info().
		Str("room_code", cfg.Initial.RoomCode).
		Str("user_id", cfg.ViewerID).
		Msg("session client attached")
	return c, nil
}

// onTick mirrors the clock's per-second publication into the session.
func (c *Client) onTick(secondsLeft int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.red.SetRemaining(secondsLeft)
}

// onReconnect requests a fresh snapshot; whatever was missed during the gap
// is corrected by the server's reply, not replayed. Ready flags do not
// survive the gap.
func (c *Client) onReconnect() {
	c.mu.Lock()
	c.red.ResetReady()
	room := c.roomCode
	c.mu.Unlock()

	log.Info().Str("room_code", room).Msg("reconnected, requesting state resync")
	c.ch.Emit(cmdRequestState, map[string]string{"roomCode": room, "userId": c.viewerID})
}

// Session returns a deep copy of the current state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.red.Session()
}

// Chat returns the chat log in arrival order.
func (c *Client) Chat() []ChatMessage { return c.chat.Messages() }

// Connected mirrors the channel's connectivity flag.
func (c *Client) Connected() bool { return c.ch.Connected() }

// Ready reports a user's ready flag from the side map.
func (c *Client) Ready(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.red.Ready(userID)
}

// PopNotice consumes the display-once slot confirmation message, if any.
func (c *Client) PopNotice() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.red.PopNotice()
}

// IsMyTurn projects the viewer's turn state.
func (c *Client) IsMyTurn() bool { return c.Session().IsMyTurn(c.viewerID) }

// IsHost projects the viewer's host flag.
func (c *Client) IsHost() bool { return c.Session().IsHost(c.viewerID) }

// SlotGrid projects the lobby grid for the viewer.
func (c *Client) SlotGrid() []Slot { return c.Session().SlotGrid(c.viewerID) }

// StartGame asks the server to start the round. Host-gating is server-side;
// no local state moves until events come back.
func (c *Client) StartGame() {
	c.ch.Emit(cmdStartGame, map[string]string{"roomCode": c.roomCode, "userId": c.viewerID})
}

// SetReady toggles the viewer's ready flag locally and tells the server.
// The local flag is the one piece of command state kept client-side.
func (c *Client) SetReady(ready bool) {
	c.mu.Lock()
	c.red.SetReadyLocal(ready)
	c.mu.Unlock()
	c.ch.Emit(cmdSetReady, map[string]any{"roomCode": c.roomCode, "userId": c.viewerID, "ready": ready})
}

// JoinSlot requests a numbered lobby slot. The roster moves only when the
// confirmation event arrives.
func (c *Client) JoinSlot(position int) {
	c.ch.Emit(cmdJoinSlot, map[string]any{"roomCode": c.roomCode, "userId": c.viewerID, "position": position})
}

// SendChat submits a chat/description line, optimistically appended under a
// generated correlation id so the sender sees it immediately; the server
// echo settles it by id instead of duplicating. While disconnected nothing
// happens at all: the frame would be dropped, so an optimistic append would
// leave a pending line no echo can ever settle.
func (c *Client) SendChat(text string) {
	if !c.ch.Connected() {
		return
	}
	id := uuid.NewString()
	c.chat.AppendLocal(ChatMessage{ID: id, UserID: c.viewerID, Name: c.viewerName, Text: text})
	c.ch.Emit(cmdChatMessage, map[string]string{
		"id":       id,
		"roomCode": c.roomCode,
		"userId":   c.viewerID,
		"name":     c.viewerName,
		"text":     text,
	})
}

// SubmitVote votes to accuse a player during VOTING.
func (c *Client) SubmitVote(targetUserID string) {
	c.ch.Emit(cmdSubmitVote, map[string]string{"roomCode": c.roomCode, "userId": c.viewerID, "targetId": targetUserID})
}

// SubmitCategoryVote votes in the active category vote. MyVoteID moves on
// the server echo, not here.
func (c *Client) SubmitCategoryVote(categoryID string) {
	c.ch.Emit(cmdCategoryVote, map[string]string{"roomCode": c.roomCode, "userId": c.viewerID, "categoryId": categoryID})
}

// Close tears the session down: the clock ticker is cleared on every exit
// path, and the channel handlers are removed so a closed client cannot be
// written into by a late event.
func (c *Client) Close() error {
	c.clock.Stop()
	for _, name := range EventNames() {
		c.ch.Off(name)
	}
	return c.ch.Close()
}
