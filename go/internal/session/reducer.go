package session

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Reducer is the single mutation point for a Session. It folds named server
// events into state in arrival order, last write wins per field. Malformed
// payloads degrade field by field: whatever cannot be parsed leaves the
// prior value in place, and nothing ever propagates up as an error.
//
// Reducer is not goroutine-safe on its own; the owning Client serializes
// Apply calls.
type Reducer struct {
	viewerID string
	sess     Session

	// ready is the per-user ready flag side map. Not part of Session and not
	// persisted across reconnect.
	ready map[string]bool

	chat  *ChatLog
	clock *SnapshotClock

	unknownEvents uint64
}

// NewReducer creates a reducer for one viewer. clock and chat may be nil
// when the caller only needs pure state folding (tests, projections).
func NewReducer(viewerID string, initial Session, clock *SnapshotClock, chat *ChatLog) *Reducer {
	if initial.MaxPlayers <= 0 {
		initial.MaxPlayers = DefaultMaxPlayers
	}
	return &Reducer{
		viewerID: viewerID,
		sess:     initial,
		ready:    make(map[string]bool),
		chat:     chat,
		clock:    clock,
	}
}

// Session returns a deep copy of the current state.
func (r *Reducer) Session() Session { return r.sess.clone() }

// ViewerID returns the id this reducer filters per-viewer payloads by.
func (r *Reducer) ViewerID() string { return r.viewerID }

// Ready reports the ready flag for a user id; default is not-ready.
func (r *Reducer) Ready(userID string) bool { return r.ready[userID] }

// SetReadyLocal records the viewer's own ready toggle.
func (r *Reducer) SetReadyLocal(ready bool) { r.ready[r.viewerID] = ready }

// ResetReady clears the side map, e.g. after a reconnect.
func (r *Reducer) ResetReady() { r.ready = make(map[string]bool) }

// PopNotice consumes the display-once slot confirmation message.
func (r *Reducer) PopNotice() (string, bool) {
	if r.sess.Notice == "" {
		return "", false
	}
	notice := r.sess.Notice
	r.sess.Notice = ""
	return notice, true
}

// UnknownEvents counts events whose name resolved to no action.
func (r *Reducer) UnknownEvents() uint64 { return r.unknownEvents }

// SetRemaining updates the mirrored countdown value; called by the clock's
// tick publication, never directly from event handling.
func (r *Reducer) SetRemaining(secondsLeft int) {
	if secondsLeft < 0 {
		secondsLeft = 0
	}
	r.sess.Timer.RemainingSeconds = secondsLeft
}

// Apply folds one named event into the session.
func (r *Reducer) Apply(event string, data json.RawMessage) {
	action, ok := ActionFor(event)
	if !ok {
		r.unknownEvents++
		log.Debug().Str("event", event).Msg("unknown event name, ignoring")
		return
	}

	switch action {
	case ActionRoster:
		r.applyRoster(data, false)
	case ActionSlotConfirmed:
		r.applyRoster(data, true)
	case ActionPlayerJoined:
		r.applyPlayerJoined(data)
	case ActionPlayerLeft:
		r.applyPlayerLeft(data)
	case ActionTimerSync:
		r.applyTimer(data, false)
	case ActionPhaseChanged:
		r.applyTimer(data, true)
	case ActionWordAssigned:
		r.applyWord(data)
	case ActionGameEnded:
		r.applyGameEnded(data)
	case ActionCategoryStarted:
		r.applyCategoryStarted(data)
	case ActionCategorySubmitted:
		r.applyCategorySubmitted(data)
	case ActionCategoryResult:
		r.applyCategoryResult()
	case ActionChatMessage:
		r.applyChat(data)
	case ActionReadyChanged:
		r.applyReady(data)
	}
}

// applyRoster replaces the roster from any accepted envelope shape,
// deduplicating by user id. A slot confirmation also carries a display-once
// message.
func (r *Reducer) applyRoster(data json.RawMessage, slotConfirm bool) {
	players, message, ok := normalizeRoster(data)
	if !ok {
		if slotConfirm && message != "" {
			r.sess.Notice = message
		}
		log.Debug().Msg("roster event without player list, keeping previous roster")
		return
	}
	r.sess.Players = dedupePlayers(players)
	if slotConfirm && message != "" {
		r.sess.Notice = message
	}
}

func (r *Reducer) applyPlayerJoined(data json.RawMessage) {
	var evt playerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable join event, ignoring")
		return
	}

	// A full roster accompanying the event supersedes incremental merging.
	if evt.Players != nil {
		r.sess.Players = dedupePlayers(evt.Players)
		return
	}

	p := evt.singlePlayer()
	if p.UserID == "" {
		return
	}
	r.mergePlayer(p)
}

func (r *Reducer) applyPlayerLeft(data json.RawMessage) {
	var evt playerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable leave event, ignoring")
		return
	}

	if evt.Players != nil {
		r.sess.Players = dedupePlayers(evt.Players)
		return
	}

	p := evt.singlePlayer()
	if p.UserID == "" {
		return
	}
	kept := r.sess.Players[:0]
	for _, existing := range r.sess.Players {
		if existing.UserID != p.UserID {
			kept = append(kept, existing)
		}
	}
	r.sess.Players = kept
	delete(r.ready, p.UserID)
}

// applyTimer handles timer snapshots and phase changes, which share a
// payload shape. Field fallbacks:
//   - both timer fields absent on a plain sync: leave the running countdown
//     alone (the event was phase/turn only).
//   - fresh phase change with missing fields: total falls back to the last
//     known total, remaining to 0.
func (r *Reducer) applyTimer(data json.RawMessage, phaseChange bool) {
	var evt timerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable timer event, ignoring")
		return
	}

	if p, ok := phaseFromString(evt.Phase); ok {
		r.sess.Phase = p
	}
	if evt.CurrentTurn != nil {
		r.sess.CurrentTurn = *evt.CurrentTurn
	}

	hasTimer := evt.TotalSeconds != nil || evt.RemainingSeconds != nil
	if !hasTimer && !phaseChange {
		return
	}

	total := r.sess.Timer.TotalSeconds
	if evt.TotalSeconds != nil {
		total = int(*evt.TotalSeconds)
	}
	remaining := 0
	if evt.RemainingSeconds != nil {
		remaining = int(*evt.RemainingSeconds)
	} else if !phaseChange {
		remaining = r.sess.Timer.RemainingSeconds
	}
	if remaining < 0 {
		remaining = 0
	}

	if !hasTimer && phaseChange {
		// Phase change without timer fields: phase/turn already applied,
		// leave the countdown running.
		return
	}

	r.sess.Timer = TimerState{TotalSeconds: total, RemainingSeconds: remaining}
	if r.clock != nil {
		r.clock.Set(total, remaining)
	}
}

// applyWord handles the word/role assignment aliases. The phase side effect
// fires even on an empty payload; word and spy flag only move when the
// payload actually carries them, and never for a different user's id.
func (r *Reducer) applyWord(data json.RawMessage) {
	r.sess.Phase = PhaseWordAssignment

	var evt wordEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable word event, keeping previous assignment")
		return
	}
	if evt.UserID != "" && evt.UserID != r.viewerID {
		log.Debug().Str("user_id", evt.UserID).Msg("word event addressed to another user, ignoring")
		return
	}

	if word := evt.wordValue(); word != "" {
		r.sess.MyWord = word
	}
	if isSpy, ok := evt.spyValue(); ok {
		r.sess.IsSpy = isSpy
	}
}

func (r *Reducer) applyGameEnded(data json.RawMessage) {
	// Stored verbatim; the reveal screen owns interpretation.
	r.sess.Results = append(json.RawMessage(nil), data...)
	r.sess.Phase = PhaseReveal
}

func (r *Reducer) applyCategoryStarted(data json.RawMessage) {
	var evt categoryStartEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable category vote start, ignoring")
		return
	}
	options := evt.Options
	if options == nil {
		options = []CategoryOption{}
	}
	// Starting a new vote clears any previous choice.
	r.sess.CategoryVote = CategoryVote{Active: true, Options: options}
}

func (r *Reducer) applyCategorySubmitted(data json.RawMessage) {
	var evt categorySubmitEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable category vote echo, ignoring")
		return
	}
	// Only the viewer's own echo matters; other users' votes are aggregate
	// data the server reports in the result event.
	if evt.UserID != r.viewerID {
		return
	}
	r.sess.CategoryVote.MyVoteID = evt.CategoryID
}

func (r *Reducer) applyCategoryResult() {
	r.sess.CategoryVote.Active = false
	r.sess.CategoryVote.MyVoteID = ""
}

func (r *Reducer) applyChat(data json.RawMessage) {
	if r.chat == nil {
		return
	}
	var evt chatEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable chat event, ignoring")
		return
	}
	r.chat.ApplyEcho(ChatMessage{ID: evt.ID, UserID: evt.UserID, Name: evt.Name, Text: evt.Text})
}

func (r *Reducer) applyReady(data json.RawMessage) {
	var evt readyEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Debug().Err(err).Msg("unparseable ready event, ignoring")
		return
	}
	if evt.UserID == "" {
		return
	}
	r.ready[evt.UserID] = evt.Ready
}

// mergePlayer appends a player or, if already present, updates the mutable
// fields in place (last write wins).
func (r *Reducer) mergePlayer(p Player) {
	for i, existing := range r.sess.Players {
		if existing.UserID == p.UserID {
			updated := existing
			if p.Name != "" {
				updated.Name = p.Name
			}
			updated.IsHost = p.IsHost
			if p.Position != 0 {
				updated.Position = p.Position
			}
			r.sess.Players[i] = updated
			return
		}
	}
	r.sess.Players = append(r.sess.Players, p)
}

// dedupePlayers keeps the first occurrence's slot in the order while letting
// later duplicates overwrite mutable fields.
func dedupePlayers(players []Player) []Player {
	out := make([]Player, 0, len(players))
	index := make(map[string]int, len(players))
	for _, p := range players {
		if p.UserID == "" {
			continue
		}
		if i, seen := index[p.UserID]; seen {
			updated := out[i]
			if p.Name != "" {
				updated.Name = p.Name
			}
			updated.IsHost = p.IsHost
			if p.Position != 0 {
				updated.Position = p.Position
			}
			out[i] = updated
			continue
		}
		index[p.UserID] = len(out)
		out = append(out, p)
	}
	return out
}

// singlePlayer resolves the two single-player payload shapes: a nested
// player object or flattened fields.
func (e playerEvent) singlePlayer() Player {
	if e.Player != nil {
		return *e.Player
	}
	return Player{UserID: e.UserID, Name: e.Name, IsHost: e.IsHost}
}
