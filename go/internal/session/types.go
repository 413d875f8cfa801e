package session

import (
	"encoding/json"
)

// Phase is the current stage of a game round. Transitions are server-driven;
// the client never advances a phase on its own except for the documented
// word-assignment side effect.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseWordAssignment Phase = "WORD_ASSIGNMENT"
	PhaseDescribing     Phase = "DESCRIBING"
	PhaseVoting         Phase = "VOTING"
	PhaseReveal         Phase = "REVEAL"
)

// DefaultMaxPlayers is the lobby capacity used when the server never told us.
const DefaultMaxPlayers = 8

// Player is one roster entry. Position is a 1-based lobby slot index, zero
// until a slot-join event assigns it.
type Player struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	Position int    `json:"position,omitempty"`
}

// TimerState is the last server-anchored countdown snapshot.
type TimerState struct {
	TotalSeconds     int `json:"totalSeconds"`
	RemainingSeconds int `json:"remainingSeconds"`
}

// CategoryOption is one votable word-category choice.
type CategoryOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CategoryVote is the optional category sub-vote. Independent of Phase; the
// server may run one during the lobby or mid-game.
type CategoryVote struct {
	Active   bool             `json:"active"`
	Options  []CategoryOption `json:"options"`
	MyVoteID string           `json:"myVoteId,omitempty"`
}

// Session is the root aggregate for one game instance. It is owned by a
// Client's reducer; read it through Client.Session, which hands out a copy.
type Session struct {
	SessionID  string `json:"sessionId"`
	RoomCode   string `json:"roomCode"`
	Phase      Phase  `json:"phase"`
	Players    []Player `json:"players"`
	MaxPlayers int      `json:"maxPlayers"`

	// CurrentTurn indexes Players during DESCRIBING. It can go stale when the
	// roster shrinks; readers clamp, the reducer never rewrites it.
	CurrentTurn int `json:"currentTurn"`

	Timer TimerState `json:"timer"`

	// MyWord and IsSpy are this viewer's secret assignment only. The server
	// never sends another player's word and the reducer refuses payloads
	// addressed to a different user id.
	MyWord string `json:"myWord,omitempty"`
	IsSpy  bool   `json:"isSpy"`

	CategoryVote CategoryVote `json:"categoryVote"`

	// Results is the game-end payload, stored verbatim.
	Results json.RawMessage `json:"results,omitempty"`

	// Notice is a display-once message from a slot-join confirmation; the UI
	// consumes it via Client.PopNotice.
	Notice string `json:"-"`
}

// NewSession returns an empty lobby session for a room.
func NewSession(sessionID, roomCode string) Session {
	return Session{
		SessionID:  sessionID,
		RoomCode:   roomCode,
		Phase:      PhaseLobby,
		MaxPlayers: DefaultMaxPlayers,
	}
}

// FindPlayer returns the roster entry for a user id.
func (s *Session) FindPlayer(userID string) (Player, bool) {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

// clone deep-copies the session so callers outside the reducer goroutine can
// hold it without racing the next event.
func (s *Session) clone() Session {
	out := *s
	out.Players = make([]Player, len(s.Players))
	copy(out.Players, s.Players)
	if s.CategoryVote.Options != nil {
		out.CategoryVote.Options = make([]CategoryOption, len(s.CategoryVote.Options))
		copy(out.CategoryVote.Options, s.CategoryVote.Options)
	}
	if s.Results != nil {
		out.Results = make(json.RawMessage, len(s.Results))
		copy(out.Results, s.Results)
	}
	return out
}
