package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType is the closed set of state transitions the reducer understands.
// Transport event names are many-to-one aliases onto these.
type ActionType string

const (
	ActionRoster            ActionType = "Roster"
	ActionPlayerJoined      ActionType = "PlayerJoined"
	ActionPlayerLeft        ActionType = "PlayerLeft"
	ActionSlotConfirmed     ActionType = "SlotConfirmed"
	ActionTimerSync         ActionType = "TimerSync"
	ActionPhaseChanged      ActionType = "PhaseChanged"
	ActionWordAssigned      ActionType = "WordAssigned"
	ActionGameEnded         ActionType = "GameEnded"
	ActionCategoryStarted   ActionType = "CategoryVoteStarted"
	ActionCategorySubmitted ActionType = "CategoryVoteSubmitted"
	ActionCategoryResult    ActionType = "CategoryVoteResult"
	ActionChatMessage       ActionType = "ChatMessage"
	ActionReadyChanged      ActionType = "ReadyChanged"
)

// eventActions maps every transport event name the backend is known to send
// onto its action. Several names alias the same meaning; the word-assignment
// aliases in particular have accumulated over backend versions.
var eventActions = map[string]ActionType{
	"playersUpdate": ActionRoster,
	"roomPlayers":   ActionRoster,
	"lobbyUpdate":   ActionRoster,

	"playerJoined": ActionPlayerJoined,
	"playerLeft":   ActionPlayerLeft,
	"joinedSlot":   ActionSlotConfirmed,

	"timerSync":    ActionTimerSync,
	"phaseChanged": ActionPhaseChanged,
	"turnChanged":  ActionPhaseChanged,

	"wordAssigned": ActionWordAssigned,
	"assignWord":   ActionWordAssigned,
	"yourWord":     ActionWordAssigned,
	"roleAssigned": ActionWordAssigned,

	"gameEnded":   ActionGameEnded,
	"gameResults": ActionGameEnded,

	"categoryVoteStarted":   ActionCategoryStarted,
	"categoryVoteSubmitted": ActionCategorySubmitted,
	"categoryVoteResult":    ActionCategoryResult,

	"chatMessage":       ActionChatMessage,
	"readyStateChanged": ActionReadyChanged,
}

var knownActions = map[ActionType]bool{
	ActionRoster:            true,
	ActionPlayerJoined:      true,
	ActionPlayerLeft:        true,
	ActionSlotConfirmed:     true,
	ActionTimerSync:         true,
	ActionPhaseChanged:      true,
	ActionWordAssigned:      true,
	ActionGameEnded:         true,
	ActionCategoryStarted:   true,
	ActionCategorySubmitted: true,
	ActionCategoryResult:    true,
	ActionChatMessage:       true,
	ActionReadyChanged:      true,
}

// EventNames returns every transport event name the reducer handles.
func EventNames() []string {
	names := make([]string, 0, len(eventActions))
	for name := range eventActions {
		names = append(names, name)
	}
	return names
}

// ActionFor resolves a transport event name to its action.
func ActionFor(event string) (ActionType, bool) {
	a, ok := eventActions[event]
	return a, ok
}

// ValidateEventTable checks that every registered event name maps to a known
// action. Called once at Client construction so a bad registration is a
// startup error instead of a silent dead handler.
func ValidateEventTable() error {
	for name, action := range eventActions {
		if !knownActions[action] {
			return fmt.Errorf("event %q maps to unknown action %q", name, action)
		}
	}
	return nil
}

// Outbound event names for client commands.
const (
	cmdStartGame    = "startGame"
	cmdSetReady     = "setReady"
	cmdJoinSlot     = "joinSlot"
	cmdChatMessage  = "chatMessage"
	cmdSubmitVote   = "submitVote"
	cmdCategoryVote = "categoryVote"
	cmdRequestState = "requestState"
)

// rosterEnvelope covers the three roster payload shapes the backend sends:
// a bare array, {"players": [...]}, and {"game": {"players": [...]}}.
type rosterEnvelope struct {
	Players []Player `json:"players"`
	Game    *struct {
		Players []Player `json:"players"`
	} `json:"game"`
	Message string `json:"message"`
}

// normalizeRoster extracts a player list from any accepted envelope shape.
// Returns ok=false when the payload carries no list at all, so the caller
// can leave prior state untouched.
func normalizeRoster(data json.RawMessage) (players []Player, message string, ok bool) {
	if len(data) == 0 {
		return nil, "", false
	}

	var bare []Player
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, "", true
	}

	var env rosterEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", false
	}
	if env.Game != nil && env.Game.Players != nil {
		return env.Game.Players, env.Message, true
	}
	if env.Players != nil {
		return env.Players, env.Message, true
	}
	return nil, env.Message, false
}

// playerEvent covers single join/leave payloads, which may carry either a
// nested player object or a full superseding roster.
type playerEvent struct {
	Player  *Player  `json:"player"`
	UserID  string   `json:"userId"`
	Name    string   `json:"name"`
	IsHost  bool     `json:"isHost"`
	Players []Player `json:"players"`
}

// timerEvent covers timer snapshots and phase changes. Pointer fields tell
// absent apart from zero so missing values can fall back per field.
type timerEvent struct {
	TotalSeconds     *float64 `json:"totalSeconds"`
	RemainingSeconds *float64 `json:"remainingSeconds"`
	Phase            string   `json:"phase"`
	CurrentTurn      *int     `json:"currentTurn"`
}

// wordEvent covers the word/role assignment aliases. Field precedence when
// several are present: word, myWord, assignedWord, then the role string.
type wordEvent struct {
	UserID       string `json:"userId"`
	Word         string `json:"word"`
	MyWord       string `json:"myWord"`
	AssignedWord string `json:"assignedWord"`
	Role         string `json:"role"`
	IsSpy        *bool  `json:"isSpy"`
}

// wordValue picks the word by the fixed precedence order. The role string is
// never a word; it only feeds the spy flag.
func (w wordEvent) wordValue() string {
	for _, candidate := range []string{w.Word, w.MyWord, w.AssignedWord} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// spyValue resolves the spy flag from the explicit bool or a "SPY" role
// string, case-insensitive. ok=false when the payload says nothing either way.
func (w wordEvent) spyValue() (isSpy, ok bool) {
	if w.IsSpy != nil {
		return *w.IsSpy, true
	}
	if w.Role != "" {
		return strings.EqualFold(w.Role, "SPY"), true
	}
	return false, false
}

// categoryStartEvent announces a new category vote.
type categoryStartEvent struct {
	Options []CategoryOption `json:"options"`
}

// categorySubmitEvent is the server echo of one user's category vote.
type categorySubmitEvent struct {
	UserID     string `json:"userId"`
	CategoryID string `json:"categoryId"`
}

// chatEvent is an inbound chat/description message. ID is the client
// correlation id on echoes of our own messages.
type chatEvent struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

// readyEvent is the server echo of a ready toggle.
type readyEvent struct {
	UserID string `json:"userId"`
	Ready  bool   `json:"ready"`
}

// phaseFromString maps a server phase string onto Phase, tolerating casing
// drift. ok=false leaves the stored phase alone.
func phaseFromString(raw string) (Phase, bool) {
	switch strings.ToUpper(raw) {
	case string(PhaseLobby):
		return PhaseLobby, true
	case string(PhaseWordAssignment):
		return PhaseWordAssignment, true
	case string(PhaseDescribing):
		return PhaseDescribing, true
	case string(PhaseVoting):
		return PhaseVoting, true
	case string(PhaseReveal):
		return PhaseReveal, true
	default:
		return "", false
	}
}
