package session

import (
	"encoding/json"
	"reflect"
	"testing"
)

func newTestReducer(viewerID string) *Reducer {
	return NewReducer(viewerID, NewSession("s1", "KX42F"), nil, nil)
}

func apply(t *testing.T, r *Reducer, event, payload string) {
	t.Helper()
	r.Apply(event, json.RawMessage(payload))
}

func playerIDs(s Session) []string {
	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.UserID
	}
	return ids
}

func TestReducer_RosterThenIncrementalJoin(t *testing.T) {
	r := newTestReducer("u1")

	apply(t, r, "playersUpdate", `{"players":[{"userId":"u1","name":"Ann","isHost":true}]}`)
	apply(t, r, "playerJoined", `{"player":{"userId":"u2","name":"Ben","isHost":false}}`)

	got := playerIDs(r.Session())
	want := []string{"u1", "u2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("players: want %v, got %v", want, got)
	}
}

func TestReducer_RosterMergeIsIdempotent(t *testing.T) {
	r := newTestReducer("u1")
	roster := `{"players":[{"userId":"u1","name":"Ann","isHost":true},{"userId":"u2","name":"Ben"}]}`

	apply(t, r, "playersUpdate", roster)
	once := r.Session().Players
	apply(t, r, "playersUpdate", roster)
	twice := r.Session().Players

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("same roster applied twice diverged: %+v vs %+v", once, twice)
	}
	if len(twice) != 2 {
		t.Fatalf("want 2 players, got %d", len(twice))
	}
}

func TestReducer_RosterEnvelopeShapes(t *testing.T) {
	shapes := map[string]string{
		"bare array": `[{"userId":"u1","name":"Ann"}]`,
		"players":    `{"players":[{"userId":"u1","name":"Ann"}]}`,
		"nested":     `{"game":{"players":[{"userId":"u1","name":"Ann"}]}}`,
	}

	for name, payload := range shapes {
		r := newTestReducer("u1")
		apply(t, r, "roomPlayers", payload)
		if got := playerIDs(r.Session()); !reflect.DeepEqual(got, []string{"u1"}) {
			t.Fatalf("%s: want [u1], got %v", name, got)
		}
	}
}

func TestReducer_DuplicateJoinIsLastWriteWins(t *testing.T) {
	r := newTestReducer("u1")

	apply(t, r, "playerJoined", `{"player":{"userId":"u2","name":"Ben"}}`)
	apply(t, r, "playerJoined", `{"player":{"userId":"u2","name":"Benjamin"}}`)

	sess := r.Session()
	if len(sess.Players) != 1 {
		t.Fatalf("duplicate join not deduplicated: %v", playerIDs(sess))
	}
	if sess.Players[0].Name != "Benjamin" {
		t.Fatalf("want last-write-wins name Benjamin, got %q", sess.Players[0].Name)
	}
}

func TestReducer_JoinWithFullRosterSupersedes(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "playersUpdate", `{"players":[{"userId":"u1"},{"userId":"u9"}]}`)

	// A join event carrying the whole roster replaces rather than merges.
	apply(t, r, "playerJoined", `{"players":[{"userId":"u1"},{"userId":"u2"}]}`)
	got := playerIDs(r.Session())
	if !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Fatalf("full roster should supersede: got %v", got)
	}
}

func TestReducer_PlayerLeft(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "playersUpdate", `{"players":[{"userId":"u1"},{"userId":"u2"},{"userId":"u3"}]}`)
	apply(t, r, "playerLeft", `{"userId":"u2"}`)

	got := playerIDs(r.Session())
	if !reflect.DeepEqual(got, []string{"u1", "u3"}) {
		t.Fatalf("want [u1 u3], got %v", got)
	}
}

func TestReducer_SlotConfirmationCarriesNotice(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "joinedSlot", `{"players":[{"userId":"u1","position":3}],"message":"You joined slot 3"}`)

	sess := r.Session()
	if sess.Players[0].Position != 3 {
		t.Fatalf("want position 3, got %d", sess.Players[0].Position)
	}
	notice, ok := r.PopNotice()
	if !ok || notice != "You joined slot 3" {
		t.Fatalf("want notice once, got %q ok=%v", notice, ok)
	}
	if _, ok := r.PopNotice(); ok {
		t.Fatalf("notice must be consumed exactly once")
	}
}

func TestReducer_TimerSyncUpdatesPhaseAndTurn(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "timerSync", `{"totalSeconds":120,"remainingSeconds":45,"phase":"DESCRIBING","currentTurn":2}`)

	sess := r.Session()
	if sess.Phase != PhaseDescribing {
		t.Fatalf("want DESCRIBING, got %s", sess.Phase)
	}
	if sess.CurrentTurn != 2 {
		t.Fatalf("want currentTurn 2, got %d", sess.CurrentTurn)
	}
	if sess.Timer.TotalSeconds != 120 || sess.Timer.RemainingSeconds != 45 {
		t.Fatalf("want timer 120/45, got %+v", sess.Timer)
	}
}

func TestReducer_PhaseChangeWithoutTimerLeavesCountdownAlone(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "timerSync", `{"totalSeconds":120,"remainingSeconds":45}`)
	apply(t, r, "phaseChanged", `{"phase":"VOTING"}`)

	sess := r.Session()
	if sess.Phase != PhaseVoting {
		t.Fatalf("want VOTING, got %s", sess.Phase)
	}
	if sess.Timer.RemainingSeconds != 45 {
		t.Fatalf("phase change without timer fields must not touch countdown, got %d", sess.Timer.RemainingSeconds)
	}
}

func TestReducer_PhaseChangeWithTimerDefaultsMissingFields(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "timerSync", `{"totalSeconds":120,"remainingSeconds":45}`)

	// Fresh phase change carrying only remainingSeconds: total falls back to
	// the last known value.
	apply(t, r, "phaseChanged", `{"phase":"VOTING","remainingSeconds":20}`)
	sess := r.Session()
	if sess.Timer.TotalSeconds != 120 || sess.Timer.RemainingSeconds != 20 {
		t.Fatalf("want 120/20, got %+v", sess.Timer)
	}

	// And one carrying only totalSeconds: remaining defaults to 0.
	apply(t, r, "phaseChanged", `{"phase":"REVEAL","totalSeconds":30}`)
	sess = r.Session()
	if sess.Timer.TotalSeconds != 30 || sess.Timer.RemainingSeconds != 0 {
		t.Fatalf("want 30/0, got %+v", sess.Timer)
	}
}

func TestReducer_NegativeRemainingClamps(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "timerSync", `{"totalSeconds":60,"remainingSeconds":-10}`)
	if got := r.Session().Timer.RemainingSeconds; got != 0 {
		t.Fatalf("want clamp to 0, got %d", got)
	}
}

func TestReducer_WordAssignmentAliasesAndPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		event   string
		payload string
		word    string
		isSpy   bool
	}{
		{"word field", "wordAssigned", `{"word":"submarine"}`, "submarine", false},
		{"myWord alias", "assignWord", `{"myWord":"submarine"}`, "submarine", false},
		{"assignedWord alias", "yourWord", `{"assignedWord":"submarine"}`, "submarine", false},
		{"precedence word wins", "wordAssigned", `{"myWord":"loser","word":"winner"}`, "winner", false},
		{"role string spy", "roleAssigned", `{"role":"spy"}`, "", true},
		{"isSpy bool", "wordAssigned", `{"word":"submarine","isSpy":true}`, "submarine", true},
	}

	for _, tc := range cases {
		r := newTestReducer("u1")
		apply(t, r, tc.event, tc.payload)
		sess := r.Session()
		if sess.Phase != PhaseWordAssignment {
			t.Fatalf("%s: phase must move to WORD_ASSIGNMENT, got %s", tc.name, sess.Phase)
		}
		if sess.MyWord != tc.word {
			t.Fatalf("%s: want word %q, got %q", tc.name, tc.word, sess.MyWord)
		}
		if sess.IsSpy != tc.isSpy {
			t.Fatalf("%s: want isSpy=%v, got %v", tc.name, tc.isSpy, sess.IsSpy)
		}
	}
}

func TestReducer_MalformedWordPayloadKeepsAssignmentButMovesPhase(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "wordAssigned", `{"word":"submarine"}`)
	apply(t, r, "wordAssigned", `{}`)

	sess := r.Session()
	if sess.MyWord != "submarine" || sess.IsSpy {
		t.Fatalf("empty payload must keep prior assignment, got %+v", sess)
	}
	if sess.Phase != PhaseWordAssignment {
		t.Fatalf("phase side effect must still fire, got %s", sess.Phase)
	}
}

func TestReducer_WordForAnotherUserIsNeverStored(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "wordAssigned", `{"userId":"u2","word":"theirs","isSpy":true}`)

	sess := r.Session()
	if sess.MyWord != "" || sess.IsSpy {
		t.Fatalf("another user's assignment leaked into viewer state: %+v", sess)
	}
	if sess.Phase != PhaseWordAssignment {
		t.Fatalf("phase side effect still applies, got %s", sess.Phase)
	}
}

func TestReducer_GameEndStoresResultsVerbatim(t *testing.T) {
	r := newTestReducer("u1")
	payload := `{"winner":"CIVILIANS","reveals":[{"userId":"u2","role":"SPY"}]}`
	apply(t, r, "gameEnded", payload)

	sess := r.Session()
	if sess.Phase != PhaseReveal {
		t.Fatalf("want REVEAL, got %s", sess.Phase)
	}
	if string(sess.Results) != payload {
		t.Fatalf("results must be stored verbatim, got %s", sess.Results)
	}
}

func TestReducer_CategoryVoteLifecycle(t *testing.T) {
	r := newTestReducer("u1")

	apply(t, r, "categoryVoteStarted", `{"options":[{"id":"a","name":"Animals"}]}`)
	sess := r.Session()
	if !sess.CategoryVote.Active || len(sess.CategoryVote.Options) != 1 {
		t.Fatalf("vote not started: %+v", sess.CategoryVote)
	}

	// Viewer's own echo records the choice.
	apply(t, r, "categoryVoteSubmitted", `{"userId":"u1","categoryId":"a"}`)
	if got := r.Session().CategoryVote.MyVoteID; got != "a" {
		t.Fatalf("want myVoteId a, got %q", got)
	}

	// Another user's echo does not overwrite it.
	apply(t, r, "categoryVoteSubmitted", `{"userId":"u2","categoryId":"b"}`)
	if got := r.Session().CategoryVote.MyVoteID; got != "a" {
		t.Fatalf("other users' votes must not be tracked, got %q", got)
	}

	// Result closes the vote whatever the payload says.
	apply(t, r, "categoryVoteResult", `{"winning":"b"}`)
	sess = r.Session()
	if sess.CategoryVote.Active || sess.CategoryVote.MyVoteID != "" {
		t.Fatalf("vote not closed: %+v", sess.CategoryVote)
	}
}

func TestReducer_NewCategoryVoteClearsPreviousChoice(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "categoryVoteStarted", `{"options":[{"id":"a","name":"Animals"}]}`)
	apply(t, r, "categoryVoteSubmitted", `{"userId":"u1","categoryId":"a"}`)

	apply(t, r, "categoryVoteStarted", `{"options":[{"id":"x","name":"Movies"}]}`)
	sess := r.Session()
	if sess.CategoryVote.MyVoteID != "" {
		t.Fatalf("starting a new vote must clear myVoteId, got %q", sess.CategoryVote.MyVoteID)
	}
	if len(sess.CategoryVote.Options) != 1 || sess.CategoryVote.Options[0].ID != "x" {
		t.Fatalf("options not replaced: %+v", sess.CategoryVote.Options)
	}
}

func TestReducer_CategoryVoteStartWithoutOptionsYieldsEmptyList(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "categoryVoteStarted", `{}`)
	sess := r.Session()
	if !sess.CategoryVote.Active || sess.CategoryVote.Options == nil || len(sess.CategoryVote.Options) != 0 {
		t.Fatalf("want active vote with empty options, got %+v", sess.CategoryVote)
	}
}

func TestReducer_UnknownEventIsCountedNoOp(t *testing.T) {
	r := newTestReducer("u1")
	before := r.Session()
	apply(t, r, "somethingBrandNew", `{"x":1}`)

	if !reflect.DeepEqual(before, r.Session()) {
		t.Fatalf("unknown event mutated state")
	}
	if r.UnknownEvents() != 1 {
		t.Fatalf("want unknown counter 1, got %d", r.UnknownEvents())
	}
}

func TestReducer_MalformedPayloadLeavesStateUnchanged(t *testing.T) {
	r := newTestReducer("u1")
	apply(t, r, "playersUpdate", `{"players":[{"userId":"u1"}]}`)
	before := r.Session()

	apply(t, r, "playersUpdate", `not json at all`)
	apply(t, r, "timerSync", `"scalar"`)
	apply(t, r, "playerJoined", `[1,2,3]`)

	if !reflect.DeepEqual(before, r.Session()) {
		t.Fatalf("malformed payloads must leave prior state: %+v", r.Session())
	}
}

func TestReducer_ReadySideMap(t *testing.T) {
	r := newTestReducer("u1")
	if r.Ready("u2") {
		t.Fatalf("ready must default to false")
	}
	apply(t, r, "readyStateChanged", `{"userId":"u2","ready":true}`)
	if !r.Ready("u2") {
		t.Fatalf("ready echo not applied")
	}

	r.ResetReady()
	if r.Ready("u2") {
		t.Fatalf("ready flags must not survive a reset")
	}
}
