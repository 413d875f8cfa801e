package session

// Pure projections over Session. Nothing here mutates state; the UI calls
// these on every render against the copy handed out by Client.Session.

// Slot is one lobby grid position for display.
type Slot struct {
	// Index is the 1-based slot number.
	Index    int
	Player   *Player
	Open     bool
	Joinable bool
}

// ClampTurn returns CurrentTurn clamped into the roster bounds. The reducer
// never rewrites a stale index after a roster shrink; readers clamp instead.
func (s Session) ClampTurn() (int, bool) {
	if len(s.Players) == 0 {
		return 0, false
	}
	turn := s.CurrentTurn
	if turn < 0 {
		turn = 0
	}
	if turn >= len(s.Players) {
		turn = len(s.Players) - 1
	}
	return turn, true
}

// TurnPlayer returns the player whose turn it is, index clamped.
func (s Session) TurnPlayer() (Player, bool) {
	turn, ok := s.ClampTurn()
	if !ok {
		return Player{}, false
	}
	return s.Players[turn], true
}

// IsMyTurn reports whether it is the viewer's turn. Only meaningful during
// DESCRIBING; any other phase is always false.
func (s Session) IsMyTurn(viewerID string) bool {
	if s.Phase != PhaseDescribing {
		return false
	}
	p, ok := s.TurnPlayer()
	return ok && p.UserID == viewerID
}

// IsHost reports whether the viewer's roster entry is flagged host.
func (s Session) IsHost(viewerID string) bool {
	p, ok := s.FindPlayer(viewerID)
	return ok && p.IsHost
}

// SlotGrid produces the lobby grid: max(maxPlayers, len(players)) slots,
// each filled by the player whose 1-based position matches the slot index.
// Players without an explicit position fall back to their array index (the
// legacy backend never sent positions). Open slots are joinable only while
// the viewer does not already occupy one.
func (s Session) SlotGrid(viewerID string) []Slot {
	n := s.MaxPlayers
	if n <= 0 {
		n = DefaultMaxPlayers
	}
	if len(s.Players) > n {
		n = len(s.Players)
	}

	// Seatedness is roster membership, not winning the occupancy map: a
	// viewer whose position collides with another player's is still in the
	// room and must not be offered open slots.
	_, viewerSeated := s.FindPlayer(viewerID)

	occupant := make(map[int]*Player, len(s.Players))
	for i := range s.Players {
		p := &s.Players[i]
		pos := p.Position
		if pos <= 0 {
			pos = i + 1
		}
		if _, taken := occupant[pos]; taken {
			continue
		}
		occupant[pos] = p
	}

	grid := make([]Slot, n)
	for i := range grid {
		index := i + 1
		slot := Slot{Index: index}
		if p, ok := occupant[index]; ok {
			slot.Player = p
		} else {
			slot.Open = true
			slot.Joinable = !viewerSeated
		}
		grid[i] = slot
	}
	return grid
}
