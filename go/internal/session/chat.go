package session

import "sync"

// ChatMessage is one chat/description line. Pending marks an optimistic
// local append that the server has not echoed back yet.
type ChatMessage struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Text    string `json:"text"`
	Pending bool   `json:"pending,omitempty"`
}

// ChatLog holds the session chat with optimistic-append reconciliation.
// The viewer's own message is appended locally before the server echo so the
// UI never stalls on round-trip latency; when the echo arrives it is matched
// by the client-generated correlation id instead of displayed twice.
type ChatLog struct {
	mu       sync.Mutex
	messages []ChatMessage
	pending  map[string]int  // correlation id -> index into messages
	seen     map[string]bool // every id already in the log, pending or settled
}

func NewChatLog() *ChatLog {
	return &ChatLog{
		pending: make(map[string]int),
		seen:    make(map[string]bool),
	}
}

// AppendLocal records an optimistic local message under its correlation id.
func (l *ChatLog) AppendLocal(msg ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg.Pending = true
	l.pending[msg.ID] = len(l.messages)
	l.seen[msg.ID] = true
	l.messages = append(l.messages, msg)
}

// ApplyEcho folds a server chat event in. An echo of one of our pending
// messages settles it in place; a repeat echo for an id already in the log
// is dropped; anything else appends.
func (l *ChatLog) ApplyEcho(msg ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, ok := l.pending[msg.ID]; ok {
		delete(l.pending, msg.ID)
		msg.Pending = false
		l.messages[idx] = msg
		return
	}
	if msg.ID != "" {
		if l.seen[msg.ID] {
			return
		}
		l.seen[msg.ID] = true
	}
	l.messages = append(l.messages, msg)
}

// Messages returns a copy of the log in arrival order.
func (l *ChatLog) Messages() []ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}
