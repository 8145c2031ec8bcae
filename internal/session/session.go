package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn represents a single transcript entry
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session identifies one run of the chat loop
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Model     string    `json:"model"`
}

// New creates a session with a fresh random ID
func New(model string) Session {
	return Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Model:     model,
	}
}

// Transcript is the ordered conversation context sent with every chat request.
// The optional system turn is fixed at construction; later turns are only
// appended, and the whole history can only be reset at once.
type Transcript struct {
	system *Turn
	turns  []Turn
}

// NewTranscript creates a transcript. An empty systemPrompt yields a transcript
// without a system turn.
func NewTranscript(systemPrompt string) *Transcript {
	t := &Transcript{}
	if systemPrompt != "" {
		t.system = &Turn{Role: RoleSystem, Content: systemPrompt}
	}
	t.Reset()
	return t
}

// Append adds a turn at the end of the transcript. System turns are ignored:
// the only system turn is the one given to NewTranscript.
func (t *Transcript) Append(turn Turn) {
	if turn.Role == RoleSystem {
		return
	}
	t.turns = append(t.turns, turn)
}

// Reset drops everything except the initial system turn
func (t *Transcript) Reset() {
	t.turns = make([]Turn, 0, 8)
	if t.system != nil {
		t.turns = append(t.turns, *t.system)
	}
}

// Turns returns a copy of the transcript in insertion order
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Count returns how many turns carry the given role
func (t *Transcript) Count(role Role) int {
	n := 0
	for _, turn := range t.turns {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// Last returns the most recent turn
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}
