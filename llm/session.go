package llm

// Message is one dialogue turn.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MaxTurns bounds the context window sent to the backend. When the window
// is full the oldest turns are dropped first.
const MaxTurns = 20

// Session holds the dialogue history for one conversation. It is an
// explicit object passed into Ask; whoever tracks user sessions owns it.
type Session struct {
	turns []Message
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Append records a turn and enforces the sliding window.
func (s *Session) Append(role, content string) {
	s.turns = append(s.turns, Message{Role: role, Content: content})
	if n := len(s.turns); n > MaxTurns {
		s.turns = s.turns[n-MaxTurns:]
	}
}

// Messages returns a copy of the current window, oldest first.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns currently held.
func (s *Session) Len() int {
	return len(s.turns)
}
