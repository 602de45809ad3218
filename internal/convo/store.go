// Package convo holds the shared conversation state: the message history
// appended by the chat worker and the "thinking" scratchpad rewritten by
// the think worker. The two fields live behind separate locks so a think
// update in flight never blocks the chat worker from snapshotting history.
package convo

import "sync"

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Store lives for the whole process. History is append-only apart from
// oldest-first trimming past maxHistory; thinking has a single designated
// writer (the think worker).
type Store struct {
	systemPrompt string
	maxHistory   int

	historyMu sync.RWMutex
	messages  []Message

	thinkingMu sync.RWMutex
	thinking   string
}

func NewStore(systemPrompt string, maxHistory int) *Store {
	return &Store{systemPrompt: systemPrompt, maxHistory: maxHistory}
}

func (s *Store) SystemPrompt() string { return s.systemPrompt }

// AppendUser records a completed user turn.
func (s *Store) AppendUser(text string) { s.append(Message{Role: RoleUser, Content: text}) }

// AppendAssistant records an assistant reply.
func (s *Store) AppendAssistant(text string) {
	s.append(Message{Role: RoleAssistant, Content: text})
}

func (s *Store) append(m Message) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.messages = append(s.messages, m)
	if s.maxHistory > 0 && len(s.messages) > s.maxHistory {
		over := len(s.messages) - s.maxHistory
		s.messages = append([]Message(nil), s.messages[over:]...)
	}
}

// Messages returns a copy of the history.
func (s *Store) Messages() []Message {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Len reports the history length.
func (s *Store) Len() int {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	return len(s.messages)
}

// SetThinking replaces the scratchpad. Only the think worker calls this.
func (s *Store) SetThinking(text string) {
	s.thinkingMu.Lock()
	s.thinking = text
	s.thinkingMu.Unlock()
}

// Thinking returns the current scratchpad.
func (s *Store) Thinking() string {
	s.thinkingMu.RLock()
	defer s.thinkingMu.RUnlock()
	return s.thinking
}

// Snapshot builds the outbound message list: system prompt first, the
// thinking scratchpad as a second system message when present, then the
// history. The result is independent of later mutation.
func (s *Store) Snapshot() []Message {
	thinking := s.Thinking()
	history := s.Messages()

	out := make([]Message, 0, len(history)+2)
	if s.systemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: s.systemPrompt})
	}
	if thinking != "" {
		out = append(out, Message{Role: RoleSystem, Content: thinking})
	}
	return append(out, history...)
}
