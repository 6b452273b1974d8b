package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nidhogg/openclaw/internal/llm"
)

// TokenCounter estimates the token count of a string. Counters are
// approximations used for budget enforcement, not exact accounting.
type TokenCounter func(text string) int

// TiktokenCounter returns a counter backed by the cl100k_base encoding.
// If the encoding cannot be initialised it falls back to a bytes/4
// heuristic, which over-approximates for typical English text.
func TiktokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return func(text string) int { return len(text)/4 + 1 }
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// ShortTermMemory keeps the most recent messages within a token budget.
//
// The system message is always preserved; oldest user/assistant messages
// are trimmed first when the budget is exceeded, but the most recent
// minKeepPairs exchanges are never removed even if the window stays over
// budget. Recency beats budget at the floor.
type ShortTermMemory struct {
	mu           sync.Mutex
	messages     []llm.Message
	maxTokens    int
	minKeepPairs int
	count        TokenCounter
}

// NewShortTermMemory creates a buffer with the given token budget.
// A nil counter selects the tiktoken default.
func NewShortTermMemory(maxTokens, minKeepPairs int, counter TokenCounter) *ShortTermMemory {
	if counter == nil {
		counter = TiktokenCounter()
	}
	if minKeepPairs <= 0 {
		minKeepPairs = 2
	}
	return &ShortTermMemory{
		maxTokens:    maxTokens,
		minKeepPairs: minKeepPairs,
		count:        counter,
	}
}

// SetSystem sets or replaces the system message, which always sits at
// index 0.
func (s *ShortTermMemory) SetSystem(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := llm.Message{Role: llm.RoleSystem, Content: content}
	if len(s.messages) > 0 && s.messages[0].Role == llm.RoleSystem {
		s.messages[0] = msg
		return
	}
	s.messages = append([]llm.Message{msg}, s.messages...)
}

// Add appends a message. Trimming is a separate step so callers control
// when budget enforcement runs.
func (s *ShortTermMemory) Add(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, llm.Message{Role: role, Content: content})
}

// Trim removes the oldest non-system messages until the window fits the
// budget, stopping once only minKeepPairs user messages remain.
func (s *ShortTermMemory) Trim() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.tokenCountLocked() > s.maxTokens {
		oldest := -1
		users := 0
		for i, m := range s.messages {
			if m.Role == llm.RoleSystem {
				continue
			}
			if oldest < 0 {
				oldest = i
			}
			if m.Role == llm.RoleUser {
				users++
			}
		}
		if oldest < 0 || users <= s.minKeepPairs {
			return // refuse to trim further
		}
		s.messages = append(s.messages[:oldest], s.messages[oldest+1:]...)
	}
}

// Messages returns a copy of the current message list.
func (s *ShortTermMemory) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// TokenCount returns the approximate total tokens across all messages.
func (s *ShortTermMemory) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCountLocked()
}

// Clear removes all messages except the system message.
func (s *ShortTermMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 0 && s.messages[0].Role == llm.RoleSystem {
		s.messages = s.messages[:1]
		return
	}
	s.messages = nil
}

func (s *ShortTermMemory) tokenCountLocked() int {
	total := 0
	for _, m := range s.messages {
		total += s.count(m.Content)
	}
	return total
}
