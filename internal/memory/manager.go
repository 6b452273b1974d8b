package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/llm"
)

// Manager is the unified facade over both memory tiers. The agent talks
// to this type instead of touching STM / LTM directly; it also assembles
// the context window sent to the model each turn.
type Manager struct {
	stm       *ShortTermMemory
	ltm       VectorMemory
	recallN   int
	threshold float64
	logger    *zap.Logger
}

// NewManager composes short-term and long-term memory. recallN bounds how
// many long-term results a context build may pull in; threshold discards
// results whose cosine distance marks them as irrelevant noise.
func NewManager(stm *ShortTermMemory, ltm VectorMemory, recallN int, threshold float64, logger *zap.Logger) *Manager {
	if recallN <= 0 {
		recallN = 5
	}
	if threshold <= 0 {
		threshold = 1.0
	}
	return &Manager{stm: stm, ltm: ltm, recallN: recallN, threshold: threshold, logger: logger}
}

// SetSystem sets or updates the system prompt in STM.
func (m *Manager) SetSystem(content string) {
	m.stm.SetSystem(content)
}

// AddMessage appends a user/assistant message to STM and enforces the
// token budget.
func (m *Manager) AddMessage(role, content string) {
	m.stm.Add(role, content)
	m.stm.Trim()
}

// Save persists a fact to long-term memory. The manager never calls this
// on its own; it runs only when the reasoning loop dispatches the
// save_memory tool.
func (m *Manager) Save(ctx context.Context, text string, metadata map[string]string) (string, error) {
	return m.ltm.Store(ctx, text, metadata)
}

// Recall searches long-term memory for relevant chunks.
func (m *Manager) Recall(ctx context.Context, query string, n int) ([]MemoryResult, error) {
	return m.ltm.Query(ctx, query, n)
}

// BuildContext assembles the full message list for a model call:
//
//  1. system message (always first, owned by STM)
//  2. recalled long-term facts below the distance threshold, as one
//     synthetic system note
//  3. the trimmed STM transcript
//
// The call reads but never mutates STM/LTM state. A failed recall
// degrades to an empty recall block; recall is enrichment, not load-bearing.
func (m *Manager) BuildContext(ctx context.Context, query string) []llm.Message {
	stmMsgs := m.stm.Messages()

	var messages []llm.Message
	if len(stmMsgs) > 0 && stmMsgs[0].Role == llm.RoleSystem {
		messages = append(messages, stmMsgs[0])
		stmMsgs = stmMsgs[1:]
	}

	if query != "" {
		recalled, err := m.Recall(ctx, query, m.recallN)
		if err != nil {
			m.logger.Warn("long-term recall failed", zap.Error(err))
		} else if block := m.renderRecalled(recalled); block != "" {
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: block})
		}
	}

	return append(messages, stmMsgs...)
}

// renderRecalled filters results by the distance threshold and formats the
// survivors as a recalled-facts block. Returns "" when nothing survives.
func (m *Manager) renderRecalled(results []MemoryResult) string {
	var facts []string
	for _, r := range results {
		if r.Distance >= m.threshold {
			continue
		}
		facts = append(facts, "- "+r.Text)
	}
	if len(facts) == 0 {
		return ""
	}
	return "Recalled facts from long-term memory:\n" + strings.Join(facts, "\n")
}

// WorkingMemory returns the raw STM messages for inspection.
func (m *Manager) WorkingMemory() []llm.Message {
	return m.stm.Messages()
}

// TokenCount reports the STM's approximate token usage.
func (m *Manager) TokenCount() int {
	return m.stm.TokenCount()
}

// LongTermRecords returns every stored LTM entry.
func (m *Manager) LongTermRecords(ctx context.Context) ([]MemoryRecord, error) {
	return m.ltm.GetAll(ctx)
}

// DeleteLongTerm removes an LTM record by ID.
func (m *Manager) DeleteLongTerm(ctx context.Context, id string) error {
	return m.ltm.Delete(ctx, id)
}
