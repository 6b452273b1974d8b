package agent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/config"
	"github.com/nidhogg/openclaw/internal/llm"
	"github.com/nidhogg/openclaw/internal/memory"
	"github.com/nidhogg/openclaw/internal/todostore"
	"github.com/nidhogg/openclaw/internal/tools"
)

// ModelClient is the full inference surface the core needs: chat for the
// loop, streaming and model management for the UI layer.
type ModelClient interface {
	Chat(ctx context.Context, messages []llm.Message, format string, temperature float64) (string, error)
	ChatStream(ctx context.Context, messages []llm.Message, temperature float64) (<-chan string, error)
	HealthCheck(ctx context.Context) bool
	ListModels(ctx context.Context) ([]string, error)
	Model() string
	SetModel(name string)
}

// TaskStore combines the tool-facing mutation surface with the pending
// read the proactivity engine uses.
type TaskStore interface {
	tools.TodoBackend
	GetPending(ctx context.Context) ([]todostore.Item, error)
}

// Core is the facade consumed by the API layer. It owns every
// sub-component; callers never construct the loop, memory manager, or
// tool registry directly.
type Core struct {
	client      ModelClient
	todos       TaskStore
	memory      *memory.Manager
	tools       *tools.Registry
	loop        *ReasoningLoop
	proactivity *ProactivityEngine
	logger      *zap.Logger

	mu        sync.Mutex
	settings  *config.Config
	lastTrace []ThoughtStep
}

// NewCore wires the full agent. Tool registration happens here; a
// duplicate tool name is a wiring bug and fails construction.
func NewCore(cfg *config.Config, client ModelClient, mem *memory.Manager, todos TaskStore, logger *zap.Logger) (*Core, error) {
	reg := tools.NewRegistry()
	proactivity := NewProactivityEngine(todos)

	defs := []tools.Definition{tools.NewSearchTool(tools.NewSearchClient(logger))}
	for _, def := range tools.NewTodoTools(todos) {
		switch def.Name {
		case "todo_add", "todo_delete", "todo_toggle":
			def = noteMutations(def, proactivity)
		}
		defs = append(defs, def)
	}
	defs = append(defs, tools.NewSaveMemoryTool(mem))
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	c := &Core{
		client:      client,
		todos:       todos,
		memory:      mem,
		tools:       reg,
		loop:        NewReasoningLoop(client, mem, reg, cfg.Agent.MaxIterations, logger),
		proactivity: proactivity,
		logger:      logger,
		settings:    cfg,
	}
	c.refreshSystemPrompt()
	return c, nil
}

// noteMutations wraps a mutating todo tool so the proactivity engine
// learns about task changes. Only successful executions count.
func noteMutations(def tools.Definition, engine *ProactivityEngine) tools.Definition {
	exec := def.Execute
	def.Execute = func(ctx context.Context, input string) (string, error) {
		out, err := exec(ctx, input)
		if err == nil {
			engine.NoteTaskMutation()
		}
		return out, err
	}
	return def
}

// HandleMessage runs one full user turn. Not safe for concurrent turns;
// the API layer enforces a single in-flight conversation.
func (c *Core) HandleMessage(ctx context.Context, userInput string) (*AgentResponse, error) {
	c.refreshSystemPrompt()
	resp, err := c.loop.Run(ctx, userInput)
	if resp != nil {
		c.mu.Lock()
		c.lastTrace = resp.ThoughtTrace
		c.mu.Unlock()
	}
	return resp, err
}

// ProactiveMessage checks the startup trigger first, then the
// task-update trigger. Returns "" when neither fires.
func (c *Core) ProactiveMessage(ctx context.Context) (string, error) {
	msg, err := c.proactivity.CheckOnStartup(ctx)
	if err != nil || msg != "" {
		return msg, err
	}
	return c.proactivity.CheckAfterTaskUpdate(ctx)
}

// WorkingMemory exposes the raw short-term transcript.
func (c *Core) WorkingMemory() []llm.Message {
	return c.memory.WorkingMemory()
}

// ThoughtTrace returns the trace of the most recent completed turn.
func (c *Core) ThoughtTrace() []ThoughtStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTrace
}

// LongTermRecords returns every stored long-term memory entry.
func (c *Core) LongTermRecords(ctx context.Context) ([]memory.MemoryRecord, error) {
	return c.memory.LongTermRecords(ctx)
}

// QueryLongTerm searches long-term memory directly, bypassing the loop.
func (c *Core) QueryLongTerm(ctx context.Context, query string, n int) ([]memory.MemoryResult, error) {
	return c.memory.Recall(ctx, query, n)
}

// DeleteMemory removes one long-term record by its short ID.
func (c *Core) DeleteMemory(ctx context.Context, id string) error {
	return c.memory.DeleteLongTerm(ctx, id)
}

// Todos lists every task across all lists.
func (c *Core) Todos(ctx context.Context) ([]todostore.Item, error) {
	return c.todos.GetAll(ctx)
}

// HealthCheck reports whether the inference backend is reachable.
func (c *Core) HealthCheck(ctx context.Context) bool {
	return c.client.HealthCheck(ctx)
}

// ListModels returns the model names the backend advertises.
func (c *Core) ListModels(ctx context.Context) ([]string, error) {
	return c.client.ListModels(ctx)
}

// ReloadSettings hot-swaps persona and model settings without touching
// memory or conversation state.
func (c *Core) ReloadSettings(cfg *config.Config) {
	c.mu.Lock()
	c.settings = cfg
	c.mu.Unlock()
	c.client.SetModel(cfg.Ollama.Model)
	c.refreshSystemPrompt()
	c.logger.Info("settings reloaded",
		zap.String("model", cfg.Ollama.Model),
		zap.String("persona", cfg.Persona.Name))
}

func (c *Core) refreshSystemPrompt() {
	c.mu.Lock()
	persona, user := c.settings.Persona, c.settings.User
	c.mu.Unlock()
	c.memory.SetSystem(BuildSystemPrompt(persona, user, c.tools.Describe()))
}
