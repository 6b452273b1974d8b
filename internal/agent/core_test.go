package agent

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/config"
	"github.com/nidhogg/openclaw/internal/llm"
	"github.com/nidhogg/openclaw/internal/memory"
	"github.com/nidhogg/openclaw/internal/todostore"
)

type fakeModelClient struct {
	scriptedClient
	model  string
	models []string
}

func (f *fakeModelClient) ChatStream(context.Context, []llm.Message, float64) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (f *fakeModelClient) HealthCheck(context.Context) bool { return true }
func (f *fakeModelClient) ListModels(context.Context) ([]string, error) {
	return f.models, nil
}
func (f *fakeModelClient) Model() string        { return f.model }
func (f *fakeModelClient) SetModel(name string) { f.model = name }

type fakeTaskStore struct {
	items []todostore.Item
}

func (f *fakeTaskStore) GetAll(context.Context) ([]todostore.Item, error) { return f.items, nil }
func (f *fakeTaskStore) GetPending(context.Context) ([]todostore.Item, error) {
	var pending []todostore.Item
	for _, it := range f.items {
		if it.Status == todostore.StatusPending {
			pending = append(pending, it)
		}
	}
	return pending, nil
}
func (f *fakeTaskStore) Add(_ context.Context, text, category string) (todostore.Item, error) {
	item := todostore.Item{ID: "new1", Text: text, Category: category, Status: todostore.StatusPending}
	f.items = append(f.items, item)
	return item, nil
}
func (f *fakeTaskStore) Toggle(context.Context, string) (*todostore.Item, error) { return nil, nil }
func (f *fakeTaskStore) DeleteItem(context.Context, string) (bool, error)        { return false, nil }
func (f *fakeTaskStore) DeleteCategory(context.Context, string) (int, error)     { return 0, nil }

func newTestCore(t *testing.T, client *fakeModelClient, store *fakeTaskStore) *Core {
	t.Helper()
	stm := memory.NewShortTermMemory(100000, 2, func(s string) int { return len(s) })
	mem := memory.NewManager(stm, noopVectorMemory{}, 5, 1.0, zap.NewNop())
	core, err := NewCore(config.Default(), client, mem, store, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return core
}

func TestNewCoreRegistersTools(t *testing.T) {
	core := newTestCore(t, &fakeModelClient{}, &fakeTaskStore{})

	want := []string{"search_internet", "todo_read", "todo_add", "todo_delete", "todo_toggle", "save_memory"}
	got := core.tools.List()
	if len(got) != len(want) {
		t.Fatalf("got tools %v", got)
	}
	for _, name := range want {
		if _, ok := core.tools.Get(name); !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestHandleMessageStoresTrace(t *testing.T) {
	client := &fakeModelClient{scriptedClient: scriptedClient{replies: []string{answerJSON("hi")}}}
	core := newTestCore(t, client, &fakeTaskStore{})

	resp, err := core.HandleMessage(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "hi" {
		t.Errorf("got answer %q", resp.Answer)
	}
	trace := core.ThoughtTrace()
	if len(trace) != 1 {
		t.Fatalf("trace not stored: %+v", trace)
	}
}

func TestHandleMessageContextContainsSystemPrompt(t *testing.T) {
	client := &fakeModelClient{scriptedClient: scriptedClient{replies: []string{answerJSON("hi")}}}
	core := newTestCore(t, client, &fakeTaskStore{})

	if _, err := core.HandleMessage(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	first := client.calls[0][0]
	if first.Role != llm.RoleSystem {
		t.Fatalf("first message not system: %+v", first)
	}
	for _, want := range []string{"Claw", "search_internet", "todo_read"} {
		if !strings.Contains(first.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestProactiveMessageStartupThenUpdate(t *testing.T) {
	store := &fakeTaskStore{items: []todostore.Item{
		{ID: "a1", Text: "search for a dentist", Status: todostore.StatusPending},
	}}
	core := newTestCore(t, &fakeModelClient{}, store)

	first, err := core.ProactiveMessage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(first, "unfinished task") {
		t.Errorf("startup message wrong: %q", first)
	}

	// Startup is spent; polling without a task mutation stays quiet.
	second, err := core.ProactiveMessage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second != "" {
		t.Errorf("fired without a mutation: %q", second)
	}

	// A mutating todo tool arms the task-update check.
	add, ok := core.tools.Get("todo_add")
	if !ok {
		t.Fatal("todo_add not registered")
	}
	if _, err := add.Execute(context.Background(), "Look up a plumber"); err != nil {
		t.Fatal(err)
	}

	third, err := core.ProactiveMessage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(third, "Shall I do it now?") {
		t.Errorf("after-update message wrong: %q", third)
	}

	// The mutation is consumed by the check above.
	fourth, err := core.ProactiveMessage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fourth != "" {
		t.Errorf("re-suggested without a new mutation: %q", fourth)
	}
}

func TestReloadSettingsSwapsModel(t *testing.T) {
	client := &fakeModelClient{model: "phi4-mini"}
	core := newTestCore(t, client, &fakeTaskStore{})

	cfg := config.Default()
	cfg.Ollama.Model = "llama3.2"
	cfg.Persona.Name = "Scout"
	core.ReloadSettings(cfg)

	if client.model != "llama3.2" {
		t.Errorf("model not swapped: %q", client.model)
	}
	// Next turn picks up the new persona.
	client.replies = []string{answerJSON("ok")}
	if _, err := core.HandleMessage(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(client.calls[0][0].Content, "Scout") {
		t.Error("system prompt not rebuilt with new persona")
	}
}

