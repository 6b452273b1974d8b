package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nidhogg/openclaw/internal/todostore"
)

type fakePendingLister struct {
	items []todostore.Item
	err   error
}

func (f *fakePendingLister) GetPending(context.Context) ([]todostore.Item, error) {
	return f.items, f.err
}

func TestStartupSinglePendingTask(t *testing.T) {
	e := NewProactivityEngine(&fakePendingLister{items: []todostore.Item{
		{ID: "a1", Text: "Water the plants"},
	}})

	msg, err := e.CheckOnStartup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := `I see you have an unfinished task: "Water the plants". Want me to work on it?`
	if msg != want {
		t.Errorf("got %q", msg)
	}
}

func TestStartupMultiplePendingTasks(t *testing.T) {
	e := NewProactivityEngine(&fakePendingLister{items: []todostore.Item{
		{ID: "a1", Text: "one"}, {ID: "b2", Text: "two"}, {ID: "c3", Text: "three"},
	}})

	msg, err := e.CheckOnStartup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "3 unfinished tasks") {
		t.Errorf("got %q", msg)
	}
}

func TestStartupFiresOnlyOnce(t *testing.T) {
	lister := &fakePendingLister{items: []todostore.Item{{ID: "a1", Text: "task"}}}
	e := NewProactivityEngine(lister)

	first, _ := e.CheckOnStartup(context.Background())
	if first == "" {
		t.Fatal("first check returned nothing")
	}
	second, err := e.CheckOnStartup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second != "" {
		t.Errorf("second check fired: %q", second)
	}
}

func TestStartupConsumedEvenWhenEmpty(t *testing.T) {
	lister := &fakePendingLister{}
	e := NewProactivityEngine(lister)

	if msg, _ := e.CheckOnStartup(context.Background()); msg != "" {
		t.Fatalf("got %q with no pending tasks", msg)
	}

	// Tasks appearing later must not revive the startup trigger.
	lister.items = []todostore.Item{{ID: "a1", Text: "task"}}
	if msg, _ := e.CheckOnStartup(context.Background()); msg != "" {
		t.Errorf("startup trigger revived: %q", msg)
	}
}

func TestAfterUpdateMatchesActionableKeyword(t *testing.T) {
	e := NewProactivityEngine(&fakePendingLister{items: []todostore.Item{
		{ID: "a1", Text: "Buy milk"},
		{ID: "b2", Text: "Search for cheap flights to Oslo"},
	}})
	e.NoteTaskMutation()

	msg, err := e.CheckAfterTaskUpdate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := `I notice the task "Search for cheap flights to Oslo" looks like something I can help with. Shall I do it now?`
	if msg != want {
		t.Errorf("got %q", msg)
	}
}

func TestAfterUpdateKeywordIsCaseInsensitive(t *testing.T) {
	e := NewProactivityEngine(&fakePendingLister{items: []todostore.Item{
		{ID: "a1", Text: "LOOK UP the train schedule"},
	}})
	e.NoteTaskMutation()

	msg, _ := e.CheckAfterTaskUpdate(context.Background())
	if msg == "" {
		t.Error("uppercase keyword not matched")
	}
}

func TestAfterUpdateNoActionableTasks(t *testing.T) {
	e := NewProactivityEngine(&fakePendingLister{items: []todostore.Item{
		{ID: "a1", Text: "Buy milk"},
		{ID: "b2", Text: "Call mom"},
	}})
	e.NoteTaskMutation()

	msg, err := e.CheckAfterTaskUpdate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if msg != "" {
		t.Errorf("got %q", msg)
	}
}

func TestAfterUpdateRequiresMutation(t *testing.T) {
	e := NewProactivityEngine(&fakePendingLister{items: []todostore.Item{
		{ID: "a1", Text: "Search for a dentist"},
	}})

	// No mutation recorded yet, so polling stays quiet.
	if msg, _ := e.CheckAfterTaskUpdate(context.Background()); msg != "" {
		t.Fatalf("fired without a mutation: %q", msg)
	}

	e.NoteTaskMutation()
	msg, err := e.CheckAfterTaskUpdate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if msg == "" {
		t.Fatal("mutation did not arm the check")
	}

	// The mutation is consumed; the same task is not re-suggested.
	if msg, _ := e.CheckAfterTaskUpdate(context.Background()); msg != "" {
		t.Errorf("re-suggested without a new mutation: %q", msg)
	}
}

func TestProactivityStoreError(t *testing.T) {
	storeErr := errors.New("db down")
	e := NewProactivityEngine(&fakePendingLister{err: storeErr})

	if _, err := e.CheckOnStartup(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("startup error not wrapped: %v", err)
	}
	e.NoteTaskMutation()
	if _, err := e.CheckAfterTaskUpdate(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("after-update error not wrapped: %v", err)
	}
}
