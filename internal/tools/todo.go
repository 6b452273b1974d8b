package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/openclaw/internal/todostore"
)

// TodoBackend is the slice of the to-do store the tools need.
type TodoBackend interface {
	GetAll(ctx context.Context) ([]todostore.Item, error)
	Add(ctx context.Context, text, category string) (todostore.Item, error)
	Toggle(ctx context.Context, id string) (*todostore.Item, error)
	DeleteItem(ctx context.Context, id string) (bool, error)
	DeleteCategory(ctx context.Context, category string) (int, error)
}

// NewTodoTools returns the four to-do tool definitions bound to the given
// backend. The closures capture the store; no package-level wiring.
func NewTodoTools(store TodoBackend) []Definition {
	return []Definition{
		{
			Name:          "todo_read",
			Description:   "Read all lists and tasks, or a specific list. ALWAYS call this before any other todo tool.",
			ParameterHint: "'all' to see everything, or a list name to see one list",
			Execute: func(ctx context.Context, input string) (string, error) {
				return todoRead(ctx, store, input)
			},
		},
		{
			Name:          "todo_add",
			Description:   "Add tasks to a list. List is created automatically if it does not exist.",
			ParameterHint: "ListName | task1 | task2 (or just: task text for General)",
			Execute: func(ctx context.Context, input string) (string, error) {
				return todoAdd(ctx, store, input)
			},
		},
		{
			Name:          "todo_delete",
			Description:   "Delete a task by its ID, or delete an entire list by its name.",
			ParameterHint: "task ID (e.g. a1b2c3d4) or list name (e.g. Shopping)",
			Execute: func(ctx context.Context, input string) (string, error) {
				return todoDelete(ctx, store, input)
			},
		},
		{
			Name:          "todo_toggle",
			Description:   "Toggle a task between pending and done. Use the task ID from todo_read.",
			ParameterHint: "task ID (e.g. a1b2c3d4)",
			Execute: func(ctx context.Context, input string) (string, error) {
				return todoToggle(ctx, store, input)
			},
		},
	}
}

// todoRead shows all lists, or the tasks of one list when input names it.
func todoRead(ctx context.Context, store TodoBackend, input string) (string, error) {
	items, err := store.GetAll(ctx)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "No lists or tasks exist yet.", nil
	}

	// Group by category, preserving first-seen order.
	var categories []string
	grouped := make(map[string][]todostore.Item)
	for _, item := range items {
		if _, seen := grouped[item.Category]; !seen {
			categories = append(categories, item.Category)
		}
		grouped[item.Category] = append(grouped[item.Category], item)
	}

	query := strings.ToLower(strings.TrimSpace(input))
	if query != "" && query != "all" {
		for _, cat := range categories {
			if strings.ToLower(cat) != query {
				continue
			}
			lines := []string{fmt.Sprintf("== %s ==", cat)}
			for _, item := range grouped[cat] {
				lines = append(lines, formatItem(item))
			}
			return strings.Join(lines, "\n"), nil
		}
		return fmt.Sprintf("List '%s' not found. Available lists: %s",
			strings.TrimSpace(input), strings.Join(categories, ", ")), nil
	}

	var lines []string
	for _, cat := range categories {
		lines = append(lines, fmt.Sprintf("== %s ==", cat))
		for _, item := range grouped[cat] {
			lines = append(lines, formatItem(item))
		}
		lines = append(lines, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// todoAdd parses "ListName | task1 | task2"; a pipe-less input adds a
// single task to General.
func todoAdd(ctx context.Context, store TodoBackend, input string) (string, error) {
	parts := strings.Split(input, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) == 1 {
		text := parts[0]
		if text == "" {
			return "Error: empty task.", nil
		}
		item, err := store.Add(ctx, text, "General")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Added to 'General': [%s] %s", item.ID, item.Text), nil
	}

	category := parts[0]
	var tasks []string
	for _, t := range parts[1:] {
		if t != "" {
			tasks = append(tasks, t)
		}
	}
	if category == "" {
		return "Error: empty list name.", nil
	}
	if len(tasks) == 0 {
		return "Error: no tasks provided.", nil
	}

	var added []string
	for _, t := range tasks {
		item, err := store.Add(ctx, t, category)
		if err != nil {
			return "", err
		}
		added = append(added, fmt.Sprintf("  [%s] %s", item.ID, item.Text))
	}
	return fmt.Sprintf("Added %d task(s) to '%s':\n%s",
		len(added), category, strings.Join(added, "\n")), nil
}

// todoDelete tries the input as a task ID first, then as a list name.
func todoDelete(ctx context.Context, store TodoBackend, input string) (string, error) {
	target := strings.TrimSpace(input)
	if target == "" {
		return "Error: specify a task ID or list name.", nil
	}

	deleted, err := store.DeleteItem(ctx, target)
	if err != nil {
		return "", err
	}
	if deleted {
		return fmt.Sprintf("Deleted task '%s'.", target), nil
	}

	count, err := store.DeleteCategory(ctx, target)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return fmt.Sprintf("Deleted list '%s' (%d task(s) removed).", target, count), nil
	}
	return fmt.Sprintf("Nothing found with ID or list name '%s'.", target), nil
}

func todoToggle(ctx context.Context, store TodoBackend, input string) (string, error) {
	id := strings.TrimSpace(input)
	if id == "" {
		return "Error: specify a task ID.", nil
	}
	item, err := store.Toggle(ctx, id)
	if err != nil {
		return "", err
	}
	if item == nil {
		return fmt.Sprintf("No task found with ID '%s'.", id), nil
	}
	return fmt.Sprintf("Toggled [%s] %s -> %s", item.ID, item.Text, item.Status), nil
}

func formatItem(item todostore.Item) string {
	mark := "[ ]"
	if item.Status == todostore.StatusDone {
		mark = "[x]"
	}
	return fmt.Sprintf("  %s %s | %s", mark, item.ID, item.Text)
}
