package tools

import (
	"context"
	"fmt"
	"strings"
)

// MemorySaver is the slice of the memory manager the save tool needs.
type MemorySaver interface {
	Save(ctx context.Context, text string, metadata map[string]string) (string, error)
}

// NewSaveMemoryTool returns the tool that persists facts to long-term
// memory. The agent decides when to call it; memory is never auto-saved.
func NewSaveMemoryTool(saver MemorySaver) Definition {
	return Definition{
		Name:          "save_memory",
		Description:   "Remember a fact or user preference permanently.",
		ParameterHint: "fact text to store",
		Execute: func(ctx context.Context, input string) (string, error) {
			text := strings.TrimSpace(input)
			if text == "" {
				return "Error: nothing to remember.", nil
			}
			id, err := saver.Save(ctx, text, map[string]string{"source": "agent"})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Saved to memory (id=%s): %s", id, text), nil
		},
	}
}
