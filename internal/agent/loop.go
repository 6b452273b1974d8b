package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/llm"
	"github.com/nidhogg/openclaw/internal/memory"
	"github.com/nidhogg/openclaw/internal/tools"
)

// fallbackAnswer is returned when the iteration cap is reached before the
// model produces a final answer.
const fallbackAnswer = "I was unable to complete the request within the allowed steps."

// backendDownAnswer is the diagnostic answer for a turn cut short by an
// unreachable inference backend.
const backendDownAnswer = "I could not reach the language model backend. Please make sure it is running and try again."

// ChatClient is the inference capability the loop consumes.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, format string, temperature float64) (string, error)
}

// ReasoningLoop executes the Think -> Act -> Observe cycle with a fixed
// iteration cap. It is not reentrant: callers must serialize turns.
type ReasoningLoop struct {
	client        ChatClient
	memory        *memory.Manager
	tools         *tools.Registry
	maxIterations int
	logger        *zap.Logger
}

// NewReasoningLoop wires the loop to its collaborators. maxIterations <= 0
// selects the default cap of 5.
func NewReasoningLoop(client ChatClient, mem *memory.Manager, reg *tools.Registry, maxIterations int, logger *zap.Logger) *ReasoningLoop {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	return &ReasoningLoop{
		client:        client,
		memory:        mem,
		tools:         reg,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Run executes the full loop for one user turn.
//
// The user message enters short-term memory up front so the built context
// contains it; the assistant answer is appended on termination, so every
// completed turn leaves exactly one user/assistant pair behind. Tool
// observations live only on the ephemeral message list and in the trace.
//
// On backend exhaustion the returned response is still non-nil: it carries
// a diagnostic answer and the partial trace alongside the error.
func (l *ReasoningLoop) Run(ctx context.Context, userInput string) (*AgentResponse, error) {
	l.memory.AddMessage(llm.RoleUser, userInput)
	messages := l.memory.BuildContext(ctx, userInput)

	var trace []ThoughtStep

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		raw, err := l.client.Chat(ctx, messages, "json", 0)
		if err != nil {
			l.memory.AddMessage(llm.RoleAssistant, backendDownAnswer)
			return &AgentResponse{Answer: backendDownAnswer, ThoughtTrace: trace},
				fmt.Errorf("model call failed on iteration %d: %w", iteration, err)
		}

		reply, parsed := parseModelOutput(raw)
		if !parsed {
			l.logger.Warn("failed to parse model output",
				zap.Int("iteration", iteration),
				zap.String("raw", truncate(raw, 200)))
		}

		step := ThoughtStep{
			Iteration:   iteration,
			Thought:     reply.Thought,
			Action:      reply.action(),
			ActionInput: reply.actionInput(),
		}

		// Final answer: no action requested.
		if step.Action == "" {
			answer := raw
			if reply.Answer != nil && *reply.Answer != "" {
				answer = *reply.Answer
			}
			trace = append(trace, step)
			l.memory.AddMessage(llm.RoleAssistant, answer)
			return &AgentResponse{Answer: answer, ThoughtTrace: trace}, nil
		}

		// Tool dispatch. When the model fills both action and answer,
		// action wins; the answer is ignored until a null-action turn.
		step.Observation = l.dispatch(ctx, step.Action, step.ActionInput)
		trace = append(trace, step)

		l.logger.Debug("tool dispatched",
			zap.Int("iteration", iteration),
			zap.String("tool", step.Action),
			zap.String("observation", truncate(step.Observation, 200)))

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: raw},
			llm.Message{Role: llm.RoleUser, Content: observationPrompt(step.Action, step.Observation)},
		)
	}

	l.memory.AddMessage(llm.RoleAssistant, fallbackAnswer)
	return &AgentResponse{Answer: fallbackAnswer, ThoughtTrace: trace}, nil
}

// dispatch resolves and invokes a tool. Unknown tools and tool failures
// (including panics) become observation text; they never abort the turn.
func (l *ReasoningLoop) dispatch(ctx context.Context, name, input string) (observation string) {
	def, ok := l.tools.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'.", name)
	}
	defer func() {
		if r := recover(); r != nil {
			observation = fmt.Sprintf("Tool error: %v", r)
		}
	}()
	out, err := def.Execute(ctx, input)
	if err != nil {
		return fmt.Sprintf("Tool error: %v", err)
	}
	return out
}

// observationPrompt labels a tool result so the model can tell it apart
// from genuine user input, and nudges small models back onto the JSON
// contract for the next iteration.
func observationPrompt(tool, observation string) string {
	return fmt.Sprintf(
		"Tool '%s' returned this result:\n---\n%s\n---\n"+
			"Now respond with a JSON object. "+
			"If the result answers the question, set action to null and put your answer "+
			"(based on the result above) in the answer field. "+
			"If you need another tool, call it.",
		tool, observation)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
