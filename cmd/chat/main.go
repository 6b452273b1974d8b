package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type traceStep struct {
	Iteration   int    `json:"iteration"`
	Thought     string `json:"thought"`
	Action      string `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation,omitempty"`
}

func main() {
	server := flag.String("server", "http://localhost:3210", "OpenClaw server URL")
	trace := flag.Bool("trace", false, "Print the reasoning trace after each answer")
	flag.Parse()

	fmt.Println("OpenClaw CLI Chat")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /trace, /memory, /todos")
	fmt.Println("---")

	fetchProactive(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/trace" {
			fetchTrace(*server)
			continue
		}
		if input == "/memory" {
			fetchMemory(*server)
			continue
		}
		if input == "/todos" {
			fetchTodos(*server)
			continue
		}

		sendMessage(*server, input, *trace)
	}
}

func fetchProactive(server string) {
	resp, err := http.Get(server + "/api/proactive")
	if err != nil {
		printError("Failed to reach server: %v", err)
		return
	}
	defer resp.Body.Close()

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return
	}
	if body.Message != "" {
		fmt.Printf("\033[36m[claw]\033[0m %s\n", body.Message)
	}
}

func fetchTrace(server string) {
	resp, err := http.Get(server + "/api/trace")
	if err != nil {
		printError("Failed to fetch trace: %v", err)
		return
	}
	defer resp.Body.Close()

	var steps []traceStep
	if err := json.NewDecoder(resp.Body).Decode(&steps); err != nil {
		printError("Failed to parse trace: %v", err)
		return
	}
	if len(steps) == 0 {
		fmt.Println("No trace yet.")
		return
	}
	printSteps(steps)
}

func printSteps(steps []traceStep) {
	for _, s := range steps {
		fmt.Printf("\033[33m#%d\033[0m %s\n", s.Iteration, s.Thought)
		if s.Action != "" {
			fmt.Printf("   -> %s(%s)\n", s.Action, s.ActionInput)
		}
		if s.Observation != "" {
			obs := s.Observation
			if len(obs) > 200 {
				obs = obs[:200] + "..."
			}
			fmt.Printf("   <- %s\n", obs)
		}
	}
}

func fetchMemory(server string) {
	resp, err := http.Get(server + "/api/memory/long-term")
	if err != nil {
		printError("Failed to fetch memory: %v", err)
		return
	}
	defer resp.Body.Close()

	var records []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		printError("Failed to parse memory: %v", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("Long-term memory is empty.")
		return
	}
	fmt.Println("Long-term memory:")
	for _, r := range records {
		fmt.Printf("  [%s] %s\n", r.ID, r.Text)
	}
}

func fetchTodos(server string) {
	resp, err := http.Get(server + "/api/todos")
	if err != nil {
		printError("Failed to fetch todos: %v", err)
		return
	}
	defer resp.Body.Close()

	var items []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		Category string `json:"category"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		printError("Failed to parse todos: %v", err)
		return
	}
	if len(items) == 0 {
		fmt.Println("No tasks yet.")
		return
	}
	for _, it := range items {
		mark := "[ ]"
		if it.Status == "done" {
			mark = "[x]"
		}
		fmt.Printf("  %s %s | %s (%s)\n", mark, it.ID, it.Text, it.Category)
	}
}

func sendMessage(server, content string, showTrace bool) {
	body, _ := json.Marshal(map[string]string{"message": content})

	client := &http.Client{Timeout: 300 * time.Second}
	resp, err := client.Post(server+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		printError("A turn is already in progress, wait for it to finish.")
		return
	}

	var msg struct {
		Answer       string      `json:"answer"`
		ThoughtTrace []traceStep `json:"thought_trace"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &msg); err != nil || msg.Answer == "" {
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	if showTrace {
		printSteps(msg.ThoughtTrace)
	}
	fmt.Printf("\033[36m[claw]\033[0m %s\n", msg.Answer)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
