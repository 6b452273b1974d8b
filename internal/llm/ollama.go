package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable is returned when the Ollama backend cannot be reached
// after all retry attempts.
var ErrUnavailable = errors.New("ollama unavailable")

const (
	maxRetries  = 3
	baseBackoff = 500 * time.Millisecond
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message on the Ollama wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds connection and generation parameters for the client.
type Config struct {
	Endpoint    string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client talks to a local Ollama instance. All interaction with the
// inference backend goes through this type.
type Client struct {
	endpoint    string
	temperature float64
	client      *http.Client
	logger      *zap.Logger

	mu    sync.RWMutex
	model string
}

// New creates a Client for the given Ollama endpoint.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Model returns the currently selected model name.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel swaps the model used for subsequent calls.
func (c *Client) SetModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = name
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Chat sends messages and returns the full assistant response text.
// format may be "json" to request JSON-constrained sampling, or empty.
// Transient connection failures are retried with exponential backoff;
// malformed model output is the caller's problem, not a retry trigger.
func (c *Client) Chat(ctx context.Context, messages []Message, format string, temperature float64) (string, error) {
	if temperature == 0 {
		temperature = c.temperature
	}
	body, err := json.Marshal(chatRequest{
		Model:    c.Model(),
		Messages: messages,
		Stream:   false,
		Format:   format,
		Options:  map[string]any{"temperature": temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	backoff := baseBackoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.post(ctx, "/api/chat", body)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				respBody, _ := io.ReadAll(resp.Body)
				return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(respBody))
			}
			var out chatResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			return out.Message.Content, nil
		}

		lastErr = err
		if attempt < maxRetries {
			c.logger.Warn("ollama call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// ChatStream sends a streaming chat request and returns a channel of
// response text chunks. The channel is closed when the stream ends.
func (c *Client) ChatStream(ctx context.Context, messages []Message, temperature float64) (<-chan string, error) {
	if temperature == 0 {
		temperature = c.temperature
	}
	body, err := json.Marshal(chatRequest{
		Model:    c.Model(),
		Messages: messages,
		Stream:   true,
		Options:  map[string]any{"temperature": temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(respBody))
	}

	ch := make(chan string, 64)
	go c.readStream(resp.Body, ch)
	return ch, nil
}

// readStream decodes Ollama's JSON-lines stream format.
func (c *Client) readStream(body io.ReadCloser, ch chan<- string) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var chunk chatResponse
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			ch <- chunk.Message.Content
		}
		if chunk.Done {
			return
		}
	}
}

// HealthCheck reports whether Ollama is reachable and the model exists.
func (c *Client) HealthCheck(ctx context.Context) bool {
	body, _ := json.Marshal(map[string]string{"model": c.Model()})
	resp, err := c.post(ctx, "/api/show", body)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of all locally available models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}
