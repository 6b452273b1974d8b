package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(endpoint string) *Client {
	return New(Config{
		Endpoint:    endpoint,
		Model:       "test-model",
		Temperature: 0.7,
		Timeout:     2 * time.Second,
	}, zap.NewNop())
}

func TestChat(t *testing.T) {
	var gotFormat string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotFormat = req.Format
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: `{"answer":"hi"}`},
			Done:    true,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hello"}}, "json", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"answer":"hi"}` {
		t.Errorf("got %q", out)
	}
	if gotFormat != "json" {
		t.Errorf("got format %q, want json", gotFormat)
	}
}

func TestChatRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Hijack and drop the connection to simulate a transport failure.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijack unsupported")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "recovered"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "recovered" {
		t.Errorf("got %q, want recovered", out)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d calls, want 3", calls.Load())
	}
}

func TestChatExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening

	c := newTestClient(srv.URL)
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, "", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestChatDoesNotRetryHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, "", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("HTTP-level errors must not be classified as unavailable")
	}
	if calls.Load() != 1 {
		t.Errorf("got %d calls, want 1 (no retry on HTTP error)", calls.Load())
	}
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(chatResponse{Message: Message{Content: "Hel"}})
		enc.Encode(chatResponse{Message: Message{Content: "lo"}})
		enc.Encode(chatResponse{Done: true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ch, err := c.ChatStream(context.Background(), []Message{{Role: "user", Content: "x"}}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var full string
	for chunk := range ch {
		full += chunk
	}
	if full != "Hello" {
		t.Errorf("got %q, want Hello", full)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"models":[{"name":"phi4-mini"},{"name":"llama3"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	names, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "phi4-mini" {
		t.Errorf("got %v", names)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/show" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if !c.HealthCheck(context.Background()) {
		t.Error("expected healthy")
	}

	srv.Close()
	if c.HealthCheck(context.Background()) {
		t.Error("expected unhealthy after server shutdown")
	}
}
