package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/agent"
	"github.com/nidhogg/openclaw/internal/llm"
	"github.com/nidhogg/openclaw/internal/memory"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	core   *agent.Core
	logger *zap.Logger

	// busy enforces a single in-flight conversation turn. Concurrent
	// chat requests get 409 instead of interleaving memory writes.
	busy atomic.Bool
}

// NewHandler creates a new API handler around the agent core.
func NewHandler(core *agent.Core, logger *zap.Logger) *Handler {
	return &Handler{core: core, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/models", h.listModels)

		r.Post("/chat", h.chat)
		r.Get("/proactive", h.proactive)

		// Debug / inspection routes
		r.Get("/trace", h.thoughtTrace)
		r.Get("/todos", h.listTodos)
		r.Get("/memory/working", h.workingMemory)
		r.Get("/memory/long-term", h.longTermRecords)
		r.Post("/memory/query", h.queryMemory)
		r.Delete("/memory/{id}", h.deleteMemory)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !h.core.HealthCheck(r.Context()) {
		status = "backend unreachable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.core.ListModels(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	if !h.busy.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a turn is already in progress"})
		return
	}
	defer h.busy.Store(false)

	resp, err := h.core.HandleMessage(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", zap.Error(err))
		if errors.Is(err, llm.ErrUnavailable) && resp != nil {
			// The core still produced a diagnostic answer and trace.
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) proactive(w http.ResponseWriter, r *http.Request) {
	msg, err := h.core.ProactiveMessage(r.Context())
	if err != nil {
		h.logger.Warn("proactive check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *Handler) thoughtTrace(w http.ResponseWriter, r *http.Request) {
	trace := h.core.ThoughtTrace()
	if trace == nil {
		trace = []agent.ThoughtStep{}
	}
	writeJSON(w, http.StatusOK, trace)
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	items, err := h.core.Todos(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) workingMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.core.WorkingMemory())
}

func (h *Handler) longTermRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.core.LongTermRecords(r.Context())
	if err != nil {
		writeJSON(w, memoryErrStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []memory.MemoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type memoryQueryRequest struct {
	Query string `json:"query"`
	N     int    `json:"n"`
}

func (h *Handler) queryMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.N <= 0 {
		req.N = 5
	}

	results, err := h.core.QueryLongTerm(r.Context(), req.Query, req.N)
	if err != nil {
		writeJSON(w, memoryErrStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if results == nil {
		results = []memory.MemoryResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) deleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.core.DeleteMemory(r.Context(), id); err != nil {
		writeJSON(w, memoryErrStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func memoryErrStatus(err error) int {
	if errors.Is(err, memory.ErrStoreUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
