package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/agent"
	"github.com/nidhogg/openclaw/internal/api"
	"github.com/nidhogg/openclaw/internal/config"
	"github.com/nidhogg/openclaw/internal/embedding"
	"github.com/nidhogg/openclaw/internal/llm"
	"github.com/nidhogg/openclaw/internal/memory"
	"github.com/nidhogg/openclaw/internal/todostore"
	"github.com/nidhogg/openclaw/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting OpenClaw...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/openclaw.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config file unavailable, using defaults", zap.String("path", cfgPath), zap.Error(err))
		cfg = config.Default()
	} else {
		logger.Info("Config loaded", zap.String("path", cfgPath))
	}

	// Inference backend
	client := llm.New(llm.Config{
		Endpoint:    cfg.Ollama.Endpoint,
		Model:       cfg.Ollama.Model,
		Temperature: cfg.Ollama.Temperature,
	}, logger)
	if !client.HealthCheck(context.Background()) {
		logger.Warn("Ollama unreachable at startup, chat turns will fail until it comes up",
			zap.String("endpoint", cfg.Ollama.Endpoint))
	}

	// Long-term memory (qdrant + embeddings). A down vector store only
	// degrades recall; the agent still runs.
	embedder := embedding.NewOllamaProvider(embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	qdrant, err := vectorstore.NewClient(vectorstore.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.Port,
	})
	if err != nil {
		logger.Fatal("qdrant client setup failed", zap.Error(err))
	}
	ltm := memory.NewLongTermMemory(embedder, qdrant, logger)
	if err := ltm.Init(context.Background()); err != nil {
		logger.Warn("Qdrant unavailable, long-term memory degraded", zap.Error(err))
	}

	stm := memory.NewShortTermMemory(cfg.Ollama.ContextWindow, cfg.Agent.MinKeepPairs, nil)
	mem := memory.NewManager(stm, ltm, cfg.Agent.RecallCount, cfg.Agent.DistanceThreshold, logger)

	// Task persistence
	todos, err := todostore.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	if err := todos.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Agent core
	core, err := agent.NewCore(cfg, client, mem, todos, logger)
	if err != nil {
		logger.Fatal("agent setup failed", zap.Error(err))
	}

	// Start server
	handler := api.NewHandler(core, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("OpenClaw listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down OpenClaw...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	todos.Close()
	qdrant.Close()
}
