package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Ollama    OllamaConfig    `json:"ollama"`
	Embedding EmbeddingConfig `json:"embedding"`
	Qdrant    QdrantConfig    `json:"qdrant"`
	Database  DatabaseConfig  `json:"database"`
	Agent     AgentConfig     `json:"agent"`
	Persona   PersonaConfig   `json:"persona"`
	User      UserConfig      `json:"user"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// OllamaConfig holds connection and generation parameters for the local
// inference backend.
type OllamaConfig struct {
	Endpoint      string  `json:"endpoint"`
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	ContextWindow int     `json:"context_window"`
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// AgentConfig holds the reasoning loop and recall policy knobs.
type AgentConfig struct {
	MaxIterations     int     `json:"max_iterations"`
	RecallCount       int     `json:"recall_count"`
	DistanceThreshold float64 `json:"distance_threshold"`
	MinKeepPairs      int     `json:"min_keep_pairs"`
}

// PersonaConfig controls the agent's character and behaviour.
type PersonaConfig struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Instructions string `json:"instructions"`
}

// UserConfig describes the human the agent is speaking with.
type UserConfig struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config usable without any file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3210
	}
	if c.Ollama.Endpoint == "" {
		c.Ollama.Endpoint = "http://localhost:11434"
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = "phi4-mini"
	}
	if c.Ollama.Temperature == 0 {
		c.Ollama.Temperature = 0.7
	}
	if c.Ollama.ContextWindow == 0 {
		c.Ollama.ContextWindow = 4096
	}
	if c.Embedding.Endpoint == "" {
		c.Embedding.Endpoint = c.Ollama.Endpoint
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 5
	}
	if c.Agent.RecallCount == 0 {
		c.Agent.RecallCount = 5
	}
	if c.Agent.DistanceThreshold == 0 {
		c.Agent.DistanceThreshold = 1.0
	}
	if c.Agent.MinKeepPairs == 0 {
		c.Agent.MinKeepPairs = 2
	}
	if c.Persona.Name == "" {
		c.Persona.Name = "Claw"
	}
	if c.Persona.Role == "" {
		c.Persona.Role = "Personal Assistant"
	}
	if c.User.Name == "" {
		c.User.Name = "User"
	}
}
