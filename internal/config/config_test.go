package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_OLLAMA_ENDPOINT", "http://ollama:11434")

	path := writeConfig(t, `{
		"ollama": {"endpoint": "${TEST_OLLAMA_ENDPOINT}", "model": "${TEST_MISSING_MODEL:llama3.2}"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ollama.Endpoint != "http://ollama:11434" {
		t.Errorf("env var not substituted: %q", cfg.Ollama.Endpoint)
	}
	if cfg.Ollama.Model != "llama3.2" {
		t.Errorf("default not applied: %q", cfg.Ollama.Model)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 3210 {
		t.Errorf("got port %d", cfg.Server.Port)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("got max iterations %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.DistanceThreshold != 1.0 {
		t.Errorf("got threshold %v", cfg.Agent.DistanceThreshold)
	}
	if cfg.Persona.Name != "Claw" {
		t.Errorf("got persona %q", cfg.Persona.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.json"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Ollama.Model != "phi4-mini" {
		t.Errorf("got model %q", cfg.Ollama.Model)
	}
	if cfg.Embedding.Endpoint != cfg.Ollama.Endpoint {
		t.Errorf("embedding endpoint not inherited: %q", cfg.Embedding.Endpoint)
	}
}
