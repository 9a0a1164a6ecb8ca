package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets variables that a developer .env might set.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "STT_PROVIDER", "LLM_PROVIDER", "TTS_PROVIDER", "LLM_MODEL", "TTS_VOICE",
		"TRANSCRIPT_STORE", "TRANSCRIPTS_MAX_FILES", "STT_DEBOUNCE_MS", "DATABASE_URL", "REDIS_ADDR",
		"MINIO_ENDPOINT", "S3_ENDPOINT", "MINIO_ENABLED", "S3_ENABLED", "MINIO_USE_SSL", "API_KEY",
		"DEEPGRAM_API_KEY", "STT_API_KEY", "LLM_TEMPERATURE", "DISCONNECT_POLICY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Providers
	if p.STT.Provider != "whisper" || p.LLM.Provider != "openai" || p.TTS.Provider != "elevenlabs" {
		t.Errorf("providers = %s/%s/%s", p.STT.Provider, p.LLM.Provider, p.TTS.Provider)
	}
	if cfg.Transcript.MaxSessions != 500 || cfg.Transcript.Debounce() != 400*time.Millisecond {
		t.Errorf("transcript = %+v", cfg.Transcript)
	}
	if cfg.Storage.Enabled || cfg.Database.Enabled() || cfg.Redis.Enabled() {
		t.Error("optional backends enabled by default")
	}
	if cfg.Storage.Bucket != "ai-interview-audio" || cfg.Storage.Region != "us-east-1" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestLoadYAMLOverlayAndEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
providers:
  stt:
    provider: deepgram
  llm:
    provider: ollama
    model: llama3
    temperature: 0.2
transcript:
  store: memory
  max_sessions: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.STT.Provider != "deepgram" || cfg.Providers.STT.APIKey != "dg-key" {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if cfg.Providers.LLM.Provider != "openai" || cfg.Providers.LLM.Model != "llama3" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.LLM.Temperature == nil || *cfg.Providers.LLM.Temperature != 0.2 {
		t.Errorf("temperature = %v", cfg.Providers.LLM.Temperature)
	}
	if cfg.Transcript.Store != "memory" || cfg.Transcript.MaxSessions != 50 {
		t.Errorf("transcript = %+v", cfg.Transcript)
	}
}

func TestLoadStorageEnabledByEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINIO_ENDPOINT", "http://minio:9000")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Storage.Enabled || cfg.Storage.Endpoint != "https://minio:9000" || !cfg.Storage.ForcePathStyle {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestLoadRejectsInvalidStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSCRIPT_STORE", "mongo")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown store")
	}

	t.Setenv("TRANSCRIPT_STORE", "postgres")
	if _, err := Load(); err == nil {
		t.Error("expected error for postgres without DATABASE_URL")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}
