package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from the environment and an
// optional YAML file.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Auth       AuthConfig
	Providers  ProvidersConfig
	Transcript TranscriptConfig
	Interview  InterviewConfig
	Worker     WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL disables
// Postgres-backed features.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string { return c.URL }

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// StorageConfig holds S3/MinIO settings for the recording archive.
type StorageConfig struct {
	Enabled              bool
	Endpoint             string
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	ForcePathStyle       bool
	PresignExpireMinutes int
}

// AuthConfig holds API key and socket token settings. An empty APIKey
// leaves the API open.
type AuthConfig struct {
	APIKey          string
	JWTSecret       string
	TokenTTLMinutes int
}

// STTConfig selects and tunes the speech-to-text provider.
type STTConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"-"`
}

// LLMConfig selects and tunes the text generation provider.
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	System      string   `yaml:"system"`
	BaseURL     string   `yaml:"base_url"`
}

// TTSConfig selects and tunes the speech synthesis provider.
type TTSConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	Format   string `yaml:"format"`
	APIKey   string `yaml:"-"`
}

// ProvidersConfig holds provider selection and credentials.
type ProvidersConfig struct {
	STT              STTConfig `yaml:"stt"`
	LLM              LLMConfig `yaml:"llm"`
	TTS              TTSConfig `yaml:"tts"`
	OpenAIAPIKey     string    `yaml:"-"`
	OpenAIBaseURL    string    `yaml:"openai_base_url"`
	DeepgramAPIKey   string    `yaml:"-"`
	DeepgramModel    string    `yaml:"deepgram_model"`
	ElevenLabsAPIKey string    `yaml:"-"`
	OllamaBaseURL    string    `yaml:"ollama_base_url"`
	TimeoutSec       int       `yaml:"timeout_sec"`
}

// Timeout returns the per-call provider timeout.
func (c ProvidersConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// TranscriptConfig holds transcript log, capture and retention settings.
type TranscriptConfig struct {
	Store            string `yaml:"store"` // memory | file | postgres
	Dir              string `yaml:"dir"`
	MaxSessions      int    `yaml:"max_sessions"`
	DebounceMS       int    `yaml:"debounce_ms"`
	DisconnectPolicy string `yaml:"disconnect_policy"` // discard | finalize
	WriteTimeoutSec  int    `yaml:"write_timeout_sec"`
}

// Debounce returns the capture debounce interval.
func (c TranscriptConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// InterviewConfig holds the question pipeline settings.
type InterviewConfig struct {
	Instruction    string `yaml:"instruction"`
	DefaultMime    string `yaml:"default_mimetype"`
	CallTimeoutSec int    `yaml:"call_timeout_sec"`
}

// CallTimeout returns the timeout for one pipeline run.
func (c InterviewConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// WorkerConfig holds background upload worker settings.
type WorkerConfig struct {
	Concurrency int
}

// fileConfig is the YAML overlay. Environment variables win over it.
type fileConfig struct {
	Providers  ProvidersConfig  `yaml:"providers"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Interview  InterviewConfig  `yaml:"interview"`
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// Load reads configuration from environment, with optional .env file and the
// YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	fc, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	fp, ft, fi := fc.Providers, fc.Transcript, fc.Interview

	openAIKey := getEnv("OPENAI_API_KEY", "")
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 120),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:             firstEnv("http://localhost:9000", "MINIO_ENDPOINT", "S3_ENDPOINT"),
			Region:               firstEnv("us-east-1", "MINIO_REGION", "S3_REGION", "AWS_REGION"),
			AccessKeyID:          firstEnv("", "MINIO_ACCESS_KEY", "S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"),
			SecretAccessKey:      firstEnv("", "MINIO_SECRET_KEY", "S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"),
			Bucket:               firstEnv("ai-interview-audio", "MINIO_BUCKET", "S3_BUCKET"),
			ForcePathStyle:       getEnvBool("S3_FORCE_PATH_STYLE", true),
			PresignExpireMinutes: getEnvInt("S3_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Auth: AuthConfig{
			APIKey:          getEnv("API_KEY", ""),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			TokenTTLMinutes: getEnvInt("SOCKET_TOKEN_TTL_MINUTES", 60),
		},
		Providers: ProvidersConfig{
			STT: STTConfig{
				Provider: strings.ToLower(getEnv("STT_PROVIDER", or(fp.STT.Provider, "whisper"))),
				Model:    getEnv("STT_MODEL", or(fp.STT.Model, "whisper-1")),
				Language: getEnv("STT_LANGUAGE", or(fp.STT.Language, "en")),
				APIKey:   getEnv("STT_API_KEY", ""),
			},
			LLM: LLMConfig{
				Provider:    strings.ToLower(getEnv("LLM_PROVIDER", or(fp.LLM.Provider, "openai"))),
				Model:       getEnv("LLM_MODEL", fp.LLM.Model),
				Temperature: getEnvFloat("LLM_TEMPERATURE", fp.LLM.Temperature),
				System:      getEnv("LLM_SYSTEM_PROMPT", fp.LLM.System),
			},
			TTS: TTSConfig{
				Provider: strings.ToLower(getEnv("TTS_PROVIDER", or(fp.TTS.Provider, "elevenlabs"))),
				Model:    getEnv("TTS_MODEL", fp.TTS.Model),
				Voice:    getEnv("TTS_VOICE", fp.TTS.Voice),
				Format:   getEnv("TTS_FORMAT", or(fp.TTS.Format, "mp3")),
				APIKey:   getEnv("TTS_API_KEY", ""),
			},
			OpenAIAPIKey:     openAIKey,
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", fp.OpenAIBaseURL),
			DeepgramAPIKey:   getEnv("DEEPGRAM_API_KEY", ""),
			DeepgramModel:    getEnv("DEEPGRAM_MODEL", or(fp.DeepgramModel, "nova-2")),
			ElevenLabsAPIKey: getEnv("ELEVENLABS_API_KEY", ""),
			OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", or(fp.OllamaBaseURL, "http://localhost:11434")),
			TimeoutSec:       getEnvInt("PROVIDER_TIMEOUT_SEC", orInt(fp.TimeoutSec, 60)),
		},
		Transcript: TranscriptConfig{
			Store:            strings.ToLower(getEnv("TRANSCRIPT_STORE", or(ft.Store, "file"))),
			Dir:              getEnv("TRANSCRIPTS_DIR", or(ft.Dir, "./transcripts")),
			MaxSessions:      getEnvInt("TRANSCRIPTS_MAX_FILES", orInt(ft.MaxSessions, 500)),
			DebounceMS:       getEnvInt("STT_DEBOUNCE_MS", orInt(ft.DebounceMS, 400)),
			DisconnectPolicy: strings.ToLower(getEnv("DISCONNECT_POLICY", or(ft.DisconnectPolicy, "discard"))),
			WriteTimeoutSec:  getEnvInt("TRANSCRIPT_WRITE_TIMEOUT_SEC", orInt(ft.WriteTimeoutSec, 5)),
		},
		Interview: InterviewConfig{
			Instruction:    getEnv("INTERVIEW_INSTRUCTION", fi.Instruction),
			DefaultMime:    getEnv("DEFAULT_AUDIO_MIMETYPE", or(fi.DefaultMime, "audio/webm")),
			CallTimeoutSec: getEnvInt("INTERVIEW_CALL_TIMEOUT_SEC", orInt(fi.CallTimeoutSec, 60)),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		},
	}
	cfg.Storage.Enabled = os.Getenv("MINIO_ENDPOINT") != "" || os.Getenv("S3_ENDPOINT") != "" ||
		getEnvBool("MINIO_ENABLED", false) || getEnvBool("S3_ENABLED", false)
	if getEnvBool("MINIO_USE_SSL", false) && strings.HasPrefix(cfg.Storage.Endpoint, "http://") {
		cfg.Storage.Endpoint = "https://" + strings.TrimPrefix(cfg.Storage.Endpoint, "http://")
	}
	if cfg.Providers.STT.APIKey == "" {
		cfg.Providers.STT.APIKey = cfg.Providers.DeepgramAPIKey
	}
	if cfg.Providers.TTS.APIKey == "" {
		cfg.Providers.TTS.APIKey = cfg.Providers.ElevenLabsAPIKey
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Transcript.Store {
	case "memory", "file", "postgres":
	default:
		return fmt.Errorf("TRANSCRIPT_STORE must be memory, file or postgres, got %q", c.Transcript.Store)
	}
	if c.Transcript.Store == "postgres" && !c.Database.Enabled() {
		return fmt.Errorf("TRANSCRIPT_STORE=postgres requires DATABASE_URL")
	}
	if c.Transcript.MaxSessions < 0 {
		return fmt.Errorf("TRANSCRIPTS_MAX_FILES must not be negative")
	}
	return nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func firstEnv(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback *float64) *float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
