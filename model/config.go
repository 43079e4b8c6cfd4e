package model

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/siherrmann/grimoire/helper"
)

// Config is the application configuration.
// Values are resolved as defaults -> TOML file -> .env file -> environment.
type Config struct {
	LogLevel string       `toml:"log_level"`
	Server   ServerConfig `toml:"server"`
	Ollama   OllamaConfig `toml:"ollama"`
	Claude   ClaudeConfig `toml:"claude"`
	Web      WebConfig    `toml:"web"`
	RAG      RAGConfig    `toml:"rag"`
	Corpus   CorpusConfig `toml:"corpus"`
}

// ServerConfig configures the REST API
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
}

// OllamaConfig configures the primary (local) generator
type OllamaConfig struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float64 `toml:"temperature"`
	TopP        float64 `toml:"top_p"`
	NumPredict  int     `toml:"num_predict"`
}

// ClaudeConfig configures the secondary (remote) generator
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

// WebConfig configures the web augmentation source
type WebConfig struct {
	MaxResults      int    `toml:"max_results"`
	Timeout         string `toml:"timeout"`
	RequestInterval string `toml:"request_interval"`
	MaxChars        int    `toml:"max_chars"`
	UserAgent       string `toml:"user_agent"`
}

// RAGConfig configures retrieval, scoring and escalation
type RAGConfig struct {
	EmbeddingModel      string  `toml:"embedding_model"`
	EmbeddingDimension  int     `toml:"embedding_dimension"`
	EmbedBatchSize      int     `toml:"embed_batch_size"`
	ChunkSize           int     `toml:"chunk_size"`
	ChunkOverlap        int     `toml:"chunk_overlap"`
	TopK                int     `toml:"top_k"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	EscalationBoost     float64 `toml:"escalation_boost"`
	UsePrimary          bool    `toml:"use_primary"`
	RescoreSecondary    bool    `toml:"rescore_secondary"`
	CacheEnabled        bool    `toml:"cache_enabled"`
}

// CorpusConfig configures where rulebooks are read from
type CorpusConfig struct {
	PDFDir          string `toml:"pdf_dir"`
	RebuildSchedule string `toml:"rebuild_schedule"` // cron expression, empty disables scheduled rebuilds
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  "15s",
			WriteTimeout: "330s",
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1:8b-instruct-q4_K_M",
			Timeout:     "300s",
			Temperature: 0.7,
			TopP:        0.9,
			NumPredict:  512,
		},
		Claude: ClaudeConfig{
			Model:     "claude-3-5-haiku-20241022",
			MaxTokens: 1024,
			Timeout:   "60s",
		},
		Web: WebConfig{
			MaxResults:      3,
			Timeout:         "10s",
			RequestInterval: "1s",
			MaxChars:        1000,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		RAG: RAGConfig{
			EmbeddingModel:      "sentence-transformers/all-mpnet-base-v2",
			EmbeddingDimension:  768,
			EmbedBatchSize:      32,
			ChunkSize:           512,
			ChunkOverlap:        50,
			TopK:                5,
			ConfidenceThreshold: 0.8,
			EscalationBoost:     0.3,
			UsePrimary:          true,
			RescoreSecondary:    false,
			CacheEnabled:        true,
		},
		Corpus: CorpusConfig{
			PDFDir: "data/pdfs",
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional TOML file at path,
// a .env file in the working directory (if present) and the environment.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, helper.NewError("read config file", err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, helper.NewError("parse config file", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, helper.NewError("load .env", err)
	}

	if err := config.applyEnvOverrides(); err != nil {
		return nil, helper.NewError("apply environment", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("SERVER_HOST", &c.Server.Host)
	integer("SERVER_PORT", &c.Server.Port)

	str("OLLAMA_BASE_URL", &c.Ollama.BaseURL)
	str("OLLAMA_MODEL", &c.Ollama.Model)
	str("OLLAMA_TIMEOUT", &c.Ollama.Timeout)

	str("ANTHROPIC_API_KEY", &c.Claude.APIKey)
	str("CLAUDE_BASE_URL", &c.Claude.BaseURL)
	str("CLAUDE_MODEL", &c.Claude.Model)
	integer("CLAUDE_MAX_TOKENS", &c.Claude.MaxTokens)

	integer("MAX_WEB_RESULTS", &c.Web.MaxResults)
	str("WEB_TIMEOUT", &c.Web.Timeout)

	str("EMBEDDING_MODEL", &c.RAG.EmbeddingModel)
	integer("EMBEDDING_DIMENSION", &c.RAG.EmbeddingDimension)
	integer("CHUNK_SIZE", &c.RAG.ChunkSize)
	integer("CHUNK_OVERLAP", &c.RAG.ChunkOverlap)
	integer("TOP_K", &c.RAG.TopK)
	float("CONFIDENCE_THRESHOLD", &c.RAG.ConfidenceThreshold)
	float("ESCALATION_BOOST", &c.RAG.EscalationBoost)
	boolean("USE_OLLAMA", &c.RAG.UsePrimary)
	boolean("USE_PRIMARY", &c.RAG.UsePrimary)
	boolean("RESCORE_SECONDARY", &c.RAG.RescoreSecondary)
	boolean("CACHE_ENABLED", &c.RAG.CacheEnabled)

	str("PDF_DIR", &c.Corpus.PDFDir)
	str("REBUILD_SCHEDULE", &c.Corpus.RebuildSchedule)

	return errors.Join(errs...)
}

// Validate checks value ranges and duration formats
func (c *Config) Validate() error {
	var errs []error

	if c.RAG.ConfidenceThreshold < 0 || c.RAG.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence threshold must be within [0,1], got %v", c.RAG.ConfidenceThreshold))
	}
	if c.RAG.EscalationBoost < 0 {
		errs = append(errs, fmt.Errorf("escalation boost must not be negative, got %v", c.RAG.EscalationBoost))
	}
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap must be within [0,chunk size), got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.TopK < MinTopK || c.RAG.TopK > MaxTopK {
		errs = append(errs, fmt.Errorf("top_k must be within [%d,%d], got %d", MinTopK, MaxTopK, c.RAG.TopK))
	}
	if c.RAG.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension must be positive, got %d", c.RAG.EmbeddingDimension))
	}
	if c.RAG.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embed batch size must be positive, got %d", c.RAG.EmbedBatchSize))
	}
	if c.Web.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("max web results must not be negative, got %d", c.Web.MaxResults))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}

	for name, value := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"ollama.timeout":       c.Ollama.Timeout,
		"claude.timeout":       c.Claude.Timeout,
		"web.timeout":          c.Web.Timeout,
		"web.request_interval": c.Web.RequestInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid duration for %s: %w", name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return helper.NewError("validate config", err)
	}
	return nil
}

// ValidateCredentials checks the credentials needed to answer questions.
// The secondary generator is always reachable through escalation, so its key is required.
func (c *Config) ValidateCredentials() error {
	if c.Claude.APIKey == "" {
		return helper.NewError("validate credentials", errors.New("ANTHROPIC_API_KEY is not set"))
	}
	return nil
}

// Duration parses a duration value that already passed Validate
func Duration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
