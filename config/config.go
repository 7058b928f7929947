// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"ragagent/types"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

type Config struct {
	ServerAddr string `validate:"required"`
	Mode       Mode   `validate:"oneof=offline online"`

	GoogleAPIKey string
	TavilyAPIKey string
	TavilyURL    string `validate:"required,url"`

	LLMProvider       string `validate:"oneof=gemini ollama"`
	LLMModel          string `validate:"required"`
	EmbeddingProvider string `validate:"oneof=gemini ollama"`
	EmbeddingModel    string `validate:"required"`
	EmbeddingDim      int    `validate:"gt=0"`
	OllamaURL         string `validate:"required,url"`

	IndexBackend   string `validate:"oneof=postgres file"`
	SessionBackend string `validate:"oneof=postgres memory"`
	DataDir        string `validate:"required"`
	PG             PGConfig

	MaxIterations int     `validate:"gt=0,lte=10"`
	TopK          int     `validate:"gt=0,lte=20"`
	MinScore      float64 `validate:"gte=0,lte=1"`

	LogLevel slog.Level
}

type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (p PGConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", p.Host, p.Port, p.User, p.Password, p.DBName)
}

func (c *Config) IsOnline() bool {
	return c.Mode == ModeOnline
}

func (c *Config) UsesPostgres() bool {
	return c.IndexBackend == BackendPostgres || c.SessionBackend == BackendPostgres
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv and validates it. Credential problems
// wrap types.ErrConfiguration.
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		ServerAddr:        env("SERVER_ADDR", ":8000"),
		Mode:              Mode(strings.ToLower(env("AGENT_MODE", string(ModeOffline)))),
		GoogleAPIKey:      env("GOOGLE_API_KEY", ""),
		TavilyAPIKey:      env("TAVILY_API_KEY", ""),
		TavilyURL:         env("TAVILY_URL", "https://api.tavily.com/search"),
		LLMProvider:       env("LLM_PROVIDER", ProviderGemini),
		LLMModel:          env("LLM_MODEL", "gemini-2.5-flash"),
		EmbeddingProvider: env("EMBEDDING_PROVIDER", ProviderGemini),
		EmbeddingModel:    env("EMBEDDING_MODEL", "gemini-embedding-001"),
		OllamaURL:         env("OLLAMA_URL", "http://localhost:11434"),
		IndexBackend:      env("INDEX_BACKEND", BackendFile),
		SessionBackend:    env("SESSION_BACKEND", BackendMemory),
		DataDir:           env("DATA_DIR", "./data"),
		PG: PGConfig{
			Host:     env("PG_HOST", "localhost"),
			User:     env("PG_USER", "postgres"),
			Password: env("PG_PASS", ""),
			DBName:   env("PG_DB_NAME", "rag"),
		},
	}

	var err error
	if cfg.EmbeddingDim, err = atoi(env("EMBEDDING_DIM", "768")); err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIM: %w", err)
	}
	if cfg.PG.Port, err = atoi(env("PG_PORT", "5432")); err != nil {
		return nil, fmt.Errorf("PG_PORT: %w", err)
	}
	if cfg.MaxIterations, err = atoi(env("MAX_ITERATIONS", strconv.Itoa(types.DefaultMaxIterations))); err != nil {
		return nil, fmt.Errorf("MAX_ITERATIONS: %w", err)
	}
	if cfg.TopK, err = atoi(env("TOP_K", "3")); err != nil {
		return nil, fmt.Errorf("TOP_K: %w", err)
	}
	if cfg.MinScore, err = strconv.ParseFloat(env("MIN_SCORE", "0.3"), 64); err != nil {
		return nil, fmt.Errorf("MIN_SCORE: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, fmt.Sprintf("%s failed on '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return err
	}

	if c.IsOnline() && c.TavilyAPIKey == "" {
		return fmt.Errorf("%w: AGENT_MODE=online requires TAVILY_API_KEY", types.ErrConfiguration)
	}
	if (c.LLMProvider == ProviderGemini || c.EmbeddingProvider == ProviderGemini) && c.GoogleAPIKey == "" {
		return fmt.Errorf("%w: gemini provider requires GOOGLE_API_KEY", types.ErrConfiguration)
	}
	return nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(s)
}
