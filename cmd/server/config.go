package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/finrag/finrag/internal/llm"
)

// Config is the process configuration: everything main needs to wire
// the service together, loadable from a JSON file and then overridden
// by FINRAG_* environment variables, mirroring the teacher's layered
// config-file-then-env-override precedence.
type Config struct {
	DBPath       string    `json:"db_path"`
	EmbeddingDim int       `json:"embedding_dim"`
	Addr         string    `json:"addr"`
	Chat         llm.Config `json:"chat"`
	Embedding    llm.Config `json:"embedding"`
	JWTSecret    string    `json:"jwt_secret"`
	CORSOrigins  string    `json:"cors_origins"`
	Debug        bool      `json:"debug"`
}

// DefaultConfig returns the baseline configuration before any file or
// environment override is applied.
func DefaultConfig() Config {
	return Config{
		DBPath:       "finrag.db",
		EmbeddingDim: 3072, // gemini-embedding-001 (O1)
		Addr:         ":8080",
		Chat:         llm.Config{Provider: "gemini", Model: "gemini-2.5-flash"},
		Embedding:    llm.Config{Provider: "gemini", Model: "gemini-embedding-001"},
	}
}

// loadConfig reads configPath (if non-empty) over the defaults, then
// applies FINRAG_* environment overrides, mirroring the teacher's
// GOREASON_* layering in cmd/server/main.go.
func loadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return cfg, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("FINRAG_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FINRAG_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("FINRAG_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("FINRAG_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("FINRAG_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("FINRAG_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("FINRAG_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("FINRAG_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("FINRAG_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("FINRAG_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	// Fallback: check well-known provider env vars for API keys, same
	// shape as the teacher's OPENAI_API_KEY/GROQ_API_KEY fallback.
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = providerAPIKeyFromEnv(cfg.Chat.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = providerAPIKeyFromEnv(cfg.Embedding.Provider)
	}

	if v := os.Getenv("FINRAG_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("FINRAG_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = v
	}
	if os.Getenv("FINRAG_DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, nil
}

func providerAPIKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "xai":
		return os.Getenv("XAI_API_KEY")
	default:
		return ""
	}
}
