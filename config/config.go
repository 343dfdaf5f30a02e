// Package config reads process configuration from the environment.
// Configuration is loaded once at startup and never re-read per request.
package config

import (
	"fmt"
	"os"
)

// Provider names accepted for LLM_PROVIDER.
const (
	ProviderGroq  = "groq"
	ProviderMonei = "monei"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAddr         = ":8000"
	DefaultOutputDir    = "output"
	DefaultWhisperModel = "base"
	DefaultProvider     = ProviderMonei
)

// Config holds everything the process needs, resolved at start.
type Config struct {
	Addr         string // listen address for the HTTP server
	OutputDir    string // root for pipeline artifacts
	WhisperModel string // tiny|base|small|medium|large

	LLMProvider   string
	GroqAPIKey    string
	MoneiAPIKey   string
	YarnGPTAPIKey string
}

// Load resolves configuration from environment variables.
// Missing credentials for the selected providers are fatal here rather
// than at first use.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:          getenv("ADDR", DefaultAddr),
		OutputDir:     getenv("OUTPUT_DIR", DefaultOutputDir),
		WhisperModel:  getenv("WHISPER_MODEL", DefaultWhisperModel),
		LLMProvider:   getenv("LLM_PROVIDER", DefaultProvider),
		GroqAPIKey:    os.Getenv("GROQ_API_KEY"),
		MoneiAPIKey:   os.Getenv("MONEI_API_KEY"),
		YarnGPTAPIKey: os.Getenv("YARNGPT_API_KEY"),
	}

	switch cfg.LLMProvider {
	case ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("config: GROQ_API_KEY must be set for provider %q", cfg.LLMProvider)
		}
	case ProviderMonei:
		if cfg.MoneiAPIKey == "" {
			return nil, fmt.Errorf("config: MONEI_API_KEY must be set for provider %q", cfg.LLMProvider)
		}
	default:
		return nil, fmt.Errorf("config: unknown LLM_PROVIDER %q (choose from: %s, %s)",
			cfg.LLMProvider, ProviderGroq, ProviderMonei)
	}

	if cfg.YarnGPTAPIKey == "" {
		return nil, fmt.Errorf("config: YARNGPT_API_KEY must be set")
	}

	switch cfg.WhisperModel {
	case "tiny", "base", "small", "medium", "large":
	default:
		return nil, fmt.Errorf("config: invalid WHISPER_MODEL %q", cfg.WhisperModel)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
