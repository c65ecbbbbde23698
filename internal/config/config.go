package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Generator providers.
const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
	ProviderMock    = "mock"
)

// Config holds application configuration
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Port        string `envconfig:"PORT" default:"8080"`
	DBPath      string `envconfig:"DB_PATH" default:"data/insights.db"`

	LLMProvider   string `envconfig:"LLM_PROVIDER" default:"gateway"`
	LLMGatewayURL string `envconfig:"LLM_GATEWAY_URL"`
	LLMAPIKey     string `envconfig:"LLM_API_KEY"`
	LLMModel      string `envconfig:"LLM_MODEL"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	UseMockLLM    bool   `envconfig:"USE_MOCK_LLM" default:"false"`

	ExtractionTimeout time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"45s"`
	LLMMaxRetry       time.Duration `envconfig:"LLM_MAX_RETRY" default:"30s"`
	TopKeywords       int           `envconfig:"TOP_KEYWORDS" default:"10"`
	BatchFailFast     bool          `envconfig:"BATCH_FAIL_FAST" default:"false"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Provider resolves the generator to use. USE_MOCK_LLM wins over LLM_PROVIDER.
func (c Config) Provider() string {
	if c.UseMockLLM {
		return ProviderMock
	}
	return c.LLMProvider
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider() {
	case ProviderMock:
	case ProviderGateway:
		if c.LLMGatewayURL == "" || c.LLMAPIKey == "" {
			errs = append(errs, errors.New("LLM_GATEWAY_URL and LLM_API_KEY are required for the gateway provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.ExtractionTimeout <= 0 {
		errs = append(errs, errors.New("EXTRACTION_TIMEOUT must be positive"))
	}
	if c.TopKeywords <= 0 {
		errs = append(errs, errors.New("TOP_KEYWORDS must be positive"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	return errors.Join(errs...)
}
