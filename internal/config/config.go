package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything courierd needs to run. Values come from an
// optional YAML file, overridden by environment variables.
type Config struct {
	HTTPAddr     string        `yaml:"http_addr"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogLevel     string        `yaml:"log_level"`

	GitHubToken      string   `yaml:"github_token"`
	GitHubOwner      string   `yaml:"github_owner"`
	ConversationRepo string   `yaml:"conversation_repo"`
	ConversationPath string   `yaml:"conversation_path"`
	LedgerPath       string   `yaml:"ledger_path"`
	BriefingPaths    []string `yaml:"briefing_paths"`

	AssistantName string `yaml:"assistant_name"`
	OperatorName  string `yaml:"operator_name"`
	WindowSize    int    `yaml:"window_size"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	MaxTokens       int    `yaml:"max_tokens"`

	WebhookURL string `yaml:"webhook_url"`

	ProactiveEvery     time.Duration `yaml:"proactive_every"`
	ProactiveStartHour int           `yaml:"proactive_start_hour"`
	ProactiveEndHour   int           `yaml:"proactive_end_hour"`
}

// Load reads courier.yaml (or $COURIER_CONFIG) if present, then applies
// environment overrides. A missing config file is not an error; a malformed
// one is.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := getEnv("COURIER_CONFIG", "courier.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		PollInterval:       5 * time.Second,
		LogLevel:           "info",
		ConversationPath:   "conversation.md",
		LedgerPath:         "tasks.md",
		AssistantName:      "Courier",
		OperatorName:       "Operator",
		WindowSize:         10,
		AnthropicModel:     "claude-sonnet-4-20250514",
		MaxTokens:          4096,
		ProactiveEvery:     24 * time.Hour,
		ProactiveStartHour: 9,
		ProactiveEndHour:   20,
	}
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("COURIER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.PollInterval = getDuration("COURIER_POLL_INTERVAL", cfg.PollInterval)
	cfg.LogLevel = getEnv("COURIER_LOG_LEVEL", cfg.LogLevel)

	cfg.GitHubToken = getEnv("GITHUB_TOKEN", cfg.GitHubToken)
	cfg.GitHubOwner = getEnv("COURIER_GITHUB_OWNER", cfg.GitHubOwner)
	cfg.ConversationRepo = getEnv("COURIER_CONVERSATION_REPO", cfg.ConversationRepo)
	cfg.ConversationPath = getEnv("COURIER_CONVERSATION_PATH", cfg.ConversationPath)
	cfg.LedgerPath = getEnv("COURIER_LEDGER_PATH", cfg.LedgerPath)

	cfg.AssistantName = getEnv("COURIER_ASSISTANT_NAME", cfg.AssistantName)
	cfg.OperatorName = getEnv("COURIER_OPERATOR_NAME", cfg.OperatorName)
	cfg.WindowSize = getInt("COURIER_WINDOW_SIZE", cfg.WindowSize)

	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = getEnv("COURIER_ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.MaxTokens = getInt("COURIER_MAX_TOKENS", cfg.MaxTokens)

	cfg.WebhookURL = getEnv("COURIER_WEBHOOK_URL", cfg.WebhookURL)

	cfg.ProactiveEvery = getDuration("COURIER_PROACTIVE_EVERY", cfg.ProactiveEvery)
	cfg.ProactiveStartHour = getInt("COURIER_PROACTIVE_START_HOUR", cfg.ProactiveStartHour)
	cfg.ProactiveEndHour = getInt("COURIER_PROACTIVE_END_HOUR", cfg.ProactiveEndHour)
}

// Validate checks the fields serve cannot run without.
func (c Config) Validate() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.GitHubOwner == "" {
		return fmt.Errorf("COURIER_GITHUB_OWNER is required")
	}
	if c.ConversationRepo == "" {
		return fmt.Errorf("COURIER_CONVERSATION_REPO is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.ProactiveStartHour < 0 || c.ProactiveEndHour > 23 || c.ProactiveStartHour > c.ProactiveEndHour {
		return fmt.Errorf("invalid proactive hour window [%d,%d]", c.ProactiveStartHour, c.ProactiveEndHour)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
