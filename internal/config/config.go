package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level orderline configuration.
type Config struct {
	Service  ServiceConfig  `json:"service"`
	Provider ProviderConfig `json:"provider"`
	Session  SessionConfig  `json:"session"`
	Menu     MenuConfig     `json:"menu"`
	Twilio   TwilioConfig   `json:"twilio"`
	Slack    *SlackConfig   `json:"slack,omitempty"`
	API      APIConfig      `json:"api"`
}

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	RestaurantName string `json:"restaurant_name"`
	DataDir        string `json:"data_dir"` // empty = in-memory persistence only
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// SessionConfig holds per-call session tunables.
type SessionConfig struct {
	TimeoutSeconds    int `json:"timeout_seconds,omitempty"`     // idle eviction, default 600
	MaxTurns          int `json:"max_turns,omitempty"`           // default 30
	LLMTimeoutSeconds int `json:"llm_timeout_seconds,omitempty"` // default 20
}

// MenuConfig holds menu source settings.
type MenuConfig struct {
	File string `json:"file,omitempty"` // YAML menu file; empty = built-in menu
}

// TwilioConfig holds telephony webhook settings.
type TwilioConfig struct {
	AuthToken string `json:"auth_token,omitempty"` // empty disables signature checks
	PublicURL string `json:"public_url,omitempty"` // externally visible base URL
	Voice     string `json:"voice,omitempty"`      // TTS voice name
}

// SlackConfig holds order notification settings.
type SlackConfig struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key,omitempty"` // admin endpoints, empty disables auth
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with ORDERLINE_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			RestaurantName: getenv("ORDERLINE_RESTAURANT_NAME", "Otto's Burgers"),
			DataDir:        os.Getenv("ORDERLINE_DATA_DIR"),
		},
		Session: SessionConfig{
			TimeoutSeconds:    getenvInt("ORDERLINE_SESSION_TIMEOUT", 0),
			MaxTurns:          getenvInt("ORDERLINE_MAX_TURNS", 0),
			LLMTimeoutSeconds: getenvInt("ORDERLINE_LLM_TIMEOUT", 0),
		},
		Menu: MenuConfig{
			File: os.Getenv("ORDERLINE_MENU_FILE"),
		},
		Twilio: TwilioConfig{
			AuthToken: os.Getenv("ORDERLINE_TWILIO_AUTH_TOKEN"),
			PublicURL: os.Getenv("ORDERLINE_PUBLIC_URL"),
			Voice:     os.Getenv("ORDERLINE_TWILIO_VOICE"),
		},
		API: APIConfig{
			Host: getenv("ORDERLINE_API_HOST", "0.0.0.0"),
			Port: getenvInt("ORDERLINE_API_PORT", 8080),
			Key:  os.Getenv("ORDERLINE_API_KEY"),
		},
	}

	if apiKey := os.Getenv("ORDERLINE_ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Provider = ProviderConfig{
			Type:   "anthropic",
			APIKey: apiKey,
			Model:  getenv("ORDERLINE_MODEL", "claude-sonnet-4-20250514"),
		}
	} else if apiKey := os.Getenv("ORDERLINE_OPENAI_API_KEY"); apiKey != "" {
		cfg.Provider = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("ORDERLINE_OPENAI_BASE_URL"),
			Model:   getenv("ORDERLINE_MODEL", "gpt-4o-mini"),
		}
	}

	if token := os.Getenv("ORDERLINE_SLACK_TOKEN"); token != "" {
		cfg.Slack = &SlackConfig{
			Token:   token,
			Channel: os.Getenv("ORDERLINE_SLACK_CHANNEL"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.RestaurantName == "" {
		errs = append(errs, "service.restaurant_name is required")
	}

	if c.Provider.APIKey == "" {
		errs = append(errs, "provider.api_key is required")
	}
	if c.Provider.Model == "" {
		errs = append(errs, "provider.model is required")
	}
	switch c.Provider.Type {
	case "", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("provider.type %q is not supported", c.Provider.Type))
	}

	if c.Session.TimeoutSeconds < 0 {
		errs = append(errs, "session.timeout_seconds must not be negative")
	}
	if c.Session.MaxTurns < 0 {
		errs = append(errs, "session.max_turns must not be negative")
	}

	if c.Slack != nil {
		if c.Slack.Token == "" {
			errs = append(errs, "slack.token is required")
		}
		if c.Slack.Channel == "" {
			errs = append(errs, "slack.channel is required")
		}
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be in 1..65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
