package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	EnsembleConfig     EnsembleConfig     `json:"ensemble"`
	MarketHoursConfig  MarketHoursConfig  `json:"market_hours"`
	NotificationConfig NotificationConfig `json:"notification"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// ModelConfig describes one LLM backend in the ensemble. Order in the list is
// significant: ties between directions resolve toward the earliest entry.
type ModelConfig struct {
	ID        string  `json:"id"`          // display name, e.g. "gpt-4o"
	Provider  string  `json:"provider"`    // "openai", "claude", or "deepseek"
	Model     string  `json:"model"`       // provider model identifier
	APIKeyEnv string  `json:"api_key_env"` // environment variable holding the key
	BaseURL   string  `json:"base_url"`    // optional override
	Weight    float64 `json:"weight"`
	Enabled   bool    `json:"enabled"`
}

type EnsembleConfig struct {
	Enabled     bool          `json:"enabled"`
	Models      []ModelConfig `json:"models"`
	CallTimeout time.Duration `json:"call_timeout"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// EnabledModels returns the configured models that are enabled and have an
// API key available, preserving configuration order.
func (e *EnsembleConfig) EnabledModels() []ModelConfig {
	var out []ModelConfig
	for _, m := range e.Models {
		if !m.Enabled {
			continue
		}
		if m.APIKeyEnv != "" && os.Getenv(m.APIKeyEnv) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

type MarketHoursConfig struct {
	Enforce bool `json:"enforce"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	TTL      int    `json:"ttl"` // seconds
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

// Load reads config.json when present, then applies environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// No config file is fine, environment carries everything needed.
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Model API keys are never stored in the file; each model names the
// environment variable that holds its key.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("HOST", cfg.ServerConfig.Host)
	if getEnvOrDefault("PRODUCTION_MODE", "") == "true" {
		cfg.ServerConfig.ProductionMode = true
	}

	// Ensemble config
	if getEnvOrDefault("ENSEMBLE_ENABLED", "") == "false" {
		cfg.EnsembleConfig.Enabled = false
	}
	cfg.EnsembleConfig.CallTimeout = getEnvDurationOrDefault("ENSEMBLE_CALL_TIMEOUT", cfg.EnsembleConfig.CallTimeout)
	cfg.EnsembleConfig.MaxTokens = getEnvIntOrDefault("ENSEMBLE_MAX_TOKENS", cfg.EnsembleConfig.MaxTokens)

	// Market hours config
	cfg.MarketHoursConfig.Enforce = getEnvOrDefault("MARKET_HOURS_ENFORCE", "true") == "true"

	// Notification config
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)
	if cfg.NotificationConfig.Discord.WebhookURL != "" {
		cfg.NotificationConfig.Enabled = true
		cfg.NotificationConfig.Discord.Enabled = true
	}
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	if cfg.NotificationConfig.Telegram.BotToken != "" && cfg.NotificationConfig.Telegram.ChatID != "" {
		cfg.NotificationConfig.Enabled = true
		cfg.NotificationConfig.Telegram.Enabled = true
	}

	// Database config
	if getEnvOrDefault("DATABASE_ENABLED", "") == "true" {
		cfg.DatabaseConfig.Enabled = true
	}
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	if getEnvOrDefault("REDIS_ENABLED", "") == "true" {
		cfg.RedisConfig.Enabled = true
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if getEnvOrDefault("LOG_JSON", "") == "true" {
		cfg.LoggingConfig.JSONFormat = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 10000
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if len(cfg.EnsembleConfig.Models) == 0 {
		cfg.EnsembleConfig.Enabled = true
		cfg.EnsembleConfig.Models = defaultModels()
	}
	if cfg.EnsembleConfig.CallTimeout == 0 {
		cfg.EnsembleConfig.CallTimeout = 30 * time.Second
	}
	if cfg.EnsembleConfig.MaxTokens == 0 {
		cfg.EnsembleConfig.MaxTokens = 500
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if cfg.RedisConfig.TTL == 0 {
		cfg.RedisConfig.TTL = 21600
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
}

// defaultModels is the out-of-the-box ensemble when config.json defines none.
func defaultModels() []ModelConfig {
	return []ModelConfig{
		{ID: "gpt-4o", Provider: "openai", Model: "gpt-4o", APIKeyEnv: "OPENAI_API_KEY", Weight: 1.0, Enabled: true},
		{ID: "gpt-4-turbo", Provider: "openai", Model: "gpt-4-turbo", APIKeyEnv: "OPENAI_API_KEY", Weight: 0.9, Enabled: true},
		{ID: "claude-3-5-sonnet", Provider: "claude", Model: "claude-3-5-sonnet-20241022", APIKeyEnv: "ANTHROPIC_API_KEY", Weight: 0.95, Enabled: true},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.EnsembleConfig.Enabled {
		anyEnabled := false
		for _, m := range c.EnsembleConfig.Models {
			if !m.Enabled {
				continue
			}
			anyEnabled = true
			if m.Weight <= 0 {
				return fmt.Errorf("model %q has non-positive weight %v", m.ID, m.Weight)
			}
			switch m.Provider {
			case "openai", "claude", "deepseek":
			default:
				return fmt.Errorf("model %q has unknown provider %q", m.ID, m.Provider)
			}
		}
		if !anyEnabled {
			return fmt.Errorf("ensemble is enabled but no models are enabled")
		}
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
