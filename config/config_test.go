package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := baseConfig()

	if cfg.ServerConfig.Port != 10000 {
		t.Errorf("expected default port 10000, got %d", cfg.ServerConfig.Port)
	}
	if cfg.EnsembleConfig.CallTimeout != 30*time.Second {
		t.Errorf("expected 30s call timeout, got %v", cfg.EnsembleConfig.CallTimeout)
	}
	if cfg.EnsembleConfig.MaxTokens != 500 {
		t.Errorf("expected 500 max tokens, got %d", cfg.EnsembleConfig.MaxTokens)
	}
	if len(cfg.EnsembleConfig.Models) != 3 {
		t.Fatalf("expected 3 default models, got %d", len(cfg.EnsembleConfig.Models))
	}
	if cfg.EnsembleConfig.Models[0].ID != "gpt-4o" || cfg.EnsembleConfig.Models[0].Weight != 1.0 {
		t.Errorf("unexpected first model: %+v", cfg.EnsembleConfig.Models[0])
	}
	if cfg.RedisConfig.TTL != 21600 {
		t.Errorf("expected 6h stats TTL, got %d", cfg.RedisConfig.TTL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8085")
	t.Setenv("ENSEMBLE_CALL_TIMEOUT", "45s")
	t.Setenv("MARKET_HOURS_ENFORCE", "false")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/webhook")

	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.ServerConfig.Port != 8085 {
		t.Errorf("PORT override not applied, got %d", cfg.ServerConfig.Port)
	}
	if cfg.EnsembleConfig.CallTimeout != 45*time.Second {
		t.Errorf("call timeout override not applied, got %v", cfg.EnsembleConfig.CallTimeout)
	}
	if cfg.MarketHoursConfig.Enforce {
		t.Error("MARKET_HOURS_ENFORCE=false should disable the gate")
	}
	if !cfg.NotificationConfig.Discord.Enabled || !cfg.NotificationConfig.Enabled {
		t.Error("setting DISCORD_WEBHOOK_URL should enable discord notifications")
	}
}

func TestMarketHoursEnforcedByDefault(t *testing.T) {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if !cfg.MarketHoursConfig.Enforce {
		t.Error("market hours gate should be on unless explicitly disabled")
	}
}

func TestEnabledModelsFiltering(t *testing.T) {
	t.Setenv("TEST_KEY_PRESENT", "sk-test")
	// TEST_KEY_MISSING deliberately unset

	ec := EnsembleConfig{Models: []ModelConfig{
		{ID: "a", Provider: "openai", APIKeyEnv: "TEST_KEY_PRESENT", Weight: 1, Enabled: true},
		{ID: "b", Provider: "claude", APIKeyEnv: "TEST_KEY_MISSING", Weight: 1, Enabled: true},
		{ID: "c", Provider: "deepseek", APIKeyEnv: "TEST_KEY_PRESENT", Weight: 1, Enabled: false},
		{ID: "d", Provider: "openai", APIKeyEnv: "TEST_KEY_PRESENT", Weight: 0.9, Enabled: true},
	}}

	got := ec.EnabledModels()
	if len(got) != 2 {
		t.Fatalf("expected 2 usable models, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "d" {
		t.Errorf("configuration order not preserved: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestValidate(t *testing.T) {
	cfg := baseConfig()
	cfg.EnsembleConfig.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	cfg.EnsembleConfig.Models[0].Weight = -1
	if err := cfg.Validate(); err == nil {
		t.Error("non-positive weight should be rejected")
	}
	cfg.EnsembleConfig.Models[0].Weight = 1

	cfg.EnsembleConfig.Models[0].Provider = "gemini"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown provider should be rejected")
	}
	cfg.EnsembleConfig.Models[0].Provider = "openai"

	for i := range cfg.EnsembleConfig.Models {
		cfg.EnsembleConfig.Models[i].Enabled = false
	}
	if err := cfg.Validate(); err == nil {
		t.Error("ensemble with no enabled models should be rejected")
	}

	cfg.EnsembleConfig.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled ensemble skips model checks, got %v", err)
	}
}
