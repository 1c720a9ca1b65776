package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	registry := NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"claude": {Backend: LLMBackendAnthropic, Model: "claude-sonnet-4", APIKeyEnv: "ANTHROPIC_API_KEY"},
	})
	return &Config{
		configDir:           "/etc/forged",
		Defaults:            DefaultDefaults(),
		Queue:               DefaultQueueConfig(),
		Retention:           DefaultRetentionConfig(),
		LLMProviderRegistry: registry,
		Tools:               nil,
	}
}

func TestConfigStats(t *testing.T) {
	cfg := testConfig()
	stats := cfg.Stats()
	assert.Equal(t, 1, stats.LLMProviders)
	assert.Equal(t, 0, stats.Tools)
}

func TestConfigDir(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "/etc/forged", cfg.ConfigDir())
}

func TestConfigGetLLMProvider(t *testing.T) {
	cfg := testConfig()

	p, err := cfg.GetLLMProvider("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", p.Model)

	_, err = cfg.GetLLMProvider("missing")
	assert.ErrorIs(t, err, ErrLLMProviderNotFound)
}
