package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Defaults: DefaultDefaults(),
		Queue:    DefaultQueueConfig(),
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"claude": {Backend: LLMBackendAnthropic, Model: "claude-sonnet-4", APIKeyEnv: "ANTHROPIC_API_KEY"},
			"local":  {Backend: LLMBackendGRPC, Model: "local-model", Addr: "localhost:50051"},
		}),
	}
}

func TestValidateAllAcceptsDefaults(t *testing.T) {
	v := NewValidator(validConfig())
	require.NoError(t, v.ValidateAll())
}

func TestValidateQueueWorkerCountOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.WorkerCount = 0
	err := NewValidator(cfg).validateQueue()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}

func TestValidateQueueJitterMustBeLessThanPollInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.PollInterval = 1 * time.Second
	cfg.Queue.PollIntervalJitter = 1 * time.Second
	err := NewValidator(cfg).validateQueue()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval_jitter")
}

func TestValidateQueueHeartbeatMustBeLessThanOrphanThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.OrphanThreshold = 1 * time.Minute
	cfg.Queue.HeartbeatInterval = 1 * time.Minute
	err := NewValidator(cfg).validateQueue()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}

func TestValidateDefaultsRejectsUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.LLMProvider = "does-not-exist"
	err := NewValidator(cfg).validateDefaults()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMProviderNotFound)
}

func TestValidateLLMProvidersRequiresAddrForGRPC(t *testing.T) {
	cfg := validConfig()
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"local": {Backend: LLMBackendGRPC, Model: "local-model"},
	})
	err := NewValidator(cfg).validateLLMProviders()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addr")
}

func TestValidateLLMProvidersRequiresAPIKeyEnvForAnthropic(t *testing.T) {
	cfg := validConfig()
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"claude": {Backend: LLMBackendAnthropic, Model: "claude-sonnet-4"},
	})
	err := NewValidator(cfg).validateLLMProviders()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key_env")
}
