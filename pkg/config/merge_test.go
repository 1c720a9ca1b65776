package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLLMProvidersUserOverridesBuiltin(t *testing.T) {
	builtin := map[string]LLMProviderConfig{
		"claude": {Backend: LLMBackendAnthropic, Model: "claude-sonnet-4", MaxTokens: 4096},
	}
	user := map[string]LLMProviderConfig{
		"claude":  {Backend: LLMBackendAnthropic, Model: "claude-opus-4", MaxTokens: 8192},
		"sidecar": {Backend: LLMBackendGRPC, Model: "local-model", Addr: "localhost:50051"},
	}

	merged := mergeLLMProviders(builtin, user)

	assert.Len(t, merged, 2)
	assert.Equal(t, "claude-opus-4", merged["claude"].Model)
	assert.Equal(t, "localhost:50051", merged["sidecar"].Addr)
}

func TestMergeLLMProvidersNoUserConfig(t *testing.T) {
	builtin := map[string]LLMProviderConfig{
		"claude": {Backend: LLMBackendAnthropic, Model: "claude-sonnet-4"},
	}

	merged := mergeLLMProviders(builtin, nil)

	assert.Len(t, merged, 1)
	assert.Equal(t, "claude-sonnet-4", merged["claude"].Model)
}

func TestMergeLLMProvidersMutationIsolated(t *testing.T) {
	builtin := map[string]LLMProviderConfig{
		"claude": {Backend: LLMBackendAnthropic, Model: "claude-sonnet-4"},
	}

	merged := mergeLLMProviders(builtin, nil)
	merged["claude"].Model = "mutated"

	assert.Equal(t, "claude-sonnet-4", builtin["claude"].Model)
}
