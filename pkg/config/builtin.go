package config

// builtinConfig holds the configuration shipped with the binary, merged
// under anything the user's own forged.yaml/llm-providers.yaml define.
type builtinConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// GetBuiltinConfig returns the built-in provider set: a local gRPC
// sidecar and a direct Anthropic provider, both usable out of the box
// once their required env vars/addr are reachable.
func GetBuiltinConfig() builtinConfig {
	return builtinConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"sidecar": {
				Backend: LLMBackendGRPC,
				Model:   "default",
				Addr:    "localhost:50051",
			},
			"claude": {
				Backend:   LLMBackendAnthropic,
				Model:     "claude-sonnet-4-20250514",
				APIKeyEnv: "ANTHROPIC_API_KEY",
				MaxTokens: 8192,
			},
		},
	}
}
