package config

// mergeLLMProviders merges built-in and user-defined LLM provider
// configurations. User-defined providers override built-in providers
// with the same name.
func mergeLLMProviders(builtinProviders map[string]LLMProviderConfig, userProviders map[string]LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig, len(builtinProviders)+len(userProviders))

	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}
	for name, userProvider := range userProviders {
		providerCopy := userProvider
		result[name] = &providerCopy
	}

	return result
}
