package config

import "github.com/tarsiersync/forgecode/pkg/outline"

// Config is the umbrella configuration object: session/search defaults,
// the LLM provider registry, queue and ledger-retention settings.
type Config struct {
	configDir string

	Defaults  *Defaults
	Queue     *QueueConfig
	Retention *RetentionConfig

	LLMProviderRegistry *LLMProviderRegistry

	// Tools is Defaults.Tools, already resolved to outline.ToolType and
	// validated against the closed catalog.
	Tools []outline.ToolType
}

// ConfigStats contains statistics about loaded configuration.
type ConfigStats struct {
	LLMProviders int
	Tools        int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		LLMProviders: c.LLMProviderRegistry.Len(),
		Tools:        len(c.Tools),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
