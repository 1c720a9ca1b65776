package config

import (
	"fmt"
	"sync"
)

// LLMProviderConfig defines how to build one inference.LLMClient.
type LLMProviderConfig struct {
	// Backend selects grpc or anthropic (required).
	Backend LLMBackendType `yaml:"backend" validate:"required"`

	// Model is the default model name passed on every request.
	Model string `yaml:"model" validate:"required"`

	// Addr is the gRPC sidecar address, required when Backend is grpc.
	Addr string `yaml:"addr,omitempty"`

	// APIKeyEnv names the environment variable holding the Anthropic API
	// key, required when Backend is anthropic.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// BaseURL optionally overrides the Anthropic API base URL.
	BaseURL string `yaml:"base_url,omitempty"`

	// MaxTokens bounds the response length requested per call.
	MaxTokens int64 `yaml:"max_tokens,omitempty" validate:"omitempty,min=1"`
}

// LLMProviderRegistry stores LLM provider configurations in memory with
// thread-safe access.
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
	mu        sync.RWMutex
}

// NewLLMProviderRegistry creates a new LLM provider registry.
func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig) *LLMProviderRegistry {
	copied := make(map[string]*LLMProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &LLMProviderRegistry{providers: copied}
}

// Get retrieves an LLM provider configuration by name (thread-safe).
func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return provider, nil
}

// GetAll returns all LLM provider configurations (thread-safe, returns a
// copy).
func (r *LLMProviderRegistry) GetAll() map[string]*LLMProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*LLMProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if an LLM provider exists in the registry (thread-safe).
func (r *LLMProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[name]
	return exists
}

// Len returns the number of LLM providers in the registry (thread-safe).
func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
