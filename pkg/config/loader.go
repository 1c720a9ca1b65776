package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ForgedYAMLConfig represents the complete forged.yaml file structure.
type ForgedYAMLConfig struct {
	Defaults  *Defaults        `yaml:"defaults"`
	Queue     *QueueConfig     `yaml:"queue"`
	Retention *RetentionConfig `yaml:"retention"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file
// structure.
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined LLM providers
//  5. Apply built-in defaults for any unset values
//  6. Resolve the tool catalog against outline's closed ToolType set
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"llm_providers", stats.LLMProviders,
		"tools", stats.Tools)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	forgedConfig, err := loader.loadForgedYAML()
	if err != nil {
		return nil, NewLoadError("forged.yaml", err)
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	builtin := GetBuiltinConfig()
	llmProvidersMerged := mergeLLMProviders(builtin.LLMProviders, llmProviders)
	llmProviderRegistry := NewLLMProviderRegistry(llmProvidersMerged)

	defaults := forgedConfig.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	builtinDefaults := DefaultDefaults()
	if err := mergo.Merge(defaults, builtinDefaults); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}
	if os.Getenv("SIDECAR_ENABLE_REASONING") == "true" {
		defaults.ReasoningEnabled = true
	}

	queueConfig := DefaultQueueConfig()
	if forgedConfig.Queue != nil {
		if err := mergo.Merge(queueConfig, forgedConfig.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	retentionConfig := DefaultRetentionConfig()
	if forgedConfig.Retention != nil {
		if err := mergo.Merge(retentionConfig, forgedConfig.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	tools, err := ResolveTools(defaults.Tools)
	if err != nil {
		return nil, err
	}

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Queue:               queueConfig,
		Retention:           retentionConfig,
		LLMProviderRegistry: llmProviderRegistry,
		Tools:               tools,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using shell-style ${VAR}/$VAR syntax
	// before parsing, so provider API keys and hosts never need to be
	// checked into the YAML file itself.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadForgedYAML() (*ForgedYAMLConfig, error) {
	var config ForgedYAMLConfig
	if err := l.loadYAML("forged.yaml", &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var config LLMProvidersYAMLConfig
	config.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		return nil, err
	}

	return config.LLMProviders, nil
}
