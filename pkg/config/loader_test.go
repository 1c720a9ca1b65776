package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitializeLoadsDefaultsAndMergesBuiltinProviders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "forged.yaml", `
defaults:
  llm_provider: claude
  max_expansions: 20
queue:
  worker_count: 3
`)
	writeFile(t, dir, "llm-providers.yaml", `
llm_providers:
  claude:
    backend: anthropic
    model: claude-opus-4
    api_key_env: ANTHROPIC_API_KEY
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Defaults.MaxExpansions)
	assert.Equal(t, 30, cfg.Defaults.MaxDepth) // filled from builtin default
	assert.Equal(t, 3, cfg.Queue.WorkerCount)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrentSessions) // filled from builtin default

	p, err := cfg.GetLLMProvider("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4", p.Model)

	// sidecar provider comes from GetBuiltinConfig, untouched by user YAML
	_, err = cfg.GetLLMProvider("sidecar")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Tools)
}

func TestInitializeExpandsEnvVars(t *testing.T) {
	t.Setenv("FORGED_MODEL", "claude-haiku-4")
	dir := t.TempDir()
	writeFile(t, dir, "forged.yaml", `defaults: {}`)
	writeFile(t, dir, "llm-providers.yaml", `
llm_providers:
  claude:
    backend: anthropic
    model: ${FORGED_MODEL}
    api_key_env: ANTHROPIC_API_KEY
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	p, err := cfg.GetLLMProvider("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4", p.Model)
}

func TestInitializeMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeRejectsUnknownTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "forged.yaml", `
defaults:
  tools: ["NotARealTool"]
`)
	writeFile(t, dir, "llm-providers.yaml", `llm_providers: {}`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)
}
