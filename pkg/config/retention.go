package config

import "time"

// RetentionConfig controls how long the durable ledger (pkg/ledger) keeps
// interaction rows before they are eligible for cleanup. It is loaded and
// validated only; no package in this module deletes ledger rows or runs a
// cleanup loop.
type RetentionConfig struct {
	// SessionRetentionDays is how many days to keep a completed session's
	// ledger rows before they become eligible for deletion.
	SessionRetentionDays int `yaml:"session_retention_days"`

	// InteractionTTL is the maximum age of an orphaned interaction row
	// (one whose session was deleted without a matching cleanup) before
	// deletion. Per-session cleanup handles the normal case; this is a
	// safety net.
	InteractionTTL time.Duration `yaml:"interaction_ttl"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays: 90,
		InteractionTTL:       24 * time.Hour,
		CleanupInterval:      12 * time.Hour,
	}
}
