package config

import "fmt"

// Validator runs structural checks over a loaded Config beyond what YAML
// struct tags alone can express (cross-field invariants, reference
// validity).
type Validator struct {
	cfg *Config
}

// NewValidator builds a Validator over cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every check and returns the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return err
	}
	if err := v.validateDefaults(); err != nil {
		return err
	}
	if err := v.validateLLMProviders(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("%w: queue configuration is nil", ErrValidationFailed)
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return NewValidationError("queue", "worker_count", "", fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount))
	}
	if q.MaxConcurrentSessions < 1 {
		return NewValidationError("queue", "max_concurrent_sessions", "", fmt.Errorf("max_concurrent_sessions must be at least 1, got %d", q.MaxConcurrentSessions))
	}
	if q.PollInterval <= 0 {
		return NewValidationError("queue", "poll_interval", "", fmt.Errorf("poll_interval must be positive, got %s", q.PollInterval))
	}
	if q.PollIntervalJitter < 0 {
		return NewValidationError("queue", "poll_interval_jitter", "", fmt.Errorf("poll_interval_jitter must be non-negative, got %s", q.PollIntervalJitter))
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return NewValidationError("queue", "poll_interval_jitter", "", fmt.Errorf("poll_interval_jitter must be less than poll_interval"))
	}
	if q.SessionTimeout <= 0 {
		return NewValidationError("queue", "session_timeout", "", fmt.Errorf("session_timeout must be positive, got %s", q.SessionTimeout))
	}
	if q.GracefulShutdownTimeout <= 0 {
		return NewValidationError("queue", "graceful_shutdown_timeout", "", fmt.Errorf("graceful_shutdown_timeout must be positive, got %s", q.GracefulShutdownTimeout))
	}
	if q.OrphanDetectionInterval <= 0 {
		return NewValidationError("queue", "orphan_detection_interval", "", fmt.Errorf("orphan_detection_interval must be positive, got %s", q.OrphanDetectionInterval))
	}
	if q.OrphanThreshold <= 0 {
		return NewValidationError("queue", "orphan_threshold", "", fmt.Errorf("orphan_threshold must be positive, got %s", q.OrphanThreshold))
	}
	if q.HeartbeatInterval <= 0 {
		return NewValidationError("queue", "heartbeat_interval", "", fmt.Errorf("heartbeat_interval must be positive, got %s", q.HeartbeatInterval))
	}
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return NewValidationError("queue", "heartbeat_interval", "", fmt.Errorf("heartbeat_interval must be less than orphan_threshold"))
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return fmt.Errorf("%w: defaults configuration is nil", ErrValidationFailed)
	}
	if d.MaxExpansions < 1 {
		return NewValidationError("defaults", "max_expansions", "", fmt.Errorf("must be at least 1, got %d", d.MaxExpansions))
	}
	if d.MaxDepth < 1 {
		return NewValidationError("defaults", "max_depth", "", fmt.Errorf("must be at least 1, got %d", d.MaxDepth))
	}
	if d.MaxIterations < 1 {
		return NewValidationError("defaults", "max_iterations", "", fmt.Errorf("must be at least 1, got %d", d.MaxIterations))
	}
	if d.MaxReasoningNodes < 1 {
		return NewValidationError("defaults", "max_reasoning_nodes", "", fmt.Errorf("must be at least 1, got %d", d.MaxReasoningNodes))
	}
	if d.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(d.LLMProvider) {
		return NewValidationError("defaults", "llm_provider", "", fmt.Errorf("%w: %s", ErrLLMProviderNotFound, d.LLMProvider))
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	for name, p := range v.cfg.LLMProviderRegistry.GetAll() {
		if !p.Backend.IsValid() {
			return NewValidationError("llm_provider", name, "backend", fmt.Errorf("%w: %s", ErrInvalidValue, p.Backend))
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
		switch p.Backend {
		case LLMBackendGRPC:
			if p.Addr == "" {
				return NewValidationError("llm_provider", name, "addr", fmt.Errorf("%w: addr is required for grpc backend", ErrMissingRequiredField))
			}
		case LLMBackendAnthropic:
			if p.APIKeyEnv == "" {
				return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("%w: api_key_env is required for anthropic backend", ErrMissingRequiredField))
			}
		}
	}
	return nil
}
