package api

import "github.com/tarsiersync/forgecode/pkg/session"

// SessionResponse is returned by POST /api/v1/sessions and
// GET /api/v1/sessions/:id.
type SessionResponse struct {
	ID               string         `json:"id"`
	RootDirectory    string         `json:"root_directory"`
	RepoName         string         `json:"repo_name"`
	ProblemStatement string         `json:"problem_statement"`
	Status           session.Status `json:"status"`
}

// TurnResponse is returned by POST /api/v1/sessions/:id/turns.
type TurnResponse struct {
	SessionID    string         `json:"session_id"`
	ExchangeID   string         `json:"exchange_id"`
	Status       session.Status `json:"status"`
	FinalMessage string         `json:"final_message,omitempty"`
}

// CancelResponse is returned by POST /api/v1/sessions/:id/cancel.
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string               `json:"status"`
	Database      *DatabaseHealth      `json:"database,omitempty"`
	Configuration *ConfigurationStats  `json:"configuration,omitempty"`
}

// DatabaseHealth summarizes the ledger store's connection pool health.
type DatabaseHealth struct {
	Status          string `json:"status"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
}

// ConfigurationStats summarizes the loaded configuration, mirroring the
// teacher's health-check configuration block for the new domain.
type ConfigurationStats struct {
	LLMProviders int `json:"llm_providers"`
	Tools        int `json:"tools"`
}
