package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// LLMInteraction records one call into an inference.LLMClient: a
// NextAction attempt, a Summarize call, or a reward.Generator.Score call
// (InteractionType distinguishes them).
type LLMInteraction struct {
	ID               string
	SessionID        string
	NodeIndex        int
	InteractionType  string
	ModelName        string
	Request          json.RawMessage
	Response         json.RawMessage
	ThinkingContent  *string
	ResponseMetadata json.RawMessage
	InputTokens      *int
	OutputTokens     *int
	TotalTokens      *int
	DurationMs       *int
	ErrorMessage     *string
	CreatedAt        time.Time
}

// ToolInteraction records one ToolExecutor.Execute call or tool-listing
// probe.
type ToolInteraction struct {
	ID              string
	SessionID       string
	NodeIndex       int
	InteractionType string
	ToolType        string
	ToolInput       json.RawMessage
	ToolResult      json.RawMessage
	AvailableTools  json.RawMessage
	DurationMs      *int
	ErrorMessage    *string
	CreatedAt       time.Time
}

// RecordLLMInteraction inserts a single LLM interaction row.
func (s *Store) RecordLLMInteraction(ctx context.Context, rec LLMInteraction) error {
	const q = `
		INSERT INTO llm_interactions (
			id, session_id, node_index, interaction_type, model_name,
			request, response, thinking_content, response_metadata,
			input_tokens, output_tokens, total_tokens, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.SessionID, rec.NodeIndex, rec.InteractionType, rec.ModelName,
		nullableJSON(rec.Request), nullableJSON(rec.Response), rec.ThinkingContent, nullableJSON(rec.ResponseMetadata),
		rec.InputTokens, rec.OutputTokens, rec.TotalTokens, rec.DurationMs, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("ledger: record llm interaction: %w", err)
	}
	return nil
}

// RecordToolInteraction inserts a single tool interaction row.
func (s *Store) RecordToolInteraction(ctx context.Context, rec ToolInteraction) error {
	const q = `
		INSERT INTO tool_interactions (
			id, session_id, node_index, interaction_type, tool_type,
			tool_input, tool_result, available_tools, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.SessionID, rec.NodeIndex, rec.InteractionType, rec.ToolType,
		nullableJSON(rec.ToolInput), nullableJSON(rec.ToolResult), nullableJSON(rec.AvailableTools),
		rec.DurationMs, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("ledger: record tool interaction: %w", err)
	}
	return nil
}

// ListLLMInteractions returns every LLM interaction for a session, oldest
// first, grounded on the teacher's trace-list query shape.
func (s *Store) ListLLMInteractions(ctx context.Context, sessionID string) ([]LLMInteraction, error) {
	const q = `
		SELECT id, session_id, node_index, interaction_type, model_name,
		       request, response, thinking_content, response_metadata,
		       input_tokens, output_tokens, total_tokens, duration_ms, error_message, created_at
		FROM llm_interactions
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list llm interactions: %w", err)
	}
	defer rows.Close()

	var out []LLMInteraction
	for rows.Next() {
		var rec LLMInteraction
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.NodeIndex, &rec.InteractionType, &rec.ModelName,
			&rec.Request, &rec.Response, &rec.ThinkingContent, &rec.ResponseMetadata,
			&rec.InputTokens, &rec.OutputTokens, &rec.TotalTokens, &rec.DurationMs, &rec.ErrorMessage, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan llm interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetLLMInteraction fetches one interaction by id, or sql.ErrNoRows if
// absent.
func (s *Store) GetLLMInteraction(ctx context.Context, id string) (*LLMInteraction, error) {
	const q = `
		SELECT id, session_id, node_index, interaction_type, model_name,
		       request, response, thinking_content, response_metadata,
		       input_tokens, output_tokens, total_tokens, duration_ms, error_message, created_at
		FROM llm_interactions WHERE id = $1`

	var rec LLMInteraction
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&rec.ID, &rec.SessionID, &rec.NodeIndex, &rec.InteractionType, &rec.ModelName,
		&rec.Request, &rec.Response, &rec.ThinkingContent, &rec.ResponseMetadata,
		&rec.InputTokens, &rec.OutputTokens, &rec.TotalTokens, &rec.DurationMs, &rec.ErrorMessage, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: get llm interaction: %w", err)
	}
	return &rec, nil
}

// ListToolInteractions returns every tool interaction for a session,
// oldest first.
func (s *Store) ListToolInteractions(ctx context.Context, sessionID string) ([]ToolInteraction, error) {
	const q = `
		SELECT id, session_id, node_index, interaction_type, tool_type,
		       tool_input, tool_result, available_tools, duration_ms, error_message, created_at
		FROM tool_interactions
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list tool interactions: %w", err)
	}
	defer rows.Close()

	var out []ToolInteraction
	for rows.Next() {
		var rec ToolInteraction
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.NodeIndex, &rec.InteractionType, &rec.ToolType,
			&rec.ToolInput, &rec.ToolResult, &rec.AvailableTools, &rec.DurationMs, &rec.ErrorMessage, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan tool interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SearchLLMResponses runs a full-text search over recorded LLM responses
// for a session, exercising idx_llm_interactions_response_gin.
func (s *Store) SearchLLMResponses(ctx context.Context, sessionID, query string) ([]LLMInteraction, error) {
	const q = `
		SELECT id, session_id, node_index, interaction_type, model_name,
		       request, response, thinking_content, response_metadata,
		       input_tokens, output_tokens, total_tokens, duration_ms, error_message, created_at
		FROM llm_interactions
		WHERE session_id = $1
		  AND to_tsvector('english', response::text) @@ plainto_tsquery('english', $2)
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, sessionID, query)
	if err != nil {
		return nil, fmt.Errorf("ledger: search llm responses: %w", err)
	}
	defer rows.Close()

	var out []LLMInteraction
	for rows.Next() {
		var rec LLMInteraction
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.NodeIndex, &rec.InteractionType, &rec.ModelName,
			&rec.Request, &rec.Response, &rec.ThinkingContent, &rec.ResponseMetadata,
			&rec.InputTokens, &rec.OutputTokens, &rec.TotalTokens, &rec.DurationMs, &rec.ErrorMessage, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan llm interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
