package inference

import (
	"encoding/json"

	"github.com/tarsiersync/forgecode/pkg/outline"
)

// parseToolCall decodes a raw (callID, name, argsJSON) tool invocation
// into an outline.ActionToolParameters by re-using its own tagged-variant
// wire format (§9 "prefer a tagged variant"): this keeps exactly one
// decoder for the tool catalog, rather than duplicating the type switch.
func parseToolCall(callID, name, argsJSON string) (outline.ActionToolParameters, error) {
	if argsJSON == "" {
		argsJSON = "{}"
	}
	wire := struct {
		ToolUseID string          `json:"tool_use_id"`
		ToolType  string          `json:"tool_type"`
		Input     json.RawMessage `json:"input"`
	}{
		ToolUseID: callID,
		ToolType:  name,
		Input:     json.RawMessage(argsJSON),
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return outline.ActionToolParameters{}, err
	}

	var params outline.ActionToolParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return outline.ActionToolParameters{}, err
	}
	return params, nil
}
