package grpcbackend

import "github.com/tarsiersync/forgecode/pkg/inference"

// requestToMap mirrors the teacher's toProtoRequest/toProtoMessages: a
// flat map keyed the same way the wire envelope names its fields.
func requestToMap(input inference.GenerateInput) map[string]any {
	messages := make([]any, 0, len(input.Messages))
	for _, m := range input.Messages {
		entry := map[string]any{
			"role":    m.Role,
			"content": m.Content,
		}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
		}
		if m.ToolName != "" {
			entry["tool_name"] = m.ToolName
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, map[string]any{
					"id":        tc.ID,
					"name":      tc.Name,
					"arguments": tc.Arguments,
				})
			}
			entry["tool_calls"] = calls
		}
		messages = append(messages, entry)
	}

	tools := make([]any, 0, len(input.Tools))
	for _, t := range input.Tools {
		tools = append(tools, map[string]any{
			"name":              t.Name,
			"description":       t.Description,
			"parameters_schema": t.ParametersSchema,
		})
	}

	return map[string]any{
		"session_id":  input.SessionID,
		"exchange_id": input.ExchangeID,
		"messages":    messages,
		"tools":       tools,
		"temperature": input.Temperature,
		"model":       input.Model,
	}
}

// mapToChunk mirrors the teacher's fromProtoResponse type switch, keyed
// on a "type" discriminator field instead of a protobuf oneof.
func mapToChunk(fields map[string]any) inference.Chunk {
	kind, _ := fields["type"].(string)
	switch kind {
	case "text":
		return &inference.TextChunk{Content: stringField(fields, "content")}
	case "thinking":
		return &inference.ThinkingChunk{Content: stringField(fields, "content")}
	case "tool_call":
		return &inference.ToolCallChunk{
			CallID:    stringField(fields, "call_id"),
			Name:      stringField(fields, "name"),
			Arguments: stringField(fields, "arguments"),
		}
	case "usage":
		return &inference.UsageChunk{
			InputTokens:    intField(fields, "input_tokens"),
			OutputTokens:   intField(fields, "output_tokens"),
			TotalTokens:    intField(fields, "total_tokens"),
			ThinkingTokens: intField(fields, "thinking_tokens"),
		}
	case "error":
		retryable, _ := fields["retryable"].(bool)
		return &inference.ErrorChunk{Message: stringField(fields, "message"), Retryable: retryable}
	default:
		return nil
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields map[string]any, key string) int {
	f, _ := fields[key].(float64)
	return int(f)
}
