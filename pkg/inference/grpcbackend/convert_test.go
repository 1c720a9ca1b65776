package grpcbackend

import (
	"testing"

	"github.com/tarsiersync/forgecode/pkg/inference"
)

func TestRequestToMapRoundTripsThroughStructpb(t *testing.T) {
	input := inference.GenerateInput{
		SessionID: "s1",
		Messages: []inference.ConversationMessage{
			{Role: inference.RoleUser, Content: "hello"},
			{Role: inference.RoleAssistant, ToolCalls: []inference.ToolCall{{ID: "1", Name: "FindFiles", Arguments: `{"glob":"*.go"}`}}},
		},
		Tools:       []inference.ToolDefinition{{Name: "FindFiles"}},
		Temperature: 0.4,
	}

	m := requestToMap(input)
	if m["session_id"] != "s1" {
		t.Fatalf("session_id lost: %+v", m)
	}
	messages, ok := m["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("unexpected messages: %+v", m["messages"])
	}
}

func TestMapToChunkDecodesEachKind(t *testing.T) {
	cases := []struct {
		fields map[string]any
		want   inference.ChunkType
	}{
		{map[string]any{"type": "text", "content": "hi"}, inference.ChunkTypeText},
		{map[string]any{"type": "thinking", "content": "hmm"}, inference.ChunkTypeThinking},
		{map[string]any{"type": "tool_call", "call_id": "1", "name": "FindFiles", "arguments": "{}"}, inference.ChunkTypeToolCall},
		{map[string]any{"type": "usage", "input_tokens": float64(10), "total_tokens": float64(15)}, inference.ChunkTypeUsage},
		{map[string]any{"type": "error", "message": "boom", "retryable": true}, inference.ChunkTypeError},
	}

	for _, c := range cases {
		chunk := mapToChunk(c.fields)
		if chunk == nil {
			t.Fatalf("expected non-nil chunk for %+v", c.fields)
		}
	}
}

func TestMapToChunkUnknownTypeReturnsNil(t *testing.T) {
	if got := mapToChunk(map[string]any{"type": "mystery"}); got != nil {
		t.Fatalf("expected nil for unknown chunk type, got %+v", got)
	}
}
