// Package inference implements the inference engine (§4.G): given a
// trajectory and the tool catalog, it produces an ActionToolParameters for
// the frontier node by prompting an LLMClient and parsing the tool call it
// returns.
package inference

import "context"

// LLMClient is the Go-side interface for calling an LLM provider — a
// channel-based streaming API any concrete backend (grpcbackend,
// anthropicbackend) must implement.
type LLMClient interface {
	// Generate sends a conversation to the LLM and returns a stream of
	// chunks. The returned channel is closed when the stream completes.
	// Provider-level errors are delivered as ErrorChunk values, not as a
	// returned error, so the engine can decide whether to retry.
	Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error)

	// Close releases any underlying connection.
	Close() error
}

// Conversation message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationMessage is one turn in the prompt sent to the LLM.
type ConversationMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolDefinition describes one tool available to the LLM, by name and a
// JSON-schema shape of its arguments.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// GenerateInput is one request to an LLMClient.
type GenerateInput struct {
	SessionID   string
	ExchangeID  string
	Messages    []ConversationMessage
	Tools       []ToolDefinition
	Temperature float64
	Model       string
}

// Chunk is the interface for all streaming chunk types an LLMClient may
// emit.
type Chunk interface{ chunkType() ChunkType }

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeThinking ChunkType = "thinking"
	ChunkTypeToolCall ChunkType = "tool_call"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// TextChunk is a chunk of the LLM's text response.
type TextChunk struct{ Content string }

// ThinkingChunk is a chunk of the LLM's internal reasoning.
type ThinkingChunk struct{ Content string }

// ToolCallChunk signals the LLM wants to call a tool.
type ToolCallChunk struct{ CallID, Name, Arguments string }

// UsageChunk reports token consumption for this call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens, ThinkingTokens int }

// ErrorChunk signals a provider-level error. Retryable distinguishes a
// transient failure (rate limit, timeout) from a permanent one (bad
// request, auth failure).
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType     { return ChunkTypeText }
func (c *ThinkingChunk) chunkType() ChunkType { return ChunkTypeThinking }
func (c *ToolCallChunk) chunkType() ChunkType { return ChunkTypeToolCall }
func (c *UsageChunk) chunkType() ChunkType    { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType    { return ChunkTypeError }
