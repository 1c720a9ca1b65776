// Package anthropicbackend implements inference.LLMClient directly
// against the Anthropic API, grounded on the provider pattern shown by
// the pack's Anthropic integrations (streaming SSE via the official SDK,
// content-block accumulation for tool calls). It is intentionally
// narrower than those references — no beta/computer-use or image
// attachments — since the tool catalog here is text-and-JSON only (§6).
package anthropicbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/tarsiersync/forgecode/pkg/apperrors"
	"github.com/tarsiersync/forgecode/pkg/inference"
)

// Client implements inference.LLMClient by calling Claude directly.
type Client struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
}

// Config configures a Client.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
}

// New builds a Client. APIKey is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropicbackend: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Close is a no-op: the SDK client owns no long-lived connection.
func (c *Client) Close() error { return nil }

// Generate opens a streaming Messages call and translates Anthropic's SSE
// events into inference.Chunk values as they arrive.
func (c *Client) Generate(ctx context.Context, input inference.GenerateInput) (<-chan inference.Chunk, error) {
	params, err := c.buildParams(input)
	if err != nil {
		return nil, apperrors.NewLLMClientError(apperrors.LLMErrorOther, err)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	ch := make(chan inference.Chunk, 32)
	go func() {
		defer close(ch)
		c.processStream(ctx, stream, ch)
	}()
	return ch, nil
}

func (c *Client) buildParams(input inference.GenerateInput) (anthropic.MessageNewParams, error) {
	model := input.Model
	if model == "" {
		model = c.defaultModel
	}

	messages, system, err := convertMessages(input.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if input.Temperature > 0 {
		params.Temperature = anthropic.Float(input.Temperature)
	}
	if len(input.Tools) > 0 {
		params.Tools = convertTools(input.Tools)
	}

	return params, nil
}

// maxEmptyStreamEvents bounds how many consecutive events may produce no
// chunk before the stream is treated as malformed.
const maxEmptyStreamEvents = 50

func (c *Client) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], ch chan<- inference.Chunk) {
	var currentToolCall *inference.ToolCallChunk
	var currentToolInput strings.Builder
	var inputTokens, outputTokens int
	emptyEvents := 0

	send := func(chunk inference.Chunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		event := stream.Current()
		processed := true

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentToolCall = &inference.ToolCallChunk{CallID: toolUse.ID, Name: toolUse.Name}
				currentToolInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					if !send(&inference.TextChunk{Content: delta.Text}) {
						return
					}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					if !send(&inference.ThinkingChunk{Content: delta.Thinking}) {
						return
					}
				}
			case "input_json_delta":
				currentToolInput.WriteString(delta.PartialJSON)
			default:
				processed = false
			}

		case "content_block_stop":
			if currentToolCall != nil {
				currentToolCall.Arguments = currentToolInput.String()
				if !send(currentToolCall) {
					return
				}
				currentToolCall = nil
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}

		case "message_stop":
			send(&inference.UsageChunk{InputTokens: inputTokens, OutputTokens: outputTokens, TotalTokens: inputTokens + outputTokens})
			return

		case "error":
			send(&inference.ErrorChunk{Message: "anthropic stream error", Retryable: true})
			return

		default:
			processed = false
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= maxEmptyStreamEvents {
				send(&inference.ErrorChunk{Message: fmt.Sprintf("stream appears malformed: %d consecutive empty events", emptyEvents), Retryable: true})
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		send(&inference.ErrorChunk{Message: err.Error(), Retryable: isRetryable(err)})
	}
}

func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

func convertMessages(messages []inference.ConversationMessage) ([]anthropic.MessageParam, string, error) {
	var result []anthropic.MessageParam
	var system string

	for _, m := range messages {
		if m.Role == inference.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}

		if m.Role == inference.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
			result = append(result, anthropic.NewUserMessage(content...))
			continue
		}

		for _, tc := range m.ToolCalls {
			var args map[string]any
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					return nil, "", fmt.Errorf("invalid tool call arguments for %s: %w", tc.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
		}

		if m.Role == inference.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, system, nil
}

func convertTools(tools []inference.ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if t.ParametersSchema != "" {
			_ = json.Unmarshal([]byte(t.ParametersSchema), &schema)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, toolParam)
	}
	return result
}
