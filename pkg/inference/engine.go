package inference

import (
	"context"
	"fmt"

	"github.com/tarsiersync/forgecode/pkg/apperrors"
	"github.com/tarsiersync/forgecode/pkg/mcts"
	"github.com/tarsiersync/forgecode/pkg/outline"
)

// MaxRetries bounds consecutive malformed-output retries before the
// engine gives up and returns an Errored action (§9 open question:
// compared with >=, so the call at attempt index 4, the fifth, is the last
// one made).
const MaxRetries = 4

const (
	baseTemperature = 0.2
	temperatureStep = 0.2
	maxTemperature  = 1.0
)

// Engine drives LLMClient to produce the next action for a frontier node
// (§4.G).
type Engine struct {
	client LLMClient
	tools  []outline.ToolType
}

// New builds an Engine over client, offering tools as the catalog named
// in every system prompt.
func New(client LLMClient, tools []outline.ToolType) *Engine {
	return &Engine{client: client, tools: tools}
}

// NextActionResult bundles what the engine produced for one frontier
// node.
type NextActionResult struct {
	Action    outline.ActionToolParameters
	UsageStats *mcts.LLMUsageStats
	Thinking  string
}

// NextAction builds a prompt from problemStatement and trajectory, calls
// the LLM, and parses a structured tool invocation. On malformed output it
// retries with an escalated temperature up to MaxRetries times; once
// exhausted, it returns an Errored action rather than a Go error, so the
// tree records the failure as a regular, simulatable node (§4.G).
func (e *Engine) NextAction(ctx context.Context, problemStatement string, trajectory []*mcts.ActionNode) (NextActionResult, error) {
	messages := BuildMessages(problemStatement, trajectory, e.tools)
	defs := ToolDefinitions(e.tools)

	temperature := baseTemperature
	var lastReason string

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return NextActionResult{}, err
		}

		result, reason, err := e.attempt(ctx, messages, defs, temperature)
		if err != nil {
			return NextActionResult{}, err
		}
		if reason == "" {
			return result, nil
		}

		lastReason = reason
		if attempt >= MaxRetries {
			return NextActionResult{
				Action:     outline.Errored(lastReason),
				UsageStats: result.UsageStats,
			}, nil
		}

		temperature += temperatureStep
		if temperature > maxTemperature {
			temperature = maxTemperature
		}
	}
}

// Summarize drives a throwaway Engine scoped to the context-crunching tool
// alone, reusing NextAction's retry/temperature-escalation loop rather than
// a second one, to produce a condensed trajectory summary (§4.I step
// 5.c "context crunching" / §6 "SummarizeContext").
func (e *Engine) Summarize(ctx context.Context, problemStatement string, trajectory []*mcts.ActionNode) (string, *mcts.LLMUsageStats, error) {
	crunch := &Engine{client: e.client, tools: []outline.ToolType{outline.ToolContextCrunching}}

	result, err := crunch.NextAction(ctx, problemStatement, trajectory)
	if err != nil {
		return "", nil, err
	}
	if result.Action.IsErrored() {
		return "", result.UsageStats, fmt.Errorf("inference: summarize: %s", result.Action.ErrorReason)
	}

	partial, ok := result.Action.Partial.(outline.ContextCrunchingInput)
	if !ok {
		return "", result.UsageStats, fmt.Errorf("inference: summarize: expected context_crunching tool call, got %T", result.Action.Partial)
	}
	return partial.Summary, result.UsageStats, nil
}

// attempt makes one LLM call. It returns a non-empty reason (and no
// error) when the output was malformed and should be retried; a returned
// error means a fatal condition (cancellation, transport failure) that
// must propagate immediately.
func (e *Engine) attempt(ctx context.Context, messages []ConversationMessage, defs []ToolDefinition, temperature float64) (NextActionResult, string, error) {
	chunks, err := e.client.Generate(ctx, GenerateInput{
		Messages:    messages,
		Tools:       defs,
		Temperature: temperature,
	})
	if err != nil {
		return NextActionResult{}, "", apperrors.NewLLMClientError(apperrors.LLMErrorOther, err)
	}

	var (
		toolCallID, toolName, toolArgs string
		haveToolCall                   bool
		thinking                       string
		usage                          *mcts.LLMUsageStats
		providerErr                    *ErrorChunk
	)

	for chunk := range chunks {
		switch c := chunk.(type) {
		case *ToolCallChunk:
			toolCallID, toolName, toolArgs = c.CallID, c.Name, c.Arguments
			haveToolCall = true
		case *ThinkingChunk:
			thinking += c.Content
		case *UsageChunk:
			usage = &mcts.LLMUsageStats{
				InputTokens:    c.InputTokens,
				OutputTokens:   c.OutputTokens,
				TotalTokens:    c.TotalTokens,
				ThinkingTokens: c.ThinkingTokens,
			}
		case *ErrorChunk:
			providerErr = c
		}

		select {
		case <-ctx.Done():
			return NextActionResult{}, "", ctx.Err()
		default:
		}
	}

	if providerErr != nil {
		if providerErr.Retryable {
			return NextActionResult{UsageStats: usage}, providerErr.Message, nil
		}
		return NextActionResult{}, "", apperrors.NewLLMClientError(apperrors.LLMErrorOther, fmt.Errorf("%s", providerErr.Message))
	}

	if !haveToolCall {
		return NextActionResult{UsageStats: usage}, "no tool call in response", nil
	}

	action, err := parseToolCall(toolCallID, toolName, toolArgs)
	if err != nil {
		return NextActionResult{UsageStats: usage}, fmt.Sprintf("malformed tool call: %v", err), nil
	}

	return NextActionResult{Action: action, UsageStats: usage, Thinking: thinking}, "", nil
}
