package inference

import (
	"fmt"
	"strings"

	"github.com/tarsiersync/forgecode/pkg/mcts"
	"github.com/tarsiersync/forgecode/pkg/outline"
)

// BuildMessages turns problemStatement and the root-to-frontier trajectory
// into a conversation: a system message naming the tool catalog, a user
// message carrying the problem, then one assistant/tool message pair per
// already-executed node (§4.G "build prompt: system + per-node
// observations + feedback").
func BuildMessages(problemStatement string, trajectory []*mcts.ActionNode, tools []outline.ToolType) []ConversationMessage {
	messages := []ConversationMessage{
		{Role: RoleSystem, Content: systemPrompt(tools)},
		{Role: RoleUser, Content: problemStatement},
	}

	for _, node := range trajectory {
		if node.Action == nil {
			continue
		}
		if node.Action.IsErrored() {
			messages = append(messages, ConversationMessage{
				Role:    RoleAssistant,
				Content: "error: " + node.Action.ErrorReason,
			})
			continue
		}

		messages = append(messages, ConversationMessage{
			Role:       RoleAssistant,
			ToolCallID: node.Action.ToolUseID,
			ToolCalls: []ToolCall{{
				ID:        node.Action.ToolUseID,
				Name:      toolTypeName(node.Action),
				Arguments: node.Action.CanonicalString(),
			}},
		})

		if node.Observation != nil {
			content := node.Observation.Message
			if node.Feedback != "" {
				content += "\nfeedback: " + node.Feedback
			}
			messages = append(messages, ConversationMessage{
				Role:       RoleTool,
				Content:    content,
				ToolCallID: node.Action.ToolUseID,
			})
		}
	}

	return messages
}

func toolTypeName(action *outline.ActionToolParameters) string {
	toolType, ok := action.ToToolType()
	if !ok {
		return "unknown"
	}
	return toolType.String()
}

func systemPrompt(tools []outline.ToolType) string {
	var b strings.Builder
	b.WriteString("You are a code-modification agent. Available tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s\n", tool.String())
	}
	b.WriteString("Respond with exactly one tool call per turn.")
	return b.String()
}

// ToolDefinitions converts the tool catalog into the provider-neutral
// ToolDefinition shape the LLMClient needs.
func ToolDefinitions(tools []outline.ToolType) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		out = append(out, ToolDefinition{
			Name:        tool.String(),
			Description: tool.String(),
		})
	}
	return out
}
