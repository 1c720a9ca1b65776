// Package reward implements the reward generator (§4.H): it judges the
// observation produced by a newly executed action node against the
// original problem statement, producing a bounded Reward.
package reward

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tarsiersync/forgecode/pkg/inference"
	"github.com/tarsiersync/forgecode/pkg/mcts"
)

const reportRewardTool = "report_reward"

const reportRewardSchema = `{"type":"object","properties":{"value":{"type":"integer","minimum":0,"maximum":100},"explanation":{"type":"string"}},"required":["value","explanation"]}`

// Generator scores action nodes by asking an LLM to call a forced
// "report_reward" tool, reusing the same tool-call plumbing as the
// inference engine rather than parsing free text.
type Generator struct {
	client inference.LLMClient
}

// New builds a Generator backed by client.
func New(client inference.LLMClient) *Generator {
	return &Generator{client: client}
}

// Score judges the trajectory ending at node. Per §4.H the generator MUST
// be skipped for duplicate nodes and nodes with no observation; Score
// refuses both cases itself so a caller that forgets the check fails loud
// rather than silently scoring a duplicate.
func (g *Generator) Score(ctx context.Context, problemStatement string, trajectory []*mcts.ActionNode, node *mcts.ActionNode) (*mcts.Reward, error) {
	if node == nil {
		return nil, fmt.Errorf("reward: nil node")
	}
	if node.IsDuplicate {
		return nil, fmt.Errorf("reward: node %d is a duplicate, not eligible for scoring", node.Index)
	}
	if node.Observation == nil {
		return nil, fmt.Errorf("reward: node %d has no observation, not eligible for scoring", node.Index)
	}

	messages := inference.BuildMessages(problemStatement, trajectory, nil)
	messages = append(messages, inference.ConversationMessage{
		Role:    inference.RoleUser,
		Content: judgePrompt(node),
	})

	def := inference.ToolDefinition{
		Name:             reportRewardTool,
		Description:      "Report a numeric reward (0-100) for the most recent action, with a short justification.",
		ParametersSchema: reportRewardSchema,
	}

	chunks, err := g.client.Generate(ctx, inference.GenerateInput{
		Messages: messages,
		Tools:    []inference.ToolDefinition{def},
	})
	if err != nil {
		return nil, err
	}

	var args string
	for chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch c := chunk.(type) {
		case *inference.ToolCallChunk:
			if c.Name == reportRewardTool {
				args = c.Arguments
			}
		case *inference.ErrorChunk:
			if !c.Retryable {
				return nil, fmt.Errorf("reward: %s", c.Message)
			}
		}
	}

	if args == "" {
		return nil, fmt.Errorf("reward: no report_reward call in response")
	}

	var parsed struct {
		Value       int    `json:"value"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return nil, fmt.Errorf("reward: malformed report_reward arguments: %w", err)
	}

	return &mcts.Reward{
		Value:         clamp(parsed.Value, 0, 100),
		Justification: strings.TrimSpace(parsed.Explanation),
	}, nil
}

func judgePrompt(node *mcts.ActionNode) string {
	var b strings.Builder
	b.WriteString("Judge the outcome of the most recent action against the goal.\n")
	if node.Observation.Message != "" {
		b.WriteString("Observation: ")
		b.WriteString(node.Observation.Message)
		b.WriteString("\n")
	}
	if node.Observation.Summary != "" {
		b.WriteString("Summary: ")
		b.WriteString(node.Observation.Summary)
		b.WriteString("\n")
	}
	b.WriteString("Score 0-100: 75+ is high value, 90+ is very high value, 100 means the task is fully solved.\n")
	b.WriteString("Call report_reward with your value and a one-sentence explanation.")
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
