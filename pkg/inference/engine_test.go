package inference

import (
	"context"
	"testing"

	"github.com/tarsiersync/forgecode/pkg/mcts"
	"github.com/tarsiersync/forgecode/pkg/outline"
)

type scriptedClient struct {
	responses [][]Chunk
	calls     int
	temps     []float64
}

func (c *scriptedClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	c.temps = append(c.temps, input.Temperature)
	idx := c.calls
	c.calls++
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	ch := make(chan Chunk, len(c.responses[idx]))
	for _, chunk := range c.responses[idx] {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (c *scriptedClient) Close() error { return nil }

func TestNextActionParsesValidToolCall(t *testing.T) {
	client := &scriptedClient{responses: [][]Chunk{
		{&ToolCallChunk{CallID: "1", Name: "SearchFileContentWithRegex", Arguments: `{"regex":"foo"}`}},
	}}
	engine := New(client, []outline.ToolType{outline.ToolSearchFileContentWithRegex})

	result, err := engine.NextAction(context.Background(), "find foo", nil)
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if result.Action.IsErrored() {
		t.Fatalf("expected a parsed action, got errored: %s", result.Action.ErrorReason)
	}
	toolType, ok := result.Action.ToToolType()
	if !ok || toolType != outline.ToolSearchFileContentWithRegex {
		t.Fatalf("unexpected tool type: %v ok=%v", toolType, ok)
	}
}

func TestNextActionRetriesOnMalformedThenSucceeds(t *testing.T) {
	client := &scriptedClient{responses: [][]Chunk{
		{&TextChunk{Content: "no tool call here"}},
		{&ToolCallChunk{CallID: "2", Name: "FindFiles", Arguments: `{"glob":"*.go"}`}},
	}}
	engine := New(client, []outline.ToolType{outline.ToolFindFiles})

	result, err := engine.NextAction(context.Background(), "find go files", nil)
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if result.Action.IsErrored() {
		t.Fatalf("expected eventual success, got errored: %s", result.Action.ErrorReason)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", client.calls)
	}
	if client.temps[1] <= client.temps[0] {
		t.Fatalf("expected temperature to escalate across retries: %v", client.temps)
	}
}

func TestNextActionReturnsErroredAfterMaxRetries(t *testing.T) {
	responses := make([][]Chunk, MaxRetries+2)
	for i := range responses {
		responses[i] = []Chunk{&TextChunk{Content: "still no tool call"}}
	}
	client := &scriptedClient{responses: responses}
	engine := New(client, []outline.ToolType{outline.ToolFindFiles})

	result, err := engine.NextAction(context.Background(), "find go files", nil)
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if !result.Action.IsErrored() {
		t.Fatalf("expected an errored action once retries are exhausted")
	}
	if client.calls != MaxRetries+1 {
		t.Fatalf("expected MaxRetries+1 (%d) calls with >= comparison, got %d", MaxRetries+1, client.calls)
	}
}

func TestNextActionIncludesTrajectoryInPrompt(t *testing.T) {
	client := &scriptedClient{responses: [][]Chunk{
		{&ToolCallChunk{CallID: "3", Name: "AttemptCompletion", Arguments: `{"final_message":"done"}`}},
	}}
	engine := New(client, []outline.ToolType{outline.ToolAttemptCompletion})

	tree := mcts.NewSearchTree("fix the bug", 3, 10, 50, mcts.NewDefaultSelector())
	prior, _ := tree.Expand(0, outline.NewActionToolParameters("0", outline.SearchFileContentWithRegexInput{Regex: "foo"}))
	prior.Observation = &outline.ActionObservation{Message: "found 3 matches"}

	_, err := engine.NextAction(context.Background(), "fix the bug", tree.Trajectory(prior.Index))
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
}
