package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsiersync/forgecode/pkg/inference"
	"github.com/tarsiersync/forgecode/pkg/outline"
	"github.com/tarsiersync/forgecode/pkg/reward"
	"github.com/tarsiersync/forgecode/pkg/tracking"
)

// sequencedClient replays one scripted response per call, in order, so a
// test can script exactly what the engine sees on each NextAction/Score
// round-trip without caring which prompt it was asked.
type sequencedClient struct {
	mu    sync.Mutex
	calls [][]inference.Chunk
	idx   int
}

func (c *sequencedClient) Generate(_ context.Context, _ inference.GenerateInput) (<-chan inference.Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx >= len(c.calls) {
		return nil, fmt.Errorf("sequencedClient: no more scripted calls")
	}
	chunks := c.calls[c.idx]
	c.idx++

	ch := make(chan inference.Chunk, len(chunks))
	for _, chunk := range chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (c *sequencedClient) Close() error { return nil }

func newLoop(t *testing.T, client *sequencedClient, tools []outline.ToolType) (*Loop, *Manager) {
	t.Helper()
	mgr := NewManager(t.TempDir())
	engine := inference.New(client, tools)
	rewards := reward.New(client)
	tracker := tracking.NewRegistry()
	loop := NewLoop(mgr, engine, rewards, StubToolExecutor{}, tracker, nil)
	return loop, mgr
}

func TestTurnCompletesOnAttemptCompletion(t *testing.T) {
	client := &sequencedClient{calls: [][]inference.Chunk{
		{&inference.ToolCallChunk{CallID: "1", Name: "AttemptCompletion", Arguments: `{"final_message":"done"}`}},
		{&inference.ToolCallChunk{CallID: "2", Name: "report_reward", Arguments: `{"value":90,"explanation":"solved it"}`}},
	}}
	loop, mgr := newLoop(t, client, []outline.ToolType{outline.ToolAttemptCompletion})

	sess := mgr.Create("fix the bug", t.TempDir(), "myrepo", 3, 5, 10, []outline.ToolType{outline.ToolAttemptCompletion}, nil)

	result, err := loop.Turn(context.Background(), sess, "please fix it")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "done", result.FinalMessage)

	assert.Equal(t, StatusCompleted, sess.Status)
	visible := sess.visibleExchanges()
	require.Len(t, visible, 2)
	assert.Equal(t, ExchangeHuman, visible[0].Kind)
	assert.Equal(t, ExchangeToolUse, visible[1].Kind)
}

func TestTurnRecordsErroredActionAndContinues(t *testing.T) {
	// NextAction retries a malformed (no-tool-call) response internally
	// up to inference.MaxRetries times before giving up and returning an
	// Errored action, so the first hot-loop iteration burns one scripted
	// no-tool-call response per attempt (MaxRetries+1 total).
	malformed := &inference.TextChunk{Content: "no tool call here"}
	calls := make([][]inference.Chunk, 0, inference.MaxRetries+1)
	for i := 0; i <= inference.MaxRetries; i++ {
		calls = append(calls, []inference.Chunk{malformed})
	}
	calls = append(calls,
		[]inference.Chunk{&inference.ToolCallChunk{CallID: "1", Name: "AttemptCompletion", Arguments: `{"final_message":"recovered"}`}},
		[]inference.Chunk{&inference.ToolCallChunk{CallID: "2", Name: "report_reward", Arguments: `{"value":60,"explanation":"ok"}`}},
	)
	client := &sequencedClient{calls: calls}
	loop, mgr := newLoop(t, client, []outline.ToolType{outline.ToolAttemptCompletion})

	sess := mgr.Create("fix the bug", t.TempDir(), "myrepo", 3, 5, 10, []outline.ToolType{outline.ToolAttemptCompletion}, nil)

	result, err := loop.Turn(context.Background(), sess, "please fix it")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "recovered", result.FinalMessage)

	// the first, malformed attempt left behind a hidden-free tool_use
	// exchange pointing at an errored, non-terminal node.
	node, ok := sess.Tree.GetNode(1)
	require.True(t, ok)
	require.NotNil(t, node.Observation)
	assert.True(t, node.Observation.ExpectCorrection)
}

func TestTurnStopsOnCancellation(t *testing.T) {
	client := &sequencedClient{}
	loop, mgr := newLoop(t, client, []outline.ToolType{outline.ToolAttemptCompletion})

	sess := mgr.Create("fix the bug", t.TempDir(), "myrepo", 3, 5, 10, []outline.ToolType{outline.ToolAttemptCompletion}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := loop.Turn(ctx, sess, "please fix it")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, result.Status)
}
