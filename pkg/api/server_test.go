package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsiersync/forgecode/pkg/config"
	"github.com/tarsiersync/forgecode/pkg/inference"
	"github.com/tarsiersync/forgecode/pkg/outline"
	"github.com/tarsiersync/forgecode/pkg/reward"
	"github.com/tarsiersync/forgecode/pkg/session"
	"github.com/tarsiersync/forgecode/pkg/tracking"
)

// sequencedClient replays one scripted response per call, mirroring
// pkg/session's own test double.
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

func testServer(t *testing.T, client *sequencedClient) *Server {
	t.Helper()
	tools := []outline.ToolType{outline.ToolAttemptCompletion}
	mgr := session.NewManager(t.TempDir())
	engine := inference.New(client, tools)
	rewards := reward.New(client)
	tracker := tracking.NewRegistry()
	loop := session.NewLoop(mgr, engine, rewards, session.StubToolExecutor{}, tracker, nil)

	cfg := &config.Config{
		Defaults:            config.DefaultDefaults(),
		Tools:               tools,
		LLMProviderRegistry: config.NewLLMProviderRegistry(map[string]*config.LLMProviderConfig{}),
	}

	return NewServer(cfg, nil, mgr, loop, tracker)
}

func TestCreateAndGetSession(t *testing.T) {
	s := testServer(t, &sequencedClient{})
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	body, _ := json.Marshal(CreateSessionRequest{ProblemStatement: "fix the bug", RootDirectory: t.TempDir()})
	resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, session.StatusIdle, created.Status)

	resp2, err := http.Get(ts.URL + "/api/v1/sessions/" + created.ID)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestGetSessionNotFound(t *testing.T) {
	s := testServer(t, &sequencedClient{})
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/sessions/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitTurnCompletesOnAttemptCompletion(t *testing.T) {
	client := &sequencedClient{calls: [][]inference.Chunk{
		{&inference.ToolCallChunk{CallID: "1", Name: "AttemptCompletion", Arguments: `{"final_message":"done"}`}},
	}}
	s := testServer(t, client)
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	createBody, _ := json.Marshal(CreateSessionRequest{ProblemStatement: "fix the bug", RootDirectory: t.TempDir()})
	createResp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", bytes.NewReader(createBody))
	require.NoError(t, err)
	var created SessionResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()

	turnBody, _ := json.Marshal(SubmitTurnRequest{Message: "please fix it"})
	turnResp, err := http.Post(ts.URL+"/api/v1/sessions/"+created.ID+"/turns", "application/json", bytes.NewReader(turnBody))
	require.NoError(t, err)
	defer turnResp.Body.Close()
	require.Equal(t, http.StatusOK, turnResp.StatusCode)

	var result TurnResponse
	require.NoError(t, json.NewDecoder(turnResp.Body).Decode(&result))
	assert.Equal(t, session.StatusCompleted, result.Status)
	assert.Equal(t, "done", result.FinalMessage)
}

func TestCancelWithNoTurnInProgress(t *testing.T) {
	s := testServer(t, &sequencedClient{})
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/sessions/some-id/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result CancelResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Cancelled)
}

func TestStreamRelaysTimelineUntilDone(t *testing.T) {
	client := &sequencedClient{calls: [][]inference.Chunk{
		{&inference.ToolCallChunk{CallID: "1", Name: "AttemptCompletion", Arguments: `{"final_message":"done"}`}},
	}}
	s := testServer(t, client)
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	createBody, _ := json.Marshal(CreateSessionRequest{ProblemStatement: "fix the bug", RootDirectory: t.TempDir()})
	createResp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", bytes.NewReader(createBody))
	require.NoError(t, err)
	var created SessionResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+created.ID+"/stream", nil)
	require.NoError(t, err)

	go func() {
		turnBody, _ := json.Marshal(SubmitTurnRequest{Message: "please fix it"})
		resp, err := http.Post(ts.URL+"/api/v1/sessions/"+created.ID+"/turns", "application/json", bytes.NewReader(turnBody))
		if err == nil {
			resp.Body.Close()
		}
	}()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "event:")
}
