// Package applicator composes the edit-stream accumulator (pkg/editstream)
// with the file-lock registry (pkg/filelock) and an HTTP client to the
// editor, turning a raw LLM delta stream into applied file edits and
// editor-visible edit events (§4.D).
package applicator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tarsiersync/forgecode/pkg/apperrors"
	"github.com/tarsiersync/forgecode/pkg/outline"
)

// EditKind discriminates the wire shape of EditedCodeStreamingRequest
// (§6): start, delta (carrying text), or end.
type EditKind string

const (
	EditKindStart EditKind = "start"
	EditKindDelta EditKind = "delta"
	EditKindEnd   EditKind = "end"
)

// EditedCodeStreamingRequest is the body posted to the editor's
// /apply_edits_streamed endpoint.
type EditedCodeStreamingRequest struct {
	EditRequestID string         `json:"edit_request_id"`
	SessionID     string         `json:"session_id"`
	Range         outline.Range  `json:"range"`
	FsFilePath    string         `json:"fs_file_path"`
	ExchangeID    string         `json:"exchange_id"`
	PlanStepID    string         `json:"plan_step_id,omitempty"`
	Kind          EditKind       `json:"kind"`
	Text          string         `json:"text,omitempty"`
}

// OutlineNodesResponse is the body returned by /get_outline_nodes.
type OutlineNodesResponse struct {
	FileContent  string                   `json:"file_content"`
	OutlineNodes []outline.DocumentSymbol `json:"outline_nodes"`
	Language     string                   `json:"language"`
}

// EditorClient is the thin HTTP client side of §6's editor surface. The
// wire format itself is out of this core's scope (§1); this client only
// needs to exist so the applicator has something real to call.
type EditorClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewEditorClient builds a client against baseURL (e.g.
// "http://127.0.0.1:42424"). A nil httpClient defaults to http.DefaultClient.
func NewEditorClient(baseURL string, httpClient *http.Client) *EditorClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EditorClient{httpClient: httpClient, baseURL: baseURL}
}

// SendEdit posts a single EditedCodeStreamingRequest.
func (c *EditorClient) SendEdit(ctx context.Context, req EditedCodeStreamingRequest) error {
	return c.postJSON(ctx, "/apply_edits_streamed", req, nil)
}

// GetOutlineNodes fetches the outline for fsFilePath from the editor at
// editorURL.
func (c *EditorClient) GetOutlineNodes(ctx context.Context, fsFilePath, editorURL string) (*OutlineNodesResponse, error) {
	body := struct {
		FsFilePath string `json:"fs_file_path"`
		EditorURL  string `json:"editor_url"`
	}{FsFilePath: fsFilePath, EditorURL: editorURL}

	var resp OutlineNodesResponse
	if err := c.postJSON(ctx, "/get_outline_nodes", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *EditorClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.NewSerdeError(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewIOError(c.baseURL+path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.NewIOError(c.baseURL+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apperrors.NewIOError(c.baseURL+path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewSerdeError(err)
	}
	return nil
}
