package session

import (
	"context"
	"fmt"

	"github.com/tarsiersync/forgecode/pkg/outline"
)

// ToolExecutor abstracts concrete tool execution (filesystem, editor,
// terminal, LSP, MCP...) away from the hot loop, the way the teacher's
// agent.ToolExecutor decouples iteration controllers from MCP transport.
type ToolExecutor interface {
	// Execute runs action and returns the resulting observation. It
	// receives the turn's ctx; the hot loop checks the exchange's
	// cancellation token only before each iteration, so firing the token
	// does not interrupt an Execute call already in progress.
	Execute(ctx context.Context, action outline.ActionToolParameters) (*outline.ActionObservation, error)
}

// StubToolExecutor returns a canned observation for every call, mirroring
// the teacher's StubToolExecutor — useful for tests and for wiring the
// hot loop before a concrete executor (filesystem/editor/MCP) exists.
type StubToolExecutor struct{}

// Execute returns a fixed, non-terminal observation describing the call.
func (StubToolExecutor) Execute(_ context.Context, action outline.ActionToolParameters) (*outline.ActionObservation, error) {
	toolType, ok := action.ToToolType()
	if !ok {
		return nil, fmt.Errorf("session: stub executor given an errored action")
	}
	return &outline.ActionObservation{
		Message:  fmt.Sprintf("[stub] %s called with %s", toolType, action.CanonicalString()),
		Terminal: toolType.IsTerminal(),
	}, nil
}
