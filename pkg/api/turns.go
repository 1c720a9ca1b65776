package api

import (
	"context"
	"sync"
)

// turnRegistry tracks the in-flight turn for each session so that
// POST /api/v1/sessions/:id/cancel — which only carries a session id — can
// reach the right turn's cancellation without the caller needing to know
// the exchange id Loop.Turn allocates internally.
type turnRegistry struct {
	mu     sync.Mutex
	cancel map[string]context.CancelFunc
}

func newTurnRegistry() *turnRegistry {
	return &turnRegistry{cancel: make(map[string]context.CancelFunc)}
}

// start registers cancel as the way to abort sessionID's current turn and
// returns a context derived from parent that fires when either the parent
// or this turn's own cancellation is triggered.
func (r *turnRegistry) start(parent context.Context, sessionID string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.cancel[sessionID] = cancel
	r.mu.Unlock()
	return ctx
}

// finish forgets sessionID's in-flight turn, releasing the context.
func (r *turnRegistry) finish(sessionID string) {
	r.mu.Lock()
	cancel, ok := r.cancel[sessionID]
	delete(r.cancel, sessionID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// cancelTurn fires sessionID's in-flight turn's cancellation, if any, and
// reports whether one was found.
func (r *turnRegistry) cancelTurn(sessionID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancel[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
