// Package session implements the session hot loop (§4.I): per-turn
// dispatch through the MCTS tree and inference engine, undo/checkpoint,
// reasoning mode, hot-streak follow-up, and atomic on-disk persistence.
package session

import (
	"sync"
	"time"

	"github.com/tarsiersync/forgecode/pkg/mcts"
)

// ExchangeKind is the closed set of exchange roles a turn can append.
type ExchangeKind string

const (
	ExchangeHuman    ExchangeKind = "human"
	ExchangeToolUse  ExchangeKind = "tool_use"
	ExchangeReasoning ExchangeKind = "reasoning"
)

// Status is the session's overall lifecycle state.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusRunning        Status = "running"
	StatusAwaitingUser   Status = "awaiting_user"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

// Exchange is one turn's worth of conversational bookkeeping: a human
// message, or the tree-node index a tool-use/reasoning turn produced.
// Exchanges hidden by an undo/checkpoint move stay in the log until the
// next Turn drops them (§4.I "truncate hidden exchanges").
type Exchange struct {
	ID              string       `json:"id"`
	Kind            ExchangeKind `json:"kind"`
	Content         string       `json:"content,omitempty"`
	NodeIndex       int          `json:"node_index,omitempty"`
	Hidden          bool         `json:"hidden"`
	HotStreakWorthy bool         `json:"hot_streak_worthy,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Session is the persisted unit of work: one problem statement, one
// search tree, and the ordered exchange log layered over it.
type Session struct {
	mu sync.RWMutex

	ID               string           `json:"id"`
	RootDirectory    string           `json:"root_directory"`
	RepoName         string           `json:"repo_name"`
	ProblemStatement string           `json:"problem_statement"`
	Tree             *mcts.SearchTree `json:"tree"`
	Exchanges        []Exchange       `json:"exchanges"`
	Status           Status           `json:"status"`
	ReasoningNodes    int             `json:"reasoning_nodes"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// visibleExchanges returns the exchange log with hidden entries removed,
// in order (§4.I step 2 "truncate hidden exchanges").
func (s *Session) visibleExchanges() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := make([]Exchange, 0, len(s.Exchanges))
	for _, e := range s.Exchanges {
		if !e.Hidden {
			visible = append(visible, e)
		}
	}
	return visible
}

// appendExchange appends e to the log and bumps UpdatedAt.
func (s *Session) appendExchange(e Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Exchanges = append(s.Exchanges, e)
	s.UpdatedAt = time.Now()
}

// setStatus updates Status and UpdatedAt under lock.
func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.UpdatedAt = time.Now()
}

// hideFrom marks exchangeID and everything after it as hidden, per the
// undo/checkpoint/delete-until semantics (§4.I): all three are the same
// operation under different names.
func (s *Session) hideFrom(exchangeID string) (found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hiding := false
	for i := range s.Exchanges {
		if s.Exchanges[i].ID == exchangeID {
			hiding = true
			found = true
		}
		if hiding {
			s.Exchanges[i].Hidden = true
		}
	}
	if found {
		s.UpdatedAt = time.Now()
	}
	return found
}

// lastVisibleToolUseNodeIndex returns the node index of the last visible
// tool-use/reasoning exchange strictly before the given exchange id, used
// to find the action node whose filesystem snapshot an undo should
// restore to.
func (s *Session) lastVisibleToolUseNodeIndex(beforeExchangeID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := -1
	found := false
	for _, e := range s.Exchanges {
		if e.ID == beforeExchangeID {
			break
		}
		if e.Hidden {
			continue
		}
		if e.Kind == ExchangeToolUse || e.Kind == ExchangeReasoning {
			last = e.NodeIndex
			found = true
		}
	}
	return last, found
}

// Clone returns a value copy safe for concurrent reads (e.g. serving a
// status snapshot over HTTP while the hot loop keeps mutating the
// original).
func (s *Session) Clone() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := make([]Exchange, len(s.Exchanges))
	copy(exchanges, s.Exchanges)

	return Session{
		ID:               s.ID,
		RootDirectory:    s.RootDirectory,
		RepoName:         s.RepoName,
		ProblemStatement: s.ProblemStatement,
		Tree:             s.Tree,
		Exchanges:        exchanges,
		Status:           s.Status,
		ReasoningNodes:   s.ReasoningNodes,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}
