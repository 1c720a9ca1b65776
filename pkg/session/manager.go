package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tarsiersync/forgecode/pkg/mcts"
	"github.com/tarsiersync/forgecode/pkg/outline"
)

// Manager owns the in-memory session set and its on-disk mirror under
// sessionDir, one file per session at <session_dir>/<session_id>.json
// (§4.I step 5.a, §5 "on-disk session file... mutated by atomic write").
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	sessionDir string
}

// NewManager returns a Manager persisting to sessionDir. The directory is
// created lazily on first save.
func NewManager(sessionDir string) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		sessionDir: sessionDir,
	}
}

// Create starts a fresh session over rootDirectory for a problem
// statement, with the given tool catalog driving the search tree (§4.I
// step 1 "create empty with the configured tool set").
func (m *Manager) Create(problemStatement, rootDirectory, repoName string, maxExpansions, maxDepth, maxIterations int, tools []outline.ToolType, selector *mcts.Selector) *Session {
	tree := mcts.NewSearchTree(problemStatement, maxExpansions, maxDepth, maxIterations, selector)
	tree.Tools = tools
	tree.RootDirectory = rootDirectory
	tree.RepoName = repoName

	now := time.Now()
	sess := &Session{
		ID:               uuid.New().String(),
		RootDirectory:    rootDirectory,
		RepoName:         repoName,
		ProblemStatement: problemStatement,
		Tree:             tree,
		Status:           StatusIdle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

// Get returns an already-loaded session by id, or loads it from disk if
// this is the first reference since process start (§4.I step 1 "load
// session from storage if present").
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sess, err := m.loadFromDisk(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		sess = existing
	} else {
		m.sessions[id] = sess
	}
	m.mu.Unlock()
	return sess, nil
}

// List returns a read-only snapshot of every loaded session.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// Delete forgets id both in memory and on disk.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	err := os.Remove(m.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

// Persist atomically writes sess to disk: temp file in the same directory
// followed by rename, so a crash mid-write never leaves a truncated file
// in place (same discipline as the applicator's writeFileAtomically).
func (m *Manager) Persist(sess *Session) error {
	sess.mu.RLock()
	data, err := json.MarshalIndent(sess, "", "  ")
	sess.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", sess.ID, err)
	}

	if err := os.MkdirAll(m.sessionDir, 0o755); err != nil {
		return fmt.Errorf("session: create session dir: %w", err)
	}

	path := m.path(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", sess.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("session: rename %s: %w", sess.ID, err)
	}
	return nil
}

func (m *Manager) loadFromDisk(id string) (*Session, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &sess, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.sessionDir, id+".json")
}
