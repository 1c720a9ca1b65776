package session

import (
	"context"
	"fmt"
)

// Undo hides exchangeID and everything after it, then resets the working
// tree to the filesystem snapshot recorded at the last tool-use exchange
// still visible before it (§4.I "Undo/checkpoint: ... the same operation
// under different names as 'delete until'"). sess.RootDirectory and baseCommit
// identify the checkout being restored.
func (l *Loop) Undo(ctx context.Context, sess *Session, exchangeID, baseCommit string) error {
	if !sess.hideFrom(exchangeID) {
		return fmt.Errorf("session: exchange %s not found", exchangeID)
	}

	nodeIndex, ok := sess.lastVisibleToolUseNodeIndex(exchangeID)
	if ok {
		node, found := sess.Tree.GetNode(nodeIndex)
		if found {
			if err := ResetFileSystem(ctx, sess.RootDirectory, baseCommit, node, l.locks); err != nil {
				return err
			}
		}
	}

	return l.manager.Persist(sess)
}

// Checkpoint is Undo's inverse use: callers pass the id of the last
// exchange they want preserved as the new tip, hiding everything after it.
// It shares hideFrom's semantics exactly, so it's implemented in terms of
// the same helper rather than duplicating it.
func (l *Loop) Checkpoint(ctx context.Context, sess *Session, keepThroughExchangeID, baseCommit string) error {
	visible := sess.visibleExchanges()
	var afterID string
	for i, e := range visible {
		if e.ID == keepThroughExchangeID && i+1 < len(visible) {
			afterID = visible[i+1].ID
			break
		}
	}
	if afterID == "" {
		return nil
	}
	return l.Undo(ctx, sess, afterID, baseCommit)
}
