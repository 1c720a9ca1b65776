package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreateAndGet(t *testing.T) {
	mgr := NewManager(t.TempDir())

	sess := mgr.Create("fix the bug", "/repo", "myrepo", 3, 5, 10, nil, nil)
	require.NotEmpty(t, sess.ID)

	fetched, err := mgr.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, fetched)
}

func TestManagerPersistAndLoadFromDisk(t *testing.T) {
	mgr := NewManager(t.TempDir())
	sess := mgr.Create("fix the bug", "/repo", "myrepo", 3, 5, 10, nil, nil)
	sess.appendExchange(Exchange{ID: "e1", Kind: ExchangeHuman, Content: "hello"})

	require.NoError(t, mgr.Persist(sess))

	reloaded := NewManager(mgr.sessionDir)
	fetched, err := reloaded.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, fetched.ID)
	assert.Equal(t, sess.ProblemStatement, fetched.ProblemStatement)
	require.Len(t, fetched.Exchanges, 1)
	assert.Equal(t, "hello", fetched.Exchanges[0].Content)
}

func TestManagerDeleteRemovesFromDiskAndMemory(t *testing.T) {
	mgr := NewManager(t.TempDir())
	sess := mgr.Create("fix the bug", "/repo", "myrepo", 3, 5, 10, nil, nil)
	require.NoError(t, mgr.Persist(sess))

	require.NoError(t, mgr.Delete(sess.ID))

	_, err := mgr.Get(sess.ID)
	assert.Error(t, err)
}

func TestSessionHideFromAndLastVisibleToolUseNodeIndex(t *testing.T) {
	sess := &Session{}
	sess.appendExchange(Exchange{ID: "a", Kind: ExchangeToolUse, NodeIndex: 1})
	sess.appendExchange(Exchange{ID: "b", Kind: ExchangeToolUse, NodeIndex: 2})
	sess.appendExchange(Exchange{ID: "c", Kind: ExchangeHuman})

	idx, ok := sess.lastVisibleToolUseNodeIndex("c")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	require.True(t, sess.hideFrom("b"))
	assert.True(t, sess.Exchanges[1].Hidden)
	assert.True(t, sess.Exchanges[2].Hidden)
	assert.False(t, sess.Exchanges[0].Hidden)

	idx, ok = sess.lastVisibleToolUseNodeIndex("c")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	assert.Len(t, sess.visibleExchanges(), 1)
}
