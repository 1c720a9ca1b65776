package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	stdsql "database/sql"
)

// newTestStore spins up a disposable Postgres container, applies the
// ledger's embedded migrations against it, and returns a ready Store.
func newTestStore(t *testing.T) *Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, runMigrations(db, "test"))

	store := FromDB(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreHealth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	health, err := store.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestRecordAndListLLMInteractions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := LLMInteraction{
		ID:              "interaction-1",
		SessionID:       "session-1",
		NodeIndex:       0,
		InteractionType: "next_action",
		ModelName:       "claude-sonnet",
		Request:         []byte(`{"messages":[]}`),
		Response:        []byte(`{"tool":"read_file"}`),
	}
	require.NoError(t, store.RecordLLMInteraction(ctx, rec))

	got, err := store.ListLLMInteractions(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "interaction-1", got[0].ID)
	assert.Equal(t, "next_action", got[0].InteractionType)

	fetched, err := store.GetLLMInteraction(ctx, "interaction-1")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", fetched.ModelName)
}

func TestRecordAndListToolInteractions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := ToolInteraction{
		ID:              "tool-interaction-1",
		SessionID:       "session-1",
		NodeIndex:       1,
		InteractionType: "tool_call",
		ToolType:        "read_file",
		ToolInput:       []byte(`{"path":"main.go"}`),
		ToolResult:      []byte(`{"content":"package main"}`),
	}
	require.NoError(t, store.RecordToolInteraction(ctx, rec))

	got, err := store.ListToolInteractions(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "read_file", got[0].ToolType)
}

func TestSearchLLMResponses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordLLMInteraction(ctx, LLMInteraction{
		ID: "r1", SessionID: "session-1", InteractionType: "next_action",
		ModelName: "claude-sonnet",
		Request:   []byte(`{}`),
		Response:  []byte(`{"summary":"critical error in production cluster"}`),
	}))
	require.NoError(t, store.RecordLLMInteraction(ctx, LLMInteraction{
		ID: "r2", SessionID: "session-1", InteractionType: "next_action",
		ModelName: "claude-sonnet",
		Request:   []byte(`{}`),
		Response:  []byte(`{"summary":"high memory usage warning"}`),
	}))

	results, err := store.SearchLLMResponses(ctx, "session-1", "error & production")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].ID)

	results2, err := store.SearchLLMResponses(ctx, "session-1", "memory")
	require.NoError(t, err)
	require.Len(t, results2, 1)
	assert.Equal(t, "r2", results2[0].ID)
}
