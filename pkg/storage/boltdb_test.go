package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTaskRoundTrip(t *testing.T) {
	store := newTestStore(t)

	task := &types.Task{
		ID:       "t1",
		Type:     types.TaskTypeResearch,
		Priority: types.PriorityHigh,
		Title:    "survey vendors",
		Payload:  map[string]any{"depth": "full"},
	}
	require.NoError(t, store.PutTask(task))

	got, err := store.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, task.Priority, got.Priority)

	tasks, err := store.ListTasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, store.DeleteTask("t1"))
	_, err = store.GetTask("t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTaskNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetTask("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendAuditAssignsSequence(t *testing.T) {
	store := newTestStore(t)

	for i := 1; i <= 3; i++ {
		entry, err := store.AppendAudit(func(nextSeq uint64, prevHash string) (*types.AuditEntry, error) {
			return &types.AuditEntry{
				ID:             fmt.Sprintf("e%d", nextSeq),
				SequenceNumber: nextSeq,
				Timestamp:      time.Now().UTC(),
				Actor:          "test",
				Action:         "noop",
				PreviousHash:   prevHash,
				Hash:           fmt.Sprintf("h%d", nextSeq),
			}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), entry.SequenceNumber)
	}

	// The builder sees the previous entry's hash.
	entry, err := store.AppendAudit(func(nextSeq uint64, prevHash string) (*types.AuditEntry, error) {
		assert.Equal(t, uint64(4), nextSeq)
		assert.Equal(t, "h3", prevHash)
		return &types.AuditEntry{SequenceNumber: nextSeq, PreviousHash: prevHash, Hash: "h4"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "h3", entry.PreviousHash)
}

func TestAppendAuditRejectsWrongSequence(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendAudit(func(nextSeq uint64, prevHash string) (*types.AuditEntry, error) {
		return &types.AuditEntry{SequenceNumber: nextSeq + 7}, nil
	})
	assert.Error(t, err)

	count, err := store.AuditCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestMemoryNamespacePrefix(t *testing.T) {
	store := newTestStore(t)

	for i, ns := range []string{"tasks", "tasks", "contacts"} {
		require.NoError(t, store.PutMemory(&types.MemoryEntry{
			ID:        fmt.Sprintf("m%d", i),
			Namespace: ns,
			Content:   "x",
			CreatedAt: time.Now(),
		}))
	}

	tasks, err := store.ListMemories("tasks")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	all, err := store.ListMemories("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.DeleteMemory("m0"))
	tasks, err = store.ListMemories("tasks")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestExecutionLogOrder(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendExecution(&types.ExecutionRecord{
			ID:     fmt.Sprintf("r%d", i),
			TaskID: fmt.Sprintf("t%d", i),
		}))
	}

	records, err := store.RecentExecutions(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, "r4", records[0].ID)
	assert.Equal(t, "r3", records[1].ID)
}

func TestToolManifests(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutToolManifest("http_fetch", map[string]any{
		"risk_level": "medium",
	}))

	manifests, err := store.ListToolManifests()
	require.NoError(t, err)
	require.Contains(t, manifests, "http_fetch")
	assert.Equal(t, "medium", manifests["http_fetch"]["risk_level"])
}

func TestSelfEvaluations(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.PutSelfEvaluation(&types.SelfEvaluation{
			ID:             fmt.Sprintf("ev%d", i),
			TasksProcessed: i,
			CreatedAt:      time.Now(),
		}))
	}

	evals, err := store.RecentSelfEvaluations(2)
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.Equal(t, "ev2", evals[0].ID)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping())
}
