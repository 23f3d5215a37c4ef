package scheduler

import (
	"testing"

	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id string, p types.Priority) *types.Task {
	return &types.Task{ID: id, Priority: p}
}

func TestQueueOrdersByPriorityThenFIFO(t *testing.T) {
	q := newTaskQueue()
	q.push(task("t1", types.PriorityLow), nil)
	q.push(task("t2", types.PriorityCritical), nil)
	q.push(task("t3", types.PriorityMedium), nil)
	q.push(task("t4", types.PriorityCritical), nil)

	var order []string
	for item := q.pop(); item != nil; item = q.pop() {
		order = append(order, item.task.ID)
	}
	assert.Equal(t, []string{"t2", "t4", "t3", "t1"}, order)
}

func TestQueueCopiesPriorityAtPush(t *testing.T) {
	q := newTaskQueue()
	t1 := task("t1", types.PriorityLow)
	q.push(t1, nil)
	q.push(task("t2", types.PriorityMedium), nil)

	// Heap order depends only on the queue's own copy: mutating the shared
	// task after push changes nothing until reprioritize goes through the
	// queue's lock.
	t1.Priority = types.PriorityCritical
	first := q.pop()
	require.NotNil(t, first)
	assert.Equal(t, "t2", first.task.ID)

	q.push(t1, nil)
	next := q.pop()
	require.NotNil(t, next)
	assert.Equal(t, types.PriorityCritical, next.priority)
}

func TestQueuePopEmpty(t *testing.T) {
	q := newTaskQueue()
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.depth())
}

func TestQueueReprioritize(t *testing.T) {
	q := newTaskQueue()
	q.push(task("t1", types.PriorityLow), nil)
	q.push(task("t2", types.PriorityMedium), nil)

	require.True(t, q.reprioritize("t1", types.PriorityCritical))
	assert.False(t, q.reprioritize("missing", types.PriorityHigh))

	first := q.pop()
	require.NotNil(t, first)
	assert.Equal(t, "t1", first.task.ID)
}

func TestQueueRemove(t *testing.T) {
	q := newTaskQueue()
	q.push(task("t1", types.PriorityMedium), nil)
	q.push(task("t2", types.PriorityMedium), nil)

	removed := q.remove("t1")
	require.NotNil(t, removed)
	assert.Equal(t, "t1", removed.task.ID)
	assert.Nil(t, q.remove("t1"))
	assert.Equal(t, 1, q.depth())

	next := q.pop()
	require.NotNil(t, next)
	assert.Equal(t, "t2", next.task.ID)
}
