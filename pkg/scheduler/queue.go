package scheduler

import (
	"container/heap"
	"sync"

	"github.com/aegislabs/aegis/pkg/types"
)

// queueItem wraps a task with the bookkeeping the heap needs. seq preserves
// FIFO order among equal priorities. priority is a copy taken at push time
// so heap comparisons never read the shared task under the queue's lock.
type queueItem struct {
	task     *types.Task
	done     chan *types.TaskResult
	priority types.Priority
	seq      uint64
	index    int
}

// taskHeap orders items by priority first (critical before low), then by
// insertion sequence.
type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// taskQueue is the thread-safe priority queue feeding the workers.
type taskQueue struct {
	mu   sync.Mutex
	heap taskHeap
	byID map[string]*queueItem
	seq  uint64
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{byID: make(map[string]*queueItem)}
	heap.Init(&q.heap)
	return q
}

func (q *taskQueue) push(task *types.Task, done chan *types.TaskResult) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	item := &queueItem{task: task, done: done, priority: task.Priority, seq: q.seq}
	heap.Push(&q.heap, item)
	q.byID[task.ID] = item
}

// pop removes and returns the highest-priority item, or nil when empty.
func (q *taskQueue) pop() *queueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.heap).(*queueItem)
	delete(q.byID, item.task.ID)
	return item
}

// reprioritize updates a queued task's priority and restores heap order.
// Returns false if the task is no longer queued.
func (q *taskQueue) reprioritize(id string, p types.Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.byID[id]
	if !ok {
		return false
	}
	item.priority = p
	heap.Fix(&q.heap, item.index)
	return true
}

// remove drops a queued task. Returns the removed item, or nil if the task
// is no longer queued.
func (q *taskQueue) remove(id string) *queueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(&q.heap, item.index)
	delete(q.byID, id)
	return item
}

func (q *taskQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
