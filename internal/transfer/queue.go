package transfer

import (
	"container/heap"
	"sort"
)

// pendingQueue orders tasks by (priority desc, enqueue_time asc). It is
// a thin container/heap wrapper; all access is through the owning
// Scheduler's mutex.
type pendingQueue struct {
	items []*Task
}

func (q *pendingQueue) Len() int { return len(q.items) }

func (q *pendingQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}

	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

func (q *pendingQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pendingQueue) Push(x any) { q.items = append(q.items, x.(*Task)) }

func (q *pendingQueue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]

	return item
}

// newPendingQueue creates an empty, heap-initialized queue.
func newPendingQueue() *pendingQueue {
	q := &pendingQueue{}
	heap.Init(q)

	return q
}

// push adds t to the queue, maintaining heap order.
func (q *pendingQueue) push(t *Task) { heap.Push(q, t) }

// pop removes and returns the highest-priority, earliest-enqueued task.
// Returns nil if the queue is empty.
func (q *pendingQueue) pop() *Task {
	if q.Len() == 0 {
		return nil
	}

	return heap.Pop(q).(*Task)
}

// remove deletes the task with the given id from the queue, if present.
// Used by move_up/down, set_priority (remove+reinsert) and cancel.
func (q *pendingQueue) remove(id uint64) *Task {
	for i, t := range q.items {
		if t.ID == id {
			heap.Remove(q, i)
			return t
		}
	}

	return nil
}

// list returns a snapshot of pending tasks in priority order without
// mutating the queue.
func (q *pendingQueue) list() []*Task {
	cp := make([]*Task, len(q.items))
	copy(cp, q.items)

	// container/heap's slice is only partially ordered; sort a copy for
	// display purposes using the same comparator.
	sort.Slice(cp, func(i, j int) bool {
		a, b := cp[i], cp[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		return a.EnqueuedAt.Before(b.EnqueuedAt)
	})

	return cp
}
