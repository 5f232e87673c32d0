// Package frontier implements the bounded priority frontier of discovered
// URLs with normalized-key deduplication.
package frontier

import (
	"sort"

	"github.com/seedline/crawld/internal/crawl"
)

type entry[T any] struct {
	payload  T
	priority int
}

// PriorityQueue is a bounded container ordered by ascending priority; lower
// numbers dequeue first. Equal priorities preserve insertion order. Insertion
// is O(n) over a sorted slice, which is fine while crawl throughput stays
// latency-bound; a heap is a drop-in upgrade for very large capacities.
// Not safe for concurrent use; callers serialize access.
type PriorityQueue[T any] struct {
	entries  []entry[T]
	capacity int
}

// NewPriorityQueue creates a queue holding at most capacity items.
func NewPriorityQueue[T any](capacity int) *PriorityQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &PriorityQueue[T]{
		entries:  make([]entry[T], 0, capacity),
		capacity: capacity,
	}
}

// Enqueue inserts item keeping the slice sorted. Returns QueueFullError at
// capacity.
func (q *PriorityQueue[T]) Enqueue(item T, priority int) error {
	if len(q.entries) >= q.capacity {
		return &crawl.QueueFullError{Capacity: q.capacity}
	}
	idx := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].priority > priority
	})
	q.entries = append(q.entries, entry[T]{})
	copy(q.entries[idx+1:], q.entries[idx:])
	q.entries[idx] = entry[T]{payload: item, priority: priority}
	return nil
}

// Dequeue removes and returns the minimum-priority item; ok is false when
// the queue is empty.
func (q *PriorityQueue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.entries) == 0 {
		return zero, false
	}
	head := q.entries[0]
	q.entries[0] = entry[T]{}
	q.entries = q.entries[1:]
	return head.payload, true
}

// Peek observes the minimum-priority item without removing it.
func (q *PriorityQueue[T]) Peek() (T, bool) {
	var zero T
	if len(q.entries) == 0 {
		return zero, false
	}
	return q.entries[0].payload, true
}

// Clear empties the queue immediately.
func (q *PriorityQueue[T]) Clear() {
	q.entries = make([]entry[T], 0, q.capacity)
}

// Len returns the number of queued items.
func (q *PriorityQueue[T]) Len() int {
	return len(q.entries)
}
