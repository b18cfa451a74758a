// Package bounded provides a capped, newest-first queue with FIFO eviction.
package bounded

// Queue holds at most Cap items ordered newest first. Pushing onto a full
// queue evicts the oldest item. Not safe for concurrent use.
type Queue[T any] struct {
	items []T
	cap   int
}

// New returns an empty queue holding at most capacity items (minimum 1).
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{items: make([]T, 0, capacity), cap: capacity}
}

// FromSlice seeds a queue with items already ordered newest first, dropping
// anything beyond capacity.
func FromSlice[T any](capacity int, items []T) *Queue[T] {
	q := New[T](capacity)
	n := len(items)
	if n > q.cap {
		n = q.cap
	}
	q.items = append(q.items, items[:n]...)
	return q
}

// Push adds item as the newest entry and returns the evicted item, if any.
func (q *Queue[T]) Push(item T) (evicted T, ok bool) {
	if len(q.items) == q.cap {
		evicted, ok = q.items[len(q.items)-1], true
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, item)
	copy(q.items[1:], q.items[:len(q.items)-1])
	q.items[0] = item
	return evicted, ok
}

// Remove drops every item matching pred and reports how many were removed.
func (q *Queue[T]) Remove(pred func(T) bool) int {
	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if pred(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept
	return removed
}

// Items returns a copy of the contents, newest first.
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue[T]) Len() int { return len(q.items) }

func (q *Queue[T]) Cap() int { return q.cap }
