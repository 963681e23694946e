package l1b

// fifo is an ordered queue that only grows at the back and shrinks at the
// front. Popped slots are cleared so evicted items can be collected.
type fifo[T any] struct {
	items []T
	head  int
}

func (q *fifo[T]) Len() int { return len(q.items) - q.head }

func (q *fifo[T]) Push(v T) { q.items = append(q.items, v) }

// Front returns the oldest item. It panics on an empty queue.
func (q *fifo[T]) Front() T { return q.items[q.head] }

// Back returns the newest item. It panics on an empty queue.
func (q *fifo[T]) Back() T { return q.items[len(q.items)-1] }

// At returns the i-th item counted from the front.
func (q *fifo[T]) At(i int) T { return q.items[q.head+i] }

// Pop removes and returns the oldest item.
func (q *fifo[T]) Pop() T {
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v
}

// Slice returns the live items, oldest first. The slice aliases the queue.
func (q *fifo[T]) Slice() []T { return q.items[q.head:] }

// Reset drops every item.
func (q *fifo[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}
