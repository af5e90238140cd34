package ingest

import (
	"sync"

	"github.com/danmuck/grassroots/internal/protocol/frame"
)

const DefaultQueueCapacity = 4096

// Queue is a bounded FIFO of frames backed by a ring buffer.
type Queue struct {
	mu      sync.Mutex
	items   []frame.Frame
	head    int
	size    int
	refused uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{items: make([]frame.Frame, capacity)}
}

// Push appends f. It reports false and leaves the queue unchanged when the
// queue is full; the caller decides whether to retry.
func (q *Queue) Push(f frame.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.items) {
		q.refused++
		return false
	}
	q.items[(q.head+q.size)%len(q.items)] = f
	q.size++
	return true
}

// TryPop removes the oldest frame. It never blocks.
func (q *Queue) TryPop() (frame.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil, false
	}
	f := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return f, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *Queue) Cap() int {
	return len(q.items)
}

// Refused counts pushes refused because the queue was full.
func (q *Queue) Refused() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.refused
}
