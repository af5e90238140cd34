package ingest

import (
	"sync"
	"testing"

	"github.com/danmuck/grassroots/internal/protocol/frame"
)

func TestQueueFIFOExactlyOnce(t *testing.T) {
	q := NewQueue(16)
	for i := 0; i < 20; i++ {
		if !q.Push(frame.Frame{byte(i)}) {
			t.Fatalf("push %d refused", i)
		}
		if i%2 == 1 {
			// keep the ring wrapping
			f, ok := q.TryPop()
			if !ok || f[0] != byte(i/2) {
				t.Fatalf("pop after push %d: got=%v ok=%v", i, f, ok)
			}
		}
	}
	for want := 10; want < 20; want++ {
		f, ok := q.TryPop()
		if !ok || f[0] != byte(want) {
			t.Fatalf("expected %d, got=%v ok=%v", want, f, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueRefusesWhenFull(t *testing.T) {
	q := NewQueue(2)
	q.Push(frame.Frame{1})
	q.Push(frame.Frame{2})
	if q.Push(frame.Frame{3}) {
		t.Fatalf("expected push into full queue to fail")
	}
	if q.Refused() != 1 || q.Len() != 2 {
		t.Fatalf("unexpected refused=%d len=%d", q.Refused(), q.Len())
	}
	f, _ := q.TryPop()
	if f[0] != 1 {
		t.Fatalf("oldest frame lost: %v", f)
	}
}

func TestQueueConcurrentProducerPreservesOrder(t *testing.T) {
	const n = 2000
	q := NewQueue(n)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(frame.Frame{byte(i >> 8), byte(i)})
		}
	}()

	next := 0
	for next < n {
		f, ok := q.TryPop()
		if !ok {
			continue
		}
		got := int(f[0])<<8 | int(f[1])
		if got != next {
			t.Fatalf("out of order: got=%d want=%d", got, next)
		}
		next++
	}
	wg.Wait()
}
