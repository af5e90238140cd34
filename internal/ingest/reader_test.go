package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/protocol/frame"
	"github.com/danmuck/grassroots/internal/testutil/testlog"
)

func bytesOpener(b []byte) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
}

func TestReaderQueuesFramesUntilEOF(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 16)
	defer pipe.Close()

	wire := []byte{2, 'a', 'b', 0, 3, 'c', 'd', 'e'}
	r := NewReader(pipe, bytesOpener(wire), ReaderConfig{Limits: frame.DefaultLimits()})
	r.Start()
	r.Wait()

	if r.State() != ReaderStopped || r.Err() != nil {
		t.Fatalf("unexpected end state=%s err=%v", r.State(), r.Err())
	}
	if r.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", r.Frames())
	}
	f, _ := pipe.Queue().TryPop()
	if !bytes.Equal(f, []byte{2, 'a', 'b'}) {
		t.Fatalf("unexpected first frame: %v", []byte(f))
	}
	f, _ = pipe.Queue().TryPop()
	if !bytes.Equal(f, []byte{3, 'c', 'd', 'e'}) {
		t.Fatalf("unexpected second frame: %v", []byte(f))
	}
}

func TestReaderTransportUnavailable(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 4)
	defer pipe.Close()

	r := NewReader(pipe, func() (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	}, ReaderConfig{})
	r.Start()
	r.Wait()

	if !errors.Is(r.Err(), protocol.ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", r.Err())
	}
	if r.State() != ReaderFailed {
		t.Fatalf("unexpected state: %s", r.State())
	}
	if pipe.Queue().Len() != 0 {
		t.Fatalf("failed reader must not enqueue")
	}
}

type idleTransport struct{ closed chan struct{} }

func (idleTransport) Read([]byte) (int, error) { return 0, nil }
func (t idleTransport) Close() error           { close(t.closed); return nil }

func TestReaderStopsOnCancellation(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 4)
	tr := idleTransport{closed: make(chan struct{})}
	r := NewReader(pipe, func() (io.ReadCloser, error) { return tr, nil }, ReaderConfig{IdleBackoff: time.Millisecond})
	r.Start()

	deadline := time.Now().Add(time.Second)
	for r.State() != ReaderRunning {
		if time.Now().After(deadline) {
			t.Fatalf("reader never started")
		}
		time.Sleep(time.Millisecond)
	}

	pipe.Close()
	r.Wait()
	if r.State() != ReaderStopped {
		t.Fatalf("unexpected state: %s", r.State())
	}
	select {
	case <-tr.closed:
	default:
		t.Fatalf("transport not closed on shutdown")
	}
}

type failingTransport struct{}

func (failingTransport) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }
func (failingTransport) Close() error             { return nil }

func TestReaderTransportErrorEndsReader(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 4)
	defer pipe.Close()
	r := NewReader(pipe, func() (io.ReadCloser, error) { return failingTransport{}, nil }, ReaderConfig{})
	if err := r.Run(); !errors.Is(err, protocol.ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", err)
	}
	if r.State() != ReaderFailed {
		t.Fatalf("unexpected state: %s", r.State())
	}
}

func sequenceWire(n int) []byte {
	wire := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		wire = append(wire, 1, byte(i))
	}
	return wire
}

func TestReaderWaitsForQueueSpace(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 2)
	defer pipe.Close()

	const total = 40
	r := NewReader(pipe, bytesOpener(sequenceWire(total)), ReaderConfig{
		Limits:      frame.DefaultLimits(),
		IdleBackoff: time.Millisecond,
	})
	r.Start()

	got := make([]byte, 0, total)
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < total {
		if time.Now().After(deadline) {
			t.Fatalf("consumer only received %d of %d frames", len(got), total)
		}
		f, ok := pipe.Queue().TryPop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		got = append(got, f[1])
	}
	r.Wait()

	for i, b := range got {
		if int(b) != i {
			t.Fatalf("frame %d out of order: got %d", i, b)
		}
	}
	if r.Frames() != total {
		t.Fatalf("expected %d frames, got %d", total, r.Frames())
	}
	if r.State() != ReaderStopped {
		t.Fatalf("unexpected state: %s", r.State())
	}
}

func TestReaderDropWhenFull(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 2)
	defer pipe.Close()

	r := NewReader(pipe, bytesOpener(sequenceWire(5)), ReaderConfig{
		Limits:       frame.DefaultLimits(),
		DropWhenFull: true,
	})
	if err := r.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.Frames() != 2 || pipe.Queue().Len() != 2 {
		t.Fatalf("expected 2 queued frames, frames=%d len=%d", r.Frames(), pipe.Queue().Len())
	}
	if pipe.Queue().Refused() != 3 {
		t.Fatalf("expected 3 refused pushes, got %d", pipe.Queue().Refused())
	}
	f, _ := pipe.Queue().TryPop()
	if f[1] != 0 {
		t.Fatalf("expected oldest frame kept, got %d", f[1])
	}
}

func TestReaderBlockedOnFullQueueStopsOnCancellation(t *testing.T) {
	testlog.Start(t)
	pipe := NewPipe(context.Background(), 1)

	r := NewReader(pipe, bytesOpener(sequenceWire(3)), ReaderConfig{
		Limits:      frame.DefaultLimits(),
		IdleBackoff: time.Millisecond,
	})
	r.Start()

	deadline := time.Now().Add(time.Second)
	for pipe.Queue().Refused() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("reader never hit the full queue")
		}
		time.Sleep(time.Millisecond)
	}

	pipe.Close()
	r.Wait()
	if r.State() != ReaderStopped {
		t.Fatalf("unexpected state: %s", r.State())
	}
	if r.Frames() != 1 {
		t.Fatalf("expected only the first frame queued, got %d", r.Frames())
	}
}
