package ingest

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/observability"
	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/protocol/frame"
)

// Opener opens the byte transport. It is called once, from the reader goroutine.
type Opener func() (io.ReadCloser, error)

type ReaderState int32

const (
	ReaderIdle ReaderState = iota
	ReaderRunning
	ReaderStopped
	ReaderFailed
)

func (s ReaderState) String() string {
	switch s {
	case ReaderIdle:
		return "idle"
	case ReaderRunning:
		return "running"
	case ReaderStopped:
		return "stopped"
	case ReaderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const defaultIdleBackoff = 10 * time.Millisecond

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Name   string
	Limits frame.Limits
	// IdleBackoff is slept after a read that returned no data and between
	// retries while the queue is full.
	IdleBackoff time.Duration
	// DropWhenFull drops frames instead of waiting for queue space. Only
	// meaningful for a live transport that cannot be paused.
	DropWhenFull bool
}

// Reader moves frames from a transport into a Pipe's queue.
type Reader struct {
	pipe *Pipe
	open Opener
	cfg  ReaderConfig

	state   atomic.Int32
	frames  atomic.Uint64
	lastErr atomic.Pointer[error]

	startOnce sync.Once
	done      chan struct{}
}

func NewReader(pipe *Pipe, open Opener, cfg ReaderConfig) *Reader {
	if cfg.Name == "" {
		cfg.Name = "reader"
	}
	if cfg.Limits.MaxFrameBytes <= 0 {
		cfg.Limits.MaxFrameBytes = frame.ProtocolMaxBytes
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = defaultIdleBackoff
	}
	return &Reader{
		pipe: pipe,
		open: open,
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start launches the reader goroutine once.
func (r *Reader) Start() {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.done)
			if err := r.Run(); err != nil {
				r.lastErr.Store(&err)
			}
		}()
	})
}

// Wait blocks until the goroutine launched by Start has returned.
func (r *Reader) Wait() {
	<-r.done
}

func (r *Reader) State() ReaderState {
	return ReaderState(r.state.Load())
}

// Frames counts frames handed to the queue.
func (r *Reader) Frames() uint64 {
	return r.frames.Load()
}

// Err returns the error that ended the reader, if any.
func (r *Reader) Err() error {
	if p := r.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Run opens the transport and reads frames until the pipe is cancelled or
// the transport ends. A transport that cannot be opened ends the reader with
// ErrTransportUnavailable; nothing is enqueued and the consumer stays idle.
func (r *Reader) Run() error {
	if r.open == nil {
		r.setState(ReaderFailed)
		return fmt.Errorf("%w: no transport configured", protocol.ErrTransportUnavailable)
	}
	rc, err := r.open()
	if err != nil {
		r.setState(ReaderFailed)
		logging.Errorf("ingest.Reader.Run open failed name=%q err=%v", r.cfg.Name, err)
		return fmt.Errorf("%w: %w", protocol.ErrTransportUnavailable, err)
	}
	defer rc.Close()

	r.setState(ReaderRunning)
	logging.Infof("ingest.Reader.Run awaiting frames name=%q length_mode=%s max_frame=%d",
		r.cfg.Name, r.cfg.Limits.Mode, r.cfg.Limits.MaxFrameBytes)

	for {
		if r.pipe.Cancelled() {
			r.setState(ReaderStopped)
			logging.Infof("ingest.Reader.Run finished name=%q frames=%d", r.cfg.Name, r.frames.Load())
			return nil
		}

		f, err := frame.ReadFrame(rc, r.cfg.Limits)
		switch {
		case err == nil:
			r.enqueue(f)
		case errors.Is(err, frame.ErrNoData):
			time.Sleep(r.cfg.IdleBackoff)
		case errors.Is(err, frame.ErrFrameTooLarge):
			observability.RecordFrameRejected("too_large")
			logging.Warnf("ingest.Reader.Run dropped frame name=%q err=%v", r.cfg.Name, err)
		case errors.Is(err, frame.ErrEmptyFrame):
			observability.RecordFrameRejected("empty")
			logging.Debugf("ingest.Reader.Run skipped zero length byte name=%q", r.cfg.Name)
		case errors.Is(err, io.EOF), errors.Is(err, frame.ErrShortFrame):
			r.setState(ReaderStopped)
			logging.Infof("ingest.Reader.Run transport closed name=%q frames=%d err=%v", r.cfg.Name, r.frames.Load(), err)
			return nil
		default:
			r.setState(ReaderFailed)
			logging.Errorf("ingest.Reader.Run transport failed name=%q err=%v", r.cfg.Name, err)
			return fmt.Errorf("%w: %w", protocol.ErrTransportUnavailable, err)
		}
	}
}

// enqueue hands f to the queue. Unless DropWhenFull is set it waits for
// space, so a replay file is never read faster than it is consumed. It
// gives up only when the pipe is cancelled.
func (r *Reader) enqueue(f frame.Frame) {
	q := r.pipe.Queue()
	waited := false
	for !q.Push(f) {
		if r.cfg.DropWhenFull {
			observability.RecordFrameRejected("queue_full")
			logging.Warnf("ingest.Reader.enqueue queue full name=%q capacity=%d", r.cfg.Name, q.Cap())
			return
		}
		if !waited {
			waited = true
			logging.Debugf("ingest.Reader.enqueue waiting for queue space name=%q capacity=%d", r.cfg.Name, q.Cap())
		}
		select {
		case <-r.pipe.Done():
			logging.Debugf("ingest.Reader.enqueue cancelled with frame pending name=%q", r.cfg.Name)
			return
		case <-time.After(r.cfg.IdleBackoff):
		}
	}
	r.frames.Add(1)
	observability.RecordFrameRead()
	observability.SetQueueDepth(q.Len())
}

func (r *Reader) setState(s ReaderState) {
	r.state.Store(int32(s))
	observability.SetReaderState(s.String())
}
