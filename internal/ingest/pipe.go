package ingest

import "context"

// Pipe is the state shared between one Reader and one consumer.
type Pipe struct {
	queue  *Queue
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPipe(parent context.Context, capacity int) *Pipe {
	ctx, cancel := context.WithCancel(parent)
	return &Pipe{
		queue:  NewQueue(capacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *Pipe) Queue() *Queue {
	return p.queue
}

// Done is closed once the pipe is cancelled.
func (p *Pipe) Done() <-chan struct{} {
	return p.ctx.Done()
}

func (p *Pipe) Cancelled() bool {
	return p.ctx.Err() != nil
}

// Close raises the cancellation signal. It is safe to call more than once.
func (p *Pipe) Close() {
	p.cancel()
}
