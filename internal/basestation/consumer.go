package basestation

import (
	"sync"

	"github.com/danmuck/grassroots/internal/dispatch"
	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/ingest"
	"github.com/danmuck/grassroots/internal/observability"
	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/series"
)

// SeriesSnapshot is a copy of the tracker state for the active sensor.
type SeriesSnapshot struct {
	Key       string         `json:"key,omitempty" cbor:"key,omitempty"`
	Selected  bool           `json:"selected" cbor:"selected"`
	Capacity  int            `json:"capacity" cbor:"capacity"`
	Values    []float64      `json:"values" cbor:"values"`
	Latest    series.Reading `json:"latest" cbor:"latest"`
	HasLatest bool           `json:"has_latest" cbor:"has_latest"`
}

// Consumer is the foreground side of the pipe. Poll and the snapshot
// accessors share one mutex, so collaborators read consumer state without
// racing the tick.
type Consumer struct {
	mu         sync.Mutex
	queue      *ingest.Queue
	registry   *Registry
	images     *imaging.Assembler
	tracker    *series.Tracker
	dispatcher *dispatch.Dispatcher
}

func NewConsumer(queue *ingest.Queue, registry *Registry, images *imaging.Assembler, tracker *series.Tracker, sink dispatch.LogSink, opts ...dispatch.Option) *Consumer {
	return &Consumer{
		queue:      queue,
		registry:   registry,
		images:     images,
		tracker:    tracker,
		dispatcher: dispatch.New(images, tracker, sink, registry, opts...),
	}
}

// Poll takes at most one frame off the queue and handles it. It never
// blocks on the queue and reports whether a frame was taken.
func (c *Consumer) Poll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.queue.TryPop()
	if !ok {
		return false
	}
	observability.SetQueueDepth(c.queue.Len())

	msg, err := protocol.Decode(f)
	if err != nil {
		c.dispatcher.Reject(dispatch.ReasonFor(err), msg.Header, err)
		return true
	}
	camera, sensor := c.registry.Selections()
	c.dispatcher.Apply(camera, sensor)
	_ = c.dispatcher.Dispatch(msg, camera, sensor)
	return true
}

// Apply pushes the registry selections into the assembler and tracker
// without waiting for the next frame.
func (c *Consumer) Apply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	camera, sensor := c.registry.Selections()
	c.dispatcher.Apply(camera, sensor)
}

func (c *Consumer) Image() (imaging.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.Snapshot()
}

func (c *Consumer) Dims() imaging.Dims {
	return c.images.Dims()
}

func (c *Consumer) Series() SeriesSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, selected := c.tracker.Key()
	latest, has := c.tracker.Latest()
	return SeriesSnapshot{
		Key:       key,
		Selected:  selected,
		Capacity:  c.tracker.Capacity(),
		Values:    c.tracker.Window(),
		Latest:    latest,
		HasLatest: has,
	}
}

// FragmentStats reports accepted and dropped image fragments.
func (c *Consumer) FragmentStats() (accepted, dropped uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.Stats()
}
