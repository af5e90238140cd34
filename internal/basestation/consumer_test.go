package basestation

import (
	"testing"
	"time"

	"github.com/danmuck/grassroots/internal/dispatch"
	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/ingest"
	"github.com/danmuck/grassroots/internal/protocol/frame"
	"github.com/danmuck/grassroots/internal/series"
	"github.com/danmuck/grassroots/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkLine struct{ key, raw string }

type sliceSink struct{ lines []sinkLine }

func (s *sliceSink) Record(key, raw string, _ time.Time) error {
	s.lines = append(s.lines, sinkLine{key, raw})
	return nil
}

type consumerFixture struct {
	queue    *ingest.Queue
	registry *Registry
	sink     *sliceSink
	c        *Consumer
}

func newConsumerFixture(t *testing.T) consumerFixture {
	t.Helper()
	testlog.Start(t)
	images, err := imaging.NewAssembler(imaging.Dims{Width: 4, Height: 2, Depth: 1})
	require.NoError(t, err)
	f := consumerFixture{
		queue:    ingest.NewQueue(16),
		registry: NewRegistry(0),
		sink:     &sliceSink{},
	}
	f.c = NewConsumer(f.queue, f.registry, images, series.NewTracker(3), f.sink)
	return f
}

func (f consumerFixture) push(t *testing.T, frames ...frame.Frame) {
	t.Helper()
	for _, fr := range frames {
		require.True(t, f.queue.Push(fr))
	}
}

func TestPollTakesAtMostOneFrame(t *testing.T) {
	f := newConsumerFixture(t)
	require.False(t, f.c.Poll())

	f.push(t, textFrame(t, 4, 2, 1, "DATA:temp:20.5"), textFrame(t, 4, 2, 2, "DATA:temp:21"))
	require.True(t, f.c.Poll())
	assert.Equal(t, 1, f.queue.Len())
	require.True(t, f.c.Poll())
	require.False(t, f.c.Poll())

	s := f.c.Series()
	assert.Equal(t, "4-2-temp", s.Key)
	assert.Equal(t, []float64{0, 20.5, 21}, s.Values)
	require.True(t, s.HasLatest)
	assert.Equal(t, "21", s.Latest.Raw)
	assert.Len(t, f.sink.lines, 2)
}

func TestPollLogsUnselectedReadingsButDoesNotPlotThem(t *testing.T) {
	f := newConsumerFixture(t)
	f.push(t,
		textFrame(t, 4, 2, 1, "DATA:temp:20"),
		textFrame(t, 5, 1, 2, "DATA:hum:40"),
		textFrame(t, 4, 2, 3, "DATA:temp:22"),
	)
	for f.c.Poll() {
	}

	assert.Equal(t, []sinkLine{
		{"4-2-temp", "20"},
		{"5-1-hum", "40"},
		{"4-2-temp", "22"},
	}, f.sink.lines)
	assert.Equal(t, []float64{0, 20, 22}, f.c.Series().Values)
	assert.Equal(t, []string{"4-2-temp", "5-1-hum"}, f.registry.Identities().Sensors)
}

func TestPollAssemblesSelectedCameraOnly(t *testing.T) {
	f := newConsumerFixture(t)
	f.push(t,
		fragmentFrame(t, 2, 1, 0, 0, 10, 11),
		fragmentFrame(t, 3, 1, 0, 0, 99, 99),
		fragmentFrame(t, 2, 1, 1, 1, 20, 21),
	)
	for f.c.Poll() {
	}

	img, ok := f.c.Image()
	require.True(t, ok)
	assert.Equal(t, "2-1", img.Identity)
	assert.Equal(t, []byte{10, 11, 0, 0, 0, 20, 21, 0}, img.Pix)
	assert.Equal(t, []string{"2-1", "3-1"}, f.registry.Identities().Cameras)
}

func TestSelectionSwitchResetsOnApply(t *testing.T) {
	f := newConsumerFixture(t)
	f.push(t,
		fragmentFrame(t, 2, 1, 0, 0, 10, 11),
		fragmentFrame(t, 3, 1, 0, 0, 30, 31),
	)
	for f.c.Poll() {
	}

	require.NoError(t, f.registry.SelectCamera("3-1"))
	f.c.Apply()
	img, ok := f.c.Image()
	require.True(t, ok)
	assert.Equal(t, "3-1", img.Identity)
	assert.Equal(t, make([]byte, 8), img.Pix)

	f.push(t, fragmentFrame(t, 3, 1, 1, 0, 7))
	require.True(t, f.c.Poll())
	img, _ = f.c.Image()
	assert.Equal(t, byte(7), img.At(1, 0, 0))
}

func TestPollReportsMalformedFrames(t *testing.T) {
	f := newConsumerFixture(t)
	events, cancel := f.registry.Subscribe(8)
	defer cancel()

	f.push(t, frame.Frame{5, 1, 2, 3, 4, 5})
	require.True(t, f.c.Poll())

	ev := <-events
	assert.Equal(t, EventDiagnostic, ev.Kind)
	assert.Equal(t, dispatch.ReasonMalformed, ev.Reason)
	assert.Equal(t, uint64(1), f.registry.Diagnostics())
}
