package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/observability"
	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/series"
)

var ErrNonNumericReading = errors.New("dispatch: reading value is not a number")

// CameraNoticePrefix starts the feed line posted for every image fragment.
const CameraNoticePrefix = "Camera:"

// LogSink receives every sensor reading, selected or not.
type LogSink interface {
	Record(key, raw string, at time.Time) error
}

type Option func(*Dispatcher)

// WithClock overrides the time source used to stamp readings.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher is owned by the consumer goroutine and is not safe for
// concurrent use.
type Dispatcher struct {
	images  *imaging.Assembler
	tracker *series.Tracker
	sink    LogSink
	report  Reporter
	now     func() time.Time

	cameras identitySet
	sensors identitySet
}

func New(images *imaging.Assembler, tracker *series.Tracker, sink LogSink, report Reporter, opts ...Option) *Dispatcher {
	if report == nil {
		report = NopReporter{}
	}
	d := &Dispatcher{
		images:  images,
		tracker: tracker,
		sink:    sink,
		report:  report,
		now:     time.Now,
		cameras: newIdentitySet(),
		sensors: newIdentitySet(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply resets the assembler and tracker when the given selections differ
// from the identities they currently hold.
func (d *Dispatcher) Apply(camera, sensor Selection) {
	if id, ok := camera.ID(); ok && d.images.Select(id) {
		logging.Debugf("dispatch.Dispatcher.Apply camera reset identity=%q", id)
	}
	if key, ok := sensor.ID(); ok && d.tracker.Select(key) {
		logging.Debugf("dispatch.Dispatcher.Apply sensor reset key=%q", key)
	}
}

// Dispatch routes one decoded message. Failures are reported and returned;
// none of them are fatal to the caller.
func (d *Dispatcher) Dispatch(msg protocol.Message, camera, sensor Selection) error {
	observability.RecordMessage(msg.Kind().String())
	switch body := msg.Body.(type) {
	case protocol.ImageFragment:
		return d.fragment(msg.Header, body, camera)
	case protocol.SensorReading:
		return d.reading(msg.Header, body, sensor)
	case protocol.Notice:
		d.report.Notice(msg.Header, body.Text)
		return nil
	default:
		err := fmt.Errorf("%w: %d", protocol.ErrUnknownMessageType, uint8(msg.Header.MessageType))
		d.Reject(ReasonUnknownType, msg.Header, err)
		return err
	}
}

// Reject reports a dropped frame or message.
func (d *Dispatcher) Reject(reason string, h protocol.Header, err error) {
	observability.RecordFrameRejected(reason)
	logging.Warnf(
		"dispatch.Dispatcher rejected reason=%s message_id=%d type=%d source=%d err=%v",
		reason, h.MessageID, uint8(h.MessageType), h.SourceID, err,
	)
	d.report.Diagnostic(Diagnostic{Reason: reason, Header: h, Err: err})
}

func (d *Dispatcher) fragment(h protocol.Header, f protocol.ImageFragment, camera Selection) error {
	id := h.CameraKey()
	d.report.Notice(h, CameraNoticePrefix+id)
	camera = d.discover(&d.cameras, IdentityCamera, id, camera)
	if active, ok := camera.ID(); ok && d.images.Select(active) {
		logging.Debugf("dispatch.Dispatcher.fragment camera reset identity=%q", active)
	}
	if !camera.Is(id) {
		return nil
	}
	if err := d.images.Insert(f); err != nil {
		d.Reject(ReasonFor(err), h, err)
		return err
	}
	return nil
}

func (d *Dispatcher) reading(h protocol.Header, r protocol.SensorReading, sensor Selection) error {
	key := h.SensorKey(r.Label)
	at := d.now()

	if d.sink != nil {
		if err := d.sink.Record(key, r.Raw, at); err != nil {
			d.Reject(ReasonLogFailed, h, err)
		} else {
			observability.RecordLogRecord()
		}
	}
	d.report.Notice(h, r.Text())

	sensor = d.discover(&d.sensors, IdentitySensor, key, sensor)
	if active, ok := sensor.ID(); ok && d.tracker.Select(active) {
		logging.Debugf("dispatch.Dispatcher.reading sensor reset key=%q", active)
	}
	if !sensor.Is(key) {
		return nil
	}
	if !r.Valid {
		d.report.Diagnostic(Diagnostic{
			Reason: ReasonNonNumeric,
			Header: h,
			Err:    fmt.Errorf("%w: %s=%q", ErrNonNumericReading, key, r.Raw),
		})
	}
	return d.tracker.Update(series.Reading{
		Key:   key,
		Raw:   r.Raw,
		Value: r.Value,
		Valid: r.Valid,
		At:    at,
	})
}

func (d *Dispatcher) discover(set *identitySet, kind IdentityKind, id string, sel Selection) Selection {
	if !set.add(id) {
		return sel
	}
	auto := !sel.IsSet()
	if auto {
		sel = Selected(id)
	}
	logging.Infof("dispatch.Dispatcher.discover new %s identity=%q auto_selected=%t", kind, id, auto)
	d.report.IdentityObserved(kind, id, auto)
	return sel
}

// Cameras lists camera identities in discovery order.
func (d *Dispatcher) Cameras() []string {
	return d.cameras.list()
}

// Sensors lists sensor keys in discovery order.
func (d *Dispatcher) Sensors() []string {
	return d.sensors.list()
}

type identitySet struct {
	seen  map[string]struct{}
	order []string
}

func newIdentitySet() identitySet {
	return identitySet{seen: make(map[string]struct{})}
}

func (s *identitySet) add(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *identitySet) list() []string {
	return append([]string(nil), s.order...)
}
