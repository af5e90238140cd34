package basestation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/grassroots/internal/dispatch"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/protocol"
)

var ErrUnknownIdentity = errors.New("basestation: unknown identity")

type EventKind string

const (
	EventIdentity   EventKind = "identity"
	EventSelection  EventKind = "selection"
	EventNotice     EventKind = "notice"
	EventDiagnostic EventKind = "diagnostic"
)

// Event is one report fanned out to subscribers.
type Event struct {
	Seq          uint64    `json:"seq"`
	Kind         EventKind `json:"kind"`
	At           time.Time `json:"at"`
	IdentityKind string    `json:"identity_kind,omitempty"`
	Identity     string    `json:"identity,omitempty"`
	AutoSelected bool      `json:"auto_selected,omitempty"`
	Text         string    `json:"text,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
	SourceID     uint8     `json:"source_id"`
	MessageID    uint16    `json:"message_id"`
}

// Notice is one entry of the bounded notice feed.
type Notice struct {
	At        time.Time `json:"at" cbor:"at"`
	SourceID  uint8     `json:"source_id" cbor:"source_id"`
	SensorID  uint8     `json:"sensor_id" cbor:"sensor_id"`
	MessageID uint16    `json:"message_id" cbor:"message_id"`
	Text      string    `json:"text" cbor:"text"`
}

// Identities is the registry view exposed to collaborators.
type Identities struct {
	Cameras        []string `json:"cameras"`
	Sensors        []string `json:"sensors"`
	SelectedCamera string   `json:"selected_camera,omitempty"`
	SelectedSensor string   `json:"selected_sensor,omitempty"`
}

// Registry implements dispatch.Reporter. It records observed identities,
// holds both selections, keeps the notice feed and fans events out to
// subscribers. Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	now func() time.Time

	cameras []string
	sensors []string
	known   map[string]dispatch.IdentityKind
	camera  dispatch.Selection
	sensor  dispatch.Selection

	notices     []Notice
	noticeCap   int
	diagnostics uint64

	seq  uint64
	subs map[uint64]chan Event
	next uint64
}

func NewRegistry(noticeCapacity int) *Registry {
	if noticeCapacity <= 0 {
		noticeCapacity = DefaultNoticeCapacity
	}
	return &Registry{
		now:       time.Now,
		known:     make(map[string]dispatch.IdentityKind),
		noticeCap: noticeCapacity,
		subs:      make(map[uint64]chan Event),
	}
}

func (r *Registry) IdentityObserved(kind dispatch.IdentityKind, id string, autoSelected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[id]; ok {
		return
	}
	r.known[id] = kind
	switch kind {
	case dispatch.IdentityCamera:
		r.cameras = append(r.cameras, id)
		if autoSelected && !r.camera.IsSet() {
			r.camera = dispatch.Selected(id)
		}
	case dispatch.IdentitySensor:
		r.sensors = append(r.sensors, id)
		if autoSelected && !r.sensor.IsSet() {
			r.sensor = dispatch.Selected(id)
		}
	}
	r.publishLocked(Event{
		Kind:         EventIdentity,
		IdentityKind: string(kind),
		Identity:     id,
		AutoSelected: autoSelected,
	})
}

func (r *Registry) Notice(h protocol.Header, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := Notice{
		At:        r.now(),
		SourceID:  h.SourceID,
		SensorID:  h.SensorID,
		MessageID: h.MessageID,
		Text:      text,
	}
	if len(r.notices) == r.noticeCap {
		copy(r.notices, r.notices[1:])
		r.notices = r.notices[:len(r.notices)-1]
	}
	r.notices = append(r.notices, n)
	r.publishLocked(Event{
		Kind:      EventNotice,
		Text:      text,
		SourceID:  h.SourceID,
		MessageID: h.MessageID,
	})
}

func (r *Registry) Diagnostic(d dispatch.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics++
	ev := Event{
		Kind:      EventDiagnostic,
		Reason:    d.Reason,
		SourceID:  d.Header.SourceID,
		MessageID: d.Header.MessageID,
	}
	if d.Err != nil {
		ev.Error = d.Err.Error()
	}
	r.publishLocked(ev)
}

// Selections returns the camera and sensor selections.
func (r *Registry) Selections() (camera, sensor dispatch.Selection) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.camera, r.sensor
}

func (r *Registry) SelectCamera(id string) error {
	return r.selectIdentity(dispatch.IdentityCamera, id)
}

func (r *Registry) SelectSensor(key string) error {
	return r.selectIdentity(dispatch.IdentitySensor, key)
}

func (r *Registry) selectIdentity(kind dispatch.IdentityKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if got, ok := r.known[id]; !ok || got != kind {
		return fmt.Errorf("%w: %s %q", ErrUnknownIdentity, kind, id)
	}
	target := &r.camera
	if kind == dispatch.IdentitySensor {
		target = &r.sensor
	}
	if target.Is(id) {
		return nil
	}
	prev := target.String()
	*target = dispatch.Selected(id)
	logging.Infof("basestation.Registry.select kind=%s from=%q to=%q", kind, prev, id)
	r.publishLocked(Event{
		Kind:         EventSelection,
		IdentityKind: string(kind),
		Identity:     id,
	})
	return nil
}

func (r *Registry) Identities() Identities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Identities{
		Cameras: append([]string{}, r.cameras...),
		Sensors: append([]string{}, r.sensors...),
	}
	if id, ok := r.camera.ID(); ok {
		out.SelectedCamera = id
	}
	if id, ok := r.sensor.ID(); ok {
		out.SelectedSensor = id
	}
	return out
}

// Notices returns the feed, oldest first.
func (r *Registry) Notices() []Notice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Notice{}, r.notices...)
}

func (r *Registry) Diagnostics() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diagnostics
}

// Subscribe registers a listener with a buffer of size buf. Events that do
// not fit are dropped for that listener. The returned func unsubscribes.
func (r *Registry) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 32
	}
	ch := make(chan Event, buf)
	r.mu.Lock()
	id := r.next
	r.next++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Registry) publishLocked(ev Event) {
	r.seq++
	ev.Seq = r.seq
	ev.At = r.now()
	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			logging.Debugf("basestation.Registry.publish dropped subscriber=%d seq=%d", id, ev.Seq)
		}
	}
}
