package series

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotSelected = errors.New("series: key is not the active selection")

// Reading is one sensor sample as received.
type Reading struct {
	Key   string    `json:"key" cbor:"key"`
	Raw   string    `json:"raw" cbor:"raw"`
	Value float64   `json:"value" cbor:"value"`
	Valid bool      `json:"valid" cbor:"valid"`
	At    time.Time `json:"at" cbor:"at"`
}

// Tracker follows one selected sensor key. It is owned by the consumer
// goroutine and is not safe for concurrent use.
type Tracker struct {
	capacity int
	key      string
	selected bool
	window   *Window
	latest   Reading
	hasLast  bool
}

func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		capacity: capacity,
		window:   NewWindow(capacity),
	}
}

func (t *Tracker) Capacity() int {
	return t.capacity
}

// Key returns the active key and whether one is selected.
func (t *Tracker) Key() (string, bool) {
	return t.key, t.selected
}

// Select makes key active. A different key resets the window to zeros and
// clears the latest reading; it reports whether that happened.
func (t *Tracker) Select(key string) bool {
	if t.selected && t.key == key {
		return false
	}
	t.key = key
	t.selected = true
	t.window.Reset()
	t.latest = Reading{}
	t.hasLast = false
	return true
}

// Update records r for the active key. Readings that did not parse as a
// number become the latest reading but are not added to the window.
func (t *Tracker) Update(r Reading) error {
	if !t.selected || r.Key != t.key {
		return fmt.Errorf("%w: got=%q active=%q", ErrNotSelected, r.Key, t.key)
	}
	t.latest = r
	t.hasLast = true
	if r.Valid {
		t.window.Push(r.Value)
	}
	return nil
}

// Window returns the samples oldest first; its length is always Capacity.
func (t *Tracker) Window() []float64 {
	return t.window.Values()
}

func (t *Tracker) Latest() (Reading, bool) {
	return t.latest, t.hasLast
}
