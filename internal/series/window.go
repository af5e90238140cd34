// Package series keeps the sliding window of readings for the selected sensor.
package series

// DefaultCapacity is the number of samples kept per window.
const DefaultCapacity = 10

// Window is a fixed-capacity ring of samples. It always holds exactly
// Capacity values; a fresh window is all zeros.
type Window struct {
	vals  []float64
	start int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{vals: make([]float64, capacity)}
}

// Push appends v and evicts the oldest sample.
func (w *Window) Push(v float64) {
	w.vals[w.start] = v
	w.start = (w.start + 1) % len(w.vals)
}

// Values returns the samples oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, len(w.vals))
	out = append(out, w.vals[w.start:]...)
	return append(out, w.vals[:w.start]...)
}

func (w *Window) Len() int {
	return len(w.vals)
}

// Reset zeroes every sample.
func (w *Window) Reset() {
	clear(w.vals)
	w.start = 0
}
