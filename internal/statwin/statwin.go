// Package statwin implements the small streaming-statistics primitives of
// utils.rs: an exponentially-smoothed scalar and a fixed-size ring-buffer
// window supporting min/mean over the last N samples.
package statwin

// ExponentialSmooth tracks val = val*alpha + sample*(1-alpha) across calls
// to Add, the same recurrence the Monitor uses for its rate estimate.
type ExponentialSmooth struct {
	val   float64
	alpha float64
}

// NewExponentialSmooth creates a smoother with the given alpha in [0, 1].
func NewExponentialSmooth(alpha float64) *ExponentialSmooth {
	return &ExponentialSmooth{alpha: alpha}
}

// Add folds sample into the running value.
func (e *ExponentialSmooth) Add(sample float64) {
	e.val = e.val*e.alpha + sample*(1-e.alpha)
}

// Val returns the current smoothed value.
func (e *ExponentialSmooth) Val() float64 { return e.val }

// Window is a fixed-capacity ring buffer of float64 samples supporting
// Min/Mean over all capacity slots; slots not yet written still hold the
// init value given to NewWindow and count towards Min and Mean.
type Window struct {
	buffer   []float64
	pos      int
	capacity int
	filled   int
}

// NewWindow creates a Window of the given capacity, pre-filled with init so
// Min/Mean are well-defined before the first real sample arrives.
func NewWindow(init float64, capacity int) *Window {
	if capacity <= 0 {
		panic("statwin: capacity must be > 0")
	}
	buf := make([]float64, capacity)
	for i := range buf {
		buf[i] = init
	}
	return &Window{buffer: buf, capacity: capacity}
}

// Add writes sample at the current ring position, advancing it.
func (w *Window) Add(sample float64) {
	w.buffer[w.pos] = sample
	w.pos++
	if w.pos == w.capacity {
		w.pos = 0
	}
	if w.filled < w.capacity {
		w.filled++
	}
}

// Min returns the minimum sample currently held.
func (w *Window) Min() float64 {
	m := w.buffer[0]
	for _, v := range w.buffer[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Mean returns the arithmetic mean of the samples currently held.
func (w *Window) Mean() float64 {
	var sum float64
	for _, v := range w.buffer {
		sum += v
	}
	return sum / float64(len(w.buffer))
}
