package features

import "MeanRev/internal/domain/models"

// BarWindow is a bounded FIFO ring of the most recent bars. Oldest bars
// are evicted when capacity is reached; the window never exceeds its
// retention cap.
type BarWindow struct {
	buf   []models.Bar
	start int
	size  int
}

// NewBarWindow creates a window retaining at most capacity bars.
func NewBarWindow(capacity int) *BarWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &BarWindow{buf: make([]models.Bar, capacity)}
}

// Push appends a bar, evicting the oldest when full.
func (w *BarWindow) Push(b models.Bar) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = b
		w.size++
		return
	}
	w.buf[w.start] = b
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns the number of retained bars.
func (w *BarWindow) Len() int { return w.size }

// Cap returns the retention cap.
func (w *BarWindow) Cap() int { return len(w.buf) }

// Last returns the most recent bar.
func (w *BarWindow) Last() (models.Bar, bool) {
	if w.size == 0 {
		return models.Bar{}, false
	}
	return w.buf[(w.start+w.size-1)%len(w.buf)], true
}

// Bars returns the retained bars oldest-first as a fresh slice.
func (w *BarWindow) Bars() []models.Bar {
	out := make([]models.Bar, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Reset drops all retained bars.
func (w *BarWindow) Reset() {
	w.start, w.size = 0, 0
}

// ringStats is a bounded float ring with O(1) amortized push used for
// rolling mean/std without recomputing over growing containers.
type ringStats struct {
	buf   []float64
	start int
	size  int
	sum   float64
	sum2  float64
}

func newRingStats(capacity int) *ringStats {
	return &ringStats{buf: make([]float64, capacity)}
}

func (r *ringStats) push(v float64) {
	if r.size == len(r.buf) {
		old := r.buf[r.start]
		r.sum -= old
		r.sum2 -= old * old
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
	} else {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
	}
	r.sum += v
	r.sum2 += v * v
}

func (r *ringStats) mean() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sum / float64(r.size)
}
