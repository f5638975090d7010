// Package sampling holds the sensor-side signal processing: a fixed-size
// sample window and the two-point ADC calibration.
package sampling

// Ring is a fixed-capacity circular buffer of raw ADC samples.
type Ring struct {
	buf     []int
	next    int
	written int
}

// NewRing returns a ring holding the last size samples. size < 1 is treated as 1.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]int, size)}
}

// Add stores v in the oldest slot and advances the write index.
func (r *Ring) Add(v int) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.written < len(r.buf) {
		r.written++
	}
}

// Cap returns the window size.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of valid samples.
func (r *Ring) Len() int { return r.written }

// Full reports whether every slot has been written at least once.
func (r *Ring) Full() bool { return r.written == len(r.buf) }

// Mean returns the arithmetic mean of the valid samples only. Until the first
// wrap those are buf[:written]; afterwards every slot is valid. ok is false
// when nothing has been written yet.
func (r *Ring) Mean() (mean float64, ok bool) {
	if r.written == 0 {
		return 0, false
	}
	var sum int64
	for _, v := range r.buf[:r.written] {
		sum += int64(v)
	}
	return float64(sum) / float64(r.written), true
}

// Samples returns a copy of the valid samples, oldest first.
func (r *Ring) Samples() []int {
	out := make([]int, 0, r.written)
	if r.Full() {
		out = append(out, r.buf[r.next:]...)
		out = append(out, r.buf[:r.next]...)
		return out
	}
	return append(out, r.buf[:r.written]...)
}
