package history

// Ring is a fixed-capacity circular buffer of float64 samples. Samples are
// overwritten in insertion order once the buffer is full; they are never
// individually deleted. It maintains a running sum so Mean is O(1).
type Ring struct {
	buf  []float64
	next int
	size int
	sum  float64
}

// NewRing creates a Ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

// Push inserts a sample, evicting the oldest when full.
func (r *Ring) Push(sample float64) {
	if r.size == len(r.buf) {
		r.sum -= r.buf[r.next]
	} else {
		r.size++
	}
	r.buf[r.next] = sample
	r.sum += sample
	r.next = (r.next + 1) % len(r.buf)
}

// Mean returns the average of the stored samples, 0 while empty.
func (r *Ring) Mean() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sum / float64(r.size)
}

// Len returns the number of stored samples.
func (r *Ring) Len() int {
	return r.size
}
