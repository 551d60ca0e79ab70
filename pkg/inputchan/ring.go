package inputchan

// ring is a fixed size circular buffer addressed by absolute sequence numbers.
// Sequence s lives at index s%cap as long as s >= oldest().
type ring[E any] struct {
	buf     []E
	written uint64
}

func newRing[E any](capacity int) ring[E] {
	return ring[E]{buf: make([]E, capacity)}
}

func (r *ring[E]) capacity() uint64 {
	return uint64(len(r.buf))
}

func (r *ring[E]) push(e E) {
	r.buf[r.written%r.capacity()] = e
	r.written++
}

// skipTo moves the write position forward without writing, used when the
// events in between were never seen by this ring.
func (r *ring[E]) skipTo(seq uint64) {
	if seq > r.written {
		r.written = seq
	}
}

func (r *ring[E]) oldest() uint64 {
	if r.written > r.capacity() {
		return r.written - r.capacity()
	}
	return 0
}

func (r *ring[E]) at(seq uint64) E {
	return r.buf[seq%r.capacity()]
}
