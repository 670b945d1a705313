package protocol

// Pipe is the single-producer/single-consumer hand-off in front of a Ring.
//
// The producer (a radio notification, a UART interrupt, a reader goroutine)
// calls Write; the consumer (the polling loop) calls Drain. Both run inside
// the same short critical section, so the ring itself needs no locking.
// There must be exactly one of each.
type Pipe struct {
	cs      critical
	ring    *Ring
	dropped uint32
}

// NewPipe creates a pipe over a new ring of the given capacity
func NewPipe(capacity int) *Pipe {
	return &Pipe{ring: NewRing(capacity)}
}

// Write appends and publishes p. If p does not fit nothing is written and
// ErrCapacityExceeded is returned; the caller decides whether to drop the
// delivery or reset the link.
func (p *Pipe) Write(b []byte) (int, error) {
	p.cs.enter()
	n, err := p.ring.Write(b)
	if err != nil {
		p.dropped++
	}
	p.cs.exit()
	return n, err
}

// Drain runs fn with exclusive access to the ring
func (p *Pipe) Drain(fn func(r *Ring)) {
	p.cs.enter()
	defer p.cs.exit()
	fn(p.ring)
}

// Len returns the number of readable bytes
func (p *Pipe) Len() int {
	p.cs.enter()
	defer p.cs.exit()
	return p.ring.Len()
}

// Dropped returns how many deliveries were refused for lack of room
func (p *Pipe) Dropped() uint32 {
	p.cs.enter()
	defer p.cs.exit()
	return p.dropped
}

// Reset clears the ring. It is the cancellation primitive for disconnects
// and timeouts.
func (p *Pipe) Reset() {
	p.cs.enter()
	p.ring.Clear()
	p.cs.exit()
}

// Decode runs one decode attempt inside the critical section. The returned
// message aliases decoder storage, not the ring, so it stays valid after the
// section ends.
func (p *Pipe) Decode(d *Decoder) Result {
	p.cs.enter()
	r := d.Next(p.ring)
	p.cs.exit()
	return r
}

// Read moves up to len(b) readable bytes into b and consumes them. It never
// blocks and returns 0 when the pipe is empty.
func (p *Pipe) Read(b []byte) int {
	p.cs.enter()
	defer p.cs.exit()
	n := p.ring.Len()
	if n > len(b) {
		n = len(b)
	}
	v, _ := p.ring.PeekView(n)
	v.CopyTo(b[:n])
	p.ring.Commit(n)
	return n
}
