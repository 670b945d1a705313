package protocol

import "errors"

var (
	// ErrCapacityExceeded is returned when a write would overrun unread data.
	// Nothing is written in that case.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// Ring is a fixed-capacity circular byte buffer with separate staged and
// committed lengths.
//
// Bytes written with Append are staged: they occupy space but are not
// readable until Publish. Readers see only committed bytes through PeekView
// and consume them with Commit. All positions are relative to the read start
// and wrap modulo the capacity.
//
// Invariant: 0 <= committed <= staged <= capacity.
//
// A Ring does no locking. Use a Pipe when the producer runs in another
// context.
type Ring struct {
	buf       []byte
	start     int
	committed int
	staged    int
}

// NewRing allocates a ring with the given capacity. The storage is never
// resized.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("protocol: ring capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of committed (readable) bytes
func (r *Ring) Len() int {
	return r.committed
}

// Staged returns the number of written bytes, published or not
func (r *Ring) Staged() int {
	return r.staged
}

// IsEmpty returns true if the ring holds no bytes at all
func (r *Ring) IsEmpty() bool {
	return r.staged == 0
}

// CapacityRemaining returns how many bytes Append can still take
func (r *Ring) CapacityRemaining() int {
	return len(r.buf) - r.staged
}

// pos maps a start-relative offset to a storage index
func (r *Ring) pos(i int) int {
	idx := r.start + i
	if idx >= len(r.buf) {
		idx -= len(r.buf)
	}
	return idx
}

// Append stages p at the tail. It fails without touching the ring if p does
// not fit; unread data is never overwritten.
func (r *Ring) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if r.staged+len(p) > len(r.buf) {
		return ErrCapacityExceeded
	}
	tail := r.pos(r.staged)
	n := copy(r.buf[tail:], p)
	copy(r.buf, p[n:])
	r.staged += len(p)
	return nil
}

// Publish makes every staged byte readable
func (r *Ring) Publish() {
	r.committed = r.staged
}

// Discard drops staged bytes that were never published
func (r *Ring) Discard() {
	r.staged = r.committed
}

// Write appends and publishes p in one step
func (r *Ring) Write(p []byte) (int, error) {
	if err := r.Append(p); err != nil {
		return 0, err
	}
	r.Publish()
	return len(p), nil
}

// PeekView returns a read-only view of the next n committed bytes without
// consuming them. It returns false if fewer than n bytes are readable; the
// caller should retry after more data arrives.
func (r *Ring) PeekView(n int) (View, bool) {
	if n < 0 || n > r.committed {
		return View{}, false
	}
	end := r.start + n
	if end <= len(r.buf) {
		return View{a: r.buf[r.start:end]}, true
	}
	return View{a: r.buf[r.start:], b: r.buf[:end-len(r.buf)]}, true
}

// Commit consumes n committed bytes. Consuming more than is committed is a
// caller bug and panics.
func (r *Ring) Commit(n int) {
	if n < 0 || n > r.committed {
		panic("protocol: commit past committed length")
	}
	r.start = r.pos(n)
	r.committed -= n
	r.staged -= n
	if r.staged == 0 {
		r.start = 0
	}
}

// IndexGet reads the byte at offset i from the read start. The offset may
// reach into the staged region.
func (r *Ring) IndexGet(i int) byte {
	if i < 0 || i >= r.staged {
		panic("protocol: ring index out of range")
	}
	return r.buf[r.pos(i)]
}

// IndexSet overwrites the byte at offset i from the read start. It is used
// to patch header slots after the body is known.
func (r *Ring) IndexSet(i int, b byte) {
	if i < 0 || i >= r.staged {
		panic("protocol: ring index out of range")
	}
	r.buf[r.pos(i)] = b
}

// MoveInto copies copyLen committed bytes to the tail of dst, publishes them
// there and then consumes consumeLen bytes here. The two lengths may differ,
// e.g. to drop a resync prefix along with a forwarded frame. If dst lacks
// room neither ring changes.
func (r *Ring) MoveInto(dst *Ring, copyLen, consumeLen int) error {
	if dst == r {
		panic("protocol: move into self")
	}
	if copyLen < 0 || copyLen > r.committed || consumeLen < 0 || consumeLen > r.committed {
		panic("protocol: move past committed length")
	}
	if dst.staged+copyLen > len(dst.buf) {
		return ErrCapacityExceeded
	}
	v, _ := r.PeekView(copyLen)
	a, b := v.Segments()
	// Cannot fail: room was checked above
	_ = dst.Append(a)
	_ = dst.Append(b)
	dst.Publish()
	r.Commit(consumeLen)
	return nil
}

// Clear drops everything. Used on resync and transport reconnect.
func (r *Ring) Clear() {
	r.start = 0
	r.committed = 0
	r.staged = 0
}

// Output implements OutputBuffer by staging data
func (r *Ring) Output(data []byte) error {
	return r.Append(data)
}

// CurPosition implements OutputBuffer. Positions count from the read start.
func (r *Ring) CurPosition() int {
	return r.staged
}

// Update implements OutputBuffer
func (r *Ring) Update(pos int, val byte) {
	r.IndexSet(pos, val)
}

// Rewind implements OutputBuffer. Only staged, unpublished bytes can be
// rewound.
func (r *Ring) Rewind(pos int) {
	if pos < r.committed || pos > r.staged {
		panic("protocol: rewind outside staged region")
	}
	r.staged = pos
}

// View is a read-only window into a Ring. It spans at most two storage
// segments when the data wraps. A View is invalidated by the next Commit or
// Append on its ring.
type View struct {
	a, b []byte
}

// Len returns the number of bytes in the view
func (v View) Len() int {
	return len(v.a) + len(v.b)
}

// At returns the byte at offset i
func (v View) At(i int) byte {
	if i < len(v.a) {
		return v.a[i]
	}
	return v.b[i-len(v.a)]
}

// CopyTo copies the view into dst and returns the number of bytes copied
func (v View) CopyTo(dst []byte) int {
	n := copy(dst, v.a)
	n += copy(dst[n:], v.b)
	return n
}

// Segments returns the two underlying slices; the second is empty unless the
// view wraps
func (v View) Segments() ([]byte, []byte) {
	return v.a, v.b
}
