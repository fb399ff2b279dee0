package kfmt

import "io"

const (
	// ringBufferSize is the capacity of the early output buffer. It must be
	// a power of 2.
	ringBufferSize = 4096
	ringBufferMask = ringBufferSize - 1
)

// ringBuffer keeps the most recent output produced before an output sink is
// installed. Once full, every write evicts the oldest bytes; the number of
// evicted bytes is tracked so that the loss can be reported when the buffer
// is drained.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// head indexes the oldest buffered byte and count is the number of
	// buffered bytes.
	head, count int

	dropped uint64
}

// Write implements io.Writer. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n > ringBufferSize {
		rb.dropped += uint64(n - ringBufferSize)
		p = p[n-ringBufferSize:]
	}

	if evict := rb.count + len(p) - ringBufferSize; evict > 0 {
		rb.dropped += uint64(evict)
		rb.head = (rb.head + evict) & ringBufferMask
		rb.count -= evict
	}

	tail := (rb.head + rb.count) & ringBufferMask
	copied := copy(rb.buffer[tail:], p)
	copy(rb.buffer[:], p[copied:])
	rb.count += len(p)

	return n, nil
}

// Read implements io.Reader. Each call returns at most the bytes stored
// contiguously after head and io.EOF once the buffer is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	chunk := min(rb.count, ringBufferSize-rb.head)
	n := copy(p, rb.buffer[rb.head:rb.head+chunk])
	rb.head = (rb.head + n) & ringBufferMask
	rb.count -= n

	return n, nil
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int {
	return rb.count
}

// Dropped returns the number of bytes evicted since the last call to
// ResetDropped.
func (rb *ringBuffer) Dropped() uint64 {
	return rb.dropped
}

// ResetDropped clears the eviction counter.
func (rb *ringBuffer) ResetDropped() {
	rb.dropped = 0
}
