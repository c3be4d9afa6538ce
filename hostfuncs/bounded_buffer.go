package hostfuncs

import (
	"bytes"
)

// DefaultMaxRequestSize limits the size of host function requests read from
// guest memory (1MB). A guest cannot make the host allocate more by claiming
// a larger length.
const DefaultMaxRequestSize = 1 * 1024 * 1024

// BoundedBuffer is a bytes.Buffer wrapper that stops growing at a limit.
// Writes past the limit are discarded and Truncated is set.
type BoundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	Truncated bool
}

// NewBoundedBuffer creates a new BoundedBuffer with the specified limit.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	return &BoundedBuffer{
		limit: limit,
	}
}

// Write implements io.Writer. It never reports a short write, so it can sit
// behind io.Copy.
func (b *BoundedBuffer) Write(p []byte) (n int, err error) {
	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			b.Truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		b.Truncated = true
		if _, err := b.buffer.Write(p[:remaining]); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return b.buffer.Write(p)
}

// String returns the buffer contents as a string.
func (b *BoundedBuffer) String() string {
	return b.buffer.String()
}

// Bytes returns the buffer contents as a byte slice.
func (b *BoundedBuffer) Bytes() []byte {
	return b.buffer.Bytes()
}

// Len returns the current length of the buffer.
func (b *BoundedBuffer) Len() int {
	return b.buffer.Len()
}

// Reset resets the buffer and clears the Truncated flag.
func (b *BoundedBuffer) Reset() {
	b.buffer.Reset()
	b.Truncated = false
}
