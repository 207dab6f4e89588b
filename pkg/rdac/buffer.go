// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdac

// Buffer is the FIFO of received bytes owned by a Stream.
// Bytes are appended at the back and only ever removed from the front.
type Buffer struct {
	data  []byte
	limit int // 0 means unbounded
}

// NewBuffer creates a buffer that holds at most limit bytes (0 = unbounded).
func NewBuffer(limit int) *Buffer {
	capacity := limit
	if capacity <= 0 || capacity > MaxFrameSize*4 {
		capacity = MaxFrameSize * 4
	}
	return &Buffer{
		data:  make([]byte, 0, capacity),
		limit: limit,
	}
}

// Append adds p to the back of the buffer. If the result would exceed the
// configured maximum, the oldest bytes are dropped; the number of dropped
// bytes is returned.
func (b *Buffer) Append(p []byte) int {
	b.data = append(b.data, p...)
	if b.limit <= 0 || len(b.data) <= b.limit {
		return 0
	}
	dropped := len(b.data) - b.limit
	b.Discard(dropped)
	return dropped
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// At returns the byte at offset i. The caller must ensure i < Len().
func (b *Buffer) At(i int) byte {
	return b.data[i]
}

// Peek returns the first n bytes without consuming them. The returned slice
// aliases the buffer and is only valid until the next mutation.
func (b *Buffer) Peek(n int) []byte {
	if n > len(b.data) {
		n = len(b.data)
	}
	return b.data[:n]
}

// Discard removes up to n bytes from the front and returns how many were removed.
func (b *Buffer) Discard(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(b.data) {
		n = len(b.data)
		b.data = b.data[:0]
		return n
	}
	// Shift down instead of reslicing so the backing array does not creep forward
	remaining := copy(b.data, b.data[n:])
	b.data = b.data[:remaining]
	return n
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
