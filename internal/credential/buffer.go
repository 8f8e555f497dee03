// Package credential implements the bounded in-progress credential buffer.
//
// The buffer holds the typed secret between submits. It is preallocated
// and wiped in place: clearing zeroes the backing memory rather than
// dropping it, so no copy of a partial credential lingers on the heap.
// Swap exposure is handled process-wide by mlockall at startup.
package credential

import (
	"errors"
	"unicode/utf8"
)

// ErrUndecodable is returned by Materialize when the accumulated bytes do
// not form valid UTF-8. Callers must treat it like an incorrect credential,
// never like absent input.
var ErrUndecodable = errors.New("credential: buffer is not valid text")

// Buffer is a capacity-bounded credential accumulator.
//
// On overflow the buffer is reset, not truncated: a silently shortened
// credential could be accepted as intentional input, a fresh start cannot.
type Buffer struct {
	buf   []byte
	n     int     // bytes used
	lens  []uint8 // byte length of each pushed character, for Pop
	count int     // characters held
	max   int     // character capacity
}

// New returns an empty buffer capped at capacity characters.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		buf:  make([]byte, capacity*utf8.UTFMax),
		lens: make([]uint8, 0, capacity),
		max:  capacity,
	}
}

// Push appends one character. A push into a full buffer clears it first,
// so the buffer ends up holding exactly the new character.
func (b *Buffer) Push(r rune) {
	if b.count >= b.max {
		b.Clear()
	}
	w := utf8.EncodeRune(b.buf[b.n:], r)
	b.n += w
	b.lens = append(b.lens, uint8(w))
	b.count++
}

// Pop removes the last character. Popping an empty buffer is a no-op.
func (b *Buffer) Pop() {
	if b.count == 0 {
		return
	}
	w := int(b.lens[b.count-1])
	b.lens = b.lens[:b.count-1]
	b.count--
	for i := b.n - w; i < b.n; i++ {
		b.buf[i] = 0
	}
	b.n -= w
}

// Clear empties the buffer and wipes the backing memory. Idempotent.
func (b *Buffer) Clear() {
	for i := range b.buf[:b.n] {
		b.buf[i] = 0
	}
	b.n = 0
	b.count = 0
	b.lens = b.lens[:0]
}

// Len returns the number of characters held.
func (b *Buffer) Len() int {
	return b.count
}

// Materialize interprets the accumulated bytes as text. The buffer is not
// consumed; the caller clears it after the attempt.
func (b *Buffer) Materialize() (string, error) {
	if !utf8.Valid(b.buf[:b.n]) {
		return "", ErrUndecodable
	}
	return string(b.buf[:b.n]), nil
}
