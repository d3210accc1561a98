// Package buffer implements the per-stream FIFO used by the stream
// aligner (C2 in the design). It is adapted from the teacher's
// internal/rob.buffer, replacing sequence-number keyed slotting with a
// timestamp-ordered append-only FIFO, since this library's streams are
// not reordered by sequence number, only merged by timestamp.
package buffer

import (
	"github.com/squadracorsepolito/tsalign/internal/ring"
	"github.com/squadracorsepolito/tsalign/tscale"
)

// Capacity selects the overflow policy for a [Buffer].
type Capacity struct {
	// Fixed is the buffer size. If <= 0, the buffer is dynamic: it
	// never drops on overflow, it doubles instead.
	Fixed int
}

// Item is a single (timestamp, payload) pair. Payload is stored as an
// opaque value; the aligner's typed Stream wrapper is responsible for
// type safety at its boundary.
type Item[T any] struct {
	Time    tscale.Time
	Payload T
}

// Buffer is a per-stream FIFO of timestamped items, non-strictly
// ascending by Time.
type Buffer[T any] struct {
	items *ring.Ring[Item[T]]

	dynamic bool

	lastAcceptedTime tscale.Time

	samplesDroppedBufferFull uint64
	samplesBackwardInTime    uint64
}

// New creates a Buffer with the given capacity policy. A Fixed value <= 0
// means dynamic (grow-on-overflow); a positive value means fixed
// circular-overwrite.
func New[T any](cap Capacity) *Buffer[T] {
	size := cap.Fixed
	dynamic := size <= 0
	if dynamic {
		size = 20 // matches the original library's initial dynamic allocation
	}

	return &Buffer[T]{
		items:   ring.New[Item[T]](size),
		dynamic: dynamic,
	}
}

// Cap returns the current backing capacity.
func (b *Buffer[T]) Cap() int {
	return b.items.Cap()
}

// Len returns the number of items currently buffered.
func (b *Buffer[T]) Len() int {
	return b.items.Len()
}

// LastAcceptedTime returns the largest timestamp ever accepted by Push,
// or [tscale.Null] if nothing has been accepted yet.
func (b *Buffer[T]) LastAcceptedTime() tscale.Time {
	return b.lastAcceptedTime
}

// Push appends (ts, payload) to the buffer if ts is not strictly earlier
// than LastAcceptedTime. Returns false (and increments the
// backward-in-time counter) if rejected.
//
// On a fixed-capacity buffer that is already full, the oldest item is
// dropped to make room (circular overwrite) and the buffer-full counter
// is incremented. On a dynamic buffer, the capacity doubles instead.
func (b *Buffer[T]) Push(ts tscale.Time, payload T) bool {
	if ts.Before(b.lastAcceptedTime) {
		b.samplesBackwardInTime++
		return false
	}
	b.lastAcceptedTime = ts

	item := Item[T]{Time: ts, Payload: payload}

	if b.dynamic {
		b.items.PushBack(item)
		return true
	}

	if b.items.PushOverwrite(item) {
		b.samplesDroppedBufferFull++
	}
	return true
}

// Pop removes and returns the oldest item. Popping an empty buffer is a
// programming error and panics, matching the original library's
// throw std::runtime_error("pop() called on stream with no data.").
func (b *Buffer[T]) Pop() Item[T] {
	if b.items.Len() == 0 {
		panic("buffer: Pop called on empty buffer")
	}
	return b.items.PopFront()
}

// Peek returns the oldest item without removing it.
func (b *Buffer[T]) Peek() (Item[T], bool) {
	if b.items.Len() == 0 {
		var zero Item[T]
		return zero, false
	}
	return b.items.Front(), true
}

// PeekTime returns the lookahead prediction for the stream owning this
// buffer: the front item's timestamp if the buffer is non-empty;
// otherwise LastAcceptedTime()+period if period > 0 (a claim that a
// sample will arrive by then); otherwise LastAcceptedTime().
func (b *Buffer[T]) PeekTime(period tscale.Time) tscale.Time {
	if item, ok := b.Peek(); ok {
		return item.Time
	}
	if period > 0 {
		return b.lastAcceptedTime.Add(period)
	}
	return b.lastAcceptedTime
}

// EarliestDataTime returns the oldest buffered timestamp, or
// [tscale.Null] if the buffer is empty.
func (b *Buffer[T]) EarliestDataTime() tscale.Time {
	if item, ok := b.Peek(); ok {
		return item.Time
	}
	return tscale.Null
}

// LatestDataTime returns LastAcceptedTime(), the newest timestamp ever
// accepted (which might already have been popped).
func (b *Buffer[T]) LatestDataTime() tscale.Time {
	return b.lastAcceptedTime
}

// Counters returns the buffer-full and backward-in-time drop counts.
func (b *Buffer[T]) Counters() (droppedBufferFull, backwardInTime uint64) {
	return b.samplesDroppedBufferFull, b.samplesBackwardInTime
}

// CopyState replaces this buffer's runtime state with other's. Both
// buffers must share the same payload type T, which the Go type system
// already guarantees at compile time (no RTTI cast is needed, unlike the
// original's dynamic_cast<Stream<T>&>).
func (b *Buffer[T]) CopyState(other *Buffer[T]) {
	b.items = ring.New[Item[T]](other.items.Cap())
	other.items.Each(func(_ int, v Item[T]) bool {
		b.items.PushBack(v)
		return true
	})
	b.dynamic = other.dynamic
	b.lastAcceptedTime = other.lastAcceptedTime
	b.samplesDroppedBufferFull = other.samplesDroppedBufferFull
	b.samplesBackwardInTime = other.samplesBackwardInTime
}

// Clear empties the buffer and resets its counters and last-accepted
// time, but keeps its capacity and overflow policy.
func (b *Buffer[T]) Clear() {
	b.items.Clear()
	b.lastAcceptedTime = tscale.Null
	b.samplesDroppedBufferFull = 0
	b.samplesBackwardInTime = 0
}
