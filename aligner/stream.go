package aligner

import (
	"github.com/squadracorsepolito/tsalign/buffer"
	"github.com/squadracorsepolito/tsalign/tscale"
)

// Callback is invoked, in timestamp order, with every sample accepted for
// a registered stream of payload type T.
type Callback[T any] func(ts tscale.Time, payload T)

// slot is the capability set the aligner needs from a registered stream,
// independent of its payload type. The original library obtained this
// polymorphism through a StreamBase pointer and RTTI casts at push time;
// here each typedStream[T] closes over its own payload type, and the
// aligner only ever talks to the slot interface, so no downcast is ever
// needed for the aligner's own bookkeeping (Push and GetNextSample still
// need one type assertion each, to recover T from the caller-supplied
// generic argument, but that's ordinary Go generics, not RTTI).
type slot interface {
	hasData() bool
	peekTime() tscale.Time
	priority() int
	name() string
	pop() tscale.Time
	isActive() bool
	setActive(bool)
	latestDataTime() tscale.Time
	earliestDataTime() tscale.Time
	bufferStatus() StreamStatus
	clear()
	copyStateFrom(other slot) error
}

type typedStream[T any] struct {
	buf *buffer.Buffer[T]

	callback Callback[T]
	period   tscale.Time
	prio     int
	nm       string
	active   bool

	samplesReceived            uint64
	samplesProcessed           uint64
	samplesDroppedLateArriving uint64
	latestSampleTime           tscale.Time
}

func newTypedStream[T any](cb Callback[T], capacity int, period tscale.Time, priority int, name string) *typedStream[T] {
	return &typedStream[T]{
		buf: buffer.New[T](buffer.Capacity{Fixed: capacity}),

		callback: cb,
		period:   period,
		prio:     priority,
		nm:       name,
		active:   true,
	}
}

func (s *typedStream[T]) hasData() bool { return s.buf.Len() > 0 }

func (s *typedStream[T]) peekTime() tscale.Time { return s.buf.PeekTime(s.period) }

func (s *typedStream[T]) priority() int { return s.prio }

func (s *typedStream[T]) name() string { return s.nm }

func (s *typedStream[T]) pop() tscale.Time {
	item := s.buf.Pop()
	s.samplesProcessed++
	if s.callback != nil {
		s.callback(item.Time, item.Payload)
	}
	return item.Time
}

func (s *typedStream[T]) isActive() bool { return s.active }

func (s *typedStream[T]) setActive(v bool) { s.active = v }

func (s *typedStream[T]) latestDataTime() tscale.Time { return s.buf.LatestDataTime() }

func (s *typedStream[T]) earliestDataTime() tscale.Time { return s.buf.EarliestDataTime() }

func (s *typedStream[T]) bufferStatus() StreamStatus {
	droppedFull, backward := s.buf.Counters()
	return StreamStatus{
		Name:     s.nm,
		Priority: s.prio,
		Active:   s.active,

		BufferSize: s.buf.Cap(),
		BufferFill: s.buf.Len(),

		SamplesReceived:            s.samplesReceived,
		SamplesProcessed:           s.samplesProcessed,
		SamplesDroppedBufferFull:   droppedFull,
		SamplesDroppedLateArriving: s.samplesDroppedLateArriving,
		SamplesBackwardInTime:      backward,

		LatestDataTime:   s.buf.LatestDataTime(),
		EarliestDataTime: s.buf.EarliestDataTime(),
		LatestSampleTime: s.latestSampleTime,
	}
}

func (s *typedStream[T]) clear() {
	s.buf.Clear()
	s.samplesReceived = 0
	s.samplesProcessed = 0
	s.samplesDroppedLateArriving = 0
	s.latestSampleTime = tscale.Null
	s.active = true
}

func (s *typedStream[T]) copyStateFrom(other slot) error {
	o, ok := other.(*typedStream[T])
	if !ok {
		return ErrTypeMismatch
	}
	s.buf.CopyState(o.buf)
	s.active = o.active
	s.samplesReceived = o.samplesReceived
	s.samplesProcessed = o.samplesProcessed
	s.samplesDroppedLateArriving = o.samplesDroppedLateArriving
	s.latestSampleTime = o.latestSampleTime
	return nil
}
