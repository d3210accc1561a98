// Package aligner implements the Stream Aligner (C3) and the Pull
// Aligner (C4): a k-way merge of per-stream bounded buffers keyed by
// sample timestamp, with a bounded-latency lookahead policy.
//
// It is adapted from the teacher's internal/rob reorder buffer — same
// owning-slice-of-slots shape, same "hole" reuse on unregister — but
// reordering here is driven by comparing predicted arrival timestamps
// across heterogeneous typed streams rather than by a single sequence
// number space, since spec.md's streams are independent sources with
// their own clocks, not a single numbered sequence.
package aligner

import (
	"context"
	"math"
	"sort"

	"github.com/squadracorsepolito/tsalign/internal/telemetry"
	"github.com/squadracorsepolito/tsalign/tscale"
)

const safetyFactor = 2.0

// Aligner is the Stream Aligner described in spec.md §4.2. The zero value
// is not usable; construct with [New].
type Aligner struct {
	name string

	slots   []slot
	timeout tscale.Time

	latestArrival tscale.Time
	currentOut    tscale.Time

	samplesDroppedLateArriving uint64

	tel *telemetry.Telemetry
}

// New creates an Aligner with the given name (used only for diagnostics,
// e.g. in [AlignerStatus.Name]) and lookahead timeout.
func New(name string, timeout tscale.Time) *Aligner {
	return &Aligner{
		name:    name,
		timeout: timeout,
	}
}

// WithTelemetry attaches an optional telemetry facade. Returns the
// receiver for chaining. Never call this concurrently with any other
// method, per spec.md §5.
func (a *Aligner) WithTelemetry(t *telemetry.Telemetry) *Aligner {
	a.tel = t
	return a
}

// SetTimeout changes the lookahead timeout.
func (a *Aligner) SetTimeout(timeout tscale.Time) {
	a.timeout = timeout
}

// GetTimeOut returns the current lookahead timeout.
func (a *Aligner) GetTimeOut() tscale.Time {
	return a.timeout
}

// GetLatency returns the time difference between the latest sample that
// arrived and the latest sample that was emitted.
func (a *Aligner) GetLatency() tscale.Time {
	return a.latestArrival.Sub(a.currentOut)
}

// GetCurrentTime returns the timestamp of the last sample emitted by
// Step, or [tscale.Null] if nothing has been emitted yet.
func (a *Aligner) GetCurrentTime() tscale.Time {
	return a.currentOut
}

// GetLatestTime returns the largest timestamp ever accepted by Push.
func (a *Aligner) GetLatestTime() tscale.Time {
	return a.latestArrival
}

// GetStreamSize returns the number of slots, including holes left by
// Unregister.
func (a *Aligner) GetStreamSize() int {
	return len(a.slots)
}

func (a *Aligner) resolveCapacity(capacity int, period tscale.Time) (int, tscale.Time, error) {
	if capacity >= 0 {
		return capacity, period, nil
	}

	switch {
	case period == tscale.Null:
		return 0, period, ErrConfigContradiction
	case period < tscale.Null:
		absPeriod := -period
		size := int(math.Ceil(a.timeout.Seconds()/absPeriod.Seconds()) * safetyFactor)
		// a negative period sizes the buffer but carries no lookahead.
		return size, tscale.Null, nil
	default:
		size := int(math.Ceil(a.timeout.Seconds()/period.Seconds()) * safetyFactor)
		return size, period, nil
	}
}

func (a *Aligner) insertSlot(s slot) int {
	for i, existing := range a.slots {
		if existing == nil {
			a.slots[i] = s
			return i
		}
	}
	a.slots = append(a.slots, s)
	return len(a.slots) - 1
}

// RegisterStream registers a new stream of payload type T and returns its
// id. See spec.md §4.2 for the capacity/period resolution rules:
//   - capacity < 0 auto-sizes a fixed buffer from timeout/period (with a
//     safety factor of 2); this requires period != 0.
//   - period < 0 sizes the buffer the same way but the stream carries no
//     lookahead prediction (it is not periodic as far as Step is
//     concerned).
//   - capacity == 0 means a dynamically growing buffer.
func RegisterStream[T any](a *Aligner, callback Callback[T], capacity int, period tscale.Time, priority int, name string) (int, error) {
	resolvedCap, resolvedPeriod, err := a.resolveCapacity(capacity, period)
	if err != nil {
		return -1, err
	}

	id := a.insertSlot(newTypedStream(callback, resolvedCap, resolvedPeriod, priority, name))
	a.tel.LogInfo("registered stream", "id", id, "name", name, "capacity", resolvedCap, "period", resolvedPeriod)
	return id, nil
}

func (a *Aligner) slotAt(id int) (slot, error) {
	if id < 0 || id >= len(a.slots) || a.slots[id] == nil {
		return nil, ErrInvalidID
	}
	return a.slots[id], nil
}

// UnregisterStream destroys the stream descriptor at id; the slot becomes
// a reusable hole. Further operations against id fail with
// [ErrInvalidID].
func (a *Aligner) UnregisterStream(id int) error {
	if _, err := a.slotAt(id); err != nil {
		return err
	}
	a.slots[id] = nil
	return nil
}

// DisableStream marks a stream inactive: it becomes invisible to
// lookahead and timeout calculations, but Step still drains items already
// buffered for it.
func (a *Aligner) DisableStream(id int) error {
	s, err := a.slotAt(id)
	if err != nil {
		return err
	}
	s.setActive(false)
	return nil
}

// EnableStream re-activates a stream disabled via DisableStream.
func (a *Aligner) EnableStream(id int) error {
	s, err := a.slotAt(id)
	if err != nil {
		return err
	}
	s.setActive(true)
	return nil
}

// IsStreamActive reports whether the stream at id is active.
func (a *Aligner) IsStreamActive(id int) (bool, error) {
	s, err := a.slotAt(id)
	if err != nil {
		return false, err
	}
	return s.isActive(), nil
}

// Push adds (ts, payload) to the stream at id. A previously inactive
// stream is implicitly re-activated. A sample whose ts is strictly
// earlier than the aligner's current output time is dropped and counted,
// not delivered. See spec.md §4.2 step-by-step.
func Push[T any](a *Aligner, id int, ts tscale.Time, payload T) error {
	s, err := a.slotAt(id)
	if err != nil {
		return err
	}
	ts2, ok := s.(*typedStream[T])
	if !ok {
		return ErrTypeMismatch
	}

	ts2.samplesReceived++
	ts2.latestSampleTime = ts
	ts2.setActive(true)

	if ts.Before(a.currentOut) {
		a.samplesDroppedLateArriving++
		ts2.samplesDroppedLateArriving++
		a.tel.LogWarn("dropped late-arriving sample", "id", id, "ts", ts, "current", a.currentOut)
		return nil
	}

	if ts.After(a.latestArrival) {
		a.latestArrival = ts
	}

	ts2.buf.Push(ts, payload)
	return nil
}

// GetNextSample returns the oldest buffered item for the stream at id,
// without removing it.
func GetNextSample[T any](a *Aligner, id int) (tscale.Time, T, bool) {
	var zero T
	s, err := a.slotAt(id)
	if err != nil {
		return tscale.Null, zero, false
	}
	ts, ok := s.(*typedStream[T])
	if !ok {
		return tscale.Null, zero, false
	}
	item, ok := ts.buf.Peek()
	if !ok {
		return tscale.Null, zero, false
	}
	return item.Time, item.Payload, true
}

// sortedIndices returns slot indices ordered by the §4.2.2 comparator:
// absent slots last, then ascending peekTime, then data-holders before
// empty streams, then ascending priority.
func (a *Aligner) sortedIndices() []int {
	order := make([]int, len(a.slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return a.less(order[i], order[j])
	})
	return order
}

func (a *Aligner) less(i, j int) bool {
	si, sj := a.slots[i], a.slots[j]
	switch {
	case si == nil && sj == nil:
		return false
	case si == nil:
		return false
	case sj == nil:
		return true
	}

	ti, tj := si.peekTime(), sj.peekTime()
	if ti != tj {
		return ti.Before(tj)
	}

	hi, hj := si.hasData(), sj.hasData()
	if hi != hj {
		return hi
	}

	return si.priority() < sj.priority()
}

// decisionWindow computes [firstDataTime, latestDataTime] per spec.md
// §4.2: on the very first call (currentOut unset), derived from the
// earliest/latest currently buffered items across active streams;
// thereafter (currentOut, latestArrival). ok is false only when this is
// the first call and no active stream currently holds data — spec.md §9
// directs treating that as "no progress", not as a null propagation.
func (a *Aligner) decisionWindow() (first, latest tscale.Time, ok bool) {
	if !a.currentOut.IsNull() {
		return a.currentOut, a.latestArrival, true
	}

	haveFirst := false
	for _, s := range a.slots {
		if s == nil || !s.isActive() || !s.hasData() {
			continue
		}
		e := s.earliestDataTime()
		if !haveFirst || e.Before(first) {
			first = e
			haveFirst = true
		}
		if l := s.latestDataTime(); l.After(latest) {
			latest = l
		}
	}
	if !haveFirst {
		return tscale.Null, tscale.Null, false
	}
	return first, latest, true
}

// Step examines the registered streams, earliest predicted arrival
// first, and emits at most one sample to its stream's callback. It
// returns true iff a sample was emitted; callers typically loop until it
// returns false. See spec.md §4.2 for the full decision procedure.
func (a *Aligner) Step() bool {
	if len(a.slots) == 0 {
		return false
	}

	_, span := a.tel.NewSpan(context.Background(), "aligner.Step")
	defer span.End()

	order := a.sortedIndices()
	first, latest, ok := a.decisionWindow()

	for _, idx := range order {
		s := a.slots[idx]
		if s == nil {
			continue
		}

		// A stream still drains buffered items on step even while
		// disabled; only an empty stream's activity state matters for
		// lookahead/timeout purposes.
		if s.hasData() {
			ts := s.pop()
			a.currentOut = ts
			return true
		}
		if !s.isActive() {
			continue
		}

		if !ok {
			return false
		}
		if latest.Sub(first) < a.timeout {
			return false
		}
		// this empty active stream has timed out; it cannot block
		// progress any further this step, move on to the next one.
	}

	return false
}

// Clear empties every stream's buffer, resets per-stream and global
// counters, resets CurrentTime/LatestTime, and re-activates every
// stream. Registration (slots, callbacks, period, priority) is
// preserved.
func (a *Aligner) Clear() {
	for _, s := range a.slots {
		if s != nil {
			s.clear()
		}
	}
	a.latestArrival = tscale.Null
	a.currentOut = tscale.Null
	a.samplesDroppedLateArriving = 0
}

// CopyState copies runtime state (buffers, counters, CurrentTime,
// LatestTime) from other into a. Both aligners must have an identical
// registration topology: same number of slots, same hole layout, and
// matching payload type per slot. It does not copy configuration
// (timeout, callbacks, period, priority, name).
func (a *Aligner) CopyState(other *Aligner) error {
	if len(a.slots) != len(other.slots) {
		return ErrTopologyMismatch
	}
	for i := range a.slots {
		weHave := a.slots[i] != nil
		otherHas := other.slots[i] != nil
		if weHave != otherHas {
			return ErrTopologyMismatch
		}
		if weHave {
			if err := a.slots[i].copyStateFrom(other.slots[i]); err != nil {
				return ErrTopologyMismatch
			}
		}
	}
	a.latestArrival = other.latestArrival
	a.currentOut = other.currentOut
	a.samplesDroppedLateArriving = other.samplesDroppedLateArriving
	return nil
}

// GetBufferStatus returns the status of the stream at id.
func (a *Aligner) GetBufferStatus(id int) (StreamStatus, error) {
	s, err := a.slotAt(id)
	if err != nil {
		return StreamStatus{}, err
	}
	return s.bufferStatus(), nil
}

// GetStatus returns a full snapshot of the aligner's state, for
// diagnostics. now is stamped into the returned status's Time field;
// pass [tscale.Null] if the caller has no notion of wall-clock time.
func (a *Aligner) GetStatus(now tscale.Time) AlignerStatus {
	streams := make([]StreamStatus, len(a.slots))
	for i, s := range a.slots {
		if s != nil {
			streams[i] = s.bufferStatus()
		}
	}
	return AlignerStatus{
		Time: now,
		Name: a.name,

		CurrentTime: a.currentOut,
		LatestTime:  a.latestArrival,

		SamplesDroppedLateArriving: a.samplesDroppedLateArriving,

		Streams: streams,
	}
}
