package aligner

import "github.com/squadracorsepolito/tsalign/tscale"

// StreamStatus is a plain report of one registered stream's counters and
// buffer state, per spec.md §6 (C7 status records).
type StreamStatus struct {
	Name     string
	Priority int
	Active   bool

	BufferSize int
	BufferFill int

	SamplesReceived            uint64
	SamplesProcessed           uint64
	SamplesDroppedBufferFull   uint64
	SamplesDroppedLateArriving uint64
	SamplesBackwardInTime      uint64

	LatestDataTime   tscale.Time
	EarliestDataTime tscale.Time
	LatestSampleTime tscale.Time
}

// AlignerStatus is a plain report of the aligner's global state and every
// registered stream's [StreamStatus].
type AlignerStatus struct {
	Time tscale.Time
	Name string

	CurrentTime tscale.Time
	LatestTime  tscale.Time

	SamplesDroppedLateArriving uint64

	Streams []StreamStatus
}
