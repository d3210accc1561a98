package estimator

import "github.com/squadracorsepolito/tsalign/tscale"

// Status is a plain report of the estimator's internal state, for
// diagnostics (C7 status records, spec.md §6).
type Status struct {
	Stamp tscale.Time

	Period  tscale.Time
	Latency tscale.Time
	// LatencyRaw is the unsplit reading from the last UpdateReference
	// (base time minus reference offset). Latency, the value actually
	// subtracted in Update's return, keeps the whole-period part of the
	// previous Latency and takes its sub-period part from that reading.
	LatencyRaw tscale.Time

	LostSamples      int
	LostSamplesTotal int

	WindowSize     int
	WindowCapacity int

	BaseTime            tscale.Time
	BaseTimeResetOffset tscale.Time

	ExpectedLosses         int
	RejectedExpectedLosses int

	TimeRaw          tscale.Time
	ReferenceTimeRaw tscale.Time
}
