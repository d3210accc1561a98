package aligner

import "errors"

// Error kinds per spec.md §7. Drops (backward-in-time, late-arriving,
// buffer-full) are not errors — they are counted in status and execution
// continues; only these are hard failures.
var (
	// ErrInvalidID is returned for any operation against a stream id that
	// was never registered, or has been unregistered.
	ErrInvalidID = errors.New("aligner: invalid stream id")

	// ErrTypeMismatch is returned when Push is called with a payload type
	// that doesn't match the stream's registration. GetNextSample reports
	// the same condition by returning ok == false.
	ErrTypeMismatch = errors.New("aligner: payload type mismatch")

	// ErrConfigContradiction is returned by RegisterStream when an
	// auto-sized buffer capacity is requested for a stream with an
	// unknown (zero) period.
	ErrConfigContradiction = errors.New("aligner: cannot auto-size buffer capacity without a period")

	// ErrTopologyMismatch is returned by CopyState when the two aligners
	// do not share an identical registration topology.
	ErrTopologyMismatch = errors.New("aligner: registration topology mismatch")
)
