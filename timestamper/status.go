package timestamper

import "github.com/squadracorsepolito/tsalign/tscale"

// Status is a plain report of a Timestamper's internal state.
type Status struct {
	Stamp tscale.Time

	PendingItems      int
	PendingReferences int

	MatchedTotal uint64
	LossesTotal  uint64

	// ItemCtrLosses and ReferenceCtrLosses count losses inferred from a
	// gap in the optional sequence counter passed to PushItem/
	// PushReference, as distinct from LossesTotal (which counts
	// references that aged out of the match window with no item to pair).
	ItemCtrLosses      uint64
	ReferenceCtrLosses uint64

	ArenaInUse    int
	ArenaCapacity int
}
