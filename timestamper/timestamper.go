// Package timestamper pairs opaque, arrival-time-only items against a
// trusted reference clock's ticks, correcting each item's time when a
// matching reference arrives within a window and falling back to a
// filtered estimate when it doesn't. It is a thin synchronization layer
// built on two cascaded estimator.Estimators: one tracking the item
// stream's own cadence, one tracking the reference stream's.
package timestamper

import (
	"github.com/squadracorsepolito/tsalign/estimator"
	"github.com/squadracorsepolito/tsalign/tscale"
)

// maxCtrGap bounds how large a sequence-counter jump may be before it's
// treated as a counter reset/wraparound rather than a genuine loss run.
const maxCtrGap = 1000

// Config carries the knobs a Timestamper needs at construction.
type Config struct {
	// MatchWindowOldest is how much earlier than a reference tick an
	// item may arrive and still be considered the same event.
	MatchWindowOldest tscale.Time

	// MatchWindowNewest is how much later than a reference tick an item
	// may arrive and still be considered the same event.
	MatchWindowNewest tscale.Time

	// MaxItemLatency is the age, measured from an item's arrival, past
	// which FetchItem force-resolves it from the item-stream filter
	// alone instead of continuing to wait for a reference match. Zero
	// disables age-based eviction.
	MaxItemLatency tscale.Time

	// MaxPending caps how many items or references may be queued
	// awaiting a match on the other side before PushItem/PushReference
	// start reporting ErrArenaExhausted. Zero means unbounded.
	MaxPending int

	Item      estimator.Config
	Reference estimator.Config
}

type arenaSlot[T any] struct {
	payload T
	arrival tscale.Time
	inUse   bool
	next    int
}

// Timestamper matches a stream of opaque payloads to a trusted reference
// clock. T is the payload's type.
type Timestamper[T any] struct {
	matchWindowOldest tscale.Time
	matchWindowNewest tscale.Time
	maxItemLatency    tscale.Time
	maxPending        int

	itemEst *estimator.Estimator
	refEst  *estimator.Estimator

	arena    []arenaSlot[T]
	freeHead int

	pendingItems []int // arena indices, FIFO, oldest first
	pendingRefs  []tscale.Time

	outQueue []Item[T]

	lastItemCtr uint32
	haveItemCtr bool
	lastRefCtr  uint32
	haveRefCtr  bool

	matchedTotal       uint64
	lossesTotal        uint64
	itemCtrLosses      uint64
	referenceCtrLosses uint64
}

// Item is a payload with its resolved timestamp.
type Item[T any] struct {
	Time    tscale.Time
	Payload T
}

// New constructs a Timestamper from cfg.
func New[T any](cfg Config) *Timestamper[T] {
	return &Timestamper[T]{
		matchWindowOldest: cfg.MatchWindowOldest,
		matchWindowNewest: cfg.MatchWindowNewest,
		maxItemLatency:    cfg.MaxItemLatency,
		maxPending:        cfg.MaxPending,
		itemEst:           estimator.New(cfg.Item),
		refEst:            estimator.New(cfg.Reference),
		freeHead:          -1,
	}
}

func (ts *Timestamper[T]) allocSlot(payload T, arrival tscale.Time) int {
	if ts.freeHead >= 0 {
		idx := ts.freeHead
		ts.freeHead = ts.arena[idx].next
		ts.arena[idx] = arenaSlot[T]{payload: payload, arrival: arrival, inUse: true, next: -1}
		return idx
	}
	ts.arena = append(ts.arena, arenaSlot[T]{payload: payload, arrival: arrival, inUse: true, next: -1})
	return len(ts.arena) - 1
}

func (ts *Timestamper[T]) freeSlot(idx int) {
	ts.arena[idx] = arenaSlot[T]{next: ts.freeHead}
	ts.freeHead = idx
}

// ctrGapLosses reports how many sequence numbers were skipped between
// last and cur, and whether that gap should be treated as a genuine
// loss run (a skip of 1..999) rather than a counter reset or wrap.
func ctrGapLosses(last, cur uint32) (int, bool) {
	diff := cur - last
	if diff <= 1 || diff > maxCtrGap {
		return 0, false
	}
	return int(diff) - 1, true
}

func (ts *Timestamper[T]) observeItemCtr(ctr uint32) {
	if ts.haveItemCtr {
		if losses, ok := ctrGapLosses(ts.lastItemCtr, ctr); ok {
			for i := 0; i < losses; i++ {
				ts.itemEst.UpdateLoss()
			}
			ts.itemCtrLosses += uint64(losses)
		}
	}
	ts.lastItemCtr = ctr
	ts.haveItemCtr = true
}

func (ts *Timestamper[T]) observeReferenceCtr(ctr uint32) {
	if ts.haveRefCtr {
		if losses, ok := ctrGapLosses(ts.lastRefCtr, ctr); ok {
			ts.referenceCtrLosses += uint64(losses)
		}
	}
	ts.lastRefCtr = ctr
	ts.haveRefCtr = true
}

// PushItem queues payload, arrived at t, for matching against the next
// in-window reference tick. ctr, if supplied, is a monotonically
// increasing sequence number; a gap of 1..999 against the last value
// seen here is reported to the item-stream estimator as that many
// losses. It returns ErrArenaExhausted if MaxPending items are already
// queued.
func (ts *Timestamper[T]) PushItem(payload T, t tscale.Time, ctr ...uint32) error {
	if ts.maxPending > 0 && len(ts.pendingItems) >= ts.maxPending {
		return ErrArenaExhausted
	}
	if len(ctr) > 0 {
		ts.observeItemCtr(ctr[0])
	}
	idx := ts.allocSlot(payload, t)
	ts.pendingItems = append(ts.pendingItems, idx)
	ts.synchronize()
	return nil
}

// PushReference feeds a trusted reference clock tick, attempting to
// match it against the oldest pending item. ctr, if supplied, behaves
// as in PushItem but against the reference stream's own sequence.
func (ts *Timestamper[T]) PushReference(r tscale.Time, ctr ...uint32) error {
	if ts.maxPending > 0 && len(ts.pendingRefs) >= ts.maxPending {
		return ErrArenaExhausted
	}
	if len(ctr) > 0 {
		ts.observeReferenceCtr(ctr[0])
	}
	ts.pendingRefs = append(ts.pendingRefs, r)
	ts.synchronize()
	return nil
}

// GetTimeFor is the fast path for a caller that already has a single
// self-timestamped item and does not need reference matching: it runs
// the item straight through the item-stream filter.
func (ts *Timestamper[T]) GetTimeFor(t tscale.Time) tscale.Time {
	return ts.itemEst.Update(t)
}

// FetchItem dequeues the oldest resolved item, if any. Before checking
// the output queue it evicts any pending item or reference that has
// aged past MaxItemLatency (measured against now) without finding a
// partner, resolving it from its own filter instead of a true match.
func (ts *Timestamper[T]) FetchItem(now tscale.Time) (Item[T], bool) {
	ts.evictStale(now)

	if len(ts.outQueue) == 0 {
		return Item[T]{}, false
	}
	item := ts.outQueue[0]
	ts.outQueue = ts.outQueue[1:]
	return item, true
}

func (ts *Timestamper[T]) evictStale(now tscale.Time) {
	if ts.maxItemLatency <= 0 {
		return
	}
	for len(ts.pendingItems) > 0 {
		idx := ts.pendingItems[0]
		if now.Sub(ts.arena[idx].arrival) < ts.maxItemLatency {
			break
		}
		ts.resolveOldestItem()
	}
	for len(ts.pendingRefs) > 0 {
		if now.Sub(ts.pendingRefs[0]) < ts.maxItemLatency {
			break
		}
		ts.resolveOldestReference()
	}
}

// GetStatus returns a snapshot of the timestamper's internal state.
func (ts *Timestamper[T]) GetStatus(now tscale.Time) Status {
	inUse := 0
	for _, s := range ts.arena {
		if s.inUse {
			inUse++
		}
	}
	return Status{
		Stamp: now,

		PendingItems:      len(ts.pendingItems),
		PendingReferences: len(ts.pendingRefs),

		MatchedTotal: ts.matchedTotal,
		LossesTotal:  ts.lossesTotal,

		ItemCtrLosses:      ts.itemCtrLosses,
		ReferenceCtrLosses: ts.referenceCtrLosses,

		ArenaInUse:    inUse,
		ArenaCapacity: len(ts.arena),
	}
}

// synchronize matches the oldest pending item against the oldest
// pending reference whenever one arrives within the asymmetric match
// window, and otherwise resolves whichever of the two is older so
// neither queue grows without bound.
func (ts *Timestamper[T]) synchronize() {
	for len(ts.pendingItems) > 0 && len(ts.pendingRefs) > 0 {
		itemIdx := ts.pendingItems[0]
		item := ts.arena[itemIdx]
		ref := ts.pendingRefs[0]

		// diff > 0: the item arrived before the reference (item is the
		// "older" side); diff < 0: the item arrived after it.
		diff := ref.Sub(item.arrival)
		var match bool
		if diff >= 0 {
			match = diff <= ts.matchWindowOldest
		} else {
			match = -diff <= ts.matchWindowNewest
		}
		if match {
			ts.matchReference(itemIdx, ref)
			continue
		}

		if ref.Before(item.arrival) {
			ts.resolveOldestReference()
		} else {
			ts.resolveOldestItem()
		}
	}
}

func (ts *Timestamper[T]) matchReference(itemIdx int, ref tscale.Time) {
	ts.pendingItems = ts.pendingItems[1:]
	ts.pendingRefs = ts.pendingRefs[1:]

	ts.refEst.Update(ref)
	ts.itemEst.UpdateReference(ref)

	ts.outQueue = append(ts.outQueue, Item[T]{Time: ref, Payload: ts.arena[itemIdx].payload})
	ts.freeSlot(itemIdx)
	ts.matchedTotal++
}

// resolveOldestItem pops the oldest pending item and resolves its time
// from the item-arrival filter alone, for when no reference tick will
// ever arrive to match it.
func (ts *Timestamper[T]) resolveOldestItem() {
	idx := ts.pendingItems[0]
	ts.pendingItems = ts.pendingItems[1:]
	slot := ts.arena[idx]

	resolved := ts.itemEst.Update(slot.arrival)
	ts.outQueue = append(ts.outQueue, Item[T]{Time: resolved, Payload: slot.payload})
	ts.freeSlot(idx)
}

// resolveOldestReference pops the oldest pending reference that has no
// item to pair with, announcing the gap to the item estimator (it is
// the item's turn that was skipped) before folding the tick into the
// reference-stream filter.
func (ts *Timestamper[T]) resolveOldestReference() {
	r := ts.pendingRefs[0]
	ts.pendingRefs = ts.pendingRefs[1:]

	ts.itemEst.UpdateLoss()
	ts.refEst.Update(r)
	ts.lossesTotal++
}
