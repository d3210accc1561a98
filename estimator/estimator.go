// Package estimator implements online filtering of a noisy, irregularly
// sampled arrival-time signal into a smooth periodic time base, with loss
// detection and an optional secondary reference clock for drift
// correction. See the aligner package for the companion stream merge.
package estimator

import (
	"math"

	"github.com/squadracorsepolito/tsalign/internal/ring"
	"github.com/squadracorsepolito/tsalign/tscale"
)

const lostSampleAgeLimit = 10

// LostThresholdNever disables the persistent-gap loss path (Config.LostThreshold),
// leaving only the expected-loss path driven by UpdateLoss.
const LostThresholdNever = -1

// Config carries the knobs an Estimator needs at construction. Window and
// an initial guess at the period are the only two a caller must get right;
// everything else has a sane default.
type Config struct {
	// Window is how far back, in arrival-time terms, the sample history
	// is allowed to span before old samples are dropped.
	Window tscale.Time

	// InitialPeriod, if non-null, seeds the period estimate before the
	// window has filled, and also fixes the sample ring's capacity
	// instead of letting it grow.
	InitialPeriod tscale.Time

	// InitialLatency seeds the latency correction applied to every
	// returned estimate.
	InitialLatency tscale.Time

	// LostThreshold is how many consecutive apparent gaps must persist
	// before they're declared a loss run, or LostThresholdNever to
	// disable this detection path.
	LostThreshold int
}

// NewDefaultConfig returns a Config with LostThreshold set to the
// original library's default of 2 and all times null/zero.
func NewDefaultConfig(window tscale.Time) Config {
	return Config{
		Window:        window,
		LostThreshold: 2,
	}
}

type sample struct {
	offset float64
	valid  bool
}

// Estimator turns a stream of arrival times into a smooth, periodic time
// base estimate, tolerating jitter and detecting dropped samples. See
// spec.md §4.4 for the filtering algorithm this implements.
type Estimator struct {
	windowSec float64

	hasInitialPeriod bool
	initialPeriodSec float64

	zero     tscale.Time
	haveZero bool
	gotFull  bool
	samples  *ring.Ring[sample]
	missing  int
	missingT int

	period     float64
	latency    float64
	latencyRaw float64

	lastEstimate float64
	baseReset    float64

	lostThreshold int
	recentGaps    []int

	expectedLosses  int
	expectedTimeout int
	rejectedLosses  int

	lastIndex   int64
	haveLastIdx bool

	lastReference tscale.Time
	lastTimeRaw   tscale.Time
}

// New constructs an Estimator from cfg.
func New(cfg Config) *Estimator {
	e := &Estimator{
		windowSec:     cfg.Window.Seconds(),
		latency:       cfg.InitialLatency.Seconds(),
		lostThreshold: cfg.LostThreshold,
	}
	if cfg.LostThreshold == 0 {
		e.lostThreshold = 2
	}
	if !cfg.InitialPeriod.IsNull() {
		e.hasInitialPeriod = true
		e.initialPeriodSec = cfg.InitialPeriod.Seconds()
		e.period = e.initialPeriodSec
		initialCap := int(math.Ceil(cfg.Window.Seconds()/e.initialPeriodSec)) + 2
		e.samples = ring.New[sample](initialCap)
	} else {
		e.samples = ring.New[sample](8)
	}
	return e
}

func (e *Estimator) toTime(offsetSeconds float64) tscale.Time {
	return e.zero.Add(tscale.FromSeconds(offsetSeconds))
}

// Update folds a new arrival time into the estimate and returns the
// filtered, latency-corrected time for this sample.
func (e *Estimator) Update(t tscale.Time) tscale.Time {
	e.lastTimeRaw = t

	if !e.haveZero {
		e.zero = t
		e.haveZero = true
		e.samples.PushBack(sample{offset: 0, valid: true})
		e.lastEstimate = 0
		e.baseReset = 0
		return e.toTime(e.lastEstimate - e.latency)
	}

	offset := t.Sub(e.zero).Seconds()

	e.shortenSampleList(offset)

	if e.samples.Len() == 0 {
		e.lastEstimate = offset
		e.baseReset = offset
		e.samples.PushBack(sample{offset: offset, valid: true})
		return e.toTime(e.lastEstimate - e.latency)
	}

	if e.period > 0 {
		e.detectAndEmitLosses(offset)
	}

	e.push(offset, true)

	if offset-e.baseReset > e.windowSec {
		e.rebase(offset)
	}

	e.period = e.computePeriod()
	if !e.gotFull {
		if span := e.samples.Back().offset - e.samples.Front().offset; span >= e.windowSec {
			e.gotFull = true
		}
	}
	if !e.gotFull && e.hasInitialPeriod {
		e.period = e.initialPeriodSec
	}

	if e.period > 0 && e.lastEstimate+e.period > offset-1e-4*e.period {
		e.lastEstimate = offset
	} else if e.period > 0 {
		e.lastEstimate += e.period
	} else {
		e.lastEstimate = offset
	}

	return e.toTime(e.lastEstimate - e.latency)
}

// UpdateIndexed is Update, but additionally told the sequence index the
// sample carried on the wire. Gaps in the index sequence are translated
// into UpdateLoss calls before the sample itself is folded in. An index
// at or below the last seen index is treated as a reset, not a loss.
func (e *Estimator) UpdateIndexed(t tscale.Time, index int64) tscale.Time {
	if !e.haveLastIdx || index <= e.lastIndex {
		e.lastIndex = index
		e.haveLastIdx = true
		return e.Update(t)
	}

	lost := index - e.lastIndex - 1
	for i := int64(0); i < lost; i++ {
		e.UpdateLoss()
	}
	e.lastIndex = index
	return e.Update(t)
}

// UpdateLoss announces a sample that is known to have been lost, without
// waiting for the next Update call to infer it. It returns a prediction
// for the lost sample's time, but does not itself advance the base-time
// estimate: that happens when a later Update call reconciles the
// announced loss against the real gap it observes.
func (e *Estimator) UpdateLoss() tscale.Time {
	e.expectedLosses++
	e.expectedTimeout = lostSampleAgeLimit
	predicted := e.lastEstimate
	if e.period > 0 {
		predicted += e.period
	}
	return e.toTime(predicted - e.latency)
}

// UpdateReference folds in a reading from a secondary, authoritative
// clock, used to correct for slow drift in latency once the window has
// filled. It is a no-op before that point.
func (e *Estimator) UpdateReference(r tscale.Time) {
	e.lastReference = r
	if !e.gotFull || e.period <= 0 {
		return
	}
	hw := r.Sub(e.zero).Seconds()
	e.latencyRaw = e.lastEstimate - hw
	n := math.Floor((e.lastEstimate - hw) / e.period)
	frac := e.lastEstimate - (hw + n*e.period)
	e.latency = math.Floor(e.latency/e.period)*e.period + frac
}

// ShortenSampleList drops history older than the window as of t, without
// folding in a new sample. Calling this periodically is recommended when
// UpdateLoss may be called many times in a row without an intervening
// Update.
func (e *Estimator) ShortenSampleList(t tscale.Time) {
	if !e.haveZero {
		return
	}
	e.shortenSampleList(t.Sub(e.zero).Seconds())
}

// HaveEstimate reports whether GetPeriod/GetLatency return a meaningful
// value yet.
func (e *Estimator) HaveEstimate() bool {
	valid := e.samples.Len() - e.missing
	if e.hasInitialPeriod {
		return valid >= 1
	}
	return valid >= 2
}

// GetPeriod returns the current period estimate. It returns ErrNoEstimate
// if HaveEstimate is false.
func (e *Estimator) GetPeriod() (tscale.Time, error) {
	if !e.HaveEstimate() {
		return tscale.Null, ErrNoEstimate
	}
	return tscale.FromSeconds(e.period), nil
}

// GetLatency returns the current latency correction.
func (e *Estimator) GetLatency() tscale.Time {
	return tscale.FromSeconds(e.latency)
}

// GetLostSampleCount returns the running total of samples inferred lost.
func (e *Estimator) GetLostSampleCount() int {
	return e.missingT
}

// GetStatus returns a snapshot of the estimator's internal state.
func (e *Estimator) GetStatus(now tscale.Time) Status {
	return Status{
		Stamp: now,

		Period:     tscale.FromSeconds(e.period),
		Latency:    tscale.FromSeconds(e.latency),
		LatencyRaw: tscale.FromSeconds(e.latencyRaw),

		LostSamples:      e.missing,
		LostSamplesTotal: e.missingT,

		WindowSize:     e.samples.Len(),
		WindowCapacity: e.samples.Cap(),

		BaseTime:            e.toTime(e.lastEstimate),
		BaseTimeResetOffset: tscale.FromSeconds(e.baseReset),

		ExpectedLosses:         e.expectedLosses,
		RejectedExpectedLosses: e.rejectedLosses,

		TimeRaw:          e.lastTimeRaw,
		ReferenceTimeRaw: e.lastReference,
	}
}

func (e *Estimator) push(offset float64, valid bool) {
	if e.samples.Full() {
		if !e.hasInitialPeriod && e.period > 0 {
			newCap := int(math.Ceil(1.5 * (e.windowSec + e.period) / e.period))
			if newCap > e.samples.Cap() {
				e.samples.Grow(newCap)
			}
		}
	}
	if e.samples.Full() {
		old := e.samples.PopFront()
		if !old.valid {
			e.missing--
		}
	}
	e.samples.PushBack(sample{offset: offset, valid: valid})
}

func (e *Estimator) shortenSampleList(offset float64) {
	if e.samples.Len() == 0 {
		return
	}

	minOffset := offset - e.windowSec
	for e.samples.Len() > 0 && e.samples.Front().offset < minOffset {
		s := e.samples.PopFront()
		if !s.valid {
			e.missing--
		}
	}

	if e.period > 0 && e.samples.Len() > 1 {
		cut := 0
		for i := 1; i < e.samples.Len(); i++ {
			prev := e.samples.At(i - 1)
			cur := e.samples.At(i)
			if cur.offset-prev.offset >= 1.5*e.period {
				cut = i
			}
		}
		for i := 0; i < cut; i++ {
			s := e.samples.PopFront()
			if !s.valid {
				e.missing--
			}
		}
	}

	if e.samples.Len() == 0 || e.missing == e.samples.Len() {
		e.missing = 0
	}
}

func (e *Estimator) detectAndEmitLosses(offset float64) {
	if e.expectedLosses > 0 {
		distance := math.Round((offset - e.lastEstimate + 0.1*e.period) / e.period)
		if distance > 1 {
			n := int(distance - 1)
			if n > e.expectedLosses {
				n = e.expectedLosses
			}
			for i := 0; i < n; i++ {
				e.emitLoss()
				e.expectedLosses--
			}
		}

		e.expectedTimeout--
		if e.expectedTimeout <= 0 && e.expectedLosses > 0 {
			e.rejectedLosses += e.expectedLosses
			e.expectedLosses = 0
		}
		return
	}

	if e.lostThreshold == LostThresholdNever {
		return
	}

	distance := int(math.Floor((offset - e.lastEstimate) / e.period))
	e.recentGaps = append(e.recentGaps, distance)
	if len(e.recentGaps) > e.lostThreshold {
		e.recentGaps = e.recentGaps[len(e.recentGaps)-e.lostThreshold:]
	}
	if len(e.recentGaps) < e.lostThreshold {
		return
	}

	minGap := e.recentGaps[0]
	allPersist := true
	for _, g := range e.recentGaps {
		if g < 2 {
			allPersist = false
		}
		if g < minGap {
			minGap = g
		}
	}
	if allPersist {
		for i := 0; i < minGap-1; i++ {
			e.emitLoss()
		}
		e.recentGaps = e.recentGaps[:0]
	}
}

func (e *Estimator) emitLoss() {
	e.push(e.lastEstimate, false)
	e.missing++
	e.missingT++
	e.lastEstimate += e.period
}

func (e *Estimator) rebase(offset float64) {
	if e.period <= 0 {
		e.baseReset = offset
		return
	}

	n := e.samples.Len()
	best := e.lastEstimate
	for k := 0; k < n; k++ {
		idx := n - 1 - k
		s := e.samples.At(idx)
		if !s.valid {
			continue
		}
		candidate := s.offset + float64(k)*e.period
		if candidate < best {
			best = candidate
		}
	}
	e.lastEstimate = best
	e.baseReset = offset

	if e.expectedLosses > 0 {
		e.expectedTimeout = lostSampleAgeLimit
	}
}

func (e *Estimator) computePeriod() float64 {
	n := e.samples.Len()
	var front, back float64
	have := false
	count := 0
	for i := 0; i < n; i++ {
		s := e.samples.At(i)
		if !s.valid {
			continue
		}
		if !have {
			front = s.offset
			have = true
		}
		back = s.offset
		count++
	}
	if count < 2 {
		if e.hasInitialPeriod {
			return e.initialPeriodSec
		}
		return e.period
	}
	return (back - front) / float64(count-1)
}
