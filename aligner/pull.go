package aligner

import (
	"sort"

	"github.com/squadracorsepolito/tsalign/tscale"
)

// SourceCallback is invoked once per Pull tick to ask a pull-stream's
// source for its next sample. It returns false if no sample is
// available this tick.
type SourceCallback[T any] func() (ts tscale.Time, payload T, ok bool)

// pullSlot is the payload-type-erased capability a PullAligner needs
// from each registered pull source.
type pullSlot interface {
	fetch()
	lastTime() tscale.Time
	hasCached() bool
	flush()
}

type typedPullStream[T any] struct {
	source SourceCallback[T]

	aligner *Aligner
	id      int

	cachedTime    tscale.Time
	cachedPayload T
	cached        bool
}

func (p *typedPullStream[T]) fetch() {
	if p.cached {
		return
	}
	ts, payload, ok := p.source()
	if !ok {
		return
	}
	p.cachedTime = ts
	p.cachedPayload = payload
	p.cached = true
}

func (p *typedPullStream[T]) lastTime() tscale.Time { return p.cachedTime }

func (p *typedPullStream[T]) hasCached() bool { return p.cached }

func (p *typedPullStream[T]) flush() {
	if !p.cached {
		return
	}
	_ = Push(p.aligner, p.id, p.cachedTime, p.cachedPayload)
	p.cached = false
}

// PullAligner wraps an [Aligner], adding a pull loop that fetches at most
// one sample per source callback per tick and pushes the globally
// earliest into the wrapped aligner. See spec.md §4.3.
type PullAligner struct {
	*Aligner

	pulls []pullSlot
}

// NewPull creates a PullAligner with the given name and lookahead
// timeout.
func NewPull(name string, timeout tscale.Time) *PullAligner {
	return &PullAligner{
		Aligner: New(name, timeout),
	}
}

// RegisterPullStream registers a pull-stream: sourceCb supplies samples
// on demand (via Pull), outCb consumes them in timestamp order (via the
// wrapped Aligner's Step), exactly as RegisterStream's callback would.
func RegisterPullStream[T any](p *PullAligner, sourceCb SourceCallback[T], outCb Callback[T], capacity int, period tscale.Time, priority int, name string) (int, error) {
	id, err := RegisterStream(p.Aligner, outCb, capacity, period, priority, name)
	if err != nil {
		return -1, err
	}
	p.pulls = append(p.pulls, &typedPullStream[T]{
		source:  sourceCb,
		aligner: p.Aligner,
		id:      id,
	})
	return id, nil
}

// Pull fetches from every pull-stream that has no cached pending item,
// then pushes the earliest cached item (by cached timestamp, ties going
// to the earlier-registered pull-stream) into the underlying aligner. It returns true iff a push happened. A typical
// caller loops Pull until it returns false, then loops Step until it
// returns false.
func (p *PullAligner) Pull() bool {
	for _, ps := range p.pulls {
		if !ps.hasCached() {
			ps.fetch()
		}
	}

	order := make([]int, len(p.pulls))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := p.pulls[order[i]], p.pulls[order[j]]
		ai, bi := a.hasCached(), b.hasCached()
		if ai != bi {
			return ai
		}
		if !ai {
			return false
		}
		return a.lastTime().Before(b.lastTime())
	})

	if len(order) == 0 {
		return false
	}

	first := p.pulls[order[0]]
	if !first.hasCached() {
		return false
	}
	first.flush()
	return true
}
