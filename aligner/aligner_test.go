package aligner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/squadracorsepolito/tsalign/tscale"
)

func sec(s float64) tscale.Time { return tscale.FromSeconds(s) }

func Test_Aligner_lookahead_ordersAcrossPredictedArrivals(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(5))

	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	s1, err := RegisterStream(a, cb, 10, sec(2), -1, "s1")
	assert.NoError(err)
	s2, err := RegisterStream(a, cb, 10, sec(0), -1, "s2")
	assert.NoError(err)

	assert.NoError(Push(a, s1, sec(1), "a"))
	assert.NoError(Push(a, s1, sec(3), "c"))
	assert.NoError(Push(a, s2, sec(2), "b"))
	assert.NoError(Push(a, s2, sec(3), "d"))
	assert.NoError(Push(a, s2, sec(4), "f"))
	assert.NoError(Push(a, s1, sec(4), "e"))

	for a.Step() {
	}

	assert.Equal([]string{"a", "b", "c", "d", "e", "f"}, got)
	assert.False(a.Step())
}

func Test_Aligner_timeoutWait_holdsThenReleases(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))

	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	s1, _ := RegisterStream(a, cb, 10, sec(2), -1, "s1")
	_, _ = RegisterStream(a, cb, 10, sec(0), -1, "s2")

	assert.NoError(Push(a, s1, sec(10), "a"))
	assert.NoError(Push(a, s1, sec(11), "b"))

	assert.False(a.Step())
	assert.Empty(got)

	assert.NoError(Push(a, s1, sec(12), "c"))

	assert.True(a.Step())
	assert.True(a.Step())
	assert.Equal([]string{"a", "b"}, got)
}

func Test_Aligner_priority_lowerValueWinsTies(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))

	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	s1, _ := RegisterStream(a, cb, 10, sec(2), 0, "s1")
	s2, _ := RegisterStream(a, cb, 10, sec(2), 1, "s2")

	assert.NoError(Push(a, s1, sec(2), "a"))
	assert.NoError(Push(a, s2, sec(2), "b"))

	assert.True(a.Step())
	assert.True(a.Step())
	assert.Equal([]string{"a", "b"}, got)
}

func Test_Aligner_lateDrop_neverReachesCallback(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))

	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	s1, _ := RegisterStream(a, cb, 10, sec(0), -1, "s1")

	assert.NoError(Push(a, s1, sec(5), "a"))
	assert.True(a.Step())
	assert.Equal([]string{"a"}, got)

	assert.NoError(Push(a, s1, sec(1), "late"))
	assert.False(a.Step())
	assert.Equal([]string{"a"}, got)

	status := a.GetStatus(tscale.Null)
	assert.EqualValues(1, status.SamplesDroppedLateArriving)
}

func Test_Aligner_backwardInStream_rejectedAndCounted(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))
	cb := func(ts tscale.Time, v string) {}

	s1, _ := RegisterStream(a, cb, 10, sec(0), -1, "s1")

	assert.NoError(Push(a, s1, sec(5), "a"))
	assert.NoError(Push(a, s1, sec(3), "backward"))

	status, err := a.GetBufferStatus(s1)
	assert.NoError(err)
	assert.EqualValues(1, status.SamplesBackwardInTime)
	assert.Equal(1, status.BufferFill)
}

func Test_Aligner_copyState_reproducesFutureEmissions(t *testing.T) {
	assert := assert.New(t)

	var gotA, gotB []string

	src := New("src", sec(2))
	s1src, _ := RegisterStream(src, func(ts tscale.Time, v string) { gotA = append(gotA, v) }, 10, sec(0), -1, "s1")
	assert.NoError(Push(src, s1src, sec(1), "a"))

	dst := New("dst", sec(2))
	s1dst, _ := RegisterStream(dst, func(ts tscale.Time, v string) { gotB = append(gotB, v) }, 10, sec(0), -1, "s1")

	assert.NoError(dst.CopyState(src))

	for src.Step() {
	}
	for dst.Step() {
	}

	assert.Equal(gotA, gotB)
	assert.Equal(s1src, s1dst)
}

func Test_Aligner_disableStream_drainsButIsIgnoredByTimeout(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))
	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	s1, _ := RegisterStream(a, cb, 10, sec(0), -1, "s1")
	s2, _ := RegisterStream(a, cb, 10, sec(0), -1, "s2")

	assert.NoError(Push(a, s1, sec(1), "a"))
	assert.NoError(a.DisableStream(s2))

	assert.True(a.Step())
	assert.Equal([]string{"a"}, got)

	active, err := a.IsStreamActive(s2)
	assert.NoError(err)
	assert.False(active)
}

func Test_Aligner_disableStream_stillDrainsBufferedItems(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))
	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	s1, _ := RegisterStream(a, cb, 10, sec(0), -1, "s1")

	// s1 has buffered items at the moment it gets disabled; those items
	// must still drain on Step rather than being stuck forever (spec.md
	// §4.2: inactive streams drain existing buffered items on step).
	assert.NoError(Push(a, s1, sec(1), "b1"))
	assert.NoError(Push(a, s1, sec(2), "b2"))
	assert.NoError(a.DisableStream(s1))

	active, err := a.IsStreamActive(s1)
	assert.NoError(err)
	assert.False(active)

	assert.True(a.Step())
	assert.True(a.Step())
	assert.Equal([]string{"b1", "b2"}, got)

	// both buffered items drained and s1 is disabled and empty, so Step
	// now reports no progress.
	assert.False(a.Step())
}

func Test_Aligner_push_reactivatesDisabledStream(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))
	cb := func(ts tscale.Time, v string) {}
	s1, _ := RegisterStream(a, cb, 10, sec(0), -1, "s1")

	assert.NoError(a.DisableStream(s1))
	active, _ := a.IsStreamActive(s1)
	assert.False(active)

	assert.NoError(Push(a, s1, sec(1), "a"))
	active, _ = a.IsStreamActive(s1)
	assert.True(active)
}

func Test_Aligner_unregister_invalidatesID(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))
	cb := func(ts tscale.Time, v string) {}
	s1, _ := RegisterStream(a, cb, 10, sec(0), -1, "s1")

	assert.NoError(a.UnregisterStream(s1))
	assert.ErrorIs(Push(a, s1, sec(1), "a"), ErrInvalidID)

	s2, err := RegisterStream(a, cb, 10, sec(0), -1, "s2")
	assert.NoError(err)
	assert.Equal(s1, s2, "unregistered slot should be reused")
}

func Test_Aligner_registerStream_autoSizeRequiresPeriod(t *testing.T) {
	assert := assert.New(t)

	a := New("test", sec(2))
	cb := func(ts tscale.Time, v string) {}

	_, err := RegisterStream(a, cb, -1, sec(0), -1, "bad")
	assert.ErrorIs(err, ErrConfigContradiction)

	id, err := RegisterStream(a, cb, -1, sec(1), -1, "ok")
	assert.NoError(err)
	status, err := a.GetBufferStatus(id)
	assert.NoError(err)
	assert.Equal(4, status.BufferSize) // ceil(2/1) * safety(2)
}

type pendingSample struct {
	ts tscale.Time
	v  string
}

func Test_PullAligner_pullThenStep(t *testing.T) {
	assert := assert.New(t)

	p := NewPull("test", sec(2))

	var got []string
	cb := func(ts tscale.Time, v string) { got = append(got, v) }

	var p1Next, p2Next *pendingSample

	src1 := func() (tscale.Time, string, bool) {
		if p1Next == nil {
			return tscale.Null, "", false
		}
		n := p1Next
		p1Next = nil
		return n.ts, n.v, true
	}
	src2 := func() (tscale.Time, string, bool) {
		if p2Next == nil {
			return tscale.Null, "", false
		}
		n := p2Next
		p2Next = nil
		return n.ts, n.v, true
	}

	_, err := RegisterPullStream(p, src1, cb, 10, sec(2), -1, "p1")
	assert.NoError(err)
	_, err = RegisterPullStream(p, src2, cb, 10, sec(2), -1, "p2")
	assert.NoError(err)

	p1Next = &pendingSample{sec(2), "b"}
	p2Next = &pendingSample{sec(1), "a"}

	for p.Pull() {
	}
	for p.Step() {
	}

	assert.Equal([]string{"a", "b"}, got)
}
