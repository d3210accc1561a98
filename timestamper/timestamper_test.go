package timestamper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/squadracorsepolito/tsalign/estimator"
	"github.com/squadracorsepolito/tsalign/tscale"
)

func sec(s float64) tscale.Time { return tscale.FromSeconds(s) }

func testConfig() Config {
	return Config{
		MatchWindowOldest: sec(1),
		MatchWindowNewest: sec(1),
		Item:              estimator.NewDefaultConfig(sec(10)),
		Reference:         estimator.NewDefaultConfig(sec(10)),
	}
}

func Test_Timestamper_matchWithinWindow_resolvesToReferenceTime(t *testing.T) {
	assert := assert.New(t)

	ts := New[string](testConfig())

	assert.NoError(ts.PushItem("a", sec(100)))
	assert.Equal(1, ts.GetStatus(tscale.Null).PendingItems)

	assert.NoError(ts.PushReference(sec(100.2)))

	item, ok := ts.FetchItem(tscale.Null)
	assert.True(ok)
	assert.Equal(sec(100.2), item.Time)
	assert.Equal("a", item.Payload)

	status := ts.GetStatus(tscale.Null)
	assert.EqualValues(1, status.MatchedTotal)
	assert.Equal(0, status.PendingItems)
	assert.Equal(0, status.PendingReferences)
}

func Test_Timestamper_matchWindow_isAsymmetric(t *testing.T) {
	assert := assert.New(t)

	// An item may arrive up to 2s before its reference, but only 0.1s
	// after it.
	cfg := testConfig()
	cfg.MatchWindowOldest = sec(2)
	cfg.MatchWindowNewest = sec(0.1)
	ts := New[string](cfg)

	// item 1s before the reference: within the oldest-side window.
	assert.NoError(ts.PushItem("early", sec(10)))
	assert.NoError(ts.PushReference(sec(11)))
	item, ok := ts.FetchItem(tscale.Null)
	assert.True(ok)
	assert.Equal("early", item.Payload)
	assert.EqualValues(1, ts.GetStatus(tscale.Null).MatchedTotal)

	// item 0.5s after the reference: outside the newest-side window, so
	// the two can never match and each resolves independently.
	assert.NoError(ts.PushReference(sec(20)))
	assert.NoError(ts.PushItem("late", sec(20.5)))
	status := ts.GetStatus(tscale.Null)
	assert.EqualValues(1, status.MatchedTotal, "the out-of-window pair must not count as a match")
	assert.EqualValues(1, status.LossesTotal)
}

func Test_Timestamper_fetchItem_evictsPastMaxItemLatency(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.MaxItemLatency = sec(5)
	ts := New[string](cfg)

	assert.NoError(ts.PushItem("x", sec(50)))

	// Not yet stale: nothing to fetch.
	_, ok := ts.FetchItem(sec(52))
	assert.False(ok)
	assert.Equal(1, ts.GetStatus(tscale.Null).PendingItems)

	// Past MaxItemLatency: FetchItem force-resolves it from the item
	// filter alone.
	item, ok := ts.FetchItem(sec(56))
	assert.True(ok)
	assert.Equal(sec(50), item.Time)
	assert.Equal("x", item.Payload)
	assert.Equal(0, ts.GetStatus(tscale.Null).PendingItems)
}

func Test_Timestamper_fetchItem_evictsStaleUnmatchedReferenceAsLoss(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.MaxItemLatency = sec(5)
	ts := New[string](cfg)

	assert.NoError(ts.PushReference(sec(10)))
	_, ok := ts.FetchItem(sec(16))
	assert.False(ok, "a bare reference resolves to no item, never to the output queue")
	assert.EqualValues(1, ts.GetStatus(tscale.Null).LossesTotal)
	assert.Equal(0, ts.GetStatus(tscale.Null).PendingReferences)
}

func Test_Timestamper_arena_reusesFreedSlotsAcrossMatches(t *testing.T) {
	assert := assert.New(t)

	ts := New[string](testConfig())

	assert.NoError(ts.PushItem("a", sec(1)))
	assert.NoError(ts.PushReference(sec(1)))
	_, _ = ts.FetchItem(tscale.Null)
	assert.Equal(1, ts.GetStatus(tscale.Null).ArenaCapacity)

	assert.NoError(ts.PushItem("b", sec(2)))
	assert.NoError(ts.PushReference(sec(2)))
	_, _ = ts.FetchItem(tscale.Null)

	assert.Equal(1, ts.GetStatus(tscale.Null).ArenaCapacity, "second round should reuse the freed slot, not grow the arena")
}

func Test_Timestamper_getTimeFor_fastPathBypassesMatching(t *testing.T) {
	assert := assert.New(t)

	ts := New[string](testConfig())

	got := ts.GetTimeFor(sec(5))
	assert.Equal(sec(5), got)

	status := ts.GetStatus(tscale.Null)
	assert.Equal(0, status.PendingItems)
	assert.Equal(0, status.PendingReferences)
	assert.Equal(0, status.ArenaCapacity)
}

func Test_Timestamper_pushItem_errorsWhenArenaExhausted(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.MaxPending = 1
	ts := New[string](cfg)

	assert.NoError(ts.PushItem("a", sec(1)))
	assert.ErrorIs(ts.PushItem("b", sec(100)), ErrArenaExhausted)
}

func Test_Timestamper_pushItem_ctrGapReportsLosses(t *testing.T) {
	assert := assert.New(t)

	ts := New[string](testConfig())

	assert.NoError(ts.PushItem("a", sec(1), 10))
	// ctr jumps from 10 to 13: two sequence numbers (11, 12) were never
	// pushed, so two losses are reported.
	assert.NoError(ts.PushItem("b", sec(2), 13))

	assert.EqualValues(2, ts.GetStatus(tscale.Null).ItemCtrLosses)
}

func Test_Timestamper_pushItem_ctrResetIsNotReportedAsLoss(t *testing.T) {
	assert := assert.New(t)

	ts := New[string](testConfig())

	assert.NoError(ts.PushItem("a", sec(1), 500))
	// A ctr that goes backward (a counter reset, not a 1..999 forward
	// skip) must not be misread as tens of thousands of losses.
	assert.NoError(ts.PushItem("b", sec(2), 3))

	assert.EqualValues(0, ts.GetStatus(tscale.Null).ItemCtrLosses)
}

func Test_Timestamper_pushReference_ctrGapReportsLosses(t *testing.T) {
	assert := assert.New(t)

	ts := New[string](testConfig())

	assert.NoError(ts.PushReference(sec(1), 1))
	assert.NoError(ts.PushReference(sec(2), 4))

	assert.EqualValues(2, ts.GetStatus(tscale.Null).ReferenceCtrLosses)
}

// Test_Timestamper_referenceTenTicksOld is end-to-end scenario 6: an item
// arrives every tick, but the reference for tick i only becomes available
// 10 ticks later. Each fetched item should still resolve to exactly the
// reference time for its own tick, within 2us.
func Test_Timestamper_referenceTenTicksOld(t *testing.T) {
	assert := assert.New(t)

	const (
		lag   = 10
		ticks = 30
	)
	period := sec(0.05)
	t0 := sec(1000)
	tickTime := func(i int) tscale.Time { return t0 + tscale.Time(i)*period }

	cfg := testConfig()
	cfg.MatchWindowOldest = sec(0.001)
	cfg.MatchWindowNewest = sec(0.001)
	ts := New[int](cfg)

	var fetched []tscale.Time
	for i := 0; i < ticks; i++ {
		assert.NoError(ts.PushItem(i, tickTime(i)))
		if i >= lag {
			assert.NoError(ts.PushReference(tickTime(i - lag)))
		}
		for {
			item, ok := ts.FetchItem(tscale.Null)
			if !ok {
				break
			}
			fetched = append(fetched, item.Time)
		}
	}

	assert.Len(fetched, ticks-lag)
	for k, got := range fetched {
		assert.InDelta(tickTime(k).Seconds(), got.Seconds(), 2e-6)
	}
}
