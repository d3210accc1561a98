package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/squadracorsepolito/tsalign/tscale"
)

func Test_Buffer_fixed_overwritesOldestOnFull(t *testing.T) {
	assert := assert.New(t)

	b := New[string](Capacity{Fixed: 2})

	assert.True(b.Push(tscale.FromSeconds(1), "a"))
	assert.True(b.Push(tscale.FromSeconds(2), "b"))
	assert.True(b.Push(tscale.FromSeconds(3), "c"))

	droppedFull, _ := b.Counters()
	assert.EqualValues(1, droppedFull)
	assert.Equal(2, b.Len())

	item, ok := b.Peek()
	assert.True(ok)
	assert.Equal("b", item.Payload)
}

func Test_Buffer_dynamic_growsInsteadOfDropping(t *testing.T) {
	assert := assert.New(t)

	b := New[int](Capacity{Fixed: 0})
	initialCap := b.Cap()

	for i := range initialCap * 3 {
		assert.True(b.Push(tscale.FromSeconds(float64(i)), i))
	}

	droppedFull, _ := b.Counters()
	assert.EqualValues(0, droppedFull)
	assert.Equal(initialCap*3, b.Len())
	assert.GreaterOrEqual(b.Cap(), initialCap*3)
}

func Test_Buffer_push_rejectsBackwardInTime(t *testing.T) {
	assert := assert.New(t)

	b := New[string](Capacity{Fixed: 4})

	assert.True(b.Push(tscale.FromSeconds(2), "a"))
	assert.False(b.Push(tscale.FromSeconds(1), "late"))

	_, backward := b.Counters()
	assert.EqualValues(1, backward)
	assert.Equal(1, b.Len())
}

func Test_Buffer_push_acceptsEqualTimestamps(t *testing.T) {
	assert := assert.New(t)

	b := New[string](Capacity{Fixed: 4})

	assert.True(b.Push(tscale.FromSeconds(2), "a"))
	assert.True(b.Push(tscale.FromSeconds(2), "b"))

	assert.Equal(2, b.Len())
}

func Test_Buffer_peekTime_predictsFromPeriodWhenEmpty(t *testing.T) {
	assert := assert.New(t)

	b := New[string](Capacity{Fixed: 4})
	assert.True(b.Push(tscale.FromSeconds(1), "a"))
	_ = b.Pop()

	period := tscale.FromSeconds(2)
	assert.Equal(tscale.FromSeconds(3), b.PeekTime(period))
	assert.Equal(tscale.FromSeconds(1), b.PeekTime(0))
}

func Test_Buffer_pop_panicsOnEmpty(t *testing.T) {
	b := New[string](Capacity{Fixed: 4})
	assert.Panics(t, func() { b.Pop() })
}

func Test_Buffer_copyState_duplicatesContent(t *testing.T) {
	assert := assert.New(t)

	src := New[string](Capacity{Fixed: 4})
	src.Push(tscale.FromSeconds(1), "a")
	src.Push(tscale.FromSeconds(2), "b")

	dst := New[string](Capacity{Fixed: 4})
	dst.CopyState(src)

	assert.Equal(src.Len(), dst.Len())
	item, ok := dst.Peek()
	assert.True(ok)
	assert.Equal("a", item.Payload)
}

func Test_Buffer_clear_resetsCountersAndTimeButKeepsCapacity(t *testing.T) {
	assert := assert.New(t)

	b := New[string](Capacity{Fixed: 2})
	b.Push(tscale.FromSeconds(1), "a")
	b.Push(tscale.FromSeconds(2), "b")
	b.Push(tscale.FromSeconds(3), "c")

	b.Clear()

	droppedFull, backward := b.Counters()
	assert.EqualValues(0, droppedFull)
	assert.EqualValues(0, backward)
	assert.Equal(0, b.Len())
	assert.Equal(tscale.Null, b.LastAcceptedTime())
	assert.Equal(2, b.Cap())
}
