package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAddGetRoundTrip(t *testing.T) {
	p := newPool[string]("test")

	h1 := p.add("alpha")
	h2 := p.add("beta")

	assert.Equal(t, "alpha", *p.get(h1))
	assert.Equal(t, "beta", *p.get(h2))
	assert.Equal(t, 2, p.liveCount())
}

func TestPoolDeleteReturnsPayload(t *testing.T) {
	p := newPool[string]("test")

	h := p.add("payload")
	assert.Equal(t, "payload", p.delete(h))
	assert.Equal(t, 0, p.liveCount())
}

func TestPoolFreedIndexReusedLIFO(t *testing.T) {
	p := newPool[int]("test")

	h1 := p.add(1)
	h2 := p.add(2)
	h3 := p.add(3)

	p.delete(h2)
	p.delete(h3)

	// Most recently freed index comes back first.
	h4 := p.add(4)
	assert.Equal(t, h3.index, h4.index)
	h5 := p.add(5)
	assert.Equal(t, h2.index, h5.index)

	assert.Equal(t, 1, *p.get(h1))
	assert.Equal(t, 4, *p.get(h4))
	assert.Equal(t, 5, *p.get(h5))
}

func TestPoolStaleHandleRejected(t *testing.T) {
	p := newPool[int]("test")

	h1 := p.add(1)
	p.delete(h1)

	// Index reuse must not resurrect the old identity.
	h2 := p.add(2)
	require.Equal(t, h1.index, h2.index)
	require.NotEqual(t, h1.generation, h2.generation)

	assert.Panics(t, func() { p.get(h1) })
	assert.Panics(t, func() { p.delete(h1) })
	assert.Equal(t, 2, *p.get(h2))
}

func TestPoolInvalidAccessPanics(t *testing.T) {
	p := newPool[int]("test")
	h := p.add(1)

	assert.Panics(t, func() { p.get(handle{index: 99}) })
	assert.Panics(t, func() { p.delete(handle{index: 99}) })
	assert.Panics(t, func() { p.get(handle{index: nilIndex}) })

	p.delete(h)
	assert.Panics(t, func() { p.get(h) })
}

func TestPoolGrowthKeepsPayloadAddressesStable(t *testing.T) {
	p := newPool[int]("test")

	first := p.add(42)
	ptr := p.get(first)

	// Push growth across several pages.
	for i := 0; i < poolPageSize*3; i++ {
		p.add(i)
	}

	assert.Same(t, ptr, p.get(first))
	assert.Equal(t, 42, *p.get(first))
}

func TestPoolManyAddDeleteCycles(t *testing.T) {
	p := newPool[int]("test")

	live := make(map[handle]int)
	for i := 0; i < 500; i++ {
		h := p.add(i)
		live[h] = i
		if i%3 == 0 {
			for old, v := range live {
				assert.Equal(t, v, p.delete(old))
				delete(live, old)
				break
			}
		}
	}

	for h, v := range live {
		assert.Equal(t, v, *p.get(h))
	}
	assert.Equal(t, len(live), p.liveCount())
}

func TestHandleString(t *testing.T) {
	assert.Equal(t, "nil", NilBufferID().handle.String())
	assert.Equal(t, "3@1", handle{index: 3, generation: 1}.String())
	assert.True(t, NilImageID().IsNil())
	assert.False(t, ImageID{handle{index: 0}}.IsNil())
}
