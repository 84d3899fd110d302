package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) (*DescriptorTable, *fakeNative) {
	t.Helper()
	native, _ := newFakeNative()
	table := newDescriptorTable(native, DescriptorTableConfig{
		BufferCapacity:       8,
		SampledImageCapacity: 8,
		StorageImageCapacity: 4,
		SamplerCapacity:      2,
	})
	return table, native
}

func TestTableWriteBufferForwardsAndShadows(t *testing.T) {
	table, native := newTestTable(t)

	table.writeBuffer(0xdeadbeef, 3)

	assert.Equal(t, uint64(0xdeadbeef), table.BufferAt(3))
	require.Len(t, native.descriptorWrites, 1)
	assert.Equal(t, descriptorWrite{"buffer", 3, uint64(0xdeadbeef)}, native.descriptorWrites[0])
}

func TestTableWritesAreIdempotent(t *testing.T) {
	table, _ := newTestTable(t)

	table.writeBuffer(0x1000, 0)
	table.writeBuffer(0x1000, 0)
	assert.Equal(t, uint64(0x1000), table.BufferAt(0))

	view := &fakeImageView{}
	table.writeSampledImage(view, 1)
	table.writeSampledImage(view, 1)
	assert.Same(t, view, table.SampledImageAt(1))
}

func TestTableOverwriteReplacesOccupant(t *testing.T) {
	table, _ := newTestTable(t)

	table.writeBuffer(0x1000, 5)
	table.writeBuffer(0x2000, 5)
	assert.Equal(t, uint64(0x2000), table.BufferAt(5))
}

func TestTableIndependentCategories(t *testing.T) {
	table, _ := newTestTable(t)

	view := &fakeImageView{}
	sampler := &fakeSampler{}

	table.writeBuffer(0x1, 0)
	table.writeSampledImage(view, 0)
	table.writeStorageImage(view, 0)
	table.writeSampler(sampler, 0)

	assert.Equal(t, uint64(0x1), table.BufferAt(0))
	assert.Same(t, view, table.SampledImageAt(0))
	assert.Same(t, view, table.StorageImageAt(0))
	assert.Same(t, sampler, table.SamplerAt(0))
}

func TestTableCapacityExceededPanics(t *testing.T) {
	table, _ := newTestTable(t)

	assert.Panics(t, func() { table.writeBuffer(0x1, 8) })
	assert.Panics(t, func() { table.writeSampledImage(&fakeImageView{}, 8) })
	assert.Panics(t, func() { table.writeStorageImage(&fakeImageView{}, 4) })
	assert.Panics(t, func() { table.writeSampler(&fakeSampler{}, 2) })
	assert.Panics(t, func() { table.BufferAt(8) })
}

func TestTableCapacities(t *testing.T) {
	table, _ := newTestTable(t)

	assert.Equal(t, uint32(8), table.BufferCapacity())
	assert.Equal(t, uint32(8), table.SampledImageCapacity())
	assert.Equal(t, uint32(4), table.StorageImageCapacity())
	assert.Equal(t, uint32(2), table.SamplerCapacity())
}

func TestDefaultTableConfig(t *testing.T) {
	cfg := DefaultDescriptorTableConfig()
	assert.Equal(t, uint32(1024), cfg.BufferCapacity)
	assert.Equal(t, uint32(128), cfg.SamplerCapacity)
}
