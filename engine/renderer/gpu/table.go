package gpu

import "fmt"

// DescriptorTableConfig fixes the per-category capacities at
// construction.
type DescriptorTableConfig struct {
	BufferCapacity       uint32
	SampledImageCapacity uint32
	StorageImageCapacity uint32
	SamplerCapacity      uint32
}

func DefaultDescriptorTableConfig() DescriptorTableConfig {
	return DescriptorTableConfig{
		BufferCapacity:       1024,
		SampledImageCapacity: 1024,
		StorageImageCapacity: 1024,
		SamplerCapacity:      128,
	}
}

// DescriptorTable is the globally addressable set of shader-visible
// resource references. A write unconditionally overwrites the slot; the
// previous occupant is not reference counted, because slot-index
// lifecycle belongs to a caller-side allocation policy.
//
// A write to slot i must not race a shader invocation reading slot i:
// batch pending writes into an upload pass ordered before any command
// stream that reads the same indices. Writes to other indices may
// proceed while reads are in flight (update-after-bind).
type DescriptorTable struct {
	writer DescriptorWriter

	buffers       []uint64
	sampledImages []NativeImageView
	storageImages []NativeImageView
	samplers      []NativeSampler
}

func newDescriptorTable(writer DescriptorWriter, cfg DescriptorTableConfig) *DescriptorTable {
	return &DescriptorTable{
		writer:        writer,
		buffers:       make([]uint64, cfg.BufferCapacity),
		sampledImages: make([]NativeImageView, cfg.SampledImageCapacity),
		storageImages: make([]NativeImageView, cfg.StorageImageCapacity),
		samplers:      make([]NativeSampler, cfg.SamplerCapacity),
	}
}

func checkCapacity(index uint32, capacity int, category string) {
	if int(index) >= capacity {
		panic(fmt.Sprintf("gpu: bindless %s slot %d exceeds table capacity %d", category, index, capacity))
	}
}

func (t *DescriptorTable) writeBuffer(address uint64, index uint32) {
	checkCapacity(index, len(t.buffers), "buffer")
	t.buffers[index] = address
	t.writer.WriteBufferDescriptor(index, address)
}

func (t *DescriptorTable) writeSampledImage(view NativeImageView, index uint32) {
	checkCapacity(index, len(t.sampledImages), "sampled image")
	t.sampledImages[index] = view
	t.writer.WriteSampledImageDescriptor(index, view)
}

func (t *DescriptorTable) writeStorageImage(view NativeImageView, index uint32) {
	checkCapacity(index, len(t.storageImages), "storage image")
	t.storageImages[index] = view
	t.writer.WriteStorageImageDescriptor(index, view)
}

func (t *DescriptorTable) writeSampler(sampler NativeSampler, index uint32) {
	checkCapacity(index, len(t.samplers), "sampler")
	t.samplers[index] = sampler
	t.writer.WriteSamplerDescriptor(index, sampler)
}

// BufferAt returns the device address currently bound at the slot.
func (t *DescriptorTable) BufferAt(index uint32) uint64 {
	checkCapacity(index, len(t.buffers), "buffer")
	return t.buffers[index]
}

func (t *DescriptorTable) SampledImageAt(index uint32) NativeImageView {
	checkCapacity(index, len(t.sampledImages), "sampled image")
	return t.sampledImages[index]
}

func (t *DescriptorTable) StorageImageAt(index uint32) NativeImageView {
	checkCapacity(index, len(t.storageImages), "storage image")
	return t.storageImages[index]
}

func (t *DescriptorTable) SamplerAt(index uint32) NativeSampler {
	checkCapacity(index, len(t.samplers), "sampler")
	return t.samplers[index]
}

func (t *DescriptorTable) BufferCapacity() uint32       { return uint32(len(t.buffers)) }
func (t *DescriptorTable) SampledImageCapacity() uint32 { return uint32(len(t.sampledImages)) }
func (t *DescriptorTable) StorageImageCapacity() uint32 { return uint32(len(t.storageImages)) }
func (t *DescriptorTable) SamplerCapacity() uint32      { return uint32(len(t.samplers)) }
