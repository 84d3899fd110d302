package gpu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/prisma/engine/core"
)

type bufferSlot struct {
	name    string
	native  NativeBuffer
	alloc   Allocation
	address uint64
	size    uint64
}

type imageSlot struct {
	name   string
	native NativeImage
	alloc  Allocation
	format Format
	// Presentable images are adopted from the swapchain; the display
	// engine owns their memory and native handles.
	owned bool
}

type imageViewSlot struct {
	native NativeImageView
	image  ImageID
}

type samplerSlot struct {
	native NativeSampler
}

type pipelineSlot struct {
	native   NativePipeline
	pipeline PipelineType
}

// Device is the resource authority: the sole creator and destroyer of
// GPU objects, owner of every slot pool and of the bindless table.
//
// All resource-mutating calls are serialized by an internal mutex, so a
// single Device may be shared across goroutines. The caller still owns
// the GPU-side lifetime contract: no in-flight work may reference an id
// at the moment it is destroyed.
type Device struct {
	mu        sync.Mutex
	native    NativeDevice
	allocator Allocator
	bindless  *DescriptorTable

	buffers   *pool[bufferSlot]
	images    *pool[imageSlot]
	views     *pool[imageViewSlot]
	samplers  *pool[samplerSlot]
	pipelines *pool[pipelineSlot]
}

func NewDevice(native NativeDevice, allocator Allocator, tableCfg DescriptorTableConfig) *Device {
	return &Device{
		native:    native,
		allocator: allocator,
		bindless:  newDescriptorTable(native, tableCfg),
		buffers:   newPool[bufferSlot]("buffer"),
		images:    newPool[imageSlot]("image"),
		views:     newPool[imageViewSlot]("image view"),
		samplers:  newPool[samplerSlot]("sampler"),
		pipelines: newPool[pipelineSlot]("pipeline"),
	}
}

// Bindless exposes the descriptor table for inspection. Writes go
// through the typed Write* methods below.
func (d *Device) Bindless() *DescriptorTable {
	return d.bindless
}

func debugName(name string) string {
	if name == "" {
		return uuid.New().String()
	}
	return name
}

// Buffer //

func (d *Device) CreateBuffer(desc *BufferDescription) (BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := debugName(desc.Name)

	native, req, err := d.native.CreateBuffer(desc)
	if err != nil {
		return NilBufferID(), fmt.Errorf("failed to create buffer '%s': %w", name, err)
	}

	alloc, err := d.allocator.Allocate(req, desc.Residency)
	if err != nil {
		d.native.DestroyBuffer(native)
		return NilBufferID(), fmt.Errorf("failed to allocate %d bytes for buffer '%s' (%v): %w", req.Size, name, err, core.ErrOutOfDeviceMemory)
	}

	if err := d.native.BindBufferMemory(native, alloc); err != nil {
		d.allocator.Free(alloc)
		d.native.DestroyBuffer(native)
		return NilBufferID(), fmt.Errorf("failed to bind memory for buffer '%s': %w", name, err)
	}

	h := d.buffers.add(bufferSlot{
		name:    name,
		native:  native,
		alloc:   alloc,
		address: d.native.BufferDeviceAddress(native),
		size:    desc.Size,
	})

	core.LogDebug("buffer '%s' created (%d bytes, id %s)", name, desc.Size, h)
	return BufferID{h}, nil
}

// DestroyBuffer frees the pool slot, releases the backing allocation and
// destroys the native object, strictly in that order.
func (d *Device) DestroyBuffer(id BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.buffers.delete(id.handle)
	if err := d.allocator.Free(slot.alloc); err != nil {
		core.LogError("failed to release allocation of buffer '%s': %s", slot.name, err)
	}
	d.native.DestroyBuffer(slot.native)
}

// WriteBufferData copies data into the buffer's mapped memory at the
// given byte offset. Calling it on a device-local buffer, or past the
// end of the buffer, is a programmer error.
func (d *Device) WriteBufferData(id BufferID, offset uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.buffers.get(id.handle)
	if slot.alloc.Mapped == nil {
		panic(fmt.Sprintf("gpu: write to unmapped buffer '%s'", slot.name))
	}
	if offset+uint64(len(data)) > slot.size {
		panic(fmt.Sprintf("gpu: write of %d bytes at offset %d overflows buffer '%s' (%d bytes)", len(data), offset, slot.name, slot.size))
	}
	copy(slot.alloc.Mapped[offset:], data)
}

// BufferBytes returns the buffer's mapped memory, valid for the
// resource's entire lifetime. Only host-visible buffers are mapped.
func (d *Device) BufferBytes(id BufferID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.buffers.get(id.handle)
	if slot.alloc.Mapped == nil {
		panic(fmt.Sprintf("gpu: buffer '%s' is not host-visible", slot.name))
	}
	return slot.alloc.Mapped
}

// BufferDeviceAddress returns the buffer's GPU virtual address.
func (d *Device) BufferDeviceAddress(id BufferID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.buffers.get(id.handle).address
}

// Image //

func (d *Device) CreateImage(desc *ImageDescription) (ImageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := debugName(desc.Name)

	native, req, err := d.native.CreateImage(desc)
	if err != nil {
		return NilImageID(), fmt.Errorf("failed to create image '%s': %w", name, err)
	}

	alloc, err := d.allocator.Allocate(req, ResidencyDeviceLocal)
	if err != nil {
		d.native.DestroyImage(native)
		return NilImageID(), fmt.Errorf("failed to allocate %d bytes for image '%s' (%v): %w", req.Size, name, err, core.ErrOutOfDeviceMemory)
	}

	if err := d.native.BindImageMemory(native, alloc); err != nil {
		d.allocator.Free(alloc)
		d.native.DestroyImage(native)
		return NilImageID(), fmt.Errorf("failed to bind memory for image '%s': %w", name, err)
	}

	h := d.images.add(imageSlot{
		name:   name,
		native: native,
		alloc:  alloc,
		format: desc.Format,
		owned:  true,
	})

	core.LogDebug("image '%s' created (%dx%dx%d, id %s)", name, desc.Extent.Width, desc.Extent.Height, desc.Extent.Depth, h)
	return ImageID{h}, nil
}

func (d *Device) DestroyImage(id ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.images.delete(id.handle)
	if !slot.owned {
		panic(fmt.Sprintf("gpu: destroy of presentable image '%s'; it belongs to the swapchain", slot.name))
	}
	if err := d.allocator.Free(slot.alloc); err != nil {
		core.LogError("failed to release allocation of image '%s': %s", slot.name, err)
	}
	d.native.DestroyImage(slot.native)
}

// adoptImage registers a native image the display engine owns. No
// allocation backs it and DestroyImage refuses it; the swapchain
// releases it with releaseImage during teardown.
func (d *Device) adoptImage(native NativeImage, format Format, name string) ImageID {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.images.add(imageSlot{
		name:   name,
		native: native,
		format: format,
		owned:  false,
	})
	return ImageID{h}
}

func (d *Device) releaseImage(id ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.images.delete(id.handle)
	if slot.owned {
		panic(fmt.Sprintf("gpu: release of device-owned image '%s'", slot.name))
	}
}

// Image view //

func (d *Device) CreateImageView(image ImageID, desc *ImageViewDescription) (ImageViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.images.get(image.handle)

	native, err := d.native.CreateImageView(slot.native, desc)
	if err != nil {
		return NilImageViewID(), fmt.Errorf("failed to create view of image '%s': %w", slot.name, err)
	}

	h := d.views.add(imageViewSlot{native: native, image: image})
	return ImageViewID{h}, nil
}

func (d *Device) DestroyImageView(id ImageViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.views.delete(id.handle)
	d.native.DestroyImageView(slot.native)
}

// Sampler //

func (d *Device) CreateSampler(desc *SamplerDescription) (SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	native, err := d.native.CreateSampler(desc)
	if err != nil {
		return NilSamplerID(), fmt.Errorf("failed to create sampler: %w", err)
	}

	h := d.samplers.add(samplerSlot{native: native})
	return SamplerID{h}, nil
}

func (d *Device) DestroySampler(id SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.samplers.delete(id.handle)
	d.native.DestroySampler(slot.native)
}

// Pipeline //

// RegisterPipeline gives an externally constructed pipeline state object
// a stable identity. Construction itself lives outside this core.
func (d *Device) RegisterPipeline(native NativePipeline, pipeline PipelineType) PipelineID {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.pipelines.add(pipelineSlot{native: native, pipeline: pipeline})
	return PipelineID{h}
}

func (d *Device) DestroyPipeline(id PipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.pipelines.delete(id.handle)
	d.native.DestroyPipeline(slot.native)
}

// PipelineHandle returns the native pipeline object for command
// recording layers.
func (d *Device) PipelineHandle(id PipelineID) NativePipeline {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pipelines.get(id.handle).native
}

// Bindless writes //

type BufferWriteInfo struct {
	Buffer BufferID
	Index  uint32
}

type ImageDescriptorType uint8

const (
	DescriptorSampledImage ImageDescriptorType = iota
	DescriptorStorageImage
)

type ImageWriteInfo struct {
	View  ImageViewID
	Type  ImageDescriptorType
	Index uint32
}

type SamplerWriteInfo struct {
	Sampler SamplerID
	Index   uint32
}

func (d *Device) WriteBufferDescriptor(info *BufferWriteInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.buffers.get(info.Buffer.handle)
	d.bindless.writeBuffer(slot.address, info.Index)
}

func (d *Device) WriteImageDescriptor(info *ImageWriteInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.views.get(info.View.handle)
	switch info.Type {
	case DescriptorSampledImage:
		d.bindless.writeSampledImage(slot.native, info.Index)
	case DescriptorStorageImage:
		d.bindless.writeStorageImage(slot.native, info.Index)
	}
}

func (d *Device) WriteSamplerDescriptor(info *SamplerWriteInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.samplers.get(info.Sampler.handle)
	d.bindless.writeSampler(slot.native, info.Index)
}

// Submission //

// Submit enqueues command buffers on the queue named in info. At most
// frames-in-flight submissions may be outstanding per queue before the
// frame loop blocks in Acquire.
func (d *Device) Submit(info *QueueSubmitInfo) error {
	if err := d.native.Submit(info); err != nil {
		return fmt.Errorf("failed to submit to %s queue: %w", info.Queue, err)
	}
	return nil
}

// WaitIdle blocks until the device has no outstanding work. Used at
// shutdown and before destructive operations such as swapchain
// recreation.
func (d *Device) WaitIdle() error {
	return d.native.WaitIdle()
}

func (d *Device) WaitQueue(queue QueueType) error {
	return d.native.WaitQueue(queue)
}

// LiveResources reports currently occupied slots across all pools.
func (d *Device) LiveResources() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.buffers.liveCount() +
		d.images.liveCount() +
		d.views.liveCount() +
		d.samplers.liveCount() +
		d.pipelines.liveCount()
}
