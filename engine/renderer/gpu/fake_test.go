package gpu

import (
	"errors"
	"fmt"
	"math"
)

// Shared ordered event log so tests can assert cross-collaborator
// ordering (e.g. wait-idle strictly before sync teardown).
type eventLog struct {
	events []string
}

func (l *eventLog) record(format string, args ...interface{}) {
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) indexOf(event string) int {
	for i, e := range l.events {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeBuffer struct {
	size    uint64
	address uint64
}

type fakeImage struct {
	name string
}

type fakeImageView struct {
	image NativeImage
}

type fakeSampler struct{}

type fakePipeline struct{}

type fakeFence struct {
	signaled bool
}

type fakeSemaphore struct {
	id int
}

type fakeMemory struct{}

type fakeAllocator struct {
	log       *eventLog
	allocated int
	freed     int
	failNext  error
}

func (a *fakeAllocator) Allocate(req MemoryRequirements, residency Residency) (Allocation, error) {
	if a.failNext != nil {
		err := a.failNext
		a.failNext = nil
		return Allocation{}, err
	}
	a.allocated++
	a.log.record("allocator:allocate size=%d", req.Size)
	alloc := Allocation{
		Memory: &fakeMemory{},
		Size:   req.Size,
	}
	if residency == ResidencyHostVisible {
		alloc.Mapped = make([]byte, req.Size)
	}
	return alloc, nil
}

func (a *fakeAllocator) Free(alloc Allocation) error {
	a.freed++
	a.log.record("allocator:free size=%d", alloc.Size)
	return nil
}

type fakeChain struct {
	log            *eventLog
	images         []NativeImage
	acquireCounter uint32
	acquireErr     error
	presented      []uint32
	destroyed      bool
}

func (c *fakeChain) Images() []NativeImage { return c.images }

func (c *fakeChain) ImageFormat() Format { return FormatB8G8R8A8Unorm }

func (c *fakeChain) AcquireNextImage(signal NativeSemaphore) (uint32, error) {
	if c.acquireErr != nil {
		return 0, c.acquireErr
	}
	index := c.acquireCounter % uint32(len(c.images))
	c.acquireCounter++
	c.log.record("chain:acquire image=%d", index)
	return index, nil
}

func (c *fakeChain) Present(imageIndex uint32, wait NativeSemaphore) error {
	c.presented = append(c.presented, imageIndex)
	c.log.record("chain:present image=%d", imageIndex)
	return nil
}

func (c *fakeChain) Destroy() {
	c.destroyed = true
	c.log.record("chain:destroy")
}

type fakeSurface struct {
	caps SurfaceCapabilities
	err  error
}

func (s *fakeSurface) Capabilities() (SurfaceCapabilities, error) {
	if s.err != nil {
		return SurfaceCapabilities{}, s.err
	}
	return s.caps, nil
}

// newFakeSurface reports no fixed current extent so the requested size,
// clamped to [min, max], wins.
func newFakeSurface(minW, minH, maxW, maxH uint32) *fakeSurface {
	return &fakeSurface{
		caps: SurfaceCapabilities{
			MinImageCount: 2,
			CurrentExtent: Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinExtent:     Extent2D{Width: minW, Height: minH},
			MaxExtent:     Extent2D{Width: maxW, Height: maxH},
		},
	}
}

type descriptorWrite struct {
	category string
	index    uint32
	value    interface{}
}

type fakeNative struct {
	log *eventLog

	nextAddress uint64
	semCounter  int

	createBufferErr error
	bindBufferErr   error
	createImageErr  error
	waitFenceErr    error
	waitIdleErr     error

	blockingWaits    int
	descriptorWrites []descriptorWrite
	lastChain        *fakeChain
	chainedOld       []PresentableChain
	submissions      []*QueueSubmitInfo
	waitedQueues     []QueueType
}

func newFakeNative() (*fakeNative, *fakeAllocator) {
	log := &eventLog{}
	return &fakeNative{log: log, nextAddress: 0x10000}, &fakeAllocator{log: log}
}

func (n *fakeNative) CreateBuffer(desc *BufferDescription) (NativeBuffer, MemoryRequirements, error) {
	if n.createBufferErr != nil {
		return nil, MemoryRequirements{}, n.createBufferErr
	}
	n.nextAddress += 0x1000
	n.log.record("buffer:create size=%d", desc.Size)
	return &fakeBuffer{size: desc.Size, address: n.nextAddress}, MemoryRequirements{Size: desc.Size, Alignment: 256}, nil
}

func (n *fakeNative) BindBufferMemory(buffer NativeBuffer, alloc Allocation) error {
	if n.bindBufferErr != nil {
		return n.bindBufferErr
	}
	n.log.record("buffer:bind")
	return nil
}

func (n *fakeNative) BufferDeviceAddress(buffer NativeBuffer) uint64 {
	return buffer.(*fakeBuffer).address
}

func (n *fakeNative) DestroyBuffer(buffer NativeBuffer) {
	n.log.record("buffer:destroy")
}

func (n *fakeNative) CreateImage(desc *ImageDescription) (NativeImage, MemoryRequirements, error) {
	if n.createImageErr != nil {
		return nil, MemoryRequirements{}, n.createImageErr
	}
	n.log.record("image:create")
	size := uint64(desc.Extent.Width) * uint64(desc.Extent.Height) * 4
	return &fakeImage{name: desc.Name}, MemoryRequirements{Size: size, Alignment: 4096}, nil
}

func (n *fakeNative) BindImageMemory(image NativeImage, alloc Allocation) error {
	n.log.record("image:bind")
	return nil
}

func (n *fakeNative) DestroyImage(image NativeImage) {
	n.log.record("image:destroy")
}

func (n *fakeNative) CreateImageView(image NativeImage, desc *ImageViewDescription) (NativeImageView, error) {
	n.log.record("image_view:create")
	return &fakeImageView{image: image}, nil
}

func (n *fakeNative) DestroyImageView(view NativeImageView) {
	n.log.record("image_view:destroy")
}

func (n *fakeNative) CreateSampler(desc *SamplerDescription) (NativeSampler, error) {
	n.log.record("sampler:create")
	return &fakeSampler{}, nil
}

func (n *fakeNative) DestroySampler(sampler NativeSampler) {
	n.log.record("sampler:destroy")
}

func (n *fakeNative) DestroyPipeline(pipeline NativePipeline) {
	n.log.record("pipeline:destroy")
}

func (n *fakeNative) CreateFence(signaled bool) (NativeFence, error) {
	return &fakeFence{signaled: signaled}, nil
}

func (n *fakeNative) DestroyFence(fence NativeFence) {
	n.log.record("fence:destroy")
}

// WaitFence models the GPU as instantly done: an unsignaled fence counts
// as a blocking wait, then signals.
func (n *fakeNative) WaitFence(fence NativeFence) error {
	if n.waitFenceErr != nil {
		return n.waitFenceErr
	}
	f := fence.(*fakeFence)
	if !f.signaled {
		n.blockingWaits++
		f.signaled = true
	}
	n.log.record("fence:wait")
	return nil
}

func (n *fakeNative) ResetFence(fence NativeFence) error {
	fence.(*fakeFence).signaled = false
	return nil
}

func (n *fakeNative) CreateSemaphore() (NativeSemaphore, error) {
	n.semCounter++
	return &fakeSemaphore{id: n.semCounter}, nil
}

func (n *fakeNative) DestroySemaphore(sem NativeSemaphore) {
	n.log.record("semaphore:destroy")
}

func (n *fakeNative) CreateSwapchain(surface Surface, desc *SwapchainDescription, extent Extent2D, old PresentableChain) (PresentableChain, error) {
	images := make([]NativeImage, desc.ImageCount)
	for i := range images {
		images[i] = &fakeImage{name: fmt.Sprintf("presentable-%d", i)}
	}
	n.chainedOld = append(n.chainedOld, old)
	n.lastChain = &fakeChain{log: n.log, images: images}
	n.log.record("swapchain:create %dx%d", extent.Width, extent.Height)
	return n.lastChain, nil
}

func (n *fakeNative) Submit(info *QueueSubmitInfo) error {
	n.submissions = append(n.submissions, info)
	if info.Fence != nil {
		// The fake GPU completes immediately.
		info.Fence.(*fakeFence).signaled = true
	}
	n.log.record("queue:submit queue=%s", info.Queue)
	return nil
}

func (n *fakeNative) WaitIdle() error {
	if n.waitIdleErr != nil {
		return n.waitIdleErr
	}
	n.log.record("device:wait_idle")
	return nil
}

func (n *fakeNative) WaitQueue(queue QueueType) error {
	n.waitedQueues = append(n.waitedQueues, queue)
	return nil
}

func (n *fakeNative) WriteBufferDescriptor(index uint32, address uint64) {
	n.descriptorWrites = append(n.descriptorWrites, descriptorWrite{"buffer", index, address})
}

func (n *fakeNative) WriteSampledImageDescriptor(index uint32, view NativeImageView) {
	n.descriptorWrites = append(n.descriptorWrites, descriptorWrite{"sampled_image", index, view})
}

func (n *fakeNative) WriteStorageImageDescriptor(index uint32, view NativeImageView) {
	n.descriptorWrites = append(n.descriptorWrites, descriptorWrite{"storage_image", index, view})
}

func (n *fakeNative) WriteSamplerDescriptor(index uint32, sampler NativeSampler) {
	n.descriptorWrites = append(n.descriptorWrites, descriptorWrite{"sampler", index, sampler})
}

var errFakeAllocation = errors.New("fake allocator exhausted")
