package gpu

// Native handles are backend objects threaded through this package
// untouched. The device never inspects them; only the backend that
// created one may interpret it.
type (
	NativeBuffer        any
	NativeImage         any
	NativeImageView     any
	NativeSampler       any
	NativePipeline      any
	NativeFence         any
	NativeSemaphore     any
	NativeCommandBuffer any
	NativeMemory        any
)

// Allocator is the external memory allocator capability. Its failures
// surface from this package as core.ErrOutOfDeviceMemory.
type Allocator interface {
	Allocate(req MemoryRequirements, residency Residency) (Allocation, error)
	Free(a Allocation) error
}

// SurfaceCapabilities is the one-time platform query consumed at
// swapchain construction and recreation.
type SurfaceCapabilities struct {
	MinImageCount uint32
	MaxImageCount uint32 // 0 means no limit
	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D
}

// Surface is the platform drawable target collaborator.
type Surface interface {
	Capabilities() (SurfaceCapabilities, error)
}

// PresentableChain is the display engine's side of the frame-pacing
// protocol: the rotating set of native images plus acquire and present.
type PresentableChain interface {
	Images() []NativeImage
	ImageFormat() Format
	// AcquireNextImage blocks (driver side) until an image can be handed
	// out and arranges for signal to fire once it actually is available.
	// The returned index is the display engine's, independent of any
	// rotation counter in this package.
	AcquireNextImage(signal NativeSemaphore) (uint32, error)
	Present(imageIndex uint32, wait NativeSemaphore) error
	Destroy()
}

// DescriptorWriter executes bindless slot writes against the backend's
// global descriptor state.
type DescriptorWriter interface {
	WriteBufferDescriptor(index uint32, address uint64)
	WriteSampledImageDescriptor(index uint32, view NativeImageView)
	WriteStorageImageDescriptor(index uint32, view NativeImageView)
	WriteSamplerDescriptor(index uint32, sampler NativeSampler)
}

// NativeDevice is the low-level graphics API boundary the resource
// authority and the frame-pacing protocol are built against.
type NativeDevice interface {
	DescriptorWriter

	CreateBuffer(desc *BufferDescription) (NativeBuffer, MemoryRequirements, error)
	BindBufferMemory(buffer NativeBuffer, alloc Allocation) error
	BufferDeviceAddress(buffer NativeBuffer) uint64
	DestroyBuffer(buffer NativeBuffer)

	CreateImage(desc *ImageDescription) (NativeImage, MemoryRequirements, error)
	BindImageMemory(image NativeImage, alloc Allocation) error
	DestroyImage(image NativeImage)

	CreateImageView(image NativeImage, desc *ImageViewDescription) (NativeImageView, error)
	DestroyImageView(view NativeImageView)

	CreateSampler(desc *SamplerDescription) (NativeSampler, error)
	DestroySampler(sampler NativeSampler)

	DestroyPipeline(pipeline NativePipeline)

	CreateFence(signaled bool) (NativeFence, error)
	DestroyFence(fence NativeFence)
	// WaitFence blocks until the fence signals. There is no timeout knob:
	// waits are effectively unbounded and a driver timeout is reported as
	// core.ErrDeviceLost.
	WaitFence(fence NativeFence) error
	ResetFence(fence NativeFence) error

	CreateSemaphore() (NativeSemaphore, error)
	DestroySemaphore(sem NativeSemaphore)

	CreateSwapchain(surface Surface, desc *SwapchainDescription, extent Extent2D, old PresentableChain) (PresentableChain, error)

	Submit(info *QueueSubmitInfo) error
	WaitIdle() error
	WaitQueue(queue QueueType) error
}
