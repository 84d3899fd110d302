package gpu

// QueueType selects one of the device's concrete queues. There is no
// "none" variant: every submission target is tagged with a real queue.
type QueueType uint8

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueTransfer
)

func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	}
	return "invalid"
}

// Residency is the requested memory class for a resource's backing
// allocation.
type Residency uint8

const (
	// Device-local memory, not host accessible.
	ResidencyDeviceLocal Residency = iota
	// Host-visible memory, mapped for the resource's entire lifetime.
	ResidencyHostVisible
)

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR16G16B16A16Sfloat
	FormatR32G32B32A32Sfloat
	FormatD32Sfloat
	FormatD24UnormS8Uint
)

type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageIndirect
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageStorage
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
	ImageUsageTransferSrc
	ImageUsageTransferDst
)

type ImageAspect uint8

const (
	ImageAspectColor ImageAspect = iota
	ImageAspectDepth
	ImageAspectStencil
)

type ImageViewType uint8

const (
	ImageViewType2D ImageViewType = iota
	ImageViewType2DArray
	ImageViewTypeCube
	ImageViewType3D
)

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode uint8

const (
	AddressModeRepeat AddressMode = iota
	AddressModeMirroredRepeat
	AddressModeClampToEdge
	AddressModeClampToBorder
)

type PipelineType uint8

const (
	PipelineGraphics PipelineType = iota
	PipelineCompute
)

// PipelineStage is the synchronization scope a semaphore operation
// applies to.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageTransfer
	StageComputeShader
	StageColorAttachmentOutput
	StageAllCommands
)

type BufferDescription struct {
	// Debug name. Left empty, the device assigns one.
	Name      string
	Size      uint64
	Usage     BufferUsage
	Residency Residency
}

type ImageDescription struct {
	Name        string
	Extent      Extent3D
	Format      Format
	Usage       ImageUsage
	MipLevels   uint32
	ArrayLayers uint32
}

type ImageViewDescription struct {
	ViewType       ImageViewType
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// DefaultImageViewDescription covers the common case: a 2D color view of
// the whole image.
func DefaultImageViewDescription() *ImageViewDescription {
	return &ImageViewDescription{
		ViewType:   ImageViewType2D,
		Aspect:     ImageAspectColor,
		LevelCount: 1,
		LayerCount: 1,
	}
}

type SamplerDescription struct {
	MagFilter     Filter
	MinFilter     Filter
	AddressModeU  AddressMode
	AddressModeV  AddressMode
	AddressModeW  AddressMode
	MipLodBias    float32
	MaxAnisotropy float32 // 0 disables anisotropic filtering
	MinLod        float32
	MaxLod        float32
}

type SwapchainDescription struct {
	Width          uint32
	Height         uint32
	ImageCount     uint32
	FramesInFlight uint32
}

// MemoryRequirements is what the native API demands for a resource's
// backing allocation.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// Allocation is an opaque lease handed out by the external allocator
// capability. Mapped is non-nil for the host-visible residency class and
// stays valid until the allocation is freed.
type Allocation struct {
	Memory NativeMemory
	Offset uint64
	Size   uint64
	Mapped []byte
}

// SemaphoreSubmit pairs a semaphore with the pipeline stage it gates.
// Value is only meaningful for timeline semaphores.
type SemaphoreSubmit struct {
	Semaphore NativeSemaphore
	Stage     PipelineStage
	Value     uint64
}

// QueueSubmitInfo describes one queue submission. Fence, when non-nil,
// is signaled once every command buffer in the batch completes.
type QueueSubmitInfo struct {
	Queue            QueueType
	CommandBuffers   []NativeCommandBuffer
	WaitSemaphores   []SemaphoreSubmit
	SignalSemaphores []SemaphoreSubmit
	Fence            NativeFence
}
