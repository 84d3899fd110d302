package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/gpu"
)

// DeviceAllocator hands out device memory one vkAllocateMemory call per
// resource. Host-visible allocations stay mapped for their whole
// lifetime.
type DeviceAllocator struct {
	context *VulkanContext
}

func NewDeviceAllocator(context *VulkanContext) *DeviceAllocator {
	return &DeviceAllocator{context: context}
}

func (a *DeviceAllocator) Allocate(req gpu.MemoryRequirements, residency gpu.Residency) (gpu.Allocation, error) {
	memoryIndex := a.context.FindMemoryIndex(req.MemoryTypeBits, vulkanMemoryProperties(residency))
	if memoryIndex < 0 {
		return gpu.Allocation{}, fmt.Errorf("no memory type matches filter 0x%x for residency %d", req.MemoryTypeBits, residency)
	}

	// Buffers carry the device-address usage bit, so their memory must be
	// allocated with the matching flag.
	flagsInfo := vk.MemoryAllocateFlagsInfo{
		SType: vk.StructureTypeMemoryAllocateFlagsInfo,
		Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
	}

	var memory vk.DeviceMemory
	res := vk.AllocateMemory(a.context.Device.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(req.Size),
		MemoryTypeIndex: uint32(memoryIndex),
		PNext:           unsafe.Pointer(&flagsInfo),
	}, a.context.Allocator, &memory)
	if res == vk.ErrorOutOfDeviceMemory {
		return gpu.Allocation{}, fmt.Errorf("allocate %d bytes: %w", req.Size, core.ErrOutOfDeviceMemory)
	}
	if res != vk.Success {
		return gpu.Allocation{}, VulkanResultToError(res, "allocate device memory")
	}

	alloc := gpu.Allocation{
		Memory: memory,
		Size:   req.Size,
	}

	if residency == gpu.ResidencyHostVisible {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(a.context.Device.LogicalDevice, memory, 0, vk.DeviceSize(req.Size), 0, &ptr); res != vk.Success {
			vk.FreeMemory(a.context.Device.LogicalDevice, memory, a.context.Allocator)
			return gpu.Allocation{}, VulkanResultToError(res, "map host-visible memory")
		}
		alloc.Mapped = unsafe.Slice((*byte)(ptr), req.Size)
	}

	return alloc, nil
}

func (a *DeviceAllocator) Free(alloc gpu.Allocation) error {
	memory, ok := alloc.Memory.(vk.DeviceMemory)
	if !ok {
		return fmt.Errorf("allocation memory is not device memory")
	}
	if alloc.Mapped != nil {
		vk.UnmapMemory(a.context.Device.LogicalDevice, memory)
	}
	vk.FreeMemory(a.context.Device.LogicalDevice, memory, a.context.Allocator)
	return nil
}
