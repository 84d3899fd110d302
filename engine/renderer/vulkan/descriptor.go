package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/config"
	"github.com/spaghettifunk/prisma/engine/core"
)

const (
	bindingAddressTable  = 0
	bindingSampledImages = 1
	bindingStorageImages = 2
	bindingSamplers      = 3
)

// bindlessDescriptors is the backend half of the bindless table: one
// update-after-bind descriptor set shared by every pipeline, plus a
// host-visible address-table buffer that buffer slots are written into.
type bindlessDescriptors struct {
	layout vk.DescriptorSetLayout
	pool   vk.DescriptorPool
	set    vk.DescriptorSet

	addressBuffer vk.Buffer
	addressMemory vk.DeviceMemory
	addresses     []uint64
}

func createBindlessDescriptors(context *VulkanContext, cfg config.BindlessConfig) (*bindlessDescriptors, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         bindingAddressTable,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllGraphics | vk.ShaderStageComputeBit),
		},
		{
			Binding:         bindingSampledImages,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: cfg.SampledImageCapacity,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllGraphics | vk.ShaderStageComputeBit),
		},
		{
			Binding:         bindingStorageImages,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			DescriptorCount: cfg.StorageImageCapacity,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllGraphics | vk.ShaderStageComputeBit),
		},
		{
			Binding:         bindingSamplers,
			DescriptorType:  vk.DescriptorTypeSampler,
			DescriptorCount: cfg.SamplerCapacity,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllGraphics | vk.ShaderStageComputeBit),
		},
	}

	// Slots are written while submissions are in flight, so every array
	// binding is update-after-bind and partially bound.
	bindingFlags := make([]vk.DescriptorBindingFlags, len(bindings))
	for i := range bindingFlags {
		bindingFlags[i] = vk.DescriptorBindingFlags(
			vk.DescriptorBindingUpdateAfterBindBit | vk.DescriptorBindingPartiallyBoundBit)
	}
	flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(bindingFlags)),
		PBindingFlags: bindingFlags,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
		PNext:        unsafe.Pointer(&flagsInfo),
	}, context.Allocator, &layout); res != vk.Success {
		return nil, VulkanResultToError(res, "create bindless descriptor set layout")
	}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: cfg.SampledImageCapacity},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: cfg.StorageImageCapacity},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: cfg.SamplerCapacity},
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit),
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, context.Allocator, &pool); res != vk.Success {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, layout, context.Allocator)
		return nil, VulkanResultToError(res, "create bindless descriptor pool")
	}

	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &sets[0]); res != vk.Success {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, pool, context.Allocator)
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, layout, context.Allocator)
		return nil, VulkanResultToError(res, "allocate bindless descriptor set")
	}

	bd := &bindlessDescriptors{
		layout: layout,
		pool:   pool,
		set:    sets[0],
	}
	if err := bd.createAddressTable(context, cfg.BufferCapacity); err != nil {
		bd.destroy(context)
		return nil, err
	}

	core.LogInfo("bindless descriptors created: %d buffers, %d sampled images, %d storage images, %d samplers",
		cfg.BufferCapacity, cfg.SampledImageCapacity, cfg.StorageImageCapacity, cfg.SamplerCapacity)
	return bd, nil
}

// createAddressTable backs the buffer category with a host-visible
// storage buffer of device addresses. Shaders index it to reach any
// registered buffer; the CPU writes slots directly through the mapping.
func (bd *bindlessDescriptors) createAddressTable(context *VulkanContext, capacity uint32) error {
	size := vk.DeviceSize(capacity * 8)

	var buffer vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &buffer); res != vk.Success {
		return VulkanResultToError(res, "create address table buffer")
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer, &memReqs)
	memReqs.Deref()

	memoryIndex := context.FindMemoryIndex(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryIndex < 0 {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer, context.Allocator)
		return fmt.Errorf("no host-visible memory type for the address table")
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer, context.Allocator)
		return VulkanResultToError(res, "allocate address table memory")
	}
	vk.BindBufferMemory(context.Device.LogicalDevice, buffer, memory, 0)

	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, memory, 0, size, 0, &ptr); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer, context.Allocator)
		return VulkanResultToError(res, "map address table memory")
	}

	bd.addressBuffer = buffer
	bd.addressMemory = memory
	bd.addresses = unsafe.Slice((*uint64)(ptr), capacity)

	// Point binding 0 at the table once; individual slots never need
	// descriptor updates after this.
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          bd.set,
		DstBinding:      bindingAddressTable,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer,
			Offset: 0,
			Range:  size,
		}},
	}}, 0, nil)

	return nil
}

func (bd *bindlessDescriptors) writeBufferAddress(index uint32, address uint64) {
	bd.addresses[index] = address
}

func (bd *bindlessDescriptors) writeImage(context *VulkanContext, binding uint32, descriptorType vk.DescriptorType, layout vk.ImageLayout, index uint32, view vk.ImageView) {
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          bd.set,
		DstBinding:      binding,
		DstArrayElement: index,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: layout,
		}},
	}}, 0, nil)
}

func (bd *bindlessDescriptors) writeSampler(context *VulkanContext, index uint32, sampler vk.Sampler) {
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          bd.set,
		DstBinding:      bindingSamplers,
		DstArrayElement: index,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: sampler,
		}},
	}}, 0, nil)
}

func (bd *bindlessDescriptors) destroy(context *VulkanContext) {
	if bd.addressBuffer != vk.NullBuffer {
		vk.UnmapMemory(context.Device.LogicalDevice, bd.addressMemory)
		vk.FreeMemory(context.Device.LogicalDevice, bd.addressMemory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, bd.addressBuffer, context.Allocator)
		bd.addresses = nil
	}
	vk.DestroyDescriptorPool(context.Device.LogicalDevice, bd.pool, context.Allocator)
	vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, bd.layout, context.Allocator)
}
