package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer/gpu"
)

// VulkanSurface exposes the platform surface capability. Capabilities
// are re-queried on every call so recreation sees fresh extent bounds.
type VulkanSurface struct {
	context *VulkanContext
}

func NewVulkanSurface(context *VulkanContext) *VulkanSurface {
	return &VulkanSurface{context: context}
}

func (s *VulkanSurface) Capabilities() (gpu.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(s.context.Device.PhysicalDevice, s.context.Surface, &caps); res != vk.Success {
		return gpu.SurfaceCapabilities{}, VulkanResultToError(res, "query surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return gpu.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinExtent:     gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxExtent:     gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, nil
}

// nativeSwapchain is the display engine's side of the frame-pacing
// protocol over a real VkSwapchainKHR.
type nativeSwapchain struct {
	backend *Backend
	handle  vk.Swapchain
	format  vk.SurfaceFormat
	images  []vk.Image
}

func (b *Backend) CreateSwapchain(surface gpu.Surface, desc *gpu.SwapchainDescription, extent gpu.Extent2D, old gpu.PresentableChain) (gpu.PresentableChain, error) {
	context := b.context
	support := &context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, support); err != nil {
		return nil, err
	}

	// Preferred surface format, else the first supported one.
	imageFormat := support.Formats[0]
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			imageFormat = format
			break
		}
	}

	// Mailbox when allowed and available, else FIFO which is always
	// supported.
	presentMode := vk.PresentModeFifo
	if b.preferMailbox {
		for i := 0; i < int(support.PresentModeCount); i++ {
			if support.PresentModes[i] == vk.PresentModeMailbox {
				presentMode = vk.PresentModeMailbox
				break
			}
		}
	}

	imageCount := desc.ImageCount
	if imageCount < support.Capabilities.MinImageCount {
		imageCount = support.Capabilities.MinImageCount
	}
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      imageFormat.Format,
		ImageColorSpace:  imageFormat.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: extent.Width, Height: extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	// Chaining the old swapchain lets in-flight presents finish against
	// it during a resize.
	if oldChain, ok := old.(*nativeSwapchain); ok && oldChain != nil {
		createInfo.OldSwapchain = oldChain.handle
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, VulkanResultToError(res, "create swapchain")
	}

	var actualCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &actualCount, nil); res != vk.Success {
		vk.DestroySwapchain(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, VulkanResultToError(res, "get swapchain images")
	}
	images := make([]vk.Image, actualCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &actualCount, images); res != vk.Success {
		vk.DestroySwapchain(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, VulkanResultToError(res, "get swapchain images")
	}

	core.LogInfo("native swapchain created: %d images, present mode %d", actualCount, presentMode)
	return &nativeSwapchain{
		backend: b,
		handle:  handle,
		format:  imageFormat,
		images:  images,
	}, nil
}

func (ns *nativeSwapchain) Images() []gpu.NativeImage {
	out := make([]gpu.NativeImage, len(ns.images))
	for i, img := range ns.images {
		out[i] = &vulkanImage{handle: img, format: ns.format.Format}
	}
	return out
}

func (ns *nativeSwapchain) ImageFormat() gpu.Format {
	return engineFormat(ns.format.Format)
}

func (ns *nativeSwapchain) AcquireNextImage(signal gpu.NativeSemaphore) (uint32, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(
		ns.backend.context.Device.LogicalDevice,
		ns.handle,
		vk.MaxUint64,
		signal.(vk.Semaphore),
		vk.NullFence,
		&imageIndex)

	switch res {
	case vk.Success:
		return imageIndex, nil
	case vk.Suboptimal:
		// The image is still usable; the caller decides when to recreate.
		return imageIndex, fmt.Errorf("acquire image %d: %w", imageIndex, core.ErrSwapchainSuboptimal)
	case vk.ErrorOutOfDate:
		return 0, fmt.Errorf("acquire image: %w", core.ErrSwapchainOutOfDate)
	}
	return 0, VulkanResultToError(res, "acquire swapchain image")
}

func (ns *nativeSwapchain) Present(imageIndex uint32, wait gpu.NativeSemaphore) error {
	res := vk.QueuePresent(ns.backend.context.Device.PresentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(vk.Semaphore)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{ns.handle},
		PImageIndices:      []uint32{imageIndex},
	})

	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return fmt.Errorf("present image %d: %w", imageIndex, core.ErrSwapchainSuboptimal)
	case vk.ErrorOutOfDate:
		return fmt.Errorf("present image %d: %w", imageIndex, core.ErrSwapchainOutOfDate)
	}
	return VulkanResultToError(res, "present swapchain image")
}

func (ns *nativeSwapchain) Destroy() {
	vk.DestroySwapchain(ns.backend.context.Device.LogicalDevice, ns.handle, ns.backend.context.Allocator)
	ns.handle = vk.NullSwapchain
	ns.images = nil
}
