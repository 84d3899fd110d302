package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/config"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/platform"
	"github.com/spaghettifunk/prisma/engine/renderer/gpu"
)

// vulkanImage carries the format alongside the handle; view creation
// needs it and VkImage alone does not remember.
type vulkanImage struct {
	handle vk.Image
	format vk.Format
}

// Backend implements the graphics API boundary of the resource
// authority and frame-pacing protocol on top of Vulkan.
type Backend struct {
	platform      *platform.Platform
	context       *VulkanContext
	debug         bool
	preferMailbox bool

	bindless *bindlessDescriptors
}

func New(p *platform.Platform, cfg *config.Config) *Backend {
	return &Backend{
		platform: p,
		context: &VulkanContext{
			Allocator: nil,
			Device:    &VulkanDevice{},
		},
		debug:         cfg.Renderer.Validation,
		preferMailbox: !cfg.Renderer.VSync,
	}
}

// Context is handed to collaborators built on the same instance, the
// allocator and the surface capability.
func (b *Backend) Context() *VulkanContext {
	return b.context
}

func (b *Backend) Initialize(appName string, cfg *config.Config) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vulkan: %w", err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Prisma Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, b.platform.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	validationLayers := []string{}
	if b.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		validationLayers = b.availableValidationLayers()
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(validationLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(validationLayers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		return VulkanResultToError(res, "create instance")
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if b.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			return fmt.Errorf("failed to create debug callback: %w", err)
		}
		b.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.platform.CreateVulkanSurface(b.context.Instance)
	if err != nil {
		return err
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(b.context); err != nil {
		return err
	}

	bindless, err := createBindlessDescriptors(b.context, cfg.Bindless)
	if err != nil {
		return err
	}
	b.bindless = bindless

	return nil
}

func (b *Backend) Shutdown() {
	vk.DeviceWaitIdle(b.context.Device.LogicalDevice)

	if b.bindless != nil {
		b.bindless.destroy(b.context)
		b.bindless = nil
	}

	DeviceDestroy(b.context)

	vk.DestroySurface(b.context.Instance, b.context.Surface, b.context.Allocator)
	if b.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(b.context.Instance, b.context.debugMessenger, b.context.Allocator)
	}
	vk.DestroyInstance(b.context.Instance, b.context.Allocator)
	core.LogInfo("Vulkan backend shut down.")
}

func (b *Backend) availableValidationLayers() []string {
	required := []string{"VK_LAYER_KHRONOS_validation"}

	var availableLayerCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
		return nil
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
		return nil
	}

	found := []string{}
	for _, want := range required {
		for j := range availableLayers {
			availableLayers[j].Deref()
			if vk.ToString(availableLayers[j].LayerName[:]) == want {
				found = append(found, want)
				break
			}
		}
	}
	if len(found) != len(required) {
		core.LogWarn("not all validation layers are available, continuing without")
		return nil
	}
	return found
}

// --- buffers ---

func (b *Backend) CreateBuffer(desc *gpu.BufferDescription) (gpu.NativeBuffer, gpu.MemoryRequirements, error) {
	var buffer vk.Buffer
	if res := vk.CreateBuffer(b.context.Device.LogicalDevice, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vulkanBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, b.context.Allocator, &buffer); res != vk.Success {
		return nil, gpu.MemoryRequirements{}, VulkanResultToError(res, "create buffer")
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.context.Device.LogicalDevice, buffer, &memReqs)
	memReqs.Deref()

	return buffer, gpu.MemoryRequirements{
		Size:           uint64(memReqs.Size),
		Alignment:      uint64(memReqs.Alignment),
		MemoryTypeBits: memReqs.MemoryTypeBits,
	}, nil
}

func (b *Backend) BindBufferMemory(buffer gpu.NativeBuffer, alloc gpu.Allocation) error {
	res := vk.BindBufferMemory(
		b.context.Device.LogicalDevice,
		buffer.(vk.Buffer),
		alloc.Memory.(vk.DeviceMemory),
		vk.DeviceSize(alloc.Offset))
	return VulkanResultToError(res, "bind buffer memory")
}

func (b *Backend) BufferDeviceAddress(buffer gpu.NativeBuffer) uint64 {
	addr := vk.GetBufferDeviceAddress(b.context.Device.LogicalDevice, &vk.BufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: buffer.(vk.Buffer),
	})
	return uint64(addr)
}

func (b *Backend) DestroyBuffer(buffer gpu.NativeBuffer) {
	vk.DestroyBuffer(b.context.Device.LogicalDevice, buffer.(vk.Buffer), b.context.Allocator)
}

// --- images ---

func (b *Backend) CreateImage(desc *gpu.ImageDescription) (gpu.NativeImage, gpu.MemoryRequirements, error) {
	imageType := vk.ImageType2d
	if desc.Extent.Depth > 1 {
		imageType = vk.ImageType3d
	}
	mipLevels := desc.MipLevels
	if mipLevels == 0 {
		mipLevels = 1
	}
	arrayLayers := desc.ArrayLayers
	if arrayLayers == 0 {
		arrayLayers = 1
	}

	format := vulkanFormat(desc.Format)
	var image vk.Image
	if res := vk.CreateImage(b.context.Device.LogicalDevice, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  desc.Extent.Depth,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   arrayLayers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vulkanImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, b.context.Allocator, &image); res != vk.Success {
		return nil, gpu.MemoryRequirements{}, VulkanResultToError(res, "create image")
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.context.Device.LogicalDevice, image, &memReqs)
	memReqs.Deref()

	return &vulkanImage{handle: image, format: format}, gpu.MemoryRequirements{
		Size:           uint64(memReqs.Size),
		Alignment:      uint64(memReqs.Alignment),
		MemoryTypeBits: memReqs.MemoryTypeBits,
	}, nil
}

func (b *Backend) BindImageMemory(image gpu.NativeImage, alloc gpu.Allocation) error {
	res := vk.BindImageMemory(
		b.context.Device.LogicalDevice,
		image.(*vulkanImage).handle,
		alloc.Memory.(vk.DeviceMemory),
		vk.DeviceSize(alloc.Offset))
	return VulkanResultToError(res, "bind image memory")
}

func (b *Backend) DestroyImage(image gpu.NativeImage) {
	vk.DestroyImage(b.context.Device.LogicalDevice, image.(*vulkanImage).handle, b.context.Allocator)
}

func (b *Backend) CreateImageView(image gpu.NativeImage, desc *gpu.ImageViewDescription) (gpu.NativeImageView, error) {
	img := image.(*vulkanImage)

	var view vk.ImageView
	if res := vk.CreateImageView(b.context.Device.LogicalDevice, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vulkanViewType(desc.ViewType),
		Format:   img.format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vulkanAspect(desc.Aspect),
			BaseMipLevel:   desc.BaseMipLevel,
			LevelCount:     desc.LevelCount,
			BaseArrayLayer: desc.BaseArrayLayer,
			LayerCount:     desc.LayerCount,
		},
	}, b.context.Allocator, &view); res != vk.Success {
		return nil, VulkanResultToError(res, "create image view")
	}
	return view, nil
}

func (b *Backend) DestroyImageView(view gpu.NativeImageView) {
	vk.DestroyImageView(b.context.Device.LogicalDevice, view.(vk.ImageView), b.context.Allocator)
}

// --- samplers ---

func (b *Backend) CreateSampler(desc *gpu.SamplerDescription) (gpu.NativeSampler, error) {
	mipmapMode := vk.SamplerMipmapModeNearest
	if desc.MinFilter == gpu.FilterLinear {
		mipmapMode = vk.SamplerMipmapModeLinear
	}

	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vulkanFilter(desc.MagFilter),
		MinFilter:    vulkanFilter(desc.MinFilter),
		MipmapMode:   mipmapMode,
		AddressModeU: vulkanAddressMode(desc.AddressModeU),
		AddressModeV: vulkanAddressMode(desc.AddressModeV),
		AddressModeW: vulkanAddressMode(desc.AddressModeW),
		MipLodBias:   desc.MipLodBias,
		MinLod:       desc.MinLod,
		MaxLod:       desc.MaxLod,
	}
	if desc.MaxAnisotropy > 0 {
		createInfo.AnisotropyEnable = vk.True
		createInfo.MaxAnisotropy = desc.MaxAnisotropy
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(b.context.Device.LogicalDevice, &createInfo, b.context.Allocator, &sampler); res != vk.Success {
		return nil, VulkanResultToError(res, "create sampler")
	}
	return sampler, nil
}

func (b *Backend) DestroySampler(sampler gpu.NativeSampler) {
	vk.DestroySampler(b.context.Device.LogicalDevice, sampler.(vk.Sampler), b.context.Allocator)
}

// --- pipelines ---

func (b *Backend) DestroyPipeline(pipeline gpu.NativePipeline) {
	vk.DestroyPipeline(b.context.Device.LogicalDevice, pipeline.(vk.Pipeline), b.context.Allocator)
}

// --- sync ---

func (b *Backend) CreateFence(signaled bool) (gpu.NativeFence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if res := vk.CreateFence(b.context.Device.LogicalDevice, &createInfo, b.context.Allocator, &fence); res != vk.Success {
		return nil, VulkanResultToError(res, "create fence")
	}
	return fence, nil
}

func (b *Backend) DestroyFence(fence gpu.NativeFence) {
	vk.DestroyFence(b.context.Device.LogicalDevice, fence.(vk.Fence), b.context.Allocator)
}

func (b *Backend) WaitFence(fence gpu.NativeFence) error {
	res := vk.WaitForFences(b.context.Device.LogicalDevice, 1, []vk.Fence{fence.(vk.Fence)}, vk.True, vk.MaxUint64)
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		// An unbounded wait that still times out means the GPU is gone.
		return fmt.Errorf("fence wait timed out: %w", core.ErrDeviceLost)
	}
	return VulkanResultToError(res, "wait for fence")
}

func (b *Backend) ResetFence(fence gpu.NativeFence) error {
	res := vk.ResetFences(b.context.Device.LogicalDevice, 1, []vk.Fence{fence.(vk.Fence)})
	return VulkanResultToError(res, "reset fence")
}

func (b *Backend) CreateSemaphore() (gpu.NativeSemaphore, error) {
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, b.context.Allocator, &semaphore); res != vk.Success {
		return nil, VulkanResultToError(res, "create semaphore")
	}
	return semaphore, nil
}

func (b *Backend) DestroySemaphore(sem gpu.NativeSemaphore) {
	vk.DestroySemaphore(b.context.Device.LogicalDevice, sem.(vk.Semaphore), b.context.Allocator)
}

// --- submission ---

func (b *Backend) Submit(info *gpu.QueueSubmitInfo) error {
	waitSemaphores := make([]vk.Semaphore, len(info.WaitSemaphores))
	waitStages := make([]vk.PipelineStageFlags, len(info.WaitSemaphores))
	for i, wait := range info.WaitSemaphores {
		waitSemaphores[i] = wait.Semaphore.(vk.Semaphore)
		waitStages[i] = vulkanPipelineStage(wait.Stage)
	}

	signalSemaphores := make([]vk.Semaphore, len(info.SignalSemaphores))
	for i, signal := range info.SignalSemaphores {
		signalSemaphores[i] = signal.Semaphore.(vk.Semaphore)
	}

	commandBuffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		commandBuffers[i] = cb.(vk.CommandBuffer)
	}

	fence := vk.NullFence
	if info.Fence != nil {
		fence = info.Fence.(vk.Fence)
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSemaphores)),
		PWaitSemaphores:      waitSemaphores,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(commandBuffers)),
		PCommandBuffers:      commandBuffers,
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
		PSignalSemaphores:    signalSemaphores,
	}

	res := vk.QueueSubmit(b.context.Device.Queue(info.Queue), 1, []vk.SubmitInfo{submitInfo}, fence)
	return VulkanResultToError(res, fmt.Sprintf("submit to %s queue", info.Queue))
}

func (b *Backend) WaitIdle() error {
	res := vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
	return VulkanResultToError(res, "device wait idle")
}

func (b *Backend) WaitQueue(queue gpu.QueueType) error {
	res := vk.QueueWaitIdle(b.context.Device.Queue(queue))
	return VulkanResultToError(res, fmt.Sprintf("wait %s queue idle", queue))
}

// --- bindless descriptor writes ---

func (b *Backend) WriteBufferDescriptor(index uint32, address uint64) {
	b.bindless.writeBufferAddress(index, address)
}

func (b *Backend) WriteSampledImageDescriptor(index uint32, view gpu.NativeImageView) {
	b.bindless.writeImage(b.context, bindingSampledImages, vk.DescriptorTypeSampledImage,
		vk.ImageLayoutShaderReadOnlyOptimal, index, view.(vk.ImageView))
}

func (b *Backend) WriteStorageImageDescriptor(index uint32, view gpu.NativeImageView) {
	b.bindless.writeImage(b.context, bindingStorageImages, vk.DescriptorTypeStorageImage,
		vk.ImageLayoutGeneral, index, view.(vk.ImageView))
}

func (b *Backend) WriteSamplerDescriptor(index uint32, sampler gpu.NativeSampler) {
	b.bindless.writeSampler(b.context, index, sampler.(vk.Sampler))
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
