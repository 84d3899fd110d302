package testbed

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/spaghettifunk/prisma/engine/config"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/platform"
	"github.com/spaghettifunk/prisma/engine/renderer/gpu"
	"github.com/spaghettifunk/prisma/engine/renderer/vulkan"
)

// Per-frame CPU data pushed into the bindless frame buffer: frame
// number, elapsed seconds, and padding up to one cache line.
const frameDataStride = 64

// App is a minimal application exercising the full resource and
// frame-pacing stack: one bindless frame-data buffer, the swapchain
// protocol, resize recreation and live configuration reload.
type App struct {
	cfg     *config.Config
	watcher *config.Watcher

	platform  *platform.Platform
	backend   *vulkan.Backend
	device    *gpu.Device
	swapchain *gpu.Swapchain

	clock   *core.Clock
	metrics *core.FrameMetrics

	frameData     gpu.BufferID
	configGen     uint64
	frameNumber   uint64
	lastFrameTime float64
}

func New(cfg *config.Config, watcher *config.Watcher) *App {
	return &App{
		cfg:     cfg,
		watcher: watcher,
		clock:   core.NewClock(),
		metrics: core.NewFrameMetrics(),
	}
}

func (a *App) Initialize() error {
	p, err := platform.New()
	if err != nil {
		return err
	}
	a.platform = p
	if err := p.Startup(a.cfg.Name, a.cfg.Window.StartPosX, a.cfg.Window.StartPosY, a.cfg.Window.Width, a.cfg.Window.Height); err != nil {
		return err
	}

	a.backend = vulkan.New(p, a.cfg)
	if err := a.backend.Initialize(a.cfg.Name, a.cfg); err != nil {
		return err
	}

	allocator := vulkan.NewDeviceAllocator(a.backend.Context())
	a.device = gpu.NewDevice(a.backend, allocator, gpu.DescriptorTableConfig{
		BufferCapacity:       a.cfg.Bindless.BufferCapacity,
		SampledImageCapacity: a.cfg.Bindless.SampledImageCapacity,
		StorageImageCapacity: a.cfg.Bindless.StorageImageCapacity,
		SamplerCapacity:      a.cfg.Bindless.SamplerCapacity,
	})

	surface := vulkan.NewVulkanSurface(a.backend.Context())
	width, height := a.platform.FramebufferSize()
	a.swapchain, err = gpu.NewSwapchain(a.device, surface, &gpu.SwapchainDescription{
		Width:          width,
		Height:         height,
		ImageCount:     a.cfg.Renderer.ImageCount,
		FramesInFlight: a.cfg.Renderer.FramesInFlight,
	})
	if err != nil {
		return err
	}

	// One host-visible region per frame in flight, registered at bindless
	// slot 0 so shaders can reach it by index.
	a.frameData, err = a.device.CreateBuffer(&gpu.BufferDescription{
		Name:      "frame data",
		Size:      uint64(frameDataStride * a.cfg.Renderer.FramesInFlight),
		Usage:     gpu.BufferUsageStorage,
		Residency: gpu.ResidencyHostVisible,
	})
	if err != nil {
		return err
	}
	a.device.WriteBufferDescriptor(&gpu.BufferWriteInfo{Buffer: a.frameData, Index: 0})

	a.configGen = a.watcher.Generation()
	a.clock.Start()
	a.lastFrameTime = 0

	core.LogInfo("testbed initialized: %dx%d, %d frames in flight", width, height, a.cfg.Renderer.FramesInFlight)
	return nil
}

func (a *App) Run() error {
	for !a.platform.ShouldClose() {
		a.platform.PumpMessages()

		a.clock.Update()
		elapsed := a.clock.Elapsed() / float64(1e9)
		a.metrics.Update(elapsed - a.lastFrameTime)
		a.lastFrameTime = elapsed

		if gen := a.watcher.Generation(); gen != a.configGen {
			a.configGen = gen
			core.LogInfo("configuration changed (generation %d), fps %.1f", gen, a.metrics.FPS())
		}

		if width, height, resized := a.platform.ConsumeResize(); resized {
			a.platform.WaitWhileMinimized()
			if err := a.swapchain.Recreate(width, height); err != nil {
				return err
			}
			continue
		}

		if err := a.frame(elapsed); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) frame(elapsed float64) error {
	acquired, err := a.swapchain.Acquire()
	if errors.Is(err, core.ErrSwapchainOutOfDate) || errors.Is(err, core.ErrSwapchainSuboptimal) {
		width, height := a.platform.FramebufferSize()
		return a.swapchain.Recreate(width, height)
	}
	if err != nil {
		return err
	}

	a.frameNumber++
	var data [frameDataStride]byte
	binary.LittleEndian.PutUint64(data[0:], a.frameNumber)
	binary.LittleEndian.PutUint64(data[8:], math.Float64bits(elapsed))
	a.device.WriteBufferData(a.frameData, uint64(acquired.FrameIndex)*frameDataStride, data[:])

	// No command buffers yet: the submission only orders the semaphores
	// and signals the frame fence.
	if err := a.device.Submit(&gpu.QueueSubmitInfo{
		Queue: gpu.QueueGraphics,
		WaitSemaphores: []gpu.SemaphoreSubmit{
			{Semaphore: acquired.ImageAvailable, Stage: gpu.StageColorAttachmentOutput},
		},
		SignalSemaphores: []gpu.SemaphoreSubmit{
			{Semaphore: acquired.PresentReady, Stage: gpu.StageAllCommands},
		},
		Fence: acquired.InFlight,
	}); err != nil {
		return err
	}

	return a.swapchain.Present()
}

func (a *App) Shutdown() error {
	if a.device != nil {
		if err := a.device.WaitIdle(); err != nil {
			core.LogError("wait idle on shutdown: %s", err.Error())
		}
		if !a.frameData.IsNil() {
			a.device.DestroyBuffer(a.frameData)
		}
	}
	if a.swapchain != nil {
		if err := a.swapchain.Destroy(); err != nil {
			core.LogError("swapchain destroy: %s", err.Error())
		}
	}
	if a.backend != nil {
		a.backend.Shutdown()
	}
	if a.platform != nil {
		return a.platform.Shutdown()
	}
	return nil
}
