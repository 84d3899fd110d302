package gpu

import (
	"fmt"
	"math"

	"github.com/spaghettifunk/prisma/engine/containers"
	"github.com/spaghettifunk/prisma/engine/core"
	engmath "github.com/spaghettifunk/prisma/engine/math"
)

// AcquiredImage is everything one frame of recording needs from the
// frame-pacing protocol.
type AcquiredImage struct {
	Image      ImageID
	View       ImageViewID
	ImageIndex uint32
	// FrameIndex selects which per-frame-in-flight CPU command resources
	// are safe to reuse for this frame.
	FrameIndex uint32
	// The GPU must wait on ImageAvailable before writing color output.
	ImageAvailable NativeSemaphore
	// The GPU signals PresentReady when rendering to the image completes.
	PresentReady NativeSemaphore
	// InFlight must be passed as the fence of the frame's submission so
	// the next Acquire on this frame slot can wait for it.
	InFlight NativeFence
}

// frameSyncState is the per-frame-in-flight slot: Idle while its fence
// is signaled, Submitted from fence reset until the GPU completes the
// slot's work.
type frameSyncState struct {
	imageAvailable NativeSemaphore
	inFlight       NativeFence
}

// Swapchain owns the presentable images and orchestrates the
// acquire/present protocol. It bounds how far the CPU races ahead of
// the GPU: at most FramesInFlight submissions are outstanding before
// Acquire blocks on a frame slot's fence.
//
// The pending-image queue is sized to the image count; the display
// engine can never hold more acquisitions than images, so the bound
// holds for FIFO and MAILBOX presentation alike.
type Swapchain struct {
	device  *Device
	surface Surface
	desc    SwapchainDescription

	native       PresentableChain
	extent       Extent2D
	images       []ImageID
	views        []ImageViewID
	presentReady []NativeSemaphore
	frames       []frameSyncState

	pending     *containers.RingQueue[uint32]
	imageCursor uint32
	frameCursor uint32
}

func NewSwapchain(device *Device, surface Surface, desc *SwapchainDescription) (*Swapchain, error) {
	if desc.ImageCount == 0 || desc.FramesInFlight == 0 {
		panic("gpu: swapchain needs at least one image and one frame in flight")
	}
	if desc.FramesInFlight > desc.ImageCount {
		panic(fmt.Sprintf("gpu: frames in flight (%d) cannot exceed image count (%d)", desc.FramesInFlight, desc.ImageCount))
	}

	sc := &Swapchain{
		device:  device,
		surface: surface,
		desc:    *desc,
	}
	if err := sc.build(nil); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Swapchain) build(old PresentableChain) error {
	caps, err := sc.surface.Capabilities()
	if err != nil {
		return fmt.Errorf("failed to query surface capabilities: %w", err)
	}

	extent := Extent2D{Width: sc.desc.Width, Height: sc.desc.Height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	// Clamp to the range allowed by the platform.
	extent.Width = engmath.Clamp(extent.Width, caps.MinExtent.Width, caps.MaxExtent.Width)
	extent.Height = engmath.Clamp(extent.Height, caps.MinExtent.Height, caps.MaxExtent.Height)

	native, err := sc.device.native.CreateSwapchain(sc.surface, &sc.desc, extent, old)
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}

	nativeImages := native.Images()
	if uint32(len(nativeImages)) < sc.desc.FramesInFlight {
		panic(fmt.Sprintf("gpu: display engine returned %d images for %d frames in flight", len(nativeImages), sc.desc.FramesInFlight))
	}

	sc.native = native
	sc.extent = extent
	sc.images = make([]ImageID, len(nativeImages))
	sc.views = make([]ImageViewID, len(nativeImages))
	sc.presentReady = make([]NativeSemaphore, len(nativeImages))

	for i, img := range nativeImages {
		sc.images[i] = sc.device.adoptImage(img, native.ImageFormat(), fmt.Sprintf("swapchain image %d", i))

		view, err := sc.device.CreateImageView(sc.images[i], DefaultImageViewDescription())
		if err != nil {
			return err
		}
		sc.views[i] = view

		sem, err := sc.device.native.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create present-ready semaphore: %w", err)
		}
		sc.presentReady[i] = sem
	}

	sc.frames = make([]frameSyncState, sc.desc.FramesInFlight)
	for f := range sc.frames {
		sem, err := sc.device.native.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create image-available semaphore: %w", err)
		}
		// The fence starts signaled so the first Acquire on the slot does
		// not wait for a frame that was never submitted.
		fence, err := sc.device.native.CreateFence(true)
		if err != nil {
			return fmt.Errorf("failed to create in-flight fence: %w", err)
		}
		sc.frames[f] = frameSyncState{imageAvailable: sem, inFlight: fence}
	}

	sc.pending = containers.NewRingQueue[uint32](len(nativeImages))
	sc.imageCursor = 0
	sc.frameCursor = 0

	core.LogInfo("swapchain created: %dx%d, %d images, %d frames in flight", extent.Width, extent.Height, len(nativeImages), sc.desc.FramesInFlight)
	return nil
}

// Acquire hands out the next presentable image. The fence wait on the
// current frame slot is the only blocking point of the steady-state
// loop; it guarantees the GPU is done with everything tagged with this
// slot before the CPU reuses it.
func (sc *Swapchain) Acquire() (*AcquiredImage, error) {
	frame := &sc.frames[sc.frameCursor]

	if err := sc.device.native.WaitFence(frame.inFlight); err != nil {
		return nil, fmt.Errorf("frame slot %d fence wait: %w", sc.frameCursor, err)
	}
	if err := sc.device.native.ResetFence(frame.inFlight); err != nil {
		return nil, fmt.Errorf("frame slot %d fence reset: %w", sc.frameCursor, err)
	}

	imageIndex, err := sc.native.AcquireNextImage(frame.imageAvailable)
	if err != nil {
		// Out-of-date and suboptimal propagate typed; the caller decides
		// whether to recreate.
		return nil, err
	}
	if int(imageIndex) >= len(sc.images) {
		panic(fmt.Sprintf("gpu: display engine returned image index %d of %d", imageIndex, len(sc.images)))
	}

	frameIndex := sc.frameCursor
	sc.imageCursor = (sc.imageCursor + 1) % uint32(len(sc.images))
	sc.frameCursor = (sc.frameCursor + 1) % sc.desc.FramesInFlight

	// Acquisition order and presentation order may diverge, bounded by
	// the image count.
	if err := sc.pending.Enqueue(imageIndex); err != nil {
		panic(fmt.Sprintf("gpu: %d images acquired without a present", sc.pending.Len()))
	}

	return &AcquiredImage{
		Image:          sc.images[imageIndex],
		View:           sc.views[imageIndex],
		ImageIndex:     imageIndex,
		FrameIndex:     frameIndex,
		ImageAvailable: frame.imageAvailable,
		PresentReady:   sc.presentReady[imageIndex],
		InFlight:       frame.inFlight,
	}, nil
}

// Present returns the oldest pending acquired image to the display
// engine, waiting on its present-ready semaphore. With nothing pending
// it is a no-op.
func (sc *Swapchain) Present() error {
	imageIndex, err := sc.pending.Dequeue()
	if err != nil {
		return nil
	}
	return sc.native.Present(imageIndex, sc.presentReady[imageIndex])
}

// Recreate rebuilds the swapchain for a new extent, chaining the old
// native object for a smoother transition. The device must go idle
// before any image or sync object is released: in-flight GPU work may
// still reference them.
func (sc *Swapchain) Recreate(width, height uint32) error {
	if err := sc.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle before swapchain recreation: %w", err)
	}

	old := sc.native
	sc.teardown()

	sc.desc.Width = width
	sc.desc.Height = height
	if err := sc.build(old); err != nil {
		return err
	}
	old.Destroy()

	return nil
}

// Destroy waits for the device to go idle and releases every image
// identity and sync object, then the native swapchain itself.
func (sc *Swapchain) Destroy() error {
	if err := sc.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle before swapchain destruction: %w", err)
	}
	sc.teardown()
	sc.native.Destroy()
	sc.native = nil
	return nil
}

// teardown releases per-image and per-frame state. Callers must have
// waited for device idle; the native swapchain handle is left to them
// for chaining or destruction.
func (sc *Swapchain) teardown() {
	for i := range sc.images {
		sc.device.DestroyImageView(sc.views[i])
		sc.device.releaseImage(sc.images[i])
		sc.device.native.DestroySemaphore(sc.presentReady[i])
	}
	for f := range sc.frames {
		sc.device.native.DestroySemaphore(sc.frames[f].imageAvailable)
		sc.device.native.DestroyFence(sc.frames[f].inFlight)
	}
	sc.images = nil
	sc.views = nil
	sc.presentReady = nil
	sc.frames = nil
	sc.pending = nil
}

func (sc *Swapchain) Extent() Extent2D {
	return sc.extent
}

func (sc *Swapchain) ImageCount() int {
	return len(sc.images)
}

func (sc *Swapchain) FramesInFlight() uint32 {
	return sc.desc.FramesInFlight
}
