package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
)

func newTestSwapchain(t *testing.T, framesInFlight, imageCount uint32) (*Swapchain, *fakeNative, *Device) {
	t.Helper()
	native, allocator := newFakeNative()
	device := NewDevice(native, allocator, DefaultDescriptorTableConfig())
	sc, err := NewSwapchain(device, newFakeSurface(1, 1, 4096, 4096), &SwapchainDescription{
		Width:          800,
		Height:         600,
		ImageCount:     imageCount,
		FramesInFlight: framesInFlight,
	})
	require.NoError(t, err)
	return sc, native, device
}

func TestSwapchainConstructionValidatesFramesInFlight(t *testing.T) {
	native, allocator := newFakeNative()
	device := NewDevice(native, allocator, DefaultDescriptorTableConfig())
	surface := newFakeSurface(1, 1, 4096, 4096)

	assert.Panics(t, func() {
		NewSwapchain(device, surface, &SwapchainDescription{Width: 1, Height: 1, ImageCount: 2, FramesInFlight: 3})
	})
	assert.Panics(t, func() {
		NewSwapchain(device, surface, &SwapchainDescription{Width: 1, Height: 1, ImageCount: 0, FramesInFlight: 0})
	})
}

func TestSwapchainRegistersPresentableImages(t *testing.T) {
	sc, _, device := newTestSwapchain(t, 2, 3)

	assert.Equal(t, 3, sc.ImageCount())
	assert.Equal(t, uint32(2), sc.FramesInFlight())
	assert.Equal(t, Extent2D{Width: 800, Height: 600}, sc.Extent())
	// 3 presentable images + 3 views.
	assert.Equal(t, 6, device.LiveResources())
}

func TestSwapchainExtentClamped(t *testing.T) {
	native, allocator := newFakeNative()
	device := NewDevice(native, allocator, DefaultDescriptorTableConfig())
	sc, err := NewSwapchain(device, newFakeSurface(640, 480, 1280, 720), &SwapchainDescription{
		Width:          5000,
		Height:         100,
		ImageCount:     3,
		FramesInFlight: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, Extent2D{Width: 1280, Height: 480}, sc.Extent())
}

func TestAcquireRotatesFrameSlotsIndependently(t *testing.T) {
	sc, _, _ := newTestSwapchain(t, 2, 3)

	var frameSlots []uint32
	var imageIndices []uint32
	for i := 0; i < 5; i++ {
		acq, err := sc.Acquire()
		require.NoError(t, err)
		frameSlots = append(frameSlots, acq.FrameIndex)
		imageIndices = append(imageIndices, acq.ImageIndex)
		require.NoError(t, sc.Present())
	}

	assert.Equal(t, []uint32{0, 1, 0, 1, 0}, frameSlots)
	assert.Equal(t, []uint32{0, 1, 2, 0, 1}, imageIndices)
}

func TestAcquireBlocksOnlyOnUnsignaledFence(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)

	// Fences start signaled: the first acquire per slot must not block.
	for i := 0; i < 2; i++ {
		_, err := sc.Acquire()
		require.NoError(t, err)
		require.NoError(t, sc.Present())
	}
	assert.Equal(t, 0, native.blockingWaits)

	// Without a submission to re-signal them, reusing a slot blocks.
	_, err := sc.Acquire()
	require.NoError(t, err)
	require.NoError(t, sc.Present())
	assert.Equal(t, 1, native.blockingWaits)
}

func TestAcquireDoesNotBlockWhenSubmissionSignals(t *testing.T) {
	sc, native, device := newTestSwapchain(t, 2, 3)

	for i := 0; i < 6; i++ {
		acq, err := sc.Acquire()
		require.NoError(t, err)
		// Steady-state frame: submit work fenced on the slot, then present.
		require.NoError(t, device.Submit(&QueueSubmitInfo{
			Queue:            QueueGraphics,
			WaitSemaphores:   []SemaphoreSubmit{{Semaphore: acq.ImageAvailable, Stage: StageColorAttachmentOutput}},
			SignalSemaphores: []SemaphoreSubmit{{Semaphore: acq.PresentReady, Stage: StageAllCommands}},
			Fence:            acq.InFlight,
		}))
		require.NoError(t, sc.Present())
	}

	assert.Equal(t, 0, native.blockingWaits)
	assert.Len(t, native.submissions, 6)
}

func TestAcquireHandsOutPerImageState(t *testing.T) {
	sc, _, _ := newTestSwapchain(t, 2, 3)

	first, err := sc.Acquire()
	require.NoError(t, err)
	require.NoError(t, sc.Present())
	second, err := sc.Acquire()
	require.NoError(t, err)

	assert.NotEqual(t, first.Image, second.Image)
	assert.NotEqual(t, first.View, second.View)
	assert.NotSame(t, first.PresentReady, second.PresentReady)
	// Different frame slots carry different sync state.
	assert.NotSame(t, first.ImageAvailable, second.ImageAvailable)
	assert.NotSame(t, first.InFlight, second.InFlight)
}

func TestPresentWithoutAcquireIsNoOp(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)

	require.NoError(t, sc.Present())
	assert.Empty(t, native.lastChain.presented)
}

func TestPresentUsesAcquiredImageIndex(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)

	acq, err := sc.Acquire()
	require.NoError(t, err)
	require.NoError(t, sc.Present())

	require.Len(t, native.lastChain.presented, 1)
	assert.Equal(t, acq.ImageIndex, native.lastChain.presented[0])

	// The pending entry is consumed: a second present is a no-op.
	require.NoError(t, sc.Present())
	assert.Len(t, native.lastChain.presented, 1)
}

func TestAcquireOutOfDatePropagates(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)
	native.lastChain.acquireErr = core.ErrSwapchainOutOfDate

	_, err := sc.Acquire()
	assert.ErrorIs(t, err, core.ErrSwapchainOutOfDate)
}

func TestAcquireDeviceLostPropagates(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)

	// Use up the signaled fences, then fail the wait.
	_, err := sc.Acquire()
	require.NoError(t, err)
	require.NoError(t, sc.Present())
	native.waitFenceErr = core.ErrDeviceLost

	_, err = sc.Acquire()
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestRecreateWaitsIdleBeforeTeardown(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)
	firstChain := native.lastChain

	require.NoError(t, sc.Recreate(1920, 1080))

	assert.Equal(t, Extent2D{Width: 1920, Height: 1080}, sc.Extent())
	assert.True(t, firstChain.destroyed)
	// The new native swapchain was chained off the old one.
	require.Len(t, native.chainedOld, 2)
	assert.Nil(t, native.chainedOld[0])
	assert.Same(t, firstChain, native.chainedOld[1])

	// Device idle strictly precedes releasing any old sync object.
	idleAt := native.log.indexOf("device:wait_idle")
	require.GreaterOrEqual(t, idleAt, 0)
	for i, e := range native.log.events {
		if e == "semaphore:destroy" || e == "fence:destroy" || e == "image_view:destroy" {
			assert.Greater(t, i, idleAt)
		}
	}
}

func TestRecreateClampsRequestedExtent(t *testing.T) {
	native, allocator := newFakeNative()
	device := NewDevice(native, allocator, DefaultDescriptorTableConfig())
	sc, err := NewSwapchain(device, newFakeSurface(640, 480, 1920, 1080), &SwapchainDescription{
		Width:          800,
		Height:         600,
		ImageCount:     3,
		FramesInFlight: 2,
	})
	require.NoError(t, err)

	require.NoError(t, sc.Recreate(5000, 50))
	assert.Equal(t, Extent2D{Width: 1920, Height: 480}, sc.Extent())
}

func TestRecreateResetsProtocolState(t *testing.T) {
	sc, _, _ := newTestSwapchain(t, 2, 3)

	_, err := sc.Acquire()
	require.NoError(t, err)
	require.NoError(t, sc.Recreate(1024, 768))

	// Pending acquisitions from the old chain are gone.
	require.NoError(t, sc.Present())

	acq, err := sc.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), acq.FrameIndex)
	assert.Equal(t, uint32(0), acq.ImageIndex)
}

func TestRecreateFailsWhenDeviceBusyForever(t *testing.T) {
	sc, native, _ := newTestSwapchain(t, 2, 3)
	native.waitIdleErr = core.ErrDeviceLost

	err := sc.Recreate(100, 100)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestDestroyReleasesEverything(t *testing.T) {
	sc, native, device := newTestSwapchain(t, 2, 3)
	chain := native.lastChain

	require.NoError(t, sc.Destroy())

	assert.True(t, chain.destroyed)
	assert.Equal(t, 0, device.LiveResources())

	idleAt := native.log.indexOf("device:wait_idle")
	destroyAt := native.log.indexOf("chain:destroy")
	assert.Less(t, idleAt, destroyAt)
}
