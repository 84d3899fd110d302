package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/prisma/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	resizedWidth  uint32
	resizedHeight uint32
	resized       bool
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		p.resizedWidth = uint32(width)
		p.resizedHeight = uint32(height)
		p.resized = true
	})
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	glfw.Terminate()
	return nil
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// ConsumeResize reports and clears a pending framebuffer resize. The
// frame loop polls it once per frame to decide whether the swapchain
// needs recreation.
func (p *Platform) ConsumeResize() (uint32, uint32, bool) {
	if !p.resized {
		return 0, 0, false
	}
	p.resized = false
	return p.resizedWidth, p.resizedHeight, true
}

// WaitWhileMinimized blocks until the framebuffer has a usable size
// again. A zero-area framebuffer cannot back a swapchain.
func (p *Platform) WaitWhileMinimized() {
	w, h := p.Window.GetFramebufferSize()
	for w == 0 || h == 0 {
		glfw.WaitEvents()
		w, h = p.Window.GetFramebufferSize()
	}
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateVulkanSurface hands the window to the graphics API. The uintptr
// is the raw VkSurfaceKHR handle.
func (p *Platform) CreateVulkanSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create window surface: %w", err)
	}
	return surface, nil
}
