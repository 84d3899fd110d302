package core

import (
	"errors"
)

// Device-level failures. These are the only errors a caller is expected to
// branch on: swapchain staleness triggers recreation, the rest generally
// propagate to the top level for an orderly shutdown.
var (
	ErrOutOfDeviceMemory   = errors.New("out of device memory")
	ErrDeviceLost          = errors.New("device lost")
	ErrSwapchainOutOfDate  = errors.New("swapchain out of date")
	ErrSwapchainSuboptimal = errors.New("swapchain suboptimal")
	ErrUnknown             = errors.New("unknown")
)
