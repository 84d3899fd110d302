package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the renderer configuration, loaded from a TOML file at
// startup and reloadable at runtime through the Watcher.
type Config struct {
	// The application name used in windowing, if applicable.
	Name     string         `toml:"name"`
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Bindless BindlessConfig `toml:"bindless"`
}

type WindowConfig struct {
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// How many presentable images to request from the display engine.
	ImageCount uint32 `toml:"image_count"`
	// How many CPU frames may be recorded before blocking on the GPU.
	FramesInFlight uint32 `toml:"frames_in_flight"`
	// Prefer a low-latency present mode when the platform offers one.
	VSync bool `toml:"vsync"`
	// Enable the debug callback of the graphics API, when available.
	Validation bool `toml:"validation"`
}

// BindlessConfig sets the fixed capacities of the global descriptor
// table. These are baked into the descriptor set layout at device
// creation and cannot be reloaded.
type BindlessConfig struct {
	BufferCapacity       uint32 `toml:"buffer_capacity"`
	SampledImageCapacity uint32 `toml:"sampled_image_capacity"`
	StorageImageCapacity uint32 `toml:"storage_image_capacity"`
	SamplerCapacity      uint32 `toml:"sampler_capacity"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Name: "Prisma",
		Window: WindowConfig{
			StartPosX: 100,
			StartPosY: 100,
			Width:     1280,
			Height:    720,
		},
		Renderer: RendererConfig{
			ImageCount:     3,
			FramesInFlight: 2,
			VSync:          true,
			Validation:     false,
		},
		Bindless: BindlessConfig{
			BufferCapacity:       1024,
			SampledImageCapacity: 1024,
			StorageImageCapacity: 1024,
			SamplerCapacity:      128,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Renderer.FramesInFlight == 0 {
		return fmt.Errorf("frames_in_flight must be at least 1")
	}
	if c.Renderer.FramesInFlight > c.Renderer.ImageCount {
		return fmt.Errorf("frames_in_flight (%d) cannot exceed image_count (%d)",
			c.Renderer.FramesInFlight, c.Renderer.ImageCount)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d is not usable", c.Window.Width, c.Window.Height)
	}
	return nil
}
