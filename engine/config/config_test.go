package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "Prisma", cfg.Name)
	assert.Equal(t, uint32(2), cfg.Renderer.FramesInFlight)
	assert.Equal(t, uint32(1024), cfg.Bindless.BufferCapacity)
	assert.True(t, cfg.Renderer.VSync)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prisma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "demo"

[window]
width = 800
height = 600

[renderer]
image_count = 4
frames_in_flight = 3
vsync = false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.False(t, cfg.Renderer.VSync)
	// Untouched sections keep their defaults.
	assert.Equal(t, uint32(128), cfg.Bindless.SamplerCapacity)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prisma.toml")
	require.NoError(t, os.WriteFile(path, []byte("window = {"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidPacing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prisma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[renderer]
image_count = 2
frames_in_flight = 3
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed image_count")
}

func TestWatcherBumpsGenerationOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prisma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "first"`), 0o644))

	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, uint64(0), w.Generation())
	require.NoError(t, os.WriteFile(path, []byte(`name = "second"`), 0o644))

	require.Eventually(t, func() bool {
		return w.Generation() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "second", w.Current().Name)
}

func TestWatcherKeepsPreviousConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prisma.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "good"`), 0o644))

	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("window = {"), 0o644))

	// The bad write never lands: generation stays put and the last good
	// configuration remains current.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, uint64(0), w.Generation())
	assert.Equal(t, "good", w.Current().Name)
}
