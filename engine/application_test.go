package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level = "debug"

[window]
name = "Test"
width = 640
height = 480

[renderer]
frames_in_flight = 3
samples = 8
present_mode = "mailbox"
fence_timeout = "500ms"
minimized_poll = "20ms"
clear_color = [0.1, 0.2, 0.3, 1.0]
validation = false

[assets]
model = "sponza"
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, core.LogLevelDebug, cfg.Level())
	assert.Equal(t, "Test", cfg.Window.Name)
	assert.Equal(t, uint32(640), cfg.Window.StartWidth)
	// keys missing from the file keep their default
	assert.Equal(t, uint32(100), cfg.Window.StartPosX)
	assert.Equal(t, "assets", cfg.Assets.Root)
	assert.Equal(t, "sponza", cfg.Assets.Model)

	rc := cfg.RendererConfig()
	assert.Equal(t, 3, rc.FramesInFlight)
	assert.Equal(t, uint32(8), rc.Samples)
	assert.Equal(t, gpu.PresentModeMailbox, rc.PresentMode)
	assert.Equal(t, 500*time.Millisecond, rc.FenceTimeout)
	assert.Equal(t, 2*time.Second, rc.AcquireTimeout)
	assert.Equal(t, 20*time.Millisecond, rc.MinimizedPoll)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, rc.ClearColor)
	assert.False(t, cfg.Renderer.Validation)
}

func TestParseConfigRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "bogus = 1",
		"bad duration":     "[renderer]\nfence_timeout = \"soon\"",
		"zero frames":      "[renderer]\nframes_in_flight = 0",
		"too many frames":  "[renderer]\nframes_in_flight = 4",
		"odd samples":      "[renderer]\nsamples = 3",
		"present mode":     "[renderer]\npresent_mode = \"triple\"",
		"negative timeout": "[renderer]\nacquire_timeout = \"-1s\"",
		"empty window":     "[window]\nwidth = 0",
		"not toml":         "[window",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, DefaultApplicationConfig().Validate())
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", DefaultConfigPath))
	require.NoError(t, err)
	assert.Equal(t, DefaultApplicationConfig().Renderer, cfg.Renderer)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}

func TestConfigWatcherPushesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	events := core.NewEventQueue(16)
	cw, err := NewConfigWatcher(path, events)
	require.NoError(t, err)
	defer cw.Close()

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig+"\n"), 0o644))

	var reload core.ConfigReloadedEvent
	assert.Eventually(t, func() bool {
		found := false
		events.Drain(func(e core.Event) {
			if ev, ok := e.(core.ConfigReloadedEvent); ok {
				reload = ev
				found = true
			}
		})
		return found
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, filepath.Clean(reload.Path), reload.Path)
	assert.Equal(t, "anima.toml", filepath.Base(reload.Path))

	require.NoError(t, cw.Close())
	assert.NoError(t, cw.Close())
}
