package renderer

import (
	"testing"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima-frames/engine/renderer/graph"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssets() Assets {
	vertices, indices := metadata.Cube(2)
	return Assets{
		Shaders: graph.Shaders{
			GeometryVert: []byte{0x03, 0x02, 0x23, 0x07},
			GeometryFrag: []byte{0x03, 0x02, 0x23, 0x07},
			PostVert:     []byte{0x03, 0x02, 0x23, 0x07},
			PostFrag:     []byte{0x03, 0x02, 0x23, 0x07},
		},
		Model: graph.Model{Name: "cube", Vertices: vertices, Indices: indices, Textures: []graph.TextureSource{graph.PlaceholderTexture()}},
	}
}

func testConfig() Config {
	return Config{
		FramesInFlight: 2,
		Samples:        8,
		FenceTimeout:   time.Second,
		AcquireTimeout: time.Second,
		MinimizedPoll:  time.Millisecond,
		ClearColor:     [4]float32{0, 0, 0, 1},
		MaxLights:      4,
	}
}

func TestRendererLifecycle(t *testing.T) {
	dev := gputest.NewDevice()
	surface := gputest.NewSurface(1280, 720)

	r, err := Initialize(dev, surface, gpu.Extent{Width: 1280, Height: 720}, testConfig(), testAssets())
	require.NoError(t, err)
	assert.Equal(t, gpu.Extent{Width: 1280, Height: 720}, r.Extent())

	scene := metadata.NewSceneState()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.SubmitFrame(scene))
	}
	surface.Resize(640, 480)
	r.NotifyResize()
	require.NoError(t, r.SubmitFrame(scene))
	assert.Equal(t, uint64(1), r.Recreations())
	assert.Equal(t, uint64(2), r.Generation())
	assert.Equal(t, gpu.Extent{Width: 640, Height: 480}, r.Extent())

	r.SetClearColor([4]float32{1, 1, 1, 1})
	require.NoError(t, r.SubmitFrame(scene))
	assert.Equal(t, uint64(7), r.FrameNumber())

	require.NoError(t, r.Shutdown())
	require.NoError(t, r.Shutdown())
	assert.ErrorIs(t, r.SubmitFrame(scene), core.ErrRendererFailed)

	assert.Empty(t, dev.Leaks(), dev.LeakReport())
	assert.Empty(t, dev.Violations())
}

func TestInitializeClampsSamples(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Samples = 4
	r, err := Initialize(dev, gputest.NewSurface(100, 100), gpu.Extent{Width: 100, Height: 100}, testConfig(), testAssets())
	require.NoError(t, err)
	defer r.Shutdown()

	for _, s := range r.graph.Pass(graph.PassGeometry).Sets {
		assert.NotZero(t, s)
	}
	info, ok := dev.RenderPassInfo(r.graph.Pass(graph.PassGeometry).RenderPass.Handle())
	require.True(t, ok)
	assert.Equal(t, uint32(4), info.Attachments[0].Samples)
}

func TestInitializeRejectsZeroExtent(t *testing.T) {
	dev := gputest.NewDevice()
	_, err := Initialize(dev, gputest.NewSurface(0, 0), gpu.Extent{}, testConfig(), testAssets())
	assert.ErrorIs(t, err, core.ErrInvalidExtent)
}

func TestInitializeFailureReleasesEverything(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailNext(gputest.KindSemaphore, 1)
	_, err := Initialize(dev, gputest.NewSurface(100, 100), gpu.Extent{Width: 100, Height: 100}, testConfig(), testAssets())
	require.Error(t, err)
	assert.Empty(t, dev.Leaks(), dev.LeakReport())
}

func TestChooseSampleCount(t *testing.T) {
	tests := []struct {
		requested, supported, want uint32
	}{
		{4, 8, 4},
		{8, 4, 4},
		{0, 8, 1},
		{6, 64, 4},
		{4, 0, 1},
		{1, 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChooseSampleCount(tt.requested, tt.supported), "requested %d supported %d", tt.requested, tt.supported)
	}
}
