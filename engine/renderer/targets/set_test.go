package targets

import (
	"context"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPasses(t *testing.T, dev *gputest.Device) Passes {
	t.Helper()
	geometry, err := dev.CreateRenderPass(gpu.RenderPassInfo{
		Name:        "geometry",
		Attachments: make([]gpu.AttachmentDescription, 3),
	})
	require.NoError(t, err)
	post, err := dev.CreateRenderPass(gpu.RenderPassInfo{
		Name:        "post",
		Attachments: make([]gpu.AttachmentDescription, 1),
	})
	require.NoError(t, err)
	return Passes{Geometry: geometry, PostProcess: post}
}

func newTestSet(t *testing.T, width, height uint32) (*Set, *gputest.Device, *gputest.Surface) {
	t.Helper()
	dev := gputest.NewDevice()
	surface := gputest.NewSurface(width, height)
	set, err := New(dev, surface, Config{
		Samples:       4,
		DepthFormat:   gpu.FormatD32Sfloat,
		MinimizedPoll: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, set.Build(context.Background(), testPasses(t, dev)))
	return set, dev, surface
}

func TestBuild(t *testing.T) {
	set, dev, _ := newTestSet(t, 800, 600)

	assert.Equal(t, uint64(1), set.Generation())
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, set.Extent())
	assert.Equal(t, 3, set.ImageCount())
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, set.Format())
	assert.Equal(t, gpu.FormatR16G16B16A16Sfloat, set.ColorFormat())

	// one geometry framebuffer plus one per swapchain image
	assert.Len(t, set.Framebuffers(), 4)
	assert.Equal(t, 3, dev.Live(gputest.KindImage))

	resolve, ok := dev.ImageInfo(dev.ViewImage(set.ResolveView()))
	require.True(t, ok)
	assert.Equal(t, uint32(1), resolve.Samples)
	assert.NotZero(t, resolve.Usage&gpu.ImageUsageSampled)
	// the scene is resolved in floating point so tone mapping sees values above 1
	assert.Equal(t, gpu.FormatR16G16B16A16Sfloat, resolve.Format)

	fb, ok := dev.FramebufferInfo(set.GeometryFramebuffer())
	require.True(t, ok)
	require.Len(t, fb.Attachments, 3)
	color, _ := dev.ImageInfo(dev.ViewImage(fb.Attachments[0]))
	depth, _ := dev.ImageInfo(dev.ViewImage(fb.Attachments[1]))
	assert.Equal(t, uint32(4), color.Samples)
	assert.Equal(t, uint32(4), depth.Samples)
	assert.Equal(t, gpu.FormatD32Sfloat, depth.Format)
	assert.Equal(t, set.ResolveView(), fb.Attachments[2])

	_, err := set.PostFramebuffer(3)
	assert.Error(t, err)
}

func TestRecreateRebuildsEverything(t *testing.T) {
	set, dev, surface := newTestSet(t, 800, 600)
	oldResolve := set.ResolveView()
	oldSwapchain := set.Swapchain()

	var rebound []uint64
	set.AddRebinder(func(gen uint64) error {
		rebound = append(rebound, gen)
		return nil
	})

	surface.Resize(1024, 768)
	require.NoError(t, set.Recreate(context.Background()))

	assert.Equal(t, uint64(2), set.Generation())
	assert.Equal(t, []uint64{2}, rebound)
	assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, set.Extent())
	assert.NotEqual(t, oldResolve, set.ResolveView())
	assert.False(t, dev.ViewAlive(oldResolve))
	assert.NotEqual(t, oldSwapchain, set.Swapchain())
	assert.Equal(t, 1, dev.Live(gputest.KindSwapchain))
	assert.Equal(t, 3, dev.Live(gputest.KindImage))
	assert.Equal(t, 1, dev.WaitIdleCalls())

	for _, fb := range set.Framebuffers() {
		info, ok := dev.FramebufferInfo(fb)
		require.True(t, ok)
		assert.Equal(t, set.Extent(), info.Extent)
	}
	assert.Empty(t, dev.Violations())
}

func TestRecreateBlocksWhileMinimized(t *testing.T) {
	set, dev, surface := newTestSet(t, 800, 600)
	surface.Script(gpu.Extent{}, gpu.Extent{}, gpu.Extent{}, gpu.Extent{Width: 640, Height: 480})

	require.NoError(t, set.Recreate(context.Background()))

	assert.Equal(t, 3, surface.Waits())
	for _, d := range surface.WaitTimeouts() {
		assert.Equal(t, 10*time.Millisecond, d)
	}
	assert.Equal(t, gpu.Extent{Width: 640, Height: 480}, set.Extent())
	assert.Equal(t, uint64(2), set.Generation())
	assert.Empty(t, dev.Violations())
}

func TestRecreateCancelledWhileMinimized(t *testing.T) {
	set, _, surface := newTestSet(t, 800, 600)
	surface.Resize(0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := set.Recreate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(1), set.Generation())
}

func TestRecreateFailureRollsBack(t *testing.T) {
	set, dev, _ := newTestSet(t, 800, 600)
	dev.FailNext(gputest.KindFramebuffer, 1)

	err := set.Recreate(context.Background())
	require.Error(t, err)

	set.Destroy()
	assert.Equal(t, 0, dev.Live(gputest.KindImage))
	assert.Equal(t, 0, dev.Live(gputest.KindImageView))
	assert.Equal(t, 0, dev.Live(gputest.KindFramebuffer))
	assert.Equal(t, 0, dev.Live(gputest.KindSwapchain))
	assert.Empty(t, dev.Violations())
}

func TestDestroyReleasesAll(t *testing.T) {
	set, dev, _ := newTestSet(t, 800, 600)
	set.Destroy()
	set.Destroy()

	assert.Equal(t, 0, dev.Live(gputest.KindImage))
	assert.Equal(t, 0, dev.Live(gputest.KindImageView))
	assert.Equal(t, 0, dev.Live(gputest.KindFramebuffer))
	assert.Equal(t, 0, dev.Live(gputest.KindSwapchain))
	assert.Empty(t, dev.Violations())
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent: gpu.Extent{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
		MinExtent:     gpu.Extent{Width: 64, Height: 64},
		MaxExtent:     gpu.Extent{Width: 2048, Height: 2048},
	}
	assert.Equal(t, gpu.Extent{Width: 2048, Height: 64}, ChooseExtent(caps, gpu.Extent{Width: 4000, Height: 10}))
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, ChooseExtent(caps, gpu.Extent{Width: 800, Height: 600}))
	assert.True(t, ChooseExtent(caps, gpu.Extent{Width: 800}).IsZero())

	caps.CurrentExtent = gpu.Extent{Width: 1280, Height: 720}
	assert.Equal(t, caps.CurrentExtent, ChooseExtent(caps, gpu.Extent{Width: 800, Height: 600}))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 0}))
	assert.Equal(t, uint32(2), ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}

func TestBuildSingleSample(t *testing.T) {
	dev := gputest.NewDevice()
	surface := gputest.NewSurface(320, 240)
	set, err := New(dev, surface, Config{Samples: 1, DepthFormat: gpu.FormatD32Sfloat})
	require.NoError(t, err)

	geometry, err := dev.CreateRenderPass(gpu.RenderPassInfo{Name: "geometry", Attachments: make([]gpu.AttachmentDescription, 2)})
	require.NoError(t, err)
	post, err := dev.CreateRenderPass(gpu.RenderPassInfo{Name: "post", Attachments: make([]gpu.AttachmentDescription, 1)})
	require.NoError(t, err)
	require.NoError(t, set.Build(context.Background(), Passes{Geometry: geometry, PostProcess: post}))

	assert.Equal(t, 2, dev.Live(gputest.KindImage))
	fb, ok := dev.FramebufferInfo(set.GeometryFramebuffer())
	require.True(t, ok)
	assert.Equal(t, []gpu.ImageView{set.ResolveView(), fb.Attachments[1]}, fb.Attachments)
}
