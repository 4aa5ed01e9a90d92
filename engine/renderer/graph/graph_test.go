package graph

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/descriptors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-frames/engine/renderer/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShaders = Shaders{
	GeometryVert: []byte{1, 2, 3, 4},
	GeometryFrag: []byte{1, 2, 3, 4},
	PostVert:     []byte{1, 2, 3, 4},
	PostFrag:     []byte{1, 2, 3, 4},
}

func testModel() Model {
	vertices, indices := metadata.Cube(1)
	return Model{Name: "cube", Vertices: vertices, Indices: indices}
}

type fixture struct {
	dev     *gputest.Device
	surface *gputest.Surface
	set     *targets.Set
	graph   *Graph
}

func newFixture(t *testing.T, samples uint32) *fixture {
	t.Helper()
	dev := gputest.NewDevice()
	surface := gputest.NewSurface(800, 600)
	set, err := targets.New(dev, surface, targets.Config{Samples: samples, DepthFormat: dev.DepthFormat()})
	require.NoError(t, err)

	g, err := New(dev, Config{
		Formats: Formats{
			Color:     set.ColorFormat(),
			Depth:     set.DepthFormat(),
			Swapchain: set.Format(),
			Samples:   samples,
		},
		FramesInFlight: 2,
		MaxLights:      2,
		ClearColor:     [4]float32{0.1, 0.2, 0.3, 1},
	}, testShaders, testModel())
	require.NoError(t, err)
	require.NoError(t, set.Build(context.Background(), g.Passes()))
	require.NoError(t, g.Bind(set))
	return &fixture{dev: dev, surface: surface, set: set, graph: g}
}

func (f *fixture) destroy() {
	f.set.Destroy()
	f.graph.Destroy()
}

func TestGeometryPassDescription(t *testing.T) {
	f := newFixture(t, 4)
	info, ok := f.dev.RenderPassInfo(f.graph.Pass(PassGeometry).RenderPass.Handle())
	require.True(t, ok)

	require.Len(t, info.Attachments, 3)
	assert.Equal(t, uint32(4), info.Attachments[0].Samples)
	assert.Equal(t, uint32(4), info.Attachments[1].Samples)
	assert.True(t, info.Attachments[1].Format.IsDepth())
	assert.Equal(t, uint32(1), info.Attachments[2].Samples)
	assert.Equal(t, gpu.LayoutShaderReadOnly, info.Attachments[2].FinalLayout)
	require.Len(t, info.Subpass.Resolve, 1)
	assert.Equal(t, uint32(2), info.Subpass.Resolve[0].Attachment)

	require.Len(t, info.Dependencies, 2)
	in, out := info.Dependencies[0], info.Dependencies[1]
	assert.Equal(t, gpu.SubpassExternal, in.Src)
	assert.NotZero(t, in.DstStage&gpu.StageEarlyFragmentTests)
	assert.NotZero(t, in.DstAccess&gpu.AccessDepthStencilAttachmentWrite)
	assert.Equal(t, gpu.SubpassExternal, out.Dst)
	assert.Equal(t, gpu.StageFragmentShader, out.DstStage)
	assert.Equal(t, gpu.AccessShaderRead, out.DstAccess)
	f.destroy()
}

func TestPostPassDescription(t *testing.T) {
	f := newFixture(t, 4)
	info, ok := f.dev.RenderPassInfo(f.graph.Pass(PassPostProcess).RenderPass.Handle())
	require.True(t, ok)
	require.Len(t, info.Attachments, 1)
	assert.Equal(t, gpu.LayoutPresentSrc, info.Attachments[0].FinalLayout)
	assert.Equal(t, f.set.Format(), info.Attachments[0].Format)

	// the scene color written by the geometry pass is ordered before the
	// fragment shader samples it
	require.Len(t, info.Dependencies, 1)
	dep := info.Dependencies[0]
	assert.Equal(t, gpu.SubpassExternal, dep.Src)
	assert.NotZero(t, dep.SrcStage&gpu.StageColorAttachmentOutput)
	assert.NotZero(t, dep.SrcAccess&gpu.AccessColorAttachmentWrite)
	assert.NotZero(t, dep.DstStage&gpu.StageFragmentShader)
	assert.NotZero(t, dep.DstAccess&gpu.AccessShaderRead)

	pipeline, ok := f.dev.PipelineInfo(f.graph.Pass(PassPostProcess).Pipeline.Handle())
	require.True(t, ok)
	assert.Equal(t, uint32(1), pipeline.Samples)
	assert.False(t, pipeline.DepthTest)
	f.destroy()
}

func TestSingleSampleGeometryPass(t *testing.T) {
	f := newFixture(t, 1)
	info, ok := f.dev.RenderPassInfo(f.graph.Pass(PassGeometry).RenderPass.Handle())
	require.True(t, ok)
	require.Len(t, info.Attachments, 2)
	assert.Empty(t, info.Subpass.Resolve)
	assert.Equal(t, gpu.LayoutShaderReadOnly, info.Attachments[0].FinalLayout)
	f.destroy()
	assert.Empty(t, f.dev.Violations())
}

func TestBindWritesAllSets(t *testing.T) {
	f := newFixture(t, 4)
	geometry := f.graph.Pass(PassGeometry)
	post := f.graph.Pass(PassPostProcess)
	require.Len(t, geometry.Sets, 2)
	require.Len(t, post.Sets, 2)

	for _, set := range geometry.Sets {
		for b := range geometry.Layout.Bindings {
			_, ok := f.dev.Written(set, uint32(b))
			assert.True(t, ok, "geometry binding %d", b)
		}
	}
	texBinding, _ := post.Layout.Binding(descriptors.SectionTextures)
	for _, set := range post.Sets {
		w, ok := f.dev.Written(set, texBinding)
		require.True(t, ok)
		assert.Equal(t, []gpu.ImageView{f.set.ResolveView()}, w.Images)
	}
	assert.Equal(t, f.set.Generation(), f.graph.BoundGeneration())
	f.destroy()
}

func TestRecreationRebindsPostProcess(t *testing.T) {
	f := newFixture(t, 4)
	f.surface.Resize(1280, 720)
	require.NoError(t, f.set.Recreate(context.Background()))

	assert.Equal(t, uint64(2), f.graph.BoundGeneration())
	post := f.graph.Pass(PassPostProcess)
	texBinding, _ := post.Layout.Binding(descriptors.SectionTextures)
	for _, set := range post.Sets {
		w, ok := f.dev.Written(set, texBinding)
		require.True(t, ok)
		assert.Equal(t, []gpu.ImageView{f.set.ResolveView()}, w.Images)
	}
	assert.Empty(t, f.dev.Violations())
	f.destroy()
}

func TestRecordStaleBinding(t *testing.T) {
	dev := gputest.NewDevice()
	g, err := New(dev, Config{
		Formats:        Formats{Color: gpu.FormatB8G8R8A8Srgb, Depth: gpu.FormatD32Sfloat, Swapchain: gpu.FormatB8G8R8A8Srgb, Samples: 4},
		FramesInFlight: 2,
	}, testShaders, testModel())
	require.NoError(t, err)

	img, err := dev.CreateImage(gpu.ImageInfo{Name: "resolve", Extent: gpu.Extent{Width: 1, Height: 1}, Format: gpu.FormatB8G8R8A8Srgb, Samples: 1, Usage: gpu.ImageUsageSampled})
	require.NoError(t, err)
	view, err := dev.CreateImageView(img, gpu.FormatB8G8R8A8Srgb)
	require.NoError(t, err)

	stale := &staleTargets{generation: 1, view: view}
	require.NoError(t, g.Bind(stale))
	stale.generation = 2

	cb, err := dev.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, dev.BeginCommandBuffer(cb))
	err = g.Record(cb, 0, 0)
	assert.ErrorIs(t, err, core.ErrStaleBinding)
	assert.True(t, core.IsInvariant(err))
	assert.Empty(t, dev.CommandsOf(cb))
}

func TestBindRejectsUnknownView(t *testing.T) {
	dev := gputest.NewDevice()
	g, err := New(dev, Config{
		Formats:        Formats{Color: gpu.FormatB8G8R8A8Srgb, Depth: gpu.FormatD32Sfloat, Swapchain: gpu.FormatB8G8R8A8Srgb, Samples: 4},
		FramesInFlight: 2,
	}, testShaders, testModel())
	require.NoError(t, err)

	// view 0 was never created, so the device refuses the post-process writes
	err = g.Bind(&staleTargets{generation: 1})
	assert.ErrorIs(t, err, core.ErrUnknownHandle)
	assert.True(t, core.IsInvariant(err))
	assert.Zero(t, g.BoundGeneration())
}

type staleTargets struct {
	generation uint64
	view       gpu.ImageView
}

func (s *staleTargets) Generation() uint64 { return s.generation }
func (s *staleTargets) Extent() gpu.Extent { return gpu.Extent{Width: 1, Height: 1} }
func (s *staleTargets) ResolveView() gpu.ImageView { return s.view }
func (s *staleTargets) GeometryFramebuffer() gpu.Framebuffer { return 0 }
func (s *staleTargets) PostFramebuffer(uint32) (gpu.Framebuffer, error) { return 0, nil }
func (s *staleTargets) AddRebinder(targets.Rebinder) {}

func TestRecordOrder(t *testing.T) {
	f := newFixture(t, 4)
	cb, err := f.dev.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, f.dev.BeginCommandBuffer(cb))
	require.NoError(t, f.graph.Record(cb, 1, 2))
	require.NoError(t, f.dev.EndCommandBuffer(cb))

	var ops []string
	for _, c := range f.dev.CommandsOf(cb) {
		ops = append(ops, c.Op)
	}
	draw := []string{"bind-pipeline", "set-viewport", "bind-descriptor-set", "bind-vertex-buffer", "bind-index-buffer", "draw-indexed"}
	want := append([]string{"begin-render-pass"}, draw...)
	want = append(want, "end-render-pass", "begin-render-pass")
	want = append(want, draw...)
	want = append(want, "end-render-pass")
	assert.Equal(t, want, ops)

	cmds := f.dev.CommandsOf(cb)
	assert.Equal(t, f.set.GeometryFramebuffer(), cmds[0].Framebuffer)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, cmds[0].ClearValues[0].Color)
	assert.Equal(t, float32(1), cmds[0].ClearValues[1].Depth)
	postFB, err := f.set.PostFramebuffer(2)
	require.NoError(t, err)
	assert.Equal(t, postFB, cmds[8].Framebuffer)
	assert.Equal(t, f.graph.Pass(PassGeometry).Sets[1], cmds[3].Set)
	assert.Equal(t, uint32(36), cmds[6].Count)
	assert.Equal(t, uint32(6), cmds[14].Count)
	for _, c := range cmds {
		if c.Op == "set-viewport" {
			assert.Equal(t, f.set.Extent(), c.Extent)
		}
	}

	_, err = f.set.PostFramebuffer(9)
	assert.Error(t, err)
	assert.Error(t, f.graph.Record(cb, 5, 0))
	f.destroy()
}

func TestSetClearColor(t *testing.T) {
	f := newFixture(t, 4)
	f.graph.SetClearColor([4]float32{1, 0, 0, 1})
	assert.Equal(t, [4]float32{1, 0, 0, 1}, f.graph.ClearColor())
	f.destroy()
}

func TestUpdateUniforms(t *testing.T) {
	f := newFixture(t, 4)
	scene := metadata.NewSceneState()
	scene.Model = mgl32.Translate3D(1, 2, 3)
	scene.Lights = []metadata.Light{
		{Position: mgl32.Vec3{1, 1, 1}, Color: mgl32.Vec3{1, 1, 1}, Intensity: 1},
		{Position: mgl32.Vec3{2, 2, 2}, Color: mgl32.Vec3{1, 0, 0}, Intensity: 2},
		{Position: mgl32.Vec3{3, 3, 3}, Color: mgl32.Vec3{0, 1, 0}, Intensity: 3},
	}
	require.NoError(t, f.graph.UpdateUniforms(1, scene))

	geometry := f.graph.Pass(PassGeometry)
	tw, ok := f.dev.Written(geometry.Sets[1], 0)
	require.True(t, ok)
	want := make([]byte, metadata.TransformBlockSize)
	require.NoError(t, metadata.EncodeTransformBlock(want, scene))
	assert.Equal(t, want, f.dev.BufferData(tw.Buffer.Buffer))

	lightBinding, ok := geometry.Layout.Binding(descriptors.SectionLights)
	require.True(t, ok)
	lw, ok := f.dev.Written(geometry.Sets[1], lightBinding)
	require.True(t, ok)
	lights := f.dev.BufferData(lw.Buffer.Buffer)
	assert.Equal(t, byte(2), lights[0], "light count is capped at the layout capacity")

	assert.Error(t, f.graph.UpdateUniforms(2, scene))
	f.destroy()
}

func TestExtraLightsWarnOnce(t *testing.T) {
	var out bytes.Buffer
	core.SetLogOutput(&out)
	defer core.SetLogOutput(os.Stderr)

	f := newFixture(t, 4)
	many := metadata.NewSceneState()
	many.Lights = make([]metadata.Light, 3)
	few := metadata.NewSceneState()
	few.Lights = make([]metadata.Light, 1)

	warnings := func() int { return strings.Count(out.String(), "extra lights are ignored") }
	for i := 0; i < 5; i++ {
		require.NoError(t, f.graph.UpdateUniforms(i%2, many))
	}
	assert.Equal(t, 1, warnings())

	// dropping back under the limit re-arms the warning
	require.NoError(t, f.graph.UpdateUniforms(0, few))
	require.NoError(t, f.graph.UpdateUniforms(1, many))
	assert.Equal(t, 2, warnings())
	f.destroy()
}

func TestDestroyReleasesEverything(t *testing.T) {
	f := newFixture(t, 4)
	f.destroy()
	f.graph.Destroy()
	assert.Empty(t, f.dev.Leaks(), f.dev.LeakReport())
	assert.Empty(t, f.dev.Violations())
}

func TestNewRollsBackOnFailure(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailNext(gputest.KindPipeline, 2)
	_, err := New(dev, Config{
		Formats:        Formats{Color: gpu.FormatB8G8R8A8Srgb, Depth: gpu.FormatD32Sfloat, Swapchain: gpu.FormatB8G8R8A8Srgb, Samples: 4},
		FramesInFlight: 2,
		MaxLights:      1,
	}, testShaders, testModel())
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindCreation, kind)
	assert.Empty(t, dev.Leaks(), dev.LeakReport())
}

func TestNewRejectsBadInput(t *testing.T) {
	dev := gputest.NewDevice()
	_, err := New(dev, Config{FramesInFlight: 0}, testShaders, testModel())
	assert.True(t, core.IsInvariant(err))

	_, err = New(dev, Config{FramesInFlight: 1, Formats: Formats{Samples: 1}}, testShaders, Model{Name: "empty"})
	assert.Error(t, err)

	bad := testModel()
	bad.Textures = []TextureSource{{Name: "broken", Extent: gpu.Extent{Width: 4, Height: 4}, Pixels: []byte{1}}}
	_, err = New(dev, Config{FramesInFlight: 1}, testShaders, bad)
	assert.Error(t, err)
	assert.Empty(t, dev.Leaks(), dev.LeakReport())
}
