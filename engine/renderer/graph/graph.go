// Package graph is the two-pass render graph: a geometry pass drawing the
// scene into multisampled offscreen targets, followed by a post-process pass
// sampling the resolved result onto the swapchain image.
package graph

import (
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/descriptors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-frames/engine/renderer/targets"
)

type Device interface {
	gpu.ResourceAllocator
	gpu.PassFactory
	gpu.Recorder
}

// Targets is the view of the render target set the graph draws into.
type Targets interface {
	Generation() uint64
	Extent() gpu.Extent
	ResolveView() gpu.ImageView
	GeometryFramebuffer() gpu.Framebuffer
	PostFramebuffer(imageIndex uint32) (gpu.Framebuffer, error)
	AddRebinder(fn targets.Rebinder)
}

type Formats struct {
	Color     gpu.Format
	Depth     gpu.Format
	Swapchain gpu.Format
	Samples   uint32
}

type Config struct {
	Formats
	FramesInFlight int
	MaxLights      int
	ClearColor     [4]float32
}

// Shaders holds SPIR-V code for both pipelines.
type Shaders struct {
	GeometryVert []byte
	GeometryFrag []byte
	PostVert     []byte
	PostFrag     []byte
}

// Model is the scene geometry drawn by the geometry pass.
type Model struct {
	Name     string
	Vertices []metadata.Vertex3D
	Indices  []uint32
	Textures []TextureSource
}

type frameUniforms struct {
	transform gpu.OwnedBuffer
	lights    gpu.OwnedBuffer
}

type Graph struct {
	device Device
	config Config

	passes   []*Pass
	pool     gpu.OwnedDescriptorPool
	uniforms []*frameUniforms
	mesh     *Mesh
	quad     *Mesh
	textures []*Texture
	sampler  gpu.OwnedSampler
	material *descriptors.MaterialBinding

	targets         Targets
	boundGeneration uint64
	clearColor      [4]float32
	lightsClipped   bool

	transformScratch []byte
	lightScratch     []byte
}

// New creates every extent-independent object of the graph. On failure
// everything created so far is released.
func New(device Device, config Config, shaders Shaders, model Model) (g *Graph, err error) {
	if config.FramesInFlight < 1 {
		return nil, core.NewInvariantError("render graph", errors.Errorf("frames in flight must be at least 1, got %d", config.FramesInFlight))
	}
	if config.Samples == 0 {
		config.Samples = 1
	}
	if config.MaxLights < 0 {
		config.MaxLights = 0
	}

	g = &Graph{
		device:           device,
		config:           config,
		clearColor:       config.ClearColor,
		transformScratch: make([]byte, metadata.TransformBlockSize),
	}
	if config.MaxLights > 0 {
		g.lightScratch = make([]byte, metadata.LightBlockSize(config.MaxLights))
	}

	var scope gpu.Scope
	defer func() {
		if err != nil {
			scope.Rollback()
			g = nil
		}
	}()

	if err = g.createMaterial(&scope, model.Textures); err != nil {
		return nil, err
	}
	if err = g.createPasses(&scope, shaders); err != nil {
		return nil, err
	}
	if err = g.createDescriptors(&scope); err != nil {
		return nil, err
	}

	if g.mesh, err = uploadMesh(device, &scope, model.Name, model.Vertices, model.Indices); err != nil {
		return nil, err
	}
	quadVertices, quadIndices := metadata.FullscreenQuad()
	if g.quad, err = uploadMesh(device, &scope, "fullscreen-quad", quadVertices, quadIndices); err != nil {
		return nil, err
	}

	scope.Commit()
	core.LogInfo("render graph created for `%s`: %d textures, %d frames in flight, %dx MSAA", model.Name, len(g.textures), config.FramesInFlight, config.Formats.Samples)
	return g, nil
}

func (g *Graph) createMaterial(scope *gpu.Scope, sources []TextureSource) error {
	sampler, err := g.device.CreateSampler(gpu.SamplerInfo{Linear: true, Repeat: true})
	if err != nil {
		return core.NewCreationError("sampler", err)
	}
	g.sampler = gpu.Own(sampler, g.device.DestroySampler)
	scope.Add(g.sampler.Release)

	if len(sources) == 0 {
		sources = []TextureSource{PlaceholderTexture()}
	}
	g.material = descriptors.NewMaterialBinding(sampler)
	for _, src := range sources {
		t, err := uploadTexture(g.device, scope, src)
		if err != nil {
			return err
		}
		g.textures = append(g.textures, t)
		if err := g.material.AddTexture(descriptors.Texture{Channel: t.Channel, Name: t.Name, View: t.View.Handle()}); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) createPasses(scope *gpu.Scope, shaders Shaders) error {
	geometryLayout, err := descriptors.Build(descriptors.ModelShape{
		UsesTransform: true,
		Material:      g.material,
		LightCount:    g.config.MaxLights,
	})
	if err != nil {
		return err
	}
	postLayout, err := descriptors.Build(descriptors.ModelShape{
		Material: descriptors.NewMaterialBinding(g.sampler.Handle(), descriptors.Texture{Channel: descriptors.ChannelCustom, Name: "scene-color"}),
	})
	if err != nil {
		return err
	}

	specs := []struct {
		kind     PassKind
		info     gpu.RenderPassInfo
		layout   *descriptors.Layout
		vert     []byte
		frag     []byte
		samples  uint32
		depth    bool
		cullBack bool
	}{
		{PassGeometry, geometryPassInfo(g.config.Color, g.config.Depth, g.config.Samples), geometryLayout, shaders.GeometryVert, shaders.GeometryFrag, g.config.Samples, true, true},
		{PassPostProcess, postPassInfo(g.config.Swapchain), postLayout, shaders.PostVert, shaders.PostFrag, 1, false, false},
	}

	for _, spec := range specs {
		p := &Pass{Kind: spec.kind, Layout: spec.layout}

		rp, err := g.device.CreateRenderPass(spec.info)
		if err != nil {
			return core.NewCreationError(spec.kind.String()+" render pass", err)
		}
		p.RenderPass = gpu.Own(rp, g.device.DestroyRenderPass)
		scope.Add(p.RenderPass.Release)

		setLayout, err := g.device.CreateDescriptorSetLayout(spec.layout.Bindings)
		if err != nil {
			return core.NewCreationError(spec.kind.String()+" descriptor set layout", err)
		}
		p.SetLayout = gpu.Own(setLayout, g.device.DestroyDescriptorSetLayout)
		scope.Add(p.SetLayout.Release)

		pipeline, pipelineLayout, err := g.device.CreatePipeline(gpu.PipelineInfo{
			Name:           core.DebugName(spec.kind.String() + "-pipeline"),
			RenderPass:     rp,
			SetLayouts:     []gpu.DescriptorSetLayout{setLayout},
			VertexShader:   spec.vert,
			FragmentShader: spec.frag,
			VertexStride:   metadata.Vertex3DStride,
			Attributes:     metadata.Vertex3DAttributes,
			Samples:        spec.samples,
			DepthTest:      spec.depth,
			CullBackFaces:  spec.cullBack,
		})
		if err != nil {
			return core.NewCreationError(spec.kind.String()+" pipeline", err)
		}
		p.Pipeline = gpu.OwnPipeline(pipeline, pipelineLayout, g.device.DestroyPipeline)
		scope.Add(p.Pipeline.Release)

		g.passes = append(g.passes, p)
	}
	return nil
}

func (g *Graph) createDescriptors(scope *gpu.Scope) error {
	frames := uint32(g.config.FramesInFlight)
	var sizes []gpu.DescriptorPoolSize
	for _, p := range g.passes {
		sizes = append(sizes, p.Layout.PoolSizes(frames)...)
	}
	pool, err := g.device.CreateDescriptorPool(frames*uint32(len(g.passes)), sizes)
	if err != nil {
		return core.NewCreationError("descriptor pool", err)
	}
	g.pool = gpu.Own(pool, g.device.DestroyDescriptorPool)
	scope.Add(g.pool.Release)

	for _, p := range g.passes {
		for i := 0; i < g.config.FramesInFlight; i++ {
			set, err := g.device.AllocateDescriptorSet(pool, p.SetLayout.Handle())
			if err != nil {
				return core.NewCreationError(p.Kind.String()+" descriptor set", err)
			}
			p.Sets = append(p.Sets, set)
		}
	}

	for i := 0; i < g.config.FramesInFlight; i++ {
		u := &frameUniforms{}
		b, err := g.device.CreateBuffer(gpu.BufferInfo{
			Name:  core.DebugName("transform-ubo"),
			Size:  metadata.TransformBlockSize,
			Usage: gpu.BufferUsageUniform,
		})
		if err != nil {
			return core.NewCreationError("transform uniform buffer", err)
		}
		u.transform = gpu.Own(b, g.device.DestroyBuffer)
		scope.Add(u.transform.Release)

		if g.config.MaxLights > 0 {
			b, err := g.device.CreateBuffer(gpu.BufferInfo{
				Name:  core.DebugName("light-ubo"),
				Size:  uint64(metadata.LightBlockSize(g.config.MaxLights)),
				Usage: gpu.BufferUsageUniform,
			})
			if err != nil {
				return core.NewCreationError("light uniform buffer", err)
			}
			u.lights = gpu.Own(b, g.device.DestroyBuffer)
			scope.Add(u.lights.Release)
		}
		g.uniforms = append(g.uniforms, u)
	}
	return nil
}

// Passes returns the render passes the target set builds framebuffers for.
func (g *Graph) Passes() targets.Passes {
	return targets.Passes{
		Geometry:    g.passes[PassGeometry].RenderPass.Handle(),
		PostProcess: g.passes[PassPostProcess].RenderPass.Handle(),
	}
}

func (g *Graph) Pass(kind PassKind) *Pass {
	if int(kind) >= len(g.passes) {
		return nil
	}
	return g.passes[kind]
}

// Bind attaches the graph to its render targets, writes every descriptor
// set and registers for rebinding after each recreation.
func (g *Graph) Bind(t Targets) error {
	if g.targets != nil {
		return core.NewInvariantError("graph bind", errors.New("render graph already bound"))
	}
	geometry := g.passes[PassGeometry]
	var writes []gpu.DescriptorWrite
	for slot, set := range geometry.Sets {
		u := g.uniforms[slot]
		w, err := geometry.Layout.Writes(set, descriptors.Values{
			Transform: gpu.BufferRange{Buffer: u.transform.Handle(), Size: metadata.TransformBlockSize},
			Lights:    gpu.BufferRange{Buffer: u.lights.Handle(), Size: uint64(metadata.LightBlockSize(g.config.MaxLights))},
			Sampler:   g.material.Sampler(),
			Images:    g.material.Views(),
		})
		if err != nil {
			return err
		}
		writes = append(writes, w...)
	}
	if err := g.device.UpdateDescriptorSets(writes); err != nil {
		return core.NewInvariantError("geometry descriptor update", err)
	}

	g.targets = t
	if err := g.rebind(t.Generation()); err != nil {
		return err
	}
	t.AddRebinder(g.rebind)
	return nil
}

// rebind points the post-process sets at the current resolve target. It
// only runs while the device is idle.
func (g *Graph) rebind(generation uint64) error {
	post := g.passes[PassPostProcess]
	view := g.targets.ResolveView()
	var writes []gpu.DescriptorWrite
	for _, set := range post.Sets {
		w, err := post.Layout.Writes(set, descriptors.Values{
			Sampler: g.sampler.Handle(),
			Images:  []gpu.ImageView{view},
		})
		if err != nil {
			return err
		}
		writes = append(writes, w...)
	}
	if err := g.device.UpdateDescriptorSets(writes); err != nil {
		return core.NewInvariantError("post-process descriptor update", err)
	}
	g.boundGeneration = generation
	core.LogDebug("post-process bindings updated for generation %d", generation)
	return nil
}

func (g *Graph) BoundGeneration() uint64 {
	return g.boundGeneration
}

func (g *Graph) SetClearColor(c [4]float32) {
	g.clearColor = c
}

func (g *Graph) ClearColor() [4]float32 {
	return g.clearColor
}

// UpdateUniforms copies the scene into the uniform buffers of slot. The
// slot's fence must have signaled.
func (g *Graph) UpdateUniforms(slot int, scene *metadata.SceneState) error {
	if slot < 0 || slot >= len(g.uniforms) {
		return core.NewInvariantError("update uniforms", errors.Errorf("slot %d out of %d", slot, len(g.uniforms)))
	}
	u := g.uniforms[slot]
	if err := metadata.EncodeTransformBlock(g.transformScratch, scene); err != nil {
		return core.NewInvariantError("update uniforms", err)
	}
	if err := g.device.WriteBuffer(u.transform.Handle(), 0, g.transformScratch); err != nil {
		return core.NewDeviceError("write transform uniforms", err)
	}

	if g.config.MaxLights == 0 {
		return nil
	}
	lights := scene.Lights
	if len(lights) > g.config.MaxLights {
		if !g.lightsClipped {
			core.LogWarn("scene has %d lights but the layout holds %d, extra lights are ignored", len(lights), g.config.MaxLights)
			g.lightsClipped = true
		}
		lights = lights[:g.config.MaxLights]
	} else {
		g.lightsClipped = false
	}
	if err := metadata.EncodeLightBlock(g.lightScratch, lights, g.config.MaxLights); err != nil {
		return core.NewInvariantError("update uniforms", err)
	}
	if err := g.device.WriteBuffer(u.lights.Handle(), 0, g.lightScratch); err != nil {
		return core.NewDeviceError("write light uniforms", err)
	}
	return nil
}

type drawParams struct {
	pipeline gpu.OwnedPipeline
	set      gpu.DescriptorSet
	mesh     *Mesh
	extent   gpu.Extent
}

// Record encodes both passes of one frame into cb, which must be recording.
// The post-process pass writes swapchain image imageIndex.
func (g *Graph) Record(cb gpu.CommandBuffer, slot int, imageIndex uint32) error {
	if g.targets == nil {
		return core.NewInvariantError("record", errors.New("render graph is not bound to render targets"))
	}
	if gen := g.targets.Generation(); g.boundGeneration != gen {
		return core.NewInvariantError("record", errors.Wrapf(core.ErrStaleBinding, "bound to generation %d, targets are at %d", g.boundGeneration, gen))
	}
	if slot < 0 || slot >= g.config.FramesInFlight {
		return core.NewInvariantError("record", errors.Errorf("slot %d out of %d", slot, g.config.FramesInFlight))
	}
	postFramebuffer, err := g.targets.PostFramebuffer(imageIndex)
	if err != nil {
		return err
	}
	extent := g.targets.Extent()

	for _, p := range g.passes {
		begin := gpu.RenderPassBegin{RenderPass: p.RenderPass.Handle(), Extent: extent}
		d := drawParams{pipeline: p.Pipeline, set: p.Sets[slot], extent: extent}

		switch p.Kind {
		case PassGeometry:
			begin.Framebuffer = g.targets.GeometryFramebuffer()
			begin.ClearValues = []gpu.ClearValue{{Color: g.clearColor}, {Depth: 1}}
			if g.config.Samples > 1 {
				begin.ClearValues = append(begin.ClearValues, gpu.ClearValue{})
			}
			d.mesh = g.mesh
		case PassPostProcess:
			begin.Framebuffer = postFramebuffer
			begin.ClearValues = []gpu.ClearValue{{Color: [4]float32{0, 0, 0, 1}}}
			d.mesh = g.quad
		default:
			return core.NewInvariantError("record", errors.Errorf("unknown pass kind %d", p.Kind))
		}

		g.device.CmdBeginRenderPass(cb, begin)
		g.recordDraw(cb, d)
		g.device.CmdEndRenderPass(cb)
	}
	return nil
}

func (g *Graph) recordDraw(cb gpu.CommandBuffer, d drawParams) {
	g.device.CmdBindPipeline(cb, d.pipeline.Handle())
	g.device.CmdSetViewport(cb, d.extent)
	g.device.CmdBindDescriptorSet(cb, d.pipeline.Layout(), d.set)
	g.device.CmdBindVertexBuffer(cb, d.mesh.Vertices.Handle())
	g.device.CmdBindIndexBuffer(cb, d.mesh.Indices.Handle())
	g.device.CmdDrawIndexed(cb, d.mesh.IndexCount)
}

// Destroy releases everything the graph owns. The device must be idle.
func (g *Graph) Destroy() {
	if g.quad != nil {
		g.quad.release()
	}
	if g.mesh != nil {
		g.mesh.release()
	}
	for _, u := range g.uniforms {
		u.lights.Release()
		u.transform.Release()
	}
	g.uniforms = nil
	g.pool.Release()
	for i := len(g.passes) - 1; i >= 0; i-- {
		g.passes[i].release()
	}
	for _, t := range g.textures {
		t.release()
	}
	g.textures = nil
	g.sampler.Release()
	g.targets = nil
}
