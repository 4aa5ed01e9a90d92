package gpu

// Owned pairs a handle with the call that destroys it. Release runs the
// destroy call at most once, so an Owned can be released on every exit path.
type Owned[H comparable] struct {
	handle  H
	destroy func(H)
}

func Own[H comparable](h H, destroy func(H)) Owned[H] {
	return Owned[H]{handle: h, destroy: destroy}
}

func (o Owned[H]) Handle() H {
	return o.handle
}

// Valid reports whether the handle is set and not yet released.
func (o Owned[H]) Valid() bool {
	var zero H
	return o.handle != zero
}

func (o *Owned[H]) Release() {
	var zero H
	if o.handle == zero {
		return
	}
	if o.destroy != nil {
		o.destroy(o.handle)
	}
	o.handle = zero
}

type (
	OwnedBuffer              = Owned[Buffer]
	OwnedImage               = Owned[Image]
	OwnedImageView           = Owned[ImageView]
	OwnedSampler             = Owned[Sampler]
	OwnedFramebuffer         = Owned[Framebuffer]
	OwnedRenderPass          = Owned[RenderPass]
	OwnedDescriptorSetLayout = Owned[DescriptorSetLayout]
	OwnedDescriptorPool      = Owned[DescriptorPool]
	OwnedSemaphore           = Owned[Semaphore]
	OwnedFence               = Owned[Fence]
	OwnedCommandBuffer       = Owned[CommandBuffer]
	OwnedSwapchain           = Owned[Swapchain]
)

// OwnedPipeline releases a pipeline and its layout together.
type OwnedPipeline struct {
	pipeline Pipeline
	layout   PipelineLayout
	destroy  func(Pipeline, PipelineLayout)
}

func OwnPipeline(p Pipeline, l PipelineLayout, destroy func(Pipeline, PipelineLayout)) OwnedPipeline {
	return OwnedPipeline{pipeline: p, layout: l, destroy: destroy}
}

func (o OwnedPipeline) Handle() Pipeline       { return o.pipeline }
func (o OwnedPipeline) Layout() PipelineLayout { return o.layout }

func (o *OwnedPipeline) Release() {
	if o.pipeline == 0 && o.layout == 0 {
		return
	}
	if o.destroy != nil {
		o.destroy(o.pipeline, o.layout)
	}
	o.pipeline, o.layout = 0, 0
}

// Scope collects releases while a group of objects is being built. On
// failure Rollback releases everything in reverse creation order; on success
// Commit forgets them and the owners keep their handles.
type Scope struct {
	releases []func()
}

func (s *Scope) Add(release func()) {
	s.releases = append(s.releases, release)
}

func (s *Scope) Rollback() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

func (s *Scope) Commit() {
	s.releases = nil
}
