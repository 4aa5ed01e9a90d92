package gpu

// Opaque object handles. The zero value of each is the null handle.
type (
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	Framebuffer         uint64
	RenderPass          uint64
	Pipeline            uint64
	PipelineLayout      uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	Semaphore           uint64
	Fence               uint64
	CommandBuffer       uint64
	Swapchain           uint64
)
