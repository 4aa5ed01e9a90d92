package gpu

import "time"

type SurfaceCapabilities struct {
	CurrentExtent Extent
	MinExtent     Extent
	MaxExtent     Extent
	MinImageCount uint32
	// 0 means no upper limit.
	MaxImageCount uint32
}

type SwapchainInfo struct {
	Extent      Extent
	ImageCount  uint32
	Format      Format
	PresentMode PresentMode
	// Old is retired by the new swapchain; the caller still destroys it.
	Old Swapchain
}

// SwapchainImages is the result of creating a swapchain. The images belong
// to the swapchain and are never destroyed individually.
type SwapchainImages struct {
	Handle Swapchain
	Format Format
	Extent Extent
	Images []Image
}

type ImageInfo struct {
	Name    string
	Extent  Extent
	Format  Format
	Samples uint32
	Usage   ImageUsage
}

type BufferInfo struct {
	Name  string
	Size  uint64
	Usage BufferUsage
}

type SamplerInfo struct {
	Linear bool
	Repeat bool
}

type AttachmentDescription struct {
	Format        Format
	Samples       uint32
	LoadOp        LoadOp
	StoreOp       StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

type AttachmentReference struct {
	Attachment uint32
	Layout     ImageLayout
}

type SubpassDescription struct {
	Color   []AttachmentReference
	Resolve []AttachmentReference
	Depth   *AttachmentReference
}

type SubpassDependency struct {
	Src       uint32
	Dst       uint32
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

// RenderPassInfo is the static, extent-independent description of a pass.
type RenderPassInfo struct {
	Name         string
	Attachments  []AttachmentDescription
	Subpass      SubpassDescription
	Dependencies []SubpassDependency
}

type FramebufferInfo struct {
	Name        string
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type BufferRange struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}

// DescriptorWrite updates one binding of a set. Exactly one of Buffer,
// Sampler or Images is used, according to Type.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  BufferRange
	Sampler Sampler
	Images  []ImageView
}

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

type PipelineInfo struct {
	Name           string
	RenderPass     RenderPass
	SetLayouts     []DescriptorSetLayout
	VertexShader   []byte
	FragmentShader []byte
	VertexStride   uint32
	Attributes     []VertexAttribute
	Samples        uint32
	DepthTest      bool
	CullBackFaces  bool
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent
	ClearValues []ClearValue
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	WaitStage     PipelineStage
	Signal        Semaphore
	Fence         Fence
}

type PresentInfo struct {
	Swapchain  Swapchain
	ImageIndex uint32
	Wait       Semaphore
}

// ResourceAllocator creates memory-backed objects.
type ResourceAllocator interface {
	CreateBuffer(info BufferInfo) (Buffer, error)
	DestroyBuffer(b Buffer)
	// WriteBuffer copies data into host-visible buffer memory.
	WriteBuffer(b Buffer, offset uint64, data []byte) error
	CreateImage(info ImageInfo) (Image, error)
	DestroyImage(img Image)
	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView)
	// UploadImage fills a sampled image with tightly packed RGBA8 pixels and
	// leaves it in the shader-read layout.
	UploadImage(img Image, extent Extent, pixels []byte) error
	CreateSampler(info SamplerInfo) (Sampler, error)
	DestroySampler(s Sampler)
}

// PassFactory creates pass, pipeline and descriptor objects.
type PassFactory interface {
	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreatePipeline(info PipelineInfo) (Pipeline, PipelineLayout, error)
	DestroyPipeline(p Pipeline, l PipelineLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	// UpdateDescriptorSets applies all writes or none of them.
	UpdateDescriptorSets(writes []DescriptorWrite) error
}

// Presenter owns the relationship with the window surface.
type Presenter interface {
	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormat() (Format, error)
	CreateSwapchain(info SwapchainInfo) (SwapchainImages, error)
	DestroySwapchain(sc Swapchain)
	AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, Result)
	Present(info PresentInfo) Result
}

type Sync interface {
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	WaitForFence(f Fence, timeout time.Duration) Result
	ResetFence(f Fence) error
}

// Recorder allocates command buffers and encodes commands into them.
type Recorder interface {
	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cb CommandBuffer)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	// CmdSetViewport sets both the dynamic viewport and scissor to extent.
	CmdSetViewport(cb CommandBuffer, extent Extent)
	CmdBindVertexBuffer(cb CommandBuffer, b Buffer)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer)
	CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet)
	CmdDrawIndexed(cb CommandBuffer, indexCount uint32)
}

type Queue interface {
	Submit(info SubmitInfo) Result
	WaitIdle() error
}

// Device is the full GPU context. Components depend on the narrower
// interfaces they use.
type Device interface {
	ResourceAllocator
	PassFactory
	Presenter
	Sync
	Recorder
	Queue
	// DepthFormat is the best supported depth attachment format.
	DepthFormat() Format
	// MaxSamples is the highest color+depth sample count supported.
	MaxSamples() uint32
}
