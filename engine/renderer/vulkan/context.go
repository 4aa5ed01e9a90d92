package vulkan

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// registry maps the opaque gpu handles onto Vulkan objects. Handles are
// never reused, so a stale handle is reported instead of aliasing.
type registry[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[uint64]T)}
}

func (r *registry[T]) add(v T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.items[r.next] = v
	return r.next
}

func (r *registry[T]) get(h uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[h]
	return v, ok
}

func (r *registry[T]) remove(h uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[h]
	delete(r.items, h)
	return v, ok
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	// host-visible buffers stay mapped for their whole life
	mapped unsafe.Pointer
}

type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	format gpu.Format
	extent gpu.Extent
	// swapchain images are owned by their swapchain
	presentable bool
}

type pipeline struct {
	handle vk.Pipeline
	layout vk.PipelineLayout
}

type swapchain struct {
	handle vk.Swapchain
	images []uint64
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

// Device implements gpu.Device on one Vulkan logical device with a single
// graphics queue and a single present queue.
type Device struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	GraphicsQueue      vk.Queue
	PresentQueue       vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	depthFormat gpu.Format
	maxSamples  uint32

	locks *VulkanLockPool

	buffers         *registry[*buffer]
	images          *registry[*image]
	views           *registry[vk.ImageView]
	samplers        *registry[vk.Sampler]
	renderPasses    *registry[vk.RenderPass]
	framebuffers    *registry[vk.Framebuffer]
	setLayouts      *registry[vk.DescriptorSetLayout]
	pipelines       *registry[*pipeline]
	pipelineLayouts *registry[vk.PipelineLayout]
	pools           *registry[*descriptorPool]
	sets            *registry[vk.DescriptorSet]
	semaphores      *registry[vk.Semaphore]
	fences          *registry[vk.Fence]
	commandBuffers  *registry[vk.CommandBuffer]
	swapchains      *registry[*swapchain]
}

var _ gpu.Device = (*Device)(nil)

func newDevice() *Device {
	return &Device{
		locks:           NewVulkanLockPool(),
		buffers:         newRegistry[*buffer](),
		images:          newRegistry[*image](),
		views:           newRegistry[vk.ImageView](),
		samplers:        newRegistry[vk.Sampler](),
		renderPasses:    newRegistry[vk.RenderPass](),
		framebuffers:    newRegistry[vk.Framebuffer](),
		setLayouts:      newRegistry[vk.DescriptorSetLayout](),
		pipelines:       newRegistry[*pipeline](),
		pipelineLayouts: newRegistry[vk.PipelineLayout](),
		pools:           newRegistry[*descriptorPool](),
		sets:            newRegistry[vk.DescriptorSet](),
		semaphores:      newRegistry[vk.Semaphore](),
		fences:          newRegistry[vk.Fence](),
		commandBuffers:  newRegistry[vk.CommandBuffer](),
		swapchains:      newRegistry[*swapchain](),
	}
}

func (d *Device) DepthFormat() gpu.Format {
	return d.depthFormat
}

func (d *Device) MaxSamples() uint32 {
	return d.maxSamples
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has every bit of propertyFlags, or -1.
func (d *Device) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		d.Memory.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (d.Memory.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocate backs reqs with memory of the given properties.
func (d *Device) allocate(reqs vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	index := d.FindMemoryIndex(reqs.MemoryTypeBits, props)
	if index < 0 {
		return vk.NullDeviceMemory, newError("find memory type", vk.ErrorOutOfDeviceMemory)
	}
	var memory vk.DeviceMemory
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}
	if res := vk.AllocateMemory(d.LogicalDevice, &info, d.Allocator, &memory); res != vk.Success {
		return vk.NullDeviceMemory, newError("vkAllocateMemory", res)
	}
	return memory, nil
}

// liveObjects counts registered objects, swapchain images excluded.
func (d *Device) liveObjects() map[string]int {
	live := map[string]int{
		"buffer":                d.buffers.len(),
		"image view":            d.views.len(),
		"sampler":               d.samplers.len(),
		"render pass":           d.renderPasses.len(),
		"framebuffer":           d.framebuffers.len(),
		"descriptor set layout": d.setLayouts.len(),
		"pipeline":              d.pipelines.len(),
		"descriptor pool":       d.pools.len(),
		"semaphore":             d.semaphores.len(),
		"fence":                 d.fences.len(),
		"command buffer":        d.commandBuffers.len(),
		"swapchain":             d.swapchains.len(),
	}
	images := 0
	d.images.mu.Lock()
	for _, img := range d.images.items {
		if !img.presentable {
			images++
		}
	}
	d.images.mu.Unlock()
	live["image"] = images
	return live
}
