package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// hostVisible is used for every buffer. The renderer writes vertex, index
// and uniform data directly without a staging copy.
var hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

func (d *Device) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, error) {
	b, err := d.createBuffer(info.Size, vkBufferUsage(info.Usage))
	if err != nil {
		core.LogError("buffer %s: %s", info.Name, err)
		return 0, err
	}
	return gpu.Buffer(d.buffers.add(b)), nil
}

func (d *Device) createBuffer(size uint64, usage vk.BufferUsageFlags) (*buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer size must be non-zero")
	}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{size: size}
	var handle vk.Buffer
	if res := vk.CreateBuffer(d.LogicalDevice, &createInfo, d.Allocator, &handle); res != vk.Success {
		return nil, newError("vkCreateBuffer", res)
	}
	b.handle = handle

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, b.handle, &reqs)
	reqs.Deref()

	memory, err := d.allocate(reqs, hostVisible)
	if err != nil {
		vk.DestroyBuffer(d.LogicalDevice, b.handle, d.Allocator)
		return nil, err
	}
	b.memory = memory
	if res := vk.BindBufferMemory(d.LogicalDevice, b.handle, b.memory, 0); res != vk.Success {
		d.freeBuffer(b)
		return nil, newError("vkBindBufferMemory", res)
	}

	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.LogicalDevice, b.memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		d.freeBuffer(b)
		return nil, newError("vkMapMemory", res)
	}
	b.mapped = ptr
	return b, nil
}

func (d *Device) freeBuffer(b *buffer) {
	if b.mapped != nil {
		vk.UnmapMemory(d.LogicalDevice, b.memory)
		b.mapped = nil
	}
	if b.handle != nil {
		vk.DestroyBuffer(d.LogicalDevice, b.handle, d.Allocator)
		b.handle = nil
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.LogicalDevice, b.memory, d.Allocator)
		b.memory = vk.NullDeviceMemory
	}
}

func (d *Device) DestroyBuffer(h gpu.Buffer) {
	b, ok := d.buffers.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown buffer %d", h)
		return
	}
	d.freeBuffer(b)
}

func (d *Device) WriteBuffer(h gpu.Buffer, offset uint64, data []byte) error {
	b, ok := d.buffers.get(uint64(h))
	if !ok {
		return fmt.Errorf("write to unknown buffer %d", h)
	}
	return b.write(offset, data)
}

func (b *buffer) write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(b.mapped, offset)), len(data))
	copy(dst, data)
	return nil
}
