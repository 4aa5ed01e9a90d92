package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vkShaderStages(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, d.Allocator, &layout); res != vk.Success {
		return 0, newError("vkCreateDescriptorSetLayout", res)
	}
	return gpu.DescriptorSetLayout(d.setLayouts.add(layout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	layout, ok := d.setLayouts.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown descriptor set layout %d", h)
		return
	}
	vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout, d.Allocator)
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       maxSets,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, d.Allocator, &pool); res != vk.Success {
		return 0, newError("vkCreateDescriptorPool", res)
	}
	return gpu.DescriptorPool(d.pools.add(&descriptorPool{handle: pool})), nil
}

// DestroyDescriptorPool frees the pool and every set allocated from it.
func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	pool, ok := d.pools.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown descriptor pool %d", h)
		return
	}
	d.locks.SafeCall(DescriptorManagement, func() error {
		for _, s := range pool.sets {
			d.sets.remove(s)
		}
		vk.DestroyDescriptorPool(d.LogicalDevice, pool.handle, d.Allocator)
		return nil
	})
}

func (d *Device) AllocateDescriptorSet(h gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	pool, ok := d.pools.get(uint64(h))
	if !ok {
		return 0, fmt.Errorf("allocate from unknown descriptor pool %d", h)
	}
	layout, ok := d.setLayouts.get(uint64(l))
	if !ok {
		return 0, fmt.Errorf("allocate with unknown descriptor set layout %d", l)
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}

	var set gpu.DescriptorSet
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		var s vk.DescriptorSet
		if res := vk.AllocateDescriptorSets(d.LogicalDevice, &allocInfo, &s); res != vk.Success {
			return newError("vkAllocateDescriptorSets", res)
		}
		handle := d.sets.add(s)
		pool.sets = append(pool.sets, handle)
		set = gpu.DescriptorSet(handle)
		return nil
	})
	return set, err
}

// UpdateDescriptorSets applies writes in one vkUpdateDescriptorSets call.
// Nothing is written when any write names an unknown object.
func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) error {
	out := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := d.sets.get(uint64(w.Set))
		if !ok {
			return errors.Wrapf(core.ErrUnknownHandle, "descriptor set %d", w.Set)
		}
		write := vk.WriteDescriptorSet{
			SType:          vk.StructureTypeWriteDescriptorSet,
			DstSet:         set,
			DstBinding:     w.Binding,
			DescriptorType: vkDescriptorType(w.Type),
		}
		switch w.Type {
		case gpu.DescriptorUniformBuffer:
			b, ok := d.buffers.get(uint64(w.Buffer.Buffer))
			if !ok {
				return errors.Wrapf(core.ErrUnknownHandle, "set %d binding %d: buffer %d", w.Set, w.Binding, w.Buffer.Buffer)
			}
			write.DescriptorCount = 1
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.handle,
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  vk.DeviceSize(w.Buffer.Size),
			}}
		case gpu.DescriptorSampler:
			s, ok := d.samplers.get(uint64(w.Sampler))
			if !ok {
				return errors.Wrapf(core.ErrUnknownHandle, "set %d binding %d: sampler %d", w.Set, w.Binding, w.Sampler)
			}
			write.DescriptorCount = 1
			write.PImageInfo = []vk.DescriptorImageInfo{{Sampler: s}}
		case gpu.DescriptorSampledImage:
			infos := make([]vk.DescriptorImageInfo, 0, len(w.Images))
			for _, v := range w.Images {
				view, ok := d.views.get(uint64(v))
				if !ok {
					return errors.Wrapf(core.ErrUnknownHandle, "set %d binding %d: image view %d", w.Set, w.Binding, v)
				}
				infos = append(infos, vk.DescriptorImageInfo{
					ImageView:   view,
					ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				})
			}
			write.DescriptorCount = uint32(len(infos))
			write.PImageInfo = infos
		}
		out = append(out, write)
	}
	if len(out) == 0 {
		return nil
	}
	return d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(out)), out, 0, nil)
		return nil
	})
}
