// Package descriptors computes descriptor set layouts from a model's
// composition and produces the writes that fill them.
package descriptors

import (
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// Section is one optional part of a layout. Sections always appear in
// declaration order.
type Section uint8

const (
	SectionTransform Section = iota
	SectionSampler
	SectionTextures
	SectionLights
	sectionCount
)

// ModelShape is what the builder needs to know about a model.
type ModelShape struct {
	UsesTransform bool
	Material      *MaterialBinding
	LightCount    int
}

// Layout is a fixed binding table. It never changes after Build.
type Layout struct {
	Bindings     []gpu.DescriptorBinding
	binding      [sectionCount]int
	textureCount int
	lightCount   int
}

// Build computes the layout for shape and freezes its material.
func Build(shape ModelShape) (*Layout, error) {
	if shape.LightCount < 0 {
		err := core.NewInvariantError("descriptor layout", errors.Errorf("negative light count %d", shape.LightCount))
		core.LogError(err.Error())
		return nil, err
	}

	l := &Layout{lightCount: shape.LightCount}
	for i := range l.binding {
		l.binding[i] = -1
	}

	add := func(s Section, t gpu.DescriptorType, count uint32, stages gpu.ShaderStage) {
		b := uint32(len(l.Bindings))
		l.binding[s] = int(b)
		l.Bindings = append(l.Bindings, gpu.DescriptorBinding{Binding: b, Type: t, Count: count, Stages: stages})
	}

	if shape.UsesTransform {
		add(SectionTransform, gpu.DescriptorUniformBuffer, 1, gpu.ShaderStageVertex|gpu.ShaderStageFragment)
	}
	if shape.Material != nil {
		shape.Material.freeze()
		if n := shape.Material.TextureCount(); n > 0 {
			l.textureCount = n
			add(SectionSampler, gpu.DescriptorSampler, 1, gpu.ShaderStageFragment)
			add(SectionTextures, gpu.DescriptorSampledImage, uint32(n), gpu.ShaderStageFragment)
		}
	}
	if shape.LightCount > 0 {
		add(SectionLights, gpu.DescriptorUniformBuffer, 1, gpu.ShaderStageFragment)
	}
	return l, nil
}

// Binding returns the binding number of a section, and false when the
// section is absent.
func (l *Layout) Binding(s Section) (uint32, bool) {
	if s >= sectionCount || l.binding[s] < 0 {
		return 0, false
	}
	return uint32(l.binding[s]), true
}

func (l *Layout) Has(s Section) bool {
	_, ok := l.Binding(s)
	return ok
}

func (l *Layout) TextureCount() int {
	return l.textureCount
}

func (l *Layout) LightCount() int {
	return l.lightCount
}

// TextureSlotCount is the number of descriptors in the texture section: the
// sampler plus one image per populated texture.
func (l *Layout) TextureSlotCount() int {
	if l.textureCount == 0 {
		return 0
	}
	return 1 + l.textureCount
}

// PoolSizes returns the descriptor counts needed to allocate sets copies of
// this layout.
func (l *Layout) PoolSizes(sets uint32) []gpu.DescriptorPoolSize {
	counts := map[gpu.DescriptorType]uint32{}
	order := []gpu.DescriptorType{}
	for _, b := range l.Bindings {
		if _, ok := counts[b.Type]; !ok {
			order = append(order, b.Type)
		}
		counts[b.Type] += b.Count * sets
	}
	sizes := make([]gpu.DescriptorPoolSize, 0, len(order))
	for _, t := range order {
		sizes = append(sizes, gpu.DescriptorPoolSize{Type: t, Count: counts[t]})
	}
	return sizes
}

// Values are the resources bound into one set.
type Values struct {
	Transform gpu.BufferRange
	Lights    gpu.BufferRange
	Sampler   gpu.Sampler
	Images    []gpu.ImageView
}

// Writes produces the descriptor writes filling set with v. Values that do
// not fit the layout are rejected.
func (l *Layout) Writes(set gpu.DescriptorSet, v Values) ([]gpu.DescriptorWrite, error) {
	if len(v.Images) != l.textureCount {
		return nil, l.mismatch("layout has %d textures, values carry %d", l.textureCount, len(v.Images))
	}

	var writes []gpu.DescriptorWrite
	if b, ok := l.Binding(SectionTransform); ok {
		if v.Transform.Buffer == 0 {
			return nil, l.mismatch("transform buffer missing")
		}
		writes = append(writes, gpu.DescriptorWrite{Set: set, Binding: b, Type: gpu.DescriptorUniformBuffer, Buffer: v.Transform})
	}
	if b, ok := l.Binding(SectionSampler); ok {
		if v.Sampler == 0 {
			return nil, l.mismatch("sampler missing")
		}
		writes = append(writes, gpu.DescriptorWrite{Set: set, Binding: b, Type: gpu.DescriptorSampler, Sampler: v.Sampler})
	}
	if b, ok := l.Binding(SectionTextures); ok {
		images := make([]gpu.ImageView, len(v.Images))
		copy(images, v.Images)
		writes = append(writes, gpu.DescriptorWrite{Set: set, Binding: b, Type: gpu.DescriptorSampledImage, Images: images})
	}
	if b, ok := l.Binding(SectionLights); ok {
		if v.Lights.Buffer == 0 {
			return nil, l.mismatch("light buffer missing")
		}
		writes = append(writes, gpu.DescriptorWrite{Set: set, Binding: b, Type: gpu.DescriptorUniformBuffer, Buffer: v.Lights})
	}
	return writes, nil
}

func (l *Layout) mismatch(format string, args ...interface{}) error {
	err := core.NewInvariantError("descriptor writes", errors.Wrapf(core.ErrLayoutMismatch, format, args...))
	core.LogError(err.Error())
	return err
}
