package descriptors

import (
	"testing"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func albedoMaterial() *MaterialBinding {
	return NewMaterialBinding(gpu.Sampler(7), Texture{Channel: ChannelAlbedo, Name: "albedo", View: gpu.ImageView(11)})
}

func TestBuildAlbedoOnly(t *testing.T) {
	layout, err := Build(ModelShape{UsesTransform: true, Material: albedoMaterial(), LightCount: 1})
	require.NoError(t, err)

	require.Len(t, layout.Bindings, 4)
	assert.Equal(t, gpu.DescriptorBinding{Binding: 0, Type: gpu.DescriptorUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex | gpu.ShaderStageFragment}, layout.Bindings[0])
	assert.Equal(t, gpu.DescriptorSampler, layout.Bindings[1].Type)
	assert.Equal(t, uint32(1), layout.Bindings[1].Binding)
	assert.Equal(t, gpu.DescriptorSampledImage, layout.Bindings[2].Type)
	assert.Equal(t, uint32(1), layout.Bindings[2].Count)
	assert.Equal(t, gpu.DescriptorUniformBuffer, layout.Bindings[3].Type)
	assert.Equal(t, uint32(3), layout.Bindings[3].Binding)

	assert.Equal(t, 2, layout.TextureSlotCount())
	assert.Equal(t, 1, layout.TextureCount())
	assert.Equal(t, 1, layout.LightCount())
}

func TestBuildOrderingIsDense(t *testing.T) {
	tests := []struct {
		name  string
		shape ModelShape
		want  []gpu.DescriptorType
	}{
		{"empty", ModelShape{}, nil},
		{"transform only", ModelShape{UsesTransform: true}, []gpu.DescriptorType{gpu.DescriptorUniformBuffer}},
		{"textures only", ModelShape{Material: albedoMaterial()}, []gpu.DescriptorType{gpu.DescriptorSampler, gpu.DescriptorSampledImage}},
		{"lights only", ModelShape{LightCount: 4}, []gpu.DescriptorType{gpu.DescriptorUniformBuffer}},
		{"empty material", ModelShape{UsesTransform: true, Material: NewMaterialBinding(gpu.Sampler(1)), LightCount: 2}, []gpu.DescriptorType{gpu.DescriptorUniformBuffer, gpu.DescriptorUniformBuffer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := Build(tt.shape)
			require.NoError(t, err)
			require.Len(t, layout.Bindings, len(tt.want))
			for i, b := range layout.Bindings {
				assert.Equal(t, uint32(i), b.Binding)
				assert.Equal(t, tt.want[i], b.Type)
			}
		})
	}
}

func TestSectionLookup(t *testing.T) {
	layout, err := Build(ModelShape{Material: albedoMaterial(), LightCount: 1})
	require.NoError(t, err)

	_, ok := layout.Binding(SectionTransform)
	assert.False(t, ok)
	b, ok := layout.Binding(SectionTextures)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), b)
	b, ok = layout.Binding(SectionLights)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), b)
	assert.False(t, layout.Has(Section(42)))
}

func TestMultipleTexturesShareOneArray(t *testing.T) {
	m := albedoMaterial()
	require.NoError(t, m.AddTexture(Texture{Channel: ChannelSpecular, Name: "spec", View: 12}))
	require.NoError(t, m.AddTexture(Texture{Channel: ChannelNormal, Name: "normal", View: 13}))

	layout, err := Build(ModelShape{UsesTransform: true, Material: m})
	require.NoError(t, err)
	assert.Equal(t, 4, layout.TextureSlotCount())
	assert.Equal(t, uint32(3), layout.Bindings[2].Count)
}

func TestBuildFreezesMaterial(t *testing.T) {
	m := albedoMaterial()
	_, err := Build(ModelShape{Material: m})
	require.NoError(t, err)
	assert.True(t, m.Frozen())

	err = m.AddTexture(Texture{Channel: ChannelNormal, Name: "late", View: 99})
	require.ErrorIs(t, err, core.ErrMaterialFrozen)
	assert.True(t, core.IsInvariant(err))
	assert.Equal(t, 1, m.TextureCount())
}

func TestBuildRejectsNegativeLights(t *testing.T) {
	_, err := Build(ModelShape{LightCount: -1})
	assert.True(t, core.IsInvariant(err))
}

func TestPoolSizes(t *testing.T) {
	layout, err := Build(ModelShape{UsesTransform: true, Material: albedoMaterial(), LightCount: 1})
	require.NoError(t, err)

	sizes := layout.PoolSizes(2)
	assert.Equal(t, []gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorUniformBuffer, Count: 4},
		{Type: gpu.DescriptorSampler, Count: 2},
		{Type: gpu.DescriptorSampledImage, Count: 2},
	}, sizes)
}

func TestWrites(t *testing.T) {
	m := albedoMaterial()
	layout, err := Build(ModelShape{UsesTransform: true, Material: m, LightCount: 1})
	require.NoError(t, err)

	writes, err := layout.Writes(gpu.DescriptorSet(5), Values{
		Transform: gpu.BufferRange{Buffer: 1, Size: 208},
		Lights:    gpu.BufferRange{Buffer: 2, Size: 48},
		Sampler:   m.Sampler(),
		Images:    m.Views(),
	})
	require.NoError(t, err)
	require.Len(t, writes, 4)
	for i, w := range writes {
		assert.Equal(t, gpu.DescriptorSet(5), w.Set)
		assert.Equal(t, uint32(i), w.Binding)
	}
	assert.Equal(t, gpu.Buffer(1), writes[0].Buffer.Buffer)
	assert.Equal(t, gpu.Sampler(7), writes[1].Sampler)
	assert.Equal(t, []gpu.ImageView{11}, writes[2].Images)
	assert.Equal(t, gpu.Buffer(2), writes[3].Buffer.Buffer)
}

func TestWritesRejectMismatch(t *testing.T) {
	layout, err := Build(ModelShape{UsesTransform: true, Material: albedoMaterial()})
	require.NoError(t, err)

	tests := []struct {
		name   string
		values Values
	}{
		{"too many images", Values{Transform: gpu.BufferRange{Buffer: 1}, Sampler: 7, Images: []gpu.ImageView{1, 2}}},
		{"no images", Values{Transform: gpu.BufferRange{Buffer: 1}, Sampler: 7}},
		{"no transform", Values{Sampler: 7, Images: []gpu.ImageView{1}}},
		{"no sampler", Values{Transform: gpu.BufferRange{Buffer: 1}, Images: []gpu.ImageView{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := layout.Writes(1, tt.values)
			assert.ErrorIs(t, err, core.ErrLayoutMismatch)
		})
	}
}

func TestWritesLightBufferRequired(t *testing.T) {
	layout, err := Build(ModelShape{LightCount: 2})
	require.NoError(t, err)
	_, err = layout.Writes(1, Values{})
	assert.ErrorIs(t, err, core.ErrLayoutMismatch)
}
