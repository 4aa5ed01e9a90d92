package descriptors

import (
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

type TextureChannel uint8

const (
	ChannelAlbedo TextureChannel = iota
	ChannelSpecular
	ChannelNormal
	ChannelCustom
)

func (c TextureChannel) String() string {
	switch c {
	case ChannelAlbedo:
		return "albedo"
	case ChannelSpecular:
		return "specular"
	case ChannelNormal:
		return "normal"
	default:
		return "custom"
	}
}

type Texture struct {
	Channel TextureChannel
	Name    string
	View    gpu.ImageView
}

// MaterialBinding lists the populated texture channels of a model and the
// sampler they share. Building a layout freezes it: the texture count is then
// part of a pipeline layout and can no longer change.
type MaterialBinding struct {
	sampler  gpu.Sampler
	textures []Texture
	frozen   bool
}

func NewMaterialBinding(sampler gpu.Sampler, textures ...Texture) *MaterialBinding {
	m := &MaterialBinding{sampler: sampler}
	m.textures = append(m.textures, textures...)
	return m
}

func (m *MaterialBinding) AddTexture(t Texture) error {
	if m.frozen {
		err := core.NewInvariantError("material add texture", errors.Wrapf(core.ErrMaterialFrozen, "texture %q", t.Name))
		core.LogError(err.Error())
		return err
	}
	m.textures = append(m.textures, t)
	return nil
}

func (m *MaterialBinding) TextureCount() int {
	return len(m.textures)
}

// Textures returns the populated textures in binding order.
func (m *MaterialBinding) Textures() []Texture {
	out := make([]Texture, len(m.textures))
	copy(out, m.textures)
	return out
}

func (m *MaterialBinding) Sampler() gpu.Sampler {
	return m.sampler
}

func (m *MaterialBinding) Frozen() bool {
	return m.frozen
}

// Views returns the image views in binding order.
func (m *MaterialBinding) Views() []gpu.ImageView {
	views := make([]gpu.ImageView, len(m.textures))
	for i, t := range m.textures {
		views[i] = t.View
	}
	return views
}

func (m *MaterialBinding) freeze() {
	m.frozen = true
}
