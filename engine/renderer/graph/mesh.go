package graph

import (
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/descriptors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

// Mesh is an indexed vertex buffer pair.
type Mesh struct {
	Vertices   gpu.OwnedBuffer
	Indices    gpu.OwnedBuffer
	IndexCount uint32
}

func uploadMesh(dev gpu.ResourceAllocator, scope *gpu.Scope, name string, vertices []metadata.Vertex3D, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, core.NewCreationError("mesh "+name, errors.New("mesh has no geometry"))
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return nil, core.NewCreationError("mesh "+name, errors.Errorf("index %d out of %d vertices", i, len(vertices)))
		}
	}

	m := &Mesh{IndexCount: uint32(len(indices))}
	vb, err := createFilledBuffer(dev, core.DebugName(name+"-vertices"), gpu.BufferUsageVertex, metadata.VertexBytes(vertices))
	if err != nil {
		return nil, err
	}
	m.Vertices = gpu.Own(vb, dev.DestroyBuffer)
	scope.Add(m.Vertices.Release)

	ib, err := createFilledBuffer(dev, core.DebugName(name+"-indices"), gpu.BufferUsageIndex, metadata.IndexBytes(indices))
	if err != nil {
		return nil, err
	}
	m.Indices = gpu.Own(ib, dev.DestroyBuffer)
	scope.Add(m.Indices.Release)
	return m, nil
}

func (m *Mesh) release() {
	m.Indices.Release()
	m.Vertices.Release()
}

func createFilledBuffer(dev gpu.ResourceAllocator, name string, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	b, err := dev.CreateBuffer(gpu.BufferInfo{Name: name, Size: uint64(len(data)), Usage: usage})
	if err != nil {
		return 0, core.NewCreationError("buffer "+name, err)
	}
	if err := dev.WriteBuffer(b, 0, data); err != nil {
		dev.DestroyBuffer(b)
		return 0, core.NewCreationError("buffer "+name, err)
	}
	return b, nil
}

// TextureSource is a decoded RGBA8 image bound to a material channel.
type TextureSource struct {
	Name    string
	Channel descriptors.TextureChannel
	Extent  gpu.Extent
	Pixels  []byte
}

// Texture is a sampled image living on the device.
type Texture struct {
	Name    string
	Channel descriptors.TextureChannel
	Image   gpu.OwnedImage
	View    gpu.OwnedImageView
}

func uploadTexture(dev gpu.ResourceAllocator, scope *gpu.Scope, src TextureSource) (*Texture, error) {
	if src.Extent.IsZero() {
		return nil, core.NewCreationError("texture "+src.Name, core.ErrInvalidExtent)
	}
	if want := int(src.Extent.Width) * int(src.Extent.Height) * 4; len(src.Pixels) != want {
		return nil, core.NewCreationError("texture "+src.Name, errors.Errorf("%d bytes of pixels, want %d", len(src.Pixels), want))
	}

	t := &Texture{Name: src.Name, Channel: src.Channel}
	img, err := dev.CreateImage(gpu.ImageInfo{
		Name:    core.DebugName("texture-" + src.Name),
		Extent:  src.Extent,
		Format:  gpu.FormatR8G8B8A8Srgb,
		Samples: 1,
		Usage:   gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
	})
	if err != nil {
		return nil, core.NewCreationError("texture "+src.Name, err)
	}
	t.Image = gpu.Own(img, dev.DestroyImage)
	scope.Add(t.Image.Release)

	if err := dev.UploadImage(img, src.Extent, src.Pixels); err != nil {
		return nil, core.NewCreationError("texture upload "+src.Name, err)
	}
	view, err := dev.CreateImageView(img, gpu.FormatR8G8B8A8Srgb)
	if err != nil {
		return nil, core.NewCreationError("texture view "+src.Name, err)
	}
	t.View = gpu.Own(view, dev.DestroyImageView)
	scope.Add(t.View.Release)
	return t, nil
}

func (t *Texture) release() {
	t.View.Release()
	t.Image.Release()
}

// PlaceholderTexture is a 2x2 white image used when a model brings no
// albedo texture, so the sampled shader path stays the same.
func PlaceholderTexture() TextureSource {
	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = 0xFF
	}
	return TextureSource{
		Name:    "default-albedo",
		Channel: descriptors.ChannelAlbedo,
		Extent:  gpu.Extent{Width: 2, Height: 2},
		Pixels:  pixels,
	}
}
