package metadata

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// SPIR-V bytecode
	ResourceTypeShader
	// Decoded image, see ImageResourceData
	ResourceTypeImage
	// Indexed geometry, see MeshResourceData
	ResourceTypeMesh
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMesh:
		return "mesh"
	default:
		return "none"
	}
}

// Resource is what every asset loader produces.
type Resource struct {
	Name     string
	FullPath string
	// DataSize is the size of the file the resource was read from.
	DataSize uint64
	Data     interface{}
}

// ImageResourceData holds tightly packed pixels.
type ImageResourceData struct {
	ChannelCount uint8
	Width        uint32
	Height       uint32
	Pixels       []uint8
}

type ImageResourceParams struct {
	// FlipY flips the image on the y-axis while loading.
	FlipY bool
}

type MeshResourceData struct {
	Vertices []Vertex3D
	Indices  []uint32
}
