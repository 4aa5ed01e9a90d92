package metadata

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// Vertex3D is the interleaved vertex format shared by both pipelines.
type Vertex3D struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Texcoord mgl32.Vec2
}

const Vertex3DStride = 32

// Vertex3DAttributes describes Vertex3D to the pipeline.
var Vertex3DAttributes = []gpu.VertexAttribute{
	{Location: 0, Format: gpu.VertexFloat3, Offset: 0},
	{Location: 1, Format: gpu.VertexFloat3, Offset: 12},
	{Location: 2, Format: gpu.VertexFloat2, Offset: 24},
}

// VertexBytes packs vertices in the Vertex3D layout.
func VertexBytes(vertices []Vertex3D) []byte {
	out := make([]byte, len(vertices)*Vertex3DStride)
	for i, v := range vertices {
		base := i * Vertex3DStride
		floats := [8]float32{
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.Texcoord[0], v.Texcoord[1],
		}
		for j, f := range floats {
			binary.LittleEndian.PutUint32(out[base+j*4:], math.Float32bits(f))
		}
	}
	return out
}

func IndexBytes(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
