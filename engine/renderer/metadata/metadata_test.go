package metadata

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFloat(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestTransformBlockLayout(t *testing.T) {
	scene := NewSceneState()
	scene.Model = mgl32.Translate3D(1, 2, 3)
	scene.Camera.View = mgl32.Scale3D(2, 2, 2)
	scene.Camera.Projection = mgl32.Scale3D(4, 4, 4)
	scene.Camera.Position = mgl32.Vec3{7, 8, 9}

	buf := make([]byte, TransformBlockSize)
	require.NoError(t, EncodeTransformBlock(buf, scene))

	// column-major: translation sits in the last column
	assert.Equal(t, float32(1), readFloat(buf, TransformModelOffset+12*4))
	assert.Equal(t, float32(3), readFloat(buf, TransformModelOffset+14*4))
	assert.Equal(t, float32(2), readFloat(buf, TransformViewOffset))
	assert.Equal(t, float32(4), readFloat(buf, TransformProjectionOffset))
	assert.Equal(t, float32(9), readFloat(buf, TransformCameraOffset+8))
	assert.Equal(t, float32(1), readFloat(buf, TransformCameraOffset+12))

	assert.Error(t, EncodeTransformBlock(buf[:TransformBlockSize-1], scene))
}

func TestStd140Alignment(t *testing.T) {
	for _, off := range []int{TransformModelOffset, TransformViewOffset, TransformProjectionOffset, TransformCameraOffset, LightHeaderSize, LightStride} {
		assert.Zero(t, off%16, "offset %d", off)
	}
	assert.Equal(t, 16+32*4, LightBlockSize(4))
}

func TestLightBlockClearsStaleEntries(t *testing.T) {
	buf := make([]byte, LightBlockSize(3))
	for i := range buf {
		buf[i] = 0xAB
	}
	lights := []Light{{Position: mgl32.Vec3{1, 2, 3}, Color: mgl32.Vec3{1, 0.5, 0}, Intensity: 2}}
	require.NoError(t, EncodeLightBlock(buf, lights, 3))

	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf))
	assert.Equal(t, float32(3), readFloat(buf, LightHeaderSize+8))
	assert.Equal(t, float32(1), readFloat(buf, LightHeaderSize+12))
	assert.Equal(t, float32(2), readFloat(buf, LightHeaderSize+16+12))
	for _, b := range buf[LightHeaderSize+LightStride:] {
		require.Zero(t, b)
	}

	assert.Error(t, EncodeLightBlock(buf, make([]Light, 4), 3))
	assert.Error(t, EncodeLightBlock(buf[:10], nil, 3))
}

func TestVertexBytes(t *testing.T) {
	v := Vertex3D{Position: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 1, 0}, Texcoord: mgl32.Vec2{0.25, 0.75}}
	b := VertexBytes([]Vertex3D{{}, v})
	require.Len(t, b, 2*Vertex3DStride)
	assert.Equal(t, float32(3), readFloat(b, Vertex3DStride+8))
	assert.Equal(t, float32(1), readFloat(b, Vertex3DStride+int(Vertex3DAttributes[1].Offset)+4))
	assert.Equal(t, float32(0.75), readFloat(b, Vertex3DStride+int(Vertex3DAttributes[2].Offset)+4))

	assert.Equal(t, []byte{1, 0, 0, 0, 0, 1, 0, 0}, IndexBytes([]uint32{1, 256}))
}

func TestCube(t *testing.T) {
	vertices, indices := Cube(2)
	assert.Len(t, vertices, 24)
	assert.Len(t, indices, 36)

	lo, hi := Bounds(vertices)
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, lo)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, hi)

	// counter-clockwise winding agrees with the stored normals
	for i := 0; i < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position)).Normalize()
		assert.InDelta(t, 1, n.Dot(a.Normal), 1e-5)
	}
}

func TestFullscreenQuadCoversClipSpace(t *testing.T) {
	vertices, indices := FullscreenQuad()
	assert.Len(t, indices, 6)
	lo, hi := Bounds(vertices)
	assert.Equal(t, mgl32.Vec3{-1, -1, 0}, lo)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, hi)
	for _, v := range vertices {
		if v.Position.X() < 0 && v.Position.Y() > 0 {
			assert.Equal(t, mgl32.Vec2{0, 0}, v.Texcoord)
		}
	}
}

func TestGenerateNormals(t *testing.T) {
	vertices := []Vertex3D{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{0, 0, -1}},
		{Position: mgl32.Vec3{1, 0, 0}},
		// degenerate
		{Position: mgl32.Vec3{2, 0, 0}},
	}
	GenerateNormals(vertices, []uint32{0, 1, 2, 0, 2, 3})
	assert.InDelta(t, -1, vertices[0].Normal.Y(), 1e-6)
	assert.Equal(t, mgl32.Vec3{}, vertices[3].Normal)
}

func TestBoundsEmpty(t *testing.T) {
	lo, hi := Bounds(nil)
	assert.Equal(t, mgl32.Vec3{}, lo)
	assert.Equal(t, mgl32.Vec3{}, hi)
}
