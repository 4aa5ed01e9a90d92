package metadata

import "github.com/go-gl/mathgl/mgl32"

// Cube returns a unit cube of the given edge length centered on the origin,
// with per-face normals and texture coordinates. Winding is counter-clockwise.
func Cube(size float32) ([]Vertex3D, []uint32) {
	h := size / 2
	faces := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}
	uvs := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, Vertex3D{Position: c, Normal: f.normal, Texcoord: uvs[i]})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}

// FullscreenQuad covers clip space. Clip Y points up (the viewport is
// flipped), so the top-left corner of the screen samples (0, 0).
func FullscreenQuad() ([]Vertex3D, []uint32) {
	n := mgl32.Vec3{0, 0, 1}
	vertices := []Vertex3D{
		{Position: mgl32.Vec3{-1, -1, 0}, Normal: n, Texcoord: mgl32.Vec2{0, 1}},
		{Position: mgl32.Vec3{1, -1, 0}, Normal: n, Texcoord: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{1, 1, 0}, Normal: n, Texcoord: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{-1, 1, 0}, Normal: n, Texcoord: mgl32.Vec2{0, 0}},
	}
	return vertices, []uint32{0, 1, 2, 2, 3, 0}
}
