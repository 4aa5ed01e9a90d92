package metadata

import "github.com/go-gl/mathgl/mgl32"

// GenerateNormals assigns each triangle's face normal to its three vertices.
// Shared vertices end up with the normal of the last triangle using them.
func GenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		c := edge1.Cross(edge2)
		if c.Len() == 0 {
			continue
		}
		normal := c.Normalize()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

// Bounds returns the axis-aligned box enclosing vertices.
func Bounds(vertices []Vertex3D) (min, max mgl32.Vec3) {
	if len(vertices) == 0 {
		return min, max
	}
	min, max = vertices[0].Position, vertices[0].Position
	for _, v := range vertices[1:] {
		for k := 0; k < 3; k++ {
			if v.Position[k] < min[k] {
				min[k] = v.Position[k]
			}
			if v.Position[k] > max[k] {
				max[k] = v.Position[k]
			}
		}
	}
	return min, max
}
