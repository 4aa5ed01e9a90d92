package loaders

import (
	"io"
	"os"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

// ModelLoader reads Wavefront OBJ files into a single indexed mesh. All
// objects of the file are merged; materials are ignored.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	objFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer objFile.Close()

	info, err := objFile.Stat()
	if err != nil {
		return nil, err
	}

	var mtl io.Reader = strings.NewReader("")
	if mtlFile, err := os.Open(strings.TrimSuffix(path, ".obj") + ".mtl"); err == nil {
		defer mtlFile.Close()
		mtl = mtlFile
	}

	mesh, err := DecodeOBJ(objFile, mtl)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", path)
	}

	return &metadata.Resource{
		Name:     resourceName(path),
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     mesh,
	}, nil
}

func (ml *ModelLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	return nil
}

type objCorner struct {
	vertex, uv, normal int
}

// DecodeOBJ triangulates every face as a fan and deduplicates corners that
// share position, uv and normal.
func DecodeOBJ(objReader, mtlReader io.Reader) (*metadata.MeshResourceData, error) {
	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return nil, err
	}

	mesh := &metadata.MeshResourceData{}
	unique := make(map[objCorner]uint32)
	missingNormals := false

	addCorner := func(face obj.Face, i int) error {
		c := objCorner{vertex: face.Vertices[i], uv: -1, normal: -1}
		if i < len(face.Uvs) {
			c.uv = face.Uvs[i]
		}
		if i < len(face.Normals) {
			c.normal = face.Normals[i]
		}
		if index, ok := unique[c]; ok {
			mesh.Indices = append(mesh.Indices, index)
			return nil
		}

		if c.vertex < 0 || c.vertex*3+2 >= len(decoder.Vertices) {
			return errors.Errorf("face references vertex %d of %d", c.vertex, len(decoder.Vertices)/3)
		}
		v := metadata.Vertex3D{
			Position: mgl32.Vec3{
				decoder.Vertices[c.vertex*3],
				decoder.Vertices[c.vertex*3+1],
				decoder.Vertices[c.vertex*3+2],
			},
		}
		if c.uv >= 0 && c.uv*2+1 < len(decoder.Uvs) {
			// OBJ puts v=0 at the bottom of the image.
			v.Texcoord = mgl32.Vec2{decoder.Uvs[c.uv*2], 1.0 - decoder.Uvs[c.uv*2+1]}
		}
		if c.normal >= 0 && c.normal*3+2 < len(decoder.Normals) {
			v.Normal = mgl32.Vec3{
				decoder.Normals[c.normal*3],
				decoder.Normals[c.normal*3+1],
				decoder.Normals[c.normal*3+2],
			}
		} else {
			missingNormals = true
		}

		index := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, v)
		unique[c] = index
		mesh.Indices = append(mesh.Indices, index)
		return nil
	}

	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			// We need to triangularize faces
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					if err := addCorner(face, corner); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if len(mesh.Indices) == 0 {
		return nil, errors.New("model has no faces")
	}
	if missingNormals {
		metadata.GenerateNormals(mesh.Vertices, mesh.Indices)
	}
	return mesh, nil
}
