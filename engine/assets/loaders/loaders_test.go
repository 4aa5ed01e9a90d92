package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func spirvHeader() []byte {
	return []byte{
		0x03, 0x02, 0x23, 0x07, // magic
		0x00, 0x00, 0x01, 0x00, // version 1.0
		0x00, 0x00, 0x00, 0x00, // generator
		0x01, 0x00, 0x00, 0x00, // bound
		0x00, 0x00, 0x00, 0x00, // schema
	}
}

func TestValidateSPIRV(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		ok   bool
	}{
		{"header", spirvHeader(), true},
		{"short", spirvHeader()[:8], false},
		{"unaligned", append(spirvHeader(), 0x00), false},
		{"glsl source", []byte("#version 450\nvoid main() {}\n    "), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSPIRV(tt.code)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestShaderLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "post.frag.spv")
	require.NoError(t, os.WriteFile(path, spirvHeader(), 0o644))

	res, err := (&ShaderLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "post.frag", res.Name)
	assert.Equal(t, spirvHeader(), res.Data)
	assert.Equal(t, uint64(20), res.DataSize)

	bad := filepath.Join(dir, "bad.spv")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	_, err = (&ShaderLoader{}).Load(bad, nil)
	assert.Error(t, err)
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 100), G: uint8(y * 80), B: 7, A: 255})
		}
	}
	return img
}

func TestDecodeImageFormats(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))
	require.NoError(t, bmp.Encode(&bmpBuf, testImage()))

	for name, buf := range map[string]*bytes.Buffer{"png": &pngBuf, "bmp": &bmpBuf} {
		t.Run(name, func(t *testing.T) {
			data, err := DecodeImage(bytes.NewReader(buf.Bytes()), false)
			require.NoError(t, err)
			assert.Equal(t, uint32(2), data.Width)
			assert.Equal(t, uint32(3), data.Height)
			assert.Equal(t, uint8(4), data.ChannelCount)
			require.Len(t, data.Pixels, 2*3*4)
			// pixel (1, 2)
			assert.Equal(t, []byte{100, 160, 7, 255}, data.Pixels[(2*2+1)*4:(2*2+2)*4])
		})
	}
}

func TestDecodeImageFlip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	data, err := DecodeImage(&buf, true)
	require.NoError(t, err)
	// row 2 moved to the top
	assert.Equal(t, []byte{0, 160, 7, 255}, data.Pixels[0:4])
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := DecodeImage(strings.NewReader("not an image"), false)
	assert.Error(t, err)
}

const quadOBJ = `# two triangles as one quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestDecodeOBJ(t *testing.T) {
	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), strings.NewReader(""))
	require.NoError(t, err)
	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
	assert.Equal(t, float32(1), mesh.Vertices[0].Texcoord[1])
	assert.Equal(t, float32(1), mesh.Vertices[2].Normal[2])
}

func TestDecodeOBJGeneratesNormals(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	mesh, err := DecodeOBJ(strings.NewReader(src), strings.NewReader(""))
	require.NoError(t, err)
	require.Len(t, mesh.Vertices, 3)
	for _, v := range mesh.Vertices {
		assert.InDelta(t, 1.0, v.Normal[2], 1e-6)
	}
}

func TestModelLoaderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	res, err := (&ModelLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "quad", res.Name)
	mesh, ok := res.Data.(*metadata.MeshResourceData)
	require.True(t, ok)
	assert.Len(t, mesh.Indices, 6)
}
