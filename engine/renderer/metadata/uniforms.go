package metadata

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// std140 layout of the transform block:
//
//	offset   0  mat4 model
//	offset  64  mat4 view
//	offset 128  mat4 projection
//	offset 192  vec4 camera position (w unused)
const (
	TransformModelOffset      = 0
	TransformViewOffset       = 64
	TransformProjectionOffset = 128
	TransformCameraOffset     = 192
	TransformBlockSize        = 208
)

// std140 layout of the light block:
//
//	offset 0             ivec4 (x = light count)
//	offset 16 + 32*i     vec4 position (w = 1), vec4 color (a = intensity)
const (
	LightHeaderSize = 16
	LightStride     = 32
)

func LightBlockSize(capacity int) int {
	return LightHeaderSize + LightStride*capacity
}

// EncodeTransformBlock writes the transform block for scene into dst, which
// must be at least TransformBlockSize bytes.
func EncodeTransformBlock(dst []byte, scene *SceneState) error {
	if len(dst) < TransformBlockSize {
		return fmt.Errorf("transform block needs %d bytes, got %d", TransformBlockSize, len(dst))
	}
	putMat4(dst[TransformModelOffset:], scene.Model)
	putMat4(dst[TransformViewOffset:], scene.Camera.View)
	putMat4(dst[TransformProjectionOffset:], scene.Camera.Projection)
	putVec4(dst[TransformCameraOffset:], scene.Camera.Position.Vec4(1))
	return nil
}

// EncodeLightBlock writes up to capacity lights into dst. Unused entries are
// zeroed so stale lights from a previous frame never leak through.
func EncodeLightBlock(dst []byte, lights []Light, capacity int) error {
	size := LightBlockSize(capacity)
	if len(dst) < size {
		return fmt.Errorf("light block needs %d bytes, got %d", size, len(dst))
	}
	if len(lights) > capacity {
		return fmt.Errorf("scene has %d lights, layout holds %d", len(lights), capacity)
	}
	clear(dst[:size])
	binary.LittleEndian.PutUint32(dst[0:], uint32(len(lights)))
	for i, l := range lights {
		off := LightHeaderSize + i*LightStride
		putVec4(dst[off:], l.Position.Vec4(1))
		putVec4(dst[off+16:], l.Color.Vec4(l.Intensity))
	}
	return nil
}

// mgl32 matrices are column-major, which is what std140 expects.
func putMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func putVec4(dst []byte, v mgl32.Vec4) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(c))
	}
}
