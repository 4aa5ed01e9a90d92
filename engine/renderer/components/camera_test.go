package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
)

func TestCameraStartsOnPositiveZ(t *testing.T) {
	c := NewCamera()
	pos := c.GetPosition()
	assert.InDelta(t, 0, pos.X(), 1e-5)
	assert.InDelta(t, 0, pos.Y(), 1e-5)
	assert.InDelta(t, 6, pos.Z(), 1e-5)

	// the target ends up straight ahead in view space
	target := c.GetView().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, -6, target.Z(), 1e-4)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Orbit(0, 10)
	assert.InDelta(t, maxPitch, c.Pitch, 1e-6)
	c.Orbit(0, -20)
	assert.InDelta(t, -maxPitch, c.Pitch, 1e-6)
}

func TestCameraZoomStopsBeforeTarget(t *testing.T) {
	c := NewCamera()
	c.Zoom(100)
	assert.InDelta(t, c.Near*2, c.Distance, 1e-6)
}

func TestProjectionDepthRange(t *testing.T) {
	c := NewCamera()
	c.SetAspect(1280, 720)
	proj := c.GetProjection()

	near := proj.Mul4x1(mgl32.Vec4{0, 0, -c.Near, 1})
	far := proj.Mul4x1(mgl32.Vec4{0, 0, -c.Far, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-4)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-4)
}

func TestApplyFillsScene(t *testing.T) {
	c := NewCamera()
	c.Orbit(0.5, 0.25)
	scene := metadata.NewSceneState()
	c.Apply(scene)
	assert.Equal(t, c.GetPosition(), scene.Camera.Position)
	assert.Equal(t, c.GetView(), scene.Camera.View)
	assert.NotEqual(t, mgl32.Ident4(), scene.Camera.Projection)
}
