package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

// vulkanClip maps OpenGL clip depth [-1, 1] onto Vulkan's [0, 1]. Y needs no
// flip, the viewport already has a negative height.
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

const maxPitch = math.Pi/2 - 0.01

// Camera orbits a target point at a fixed distance.
type Camera struct {
	// Target is the point the camera looks at.
	Target mgl32.Vec3
	// Yaw and Pitch are in radians. Pitch is clamped short of the poles.
	Yaw      float32
	Pitch    float32
	Distance float32

	FovY float32
	Near float32
	Far  float32

	aspect float32
	// Internal flag used to determine when the view matrix needs to be rebuilt.
	isDirty    bool
	viewMatrix mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Target = mgl32.Vec3{}
	c.Yaw = 0
	c.Pitch = 0
	c.Distance = 6
	c.FovY = mgl32.DegToRad(45)
	c.Near = 0.1
	c.Far = 1000
	c.aspect = 1
	c.isDirty = true
}

// Orbit turns the camera around its target.
func (c *Camera) Orbit(yaw, pitch float32) {
	c.Yaw += yaw
	c.Pitch = mgl32.Clamp(c.Pitch+pitch, -maxPitch, maxPitch)
	c.isDirty = true
}

// Zoom moves the camera towards the target by amount, never past Near.
func (c *Camera) Zoom(amount float32) {
	c.Distance = float32(math.Max(float64(c.Distance-amount), float64(c.Near)*2))
	c.isDirty = true
}

func (c *Camera) SetAspect(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) GetPosition() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	offset := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(offset.Mul(c.Distance))
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.isDirty {
		c.viewMatrix = mgl32.LookAtV(c.GetPosition(), c.Target, mgl32.Vec3{0, 1, 0})
		c.isDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) GetProjection() mgl32.Mat4 {
	return vulkanClip.Mul4(mgl32.Perspective(c.FovY, c.aspect, c.Near, c.Far))
}

// Apply writes the camera into the scene.
func (c *Camera) Apply(scene *metadata.SceneState) {
	scene.Camera = metadata.Camera{
		View:       c.GetView(),
		Projection: c.GetProjection(),
		Position:   c.GetPosition(),
	}
}
