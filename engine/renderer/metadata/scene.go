package metadata

import "github.com/go-gl/mathgl/mgl32"

type Camera struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Position   mgl32.Vec3
}

type Light struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
}

// SceneState is the per-frame input of the renderer. Its contents are only
// copied into uniform memory.
type SceneState struct {
	Camera Camera
	Model  mgl32.Mat4
	Lights []Light
}

// NewSceneState returns a scene with identity transforms and no lights.
func NewSceneState() *SceneState {
	return &SceneState{
		Camera: Camera{
			View:       mgl32.Ident4(),
			Projection: mgl32.Ident4(),
		},
		Model: mgl32.Ident4(),
	}
}
