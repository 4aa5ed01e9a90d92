package testbed

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-frames/engine"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/components"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

const (
	orbitSpeed    = 0.4 // radians per second when idle
	turnSpeed     = 1.5
	zoomSpeed     = 4.0
	spinSpeed     = 0.5
	lightRadius   = 4.0
	lightHeight   = 2.5
	lightPeriod   = 6.0 // seconds per revolution
	lightStrength = 6.0
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	elapsed   float64
	rotation  float32
	autoOrbit bool
}

// NewTestGame builds the demo game around cfg. configPath, when not empty,
// is watched for live changes.
func NewTestGame(cfg *engine.ApplicationConfig, configPath string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			ConfigPath:        configPath,
			State: &gameState{
				autoOrbit: true,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.State.(*gameState)
	state.WorldCamera = components.NewCamera()
	state.WorldCamera.Pitch = 0.35
	state.WorldCamera.Distance = 7
	return nil
}

func (g *TestGame) Update(deltaTime float64, input *core.InputState, scene *metadata.SceneState) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	dt := float32(deltaTime)

	if input.WasKeyPressed(core.KEY_SPACE) {
		state.autoOrbit = !state.autoOrbit
		core.LogDebug("auto orbit %t", state.autoOrbit)
	}

	yaw, pitch := float32(0), float32(0)
	if input.IsKeyDown(core.KEY_A) || input.IsKeyDown(core.KEY_LEFT) {
		yaw -= turnSpeed * dt
	}
	if input.IsKeyDown(core.KEY_D) || input.IsKeyDown(core.KEY_RIGHT) {
		yaw += turnSpeed * dt
	}
	if input.IsKeyDown(core.KEY_UP) {
		pitch += turnSpeed * dt
	}
	if input.IsKeyDown(core.KEY_DOWN) {
		pitch -= turnSpeed * dt
	}
	if state.autoOrbit && yaw == 0 && pitch == 0 {
		yaw = orbitSpeed * dt
	}
	if yaw != 0 || pitch != 0 {
		state.WorldCamera.Orbit(yaw, pitch)
	}
	if input.IsKeyDown(core.KEY_W) {
		state.WorldCamera.Zoom(zoomSpeed * dt)
	}
	if input.IsKeyDown(core.KEY_S) {
		state.WorldCamera.Zoom(-zoomSpeed * dt)
	}

	if input.WasKeyPressed(core.KEY_P) {
		pos := state.WorldCamera.GetPosition()
		core.LogDebug("Pos:[%.2f, %.2f, %.2f]", pos.X(), pos.Y(), pos.Z())
	}

	// Perform a small rotation on the model.
	state.rotation += spinSpeed * dt
	scene.Model = mgl32.HomogRotate3DY(state.rotation)
	state.WorldCamera.Apply(scene)
	scene.Lights = sceneLights(state.elapsed)

	return nil
}

// sceneLights returns a warm light circling the model and a dim fixed fill
// light.
func sceneLights(elapsed float64) []metadata.Light {
	angle := 2 * math.Pi * elapsed / lightPeriod
	return []metadata.Light{
		{
			Position:  mgl32.Vec3{lightRadius * float32(math.Cos(angle)), lightHeight, lightRadius * float32(math.Sin(angle))},
			Color:     mgl32.Vec3{1.0, 0.85, 0.6},
			Intensity: lightStrength,
		},
		{
			Position:  mgl32.Vec3{-3, -1, 4},
			Color:     mgl32.Vec3{0.4, 0.5, 1.0},
			Intensity: lightStrength / 4,
		},
	}
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	state.WorldCamera.SetAspect(width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}
