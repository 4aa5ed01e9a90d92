package engine

import (
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// ConfigPath is watched for changes when set.
	ConfigPath   string
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error

// Update advances the game by deltaTime seconds and fills scene for the
// next frame.
type Update func(deltaTime float64, input *core.InputState, scene *metadata.SceneState) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
