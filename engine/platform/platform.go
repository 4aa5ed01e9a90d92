package platform

import (
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
	events *core.EventQueue
}

func New(events *core.EventQueue) (*Platform, error) {
	return &Platform{
		Window: nil,
		events: events,
	}, nil
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events without blocking.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// FramebufferExtent is the drawable size in pixels. It is zero while the
// window is minimized.
func (p *Platform) FramebufferExtent() gpu.Extent {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return gpu.Extent{Width: uint32(w), Height: uint32(h)}
}

// WaitEventsTimeout blocks until an event arrives or d elapses.
func (p *Platform) WaitEventsTimeout(d time.Duration) {
	glfw.WaitEventsTimeout(d.Seconds())
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code := translateKey(key)
	if code == core.KEY_UNKNOWN {
		return
	}
	p.events.Push(core.KeyEvent{Key: code, Pressed: action == glfw.Press})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	p.events.Push(core.ResizedEvent{Width: uint32(width), Height: uint32(height)})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Push(core.QuitEvent{})
}

func translateKey(key glfw.Key) core.KeyCode {
	switch key {
	case glfw.KeyEnter:
		return core.KEY_ENTER
	case glfw.KeyEscape:
		return core.KEY_ESCAPE
	case glfw.KeySpace:
		return core.KEY_SPACE
	case glfw.KeyLeft:
		return core.KEY_LEFT
	case glfw.KeyUp:
		return core.KEY_UP
	case glfw.KeyRight:
		return core.KEY_RIGHT
	case glfw.KeyDown:
		return core.KEY_DOWN
	case glfw.KeyA:
		return core.KEY_A
	case glfw.KeyD:
		return core.KEY_D
	case glfw.KeyP:
		return core.KEY_P
	case glfw.KeyS:
		return core.KEY_S
	case glfw.KeyW:
		return core.KEY_W
	default:
		return core.KEY_UNKNOWN
	}
}
