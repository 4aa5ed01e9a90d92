package engine

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/assets"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/platform"
	"github.com/spaghettifunk/anima-frames/engine/renderer"
	"github.com/spaghettifunk/anima-frames/engine/renderer/descriptors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/graph"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-frames/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const (
	eventQueueCapacity = 256
	// seconds between two frame metric log lines
	metricsInterval = 5.0
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool

	events        *core.EventQueue
	input         *core.InputState
	platform      *platform.Platform
	assetManager  *assets.AssetManager
	configWatcher *ConfigWatcher
	device        *vulkan.Device
	renderer      *renderer.Renderer
	scene         *metadata.SceneState

	width    uint32
	height   uint32
	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(g.ApplicationConfig.Level())

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		events:       core.NewEventQueue(eventQueueCapacity),
		input:        core.NewInputState(),
		scene:        metadata.NewSceneState(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        g.ApplicationConfig.Window.StartWidth,
		height:       g.ApplicationConfig.Window.StartHeight,
	}

	p, err := platform.New(e.events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	e.platform = p

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	e.assetManager = am

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine cannot be initialized in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	cfg := e.gameInstance.ApplicationConfig

	if err := e.platform.Startup(cfg.Window.Name,
		cfg.Window.StartPosX,
		cfg.Window.StartPosY,
		cfg.Window.StartWidth,
		cfg.Window.StartHeight); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(cfg.Assets.Root); err != nil {
		return err
	}

	if path := e.gameInstance.ConfigPath; path != "" {
		cw, err := NewConfigWatcher(path, e.events)
		if err != nil {
			// reload is a convenience, the engine runs without it
			core.LogWarn("not watching config %s: %s", path, err)
		} else {
			e.configWatcher = cw
		}
	}

	device, err := vulkan.New(e.platform.Window, vulkan.Config{
		ApplicationName: cfg.Window.Name,
		Validation:      cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	e.device = device

	rendererAssets, err := e.loadAssets(cfg.Assets)
	if err != nil {
		return err
	}

	extent := e.platform.FramebufferExtent()
	e.renderer, err = renderer.Initialize(e.device, e.platform, extent, cfg.RendererConfig(), rendererAssets)
	if err != nil {
		return err
	}
	e.width, e.height = extent.Width, extent.Height

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// loadAssets reads everything the renderer pulls at initialization.
func (e *Engine) loadAssets(cfg AssetsConfig) (renderer.Assets, error) {
	var out renderer.Assets

	shaders := []struct {
		name string
		dst  *[]byte
	}{
		{"geometry.vert", &out.Shaders.GeometryVert},
		{"geometry.frag", &out.Shaders.GeometryFrag},
		{"post.vert", &out.Shaders.PostVert},
		{"post.frag", &out.Shaders.PostFrag},
	}
	for _, s := range shaders {
		res, err := e.assetManager.LoadAsset(s.name, metadata.ResourceTypeShader, nil)
		if err != nil {
			return out, errors.Wrapf(err, "shader %s", s.name)
		}
		*s.dst = res.Data.([]byte)
	}

	if cfg.Model != "" {
		res, err := e.assetManager.LoadAsset(cfg.Model, metadata.ResourceTypeMesh, nil)
		if err != nil {
			return out, errors.Wrapf(err, "model %s", cfg.Model)
		}
		mesh := res.Data.(*metadata.MeshResourceData)
		out.Model = graph.Model{Name: res.Name, Vertices: mesh.Vertices, Indices: mesh.Indices}
		lo, hi := metadata.Bounds(mesh.Vertices)
		core.LogInfo("model %s: %d vertices, %d indices, bounds %v %v", res.Name, len(mesh.Vertices), len(mesh.Indices), lo, hi)
	} else {
		vertices, indices := metadata.Cube(2.0)
		out.Model = graph.Model{Name: "cube", Vertices: vertices, Indices: indices}
	}

	if cfg.Albedo != "" {
		res, err := e.assetManager.LoadAsset(cfg.Albedo, metadata.ResourceTypeImage, &metadata.ImageResourceParams{})
		if err != nil {
			return out, errors.Wrapf(err, "texture %s", cfg.Albedo)
		}
		img := res.Data.(*metadata.ImageResourceData)
		out.Model.Textures = append(out.Model.Textures, graph.TextureSource{
			Name:    res.Name,
			Channel: descriptors.ChannelAlbedo,
			Extent:  gpu.Extent{Width: img.Width, Height: img.Height},
			Pixels:  img.Pixels,
		})
	}
	return out, nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	lastReport := e.lastTime

	for e.isRunning {
		e.platform.PumpMessages()
		e.events.Drain(e.onEvent)
		if !e.isRunning {
			break
		}

		if e.isSuspended {
			// nothing to present to, wait for the restore instead of spinning
			e.platform.WaitEventsTimeout(e.gameInstance.ApplicationConfig.Renderer.MinimizedPoll.Duration)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta, e.input, e.scene); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				e.isRunning = false
				return err
			}
		}

		if err := e.renderer.SubmitFrame(e.scene); err != nil {
			core.LogError("frame submission failed, shutting down: %s", err)
			e.isRunning = false
			return err
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		if currentTime-lastReport >= metricsInterval {
			fps, ms := e.metrics.Frame()
			core.LogInfo("%.0f fps, %.2f ms/frame, frame %d, %d target rebuilds", fps, ms, e.renderer.FrameNumber(), e.renderer.Recreations())
			lastReport = currentTime
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()

		e.lastTime = currentTime
	}
	return nil
}

// Quit asks the loop to stop at its next iteration. Safe to call from any
// goroutine.
func (e *Engine) Quit() {
	e.events.Push(core.QuitEvent{})
}

// Shutdown tears the engine down in reverse order of initialization. It must
// run on the main goroutine after Run returned.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.device != nil {
		e.device.Destroy()
	}
	if e.configWatcher != nil {
		if err := e.configWatcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := e.platform.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(ev core.Event) {
	switch ev := ev.(type) {
	case core.QuitEvent:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
	case core.KeyEvent:
		e.onKey(ev)
	case core.ResizedEvent:
		e.onResized(ev)
	case core.ConfigReloadedEvent:
		e.onConfigReloaded(ev)
	default:
		core.LogWarn("unhandled event code `%d`", ev.Code())
	}
}

func (e *Engine) onKey(ev core.KeyEvent) {
	e.input.ProcessKey(ev.Key, ev.Pressed)
	if ev.Pressed && ev.Key == core.KEY_ESCAPE {
		e.isRunning = false
	}
}

func (e *Engine) onResized(ev core.ResizedEvent) {
	if ev.Width == 0 && ev.Height == 0 {
		// an empty resize also stands for one lost in a full queue, so ask
		// the window for the real size
		extent := e.platform.FramebufferExtent()
		ev.Width, ev.Height = extent.Width, extent.Height
	}
	if ev.Width == e.width && ev.Height == e.height {
		return
	}
	e.width, e.height = ev.Width, ev.Height
	core.LogDebug("Window resize: %d, %d", e.width, e.height)

	// Handle minimization
	if e.width == 0 || e.height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
		// the time spent minimized is not game time
		e.clock.Update()
		e.lastTime = e.clock.Elapsed()
	}
	e.renderer.NotifyResize()
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			core.LogError(err.Error())
		}
	}
}

// onConfigReloaded applies the settings that can change while running. The
// rest needs a restart.
func (e *Engine) onConfigReloaded(ev core.ConfigReloadedEvent) {
	cfg, err := LoadConfig(ev.Path)
	if err != nil {
		core.LogWarn("ignoring config reload: %s", err)
		return
	}
	core.SetLogLevel(cfg.Level())
	e.renderer.SetClearColor(cfg.Renderer.ClearColor)

	current := e.gameInstance.ApplicationConfig
	current.LogLevel = cfg.LogLevel
	current.Renderer.ClearColor = cfg.Renderer.ClearColor
	if cfg.Renderer != current.Renderer || cfg.Window != current.Window || cfg.Assets != current.Assets {
		core.LogWarn("config %s changed settings that take effect after a restart", ev.Path)
	}
	core.LogInfo("config reloaded, log level %s", cfg.Level())
}
