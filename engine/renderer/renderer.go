// Package renderer is the host-facing frontend. It wires the render target
// set, the render graph and the frame orchestrator over one GPU device.
package renderer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frame"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/graph"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-frames/engine/renderer/targets"
)

type Config struct {
	FramesInFlight int
	Samples        uint32
	PresentMode    gpu.PresentMode
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
	MinimizedPoll  time.Duration
	ClearColor     [4]float32
	MaxLights      int
}

// Assets are pulled once at initialization.
type Assets struct {
	Shaders graph.Shaders
	Model   graph.Model
}

type Renderer struct {
	device  gpu.Device
	targets *targets.Set
	graph   *graph.Graph
	frames  *frame.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// Initialize builds the whole renderer for a window whose framebuffer is
// currently extent.
func Initialize(device gpu.Device, surface targets.Surface, extent gpu.Extent, cfg Config, assets Assets) (r *Renderer, err error) {
	if extent.IsZero() {
		err := core.NewInvariantError("renderer initialize", errors.Wrapf(core.ErrInvalidExtent, "initial extent %s", extent))
		core.LogError(err.Error())
		return nil, err
	}
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = 2
	}
	samples := ChooseSampleCount(cfg.Samples, device.MaxSamples())
	if samples != cfg.Samples {
		core.LogWarn("MSAA sample count %d not supported, using %d", cfg.Samples, samples)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rend := &Renderer{device: device, ctx: ctx, cancel: cancel}
	defer func() {
		if err != nil {
			rend.release()
		}
	}()

	rend.targets, err = targets.New(device, surface, targets.Config{
		Samples:       samples,
		DepthFormat:   device.DepthFormat(),
		PresentMode:   cfg.PresentMode,
		MinimizedPoll: cfg.MinimizedPoll,
	})
	if err != nil {
		return nil, err
	}

	rend.graph, err = graph.New(device, graph.Config{
		Formats: graph.Formats{
			Color:     rend.targets.ColorFormat(),
			Depth:     rend.targets.DepthFormat(),
			Swapchain: rend.targets.Format(),
			Samples:   samples,
		},
		FramesInFlight: cfg.FramesInFlight,
		MaxLights:      cfg.MaxLights,
		ClearColor:     cfg.ClearColor,
	}, assets.Shaders, assets.Model)
	if err != nil {
		return nil, err
	}

	if err = rend.targets.Build(ctx, rend.graph.Passes()); err != nil {
		return nil, err
	}
	if err = rend.graph.Bind(rend.targets); err != nil {
		return nil, err
	}

	rend.frames, err = frame.New(device, rend.targets, rend.graph, frame.Config{
		FramesInFlight: cfg.FramesInFlight,
		FenceTimeout:   cfg.FenceTimeout,
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		return nil, err
	}

	core.LogInfo("renderer initialized at %s with %d frames in flight, %dx MSAA, %s present mode", rend.targets.Extent(), cfg.FramesInFlight, samples, cfg.PresentMode)
	return rend, nil
}

// ChooseSampleCount returns the highest power of two not above requested
// or supported.
func ChooseSampleCount(requested, supported uint32) uint32 {
	if requested == 0 {
		requested = 1
	}
	if supported == 0 {
		supported = 1
	}
	limit := requested
	if supported < limit {
		limit = supported
	}
	samples := uint32(1)
	for samples*2 <= limit {
		samples *= 2
	}
	return samples
}

// SubmitFrame renders one frame of scene.
func (r *Renderer) SubmitFrame(scene *metadata.SceneState) error {
	if r.closed {
		return errors.Wrap(core.ErrRendererFailed, "renderer is shut down")
	}
	return r.frames.Frame(r.ctx, scene)
}

// NotifyResize schedules render target recreation.
func (r *Renderer) NotifyResize() {
	r.frames.NotifyResize()
}

func (r *Renderer) SetClearColor(c [4]float32) {
	r.graph.SetClearColor(c)
}

func (r *Renderer) Extent() gpu.Extent {
	return r.targets.Extent()
}

func (r *Renderer) Generation() uint64 {
	return r.targets.Generation()
}

func (r *Renderer) Recreations() uint64 {
	return r.frames.Recreations()
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frames.FrameNumber()
}

// Shutdown waits for the device to go idle and destroys everything the
// renderer created. A blocked recreation is cancelled first.
func (r *Renderer) Shutdown() error {
	if r.closed {
		return nil
	}
	r.cancel()
	err := r.device.WaitIdle()
	if err != nil {
		err = core.NewDeviceError("shutdown wait idle", err)
		core.LogError(err.Error())
	}
	r.release()
	core.LogInfo("renderer shut down")
	return err
}

func (r *Renderer) release() {
	if r.frames != nil {
		r.frames.Destroy()
	}
	if r.targets != nil {
		r.targets.Destroy()
	}
	if r.graph != nil {
		r.graph.Destroy()
	}
	r.cancel()
	r.closed = true
}
