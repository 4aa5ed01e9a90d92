// Package frame drives frames in flight: it waits for a slot's previous
// submission, acquires a swapchain image, records both render graph stages,
// submits, presents and triggers render target recreation when the surface
// goes stale.
package frame

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

type State uint8

const (
	StateIdle State = iota
	StateWaitFence
	StateAcquire
	StateRecordAndSubmit
	StatePresent
	StateRecreating
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitFence:
		return "wait-fence"
	case StateAcquire:
		return "acquire"
	case StateRecordAndSubmit:
		return "record-and-submit"
	case StatePresent:
		return "present"
	case StateRecreating:
		return "recreating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Device interface {
	gpu.Sync
	gpu.Recorder
	gpu.Queue
	AcquireNextImage(sc gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.Result)
	Present(info gpu.PresentInfo) gpu.Result
}

type Targets interface {
	Swapchain() gpu.Swapchain
	Generation() uint64
	Recreate(ctx context.Context) error
}

type Graph interface {
	UpdateUniforms(slot int, scene *metadata.SceneState) error
	Record(cb gpu.CommandBuffer, slot int, imageIndex uint32) error
}

type Config struct {
	FramesInFlight int
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
}

// Slot is the per-frame-in-flight synchronization bundle. InFlight is
// created signaled so the first wait on every slot returns at once.
type Slot struct {
	Index          int
	CommandBuffer  gpu.OwnedCommandBuffer
	ImageAvailable gpu.OwnedSemaphore
	RenderFinished gpu.OwnedSemaphore
	InFlight       gpu.OwnedFence
}

func (s *Slot) release() {
	s.InFlight.Release()
	s.RenderFinished.Release()
	s.ImageAvailable.Release()
	s.CommandBuffer.Release()
}

type Orchestrator struct {
	device  Device
	targets Targets
	graph   Graph
	config  Config

	slots        []*Slot
	currentFrame int
	state        State
	frameNumber  uint64
	recreations  uint64
	failure      error

	// resize notifications bump resizeGeneration; lastGeneration is the
	// value seen by the last recreation
	resizeGeneration atomic.Uint64
	lastGeneration   uint64
}

func New(device Device, targets Targets, graph Graph, config Config) (o *Orchestrator, err error) {
	if config.FramesInFlight < 1 {
		return nil, core.NewInvariantError("frame orchestrator", errors.Errorf("frames in flight must be at least 1, got %d", config.FramesInFlight))
	}
	if config.FenceTimeout <= 0 {
		config.FenceTimeout = 2 * time.Second
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 2 * time.Second
	}

	o = &Orchestrator{device: device, targets: targets, graph: graph, config: config}

	var scope gpu.Scope
	defer func() {
		if err != nil {
			scope.Rollback()
			o = nil
		}
	}()

	for i := 0; i < config.FramesInFlight; i++ {
		s := &Slot{Index: i}

		cb, err := device.AllocateCommandBuffer()
		if err != nil {
			return nil, core.NewCreationError("command buffer", err)
		}
		s.CommandBuffer = gpu.Own(cb, device.FreeCommandBuffer)
		scope.Add(s.CommandBuffer.Release)

		available, err := device.CreateSemaphore()
		if err != nil {
			return nil, core.NewCreationError("image available semaphore", err)
		}
		s.ImageAvailable = gpu.Own(available, device.DestroySemaphore)
		scope.Add(s.ImageAvailable.Release)

		finished, err := device.CreateSemaphore()
		if err != nil {
			return nil, core.NewCreationError("render finished semaphore", err)
		}
		s.RenderFinished = gpu.Own(finished, device.DestroySemaphore)
		scope.Add(s.RenderFinished.Release)

		fence, err := device.CreateFence(true)
		if err != nil {
			return nil, core.NewCreationError("in flight fence", err)
		}
		s.InFlight = gpu.Own(fence, device.DestroyFence)
		scope.Add(s.InFlight.Release)

		o.slots = append(o.slots, s)
	}
	scope.Commit()
	return o, nil
}

// NotifyResize marks the render targets stale. Recreation happens after the
// next present. Safe to call from any goroutine.
func (o *Orchestrator) NotifyResize() {
	o.resizeGeneration.Add(1)
}

func (o *Orchestrator) resizePending() bool {
	return o.resizeGeneration.Load() != o.lastGeneration
}

func (o *Orchestrator) CurrentFrame() int {
	return o.currentFrame
}

func (o *Orchestrator) State() State {
	return o.state
}

// FrameNumber counts submitted frames.
func (o *Orchestrator) FrameNumber() uint64 {
	return o.frameNumber
}

func (o *Orchestrator) Recreations() uint64 {
	return o.recreations
}

func (o *Orchestrator) Slots() []*Slot {
	return o.slots
}

// Frame renders one logical frame of scene. Surface invalidation is absorbed
// by recreating the render targets; every other failure is returned and
// leaves the orchestrator failed.
func (o *Orchestrator) Frame(ctx context.Context, scene *metadata.SceneState) error {
	if o.failure != nil {
		return errors.Wrap(core.ErrRendererFailed, o.failure.Error())
	}
	slot := o.slots[o.currentFrame]

	o.state = StateWaitFence
	switch r := o.device.WaitForFence(slot.InFlight.Handle(), o.config.FenceTimeout); r {
	case gpu.Success:
	case gpu.Timeout:
		return o.fail(core.NewInvariantError("wait fence", errors.Wrapf(core.ErrFenceTimeout, "slot %d after %s", slot.Index, o.config.FenceTimeout)))
	default:
		return o.fail(core.NewDeviceError("wait fence", r))
	}

	o.state = StateAcquire
	imageIndex, r := o.device.AcquireNextImage(o.targets.Swapchain(), o.config.AcquireTimeout, slot.ImageAvailable.Handle())
	suboptimal := false
	switch r {
	case gpu.Success:
	case gpu.Suboptimal:
		suboptimal = true
	case gpu.OutOfDate:
		core.LogDebug("swapchain out of date on acquire at frame %d", o.frameNumber)
		return o.recreate(ctx)
	case gpu.Timeout:
		return o.fail(core.NewInvariantError("acquire", errors.Wrapf(core.ErrAcquireTimeout, "after %s", o.config.AcquireTimeout)))
	default:
		return o.fail(core.NewDeviceError("acquire", r))
	}

	o.state = StateRecordAndSubmit
	if err := o.graph.UpdateUniforms(slot.Index, scene); err != nil {
		return o.fail(err)
	}
	if err := o.device.ResetFence(slot.InFlight.Handle()); err != nil {
		return o.fail(core.NewDeviceError("reset fence", err))
	}
	if err := o.record(slot, imageIndex); err != nil {
		return o.fail(err)
	}
	if r := o.device.Submit(gpu.SubmitInfo{
		CommandBuffer: slot.CommandBuffer.Handle(),
		Wait:          slot.ImageAvailable.Handle(),
		WaitStage:     gpu.StageColorAttachmentOutput,
		Signal:        slot.RenderFinished.Handle(),
		Fence:         slot.InFlight.Handle(),
	}); r != gpu.Success {
		return o.fail(core.NewDeviceError("submit", r))
	}

	o.state = StatePresent
	r = o.device.Present(gpu.PresentInfo{
		Swapchain:  o.targets.Swapchain(),
		ImageIndex: imageIndex,
		Wait:       slot.RenderFinished.Handle(),
	})
	o.currentFrame = (o.currentFrame + 1) % len(o.slots)
	o.frameNumber++

	switch {
	case r == gpu.Success, r.IsSurfaceInvalid():
	default:
		return o.fail(core.NewDeviceError("present", r))
	}
	if r.IsSurfaceInvalid() || suboptimal || o.resizePending() {
		core.LogDebug("render targets stale after present (result %s, suboptimal acquire %t, resize %t)", r, suboptimal, o.resizePending())
		return o.recreate(ctx)
	}
	o.state = StateIdle
	return nil
}

func (o *Orchestrator) record(slot *Slot, imageIndex uint32) error {
	cb := slot.CommandBuffer.Handle()
	if err := o.device.ResetCommandBuffer(cb); err != nil {
		return core.NewDeviceError("reset command buffer", err)
	}
	if err := o.device.BeginCommandBuffer(cb); err != nil {
		return core.NewDeviceError("begin command buffer", err)
	}
	if err := o.graph.Record(cb, slot.Index, imageIndex); err != nil {
		return err
	}
	if err := o.device.EndCommandBuffer(cb); err != nil {
		return core.NewDeviceError("end command buffer", err)
	}
	return nil
}

func (o *Orchestrator) recreate(ctx context.Context) error {
	o.state = StateRecreating
	seen := o.resizeGeneration.Load()
	if err := o.targets.Recreate(ctx); err != nil {
		if ctx.Err() != nil {
			// shutting down while minimized
			o.state = StateIdle
			return err
		}
		return o.fail(err)
	}
	o.lastGeneration = seen
	o.recreations++
	o.state = StateIdle
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.state = StateFailed
	o.failure = err
	core.LogError("frame %d failed: %s", o.frameNumber, err)
	return err
}

// Destroy releases every slot. The device must be idle.
func (o *Orchestrator) Destroy() {
	for _, s := range o.slots {
		s.release()
	}
	o.slots = nil
}
