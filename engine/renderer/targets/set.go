// Package targets owns every extent-dependent GPU object: the swapchain and
// its views, the offscreen color, depth and resolve images, and the
// framebuffers of both passes. They are destroyed and rebuilt together.
package targets

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/math"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// Surface is the window side of the swapchain.
type Surface interface {
	// FramebufferExtent is the drawable size in pixels. It is zero while the
	// window is minimized.
	FramebufferExtent() gpu.Extent
	WaitEventsTimeout(timeout time.Duration)
}

type Device interface {
	gpu.ResourceAllocator
	gpu.PassFactory
	gpu.Presenter
	WaitIdle() error
}

// SceneColorFormat is the offscreen color format when Config leaves it
// unset. The post-process pass tone maps it into the swapchain format.
const SceneColorFormat = gpu.FormatR16G16B16A16Sfloat

type Config struct {
	Samples       uint32
	ColorFormat   gpu.Format
	DepthFormat   gpu.Format
	PresentMode   gpu.PresentMode
	MinimizedPoll time.Duration
}

// Passes are the render passes the framebuffers are created against.
type Passes struct {
	Geometry    gpu.RenderPass
	PostProcess gpu.RenderPass
}

// Rebinder re-establishes bindings that refer to the set's views. It runs
// after every rebuild with the new generation.
type Rebinder func(generation uint64) error

type SurfaceImage struct {
	Image       gpu.Image
	View        gpu.OwnedImageView
	Framebuffer gpu.OwnedFramebuffer
}

// Offscreen is the geometry pass target. Color and Depth are multisampled;
// Resolve is single-sampled and read by the post-process pass. Color is
// left empty when rendering with a single sample.
type Offscreen struct {
	Color       gpu.OwnedImage
	ColorView   gpu.OwnedImageView
	Depth       gpu.OwnedImage
	DepthView   gpu.OwnedImageView
	Resolve     gpu.OwnedImage
	ResolveView gpu.OwnedImageView
	Framebuffer gpu.OwnedFramebuffer
}

type Set struct {
	device  Device
	surface Surface
	config  Config
	passes  Passes

	format     gpu.Format
	extent     gpu.Extent
	swapchain  gpu.OwnedSwapchain
	images     []*SurfaceImage
	offscreen  *Offscreen
	generation uint64
	rebinders  []Rebinder
	built      bool
}

func New(device Device, surface Surface, config Config) (*Set, error) {
	format, err := device.SurfaceFormat()
	if err != nil {
		return nil, core.NewCreationError("surface format", err)
	}
	if config.Samples == 0 {
		config.Samples = 1
	}
	if config.ColorFormat == gpu.FormatUndefined {
		config.ColorFormat = SceneColorFormat
	}
	if config.MinimizedPoll <= 0 {
		config.MinimizedPoll = 50 * time.Millisecond
	}
	return &Set{device: device, surface: surface, config: config, format: format}, nil
}

// Format is the swapchain image format.
func (s *Set) Format() gpu.Format {
	return s.format
}

func (s *Set) ColorFormat() gpu.Format {
	return s.config.ColorFormat
}

func (s *Set) DepthFormat() gpu.Format {
	return s.config.DepthFormat
}

func (s *Set) Samples() uint32 {
	return s.config.Samples
}

// Build creates the first generation of targets for passes.
func (s *Set) Build(ctx context.Context, passes Passes) error {
	if s.built {
		return core.NewInvariantError("targets build", errors.New("render targets already built"))
	}
	s.passes = passes
	extent, caps, err := s.waitForExtent(ctx)
	if err != nil {
		return err
	}
	if err := s.build(extent, caps, 0); err != nil {
		return err
	}
	s.built = true
	s.generation = 1
	core.LogInfo("render targets created at %s with %d swapchain images (generation %d)", s.extent, len(s.images), s.generation)
	return nil
}

// Recreate tears every target down and rebuilds it for the current window
// size. It blocks while the window is minimized and waits for the device to
// go idle before destroying anything.
func (s *Set) Recreate(ctx context.Context) error {
	if !s.built {
		return core.NewInvariantError("targets recreate", errors.New("render targets not built"))
	}
	extent, caps, err := s.waitForExtent(ctx)
	if err != nil {
		return err
	}
	if err := s.device.WaitIdle(); err != nil {
		return core.NewDeviceError("wait idle", err)
	}

	s.destroyDependents()
	old := s.swapchain
	if err := s.build(extent, caps, old.Handle()); err != nil {
		s.swapchain.Release()
		s.built = false
		return err
	}
	old.Release()

	s.generation++
	core.LogInfo("render targets recreated at %s (generation %d)", s.extent, s.generation)
	for _, rebind := range s.rebinders {
		if err := rebind(s.generation); err != nil {
			return err
		}
	}
	return nil
}

// AddRebinder registers fn to run after every recreation.
func (s *Set) AddRebinder(fn Rebinder) {
	s.rebinders = append(s.rebinders, fn)
}

// Generation increases by one each time the targets are rebuilt.
func (s *Set) Generation() uint64 {
	return s.generation
}

func (s *Set) Extent() gpu.Extent {
	return s.extent
}

func (s *Set) Swapchain() gpu.Swapchain {
	return s.swapchain.Handle()
}

func (s *Set) ImageCount() int {
	return len(s.images)
}

// ResolveView is the view of the single-sampled geometry output.
func (s *Set) ResolveView() gpu.ImageView {
	if s.offscreen == nil {
		return 0
	}
	return s.offscreen.ResolveView.Handle()
}

func (s *Set) GeometryFramebuffer() gpu.Framebuffer {
	if s.offscreen == nil {
		return 0
	}
	return s.offscreen.Framebuffer.Handle()
}

// PostFramebuffer is the post-process framebuffer of swapchain image i.
func (s *Set) PostFramebuffer(i uint32) (gpu.Framebuffer, error) {
	if int(i) >= len(s.images) {
		return 0, core.NewInvariantError("post framebuffer", errors.Errorf("image index %d out of %d", i, len(s.images)))
	}
	return s.images[i].Framebuffer.Handle(), nil
}

// Framebuffers returns every framebuffer of the current generation.
func (s *Set) Framebuffers() []gpu.Framebuffer {
	var out []gpu.Framebuffer
	if s.offscreen != nil {
		out = append(out, s.offscreen.Framebuffer.Handle())
	}
	for _, img := range s.images {
		out = append(out, img.Framebuffer.Handle())
	}
	return out
}

// Destroy releases every target. The caller waits for the device to go idle.
func (s *Set) Destroy() {
	s.destroyDependents()
	s.swapchain.Release()
	s.built = false
}

func (s *Set) waitForExtent(ctx context.Context) (gpu.Extent, gpu.SurfaceCapabilities, error) {
	for {
		caps, err := s.device.SurfaceCapabilities()
		if err != nil {
			return gpu.Extent{}, caps, core.NewDeviceError("surface capabilities", err)
		}
		extent := ChooseExtent(caps, s.surface.FramebufferExtent())
		if !extent.IsZero() {
			return extent, caps, nil
		}
		if err := ctx.Err(); err != nil {
			return gpu.Extent{}, caps, err
		}
		s.surface.WaitEventsTimeout(s.config.MinimizedPoll)
	}
}

// ChooseExtent picks the swapchain size. The surface decides unless it
// reports an undefined extent, in which case the window size is clamped to
// the surface limits. A minimized window always yields a zero extent.
func ChooseExtent(caps gpu.SurfaceCapabilities, window gpu.Extent) gpu.Extent {
	if window.IsZero() {
		return gpu.Extent{}
	}
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent{
		Width:  math.Clamp(window.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: math.Clamp(window.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum.
func ChooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func (s *Set) build(extent gpu.Extent, caps gpu.SurfaceCapabilities, old gpu.Swapchain) error {
	var scope gpu.Scope
	dev := s.device

	chain, err := dev.CreateSwapchain(gpu.SwapchainInfo{
		Extent:      extent,
		ImageCount:  ChooseImageCount(caps),
		Format:      s.format,
		PresentMode: s.config.PresentMode,
		Old:         old,
	})
	if err != nil {
		return core.NewCreationError("swapchain", err)
	}
	swapchain := gpu.Own(chain.Handle, dev.DestroySwapchain)
	scope.Add(swapchain.Release)

	images := make([]*SurfaceImage, 0, len(chain.Images))
	for _, img := range chain.Images {
		view, err := dev.CreateImageView(img, chain.Format)
		if err != nil {
			scope.Rollback()
			return core.NewCreationError("swapchain image view", err)
		}
		si := &SurfaceImage{Image: img, View: gpu.Own(view, dev.DestroyImageView)}
		scope.Add(si.View.Release)
		images = append(images, si)
	}

	off, err := s.buildOffscreen(&scope, chain.Extent)
	if err != nil {
		scope.Rollback()
		return err
	}

	for _, si := range images {
		fb, err := dev.CreateFramebuffer(gpu.FramebufferInfo{
			Name:        core.DebugName("post-framebuffer"),
			RenderPass:  s.passes.PostProcess,
			Attachments: []gpu.ImageView{si.View.Handle()},
			Extent:      chain.Extent,
		})
		if err != nil {
			scope.Rollback()
			return core.NewCreationError("post framebuffer", err)
		}
		si.Framebuffer = gpu.Own(fb, dev.DestroyFramebuffer)
		scope.Add(si.Framebuffer.Release)
	}

	scope.Commit()
	s.swapchain = swapchain
	s.images = images
	s.offscreen = off
	s.extent = chain.Extent
	if chain.Format != gpu.FormatUndefined {
		s.format = chain.Format
	}
	return nil
}

func (s *Set) buildOffscreen(scope *gpu.Scope, extent gpu.Extent) (*Offscreen, error) {
	dev := s.device
	off := &Offscreen{}

	image := func(kind string, format gpu.Format, samples uint32, usage gpu.ImageUsage, img *gpu.OwnedImage, view *gpu.OwnedImageView) error {
		h, err := dev.CreateImage(gpu.ImageInfo{
			Name:    core.DebugName(kind),
			Extent:  extent,
			Format:  format,
			Samples: samples,
			Usage:   usage,
		})
		if err != nil {
			return core.NewCreationError(kind+" image", err)
		}
		*img = gpu.Own(h, dev.DestroyImage)
		scope.Add(img.Release)

		v, err := dev.CreateImageView(h, format)
		if err != nil {
			return core.NewCreationError(kind+" image view", err)
		}
		*view = gpu.Own(v, dev.DestroyImageView)
		scope.Add(view.Release)
		return nil
	}

	color := s.config.ColorFormat
	multisampled := s.config.Samples > 1
	if multisampled {
		if err := image("msaa-color", color, s.config.Samples, gpu.ImageUsageColorAttachment|gpu.ImageUsageTransient, &off.Color, &off.ColorView); err != nil {
			return nil, err
		}
	}
	if err := image("depth", s.config.DepthFormat, s.config.Samples, gpu.ImageUsageDepthStencilAttachment, &off.Depth, &off.DepthView); err != nil {
		return nil, err
	}
	if err := image("resolve", color, 1, gpu.ImageUsageColorAttachment|gpu.ImageUsageSampled, &off.Resolve, &off.ResolveView); err != nil {
		return nil, err
	}

	// Without multisampling the geometry pass renders straight into the
	// resolve image.
	attachments := []gpu.ImageView{off.ResolveView.Handle(), off.DepthView.Handle()}
	if multisampled {
		attachments = []gpu.ImageView{off.ColorView.Handle(), off.DepthView.Handle(), off.ResolveView.Handle()}
	}
	fb, err := dev.CreateFramebuffer(gpu.FramebufferInfo{
		Name:        core.DebugName("geometry-framebuffer"),
		RenderPass:  s.passes.Geometry,
		Attachments: attachments,
		Extent:      extent,
	})
	if err != nil {
		return nil, core.NewCreationError("geometry framebuffer", err)
	}
	off.Framebuffer = gpu.Own(fb, dev.DestroyFramebuffer)
	scope.Add(off.Framebuffer.Release)
	return off, nil
}

// destroyDependents releases everything except the swapchain itself:
// framebuffers first, then views, then images.
func (s *Set) destroyDependents() {
	for _, si := range s.images {
		si.Framebuffer.Release()
	}
	if off := s.offscreen; off != nil {
		off.Framebuffer.Release()
		off.ResolveView.Release()
		off.DepthView.Release()
		off.ColorView.Release()
		off.Resolve.Release()
		off.Depth.Release()
		off.Color.Release()
	}
	for _, si := range s.images {
		si.View.Release()
	}
	s.images = nil
	s.offscreen = nil
}
