// Package gputest provides an in-memory gpu.Device that tracks object
// lifetimes, pending submissions and synchronization misuse. Tests drive it
// with scripted acquire and present results.
package gputest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

const (
	KindBuffer              = "buffer"
	KindImage               = "image"
	KindImageView           = "image-view"
	KindSampler             = "sampler"
	KindFramebuffer         = "framebuffer"
	KindRenderPass          = "render-pass"
	KindPipeline            = "pipeline"
	KindPipelineLayout      = "pipeline-layout"
	KindDescriptorSetLayout = "descriptor-set-layout"
	KindDescriptorPool      = "descriptor-pool"
	KindDescriptorSet       = "descriptor-set"
	KindSemaphore           = "semaphore"
	KindFence               = "fence"
	KindCommandBuffer       = "command-buffer"
	KindSwapchain           = "swapchain"
	KindSwapchainImage      = "swapchain-image"
)

// Submission is a recorded queue submission.
type Submission struct {
	Seq           int
	CommandBuffer gpu.CommandBuffer
	Fence         gpu.Fence
	Wait          gpu.Semaphore
	Signal        gpu.Semaphore
	Framebuffers  []gpu.Framebuffer
	RenderPasses  []gpu.RenderPass
	Sets          []gpu.DescriptorSet
	buffers       map[gpu.Buffer]struct{}
	images        map[gpu.ImageView]struct{}
}

// Command is one encoded command, kept for assertions on recording order.
type Command struct {
	Op          string
	RenderPass  gpu.RenderPass
	Framebuffer gpu.Framebuffer
	Pipeline    gpu.Pipeline
	Set         gpu.DescriptorSet
	Extent      gpu.Extent
	Count       uint32
	ClearValues []gpu.ClearValue
}

type recording struct {
	commands []Command
	buffers  map[gpu.Buffer]struct{}
	images   map[gpu.ImageView]struct{}
	sets     []gpu.DescriptorSet
	open     bool
}

// Device implements gpu.Device without a GPU.
type Device struct {
	mu sync.Mutex

	next      uint64
	live      map[uint64]string
	created   map[string]int
	destroyed map[string]int

	bufferData   map[gpu.Buffer][]byte
	imageInfo    map[gpu.Image]gpu.ImageInfo
	viewImage    map[gpu.ImageView]gpu.Image
	framebuffers map[gpu.Framebuffer]gpu.FramebufferInfo
	renderPasses map[gpu.RenderPass]gpu.RenderPassInfo
	pipelines    map[gpu.Pipeline]gpu.PipelineInfo
	setLayouts   map[gpu.DescriptorSetLayout][]gpu.DescriptorBinding
	poolSets     map[gpu.DescriptorPool][]gpu.DescriptorSet
	setWrites    map[gpu.DescriptorSet]map[uint32]gpu.DescriptorWrite
	swapchains   map[gpu.Swapchain]gpu.SwapchainImages
	uploads      map[gpu.Image]int

	fences     map[gpu.Fence]bool
	semaphores map[gpu.Semaphore]bool
	recordings map[gpu.CommandBuffer]*recording

	pending     []*Submission
	submissions []*Submission
	presents    []gpu.PresentInfo
	seq         int
	maxInFlight int
	waitIdle    int
	nextImage   uint32
	acquires    int

	violations []string
	failNext   map[string]int

	// Caps is returned by SurfaceCapabilities. CurrentExtent defaults to
	// gpu.UndefinedExtent so the window extent drives the swapchain size.
	Caps          gpu.SurfaceCapabilities
	Format        gpu.Format
	Depth         gpu.Format
	Samples       uint32
	AcquireScript []gpu.Result
	PresentScript []gpu.Result
	SubmitScript  []gpu.Result
	// HangFences makes waits on unsignaled fences time out instead of
	// completing the submission.
	HangFences bool
	// OnAcquire runs before every acquire with the 1-based call number,
	// outside the device lock.
	OnAcquire func(call int)
}

var _ gpu.Device = (*Device)(nil)

func NewDevice() *Device {
	return &Device{
		live:         map[uint64]string{},
		created:      map[string]int{},
		destroyed:    map[string]int{},
		bufferData:   map[gpu.Buffer][]byte{},
		imageInfo:    map[gpu.Image]gpu.ImageInfo{},
		viewImage:    map[gpu.ImageView]gpu.Image{},
		framebuffers: map[gpu.Framebuffer]gpu.FramebufferInfo{},
		renderPasses: map[gpu.RenderPass]gpu.RenderPassInfo{},
		pipelines:    map[gpu.Pipeline]gpu.PipelineInfo{},
		setLayouts:   map[gpu.DescriptorSetLayout][]gpu.DescriptorBinding{},
		poolSets:     map[gpu.DescriptorPool][]gpu.DescriptorSet{},
		setWrites:    map[gpu.DescriptorSet]map[uint32]gpu.DescriptorWrite{},
		swapchains:   map[gpu.Swapchain]gpu.SwapchainImages{},
		uploads:      map[gpu.Image]int{},
		fences:       map[gpu.Fence]bool{},
		semaphores:   map[gpu.Semaphore]bool{},
		recordings:   map[gpu.CommandBuffer]*recording{},
		failNext:     map[string]int{},
		Caps: gpu.SurfaceCapabilities{
			CurrentExtent: gpu.Extent{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
			MinExtent:     gpu.Extent{Width: 1, Height: 1},
			MaxExtent:     gpu.Extent{Width: 4096, Height: 4096},
			MinImageCount: 2,
			MaxImageCount: 3,
		},
		Format:  gpu.FormatB8G8R8A8Srgb,
		Depth:   gpu.FormatD32Sfloat,
		Samples: 4,
	}
}

// bookkeeping

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) alloc(kind string) (uint64, error) {
	if n := d.failNext[kind]; n > 0 {
		d.failNext[kind] = n - 1
		return 0, errors.Errorf("injected %s creation failure", kind)
	}
	d.next++
	d.live[d.next] = kind
	d.created[kind]++
	return d.next, nil
}

func (d *Device) free(kind string, h uint64) bool {
	if h == 0 {
		d.violate("destroy of null %s", kind)
		return false
	}
	got, ok := d.live[h]
	if !ok {
		d.violate("destroy of unknown or already destroyed %s %d", kind, h)
		return false
	}
	if got != kind {
		d.violate("destroy of %s %d as %s", got, h, kind)
		return false
	}
	delete(d.live, h)
	d.destroyed[kind]++
	return true
}

func (d *Device) alive(kind string, h uint64) bool {
	return h != 0 && d.live[h] == kind
}

func (d *Device) destroyWhilePending(kind string, h uint64) {
	if len(d.pending) > 0 {
		d.violate("%s %d destroyed with %d submissions pending", kind, h, len(d.pending))
	}
}

func (d *Device) pendingUsesBuffer(b gpu.Buffer) bool {
	for _, s := range d.pending {
		if _, ok := s.buffers[b]; ok {
			return true
		}
	}
	return false
}

func (d *Device) pendingUsesSet(set gpu.DescriptorSet) bool {
	for _, s := range d.pending {
		for _, used := range s.Sets {
			if used == set {
				return true
			}
		}
	}
	return false
}

func (d *Device) pendingUsesCommandBuffer(cb gpu.CommandBuffer) bool {
	for _, s := range d.pending {
		if s.CommandBuffer == cb {
			return true
		}
	}
	return false
}

func (d *Device) complete(upTo int) {
	for len(d.pending) > 0 && d.pending[0].Seq <= upTo {
		s := d.pending[0]
		d.pending = d.pending[1:]
		if s.Fence != 0 {
			d.fences[s.Fence] = true
		}
	}
}

// FailNext makes the next n creations of kind fail.
func (d *Device) FailNext(kind string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext[kind] += n
}

// Violations returns every synchronization or lifetime misuse observed.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

func (d *Device) Destroyed(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed[kind]
}

func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// Leaks lists live objects by kind. Objects owned by a live parent, such as
// descriptor sets and swapchain images, are not reported on their own.
func (d *Device) Leaks() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[string]int{}
	for _, k := range d.live {
		if k == KindDescriptorSet || k == KindSwapchainImage {
			continue
		}
		out[k]++
	}
	return out
}

// LeakReport renders Leaks in a stable order.
func (d *Device) LeakReport() string {
	leaks := d.Leaks()
	kinds := make([]string, 0, len(leaks))
	for k := range leaks {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	report := ""
	for _, k := range kinds {
		report += fmt.Sprintf("%s=%d ", k, leaks[k])
	}
	return report
}

func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// MaxInFlight is the highest number of submissions pending at once.
func (d *Device) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight
}

func (d *Device) Submissions() []*Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Submission(nil), d.submissions...)
}

func (d *Device) Presents() []gpu.PresentInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.PresentInfo(nil), d.presents...)
}

func (d *Device) WaitIdleCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitIdle
}

func (d *Device) Acquires() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquires
}

func (d *Device) FenceSignaled(f gpu.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[f]
}

func (d *Device) BufferData(b gpu.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.bufferData[b]...)
}

func (d *Device) ImageInfo(img gpu.Image) (gpu.ImageInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.imageInfo[img]
	return info, ok
}

// ViewImage returns the image a view was created for.
func (d *Device) ViewImage(v gpu.ImageView) gpu.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewImage[v]
}

func (d *Device) ViewAlive(v gpu.ImageView) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive(KindImageView, uint64(v))
}

func (d *Device) FramebufferInfo(fb gpu.Framebuffer) (gpu.FramebufferInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.framebuffers[fb]
	return info, ok
}

func (d *Device) RenderPassInfo(rp gpu.RenderPass) (gpu.RenderPassInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.renderPasses[rp]
	return info, ok
}

func (d *Device) PipelineInfo(p gpu.Pipeline) (gpu.PipelineInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.pipelines[p]
	return info, ok
}

func (d *Device) SetLayoutBindings(l gpu.DescriptorSetLayout) []gpu.DescriptorBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.DescriptorBinding(nil), d.setLayouts[l]...)
}

// Written returns the last write applied to a binding of set.
func (d *Device) Written(set gpu.DescriptorSet, binding uint32) (gpu.DescriptorWrite, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.setWrites[set][binding]
	return w, ok
}

// CommandsOf returns what was recorded into cb since its last reset.
func (d *Device) CommandsOf(cb gpu.CommandBuffer) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.recordings[cb]
	if r == nil {
		return nil
	}
	return append([]Command(nil), r.commands...)
}

func (d *Device) Uploads(img gpu.Image) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads[img]
}

// ResourceAllocator

func (d *Device) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Size == 0 {
		return 0, errors.Errorf("buffer %q has zero size", info.Name)
	}
	h, err := d.alloc(KindBuffer)
	if err != nil {
		return 0, err
	}
	b := gpu.Buffer(h)
	d.bufferData[b] = make([]byte, info.Size)
	return b, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingUsesBuffer(b) {
		d.violate("buffer %d destroyed while in use by a pending submission", b)
	}
	if d.free(KindBuffer, uint64(b)) {
		delete(d.bufferData, b)
	}
}

func (d *Device) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.bufferData[b]
	if !ok {
		return errors.Errorf("write to unknown buffer %d", b)
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return errors.Errorf("write of %d bytes at %d overflows buffer %d of %d bytes", len(data), offset, b, len(mem))
	}
	if d.pendingUsesBuffer(b) {
		d.violate("buffer %d written while in use by a pending submission", b)
	}
	copy(mem[offset:], data)
	return nil
}

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Extent.IsZero() {
		d.violate("image %q created with extent %s", info.Name, info.Extent)
		return 0, errors.Errorf("image %q has zero extent", info.Name)
	}
	h, err := d.alloc(KindImage)
	if err != nil {
		return 0, err
	}
	img := gpu.Image(h)
	d.imageInfo[img] = info
	return img, nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindImage, uint64(img))
	if d.free(KindImage, uint64(img)) {
		delete(d.imageInfo, img)
	}
}

func (d *Device) CreateImageView(img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(KindImage, uint64(img)) && !d.alive(KindSwapchainImage, uint64(img)) {
		return 0, errors.Errorf("view of unknown image %d", img)
	}
	h, err := d.alloc(KindImageView)
	if err != nil {
		return 0, err
	}
	v := gpu.ImageView(h)
	d.viewImage[v] = img
	return v, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindImageView, uint64(v))
	d.free(KindImageView, uint64(v))
}

func (d *Device) UploadImage(img gpu.Image, extent gpu.Extent, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(KindImage, uint64(img)) {
		return errors.Errorf("upload to unknown image %d", img)
	}
	if want := int(extent.Width) * int(extent.Height) * 4; len(pixels) != want {
		return errors.Errorf("upload of %d bytes to %s image, want %d", len(pixels), extent, want)
	}
	d.uploads[img]++
	return nil
}

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.alloc(KindSampler)
	return gpu.Sampler(h), err
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindSampler, uint64(s))
	d.free(KindSampler, uint64(s))
}

// PassFactory

func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.alloc(KindRenderPass)
	if err != nil {
		return 0, err
	}
	rp := gpu.RenderPass(h)
	d.renderPasses[rp] = info
	return rp, nil
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindRenderPass, uint64(rp))
	d.free(KindRenderPass, uint64(rp))
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(KindRenderPass, uint64(info.RenderPass)) {
		return 0, errors.Errorf("framebuffer %q for unknown render pass %d", info.Name, info.RenderPass)
	}
	for _, v := range info.Attachments {
		if !d.alive(KindImageView, uint64(v)) {
			d.violate("framebuffer %q references dead image view %d", info.Name, v)
			return 0, errors.Errorf("framebuffer %q references dead image view %d", info.Name, v)
		}
	}
	if rp := d.renderPasses[info.RenderPass]; len(rp.Attachments) != len(info.Attachments) {
		return 0, errors.Errorf("framebuffer %q has %d attachments, render pass wants %d", info.Name, len(info.Attachments), len(rp.Attachments))
	}
	h, err := d.alloc(KindFramebuffer)
	if err != nil {
		return 0, err
	}
	fb := gpu.Framebuffer(h)
	d.framebuffers[fb] = info
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindFramebuffer, uint64(fb))
	if d.free(KindFramebuffer, uint64(fb)) {
		delete(d.framebuffers, fb)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.alloc(KindDescriptorSetLayout)
	if err != nil {
		return 0, err
	}
	l := gpu.DescriptorSetLayout(h)
	d.setLayouts[l] = append([]gpu.DescriptorBinding(nil), bindings...)
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(KindDescriptorSetLayout, uint64(l))
}

func (d *Device) CreatePipeline(info gpu.PipelineInfo) (gpu.Pipeline, gpu.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(info.VertexShader) == 0 || len(info.FragmentShader) == 0 {
		return 0, 0, errors.Errorf("pipeline %q is missing shader code", info.Name)
	}
	lh, err := d.alloc(KindPipelineLayout)
	if err != nil {
		return 0, 0, err
	}
	ph, err := d.alloc(KindPipeline)
	if err != nil {
		d.free(KindPipelineLayout, lh)
		return 0, 0, err
	}
	p := gpu.Pipeline(ph)
	d.pipelines[p] = info
	return p, gpu.PipelineLayout(lh), nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline, l gpu.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindPipeline, uint64(p))
	d.free(KindPipeline, uint64(p))
	d.free(KindPipelineLayout, uint64(l))
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if maxSets == 0 {
		return 0, errors.New("descriptor pool with zero sets")
	}
	h, err := d.alloc(KindDescriptorPool)
	return gpu.DescriptorPool(h), err
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindDescriptorPool, uint64(p))
	if d.free(KindDescriptorPool, uint64(p)) {
		for _, s := range d.poolSets[p] {
			d.free(KindDescriptorSet, uint64(s))
			delete(d.setWrites, s)
		}
		delete(d.poolSets, p)
	}
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(KindDescriptorPool, uint64(pool)) || !d.alive(KindDescriptorSetLayout, uint64(layout)) {
		return 0, errors.New("descriptor set from unknown pool or layout")
	}
	h, err := d.alloc(KindDescriptorSet)
	if err != nil {
		return 0, err
	}
	s := gpu.DescriptorSet(h)
	d.poolSets[pool] = append(d.poolSets[pool], s)
	d.setWrites[s] = map[uint32]gpu.DescriptorWrite{}
	return s, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		if _, ok := d.setWrites[w.Set]; !ok {
			return errors.Wrapf(core.ErrUnknownHandle, "descriptor set %d", w.Set)
		}
		for _, v := range w.Images {
			if !d.alive(KindImageView, uint64(v)) {
				return errors.Wrapf(core.ErrUnknownHandle, "set %d binding %d: image view %d", w.Set, w.Binding, v)
			}
		}
		if w.Type == gpu.DescriptorUniformBuffer && !d.alive(KindBuffer, uint64(w.Buffer.Buffer)) {
			return errors.Wrapf(core.ErrUnknownHandle, "set %d binding %d: buffer %d", w.Set, w.Binding, w.Buffer.Buffer)
		}
	}
	for _, w := range writes {
		if d.pendingUsesSet(w.Set) {
			d.violate("descriptor set %d updated while in use by a pending submission", w.Set)
		}
		w.Images = append([]gpu.ImageView(nil), w.Images...)
		d.setWrites[w.Set][w.Binding] = w
	}
	return nil
}

// Presenter

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Caps, nil
}

func (d *Device) SurfaceFormat() (gpu.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Format, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.SwapchainImages, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Extent.IsZero() {
		d.violate("swapchain created with extent %s", info.Extent)
		return gpu.SwapchainImages{}, errors.Errorf("swapchain extent %s", info.Extent)
	}
	if info.ImageCount == 0 {
		return gpu.SwapchainImages{}, errors.New("swapchain with zero images")
	}
	if info.Old != 0 && !d.alive(KindSwapchain, uint64(info.Old)) {
		d.violate("swapchain retires dead swapchain %d", info.Old)
	}
	h, err := d.alloc(KindSwapchain)
	if err != nil {
		return gpu.SwapchainImages{}, err
	}
	out := gpu.SwapchainImages{Handle: gpu.Swapchain(h), Format: info.Format, Extent: info.Extent}
	for i := uint32(0); i < info.ImageCount; i++ {
		ih, _ := d.alloc(KindSwapchainImage)
		out.Images = append(out.Images, gpu.Image(ih))
	}
	d.swapchains[out.Handle] = out
	d.nextImage = 0
	return out, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindSwapchain, uint64(sc))
	if d.free(KindSwapchain, uint64(sc)) {
		for _, img := range d.swapchains[sc].Images {
			d.free(KindSwapchainImage, uint64(img))
		}
		delete(d.swapchains, sc)
	}
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.Result) {
	d.mu.Lock()
	d.acquires++
	call := d.acquires
	hook := d.OnAcquire
	d.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		d.violate("acquire from unknown swapchain %d", sc)
		return 0, gpu.ErrorSurfaceLost
	}
	result := gpu.Success
	if len(d.AcquireScript) > 0 {
		result = d.AcquireScript[0]
		d.AcquireScript = d.AcquireScript[1:]
	}
	if result != gpu.Success && result != gpu.Suboptimal {
		return 0, result
	}
	if d.semaphores[signal] {
		d.violate("acquire signals semaphore %d that is already signaled", signal)
	}
	d.semaphores[signal] = true
	idx := d.nextImage % uint32(len(chain.Images))
	d.nextImage++
	return idx, result
}

func (d *Device) Present(info gpu.PresentInfo) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[info.Swapchain]
	if !ok {
		d.violate("present to unknown swapchain %d", info.Swapchain)
		return gpu.ErrorSurfaceLost
	}
	if info.ImageIndex >= uint32(len(chain.Images)) {
		d.violate("present of image %d out of %d", info.ImageIndex, len(chain.Images))
	}
	if !d.semaphores[info.Wait] {
		d.violate("present waits on unsignaled semaphore %d", info.Wait)
	}
	d.semaphores[info.Wait] = false
	d.presents = append(d.presents, info)
	if len(d.PresentScript) > 0 {
		r := d.PresentScript[0]
		d.PresentScript = d.PresentScript[1:]
		return r
	}
	return gpu.Success
}

// Sync

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.alloc(KindSemaphore)
	return gpu.Semaphore(h), err
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindSemaphore, uint64(s))
	if d.free(KindSemaphore, uint64(s)) {
		delete(d.semaphores, s)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.alloc(KindFence)
	if err != nil {
		return 0, err
	}
	f := gpu.Fence(h)
	d.fences[f] = signaled
	return f, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyWhilePending(KindFence, uint64(f))
	if d.free(KindFence, uint64(f)) {
		delete(d.fences, f)
	}
}

func (d *Device) WaitForFence(f gpu.Fence, timeout time.Duration) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	signaled, ok := d.fences[f]
	if !ok {
		d.violate("wait on unknown fence %d", f)
		return gpu.ErrorUnknown
	}
	if signaled {
		return gpu.Success
	}
	if d.HangFences {
		return gpu.Timeout
	}
	for _, s := range d.pending {
		if s.Fence == f {
			d.complete(s.Seq)
			return gpu.Success
		}
	}
	// unsignaled with nothing pending never signals
	return gpu.Timeout
}

func (d *Device) ResetFence(f gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[f]; !ok {
		return errors.Errorf("reset of unknown fence %d", f)
	}
	for _, s := range d.pending {
		if s.Fence == f {
			d.violate("fence %d reset while its submission is pending", f)
		}
	}
	d.fences[f] = false
	return nil
}

// Recorder

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.alloc(KindCommandBuffer)
	if err != nil {
		return 0, err
	}
	cb := gpu.CommandBuffer(h)
	d.recordings[cb] = newRecording()
	return cb, nil
}

func newRecording() *recording {
	return &recording{buffers: map[gpu.Buffer]struct{}{}, images: map[gpu.ImageView]struct{}{}}
}

func (d *Device) FreeCommandBuffer(cb gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingUsesCommandBuffer(cb) {
		d.violate("command buffer %d freed while pending", cb)
	}
	if d.free(KindCommandBuffer, uint64(cb)) {
		delete(d.recordings, cb)
	}
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.recordings[cb]; !ok {
		return errors.Errorf("reset of unknown command buffer %d", cb)
	}
	if d.pendingUsesCommandBuffer(cb) {
		d.violate("command buffer %d reset while its submission is pending", cb)
	}
	d.recordings[cb] = newRecording()
	return nil
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.recordings[cb]
	if !ok {
		return errors.Errorf("begin of unknown command buffer %d", cb)
	}
	if d.pendingUsesCommandBuffer(cb) {
		d.violate("command buffer %d begun while its submission is pending", cb)
	}
	r.open = true
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.recordings[cb]
	if !ok || !r.open {
		return errors.Errorf("end of command buffer %d that is not recording", cb)
	}
	r.open = false
	return nil
}

func (d *Device) record(cb gpu.CommandBuffer, c Command) *recording {
	r, ok := d.recordings[cb]
	if !ok || !r.open {
		d.violate("%s recorded into command buffer %d that is not recording", c.Op, cb)
		return newRecording()
	}
	r.commands = append(r.commands, c)
	return r
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fb, ok := d.framebuffers[begin.Framebuffer]
	if !ok {
		d.violate("render pass begun on dead framebuffer %d", begin.Framebuffer)
	} else {
		if fb.RenderPass != begin.RenderPass {
			d.violate("framebuffer %d is not compatible with render pass %d", begin.Framebuffer, begin.RenderPass)
		}
		if fb.Extent != begin.Extent {
			d.violate("render area %s does not match framebuffer %s", begin.Extent, fb.Extent)
		}
	}
	r := d.record(cb, Command{
		Op:          "begin-render-pass",
		RenderPass:  begin.RenderPass,
		Framebuffer: begin.Framebuffer,
		Extent:      begin.Extent,
		ClearValues: append([]gpu.ClearValue(nil), begin.ClearValues...),
	})
	for _, v := range fb.Attachments {
		r.images[v] = struct{}{}
	}
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, Command{Op: "end-render-pass"})
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive(KindPipeline, uint64(p)) {
		d.violate("bind of dead pipeline %d", p)
	}
	d.record(cb, Command{Op: "bind-pipeline", Pipeline: p})
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, extent gpu.Extent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, Command{Op: "set-viewport", Extent: extent})
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.record(cb, Command{Op: "bind-vertex-buffer"})
	r.buffers[b] = struct{}{}
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.record(cb, Command{Op: "bind-index-buffer"})
	r.buffers[b] = struct{}{}
}

func (d *Device) CmdBindDescriptorSet(cb gpu.CommandBuffer, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	writes, ok := d.setWrites[set]
	if !ok {
		d.violate("bind of unknown descriptor set %d", set)
	}
	r := d.record(cb, Command{Op: "bind-descriptor-set", Set: set})
	r.sets = append(r.sets, set)
	for _, w := range writes {
		if w.Type == gpu.DescriptorUniformBuffer {
			r.buffers[w.Buffer.Buffer] = struct{}{}
		}
		for _, v := range w.Images {
			r.images[v] = struct{}{}
		}
	}
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, Command{Op: "draw-indexed", Count: indexCount})
}

// Queue

func (d *Device) Submit(info gpu.SubmitInfo) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.SubmitScript) > 0 {
		r := d.SubmitScript[0]
		d.SubmitScript = d.SubmitScript[1:]
		if r != gpu.Success {
			return r
		}
	}
	r, ok := d.recordings[info.CommandBuffer]
	if !ok {
		d.violate("submit of unknown command buffer %d", info.CommandBuffer)
		return gpu.ErrorUnknown
	}
	if r.open {
		d.violate("submit of command buffer %d that is still recording", info.CommandBuffer)
	}
	if info.Fence != 0 && d.fences[info.Fence] {
		d.violate("submit with fence %d that is still signaled", info.Fence)
	}
	if info.Wait != 0 {
		if !d.semaphores[info.Wait] {
			d.violate("submit waits on unsignaled semaphore %d", info.Wait)
		}
		d.semaphores[info.Wait] = false
	}
	if info.Signal != 0 {
		if d.semaphores[info.Signal] {
			d.violate("submit signals semaphore %d that is already signaled", info.Signal)
		}
		d.semaphores[info.Signal] = true
	}
	for v := range r.images {
		if !d.alive(KindImageView, uint64(v)) {
			d.violate("submission references dead image view %d", v)
		}
	}

	d.seq++
	s := &Submission{
		Seq:           d.seq,
		CommandBuffer: info.CommandBuffer,
		Fence:         info.Fence,
		Wait:          info.Wait,
		Signal:        info.Signal,
		Sets:          append([]gpu.DescriptorSet(nil), r.sets...),
		buffers:       map[gpu.Buffer]struct{}{},
		images:        map[gpu.ImageView]struct{}{},
	}
	for b := range r.buffers {
		s.buffers[b] = struct{}{}
	}
	for v := range r.images {
		s.images[v] = struct{}{}
	}
	for _, c := range r.commands {
		if c.Op == "begin-render-pass" {
			s.Framebuffers = append(s.Framebuffers, c.Framebuffer)
			s.RenderPasses = append(s.RenderPasses, c.RenderPass)
		}
	}
	d.pending = append(d.pending, s)
	d.submissions = append(d.submissions, s)
	if len(d.pending) > d.maxInFlight {
		d.maxInFlight = len(d.pending)
	}
	return gpu.Success
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdle++
	d.complete(d.seq)
	return nil
}

func (d *Device) DepthFormat() gpu.Format {
	return d.Depth
}

func (d *Device) MaxSamples() uint32 {
	return d.Samples
}
