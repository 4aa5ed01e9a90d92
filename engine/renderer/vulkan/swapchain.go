package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// SurfaceCapabilities queries the surface again; the cached support info
// goes stale as soon as the window is resized.
func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	if err := querySwapchainSupport(d.PhysicalDevice, d.Surface, &d.SwapchainSupport); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps := d.SwapchainSupport.Capabilities
	return gpu.SurfaceCapabilities{
		CurrentExtent: gpuExtent(caps.CurrentExtent),
		MinExtent:     gpuExtent(caps.MinImageExtent),
		MaxExtent:     gpuExtent(caps.MaxImageExtent),
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
	}, nil
}

// SurfaceFormat picks the presentable color format. sRGB BGRA is preferred,
// then UNORM BGRA, then the first format the renderer knows.
func (d *Device) SurfaceFormat() (gpu.Format, error) {
	formats := d.SwapchainSupport.Formats
	if len(formats) == 0 {
		return gpu.FormatUndefined, fmt.Errorf("surface reports no formats")
	}
	for _, want := range []vk.Format{vk.FormatB8g8r8a8Srgb, vk.FormatB8g8r8a8Unorm} {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return gpuFormat(f.Format), nil
			}
		}
	}
	for _, f := range formats {
		if gf := gpuFormat(f.Format); gf != gpu.FormatUndefined {
			return gf, nil
		}
	}
	return gpu.FormatUndefined, fmt.Errorf("no supported surface format among %d", len(formats))
}

func (d *Device) supportsPresentMode(mode vk.PresentMode) bool {
	for _, m := range d.SwapchainSupport.PresentModes {
		if m == mode {
			return true
		}
	}
	return false
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.SwapchainImages, error) {
	presentMode := vkPresentMode(info.PresentMode)
	if !d.supportsPresentMode(presentMode) {
		core.LogWarn("present mode %s not supported, falling back to fifo", info.PresentMode)
		presentMode = vk.PresentModeFifo
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.Surface,
		MinImageCount:    info.ImageCount,
		ImageFormat:      vkFormat(info.Format),
		ImageColorSpace:  vk.ColorSpaceSrgbNonlinear,
		ImageExtent:      vkExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     d.SwapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	// Setup the queue family indices
	if d.GraphicsQueueIndex != d.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{d.GraphicsQueueIndex, d.PresentQueueIndex}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if info.Old != 0 {
		old, ok := d.swapchains.get(uint64(info.Old))
		if !ok {
			return gpu.SwapchainImages{}, fmt.Errorf("unknown old swapchain %d", info.Old)
		}
		swapchainCreateInfo.OldSwapchain = old.handle
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.LogicalDevice, &swapchainCreateInfo, d.Allocator, &handle); res != vk.Success {
		err := newError("vkCreateSwapchainKHR", res)
		core.LogError(err.Error())
		return gpu.SwapchainImages{}, err
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(d.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		vk.DestroySwapchain(d.LogicalDevice, handle, d.Allocator)
		return gpu.SwapchainImages{}, newError("vkGetSwapchainImagesKHR", res)
	}
	vkImages := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(d.LogicalDevice, handle, &imageCount, vkImages); res != vk.Success {
		vk.DestroySwapchain(d.LogicalDevice, handle, d.Allocator)
		return gpu.SwapchainImages{}, newError("vkGetSwapchainImagesKHR", res)
	}

	sc := &swapchain{handle: handle}
	out := gpu.SwapchainImages{Format: info.Format, Extent: info.Extent}
	for _, img := range vkImages {
		h := d.images.add(&image{handle: img, format: info.Format, extent: info.Extent, presentable: true})
		sc.images = append(sc.images, h)
		out.Images = append(out.Images, gpu.Image(h))
	}
	out.Handle = gpu.Swapchain(d.swapchains.add(sc))

	core.LogInfo("Swapchain created at %s with %d images.", info.Extent, imageCount)
	return out, nil
}

// DestroySwapchain releases the swapchain and forgets its images. Views of
// those images must already be gone.
func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	sc, ok := d.swapchains.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown swapchain %d", h)
		return
	}
	for _, img := range sc.images {
		d.images.remove(img)
	}
	vk.DestroySwapchain(d.LogicalDevice, sc.handle, d.Allocator)
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.Result) {
	sc, ok := d.swapchains.get(uint64(h))
	if !ok {
		core.LogError("acquire from unknown swapchain %d", h)
		return 0, gpu.ErrorUnknown
	}
	semaphore, ok := d.semaphores.get(uint64(signal))
	if !ok {
		core.LogError("acquire signalling unknown semaphore %d", signal)
		return 0, gpu.ErrorUnknown
	}

	var index uint32
	var result vk.Result
	d.locks.SafeCall(QueueManagement, func() error {
		result = vk.AcquireNextImage(d.LogicalDevice, sc.handle, uint64(timeout.Nanoseconds()), semaphore, vk.NullFence, &index)
		return nil
	})
	return index, toResult(result)
}

func (d *Device) Present(info gpu.PresentInfo) gpu.Result {
	sc, ok := d.swapchains.get(uint64(info.Swapchain))
	if !ok {
		core.LogError("present to unknown swapchain %d", info.Swapchain)
		return gpu.ErrorUnknown
	}

	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.handle},
		PImageIndices:  []uint32{info.ImageIndex},
	}
	if s, ok := d.semaphores.get(uint64(info.Wait)); ok {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{s}
	}

	var result vk.Result
	d.locks.SafeCall(QueueManagement, func() error {
		result = vk.QueuePresent(d.PresentQueue, &presentInfo)
		return nil
	})
	return toResult(result)
}
