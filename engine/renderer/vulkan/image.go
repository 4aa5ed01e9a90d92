package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.Image, error) {
	if info.Extent.IsZero() {
		return 0, fmt.Errorf("image %s: extent %s must be non-zero", info.Name, info.Extent)
	}
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vkFormat(info.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vkImageUsage(info.Usage),
		Samples:       vkSamples(info.Samples),
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(d.LogicalDevice, &imageCreateInfo, d.Allocator, &handle); res != vk.Success {
		err := newError("vkCreateImage", res)
		core.LogError("image %s: %s", info.Name, err)
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, handle, &reqs)
	reqs.Deref()

	props := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	memory, err := d.allocate(reqs, props)
	if err != nil {
		vk.DestroyImage(d.LogicalDevice, handle, d.Allocator)
		return 0, err
	}
	if res := vk.BindImageMemory(d.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.DestroyImage(d.LogicalDevice, handle, d.Allocator)
		vk.FreeMemory(d.LogicalDevice, memory, d.Allocator)
		return 0, newError("vkBindImageMemory", res)
	}

	img := &image{handle: handle, memory: memory, format: info.Format, extent: info.Extent}
	return gpu.Image(d.images.add(img)), nil
}

func (d *Device) DestroyImage(h gpu.Image) {
	img, ok := d.images.get(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown image %d", h)
		return
	}
	if img.presentable {
		core.LogWarn("image %d belongs to a swapchain and is not destroyed individually", h)
		return
	}
	d.images.remove(uint64(h))
	vk.DestroyImage(d.LogicalDevice, img.handle, d.Allocator)
	vk.FreeMemory(d.LogicalDevice, img.memory, d.Allocator)
}

func (d *Device) CreateImageView(h gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	img, ok := d.images.get(uint64(h))
	if !ok {
		return 0, fmt.Errorf("view of unknown image %d", h)
	}
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   vkFormat(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vkAspect(format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.LogicalDevice, &viewCreateInfo, d.Allocator, &view); res != vk.Success {
		return 0, newError("vkCreateImageView", res)
	}
	return gpu.ImageView(d.views.add(view)), nil
}

func (d *Device) DestroyImageView(h gpu.ImageView) {
	view, ok := d.views.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown image view %d", h)
		return
	}
	vk.DestroyImageView(d.LogicalDevice, view, d.Allocator)
}

// UploadImage copies pixels through a staging buffer and blocks until the
// transfer has finished.
func (d *Device) UploadImage(h gpu.Image, extent gpu.Extent, pixels []byte) error {
	img, ok := d.images.get(uint64(h))
	if !ok {
		return fmt.Errorf("upload to unknown image %d", h)
	}
	size := uint64(extent.Width) * uint64(extent.Height) * 4
	if uint64(len(pixels)) != size {
		return fmt.Errorf("upload of %d bytes to a %s RGBA8 image, want %d", len(pixels), extent, size)
	}

	staging, err := d.createBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	defer d.freeBuffer(staging)
	if err := staging.write(0, pixels); err != nil {
		return err
	}

	return d.singleUse(func(cb vk.CommandBuffer) {
		transitionImage(cb, img.handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		}
		vk.CmdCopyBufferToImage(cb, staging.handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		transitionImage(cb, img.handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

// transitionImage records a layout change for a single-level color image.
// Only the two transitions of an upload are supported.
func transitionImage(cb vk.CommandBuffer, img vk.Image, oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var src, dst vk.PipelineStageFlagBits
	if oldLayout == vk.ImageLayoutUndefined {
		// Don't care what stage the pipeline is in at the start.
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src = vk.PipelineStageTopOfPipeBit
		dst = vk.PipelineStageTransferBit
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		src = vk.PipelineStageTransferBit
		dst = vk.PipelineStageFragmentShaderBit
	}
	vk.CmdPipelineBarrier(cb, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	filter := vk.FilterNearest
	if info.Linear {
		filter = vk.FilterLinear
	}
	address := vk.SamplerAddressModeClampToEdge
	if info.Repeat {
		address = vk.SamplerAddressModeRepeat
	}
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if d.Features.SamplerAnisotropy == vk.True && info.Linear {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = d.Properties.Limits.MaxSamplerAnisotropy
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.LogicalDevice, &samplerInfo, d.Allocator, &sampler); res != vk.Success {
		return 0, newError("vkCreateSampler", res)
	}
	return gpu.Sampler(d.samplers.add(sampler)), nil
}

func (d *Device) DestroySampler(h gpu.Sampler) {
	sampler, ok := d.samplers.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown sampler %d", h)
		return
	}
	vk.DestroySampler(d.LogicalDevice, sampler, d.Allocator)
}
