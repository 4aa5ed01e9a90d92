package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	rp, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return 0, fmt.Errorf("framebuffer %s: unknown render pass %d", info.Name, info.RenderPass)
	}
	attachments := make([]vk.ImageView, len(info.Attachments))
	for i, h := range info.Attachments {
		view, ok := d.views.get(uint64(h))
		if !ok {
			return 0, fmt.Errorf("framebuffer %s: unknown attachment view %d", info.Name, h)
		}
		attachments[i] = view
	}

	// Creation info
	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(d.LogicalDevice, &framebufferCreateInfo, d.Allocator, &handle); res != vk.Success {
		err := newError("vkCreateFramebuffer", res)
		core.LogError("framebuffer %s: %s", info.Name, err)
		return 0, err
	}
	return gpu.Framebuffer(d.framebuffers.add(handle)), nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	fb, ok := d.framebuffers.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown framebuffer %d", h)
		return
	}
	vk.DestroyFramebuffer(d.LogicalDevice, fb, d.Allocator)
}
