package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func attachmentReferences(refs []gpu.AttachmentReference) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{
			Attachment: r.Attachment, // Attachment description array index
			Layout:     vkLayout(r.Layout),
		}
	}
	return out
}

func subpassIndex(i uint32) uint32 {
	if i == gpu.SubpassExternal {
		return vk.SubpassExternal
	}
	return i
}

// CreateRenderPass creates a single-subpass render pass.
func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	attachmentDescriptions := make([]vk.AttachmentDescription, len(info.Attachments))
	for i, a := range info.Attachments {
		attachmentDescriptions[i] = vk.AttachmentDescription{
			Format:         vkFormat(a.Format),
			Samples:        vkSamples(a.Samples),
			LoadOp:         vkLoadOp(a.LoadOp),
			StoreOp:        vkStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vkLayout(a.InitialLayout),
			FinalLayout:    vkLayout(a.FinalLayout),
		}
	}

	// Main subpass
	colorRefs := attachmentReferences(info.Subpass.Color)
	resolveRefs := attachmentReferences(info.Subpass.Resolve)
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
		// Attachments used for multisampling colour attachments
		PResolveAttachments: resolveRefs,
	}
	if info.Subpass.Depth != nil {
		// Depth stencil data.
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: info.Subpass.Depth.Attachment,
			Layout:     vkLayout(info.Subpass.Depth.Layout),
		}
	}

	dependencies := make([]vk.SubpassDependency, len(info.Dependencies))
	for i, dep := range info.Dependencies {
		dependencies[i] = vk.SubpassDependency{
			SrcSubpass:    subpassIndex(dep.Src),
			DstSubpass:    subpassIndex(dep.Dst),
			SrcStageMask:  vkStages(dep.SrcStage),
			DstStageMask:  vkStages(dep.DstStage),
			SrcAccessMask: vkAccess(dep.SrcAccess),
			DstAccessMask: vkAccess(dep.DstAccess),
		}
	}

	// Render pass create.
	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(d.LogicalDevice, &renderpassCreateInfo, d.Allocator, &handle); res != vk.Success {
		err := newError("vkCreateRenderPass", res)
		core.LogError("render pass %s: %s", info.Name, err)
		return 0, err
	}
	return gpu.RenderPass(d.renderPasses.add(handle)), nil
}

func (d *Device) DestroyRenderPass(h gpu.RenderPass) {
	rp, ok := d.renderPasses.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown render pass %d", h)
		return
	}
	vk.DestroyRenderPass(d.LogicalDevice, rp, d.Allocator)
}
