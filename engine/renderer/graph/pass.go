package graph

import (
	"github.com/spaghettifunk/anima-frames/engine/renderer/descriptors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// PassKind selects what a pass draws.
type PassKind uint8

const (
	// PassGeometry draws the scene into the offscreen targets.
	PassGeometry PassKind = iota
	// PassPostProcess samples the resolved scene onto a swapchain image.
	PassPostProcess
)

func (k PassKind) String() string {
	switch k {
	case PassGeometry:
		return "geometry"
	case PassPostProcess:
		return "post-process"
	default:
		return "unknown"
	}
}

// Pass is one render pass with the single pipeline drawn inside it.
type Pass struct {
	Kind       PassKind
	RenderPass gpu.OwnedRenderPass
	Pipeline   gpu.OwnedPipeline
	SetLayout  gpu.OwnedDescriptorSetLayout
	Layout     *descriptors.Layout
	// Sets holds one descriptor set per frame slot.
	Sets []gpu.DescriptorSet
}

func (p *Pass) release() {
	p.Pipeline.Release()
	p.SetLayout.Release()
	p.RenderPass.Release()
	p.Sets = nil
}

// geometryPassInfo describes the scene pass. With multisampling it renders
// into a multisampled color attachment and resolves into attachment 2;
// without, attachment 0 is the resolve image itself. Either way the
// single-sampled output ends in the shader read layout for the next pass.
func geometryPassInfo(color, depth gpu.Format, samples uint32) gpu.RenderPassInfo {
	depthAttachment := gpu.AttachmentDescription{
		Format:        depth,
		Samples:       samples,
		LoadOp:        gpu.LoadOpClear,
		StoreOp:       gpu.StoreOpDontCare,
		InitialLayout: gpu.LayoutUndefined,
		FinalLayout:   gpu.LayoutDepthStencilAttachment,
	}
	depthRef := &gpu.AttachmentReference{Attachment: 1, Layout: gpu.LayoutDepthStencilAttachment}

	info := gpu.RenderPassInfo{
		Name: "geometry",
		Dependencies: []gpu.SubpassDependency{
			{
				// previous reads of the resolve target and depth writes finish first
				Src:       gpu.SubpassExternal,
				Dst:       0,
				SrcStage:  gpu.StageColorAttachmentOutput | gpu.StageFragmentShader | gpu.StageLateFragmentTests,
				DstStage:  gpu.StageColorAttachmentOutput | gpu.StageEarlyFragmentTests,
				SrcAccess: gpu.AccessDepthStencilAttachmentWrite,
				DstAccess: gpu.AccessColorAttachmentWrite | gpu.AccessDepthStencilAttachmentWrite,
			},
			{
				// the resolved color is visible to the post-process fragment shader
				Src:       0,
				Dst:       gpu.SubpassExternal,
				SrcStage:  gpu.StageColorAttachmentOutput,
				DstStage:  gpu.StageFragmentShader,
				SrcAccess: gpu.AccessColorAttachmentWrite,
				DstAccess: gpu.AccessShaderRead,
			},
		},
	}

	if samples <= 1 {
		info.Attachments = []gpu.AttachmentDescription{
			{
				Format:        color,
				Samples:       1,
				LoadOp:        gpu.LoadOpClear,
				StoreOp:       gpu.StoreOpStore,
				InitialLayout: gpu.LayoutUndefined,
				FinalLayout:   gpu.LayoutShaderReadOnly,
			},
			depthAttachment,
		}
		info.Subpass = gpu.SubpassDescription{
			Color: []gpu.AttachmentReference{{Attachment: 0, Layout: gpu.LayoutColorAttachment}},
			Depth: depthRef,
		}
		return info
	}

	info.Attachments = []gpu.AttachmentDescription{
		{
			Format:        color,
			Samples:       samples,
			LoadOp:        gpu.LoadOpClear,
			StoreOp:       gpu.StoreOpDontCare,
			InitialLayout: gpu.LayoutUndefined,
			FinalLayout:   gpu.LayoutColorAttachment,
		},
		depthAttachment,
		{
			Format:        color,
			Samples:       1,
			LoadOp:        gpu.LoadOpDontCare,
			StoreOp:       gpu.StoreOpStore,
			InitialLayout: gpu.LayoutUndefined,
			FinalLayout:   gpu.LayoutShaderReadOnly,
		},
	}
	info.Subpass = gpu.SubpassDescription{
		Color:   []gpu.AttachmentReference{{Attachment: 0, Layout: gpu.LayoutColorAttachment}},
		Resolve: []gpu.AttachmentReference{{Attachment: 2, Layout: gpu.LayoutColorAttachment}},
		Depth:   depthRef,
	}
	return info
}

// postPassInfo describes the pass that writes a swapchain image and leaves
// it ready to present.
func postPassInfo(format gpu.Format) gpu.RenderPassInfo {
	return gpu.RenderPassInfo{
		Name: "post-process",
		Attachments: []gpu.AttachmentDescription{
			{
				Format:        format,
				Samples:       1,
				LoadOp:        gpu.LoadOpClear,
				StoreOp:       gpu.StoreOpStore,
				InitialLayout: gpu.LayoutUndefined,
				FinalLayout:   gpu.LayoutPresentSrc,
			},
		},
		Subpass: gpu.SubpassDescription{
			Color: []gpu.AttachmentReference{{Attachment: 0, Layout: gpu.LayoutColorAttachment}},
		},
		Dependencies: []gpu.SubpassDependency{
			{
				// the geometry pass resolve write lands before the scene color
				// is sampled, and the acquired image is writable
				Src:       gpu.SubpassExternal,
				Dst:       0,
				SrcStage:  gpu.StageColorAttachmentOutput,
				DstStage:  gpu.StageColorAttachmentOutput | gpu.StageFragmentShader,
				SrcAccess: gpu.AccessColorAttachmentWrite,
				DstAccess: gpu.AccessColorAttachmentWrite | gpu.AccessShaderRead,
			},
		},
	}
}
