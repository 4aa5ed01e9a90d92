package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func vkFormat(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatR8G8B8A8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case gpu.FormatR16G16B16A16Sfloat:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.FormatD32Sfloat:
		return vk.FormatD32Sfloat
	case gpu.FormatD32SfloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	case gpu.FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatUndefined
	}
}

// gpuFormat is the inverse of vkFormat. Formats the renderer does not know
// map to FormatUndefined.
func gpuFormat(f vk.Format) gpu.Format {
	switch f {
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatB8G8R8A8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatB8G8R8A8Srgb
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatR8G8B8A8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gpu.FormatR8G8B8A8Srgb
	case vk.FormatR16g16b16a16Sfloat:
		return gpu.FormatR16G16B16A16Sfloat
	case vk.FormatD32Sfloat:
		return gpu.FormatD32Sfloat
	case vk.FormatD32SfloatS8Uint:
		return gpu.FormatD32SfloatS8Uint
	case vk.FormatD24UnormS8Uint:
		return gpu.FormatD24UnormS8Uint
	default:
		return gpu.FormatUndefined
	}
}

func vkVertexFormat(f gpu.VertexFormat) vk.Format {
	switch f {
	case gpu.VertexFloat2:
		return vk.FormatR32g32Sfloat
	case gpu.VertexFloat4:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatR32g32b32Sfloat
	}
}

func vkAspect(f gpu.Format) vk.ImageAspectFlags {
	switch f {
	case gpu.FormatD32Sfloat:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case gpu.FormatD32SfloatS8Uint, gpu.FormatD24UnormS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

// vkSamples relies on VkSampleCountFlagBits having the value of the count.
func vkSamples(samples uint32) vk.SampleCountFlagBits {
	if samples == 0 {
		samples = 1
	}
	return vk.SampleCountFlagBits(samples)
}

// highestSampleCount picks the highest count present in a sample mask.
func highestSampleCount(mask vk.SampleCountFlags) uint32 {
	for _, bit := range []vk.SampleCountFlagBits{
		vk.SampleCount64Bit,
		vk.SampleCount32Bit,
		vk.SampleCount16Bit,
		vk.SampleCount8Bit,
		vk.SampleCount4Bit,
		vk.SampleCount2Bit,
	} {
		if mask&vk.SampleCountFlags(bit) != 0 {
			return uint32(bit)
		}
	}
	return 1
}

func vkImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gpu.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthStencilAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageTransient != 0 {
		flags |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func vkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(flags)
}

func vkLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.LayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func vkLoadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case gpu.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func vkStoreOp(op gpu.StoreOp) vk.AttachmentStoreOp {
	if op == gpu.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func vkStages(s gpu.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if s&gpu.StageTopOfPipe != 0 {
		flags |= vk.PipelineStageTopOfPipeBit
	}
	if s&gpu.StageEarlyFragmentTests != 0 {
		flags |= vk.PipelineStageEarlyFragmentTestsBit
	}
	if s&gpu.StageLateFragmentTests != 0 {
		flags |= vk.PipelineStageLateFragmentTestsBit
	}
	if s&gpu.StageFragmentShader != 0 {
		flags |= vk.PipelineStageFragmentShaderBit
	}
	if s&gpu.StageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&gpu.StageBottomOfPipe != 0 {
		flags |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(flags)
}

func vkAccess(a gpu.Access) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if a&gpu.AccessColorAttachmentRead != 0 {
		flags |= vk.AccessColorAttachmentReadBit
	}
	if a&gpu.AccessColorAttachmentWrite != 0 {
		flags |= vk.AccessColorAttachmentWriteBit
	}
	if a&gpu.AccessDepthStencilAttachmentWrite != 0 {
		flags |= vk.AccessDepthStencilAttachmentWriteBit
	}
	if a&gpu.AccessShaderRead != 0 {
		flags |= vk.AccessShaderReadBit
	}
	return vk.AccessFlags(flags)
}

func vkShaderStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&gpu.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&gpu.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func vkDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorSampler:
		return vk.DescriptorTypeSampler
	case gpu.DescriptorSampledImage:
		return vk.DescriptorTypeSampledImage
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func vkPresentMode(m gpu.PresentMode) vk.PresentMode {
	switch m {
	case gpu.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gpu.PresentModeImmediate:
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

func vkExtent(e gpu.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func gpuExtent(e vk.Extent2D) gpu.Extent {
	return gpu.Extent{Width: e.Width, Height: e.Height}
}
