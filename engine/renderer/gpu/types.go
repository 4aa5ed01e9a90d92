// Package gpu describes the GPU context consumed by the renderer: opaque
// handles, creation descriptors and the device interfaces. The Vulkan
// implementation lives in engine/renderer/vulkan; gputest provides an
// instrumented fake.
package gpu

import (
	"fmt"
	"math"
)

// UndefinedExtent in SurfaceCapabilities.CurrentExtent means the window
// decides the swapchain size.
const UndefinedExtent = math.MaxUint32

// SubpassExternal refers to work outside the render pass in a dependency.
const SubpassExternal = ^uint32(0)

type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports a degenerate extent, as seen while a window is minimized.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type Format uint32

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR16G16B16A16Sfloat
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatR16G16B16A16Sfloat:
		return "R16G16B16A16_SFLOAT"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	default:
		return "UNDEFINED"
	}
}

type ImageUsage uint32

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageDepthStencilAttachment
	ImageUsageSampled
	ImageUsageTransferDst
	ImageUsageTransient
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageTransferSrc
)

type ImageLayout uint8

const (
	LayoutUndefined ImageLayout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutShaderReadOnly
	LayoutTransferDst
	LayoutPresentSrc
)

type LoadOp uint8

const (
	LoadOpDontCare LoadOp = iota
	LoadOpClear
	LoadOpLoad
)

type StoreOp uint8

const (
	StoreOpDontCare StoreOp = iota
	StoreOpStore
)

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageFragmentShader
	StageColorAttachmentOutput
	StageBottomOfPipe
)

type Access uint32

const (
	AccessColorAttachmentRead Access = 1 << iota
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentWrite
	AccessShaderRead
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type DescriptorType uint8

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorSampler
	DescriptorSampledImage
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	case DescriptorSampler:
		return "sampler"
	case DescriptorSampledImage:
		return "sampled-image"
	default:
		return "unknown"
	}
}

type PresentMode uint8

const (
	PresentModeFifo PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
)

// ParsePresentMode maps a config string onto a PresentMode.
func ParsePresentMode(s string) (PresentMode, error) {
	switch s {
	case "", "fifo", "vsync":
		return PresentModeFifo, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "immediate":
		return PresentModeImmediate, nil
	default:
		return PresentModeFifo, fmt.Errorf("unknown present mode %q", s)
	}
}

func (m PresentMode) String() string {
	switch m {
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeImmediate:
		return "immediate"
	default:
		return "fifo"
	}
}

type VertexFormat uint8

const (
	VertexFloat2 VertexFormat = iota
	VertexFloat3
	VertexFloat4
)
