package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// CreatePipeline builds a triangle-list graphics pipeline for subpass 0 of
// info.RenderPass. Viewport and scissor are dynamic so the pipeline
// survives a swapchain resize.
func (d *Device) CreatePipeline(info gpu.PipelineInfo) (gpu.Pipeline, gpu.PipelineLayout, error) {
	rp, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return 0, 0, fmt.Errorf("pipeline %s: unknown render pass %d", info.Name, info.RenderPass)
	}
	setLayouts := make([]vk.DescriptorSetLayout, 0, len(info.SetLayouts))
	for _, h := range info.SetLayouts {
		l, ok := d.setLayouts.get(uint64(h))
		if !ok {
			return 0, 0, fmt.Errorf("pipeline %s: unknown descriptor set layout %d", info.Name, h)
		}
		setLayouts = append(setLayouts, l)
	}

	vertexModule, err := d.createShaderModule(info.VertexShader)
	if err != nil {
		return 0, 0, fmt.Errorf("pipeline %s: vertex shader: %w", info.Name, err)
	}
	defer vk.DestroyShaderModule(d.LogicalDevice, vertexModule, d.Allocator)
	fragmentModule, err := d.createShaderModule(info.FragmentShader)
	if err != nil {
		return 0, 0, fmt.Errorf("pipeline %s: fragment shader: %w", info.Name, err)
	}
	defer vk.DestroyShaderModule(d.LogicalDevice, fragmentModule, d.Allocator)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertexModule,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentModule,
			PName:  VulkanSafeString("main"),
		},
	}

	// Viewport state
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if info.CullBackFaces {
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vkSamples(info.Samples),
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if info.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
		depthStencil.DepthBoundsTestEnable = vk.False
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    info.VertexStride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: a.Location,
			Format:   vkVertexFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, d.Allocator, &layout); res != vk.Success {
		return 0, 0, newError("vkCreatePipelineLayout", res)
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout,
		RenderPass:          rp,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.Allocator, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.Allocator)
		err := newError("vkCreateGraphicsPipelines", res)
		core.LogError("pipeline %s: %s", info.Name, err)
		return 0, 0, err
	}

	pl := &pipeline{handle: pipelines[0], layout: layout}
	h := d.pipelines.add(pl)
	lh := d.pipelineLayouts.add(layout)
	core.LogDebug("Graphics pipeline %s created!", info.Name)
	return gpu.Pipeline(h), gpu.PipelineLayout(lh), nil
}

// DestroyPipeline destroys the pipeline and then its layout. Either handle
// may be zero.
func (d *Device) DestroyPipeline(p gpu.Pipeline, l gpu.PipelineLayout) {
	if p != 0 {
		if pl, ok := d.pipelines.remove(uint64(p)); ok {
			vk.DestroyPipeline(d.LogicalDevice, pl.handle, d.Allocator)
		} else {
			core.LogWarn("destroy of unknown pipeline %d", p)
		}
	}
	if l != 0 {
		if layout, ok := d.pipelineLayouts.remove(uint64(l)); ok {
			vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.Allocator)
		} else {
			core.LogWarn("destroy of unknown pipeline layout %d", l)
		}
	}
}
