package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func (d *Device) allocateCommandBuffer() (vk.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.GraphicsCommandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	err := d.locks.SafeCall(CommandPoolManagement, func() error {
		if res := vk.AllocateCommandBuffers(d.LogicalDevice, &allocateInfo, commandBuffers); res != vk.Success {
			return newError("vkAllocateCommandBuffers", res)
		}
		return nil
	})
	return commandBuffers[0], err
}

func (d *Device) freeCommandBuffer(cb vk.CommandBuffer) {
	d.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(d.LogicalDevice, d.GraphicsCommandPool, 1, []vk.CommandBuffer{cb})
		return nil
	})
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	cb, err := d.allocateCommandBuffer()
	if err != nil {
		core.LogError(err.Error())
		return 0, err
	}
	return gpu.CommandBuffer(d.commandBuffers.add(cb)), nil
}

func (d *Device) FreeCommandBuffer(h gpu.CommandBuffer) {
	cb, ok := d.commandBuffers.remove(uint64(h))
	if !ok {
		core.LogWarn("free of unknown command buffer %d", h)
		return
	}
	d.freeCommandBuffer(cb)
}

func (d *Device) commandBuffer(h gpu.CommandBuffer) (vk.CommandBuffer, error) {
	cb, ok := d.commandBuffers.get(uint64(h))
	if !ok {
		return nil, fmt.Errorf("unknown command buffer %d", h)
	}
	return cb, nil
}

func (d *Device) ResetCommandBuffer(h gpu.CommandBuffer) error {
	cb, err := d.commandBuffer(h)
	if err != nil {
		return err
	}
	if res := vk.ResetCommandBuffer(cb, 0); res != vk.Success {
		return newError("vkResetCommandBuffer", res)
	}
	return nil
}

func (d *Device) BeginCommandBuffer(h gpu.CommandBuffer) error {
	cb, err := d.commandBuffer(h)
	if err != nil {
		return err
	}
	return beginCommandBuffer(cb, true)
}

func beginCommandBuffer(cb vk.CommandBuffer, singleUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(cb, beginInfo); res != vk.Success {
		return newError("vkBeginCommandBuffer", res)
	}
	return nil
}

func (d *Device) EndCommandBuffer(h gpu.CommandBuffer) error {
	cb, err := d.commandBuffer(h)
	if err != nil {
		return err
	}
	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return newError("vkEndCommandBuffer", res)
	}
	return nil
}

// Recording commands on an unknown handle is a programming error; those
// calls log and record nothing.

func (d *Device) mustCommandBuffer(h gpu.CommandBuffer) vk.CommandBuffer {
	cb, err := d.commandBuffer(h)
	if err != nil {
		core.LogError(err.Error())
	}
	return cb
}

func (d *Device) CmdBeginRenderPass(h gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	cb := d.mustCommandBuffer(h)
	rp, ok := d.renderPasses.get(uint64(begin.RenderPass))
	fb, fbOK := d.framebuffers.get(uint64(begin.Framebuffer))
	if cb == nil || !ok || !fbOK {
		core.LogError("begin render pass with unknown pass %d or framebuffer %d", begin.RenderPass, begin.Framebuffer)
		return
	}

	clearValues := make([]vk.ClearValue, len(begin.ClearValues))
	for i, c := range begin.ClearValues {
		// A depth attachment is cleared with a non-zero depth.
		if c.Depth != 0 || c.Stencil != 0 {
			clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			clearValues[i].SetColor(c.Color[:])
		}
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vkExtent(begin.Extent),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cb, &beginInfo, vk.SubpassContentsInline)
}

func (d *Device) CmdEndRenderPass(h gpu.CommandBuffer) {
	if cb := d.mustCommandBuffer(h); cb != nil {
		vk.CmdEndRenderPass(cb)
	}
}

func (d *Device) CmdBindPipeline(h gpu.CommandBuffer, p gpu.Pipeline) {
	cb := d.mustCommandBuffer(h)
	pl, ok := d.pipelines.get(uint64(p))
	if cb == nil || !ok {
		return
	}
	vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pl.handle)
}

// CmdSetViewport uses a negative height so clip space Y points up, like
// the rest of the engine's math.
func (d *Device) CmdSetViewport(h gpu.CommandBuffer, extent gpu.Extent) {
	cb := d.mustCommandBuffer(h)
	if cb == nil {
		return
	}
	viewport := vk.Viewport{
		X:        0,
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vkExtent(extent),
	}
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})
}

func (d *Device) CmdBindVertexBuffer(h gpu.CommandBuffer, b gpu.Buffer) {
	cb := d.mustCommandBuffer(h)
	buf, ok := d.buffers.get(uint64(b))
	if cb == nil || !ok {
		return
	}
	vk.CmdBindVertexBuffers(cb, 0, 1, []vk.Buffer{buf.handle}, []vk.DeviceSize{0})
}

func (d *Device) CmdBindIndexBuffer(h gpu.CommandBuffer, b gpu.Buffer) {
	cb := d.mustCommandBuffer(h)
	buf, ok := d.buffers.get(uint64(b))
	if cb == nil || !ok {
		return
	}
	vk.CmdBindIndexBuffer(cb, buf.handle, 0, vk.IndexTypeUint32)
}

func (d *Device) CmdBindDescriptorSet(h gpu.CommandBuffer, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	cb := d.mustCommandBuffer(h)
	l, ok := d.pipelineLayouts.get(uint64(layout))
	s, setOK := d.sets.get(uint64(set))
	if cb == nil || !ok || !setOK {
		return
	}
	vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, l, 0, 1, []vk.DescriptorSet{s}, 0, nil)
}

func (d *Device) CmdDrawIndexed(h gpu.CommandBuffer, indexCount uint32) {
	if cb := d.mustCommandBuffer(h); cb != nil {
		vk.CmdDrawIndexed(cb, indexCount, 1, 0, 0, 0)
	}
}

// singleUse records fn into a temporary command buffer, submits it and
// waits for the queue to drain.
func (d *Device) singleUse(fn func(cb vk.CommandBuffer)) error {
	cb, err := d.allocateCommandBuffer()
	if err != nil {
		return err
	}
	defer d.freeCommandBuffer(cb)

	if err := beginCommandBuffer(cb, true); err != nil {
		return err
	}
	fn(cb)
	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return newError("vkEndCommandBuffer", res)
	}

	return d.locks.SafeCall(QueueManagement, func() error {
		submitInfo := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{cb},
		}
		if res := vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return newError("vkQueueSubmit", res)
		}
		if res := vk.QueueWaitIdle(d.GraphicsQueue); res != vk.Success {
			return newError("vkQueueWaitIdle", res)
		}
		return nil
	})
}

func (d *Device) Submit(info gpu.SubmitInfo) gpu.Result {
	cb, ok := d.commandBuffers.get(uint64(info.CommandBuffer))
	if !ok {
		core.LogError("submit of unknown command buffer %d", info.CommandBuffer)
		return gpu.ErrorUnknown
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if s, ok := d.semaphores.get(uint64(info.Wait)); ok {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{s}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vkStages(info.WaitStage)}
	}
	if s, ok := d.semaphores.get(uint64(info.Signal)); ok {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{s}
	}
	fence := vk.NullFence
	if f, ok := d.fences.get(uint64(info.Fence)); ok {
		fence = f
	}

	var result vk.Result
	d.locks.SafeCall(QueueManagement, func() error {
		result = vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence)
		return nil
	})
	if result != vk.Success {
		core.LogError("vkQueueSubmit failed with %s", VulkanResultString(result))
	}
	return toResult(result)
}

func (d *Device) WaitIdle() error {
	return d.locks.SafeCall(QueueManagement, func() error {
		if res := vk.DeviceWaitIdle(d.LogicalDevice); res != vk.Success {
			return newError("vkDeviceWaitIdle", res)
		}
		return nil
	})
}
