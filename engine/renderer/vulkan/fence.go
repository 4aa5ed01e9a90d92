package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.LogicalDevice, &semaphoreCreateInfo, d.Allocator, &semaphore); res != vk.Success {
		err := newError("vkCreateSemaphore", res)
		core.LogError(err.Error())
		return 0, err
	}
	return gpu.Semaphore(d.semaphores.add(semaphore)), nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	semaphore, ok := d.semaphores.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown semaphore %d", h)
		return
	}
	vk.DestroySemaphore(d.LogicalDevice, semaphore, d.Allocator)
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// Make sure to signal the fence if required.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, d.Allocator, &fence); res != vk.Success {
		err := newError("vkCreateFence", res)
		core.LogError(err.Error())
		return 0, err
	}
	return gpu.Fence(d.fences.add(fence)), nil
}

func (d *Device) DestroyFence(h gpu.Fence) {
	fence, ok := d.fences.remove(uint64(h))
	if !ok {
		core.LogWarn("destroy of unknown fence %d", h)
		return
	}
	vk.DestroyFence(d.LogicalDevice, fence, d.Allocator)
}

func (d *Device) WaitForFence(h gpu.Fence, timeout time.Duration) gpu.Result {
	fence, ok := d.fences.get(uint64(h))
	if !ok {
		core.LogError("wait on unknown fence %d", h)
		return gpu.ErrorUnknown
	}
	result := vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success, vk.Timeout:
	default:
		core.LogError("vkWaitForFences failed with %s", VulkanResultString(result))
	}
	return toResult(result)
}

func (d *Device) ResetFence(h gpu.Fence) error {
	fence, ok := d.fences.get(uint64(h))
	if !ok {
		return fmt.Errorf("reset of unknown fence %d", h)
	}
	if res := vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{fence}); res != vk.Success {
		return newError("vkResetFences", res)
	}
	return nil
}
