package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

func (d *Device) createLogicalDevice() error {
	if err := d.selectPhysicalDevice(); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{d.GraphicsQueueIndex}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, d.PresentQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if d.Features.SamplerAnisotropy == vk.True {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(d.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, d.Allocator, &logical); res != vk.Success {
		return newError("vkCreateDevice", res)
	}
	d.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.LogicalDevice, d.GraphicsQueueIndex, 0, &graphics)
	vk.GetDeviceQueue(d.LogicalDevice, d.PresentQueueIndex, 0, &present)
	d.GraphicsQueue = graphics
	d.PresentQueue = present
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, d.Allocator, &pool); res != vk.Success {
		return newError("vkCreateCommandPool", res)
	}
	d.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !d.detectDepthFormat() {
		return fmt.Errorf("no supported depth attachment format")
	}
	d.Properties.Limits.Deref()
	d.maxSamples = highestSampleCount(d.Properties.Limits.FramebufferColorSampleCounts & d.Properties.Limits.FramebufferDepthSampleCounts)
	core.LogInfo("Depth format %s, up to %dx MSAA.", d.depthFormat, d.maxSamples)
	return nil
}

func (d *Device) destroyLogicalDevice() {
	d.GraphicsQueue = nil
	d.PresentQueue = nil

	if d.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, d.Allocator)
		d.GraphicsCommandPool = nil
	}

	if d.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, d.Allocator)
		d.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
	d.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

// querySwapchainSupport refreshes the surface capabilities, formats and
// present modes of physicalDevice.
func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	// Surface capabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return newError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	// Surface formats
	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return newError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount != 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return newError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	// Present modes
	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return newError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
	if presentModeCount != 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return newError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return nil
}

func (d *Device) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			d.depthFormat = gpuFormat(candidate)
			return true
		}
	}
	d.depthFormat = gpu.FormatUndefined
	return false
}

func (d *Device) selectPhysicalDevice() error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(d.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return newError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(d.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return newError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		DiscreteGPU:          runtime.GOOS != "darwin",
	}

	// A discrete GPU is preferred; fall back to any device on a second pass.
	for pass := 0; pass < 2; pass++ {
		for _, candidate := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(candidate, &properties)
			properties.Deref()

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(candidate, &features)
			features.Deref()

			queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{}
			support := VulkanSwapchainSupportInfo{}
			if !physicalDeviceMeetsRequirements(candidate, d.Surface, &properties, &requirements, &queueInfo, &support) {
				continue
			}

			name := cString(properties.DeviceName[:])
			core.LogInfo("Selected device: '%s'.", name)
			switch properties.DeviceType {
			case vk.PhysicalDeviceTypeIntegratedGpu:
				core.LogInfo("GPU type is Integrated.")
			case vk.PhysicalDeviceTypeDiscreteGpu:
				core.LogInfo("GPU type is Discrete.")
			case vk.PhysicalDeviceTypeVirtualGpu:
				core.LogInfo("GPU type is Virtual.")
			case vk.PhysicalDeviceTypeCpu:
				core.LogInfo("GPU type is CPU.")
			default:
				core.LogInfo("GPU type is Unknown.")
			}
			core.LogInfo(
				"GPU Driver version: %d.%d.%d",
				vk.Version(properties.DriverVersion).Major(),
				vk.Version(properties.DriverVersion).Minor(),
				vk.Version(properties.DriverVersion).Patch(),
			)
			core.LogInfo(
				"Vulkan API version: %d.%d.%d",
				vk.Version(properties.ApiVersion).Major(),
				vk.Version(properties.ApiVersion).Minor(),
				vk.Version(properties.ApiVersion).Patch(),
			)

			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
			memory.Deref()
			for j := uint32(0); j < memory.MemoryHeapCount; j++ {
				memory.MemoryHeaps[j].Deref()
				memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
				if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
					core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
				} else {
					core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
				}
			}

			d.PhysicalDevice = candidate
			d.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
			d.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
			d.Properties = properties
			d.Features = features
			d.Memory = memory
			d.SwapchainSupport = support
			core.LogInfo("Physical device selected.")
			return nil
		}
		if requirements.DiscreteGPU {
			core.LogWarn("No discrete GPU meets the requirements, trying any device.")
			requirements.DiscreteGPU = false
		}
	}
	return fmt.Errorf("no physical devices were found which meet the requirements")
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	outQueueInfo.GraphicsFamilyIndex = -1
	outQueueInfo.PresentFamilyIndex = -1

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if outQueueInfo.GraphicsFamilyIndex < 0 && vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			outQueueInfo.GraphicsFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false
		}
		// Prefer a family that does both.
		if supportsPresent == vk.True && (outQueueInfo.PresentFamilyIndex < 0 || outQueueInfo.GraphicsFamilyIndex == int32(i)) {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogInfo("Graphics %d | Present %d | %s",
		outQueueInfo.GraphicsFamilyIndex,
		outQueueInfo.PresentFamilyIndex,
		cString(properties.DeviceName[:]))

	if requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0 {
		return false
	}
	if requirements.Present && outQueueInfo.PresentFamilyIndex < 0 {
		return false
	}

	if err := querySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogWarn("Unable to query swapchain support: %s", err)
		return false
	}
	if len(outSwapchainSupport.Formats) < 1 || len(outSwapchainSupport.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	for _, name := range requirements.DeviceExtensionNames {
		if !hasDeviceExtension(device, name) {
			core.LogInfo("Required extension not found: '%s', skipping device.", name)
			return false
		}
	}
	return true
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}
