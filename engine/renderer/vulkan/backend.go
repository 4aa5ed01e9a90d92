// Package vulkan implements gpu.Device with goki/vulkan.
package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/core"
)

// Window is the part of *glfw.Window the device needs.
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type Config struct {
	ApplicationName string
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report
	// callback when the layer is installed.
	Validation bool
}

// New creates the instance, surface and logical device for window.
func New(window Window, cfg Config) (_ *Device, err error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	dev := newDevice()
	defer func() {
		if err != nil {
			dev.Destroy()
		}
	}()

	if err := dev.createInstance(window, cfg); err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(dev.Instance, nil)
	if err != nil {
		return nil, errors.Wrap(err, "vulkan surface creation failed")
	}
	dev.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := dev.createLogicalDevice(); err != nil {
		return nil, err
	}
	return dev, nil
}

func (d *Device) createInstance(window Window, cfg Config) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		PEngineName:        VulkanSafeString("Anima Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	// Validation layers should only be enabled on non-release builds.
	var requiredLayers []string
	validation := cfg.Validation && hasInstanceLayer("VK_LAYER_KHRONOS_validation")
	if cfg.Validation && !validation {
		core.LogWarn("Validation requested but VK_LAYER_KHRONOS_validation is not installed.")
	}
	if validation {
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Validation layers enabled.")
	}
	core.LogInfo("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, d.Allocator, &instance); res != vk.Success {
		return newError("vkCreateInstance", res)
	}
	d.Instance = instance
	if err := vk.InitInstance(d.Instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(d.Instance, &debugCreateInfo, d.Allocator, &dbg); res != vk.Success {
			return newError("vkCreateDebugReportCallbackEXT", res)
		}
		d.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

// Destroy tears the device down. Every object created through it must have
// been destroyed already; survivors are reported.
func (d *Device) Destroy() {
	if d.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.LogicalDevice)
	}
	for kind, n := range d.liveObjects() {
		if n > 0 {
			core.LogWarn("%d %s objects still alive at device shutdown", n, kind)
		}
	}
	d.destroyLogicalDevice()

	if d.Surface != nil {
		vk.DestroySurface(d.Instance, d.Surface, d.Allocator)
		d.Surface = nil
	}
	if d.debugMessenger != nil {
		vk.DestroyDebugReportCallback(d.Instance, d.debugMessenger, d.Allocator)
		d.debugMessenger = nil
	}
	if d.Instance != nil {
		vk.DestroyInstance(d.Instance, d.Allocator)
		d.Instance = nil
	}
	core.LogInfo("Vulkan device destroyed.")
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
