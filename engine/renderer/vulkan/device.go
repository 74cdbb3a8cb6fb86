package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	ComputeQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool
	ComputeCommandPool  vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	graphicsPoolTag uuid.UUID
	computePoolTag  uuid.UUID
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	DeviceExtensionNames []string
	PreferDiscreteGPU    bool
}

// Queue family indices, -1 when the family was not found.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	device := context.Device
	// NOTE: Do not create additional queues for shared indices.
	indices := uniqueFamilies(device.GraphicsQueueIndex, device.PresentQueueIndex, device.ComputeQueueIndex)

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		context.LockPool.SetQueueFamily(index)
	}

	// Nothing beyond core 1.0 features is used.
	deviceFeatures := vk.PhysicalDeviceFeatures{}

	availableExtensions, err := deviceExtensionNames(device.PhysicalDevice)
	if err != nil {
		core.LogError(err.Error())
		return err
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if _, ok := availableExtensions["VK_KHR_portability_subset"]; ok {
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
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		err := resultError("vkCreateDevice", res)
		core.LogError(err.Error())
		return err
	}
	device.LogicalDevice = logicalDevice

	core.LogInfo("Logical device created.")

	// Get queues.
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &device.PresentQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.ComputeQueueIndex), 0, &device.ComputeQueue)
	core.LogInfo("Queues obtained.")

	pool, err := createCommandPool(context, uint32(device.GraphicsQueueIndex))
	if err != nil {
		return err
	}
	device.GraphicsCommandPool = pool
	device.graphicsPoolTag = context.track(core.ResourceCommandPool, "graphics")
	core.LogInfo("Graphics command pool created.")

	pool, err = createCommandPool(context, uint32(device.ComputeQueueIndex))
	if err != nil {
		return err
	}
	device.ComputeCommandPool = pool
	device.computePoolTag = context.track(core.ResourceCommandPool, "compute")
	core.LogInfo("Compute command pool created.")

	return nil
}

func createCommandPool(context *VulkanContext, family uint32) (vk.CommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := resultError(fmt.Sprintf("vkCreateCommandPool(family %d)", family), res)
		core.LogError(err.Error())
		return nil, err
	}
	return pool, nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device

	// Unset queues
	device.GraphicsQueue = nil
	device.PresentQueue = nil
	device.ComputeQueue = nil

	core.LogInfo("Destroying command pools...")
	if device.ComputeCommandPool != nil {
		vk.DestroyCommandPool(device.LogicalDevice, device.ComputeCommandPool, context.Allocator)
		device.ComputeCommandPool = nil
		context.release(device.computePoolTag)
	}
	if device.GraphicsCommandPool != nil {
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
		context.release(device.graphicsPoolTag)
	}

	// Destroy logical device
	core.LogInfo("Destroying logical device...")
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	core.LogInfo("Releasing physical device resources...")
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}

	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
	device.ComputeQueueIndex = -1
}

// DeviceWaitIdle blocks until every queue of the device is idle.
func DeviceWaitIdle(context *VulkanContext) error {
	if context.Device == nil || context.Device.LogicalDevice == nil {
		return nil
	}
	return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(context.Device.LogicalDevice))
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	// Surface capabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	// Surface formats
	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount != 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfaceFormats", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	// Present modes
	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
	if presentModeCount != 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
	}
	return nil
}

// DeviceSupportsFormat reports whether optimal-tiling images of format
// support all of features.
func DeviceSupportsFormat(device *VulkanDevice, format vk.Format, features vk.FormatFeatureFlags) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, format, &properties)
	properties.Deref()
	return properties.OptimalTilingFeatures&features == features
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrInitialization)
		core.LogError(err.Error())
		return err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Compute:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		PreferDiscreteGPU:    true,
	}

	type candidate struct {
		device     vk.PhysicalDevice
		properties vk.PhysicalDeviceProperties
		features   vk.PhysicalDeviceFeatures
		memory     vk.PhysicalDeviceMemoryProperties
		queues     VulkanPhysicalDeviceQueueFamilyInfo
		support    VulkanSwapchainSupportInfo
	}
	var chosen *candidate

	for i := 0; i < int(physicalDeviceCount); i++ {
		c := candidate{device: physicalDevices[i]}
		vk.GetPhysicalDeviceProperties(c.device, &c.properties)
		c.properties.Deref()
		vk.GetPhysicalDeviceFeatures(c.device, &c.features)
		c.features.Deref()
		vk.GetPhysicalDeviceMemoryProperties(c.device, &c.memory)
		c.memory.Deref()

		if !PhysicalDeviceMeetsRequirements(c.device, context.Surface, &c.properties, &requirements, &c.queues, &c.support) {
			continue
		}
		discrete := c.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
		if chosen == nil || (requirements.PreferDiscreteGPU && discrete && chosen.properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu) {
			cc := c
			chosen = &cc
		}
	}

	// Ensure a device was selected
	if chosen == nil {
		err := fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrInitialization)
		core.LogError(err.Error())
		return err
	}

	properties := chosen.properties
	core.LogInfo("Selected device: '%s'.", vk.ToString(properties.DeviceName[:]))
	// GPU type, etc.
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

	core.LogInfo("GPU Driver version: %s", vk.Version(properties.DriverVersion).String())
	core.LogInfo("Vulkan API version: %s", vk.Version(properties.ApiVersion).String())

	// Memory information
	memory := chosen.memory
	for j := 0; j < int(memory.MemoryHeapCount); j++ {
		memory.MemoryHeaps[j].Deref()
		memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}

	device := context.Device
	device.PhysicalDevice = chosen.device
	device.GraphicsQueueIndex = chosen.queues.GraphicsFamilyIndex
	device.PresentQueueIndex = chosen.queues.PresentFamilyIndex
	device.ComputeQueueIndex = chosen.queues.ComputeFamilyIndex
	device.SwapchainSupport = chosen.support

	// Keep a copy of properties, features and memory info for later use.
	device.Properties = properties
	device.Features = chosen.features
	device.Memory = memory

	core.LogInfo("Physical device selected.")
	return nil
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	name := vk.ToString(properties.DeviceName[:])

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	flags := make([]vk.QueueFlags, queueFamilyCount)
	present := make([]bool, queueFamilyCount)
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags[i] = queueFamilies[i].QueueFlags

		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false
		}
		present[i] = supportsPresent == vk.True
	}

	info := pickQueueFamilies(flags, present)
	*outQueueInfo = info

	// Print out some info about the device
	core.LogInfo("Graphics | Present | Compute | Name")
	core.LogInfo("%8d | %7d | %7d | %s", info.GraphicsFamilyIndex, info.PresentFamilyIndex, info.ComputeFamilyIndex, name)

	if (requirements.Graphics && info.GraphicsFamilyIndex < 0) ||
		(requirements.Present && info.PresentFamilyIndex < 0) ||
		(requirements.Compute && info.ComputeFamilyIndex < 0) {
		core.LogInfo("Device '%s' does not meet queue requirements, skipping.", name)
		return false
	}
	core.LogDebug("Graphics Family Index: %d", info.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", info.PresentFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", info.ComputeFamilyIndex)

	// Query swapchain support.
	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogInfo("Swapchain support query failed on '%s': %s", name, err)
		return false
	}
	if len(outSwapchainSupport.Formats) < 1 || len(outSwapchainSupport.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	// Device extensions.
	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensionNames(device)
		if err != nil {
			return false
		}
		for _, required := range requirements.DeviceExtensionNames {
			if _, ok := available[required]; !ok {
				core.LogInfo("Required extension not found: '%s', skipping device.", required)
				return false
			}
		}
	}

	return true
}

// pickQueueFamilies chooses queue family indices. A family that does
// graphics, compute and present at once wins, so the shared storage image can
// stay exclusive; otherwise each role takes the first family that has it.
func pickQueueFamilies(flags []vk.QueueFlags, present []bool) VulkanPhysicalDeviceQueueFamilyInfo {
	info := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		ComputeFamilyIndex:  -1,
	}
	graphicsBit := vk.QueueFlags(vk.QueueGraphicsBit)
	computeBit := vk.QueueFlags(vk.QueueComputeBit)

	for i, f := range flags {
		if f&graphicsBit != 0 && f&computeBit != 0 && present[i] {
			info.GraphicsFamilyIndex = int32(i)
			info.PresentFamilyIndex = int32(i)
			info.ComputeFamilyIndex = int32(i)
			return info
		}
	}

	for i, f := range flags {
		if info.GraphicsFamilyIndex < 0 && f&graphicsBit != 0 {
			info.GraphicsFamilyIndex = int32(i)
		}
		if info.ComputeFamilyIndex < 0 && f&computeBit != 0 {
			info.ComputeFamilyIndex = int32(i)
		}
		if info.PresentFamilyIndex < 0 && present[i] {
			info.PresentFamilyIndex = int32(i)
		}
	}
	// Present on the graphics family when it can.
	if info.GraphicsFamilyIndex >= 0 && present[info.GraphicsFamilyIndex] {
		info.PresentFamilyIndex = info.GraphicsFamilyIndex
	}
	return info
}

func uniqueFamilies(indices ...int32) []uint32 {
	out := make([]uint32, 0, len(indices))
	for _, idx := range indices {
		found := false
		for _, o := range out {
			if o == uint32(idx) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, uint32(idx))
		}
	}
	return out
}

func deviceExtensionNames(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	properties := make([]vk.ExtensionProperties, count)
	if count != 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, properties); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	names := make(map[string]struct{}, count)
	for i := range properties {
		properties[i].Deref()
		names[vk.ToString(properties[i].ExtensionName[:])] = struct{}{}
	}
	return names, nil
}
