package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	// One per swapchain image, recorded once by the application.
	GraphicsCommandBuffers []*VulkanCommandBuffer

	// Signaled by the swapchain when the acquired image can be written.
	ImageAvailableSemaphore *VulkanSemaphore
	// Signaled by the graphics submission, waited on by present.
	RenderFinishedSemaphore *VulkanSemaphore

	ImageIndex uint32

	// Every object created through this package is tagged here.
	Tracker *core.Tracker
	// Serializes queue submissions when compute and graphics alias one queue.
	LockPool *VulkanLockPool
}

func NewVulkanContext() *VulkanContext {
	return &VulkanContext{
		Allocator: nil,
		Device:    &VulkanDevice{},
		Tracker:   core.NewTracker(),
		LockPool:  NewVulkanLockPool(),
	}
}

func (vc *VulkanContext) track(kind core.ResourceKind, name string) uuid.UUID {
	if vc.Tracker == nil {
		return uuid.Nil
	}
	return vc.Tracker.Track(kind, name)
}

func (vc *VulkanContext) release(id uuid.UUID) {
	if vc.Tracker == nil || id == uuid.Nil {
		return
	}
	if err := vc.Tracker.Release(id); err != nil {
		core.LogWarn(err.Error())
	}
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// QueueFamilyIndices lists the distinct families of the graphics and compute
// queues. A single entry means resources can stay exclusive.
func (vc *VulkanContext) QueueFamilyIndices() []uint32 {
	g := uint32(vc.Device.GraphicsQueueIndex)
	c := uint32(vc.Device.ComputeQueueIndex)
	if g == c {
		return []uint32{g}
	}
	return []uint32{g, c}
}
