package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
	tag        uuid.UUID
}

func NewFence(context *VulkanContext, name string, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := resultError("vkCreateFence", res)
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	fence.tag = context.track(core.ResourceFence, name)
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
		context.release(vf.tag)
	}
	vf.IsSignaled = false
}

// FenceWait blocks until the fence is signaled or the timeout expires.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("fence wait timed out after %dns", timeoutNs)
	default:
		err := resultError("vkWaitForFences", result)
		core.LogError(err.Error())
		return err
	}
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := resultError("vkResetFences", res)
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

// MarkSubmitted records that a submission will signal the fence.
func (vf *VulkanFence) MarkSubmitted() {
	vf.IsSignaled = false
}

type VulkanSemaphore struct {
	Handle vk.Semaphore
	tag    uuid.UUID
}

func NewSemaphore(context *VulkanContext, name string) (*VulkanSemaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError(fmt.Sprintf("vkCreateSemaphore(%s)", name), res)
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanSemaphore{
		Handle: handle,
		tag:    context.track(core.ResourceSemaphore, name),
	}, nil
}

func (s *VulkanSemaphore) Destroy(context *VulkanContext) {
	if s == nil || s.Handle == vk.NullSemaphore {
		return
	}
	vk.DestroySemaphore(context.Device.LogicalDevice, s.Handle, context.Allocator)
	s.Handle = vk.NullSemaphore
	context.release(s.tag)
}
