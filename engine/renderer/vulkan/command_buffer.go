package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := resultError("vkAllocateCommandBuffers", res)
		core.LogError(err.Error())
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle == nil {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}

	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		err := resultError("vkBeginCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING

	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := resultError("vkEndCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

// AllocateAndBeginSingleUse allocates a primary command buffer and begins
// recording a one-time submission.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits to the queue, waits for it to go idle
// and frees the command buffer.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue, queueFamily uint32) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	return context.LockPool.SafeQueueCall(queueFamily, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			err := fmt.Errorf("single use submit: %w", resultError("vkQueueSubmit", res))
			core.LogError(err.Error())
			return err
		}
		if res := vk.QueueWaitIdle(queue); res != vk.Success {
			err := resultError("vkQueueWaitIdle", res)
			core.LogError(err.Error())
			return err
		}
		v.UpdateSubmitted()
		return nil
	})
}

// SingleUse records fn into a one-time command buffer on the graphics queue
// and waits for it to complete.
func SingleUse(context *VulkanContext, fn func(cb *VulkanCommandBuffer) error) error {
	device := context.Device
	cb, err := AllocateAndBeginSingleUse(context, device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		cb.Free(context, device.GraphicsCommandPool)
		return err
	}
	return cb.EndSingleUse(context, device.GraphicsCommandPool, device.GraphicsQueue, uint32(device.GraphicsQueueIndex))
}

// VulkanSubmit describes one queue submission of a single command buffer.
// WaitStages[i] is the stage that waits on Wait[i].
type VulkanSubmit struct {
	CommandBuffer *VulkanCommandBuffer
	Wait          []vk.Semaphore
	WaitStages    []vk.PipelineStageFlags
	Signal        []vk.Semaphore
}

// QueueSubmit submits s to queue holding the lock of queueFamily. fence, when
// not nil, is signaled on completion.
func QueueSubmit(context *VulkanContext, queue vk.Queue, queueFamily uint32, s VulkanSubmit, fence *VulkanFence) error {
	if len(s.Wait) != len(s.WaitStages) {
		return fmt.Errorf("submit: %d wait semaphores but %d wait stages: %w", len(s.Wait), len(s.WaitStages), core.ErrSubmit)
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(s.Wait)),
		PWaitSemaphores:      s.Wait,
		PWaitDstStageMask:    s.WaitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{s.CommandBuffer.Handle},
		SignalSemaphoreCount: uint32(len(s.Signal)),
		PSignalSemaphores:    s.Signal,
	}
	fenceHandle := vk.NullFence
	if fence != nil {
		fenceHandle = fence.Handle
	}

	return context.LockPool.SafeQueueCall(queueFamily, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fenceHandle); res != vk.Success {
			err := resultError("vkQueueSubmit", res)
			if res != vk.ErrorDeviceLost {
				err = fmt.Errorf("%w: %w", core.ErrSubmit, err)
			}
			core.LogError(err.Error())
			return err
		}
		if fence != nil {
			fence.MarkSubmitted()
		}
		s.CommandBuffer.UpdateSubmitted()
		return nil
	})
}
