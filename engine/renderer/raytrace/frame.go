package raytrace

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
)

// frameSync orders one frame in flight across the compute and graphics
// queues.
type frameSync struct {
	computeFence  *vulkan.VulkanFence
	graphicsFence *vulkan.VulkanFence
	// compute -> graphics
	computeDone *vulkan.VulkanSemaphore
	// graphics -> next compute
	graphicsDone *vulkan.VulkanSemaphore
	// Set once graphicsDone has a pending signal to wait on.
	graphicsSubmitted bool
}

func newFrameSync(context *vulkan.VulkanContext) (*frameSync, error) {
	fs := &frameSync{}
	var err error
	// Fences start signaled so the first frame does not block.
	if fs.computeFence, err = vulkan.NewFence(context, "compute", true); err == nil {
		if fs.graphicsFence, err = vulkan.NewFence(context, "graphics", true); err == nil {
			if fs.computeDone, err = vulkan.NewSemaphore(context, "compute-done"); err == nil {
				fs.graphicsDone, err = vulkan.NewSemaphore(context, "graphics-done")
			}
		}
	}
	if err != nil {
		fs.destroy(context)
		return nil, err
	}
	return fs, nil
}

func (fs *frameSync) destroy(context *vulkan.VulkanContext) {
	for _, s := range []*vulkan.VulkanSemaphore{fs.graphicsDone, fs.computeDone} {
		s.Destroy(context)
	}
	for _, f := range []*vulkan.VulkanFence{fs.graphicsFence, fs.computeFence} {
		if f != nil {
			f.FenceDestroy(context)
		}
	}
}

// computeSubmit is the compute submission of one frame. The first frame has
// no graphics work to wait for.
func (fs *frameSync) computeSubmit(cb *vulkan.VulkanCommandBuffer) vulkan.VulkanSubmit {
	s := vulkan.VulkanSubmit{
		CommandBuffer: cb,
		Signal:        []vk.Semaphore{fs.computeDone.Handle},
	}
	if fs.graphicsSubmitted {
		s.Wait = []vk.Semaphore{fs.graphicsDone.Handle}
		s.WaitStages = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)}
	}
	return s
}

func (fs *frameSync) graphicsSubmit(cb *vulkan.VulkanCommandBuffer, imageAvailable, renderFinished vk.Semaphore) vulkan.VulkanSubmit {
	return vulkan.VulkanSubmit{
		CommandBuffer: cb,
		Wait:          []vk.Semaphore{fs.computeDone.Handle, imageAvailable},
		WaitStages: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		Signal: []vk.Semaphore{renderFinished, fs.graphicsDone.Handle},
	}
}

// Render runs one frame: wait for the previous one, update the uniform block,
// trace, acquire, present.
func (a *App) Render() error {
	if !a.initialized {
		return fmt.Errorf("render before init: %w", core.ErrInitialization)
	}
	ctx := a.context
	device := ctx.Device
	fs := a.sync

	// The uniform block and the static command buffers are only touched once
	// the previous frame has finished with them.
	if err := fs.computeFence.FenceWait(ctx, math.MaxUint64); err != nil {
		return err
	}
	if err := fs.graphicsFence.FenceWait(ctx, math.MaxUint64); err != nil {
		return err
	}

	dt := a.pendingDelta
	a.pendingDelta = 0
	if err := a.uniform.Update(ctx, dt); err != nil {
		return err
	}

	// Reset only right before the submit that signals it again, or a failed
	// frame leaves the next wait blocked forever.
	if err := fs.computeFence.FenceReset(ctx); err != nil {
		return err
	}
	if err := vulkan.QueueSubmit(ctx, device.ComputeQueue, uint32(device.ComputeQueueIndex),
		fs.computeSubmit(a.compute.CommandBuffer), fs.computeFence); err != nil {
		return fmt.Errorf("compute submit: %w", err)
	}

	imageIndex, err := a.presenter.AcquireNextImage()
	if err != nil {
		return err
	}

	if err := fs.graphicsFence.FenceReset(ctx); err != nil {
		return err
	}
	cb := ctx.GraphicsCommandBuffers[imageIndex]
	if err := vulkan.QueueSubmit(ctx, device.GraphicsQueue, uint32(device.GraphicsQueueIndex),
		fs.graphicsSubmit(cb, ctx.ImageAvailableSemaphore.Handle, ctx.RenderFinishedSemaphore.Handle), fs.graphicsFence); err != nil {
		return fmt.Errorf("graphics submit: %w", err)
	}
	fs.graphicsSubmitted = true

	if err := a.presenter.Present(); err != nil {
		return err
	}
	a.frame++
	return nil
}
