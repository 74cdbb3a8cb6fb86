package raytrace

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
)

// BindingSampledImage is the only binding of the presentation set.
const BindingSampledImage uint32 = 0

func graphicsBindings() []vulkan.VulkanDescriptorBinding {
	return []vulkan.VulkanDescriptorBinding{
		{Binding: BindingSampledImage, Type: vk.DescriptorTypeCombinedImageSampler, Stages: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}
}

// GraphicsPass draws the storage image onto the swapchain with one
// full-screen triangle.
type GraphicsPass struct {
	SetLayout *vulkan.VulkanDescriptorSetLayout
	Pipeline  *vulkan.VulkanPipeline
}

func (gp *GraphicsPass) createLayout(context *vulkan.VulkanContext) error {
	layout, err := vulkan.NewDescriptorSetLayout(context, "fullscreen", graphicsBindings())
	if err != nil {
		return err
	}
	gp.SetLayout = layout
	return nil
}

func fullViewport(width, height uint32) (vk.Viewport, vk.Rect2D) {
	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: width, Height: height},
	}
	return viewport, scissor
}

func (gp *GraphicsPass) createPipeline(context *vulkan.VulkanContext, vertCode, fragCode []uint32) error {
	vert, err := vulkan.NewShaderModule(context, "fullscreen.vert", vertCode, vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	defer vert.Destroy(context)

	frag, err := vulkan.NewShaderModule(context, "fullscreen.frag", fragCode, vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	defer frag.Destroy(context)

	viewport, scissor := fullViewport(context.FramebufferWidth, context.FramebufferHeight)
	pipeline, err := vulkan.NewGraphicsPipeline(context, &vulkan.VulkanPipelineConfig{
		Name:                 "fullscreen",
		Renderpass:           context.MainRenderpass,
		Stride:               0,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{gp.SetLayout.Handle},
		Stages:               []vk.PipelineShaderStageCreateInfo{vert.ShaderStageCreateInfo, frag.ShaderStageCreateInfo},
		Viewport:             viewport,
		Scissor:              scissor,
		CullMode:             vk.CullModeNone,
		Blend:                false,
	})
	if err != nil {
		return err
	}
	gp.Pipeline = pipeline
	return nil
}

// record fills the per-image command buffers the framework allocated. They
// are never re-recorded.
func (gp *GraphicsPass) record(context *vulkan.VulkanContext, set vk.DescriptorSet) error {
	viewport, scissor := fullViewport(context.FramebufferWidth, context.FramebufferHeight)
	framebuffers := context.Swapchain.Framebuffers

	for i, cb := range context.GraphicsCommandBuffers {
		if err := cb.Begin(false, false, false); err != nil {
			return fmt.Errorf("graphics command buffer %d: %w", i, err)
		}
		context.MainRenderpass.RenderpassBegin(cb, framebuffers[i].Handle)

		vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport})
		vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})

		gp.Pipeline.Bind(cb)
		gp.Pipeline.BindDescriptorSets(cb, set)
		vk.CmdDraw(cb.Handle, 3, 1, 0, 0)

		context.MainRenderpass.RenderpassEnd(cb)
		if err := cb.End(); err != nil {
			return fmt.Errorf("graphics command buffer %d: %w", i, err)
		}
	}
	return nil
}

func (gp *GraphicsPass) destroy(context *vulkan.VulkanContext) {
	if gp.Pipeline != nil {
		gp.Pipeline.Destroy(context)
		gp.Pipeline = nil
	}
	if gp.SetLayout != nil {
		gp.SetLayout.Destroy(context)
		gp.SetLayout = nil
	}
}
