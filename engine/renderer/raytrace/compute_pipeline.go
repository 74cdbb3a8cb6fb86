package raytrace

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	emath "github.com/spaghettifunk/anima-rt/engine/math"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
)

// WorkgroupSize is local_size_x and local_size_y of the compute shader.
const WorkgroupSize = 16

// Compute set bindings.
const (
	BindingResultImage uint32 = iota
	BindingUniform
	BindingSpheres
	BindingPlanes
	BindingTriangles
)

// PushConstants is the uvec4 counts block: spheres, planes, triangles, unused.
type PushConstants struct {
	Counts [4]uint32
}

const pushConstantSize = uint32(unsafe.Sizeof(PushConstants{}))

// DispatchGroups is the number of workgroups covering a width x height image.
func DispatchGroups(width, height uint32) (uint32, uint32) {
	return emath.DivCeil(width, WorkgroupSize), emath.DivCeil(height, WorkgroupSize)
}

func computeBindings() []vulkan.VulkanDescriptorBinding {
	stage := vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	return []vulkan.VulkanDescriptorBinding{
		{Binding: BindingResultImage, Type: vk.DescriptorTypeStorageImage, Stages: stage},
		{Binding: BindingUniform, Type: vk.DescriptorTypeUniformBuffer, Stages: stage},
		{Binding: BindingSpheres, Type: vk.DescriptorTypeStorageBuffer, Stages: stage},
		{Binding: BindingPlanes, Type: vk.DescriptorTypeStorageBuffer, Stages: stage},
		{Binding: BindingTriangles, Type: vk.DescriptorTypeStorageBuffer, Stages: stage},
	}
}

func pushConstantRanges() []vk.PushConstantRange {
	return []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Offset:     0,
		Size:       pushConstantSize,
	}}
}

// ComputePass owns the ray tracing pipeline and its command buffer.
type ComputePass struct {
	SetLayout     *vulkan.VulkanDescriptorSetLayout
	Pipeline      *vulkan.VulkanPipeline
	CommandBuffer *vulkan.VulkanCommandBuffer
}

func (cp *ComputePass) createLayout(context *vulkan.VulkanContext) error {
	layout, err := vulkan.NewDescriptorSetLayout(context, "compute", computeBindings())
	if err != nil {
		return err
	}
	cp.SetLayout = layout
	return nil
}

// createPipeline builds the pipeline from SPIR-V words. The shader module is
// dropped as soon as the pipeline exists.
func (cp *ComputePass) createPipeline(context *vulkan.VulkanContext, code []uint32) error {
	module, err := vulkan.NewShaderModule(context, "raytrace.comp", code, vk.ShaderStageComputeBit)
	if err != nil {
		return err
	}
	defer module.Destroy(context)

	pipeline, err := vulkan.NewComputePipeline(context, "raytrace", module,
		[]vk.DescriptorSetLayout{cp.SetLayout.Handle}, pushConstantRanges())
	if err != nil {
		return err
	}
	cp.Pipeline = pipeline
	return nil
}

// record fills the static compute command buffer: acquire the image from the
// fragment stage, trace, release it back.
func (cp *ComputePass) record(context *vulkan.VulkanContext, set vk.DescriptorSet, target *vulkan.VulkanImage, counts [3]uint32) error {
	cb, err := vulkan.NewVulkanCommandBuffer(context, context.Device.ComputeCommandPool, true)
	if err != nil {
		return fmt.Errorf("compute command buffer: %w", err)
	}
	cp.CommandBuffer = cb

	if err := cb.Begin(false, false, false); err != nil {
		return err
	}

	cp.Pipeline.Bind(cb)
	cp.Pipeline.BindDescriptorSets(cb, set)

	push := PushConstants{Counts: [4]uint32{counts[0], counts[1], counts[2], 0}}
	vk.CmdPushConstants(cb.Handle, cp.Pipeline.PipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, pushConstantSize, unsafe.Pointer(&push))

	target.CmdImageBarrier(cb, vulkan.ImageBarrier{
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		SrcAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderWriteBit),
		OldLayout: vk.ImageLayoutGeneral,
		NewLayout: vk.ImageLayoutGeneral,
	})

	gx, gy := DispatchGroups(target.Width, target.Height)
	vk.CmdDispatch(cb.Handle, gx, gy, 1)

	target.CmdImageBarrier(cb, vulkan.ImageBarrier{
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		SrcAccess: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout: vk.ImageLayoutGeneral,
		NewLayout: vk.ImageLayoutGeneral,
	})

	if err := cb.End(); err != nil {
		return err
	}
	core.LogDebug("compute command buffer recorded: %dx%d groups", gx, gy)
	return nil
}

func (cp *ComputePass) destroy(context *vulkan.VulkanContext) {
	if cp.CommandBuffer != nil {
		cp.CommandBuffer.Free(context, context.Device.ComputeCommandPool)
		cp.CommandBuffer = nil
	}
	if cp.Pipeline != nil {
		cp.Pipeline.Destroy(context)
		cp.Pipeline = nil
	}
	if cp.SetLayout != nil {
		cp.SetLayout.Destroy(context)
		cp.SetLayout = nil
	}
}
