package raytrace

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

// Descriptors owns the single pool and the two sets allocated from it.
type Descriptors struct {
	Pool        *vulkan.VulkanDescriptorPool
	ComputeSet  vk.DescriptorSet
	GraphicsSet vk.DescriptorSet
}

const maxDescriptorSets = 2

// poolSizes covers exactly one compute set and one graphics set.
func poolSizes() []vk.DescriptorPoolSize {
	return vulkan.PoolSizes(computeBindings(), graphicsBindings())
}

func newDescriptors(context *vulkan.VulkanContext, compute, graphics *vulkan.VulkanDescriptorSetLayout) (*Descriptors, error) {
	pool, err := vulkan.NewDescriptorPool(context, "raytrace", maxDescriptorSets, poolSizes())
	if err != nil {
		return nil, err
	}
	sets, err := pool.Allocate(context, compute, graphics)
	if err != nil {
		pool.Destroy(context)
		return nil, err
	}
	return &Descriptors{Pool: pool, ComputeSet: sets[0], GraphicsSet: sets[1]}, nil
}

// write points both sets at their resources. Buffer sizes are checked against
// the record layouts first.
func (d *Descriptors) write(context *vulkan.VulkanContext, target *StorageImage, uniform *UniformBuffer, buffers *SceneBuffers) error {
	if err := buffers.CheckSizes(); err != nil {
		core.LogError(err.Error())
		return err
	}
	if uniform.Buffer.Size != scene.UniformBlockSize {
		err := fmt.Errorf("%w: uniform buffer is %d bytes, block is %d", core.ErrLayoutMismatch, uniform.Buffer.Size, scene.UniformBlockSize)
		core.LogError(err.Error())
		return err
	}

	var w vulkan.DescriptorWriter
	w.Image(d.ComputeSet, BindingResultImage, vk.DescriptorTypeStorageImage, target.Image.View, vk.NullSampler, vk.ImageLayoutGeneral).
		Buffer(d.ComputeSet, BindingUniform, vk.DescriptorTypeUniformBuffer, uniform.Buffer).
		Buffer(d.ComputeSet, BindingSpheres, vk.DescriptorTypeStorageBuffer, buffers.Spheres).
		Buffer(d.ComputeSet, BindingPlanes, vk.DescriptorTypeStorageBuffer, buffers.Planes).
		Buffer(d.ComputeSet, BindingTriangles, vk.DescriptorTypeStorageBuffer, buffers.Triangles).
		Image(d.GraphicsSet, BindingSampledImage, vk.DescriptorTypeCombinedImageSampler, target.Image.View, target.Sampler.Handle, vk.ImageLayoutGeneral)
	w.Update(context)
	return nil
}

func (d *Descriptors) destroy(context *vulkan.VulkanContext) {
	if d.Pool != nil {
		d.Pool.Destroy(context)
		d.Pool = nil
	}
	d.ComputeSet, d.GraphicsSet = nil, nil
}
