package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

// VulkanDescriptorBinding declares one binding of a set layout.
type VulkanDescriptorBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	Stages  vk.ShaderStageFlags
}

type VulkanDescriptorSetLayout struct {
	Handle   vk.DescriptorSetLayout
	Bindings []VulkanDescriptorBinding
	tag      uuid.UUID
}

func NewDescriptorSetLayout(context *VulkanContext, name string, bindings []VulkanDescriptorBinding) (*VulkanDescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: 1,
			StageFlags:      b.Stages,
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var handle vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("descriptor set layout %s: %w", name, resultError("vkCreateDescriptorSetLayout", res))
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanDescriptorSetLayout{
		Handle:   handle,
		Bindings: bindings,
		tag:      context.track(core.ResourceDescriptorSetLayout, name),
	}, nil
}

func (l *VulkanDescriptorSetLayout) Destroy(context *VulkanContext) {
	if l.Handle == vk.NullDescriptorSetLayout {
		return
	}
	vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, l.Handle, context.Allocator)
	l.Handle = vk.NullDescriptorSetLayout
	context.release(l.tag)
}

// PoolSizes counts the descriptors of each type needed by one set of every
// layout.
func PoolSizes(layouts ...[]VulkanDescriptorBinding) []vk.DescriptorPoolSize {
	counts := map[vk.DescriptorType]uint32{}
	var order []vk.DescriptorType
	for _, bindings := range layouts {
		for _, b := range bindings {
			if _, seen := counts[b.Type]; !seen {
				order = append(order, b.Type)
			}
			counts[b.Type]++
		}
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(order))
	for _, t := range order {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]})
	}
	return sizes
}

type VulkanDescriptorPool struct {
	Handle  vk.DescriptorPool
	MaxSets uint32
	tag     uuid.UUID
}

func NewDescriptorPool(context *VulkanContext, name string, maxSets uint32, sizes []vk.DescriptorPoolSize) (*VulkanDescriptorPool, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var handle vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("descriptor pool %s: %w", name, resultError("vkCreateDescriptorPool", res))
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanDescriptorPool{
		Handle:  handle,
		MaxSets: maxSets,
		tag:     context.track(core.ResourceDescriptorPool, name),
	}, nil
}

// Allocate allocates one set per layout. Exhaustion is reported as
// core.ErrDescriptorPool.
func (p *VulkanDescriptorPool) Allocate(context *VulkanContext, layouts ...*VulkanDescriptorSetLayout) ([]vk.DescriptorSet, error) {
	handles := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		handles[i] = l.Handle
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: uint32(len(handles)),
		PSetLayouts:        handles,
	}
	sets := make([]vk.DescriptorSet, len(handles))
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		err := resultError("vkAllocateDescriptorSets", res)
		if res == vk.ErrorOutOfHostMemory || res == vk.ErrorOutOfDeviceMemory {
			err = fmt.Errorf("%w: %w", core.ErrDescriptorPool, err)
		}
		core.LogError(err.Error())
		return nil, err
	}
	return sets, nil
}

func (p *VulkanDescriptorPool) Destroy(context *VulkanContext) {
	if p.Handle == vk.NullDescriptorPool {
		return
	}
	// Sets allocated from the pool are freed with it.
	vk.DestroyDescriptorPool(context.Device.LogicalDevice, p.Handle, context.Allocator)
	p.Handle = vk.NullDescriptorPool
	context.release(p.tag)
}

// DescriptorWriter batches writes to descriptor sets.
type DescriptorWriter struct {
	writes []vk.WriteDescriptorSet
}

func (w *DescriptorWriter) Buffer(set vk.DescriptorSet, binding uint32, kind vk.DescriptorType, buffer *VulkanBuffer) *DescriptorWriter {
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(buffer.Size),
		}},
	})
	return w
}

func (w *DescriptorWriter) Image(set vk.DescriptorSet, binding uint32, kind vk.DescriptorType, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) *DescriptorWriter {
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: layout,
		}},
	})
	return w
}

func (w *DescriptorWriter) Len() int {
	return len(w.writes)
}

func (w *DescriptorWriter) Update(context *VulkanContext) {
	if len(w.writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(w.writes)), w.writes, 0, nil)
	w.writes = nil
}
