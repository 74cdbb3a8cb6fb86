package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlags
	Props  vk.MemoryPropertyFlags
	Name   string

	mapped    unsafe.Pointer
	bufferTag uuid.UUID
	memoryTag uuid.UUID
}

// NewBuffer creates a buffer of size bytes and binds freshly allocated memory
// with the requested properties.
func NewBuffer(context *VulkanContext, name string, size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %s: zero size: %w", name, core.ErrInitialization)
	}
	device := context.Device.LogicalDevice
	buffer := &VulkanBuffer{Size: size, Usage: usage, Props: props, Name: name}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(device, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("buffer %s: %w", name, resultError("vkCreateBuffer", res))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle
	buffer.bufferTag = context.track(core.ResourceBuffer, name)

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, props)
	if memoryIndex < 0 {
		buffer.Destroy(context)
		err := fmt.Errorf("buffer %s: no memory type with properties %#x: %w", name, uint32(props), core.ErrInitialization)
		core.LogError(err.Error())
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocInfo, context.Allocator, &memory); res != vk.Success {
		buffer.Destroy(context)
		err := fmt.Errorf("buffer %s: %w", name, resultError("vkAllocateMemory", res))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Memory = memory
	buffer.memoryTag = context.track(core.ResourceMemory, name)

	if res := vk.BindBufferMemory(device, handle, memory, 0); res != vk.Success {
		buffer.Destroy(context)
		err := fmt.Errorf("buffer %s: %w", name, resultError("vkBindBufferMemory", res))
		core.LogError(err.Error())
		return nil, err
	}
	return buffer, nil
}

func (b *VulkanBuffer) hostVisible() bool {
	want := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	return b.Props&want == want
}

// Map maps the whole buffer and keeps the pointer until Unmap.
func (b *VulkanBuffer) Map(context *VulkanContext) (unsafe.Pointer, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	if !b.hostVisible() {
		return nil, fmt.Errorf("buffer %s is not host visible", b.Name)
	}
	var pData unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.Size), 0, &pData); res != vk.Success {
		err := fmt.Errorf("buffer %s: %w", b.Name, resultError("vkMapMemory", res))
		core.LogError(err.Error())
		return nil, err
	}
	b.mapped = pData
	return pData, nil
}

func (b *VulkanBuffer) Unmap(context *VulkanContext) {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	b.mapped = nil
}

// Mapped returns the persistent mapping, or nil.
func (b *VulkanBuffer) Mapped() unsafe.Pointer {
	return b.mapped
}

// Write copies data to the start of a host visible buffer. A buffer that is
// not mapped yet is mapped for the copy and unmapped again.
func (b *VulkanBuffer) Write(context *VulkanContext, data []byte) error {
	if uint64(len(data)) > b.Size {
		return fmt.Errorf("buffer %s: write of %d bytes exceeds size %d", b.Name, len(data), b.Size)
	}
	persistent := b.mapped != nil
	ptr, err := b.Map(context)
	if err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	if !persistent {
		b.Unmap(context)
	}
	return nil
}

// Read copies the first len(out) bytes of a host visible buffer into out.
func (b *VulkanBuffer) Read(context *VulkanContext, out []byte) error {
	if uint64(len(out)) > b.Size {
		return fmt.Errorf("buffer %s: read of %d bytes exceeds size %d", b.Name, len(out), b.Size)
	}
	persistent := b.mapped != nil
	ptr, err := b.Map(context)
	if err != nil {
		return err
	}
	copy(out, unsafe.Slice((*byte)(ptr), len(out)))
	if !persistent {
		b.Unmap(context)
	}
	return nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	b.Unmap(context)
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
		context.release(b.bufferTag)
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
		context.release(b.memoryTag)
	}
}

// CmdCopyBuffer records a copy of size bytes from src to dst.
func CmdCopyBuffer(cb *VulkanCommandBuffer, src, dst *VulkanBuffer, size uint64) {
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(cb.Handle, src.Handle, dst.Handle, 1, []vk.BufferCopy{region})
}

// NewDeviceLocalBuffer creates a device local buffer with the given usage and
// fills it from data through a temporary staging buffer.
func NewDeviceLocalBuffer(context *VulkanContext, name string, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	size := uint64(len(data))
	staging, err := NewBuffer(context, name+"-staging", size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.Write(context, data); err != nil {
		return nil, err
	}

	buffer, err := NewBuffer(context, name, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	if err := SingleUse(context, func(cb *VulkanCommandBuffer) error {
		CmdCopyBuffer(cb, staging, buffer, size)
		return nil
	}); err != nil {
		buffer.Destroy(context)
		return nil, fmt.Errorf("upload of %s: %w", name, err)
	}
	return buffer, nil
}
