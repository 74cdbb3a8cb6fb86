package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
	Name   string
	// Layout the image is in outside of recorded barriers.
	Layout vk.ImageLayout

	imageTag  uuid.UUID
	memoryTag uuid.UUID
	viewTag   uuid.UUID
}

type VulkanImageConfig struct {
	Width, Height uint32
	Format        vk.Format
	Usage         vk.ImageUsageFlags
	MemoryFlags   vk.MemoryPropertyFlags
	// Families that access the image. More than one distinct family selects
	// concurrent sharing.
	QueueFamilies []uint32
	CreateView    bool
}

// ImageCreate creates a 2D optimal-tiling image in Undefined layout.
func ImageCreate(context *VulkanContext, name string, config VulkanImageConfig) (*VulkanImage, error) {
	device := context.Device.LogicalDevice
	image := &VulkanImage{
		Format: config.Format,
		Width:  config.Width,
		Height: config.Height,
		Name:   name,
		Layout: vk.ImageLayoutUndefined,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  config.Width,
			Height: config.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        config.Format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         config.Usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	if len(config.QueueFamilies) > 1 {
		imageCreateInfo.SharingMode = vk.SharingModeConcurrent
		imageCreateInfo.QueueFamilyIndexCount = uint32(len(config.QueueFamilies))
		imageCreateInfo.PQueueFamilyIndices = config.QueueFamilies
	}

	var handle vk.Image
	if res := vk.CreateImage(device, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("image %s: %w", name, resultError("vkCreateImage", res))
		core.LogError(err.Error())
		return nil, err
	}
	image.Handle = handle
	image.imageTag = context.track(core.ResourceImage, name)

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, config.MemoryFlags)
	if memoryIndex < 0 {
		image.ImageDestroy(context)
		err := fmt.Errorf("image %s: required memory type not found: %w", name, core.ErrInitialization)
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
		image.ImageDestroy(context)
		err := fmt.Errorf("image %s: %w", name, resultError("vkAllocateMemory", res))
		core.LogError(err.Error())
		return nil, err
	}
	image.Memory = memory
	image.memoryTag = context.track(core.ResourceMemory, name)

	if res := vk.BindImageMemory(device, handle, memory, 0); res != vk.Success {
		image.ImageDestroy(context)
		err := fmt.Errorf("image %s: %w", name, resultError("vkBindImageMemory", res))
		core.LogError(err.Error())
		return nil, err
	}

	if config.CreateView {
		view, err := createImageView(context, handle, config.Format)
		if err != nil {
			image.ImageDestroy(context)
			return nil, err
		}
		image.View = view
		image.viewTag = context.track(core.ResourceImageView, name)
	}
	return image, nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(device, vi.View, context.Allocator)
		vi.View = vk.NullImageView
		context.release(vi.viewTag)
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
		context.release(vi.memoryTag)
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
		context.release(vi.imageTag)
	}
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

// ImageBarrier describes one execution and memory dependency on a color image.
type ImageBarrier struct {
	SrcStage, DstStage   vk.PipelineStageFlags
	SrcAccess, DstAccess vk.AccessFlags
	OldLayout, NewLayout vk.ImageLayout
}

// CmdImageBarrier records b for the whole color image. Ownership never moves
// between families: the image is either exclusive to one family or shared
// concurrently.
func (vi *VulkanImage) CmdImageBarrier(cb *VulkanCommandBuffer, b ImageBarrier) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		OldLayout:           b.OldLayout,
		NewLayout:           b.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange:    colorSubresourceRange(),
	}
	vk.CmdPipelineBarrier(cb.Handle, b.SrcStage, b.DstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// TransitionLayout moves the image to newLayout with a one-time command
// buffer on the graphics queue and waits for it.
func (vi *VulkanImage) TransitionLayout(context *VulkanContext, newLayout vk.ImageLayout, dstStage vk.PipelineStageFlags, dstAccess vk.AccessFlags) error {
	err := SingleUse(context, func(cb *VulkanCommandBuffer) error {
		vi.CmdImageBarrier(cb, ImageBarrier{
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			DstStage:  dstStage,
			SrcAccess: 0,
			DstAccess: dstAccess,
			OldLayout: vi.Layout,
			NewLayout: newLayout,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("image %s layout transition: %w", vi.Name, err)
	}
	vi.Layout = newLayout
	return nil
}

// CmdCopyToBuffer records a tightly packed copy of the whole image into dst.
// The image must be in layout.
func (vi *VulkanImage) CmdCopyToBuffer(cb *VulkanCommandBuffer, layout vk.ImageLayout, dst *VulkanBuffer) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: vi.Width, Height: vi.Height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cb.Handle, vi.Handle, layout, dst.Handle, 1, []vk.BufferImageCopy{region})
}

type VulkanSampler struct {
	Handle vk.Sampler
	tag    uuid.UUID
}

// NewLinearClampSampler creates a bilinear sampler clamping at the edges.
func NewLinearClampSampler(context *VulkanContext, name string) (*VulkanSampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		MipLodBias:              0,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  0,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var handle vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("sampler %s: %w", name, resultError("vkCreateSampler", res))
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanSampler{Handle: handle, tag: context.track(core.ResourceSampler, name)}, nil
}

func (s *VulkanSampler) Destroy(context *VulkanContext) {
	if s.Handle == vk.NullSampler {
		return
	}
	vk.DestroySampler(context.Device.LogicalDevice, s.Handle, context.Allocator)
	s.Handle = vk.NullSampler
	context.release(s.tag)
}
