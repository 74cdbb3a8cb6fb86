package raytrace

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
)

// StorageImageFormat matches the rgba8 qualifier of the compute shader.
const StorageImageFormat = vk.FormatR8g8b8a8Unorm

// StorageImage is the render target: written by compute, sampled by the
// full-screen pass, copied out for captures.
type StorageImage struct {
	Image   *vulkan.VulkanImage
	Sampler *vulkan.VulkanSampler
}

func storageImageUsage() vk.ImageUsageFlags {
	return vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit)
}

func storageImageFeatures() vk.FormatFeatureFlags {
	return vk.FormatFeatureFlags(vk.FormatFeatureStorageImageBit | vk.FormatFeatureSampledImageBit)
}

// NewStorageImage creates the target at width x height and moves it to the
// General layout, where it stays for the rest of its life.
func NewStorageImage(context *vulkan.VulkanContext, width, height uint32) (*StorageImage, error) {
	if !vulkan.DeviceSupportsFormat(context.Device, StorageImageFormat, storageImageFeatures()) {
		return nil, fmt.Errorf("storage image: format %d lacks storage/sampled support: %w", StorageImageFormat, core.ErrInitialization)
	}

	img, err := vulkan.ImageCreate(context, "storage-image", vulkan.VulkanImageConfig{
		Width:         width,
		Height:        height,
		Format:        StorageImageFormat,
		Usage:         storageImageUsage(),
		MemoryFlags:   vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		QueueFamilies: context.QueueFamilyIndices(),
		CreateView:    true,
	})
	if err != nil {
		return nil, err
	}
	si := &StorageImage{Image: img}

	if err := img.TransitionLayout(context, vk.ImageLayoutGeneral,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.AccessFlags(vk.AccessShaderWriteBit)); err != nil {
		si.Destroy(context)
		return nil, err
	}

	sampler, err := vulkan.NewLinearClampSampler(context, "storage-image")
	if err != nil {
		si.Destroy(context)
		return nil, err
	}
	si.Sampler = sampler
	return si, nil
}

func (si *StorageImage) Destroy(context *vulkan.VulkanContext) {
	if si.Sampler != nil {
		si.Sampler.Destroy(context)
		si.Sampler = nil
	}
	if si.Image != nil {
		si.Image.ImageDestroy(context)
		si.Image = nil
	}
}
