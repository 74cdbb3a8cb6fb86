package raytrace

import (
	"fmt"
	"image"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
)

// rgbaFromPixels wraps tightly packed RGBA8 rows in an image.
func rgbaFromPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("readback of %d bytes does not cover %dx%d RGBA8", len(pixels), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)
	return img, nil
}

// Capture copies the storage image to host memory once the device is idle.
// The image stays in the General layout.
func Capture(context *vulkan.VulkanContext, target *StorageImage) (*image.RGBA, error) {
	img := target.Image
	size := uint64(img.Width) * uint64(img.Height) * 4

	if err := vulkan.DeviceWaitIdle(context); err != nil {
		return nil, err
	}

	readback, err := vulkan.NewBuffer(context, "readback", size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer readback.Destroy(context)

	err = vulkan.SingleUse(context, func(cb *vulkan.VulkanCommandBuffer) error {
		img.CmdImageBarrier(cb, vulkan.ImageBarrier{
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit | vk.PipelineStageFragmentShaderBit),
			DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			SrcAccess: vk.AccessFlags(vk.AccessShaderWriteBit),
			DstAccess: vk.AccessFlags(vk.AccessTransferReadBit),
			OldLayout: vk.ImageLayoutGeneral,
			NewLayout: vk.ImageLayoutGeneral,
		})
		img.CmdCopyToBuffer(cb, vk.ImageLayoutGeneral, readback)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	pixels := make([]byte, size)
	if err := readback.Read(context, pixels); err != nil {
		return nil, err
	}
	core.LogDebug("captured %dx%d storage image", img.Width, img.Height)
	return rgbaFromPixels(pixels, int(img.Width), int(img.Height))
}

// Capture reads back the last traced frame.
func (a *App) Capture() (*image.RGBA, error) {
	if !a.initialized {
		return nil, fmt.Errorf("capture before init: %w", core.ErrInitialization)
	}
	return Capture(a.context, a.target)
}
