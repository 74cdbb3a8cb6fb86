package vulkan

import (
	"math"
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	graphics = vk.QueueFlags(vk.QueueGraphicsBit)
	compute  = vk.QueueFlags(vk.QueueComputeBit)
	transfer = vk.QueueFlags(vk.QueueTransferBit)
)

func TestPickQueueFamiliesPrefersUniversalFamily(t *testing.T) {
	flags := []vk.QueueFlags{transfer, compute | transfer, graphics | compute | transfer}
	present := []bool{false, false, true}

	info := pickQueueFamilies(flags, present)
	assert.Equal(t, int32(2), info.GraphicsFamilyIndex)
	assert.Equal(t, int32(2), info.ComputeFamilyIndex)
	assert.Equal(t, int32(2), info.PresentFamilyIndex)
}

func TestPickQueueFamiliesFirstFamilyIsValid(t *testing.T) {
	// Family zero is a real index, not "missing".
	info := pickQueueFamilies([]vk.QueueFlags{graphics | compute}, []bool{true})
	assert.Equal(t, int32(0), info.GraphicsFamilyIndex)
	assert.Equal(t, int32(0), info.ComputeFamilyIndex)
	assert.Equal(t, int32(0), info.PresentFamilyIndex)
}

func TestPickQueueFamiliesSplitFamilies(t *testing.T) {
	flags := []vk.QueueFlags{graphics, compute, transfer}
	present := []bool{true, false, false}

	info := pickQueueFamilies(flags, present)
	assert.Equal(t, int32(0), info.GraphicsFamilyIndex)
	assert.Equal(t, int32(1), info.ComputeFamilyIndex)
	assert.Equal(t, int32(0), info.PresentFamilyIndex)
}

func TestPickQueueFamiliesMissingCompute(t *testing.T) {
	info := pickQueueFamilies([]vk.QueueFlags{graphics}, []bool{true})
	assert.Equal(t, int32(-1), info.ComputeFamilyIndex)
}

func TestUniqueFamilies(t *testing.T) {
	assert.Equal(t, []uint32{0}, uniqueFamilies(0, 0, 0))
	assert.Equal(t, []uint32{0, 2}, uniqueFamilies(0, 0, 2))
	assert.Equal(t, []uint32{1, 0, 2}, uniqueFamilies(1, 0, 2))
}

func TestQueueFamilyIndices(t *testing.T) {
	ctx := &VulkanContext{Device: &VulkanDevice{GraphicsQueueIndex: 0, ComputeQueueIndex: 0}}
	assert.Equal(t, []uint32{0}, ctx.QueueFamilyIndices())

	ctx.Device.ComputeQueueIndex = 3
	assert.Equal(t, []uint32{0, 3}, ctx.QueueFamilyIndices())
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, preferred, chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred}))
	assert.Equal(t, other, chooseSurfaceFormat([]vk.SurfaceFormat{other}))
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate}))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(nil))
}

func TestChooseExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, chooseExtent(caps, 1024, 768))

	caps.CurrentExtent = vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, chooseExtent(caps, 1024, 768))
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 1}, chooseExtent(caps, 10000, 0))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2}))
	assert.Equal(t, uint32(2), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}

func TestPoolSizes(t *testing.T) {
	stage := vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	computeBindings := []VulkanDescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeStorageImage, Stages: stage},
		{Binding: 1, Type: vk.DescriptorTypeUniformBuffer, Stages: stage},
		{Binding: 2, Type: vk.DescriptorTypeStorageBuffer, Stages: stage},
		{Binding: 3, Type: vk.DescriptorTypeStorageBuffer, Stages: stage},
		{Binding: 4, Type: vk.DescriptorTypeStorageBuffer, Stages: stage},
	}
	graphicsBindings := []VulkanDescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeCombinedImageSampler, Stages: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}

	sizes := PoolSizes(computeBindings, graphicsBindings)
	require.Len(t, sizes, 4)
	assert.Equal(t, vk.DescriptorPoolSize{Type: vk.DescriptorTypeStorageImage, DescriptorCount: 1}, sizes[0])
	assert.Equal(t, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1}, sizes[1])
	assert.Equal(t, vk.DescriptorPoolSize{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 3}, sizes[2])
	assert.Equal(t, vk.DescriptorPoolSize{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1}, sizes[3])
}

func TestResultError(t *testing.T) {
	assert.NoError(t, resultError("op", vk.Success))
	assert.NoError(t, resultError("op", vk.Suboptimal))

	err := resultError("vkQueueSubmit", vk.ErrorDeviceLost)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")

	assert.ErrorIs(t, resultError("acquire", vk.ErrorOutOfDate), core.ErrSwapchainOutOfDate)
	assert.ErrorIs(t, resultError("alloc", vk.ErrorOutOfPoolMemory), core.ErrDescriptorPool)
	assert.ErrorIs(t, resultError("create", vk.ErrorOutOfDeviceMemory), core.ErrInitialization)
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_TIMEOUT", VulkanResultString(vk.Timeout, false))
	assert.Contains(t, VulkanResultString(vk.Timeout, true), "wait operation")
	assert.Equal(t, "VkResult(12345)", VulkanResultString(vk.Result(12345), false))
}

func TestVulkanSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0], "input is not modified")
}

func TestLockPoolSerializesQueueCalls(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	var wg sync.WaitGroup
	inside := 0
	maxInside := 0
	var mu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeQueueCall(0, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestLockPoolGroupsDoNotBlockEachOther(t *testing.T) {
	pool := NewVulkanLockPool()
	err := pool.SafeCall(PipelineManagement, func() error {
		// A different group can be taken while the first is held.
		return pool.SafeCall(SynchronizationManagement, func() error { return nil })
	})
	assert.NoError(t, err)

	// Unregistered queue family gets a lock on first use.
	assert.NoError(t, pool.SafeQueueCall(7, func() error { return nil }))
}
