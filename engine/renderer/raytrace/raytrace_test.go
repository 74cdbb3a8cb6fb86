package raytrace

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchGroups(t *testing.T) {
	tests := []struct {
		w, h   uint32
		gx, gy uint32
	}{
		{800, 600, 50, 38},
		{16, 16, 1, 1},
		{17, 1, 2, 1},
		{1, 1, 1, 1},
		{1920, 1080, 120, 68},
	}
	for _, tt := range tests {
		gx, gy := DispatchGroups(tt.w, tt.h)
		assert.Equal(t, tt.gx, gx, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.gy, gy, "%dx%d", tt.w, tt.h)
		// Every pixel is covered, no group is entirely outside.
		assert.GreaterOrEqual(t, gx*WorkgroupSize, tt.w)
		assert.Less(t, (gx-1)*WorkgroupSize, tt.w)
	}
}

func TestPushConstantRange(t *testing.T) {
	assert.Equal(t, uint32(16), pushConstantSize)
	ranges := pushConstantRanges()
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(0), ranges[0].Offset)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageComputeBit), ranges[0].StageFlags)
}

func TestComputeBindingsMatchShader(t *testing.T) {
	b := computeBindings()
	require.Len(t, b, 5)
	assert.Equal(t, vk.DescriptorTypeStorageImage, b[0].Type)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, b[1].Type)
	for i, binding := range b {
		assert.Equal(t, uint32(i), binding.Binding)
		if i >= 2 {
			assert.Equal(t, vk.DescriptorTypeStorageBuffer, binding.Type)
		}
	}
}

func TestPoolSizesCoverBothSets(t *testing.T) {
	counts := map[vk.DescriptorType]uint32{}
	for _, s := range poolSizes() {
		counts[s.Type] += s.DescriptorCount
	}
	assert.Equal(t, map[vk.DescriptorType]uint32{
		vk.DescriptorTypeStorageImage:         1,
		vk.DescriptorTypeUniformBuffer:        1,
		vk.DescriptorTypeStorageBuffer:        3,
		vk.DescriptorTypeCombinedImageSampler: 1,
	}, counts)
}

func TestOnResizeRefusesNewExtent(t *testing.T) {
	a := &App{width: 800, height: 600, initialized: true}

	assert.NoError(t, a.OnResize(800, 600))

	err := a.OnResize(1024, 768)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrResizeUnsupported)

	assert.ErrorIs(t, a.OnResize(800, 601), core.ErrResizeUnsupported)
	w, h := a.Extent()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
}

func TestUpdateAccumulatesDelta(t *testing.T) {
	a := &App{}
	assert.True(t, a.Update(0.25))
	assert.True(t, a.Update(0.5))
	assert.InDelta(t, 0.75, a.pendingDelta, 1e-12)
}

func TestRenderBeforeInit(t *testing.T) {
	a := &App{}
	assert.ErrorIs(t, a.Render(), core.ErrInitialization)
	_, err := a.Capture()
	assert.ErrorIs(t, err, core.ErrInitialization)
	assert.NoError(t, a.Cleanup())
}

func TestUniformAdvanceKeepsFrameConstants(t *testing.T) {
	s := scene.DemoScene()
	u := newUniformState(s, 800, 600, 1.0)
	start := u.Block()
	// Squared distance from the Y axis.
	radius := func(b scene.UniformBlock) float32 {
		return b.LightPos[0]*b.LightPos[0] + b.LightPos[2]*b.LightPos[2]
	}

	for _, dt := range []float64{0.016, 0.5, 1.25, 3} {
		u.advance(dt)
		b := u.Block()
		assert.Equal(t, start.AspectRatio, b.AspectRatio)
		assert.Equal(t, start.Fov, b.Fov)
		assert.Equal(t, start.CameraPos, b.CameraPos)
		assert.Equal(t, start.FogColor, b.FogColor)
		assert.InDelta(t, start.LightPos[1], b.LightPos[1], 1e-5)
		assert.InDelta(t, radius(start), radius(b), 1e-3)
	}
	assert.NotEqual(t, start.LightPos, u.Block().LightPos)
	assert.InDelta(t, float32(800)/600, start.AspectRatio, 1e-6)
}

func TestRGBAFromPixels(t *testing.T) {
	pixels := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 10, 20, 30, 255,
	}
	img, err := rgbaFromPixels(pixels, 2, 2)
	require.NoError(t, err)
	r, g, b, a := img.At(1, 1).RGBA()
	assert.Equal(t, [4]uint32{10 * 0x101, 20 * 0x101, 30 * 0x101, 0xffff}, [4]uint32{r, g, b, a})

	_, err = rgbaFromPixels(pixels[:12], 2, 2)
	assert.Error(t, err)
}

type fakeShaders struct {
	data     map[string]interface{}
	unloaded int
}

func (f *fakeShaders) LoadAsset(path string, assetType assets.AssetType, params interface{}) (*assets.Resource, error) {
	d, ok := f.data[path]
	if !ok {
		return nil, errors.New("asset not found: " + path)
	}
	return &assets.Resource{Name: path, Type: assetType, Data: d}, nil
}

func (f *fakeShaders) UnloadAsset(r *assets.Resource) error {
	f.unloaded++
	r.Data = nil
	return nil
}

func TestLoadShader(t *testing.T) {
	src := &fakeShaders{data: map[string]interface{}{
		"shaders/ok.spv":    []uint32{0x07230203, 1, 2},
		"shaders/empty.spv": []uint32{},
		"shaders/wrong.spv": "not bytecode",
	}}

	code, err := loadShader(src, "shaders/ok.spv")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 1, 2}, code)
	assert.Equal(t, 1, src.unloaded)

	_, err = loadShader(src, "shaders/missing.spv")
	assert.ErrorIs(t, err, core.ErrShaderLoad)

	_, err = loadShader(src, "shaders/empty.spv")
	assert.ErrorIs(t, err, core.ErrShaderLoad)

	_, err = loadShader(src, "shaders/wrong.spv")
	assert.ErrorIs(t, err, core.ErrShaderLoad)
}

func TestFrameSyncSubmissions(t *testing.T) {
	fs := &frameSync{
		computeDone:  &vulkan.VulkanSemaphore{},
		graphicsDone: &vulkan.VulkanSemaphore{},
	}
	cb := &vulkan.VulkanCommandBuffer{}

	first := fs.computeSubmit(cb)
	assert.Empty(t, first.Wait, "first frame has nothing to wait on")
	assert.Len(t, first.Signal, 1)

	fs.graphicsSubmitted = true
	next := fs.computeSubmit(cb)
	require.Len(t, next.Wait, 1)
	assert.Equal(t, []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)}, next.WaitStages)

	g := fs.graphicsSubmit(cb, nil, nil)
	require.Len(t, g.Wait, 2)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), g.WaitStages[0])
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), g.WaitStages[1])
	assert.Len(t, g.Signal, 2)
}

func TestFailedUniformUpdateKeepsFenceSignaled(t *testing.T) {
	s := scene.DemoScene()
	u := newUniformState(s, 800, 600, 1)
	// Too small for the block, so the write fails before touching the GPU.
	u.Buffer = &vulkan.VulkanBuffer{Name: "uniform", Size: 1}
	a := &App{
		context:     &vulkan.VulkanContext{Device: &vulkan.VulkanDevice{}},
		uniform:     u,
		initialized: true,
		sync: &frameSync{
			computeFence:  &vulkan.VulkanFence{IsSignaled: true},
			graphicsFence: &vulkan.VulkanFence{IsSignaled: true},
		},
	}

	require.Error(t, a.Render())
	assert.True(t, a.sync.computeFence.IsSignaled, "the next frame must not wait on an unsubmitted fence")
	assert.True(t, a.sync.graphicsFence.IsSignaled)
	assert.Zero(t, a.Frames())
}

func TestSceneBufferSizeCheck(t *testing.T) {
	sb := &SceneBuffers{
		Spheres:   &vulkan.VulkanBuffer{Size: 3 * scene.SphereSize},
		Planes:    &vulkan.VulkanBuffer{Size: scene.PlaneSize},
		Triangles: &vulkan.VulkanBuffer{Size: scene.TriangleSize},
		Counts:    [3]uint32{3, 1, 0},
	}
	assert.NoError(t, sb.CheckSizes())

	sb.Spheres.Size = 2 * scene.SphereSize
	assert.ErrorIs(t, sb.CheckSizes(), core.ErrLayoutMismatch)

	sb.Spheres = nil
	assert.ErrorIs(t, sb.CheckSizes(), core.ErrLayoutMismatch)
}
