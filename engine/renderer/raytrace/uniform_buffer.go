package raytrace

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

// UniformBuffer is the per-frame parameter block, persistently mapped in
// host coherent memory.
type UniformBuffer struct {
	Buffer *vulkan.VulkanBuffer

	block scene.UniformBlock
	orbit *scene.LightOrbit
}

func newUniformState(s *scene.Scene, width, height uint32, lightSpeed float64) *UniformBuffer {
	return &UniformBuffer{
		block: scene.NewUniformBlock(s, width, height),
		orbit: scene.NewLightOrbit(s.Light, lightSpeed),
	}
}

// NewUniformBuffer creates and maps the buffer and writes the initial block.
func NewUniformBuffer(context *vulkan.VulkanContext, s *scene.Scene, width, height uint32, lightSpeed float64) (*UniformBuffer, error) {
	u := newUniformState(s, width, height, lightSpeed)

	buf, err := vulkan.NewBuffer(context, "uniform", scene.UniformBlockSize,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	if _, err := buf.Map(context); err != nil {
		buf.Destroy(context)
		return nil, fmt.Errorf("uniform buffer: %w", err)
	}
	u.Buffer = buf

	if err := u.flush(context); err != nil {
		u.Destroy(context)
		return nil, err
	}
	return u, nil
}

// advance moves the light dt seconds along its orbit. Everything else in the
// block stays as built at Init.
func (u *UniformBuffer) advance(dt float64) {
	u.block.LightPos = u.orbit.Advance(dt)
}

// Update advances the light and copies the block into the mapped memory.
func (u *UniformBuffer) Update(context *vulkan.VulkanContext, dt float64) error {
	u.advance(dt)
	return u.flush(context)
}

func (u *UniformBuffer) flush(context *vulkan.VulkanContext) error {
	return u.Buffer.Write(context, u.block.Bytes())
}

// Block returns a copy of the last written block.
func (u *UniformBuffer) Block() scene.UniformBlock {
	return u.block
}

func (u *UniformBuffer) Destroy(context *vulkan.VulkanContext) {
	if u.Buffer != nil {
		u.Buffer.Destroy(context)
		u.Buffer = nil
	}
}
