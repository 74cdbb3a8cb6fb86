package raytrace

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

// SceneBuffers holds the read-only geometry arrays of the compute shader.
type SceneBuffers struct {
	Spheres   *vulkan.VulkanBuffer
	Planes    *vulkan.VulkanBuffer
	Triangles *vulkan.VulkanBuffer
	// Number of real records per buffer. Empty arrays still get one zeroed
	// record so that no buffer is zero sized.
	Counts [3]uint32
}

// NewSceneBuffers validates s and uploads its primitives into device local
// storage buffers.
func NewSceneBuffers(context *vulkan.VulkanContext, s *scene.Scene) (*SceneBuffers, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	sb := &SceneBuffers{Counts: s.Counts()}
	usage := vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)

	uploads := []struct {
		name string
		data []byte
		out  **vulkan.VulkanBuffer
	}{
		{"spheres", scene.PackSpheres(s.Spheres), &sb.Spheres},
		{"planes", scene.PackPlanes(s.Planes), &sb.Planes},
		{"triangles", scene.PackTriangles(s.Triangles), &sb.Triangles},
	}
	for _, u := range uploads {
		buf, err := vulkan.NewDeviceLocalBuffer(context, u.name, u.data, usage)
		if err != nil {
			sb.Destroy(context)
			return nil, fmt.Errorf("scene %s buffer: %w: %w", u.name, core.ErrInitialization, err)
		}
		*u.out = buf
	}

	core.LogDebug("scene uploaded: %d spheres, %d planes, %d triangles", sb.Counts[0], sb.Counts[1], sb.Counts[2])
	return sb, nil
}

// CheckSizes cross-checks every buffer against count x stride of its record.
func (sb *SceneBuffers) CheckSizes() error {
	checks := []struct {
		name   string
		buf    *vulkan.VulkanBuffer
		count  uint32
		stride uint64
	}{
		{"spheres", sb.Spheres, sb.Counts[0], scene.SphereSize},
		{"planes", sb.Planes, sb.Counts[1], scene.PlaneSize},
		{"triangles", sb.Triangles, sb.Counts[2], scene.TriangleSize},
	}
	for _, c := range checks {
		if c.buf == nil {
			return fmt.Errorf("%w: %s buffer is missing", core.ErrLayoutMismatch, c.name)
		}
		if err := scene.CheckBufferSize(c.name, c.buf.Size, int(c.count), c.stride); err != nil {
			return err
		}
	}
	return nil
}

func (sb *SceneBuffers) Destroy(context *vulkan.VulkanContext) {
	for _, b := range []*vulkan.VulkanBuffer{sb.Triangles, sb.Planes, sb.Spheres} {
		if b != nil {
			b.Destroy(context)
		}
	}
	sb.Spheres, sb.Planes, sb.Triangles = nil, nil, nil
}
