package scene

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/anima-rt/engine/core"
)

type fieldOffset struct {
	name string
	got  uintptr
	want uintptr
}

// ValidateLayout checks the Go records against the offsets the shaders were
// written for.
func ValidateLayout() error {
	var (
		s Sphere
		p Plane
		t Triangle
		u UniformBlock
	)
	sizes := []fieldOffset{
		{"Sphere", unsafe.Sizeof(s), SphereSize},
		{"Plane", unsafe.Sizeof(p), PlaneSize},
		{"Triangle", unsafe.Sizeof(t), TriangleSize},
		{"UniformBlock", unsafe.Sizeof(u), UniformBlockSize},
	}
	offsets := []fieldOffset{
		{"Sphere.Diffuse", unsafe.Offsetof(s.Diffuse), 16},
		{"Sphere.ID", unsafe.Offsetof(s.ID), 32},
		{"Plane.Diffuse", unsafe.Offsetof(p.Diffuse), 16},
		{"Plane.ID", unsafe.Offsetof(p.ID), 32},
		{"Triangle.P2", unsafe.Offsetof(t.P2), 16},
		{"Triangle.P3", unsafe.Offsetof(t.P3), 32},
		{"Triangle.Normal", unsafe.Offsetof(t.Normal), 48},
		{"Triangle.Diffuse", unsafe.Offsetof(t.Diffuse), 64},
		{"UniformBlock.FogColor", unsafe.Offsetof(u.FogColor), 16},
		{"UniformBlock.CameraPos", unsafe.Offsetof(u.CameraPos), 32},
		{"UniformBlock.LookAt", unsafe.Offsetof(u.LookAt), 48},
		{"UniformBlock.Fov", unsafe.Offsetof(u.Fov), 60},
	}
	for _, f := range append(sizes, offsets...) {
		if f.got != f.want {
			return fmt.Errorf("%w: %s is %d, shader expects %d", core.ErrLayoutMismatch, f.name, f.got, f.want)
		}
	}
	return nil
}

// CheckBufferSize verifies that a buffer holding count records of stride bytes
// has exactly the size that was allocated for it.
func CheckBufferSize(name string, size uint64, count int, stride uint64) error {
	want := uint64(max(count, 1)) * stride
	if size != want {
		return fmt.Errorf("%w: %s buffer is %d bytes, layout needs %d (%d x %d)", core.ErrLayoutMismatch, name, size, want, count, stride)
	}
	return nil
}
