package scene

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the shader-visible records. The compute shader declares the
// same structs under std430 (storage) and std140 (uniform).
const (
	SphereSize       = 48
	PlaneSize        = 48
	TriangleSize     = 80
	UniformBlockSize = 64
)

// Sphere matches the std430 layout of the compute shader's Sphere struct.
type Sphere struct {
	Center   mgl32.Vec3
	Radius   float32
	Diffuse  mgl32.Vec3
	Specular float32
	ID       uint32
	_        [3]int32
}

// Plane is the set of points p with dot(p, Normal) == Distance.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
	Diffuse  mgl32.Vec3
	Specular float32
	ID       uint32
	_        [3]int32
}

// Triangle interleaves scalars into the vec3 tail padding so every vec3 starts
// on a 16 byte boundary.
type Triangle struct {
	P1       mgl32.Vec3
	ID       int32
	P2       mgl32.Vec3
	Specular float32
	P3       mgl32.Vec3
	_        float32
	Normal   mgl32.Vec3
	_        float32
	Diffuse  mgl32.Vec3
	_        float32
}

// NewTriangle builds a triangle with its face normal filled in.
func NewTriangle(id int32, p1, p2, p3, diffuse mgl32.Vec3, specular float32) Triangle {
	return Triangle{
		P1:       p1,
		P2:       p2,
		P3:       p3,
		ID:       id,
		Normal:   FaceNormal(p1, p2, p3),
		Diffuse:  diffuse,
		Specular: specular,
	}
}

// FaceNormal is normalize(cross(p2-p1, p3-p1)). Degenerate triangles yield the zero vector.
func FaceNormal(p1, p2, p3 mgl32.Vec3) mgl32.Vec3 {
	c := p2.Sub(p1).Cross(p3.Sub(p1))
	if c.Len() == 0 {
		return mgl32.Vec3{}
	}
	return c.Normalize()
}

// packRecords views records as raw bytes. An empty slice packs one zeroed record,
// since a storage buffer can't be zero sized.
func packRecords[T any](records []T) []byte {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(records) == 0 {
		return make([]byte, size)
	}
	out := make([]byte, len(records)*size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&records[0])), len(out)))
	return out
}

func PackSpheres(s []Sphere) []byte     { return packRecords(s) }
func PackPlanes(p []Plane) []byte       { return packRecords(p) }
func PackTriangles(t []Triangle) []byte { return packRecords(t) }

// Bytes returns the uniform block exactly as the shader reads it.
func (u *UniformBlock) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), UniformBlockSize)
}
