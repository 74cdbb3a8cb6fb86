package scene

import (
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rt/engine/core"
)

func TestLayoutMatchesShader(t *testing.T) {
	require.NoError(t, ValidateLayout())
	assert.Equal(t, uintptr(SphereSize), unsafe.Sizeof(Sphere{}))
	assert.Equal(t, uintptr(PlaneSize), unsafe.Sizeof(Plane{}))
	assert.Equal(t, uintptr(TriangleSize), unsafe.Sizeof(Triangle{}))
	assert.Equal(t, uintptr(UniformBlockSize), unsafe.Sizeof(UniformBlock{}))
}

func TestPackSpheres(t *testing.T) {
	spheres := []Sphere{
		{Center: mgl32.Vec3{1, 2, 3}, Radius: 4, Diffuse: mgl32.Vec3{5, 6, 7}, Specular: 8, ID: 9},
		{Center: mgl32.Vec3{10, 11, 12}, Radius: 13, ID: 14},
	}
	b := PackSpheres(spheres)
	require.Len(t, b, 2*SphereSize)

	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	assert.Equal(t, float32(1), f32(0))
	assert.Equal(t, float32(4), f32(12))
	assert.Equal(t, float32(7), f32(24))
	assert.Equal(t, float32(8), f32(28))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(b[32:]))
	assert.Equal(t, float32(10), f32(SphereSize))
	assert.Equal(t, uint32(14), binary.LittleEndian.Uint32(b[SphereSize+32:]))
}

func TestPackEmptyKeepsOneRecord(t *testing.T) {
	assert.Len(t, PackSpheres(nil), SphereSize)
	assert.Len(t, PackPlanes(nil), PlaneSize)
	assert.Len(t, PackTriangles(nil), TriangleSize)
}

func TestPackTriangleNormal(t *testing.T) {
	tri := NewTriangle(3, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 1, 1}, 0.5)
	b := PackTriangles([]Triangle{tri})
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	assert.Equal(t, int32(3), int32(binary.LittleEndian.Uint32(b[12:])))
	assert.Equal(t, float32(0.5), f32(28))
	assert.Equal(t, float32(1), f32(48+8))
}

func TestUniformBytes(t *testing.T) {
	u := NewUniformBlock(DemoScene(), 800, 600)
	b := u.Bytes()
	require.Len(t, b, UniformBlockSize)
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	assert.InDelta(t, 800.0/600.0, f32(12), 1e-6)
	assert.Equal(t, float32(0.6), f32(16))
	assert.Equal(t, float32(6), f32(40))
	assert.Equal(t, float32(0.7), f32(52))
	assert.Equal(t, float32(50), f32(60))
}

func TestCheckBufferSize(t *testing.T) {
	assert.NoError(t, CheckBufferSize("spheres", 3*SphereSize, 3, SphereSize))
	assert.NoError(t, CheckBufferSize("planes", PlaneSize, 0, PlaneSize))
	err := CheckBufferSize("triangles", 64, 1, TriangleSize)
	assert.ErrorIs(t, err, core.ErrLayoutMismatch)
}

func TestDemoSceneIsValid(t *testing.T) {
	s := DemoScene()
	require.NoError(t, s.Validate())
	assert.Equal(t, [3]uint32{3, 1, 1}, s.Counts())
	n := s.Triangles[0].Normal
	assert.InDelta(t, 1.0, n.Len(), 1e-6)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Scene)
	}{
		{"zero radius", func(s *Scene) { s.Spheres[0].Radius = 0 }},
		{"duplicate sphere id", func(s *Scene) { s.Spheres[1].ID = s.Spheres[0].ID }},
		{"non unit normal", func(s *Scene) { s.Planes[0].Normal = mgl32.Vec3{0, 2, 0} }},
		{"duplicate plane id", func(s *Scene) { s.Planes = append(s.Planes, s.Planes[0]) }},
		{"collinear triangle", func(s *Scene) {
			s.Triangles[0] = NewTriangle(0, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2}, mgl32.Vec3{}, 0)
		}},
		{"fov too wide", func(s *Scene) { s.Camera.Fov = 180 }},
		{"fov zero", func(s *Scene) { s.Camera.Fov = 0 }},
		{"degenerate camera", func(s *Scene) { s.Camera.LookAt = s.Camera.Position }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DemoScene()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), core.ErrInvalidScene)
		})
	}
}

func TestUniformInvariantsOverTime(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := DemoScene()
	orbit := NewLightOrbit(s.Light, 1.0)
	radius := s.Light.Len()
	height := s.Light.Y()

	for _, size := range [][2]uint32{{800, 600}, {1920, 1080}, {1, 1000}} {
		u := NewUniformBlock(s, size[0], size[1])
		for i := 0; i < 500; i++ {
			u.LightPos = orbit.Advance(rng.Float64() * 0.1)
			assert.Equal(t, float32(size[0])/float32(size[1]), u.AspectRatio)
			assert.Greater(t, u.Fov, float32(0))
			assert.Less(t, u.Fov, float32(180))
			assert.InDelta(t, radius, u.LightPos.Len(), 1e-4)
			assert.InDelta(t, height, u.LightPos.Y(), 1e-5)
		}
	}
}

func TestLightOrbitAngle(t *testing.T) {
	orbit := NewLightOrbit(mgl32.Vec3{1, 2, 0}, 1.0)
	assert.Equal(t, mgl32.Vec3{1, 2, 0}, orbit.Position())

	p := orbit.Advance(math.Pi / 2)
	assert.InDelta(t, 0, p.X(), 1e-6)
	assert.InDelta(t, 2, p.Y(), 1e-6)
	assert.InDelta(t, 1, math.Abs(float64(p.Z())), 1e-6)

	p = orbit.Advance(3 * math.Pi / 2)
	assert.InDelta(t, 2*math.Pi, orbit.Elapsed(), 1e-9)
	assert.InDelta(t, 1, p.X(), 1e-5)
	assert.InDelta(t, 0, p.Z(), 1e-5)
	assert.Less(t, orbit.Angle(), 2*math.Pi)
}

func TestLightOrbitStillWhenSpeedZero(t *testing.T) {
	orbit := NewLightOrbit(mgl32.Vec3{4, 8, 4}, 0)
	for i := 0; i < 10; i++ {
		assert.Equal(t, mgl32.Vec3{4, 8, 4}, orbit.Advance(0.5))
	}
}

func TestDecodeScene(t *testing.T) {
	data, err := os.ReadFile("testdata/two_spheres.toml")
	require.NoError(t, err)

	s, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{2, 1, 1}, s.Counts())
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, s.Camera.Position)
	assert.Equal(t, float32(60), s.Camera.Fov)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, s.FogColor)
	assert.Equal(t, uint32(7), s.Spheres[0].ID)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, s.Planes[0].Normal)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, s.Triangles[0].Normal)
	assert.Equal(t, float32(0.25), s.Triangles[0].Specular)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte("[camera]\nfov = 50\nzoom = 2\n"))
	assert.Error(t, err)

	_, err = Decode([]byte(`
[camera]
position = [0.0, 0.0, 5.0]
fov = 50.0

[[spheres]]
radius = -1.0
`))
	assert.ErrorIs(t, err, core.ErrInvalidScene)
}
