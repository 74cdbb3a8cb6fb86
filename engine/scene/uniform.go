package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformBlock mirrors the std140 uniform block of the compute shader.
type UniformBlock struct {
	LightPos    mgl32.Vec3
	AspectRatio float32
	FogColor    mgl32.Vec4
	CameraPos   mgl32.Vec3
	_           float32
	LookAt      mgl32.Vec3
	// Vertical field of view in degrees.
	Fov float32
}

// NewUniformBlock fills the block for a width x height target.
func NewUniformBlock(s *Scene, width, height uint32) UniformBlock {
	return UniformBlock{
		LightPos:    s.Light,
		AspectRatio: float32(width) / float32(height),
		FogColor:    s.FogColor,
		CameraPos:   s.Camera.Position,
		LookAt:      s.Camera.LookAt,
		Fov:         s.Camera.Fov,
	}
}

// LightOrbit moves a light on the horizontal circle through its initial
// position, centered on the Y axis.
type LightOrbit struct {
	initial mgl32.Vec3
	speed   float64
	elapsed float64
}

// NewLightOrbit orbits initial at speed radians per second.
func NewLightOrbit(initial mgl32.Vec3, speed float64) *LightOrbit {
	return &LightOrbit{initial: initial, speed: speed}
}

// Advance accumulates dt seconds and returns the new light position.
func (o *LightOrbit) Advance(dt float64) mgl32.Vec3 {
	o.elapsed += dt
	return o.Position()
}

// Elapsed is the accumulated time in seconds.
func (o *LightOrbit) Elapsed() float64 {
	return o.elapsed
}

// Angle is elapsed * speed wrapped to [0, 2π).
func (o *LightOrbit) Angle() float64 {
	a := math.Mod(o.elapsed*o.speed, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

func (o *LightOrbit) Position() mgl32.Vec3 {
	return mgl32.Rotate3DY(float32(o.Angle())).Mul3x1(o.initial)
}
