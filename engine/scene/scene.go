package scene

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-rt/engine/core"
)

// Shading constants shared by the compute shader and the reference tracer.
const (
	Shininess  float32 = 32
	HitEpsilon float32 = 1e-4
	ShadowBias float32 = 1e-3
	FogStart   float32 = 10
	FogEnd     float32 = 60
)

type Camera struct {
	Position mgl32.Vec3
	LookAt   mgl32.Vec3
	// Vertical field of view in degrees.
	Fov float32
}

// Scene is the immutable geometry plus the initial frame parameters.
type Scene struct {
	Camera    Camera
	Light     mgl32.Vec3
	FogColor  mgl32.Vec4
	Spheres   []Sphere
	Planes    []Plane
	Triangles []Triangle
}

// Counts returns the number of spheres, planes and triangles.
func (s *Scene) Counts() [3]uint32 {
	return [3]uint32{uint32(len(s.Spheres)), uint32(len(s.Planes)), uint32(len(s.Triangles))}
}

// Validate checks the geometric invariants the shader relies on.
func (s *Scene) Validate() error {
	var errs []error
	if s.Camera.Fov <= 0 || s.Camera.Fov >= 180 {
		errs = append(errs, fmt.Errorf("camera fov %v outside (0, 180)", s.Camera.Fov))
	}
	if s.Camera.LookAt.Sub(s.Camera.Position).Len() == 0 {
		errs = append(errs, errors.New("camera looks at its own position"))
	}

	ids := map[uint32]bool{}
	for i, sp := range s.Spheres {
		if !(sp.Radius > 0) {
			errs = append(errs, fmt.Errorf("sphere %d: radius %v must be positive", i, sp.Radius))
		}
		if ids[sp.ID] {
			errs = append(errs, fmt.Errorf("sphere %d: duplicate id %d", i, sp.ID))
		}
		ids[sp.ID] = true
	}

	ids = map[uint32]bool{}
	for i, pl := range s.Planes {
		if math32.Abs(1-pl.Normal.Len()) > 1e-4 {
			errs = append(errs, fmt.Errorf("plane %d: normal %v is not unit length", i, pl.Normal))
		}
		if ids[pl.ID] {
			errs = append(errs, fmt.Errorf("plane %d: duplicate id %d", i, pl.ID))
		}
		ids[pl.ID] = true
	}

	triIDs := map[int32]bool{}
	for i, t := range s.Triangles {
		if t.P2.Sub(t.P1).Cross(t.P3.Sub(t.P1)).Len() <= 1e-6 {
			errs = append(errs, fmt.Errorf("triangle %d: vertices are collinear", i))
		}
		if triIDs[t.ID] {
			errs = append(errs, fmt.Errorf("triangle %d: duplicate id %d", i, t.ID))
		}
		triIDs[t.ID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidScene, errors.Join(errs...))
	}
	return nil
}

// DemoScene is three spheres resting on a ground plane in front of a large
// upright triangle.
func DemoScene() *Scene {
	return &Scene{
		Camera: Camera{
			Position: mgl32.Vec3{0, 1, 6},
			LookAt:   mgl32.Vec3{0, 0.7, 0},
			Fov:      50,
		},
		Light:    mgl32.Vec3{4, 8, 4},
		FogColor: mgl32.Vec4{0.6, 0.75, 0.9, 1},
		Spheres: []Sphere{
			{Center: mgl32.Vec3{0, 0, 0}, Radius: 1, Diffuse: mgl32.Vec3{1, 0, 0}, Specular: 0.1, ID: 0},
			{Center: mgl32.Vec3{-2.2, -0.3, -1}, Radius: 0.7, Diffuse: mgl32.Vec3{0.1, 0.8, 0.2}, Specular: 0.3, ID: 1},
			{Center: mgl32.Vec3{2, -0.4, 0.5}, Radius: 0.6, Diffuse: mgl32.Vec3{0.2, 0.3, 1}, Specular: 0.8, ID: 2},
		},
		Planes: []Plane{
			{Normal: mgl32.Vec3{0, 1, 0}, Distance: -1, Diffuse: mgl32.Vec3{0.75, 0.75, 0.7}, Specular: 0.1, ID: 0},
		},
		Triangles: []Triangle{
			NewTriangle(0,
				mgl32.Vec3{-3, -1, -3}, mgl32.Vec3{3, -1, -3}, mgl32.Vec3{0, 2.5, -3.5},
				mgl32.Vec3{0.9, 0.8, 0.2}, 0.2),
		},
	}
}
