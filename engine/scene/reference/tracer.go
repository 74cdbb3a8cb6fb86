// Package reference is a CPU implementation of the ray tracing compute shader.
// It follows raytrace.comp operation for operation so that frames can be
// rendered and checked without a GPU.
package reference

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	emath "github.com/spaghettifunk/anima-rt/engine/math"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

type HitKind int

const (
	HitNone HitKind = iota
	HitSphere
	HitPlane
	HitTriangle
)

func (k HitKind) String() string {
	switch k {
	case HitSphere:
		return "sphere"
	case HitPlane:
		return "plane"
	case HitTriangle:
		return "triangle"
	default:
		return "none"
	}
}

// Hit is the nearest intersection along a ray.
type Hit struct {
	Kind     HitKind
	Index    int
	T        float32
	Normal   mgl32.Vec3
	Diffuse  mgl32.Vec3
	Specular float32
}

// Tracer renders a scene with the parameters of one uniform block.
type Tracer struct {
	scene   *scene.Scene
	uniform scene.UniformBlock
	width   int
	height  int

	forward mgl32.Vec3
	right   mgl32.Vec3
	up      mgl32.Vec3
	tanHalf float32
}

func New(s *scene.Scene, u scene.UniformBlock, width, height int) *Tracer {
	forward := u.LookAt.Sub(u.CameraPos).Normalize()
	right := forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	return &Tracer{
		scene:   s,
		uniform: u,
		width:   width,
		height:  height,
		forward: forward,
		right:   right,
		up:      right.Cross(forward),
		tanHalf: math32.Tan(mgl32.DegToRad(u.Fov) * 0.5),
	}
}

// PrimaryRay returns the camera ray through the center of pixel (x, y).
// Row 0 is the top of the image.
func (t *Tracer) PrimaryRay(x, y int) (origin, dir mgl32.Vec3) {
	u := (2*(float32(x)+0.5)/float32(t.width) - 1) * t.uniform.AspectRatio * t.tanHalf
	v := (1 - 2*(float32(y)+0.5)/float32(t.height)) * t.tanHalf
	dir = t.forward.Add(t.right.Mul(u)).Add(t.up.Mul(v)).Normalize()
	return t.uniform.CameraPos, dir
}

// Intersect finds the nearest hit with HitEpsilon < T < tMax. Ties keep the
// first primitive in sphere, plane, triangle order.
func (t *Tracer) Intersect(o, d mgl32.Vec3, tMax float32) Hit {
	hit := Hit{Kind: HitNone, T: tMax}

	for i, s := range t.scene.Spheres {
		oc := o.Sub(s.Center)
		b := oc.Dot(d)
		c := oc.Dot(oc) - s.Radius*s.Radius
		disc := b*b - c
		if disc < 0 {
			continue
		}
		q := math32.Sqrt(disc)
		dist := -b - q
		if dist < scene.HitEpsilon {
			dist = -b + q
		}
		if dist > scene.HitEpsilon && dist < hit.T {
			p := o.Add(d.Mul(dist))
			hit = Hit{HitSphere, i, dist, p.Sub(s.Center).Normalize(), s.Diffuse, s.Specular}
		}
	}

	for i, p := range t.scene.Planes {
		denom := d.Dot(p.Normal)
		if math32.Abs(denom) < 1e-6 {
			continue
		}
		dist := (p.Distance - o.Dot(p.Normal)) / denom
		if dist > scene.HitEpsilon && dist < hit.T {
			hit = Hit{HitPlane, i, dist, p.Normal, p.Diffuse, p.Specular}
		}
	}

	for i, tri := range t.scene.Triangles {
		e1 := tri.P2.Sub(tri.P1)
		e2 := tri.P3.Sub(tri.P1)
		pv := d.Cross(e2)
		det := e1.Dot(pv)
		if math32.Abs(det) < 1e-8 {
			continue
		}
		inv := 1 / det
		tv := o.Sub(tri.P1)
		u := tv.Dot(pv) * inv
		if u < 0 || u > 1 {
			continue
		}
		qv := tv.Cross(e1)
		v := d.Dot(qv) * inv
		if v < 0 || u+v > 1 {
			continue
		}
		dist := e2.Dot(qv) * inv
		if dist > scene.HitEpsilon && dist < hit.T {
			hit = Hit{HitTriangle, i, dist, tri.Normal, tri.Diffuse, tri.Specular}
		}
	}
	return hit
}

// Shade lights a hit: ambient plus shadowed Lambert and Phong terms, then fog.
func (t *Tracer) Shade(o, d mgl32.Vec3, hit Hit) mgl32.Vec3 {
	fog := t.uniform.FogColor.Vec3()
	if hit.Kind == HitNone {
		return fog
	}

	n := hit.Normal
	if n.Dot(d) > 0 {
		n = n.Mul(-1)
	}
	p := o.Add(d.Mul(hit.T))
	toLight := t.uniform.LightPos.Sub(p)
	lightDist := toLight.Len()
	l := toLight.Mul(1 / lightDist)

	visibility := float32(1)
	if t.Intersect(p.Add(n.Mul(scene.ShadowBias)), l, lightDist).Kind != HitNone {
		visibility = 0
	}

	ndotl := math32.Max(n.Dot(l), 0)
	r := l.Mul(-1).Add(n.Mul(2 * n.Dot(l)))
	spec := hit.Specular * math32.Pow(math32.Max(r.Dot(d.Mul(-1)), 0), scene.Shininess)

	f := emath.Saturate((hit.T - scene.FogStart) / (scene.FogEnd - scene.FogStart))
	var c mgl32.Vec3
	for i := range c {
		lit := emath.Saturate((hit.Diffuse[i]*ndotl + spec) * visibility)
		c[i] = emath.Mix(lit, fog[i], f)
	}
	return c
}

// TracePixel returns the final color of pixel (x, y) and what the primary ray hit.
func (t *Tracer) TracePixel(x, y int) (mgl32.Vec4, Hit) {
	o, d := t.PrimaryRay(x, y)
	hit := t.Intersect(o, d, math32.MaxFloat32)
	return t.Shade(o, d, hit).Vec4(1), hit
}

// Render traces every pixel into an RGBA8 image, the same format as the GPU
// storage image.
func (t *Tracer) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			c, _ := t.TracePixel(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: emath.ToUnorm8(c[0]),
				G: emath.ToUnorm8(c[1]),
				B: emath.ToUnorm8(c[2]),
				A: emath.ToUnorm8(c[3]),
			})
		}
	}
	return img
}
