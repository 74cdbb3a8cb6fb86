package reference

import (
	"bytes"
	"image"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/anima-rt/engine/scene"
)

const (
	width  = 800
	height = 600
)

func demoTracer(w, h int) *Tracer {
	s := scene.DemoScene()
	return New(s, scene.NewUniformBlock(s, uint32(w), uint32(h)), w, h)
}

func singleSphere() *scene.Scene {
	s := scene.DemoScene()
	s.Spheres = s.Spheres[:1]
	s.Planes = nil
	s.Triangles = nil
	s.Light = mgl32.Vec3{0, 10, 0}
	return s
}

func rgb(img *image.RGBA, x, y int) mgl32.Vec3 {
	c := img.RGBAAt(x, y)
	return mgl32.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
}

func dist(a, b mgl32.Vec3) float32 {
	return a.Sub(b).Len()
}

// Baseline frame of the demo scene.
func TestBaselineFrame(t *testing.T) {
	s := scene.DemoScene()
	img := demoTracer(width, height).Render()
	fog := s.FogColor.Vec3()

	nonBlack, sky := 0, 0
	nearDiffuse := make([]bool, len(s.Spheres))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := rgb(img, x, y)
			if c.Len() > 0 {
				nonBlack++
			}
			if dist(c, fog) < 0.05 {
				sky++
			}
			for i, sp := range s.Spheres {
				if dist(c, sp.Diffuse) < 0.05 {
					nearDiffuse[i] = true
				}
			}
			assert.Equal(t, uint8(255), img.RGBAAt(x, y).A)
		}
	}
	assert.Positive(t, nonBlack)
	assert.GreaterOrEqual(t, float64(sky)/float64(width*height), 0.05)
	assert.Contains(t, nearDiffuse, true)
}

func TestSingleSphereCenterIsRed(t *testing.T) {
	s := singleSphere()
	tr := New(s, scene.NewUniformBlock(s, width, height), width, height)
	c, hit := tr.TracePixel(width/2, height/2)
	require.Equal(t, HitSphere, hit.Kind)
	assert.Greater(t, c.X(), float32(0.5))
	assert.Less(t, c.Y(), float32(0.2))
	assert.Less(t, c.Z(), float32(0.2))
}

func TestPlaneBelowFillsBottomHalf(t *testing.T) {
	s := singleSphere()
	s.Planes = []scene.Plane{{Normal: mgl32.Vec3{0, 1, 0}, Distance: -1, Diffuse: mgl32.Vec3{0.75, 0.75, 0.7}, Specular: 0.1}}
	tr := New(s, scene.NewUniformBlock(s, width, height), width, height)
	fog := s.FogColor

	for _, x := range []int{0, 10, 100, width - 101, width - 11, width - 1} {
		for y := 0; y < height/2-60; y += 7 {
			c, hit := tr.TracePixel(x, y)
			assert.Equal(t, HitNone, hit.Kind, "pixel %d,%d", x, y)
			assert.Equal(t, fog, c)
		}
		for y := height / 2; y < height; y += 7 {
			c, hit := tr.TracePixel(x, y)
			assert.Equal(t, HitPlane, hit.Kind, "pixel %d,%d", x, y)
			assert.Greater(t, dist(c.Vec3(), fog.Vec3()), float32(0.05), "pixel %d,%d", x, y)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	a := demoTracer(160, 120).Render()
	b := demoTracer(160, 120).Render()
	assert.True(t, bytes.Equal(a.Pix, b.Pix))
}

func TestCenterPixelMatchesShadingFormula(t *testing.T) {
	s := singleSphere()
	// Odd extent so the center pixel ray is the camera forward vector.
	const w, h = 101, 101
	u := scene.NewUniformBlock(s, w, h)
	tr := New(s, u, w, h)
	c, hit := tr.TracePixel(w/2, h/2)
	require.Equal(t, HitSphere, hit.Kind)

	o := u.CameraPos
	d := u.LookAt.Sub(o).Normalize()
	oc := o.Sub(s.Spheres[0].Center)
	b := oc.Dot(d)
	tHit := -b - math32.Sqrt(b*b-(oc.Dot(oc)-1))
	p := o.Add(d.Mul(tHit))
	n := p.Normalize()
	l := u.LightPos.Sub(p).Normalize()
	r := l.Mul(-1).Add(n.Mul(2 * n.Dot(l)))
	spec := s.Spheres[0].Specular * math32.Pow(math32.Max(r.Dot(d.Mul(-1)), 0), scene.Shininess)
	ndotl := math32.Max(n.Dot(l), 0)

	for i := 0; i < 3; i++ {
		want := math32.Min(s.Spheres[0].Diffuse[i]*ndotl+spec, 1)
		assert.InDelta(t, want, c[i], 1e-4, "channel %d", i)
	}
	assert.Greater(t, c.X(), float32(0.5))

	for _, corner := range [][2]int{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}} {
		c, _ := tr.TracePixel(corner[0], corner[1])
		assert.Equal(t, u.FogColor, c)
	}
}

func TestSphereOrderIndependence(t *testing.T) {
	s := scene.DemoScene()
	u := scene.NewUniformBlock(s, 200, 150)
	before := New(s, u, 200, 150).Render()

	swapped := scene.DemoScene()
	swapped.Spheres[0], swapped.Spheres[2] = swapped.Spheres[2], swapped.Spheres[0]
	after := New(swapped, u, 200, 150).Render()
	assert.True(t, bytes.Equal(before.Pix, after.Pix))
}

func TestSphereBehindCameraIsAllFog(t *testing.T) {
	s := singleSphere()
	s.FogColor = mgl32.Vec4{1, 1, 1, 1}
	s.Spheres[0].Center = mgl32.Vec3{0, 0, 50}
	img := New(s, scene.NewUniformBlock(s, 64, 48), 64, 48).Render()
	for i := 0; i < len(img.Pix); i++ {
		require.Equal(t, uint8(255), img.Pix[i], "byte %d", i)
	}
}

func TestShadowOccludesLight(t *testing.T) {
	s := singleSphere()
	s.Planes = []scene.Plane{{Normal: mgl32.Vec3{0, 1, 0}, Distance: -1, Diffuse: mgl32.Vec3{1, 1, 1}}}
	tr := New(s, scene.NewUniformBlock(s, width, height), width, height)

	// Straight below the sphere the plane is in full shadow.
	o := mgl32.Vec3{0, 5, 0.001}
	d := mgl32.Vec3{0, -1, 0}
	hit := Hit{Kind: HitPlane, T: 6, Normal: mgl32.Vec3{0, 1, 0}, Diffuse: mgl32.Vec3{1, 1, 1}}
	c := tr.Shade(o, d, hit)
	assert.Equal(t, mgl32.Vec3{}, c)

	lit := tr.Shade(mgl32.Vec3{4, 5, 0}, d, hit)
	assert.Greater(t, lit.X(), float32(0.5))
}

func TestFogBlendsWithDistance(t *testing.T) {
	s := singleSphere()
	s.Light = mgl32.Vec3{0, 100, 0}
	tr := New(s, scene.NewUniformBlock(s, width, height), width, height)
	hit := Hit{Kind: HitPlane, Normal: mgl32.Vec3{0, 1, 0}, Diffuse: mgl32.Vec3{0, 0, 0}}
	o := mgl32.Vec3{0, 0, 0}
	d := mgl32.Vec3{0, 0, -1}

	hit.T = scene.FogEnd + 1
	assert.Equal(t, s.FogColor.Vec3(), tr.Shade(o, d, hit))

	hit.T = scene.FogStart
	assert.Equal(t, mgl32.Vec3{}, tr.Shade(o, d, hit))
}

func TestEncodeFormats(t *testing.T) {
	img := demoTracer(32, 24).Render()
	dir := t.TempDir()

	for _, name := range []string{"frame.png", "frame.bmp", "frame.tiff"} {
		require.NoError(t, WriteFile(filepath.Join(dir, name), img))
	}
	assert.Error(t, WriteFile(filepath.Join(dir, "frame.gif"), img))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, ".bmp"))
	decoded, err := bmp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	buf.Reset()
	require.NoError(t, Encode(&buf, img, ".TIF"))
	decoded, err = tiff.Decode(&buf)
	require.NoError(t, err)
	r, g, b, _ := decoded.At(5, 5).RGBA()
	want := img.RGBAAt(5, 5)
	assert.Equal(t, uint32(want.R), r>>8)
	assert.Equal(t, uint32(want.G), g>>8)
	assert.Equal(t, uint32(want.B), b>>8)
}
