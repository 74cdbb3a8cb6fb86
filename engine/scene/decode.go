package scene

import (
	"bytes"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

type sceneFile struct {
	FogColor [4]float32 `toml:"fog_color"`
	Camera   struct {
		Position [3]float32 `toml:"position"`
		LookAt   [3]float32 `toml:"look_at"`
		Fov      float32    `toml:"fov"`
	} `toml:"camera"`
	Light struct {
		Position [3]float32 `toml:"position"`
	} `toml:"light"`
	Spheres []struct {
		ID       uint32     `toml:"id"`
		Center   [3]float32 `toml:"center"`
		Radius   float32    `toml:"radius"`
		Diffuse  [3]float32 `toml:"diffuse"`
		Specular float32    `toml:"specular"`
	} `toml:"spheres"`
	Planes []struct {
		ID       uint32     `toml:"id"`
		Normal   [3]float32 `toml:"normal"`
		Distance float32    `toml:"distance"`
		Diffuse  [3]float32 `toml:"diffuse"`
		Specular float32    `toml:"specular"`
	} `toml:"planes"`
	Triangles []struct {
		ID       int32      `toml:"id"`
		P1       [3]float32 `toml:"p1"`
		P2       [3]float32 `toml:"p2"`
		P3       [3]float32 `toml:"p3"`
		Diffuse  [3]float32 `toml:"diffuse"`
		Specular float32    `toml:"specular"`
	} `toml:"triangles"`
}

// Decode parses a TOML scene description and validates it. Plane normals are
// normalized and triangle normals computed.
func Decode(data []byte) (*Scene, error) {
	var f sceneFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}

	s := &Scene{
		Camera: Camera{
			Position: mgl32.Vec3(f.Camera.Position),
			LookAt:   mgl32.Vec3(f.Camera.LookAt),
			Fov:      f.Camera.Fov,
		},
		Light:    mgl32.Vec3(f.Light.Position),
		FogColor: mgl32.Vec4(f.FogColor),
	}
	for _, sp := range f.Spheres {
		s.Spheres = append(s.Spheres, Sphere{
			ID:       sp.ID,
			Center:   mgl32.Vec3(sp.Center),
			Radius:   sp.Radius,
			Diffuse:  mgl32.Vec3(sp.Diffuse),
			Specular: sp.Specular,
		})
	}
	for _, pl := range f.Planes {
		n := mgl32.Vec3(pl.Normal)
		if n.Len() > 0 {
			n = n.Normalize()
		}
		s.Planes = append(s.Planes, Plane{
			ID:       pl.ID,
			Normal:   n,
			Distance: pl.Distance,
			Diffuse:  mgl32.Vec3(pl.Diffuse),
			Specular: pl.Specular,
		})
	}
	for _, t := range f.Triangles {
		s.Triangles = append(s.Triangles, NewTriangle(t.ID,
			mgl32.Vec3(t.P1), mgl32.Vec3(t.P2), mgl32.Vec3(t.P3),
			mgl32.Vec3(t.Diffuse), t.Specular))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
