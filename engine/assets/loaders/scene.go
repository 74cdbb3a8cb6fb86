package loaders

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

// SceneLoader decodes a TOML scene description into a *scene.Scene.
type SceneLoader struct{}

func (sl *SceneLoader) Load(path string, params interface{}) (*assets.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := scene.Decode(data)
	if err != nil {
		return nil, err
	}
	size := uint64(len(s.Spheres))*uint64(unsafe.Sizeof(scene.Sphere{})) +
		uint64(len(s.Planes))*uint64(unsafe.Sizeof(scene.Plane{})) +
		uint64(len(s.Triangles))*uint64(unsafe.Sizeof(scene.Triangle{}))
	return &assets.Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     assets.AssetTypeScene,
		DataSize: size,
		Data:     s,
	}, nil
}

func (sl *SceneLoader) Unload(r *assets.Resource) error {
	r.Data = nil
	return nil
}
