package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/config"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

func TestSceneOf(t *testing.T) {
	s := scene.DemoScene()
	got, err := sceneOf("demo.toml", &assets.Resource{Data: s})
	require.NoError(t, err)
	assert.Same(t, s, got)

	for _, data := range []interface{}{nil, []uint32{1, 2}, (*scene.Scene)(nil)} {
		_, err := sceneOf("other.spv", &assets.Resource{Data: data})
		assert.ErrorIs(t, err, core.ErrInvalidScene, "payload %T", data)
	}
}

func TestSnapshotFromSceneFile(t *testing.T) {
	cfg := config.Default()
	cfg.Window.Width, cfg.Window.Height = 32, 24
	cfg.Renderer.AssetsDir = filepath.Join("engine", "scene", "testdata")
	cfg.Scene.File = "two_spheres.toml"

	out := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, snapshot(cfg, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}
